package classifier

import (
	"strings"

	"github.com/spotter-social/spotter/automod/catalog"
)

// CategoryRule describes how a flagged external category is treated when merged with custom rule matches.
type CategoryRule struct {
	Name                string
	Category            catalog.Category
	Severity            int
	BaseConfidence      float64
	Action              catalog.Action
	RequiresHumanReview bool
}

// Synthetic rule ids are the external category prefixed with this string, eg "external:harassment".
const RuleIDPrefix = "external:"

func RuleID(category string) string {
	return RuleIDPrefix + category
}

// DefaultCategoryRules maps moderation-endpoint categories to synthetic rules.
//
// Self-harm intent is flagged for priority human review, not blocked.
var DefaultCategoryRules = map[string]CategoryRule{
	"harassment":             {Name: "Harassment", Category: catalog.CategoryHarassment, Severity: 3, BaseConfidence: 0.5, Action: catalog.ActionFlag},
	"harassment/threatening": {Name: "Threatening harassment", Category: catalog.CategoryHarassment, Severity: 5, BaseConfidence: 0.6, Action: catalog.ActionBlock},
	"hate":                   {Name: "Hate speech", Category: catalog.CategoryHate, Severity: 4, BaseConfidence: 0.6, Action: catalog.ActionBlock},
	"hate/threatening":       {Name: "Threatening hate speech", Category: catalog.CategoryHate, Severity: 5, BaseConfidence: 0.6, Action: catalog.ActionBlock},
	"self-harm":              {Name: "Self-harm", Category: catalog.CategorySelfHarm, Severity: 4, BaseConfidence: 0.5, Action: catalog.ActionFlag, RequiresHumanReview: true},
	"self-harm/intent":       {Name: "Self-harm intent", Category: catalog.CategorySelfHarm, Severity: 5, BaseConfidence: 0.5, Action: catalog.ActionFlag, RequiresHumanReview: true},
	"self-harm/instructions": {Name: "Self-harm instructions", Category: catalog.CategorySelfHarm, Severity: 5, BaseConfidence: 0.6, Action: catalog.ActionBlock, RequiresHumanReview: true},
	"sexual":                 {Name: "Sexual content", Category: catalog.CategoryInappropriateContent, Severity: 3, BaseConfidence: 0.5, Action: catalog.ActionFlag, RequiresHumanReview: true},
	"sexual/minors":          {Name: "Sexual content involving minors", Category: catalog.CategoryInappropriateContent, Severity: 5, BaseConfidence: 0.7, Action: catalog.ActionBlock, RequiresHumanReview: true},
	"violence":               {Name: "Violence", Category: catalog.CategoryHarassment, Severity: 3, BaseConfidence: 0.5, Action: catalog.ActionFlag},
	"violence/graphic":       {Name: "Graphic violence", Category: catalog.CategoryInappropriateContent, Severity: 4, BaseConfidence: 0.6, Action: catalog.ActionBlock},
	"illicit":                {Name: "Illicit activity", Category: catalog.CategoryMisinformation, Severity: 3, BaseConfidence: 0.5, Action: catalog.ActionFlag},
	"illicit/violent":        {Name: "Violent illicit activity", Category: catalog.CategoryMisinformation, Severity: 4, BaseConfidence: 0.6, Action: catalog.ActionBlock},
}

// RuleFor returns the synthetic rule for a category. Unknown categories fall back on their parent ("hate/other" -> "hate"),
// then on a generic flag-for-review rule, so a new classifier category is never silently ignored.
func RuleFor(table map[string]CategoryRule, category string) CategoryRule {
	if r, ok := table[category]; ok {
		return r
	}
	if parent, _, found := strings.Cut(category, "/"); found {
		if r, ok := table[parent]; ok {
			return r
		}
	}
	return CategoryRule{
		Name:                "External classifier: " + category,
		Category:            catalog.CategoryInappropriateContent,
		Severity:            3,
		BaseConfidence:      0.5,
		Action:              catalog.ActionFlag,
		RequiresHumanReview: true,
	}
}
