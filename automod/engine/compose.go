package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spotter-social/spotter/automod/catalog"
	"github.com/spotter-social/spotter/automod/classifier"
	"github.com/spotter-social/spotter/automod/verdict"
)

const approveReason = "no violations detected"

// Composer merges custom rule matches and external classifier categories in to a single verdict.
type Composer struct {
	// how flagged external categories map to synthetic rules
	Categories map[string]classifier.CategoryRule
}

// Compose with the default external category table.
func Compose(ms MatchSet, scores *classifier.Scores, ps PositiveSignal, degraded bool) ModerationResult {
	c := Composer{Categories: classifier.DefaultCategoryRules}
	return c.Compose(ms, scores, ps, degraded)
}

// candidate is a fired rule of either origin, in the shape the merge works on
type candidate struct {
	match     CategoryMatch
	base      float64
	action    catalog.Action
	review    bool
	autoBlock bool
}

func (c *candidate) external() bool {
	return c.match.Source == verdict.SourceExternalClassifier
}

// outranks orders candidates for primary selection: severity, then confidence, then custom before external, then rule id
func (c *candidate) outranks(o *candidate) bool {
	if c.match.Severity != o.match.Severity {
		return c.match.Severity > o.match.Severity
	}
	if c.match.Confidence != o.match.Confidence {
		return c.match.Confidence > o.match.Confidence
	}
	if c.external() != o.external() {
		return !c.external()
	}
	return c.match.RuleID < o.match.RuleID
}

func (cp *Composer) candidates(ms MatchSet, scores *classifier.Scores, degraded bool) []candidate {
	out := make([]candidate, 0, len(ms))
	for _, m := range ms {
		out = append(out, candidate{
			match: CategoryMatch{
				RuleID:     m.Rule.ID,
				RuleName:   m.Rule.Name,
				Category:   m.Rule.Category,
				Source:     verdict.SourceCustomRules,
				Severity:   m.Rule.Severity,
				Confidence: m.Confidence,
				Matches:    m.Matches,
			},
			base:      m.Rule.BaseConfidence,
			action:    m.Rule.Action,
			review:    m.Rule.RequiresHumanReview,
			autoBlock: m.Rule.AutoBlock,
		})
	}
	if degraded {
		return out
	}
	table := cp.Categories
	if table == nil {
		table = classifier.DefaultCategoryRules
	}
	for _, cs := range scores.FlaggedCategories() {
		rule := classifier.RuleFor(table, cs.Category)
		out = append(out, candidate{
			match: CategoryMatch{
				RuleID:     classifier.RuleID(cs.Category),
				RuleName:   rule.Name,
				Category:   rule.Category,
				Source:     verdict.SourceExternalClassifier,
				Severity:   rule.Severity,
				Confidence: clamp01(max(rule.BaseConfidence, cs.Score)),
				Matches:    []string{cs.Category},
			},
			base:   rule.BaseConfidence,
			action: rule.Action,
			review: rule.RequiresHumanReview,
		})
	}
	return out
}

// Compose builds the verdict. It is deterministic in its inputs.
//
// When degraded, external scores are ignored and the verdict is marked for later reconciliation.
func (cp *Composer) Compose(ms MatchSet, scores *classifier.Scores, ps PositiveSignal, degraded bool) ModerationResult {
	cands := cp.candidates(ms, scores, degraded)

	if len(cands) == 0 {
		res := ModerationResult{
			Action:                 verdict.ActionApprove,
			Reason:                 approveReason,
			Categories:             []CategoryMatch{},
			Source:                 verdict.SourceCombined,
			ReviewPriority:         verdict.PriorityLow,
			SuggestedAccountAction: verdict.AccountActionNone,
			Degraded:               degraded,
		}
		if degraded {
			res.Source = verdict.SourceCustomRules
		}
		return res
	}

	primary := &cands[0]
	hasCustom, hasExternal, review := false, false, false
	for i := range cands {
		c := &cands[i]
		if c.outranks(primary) {
			primary = c
		}
		if c.external() {
			hasExternal = true
		} else {
			hasCustom = true
		}
		review = review || c.review
	}

	action := verdict.ActionFor(primary.action)
	severity := primary.match.Severity
	conf := clamp01(max(primary.match.Confidence-ps.ConfidenceBonus, min(primary.match.Confidence, primary.base)))

	source := verdict.SourceCustomRules
	switch {
	case degraded:
	case hasCustom && hasExternal:
		source = verdict.SourceCombined
	case hasExternal:
		source = verdict.SourceExternalClassifier
	}

	categories := make([]CategoryMatch, 0, len(cands))
	for _, c := range cands {
		categories = append(categories, c.match)
	}
	// custom rules keep catalog order, external categories follow sorted by name
	sort.SliceStable(categories, func(i, j int) bool {
		ei := categories[i].Source == verdict.SourceExternalClassifier
		ej := categories[j].Source == verdict.SourceExternalClassifier
		return !ei && ej
	})

	return ModerationResult{
		Action:                 action,
		Confidence:             conf,
		Reason:                 reasonFor(primary, len(cands)),
		Categories:             categories,
		Source:                 source,
		RequiresHumanReview:    review || (action == verdict.ActionBlocked && severity >= 4),
		ReviewPriority:         verdict.PriorityForSeverity(severity),
		SuggestedAccountAction: suggestedAccountAction(action, severity),
		Appealable:             action != verdict.ActionApprove,
		AutoBlock:              primary.autoBlock && action == verdict.ActionBlocked,
		Degraded:               degraded,
		PrimaryRuleID:          primary.match.RuleID,
		Severity:               severity,
	}
}

func suggestedAccountAction(action verdict.Action, severity int) verdict.AccountAction {
	switch {
	case action == verdict.ActionApprove || severity <= 2:
		return verdict.AccountActionNone
	case severity == 3:
		return verdict.AccountActionWarn
	default:
		return verdict.AccountActionSuspend
	}
}

func reasonFor(primary *candidate, fired int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%s, severity %d)", primary.match.RuleName, primary.match.Category, primary.match.Severity)
	for i, m := range primary.match.Matches {
		if i == 0 {
			sb.WriteString(": matched ")
		} else {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%q", m)
	}
	if fired > 1 {
		fmt.Fprintf(&sb, " (+%d more)", fired-1)
	}
	return sb.String()
}
