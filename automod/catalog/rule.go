package catalog

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/spotter-social/spotter/automod/keyword"
)

type Category string

const (
	CategoryHarassment           Category = "harassment"
	CategoryImpersonation        Category = "impersonation"
	CategorySpam                 Category = "spam"
	CategoryPrivacyViolation     Category = "privacy-violation"
	CategoryInappropriateContent Category = "inappropriate-content"
	CategoryOffTopic             Category = "off-topic"
	CategoryMisinformation       Category = "misinformation"
	CategorySelfHarm             Category = "self-harm"
	CategoryHate                 Category = "hate"
)

var knownCategories = []Category{
	CategoryHarassment,
	CategoryImpersonation,
	CategorySpam,
	CategoryPrivacyViolation,
	CategoryInappropriateContent,
	CategoryOffTopic,
	CategoryMisinformation,
	CategorySelfHarm,
	CategoryHate,
}

// Action declared by a rule. The verdict vocabulary (approve/flagged/blocked) lives in the engine package.
type Action string

const (
	ActionApprove Action = "approve"
	ActionFlag    Action = "flag"
	ActionBlock   Action = "block"
)

type ContentType string

const (
	ContentPost    ContentType = "post"
	ContentComment ContentType = "comment"
	ContentMessage ContentType = "message"
	ContentProfile ContentType = "profile"
)

type AuthorRole string

const (
	RoleMember    AuthorRole = "member"
	RoleCoach     AuthorRole = "coach"
	RoleModerator AuthorRole = "moderator"
	RoleAdmin     AuthorRole = "admin"
)

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

const (
	MinSeverity = 1
	MaxSeverity = 5
)

var ErrInvalidRule = errors.New("invalid violation rule")

// Rule is the static definition of one violation. Rules are authored by administrators and are never mutated during evaluation.
type Rule struct {
	ID                  string        `json:"id" yaml:"id"`
	Name                string        `json:"name" yaml:"name"`
	Description         string        `json:"description,omitempty" yaml:"description,omitempty"`
	Category            Category      `json:"category" yaml:"category"`
	Severity            int           `json:"severity" yaml:"severity"`
	BaseConfidence      float64       `json:"baseConfidence" yaml:"baseConfidence"`
	Patterns            []string      `json:"patterns,omitempty" yaml:"patterns,omitempty"`
	Keywords            []string      `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	RegexPatterns       []string      `json:"regexPatterns,omitempty" yaml:"regexPatterns,omitempty"`
	ContentTypes        []ContentType `json:"applicableContentTypes,omitempty" yaml:"applicableContentTypes,omitempty"`
	AuthorRoles         []AuthorRole  `json:"applicableAuthorRoles,omitempty" yaml:"applicableAuthorRoles,omitempty"`
	Visibility          []Visibility  `json:"applicableCommunityVisibility,omitempty" yaml:"applicableCommunityVisibility,omitempty"`
	Action              Action        `json:"action" yaml:"action"`
	AutoBlock           bool          `json:"autoBlock" yaml:"autoBlock"`
	RequiresHumanReview bool          `json:"requiresHumanReview" yaml:"requiresHumanReview"`
}

// Validate checks that the rule is within its declared ranges. All problems are reported, joined.
func (r *Rule) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w %q: %s", ErrInvalidRule, r.ID, fmt.Sprintf(format, args...)))
	}

	if strings.TrimSpace(r.ID) == "" {
		bad("empty id")
	}
	if r.Severity < MinSeverity || r.Severity > MaxSeverity {
		bad("severity %d out of range [%d, %d]", r.Severity, MinSeverity, MaxSeverity)
	}
	if r.BaseConfidence < 0 || r.BaseConfidence > 1 {
		bad("base confidence %.2f out of range [0, 1]", r.BaseConfidence)
	}
	if !slices.Contains(knownCategories, r.Category) {
		bad("unknown category %q", r.Category)
	}
	switch r.Action {
	case ActionFlag, ActionBlock:
	case ActionApprove:
		bad("action approve is not a violation")
	default:
		bad("unknown action %q", r.Action)
	}
	if r.AutoBlock && r.Action != ActionBlock {
		bad("autoBlock requires action block")
	}
	if len(r.Patterns) == 0 && len(r.Keywords) == 0 && len(r.RegexPatterns) == 0 {
		bad("no patterns, keywords or regexes")
	}
	for _, p := range r.Patterns {
		if strings.TrimSpace(p) == "" {
			bad("empty pattern")
		}
	}
	for _, kw := range r.Keywords {
		if len(keyword.TokenizeText(kw)) == 0 {
			bad("keyword %q has no word characters", kw)
		}
	}
	for _, re := range r.RegexPatterns {
		if _, err := regexp.Compile(re); err != nil {
			bad("regex %q: %v", re, err)
		}
	}
	for _, ct := range r.ContentTypes {
		switch ct {
		case ContentPost, ContentComment, ContentMessage, ContentProfile:
		default:
			bad("unknown content type %q", ct)
		}
	}
	for _, role := range r.AuthorRoles {
		switch role {
		case RoleMember, RoleCoach, RoleModerator, RoleAdmin:
		default:
			bad("unknown author role %q", role)
		}
	}
	for _, v := range r.Visibility {
		switch v {
		case VisibilityPublic, VisibilityPrivate:
		default:
			bad("unknown visibility %q", v)
		}
	}
	return errors.Join(errs...)
}

// Scope is the evaluation context a rule's applicability is checked against.
type Scope struct {
	ContentType ContentType `json:"contentType"`
	AuthorRole  AuthorRole  `json:"authorRole"`
	Visibility  Visibility  `json:"communityVisibility"`
}

// An empty applicability list means the rule applies everywhere along that axis.
func (r *Rule) AppliesTo(s Scope) bool {
	if len(r.ContentTypes) > 0 && !slices.Contains(r.ContentTypes, s.ContentType) {
		return false
	}
	if len(r.AuthorRoles) > 0 && !slices.Contains(r.AuthorRoles, s.AuthorRole) {
		return false
	}
	if len(r.Visibility) > 0 && !slices.Contains(r.Visibility, s.Visibility) {
		return false
	}
	return true
}
