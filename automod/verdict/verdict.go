// Package verdict holds the moderation decision shared between the engine, enforcement and audit packages.
package verdict

import (
	"github.com/spotter-social/spotter/automod/catalog"
)

type Action string

const (
	ActionApprove Action = "approve"
	ActionFlagged Action = "flagged"
	ActionBlocked Action = "blocked"
)

// Converts a rule's declared action to the verdict it produces when the rule is primary.
func ActionFor(a catalog.Action) Action {
	switch a {
	case catalog.ActionBlock:
		return ActionBlocked
	case catalog.ActionFlag:
		return ActionFlagged
	default:
		return ActionApprove
	}
}

func (a Action) rank() int {
	switch a {
	case ActionBlocked:
		return 2
	case ActionFlagged:
		return 1
	default:
		return 0
	}
}

type Source string

const (
	SourceCustomRules        Source = "custom-rules"
	SourceExternalClassifier Source = "external-classifier"
	SourceCombined           Source = "combined"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}

func PriorityForSeverity(severity int) Priority {
	switch {
	case severity >= 4:
		return PriorityHigh
	case severity == 3:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

type AccountAction string

const (
	AccountActionNone    AccountAction = "none"
	AccountActionWarn    AccountAction = "warn"
	AccountActionSuspend AccountAction = "suspend"
)

// CategoryMatch is one fired rule, either from the custom catalog or synthesized from an external classifier category.
type CategoryMatch struct {
	RuleID     string           `json:"ruleId"`
	RuleName   string           `json:"ruleName"`
	Category   catalog.Category `json:"category"`
	Source     Source           `json:"source"`
	Severity   int              `json:"severity"`
	Confidence float64          `json:"confidence"`
	Matches    []string         `json:"matches,omitempty"`
}

// ModerationResult is the decision for one submission. It is built once by the composer and not modified afterwards.
type ModerationResult struct {
	Action                 Action          `json:"action"`
	Confidence             float64         `json:"confidence"`
	Reason                 string          `json:"reason"`
	Categories             []CategoryMatch `json:"categories"`
	Source                 Source          `json:"source"`
	RequiresHumanReview    bool            `json:"requiresHumanReview"`
	ReviewPriority         Priority        `json:"reviewPriority"`
	SuggestedAccountAction AccountAction   `json:"suggestedAccountAction"`
	Appealable             bool            `json:"appealable"`
	AutoBlock              bool            `json:"autoBlock"`
	Degraded               bool            `json:"degraded"`
	PrimaryRuleID          string          `json:"primaryRuleId,omitempty"`
	Severity               int             `json:"severity"`
}

func (r *ModerationResult) IsViolation() bool {
	return r.Action != ActionApprove
}

// Stricter reports whether r is a harsher outcome than other: a stronger action, or the same action with a higher severity.
func (r *ModerationResult) Stricter(other *ModerationResult) bool {
	if other == nil {
		return r.IsViolation()
	}
	if r.Action.rank() != other.Action.rank() {
		return r.Action.rank() > other.Action.rank()
	}
	return r.Severity > other.Severity
}
