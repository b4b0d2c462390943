package engine

import (
	"github.com/spotter-social/spotter/automod/catalog"
	"github.com/spotter-social/spotter/automod/enforce"
	"github.com/spotter-social/spotter/automod/verdict"
)

type (
	ModerationResult = verdict.ModerationResult
	CategoryMatch    = verdict.CategoryMatch
	// content type, author role and community visibility of a submission
	ContentContext = catalog.Scope
)

// RuleMatch is a custom rule which fired against a piece of content.
type RuleMatch struct {
	Rule       *catalog.Compiled
	Confidence float64
	// de-duplicated case-insensitively, in discovery order
	Matches []string
	// at least one match came from a literal pattern
	PatternHit bool
}

// MatchSet lists fired rules in catalog order. Empty means no custom-rule violation.
type MatchSet []RuleMatch

func (ms MatchSet) RuleIDs() []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.Rule.ID)
	}
	return out
}

type PositiveSignal struct {
	IsOnTopic       bool     `json:"isOnTopic"`
	ConfidenceBonus float64  `json:"confidenceBonus"`
	Keywords        []string `json:"keywords,omitempty"`
	Phrases         []string `json:"phrases,omitempty"`
}

// Submission is one piece of user content offered for moderation.
type Submission struct {
	ContentRef string         `json:"contentRef"`
	AuthorID   string         `json:"authorId"`
	Content    string         `json:"content"`
	Context    ContentContext `json:"context"`
}

// Disposition tells the caller what to do with the content.
type Disposition string

const (
	DispositionPublish Disposition = "publish"
	// hidden pending review (or pending a verdict)
	DispositionHold   Disposition = "hold"
	DispositionReject Disposition = "reject"
)

func DispositionFor(v *ModerationResult) Disposition {
	switch v.Action {
	case verdict.ActionBlocked:
		return DispositionReject
	case verdict.ActionFlagged:
		return DispositionHold
	default:
		return DispositionPublish
	}
}

type Outcome struct {
	AuditID     string            `json:"auditId,omitempty"`
	Disposition Disposition       `json:"disposition"`
	Verdict     *ModerationResult `json:"verdict,omitempty"`
	Enforcement *enforce.Result   `json:"enforcement,omitempty"`
	// the decision was not durably recorded; operators have been alerted
	AuditFailed bool `json:"auditFailed,omitempty"`
}
