// Package audit keeps the append-only trail of moderation decisions, human reviews and enforcement reversals.
package audit

import (
	"errors"
	"time"

	"github.com/spotter-social/spotter/automod/catalog"
	"github.com/spotter-social/spotter/automod/enforce"
	"github.com/spotter-social/spotter/automod/verdict"
)

type Kind string

const (
	KindDecision  Kind = "decision"
	KindReview    Kind = "review"
	KindReconcile Kind = "reconcile"
	KindReversal  Kind = "reversal"
)

type ReviewDecision string

const (
	ReviewUphold   ReviewDecision = "uphold"
	ReviewOverturn ReviewDecision = "overturn"
)

var (
	ErrNotFound = errors.New("audit record not found")
	// an id or claim is already taken
	ErrDuplicate = errors.New("audit record already exists")
)

// Record is one entry of the audit trail. Records are never updated or deleted once appended.
type Record struct {
	ID         string `json:"id" gorm:"primaryKey"`
	Kind       Kind   `json:"kind" gorm:"index"`
	ContentRef string `json:"contentRef" gorm:"index"`
	AuthorID   string `json:"authorId" gorm:"index"`
	// where the content was posted, as evaluated
	Context     catalog.Scope             `json:"context" gorm:"embedded;embeddedPrefix:ctx_"`
	Verdict     *verdict.ModerationResult `json:"verdict,omitempty" gorm:"serializer:json"`
	Enforcement *enforce.Result           `json:"enforcement,omitempty" gorm:"serializer:json"`
	// set on review records
	Moderator      string         `json:"moderator,omitempty"`
	ReviewDecision ReviewDecision `json:"reviewDecision,omitempty"`
	Note           string         `json:"note,omitempty"`
	// the record a review, reconcile or reversal refers to
	RefID string `json:"refId,omitempty" gorm:"index"`
	// unique: each record is settled by at most one review, and each decision re-moderated by at most one reconcile
	Claim *string `json:"-" gorm:"uniqueIndex"`

	// copied from the verdict for review queue queries
	RequiresHumanReview bool `json:"-" gorm:"index"`
	PriorityRank        int  `json:"-"`

	CreatedAt time.Time `json:"createdAt" gorm:"index"`
}

func (Record) TableName() string {
	return "audit_records"
}

// fills the claim and the columns derived from the verdict
func (r *Record) denormalize() {
	r.Claim = nil
	if r.RefID != "" {
		var c string
		switch r.Kind {
		case KindReview:
			c = r.RefID
		case KindReconcile:
			c = "reconcile:" + r.RefID
		}
		if c != "" {
			r.Claim = &c
		}
	}
	if r.Verdict == nil {
		return
	}
	r.RequiresHumanReview = r.Verdict.RequiresHumanReview && (r.Kind == KindDecision || r.Kind == KindReconcile)
	r.PriorityRank = r.Verdict.ReviewPriority.Rank()
}
