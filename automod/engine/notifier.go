package engine

import (
	"context"

	"github.com/spotter-social/spotter/automod/audit"
	"github.com/spotter-social/spotter/automod/enforce"
)

// Interface for a type that can handle sending notifications
type Notifier interface {
	// called for decisions which took an account-level action, or need urgent review
	SendDecision(ctx context.Context, rec *audit.Record) error
}

// notify for bans, suspensions and high priority review items
func shouldNotify(rec *audit.Record) bool {
	if rec.Enforcement != nil && rec.Enforcement.Changed() && rec.Enforcement.ActionTaken != enforce.ActionWarn {
		return true
	}
	return rec.Verdict != nil && rec.Verdict.RequiresHumanReview && rec.Verdict.Severity >= 5
}
