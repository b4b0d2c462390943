package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/spotter-social/spotter/automod/audit"
	"github.com/spotter-social/spotter/automod/classifier"
	"github.com/spotter-social/spotter/automod/enforce"
	"github.com/spotter-social/spotter/automod/verdict"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcileDegraded(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	fetcher := eng.Fetcher.(*MemContentFetcher)
	eng.Classifier = &classifier.Static{Err: classifier.ErrUnavailable}

	text := "you are such a loser"
	fetcher.Put("post-1", text)
	out, err := eng.Submit(ctx, submission("post-1", "user-1", text))
	require.NoError(err)
	assert.True(out.Verdict.Degraded)
	assert.Equal(verdict.SourceCustomRules, out.Verdict.Source)
	assert.Equal(enforce.ActionWarn, out.Enforcement.ActionTaken)

	queued, err := eng.Flags.Get(ctx, ReconcileFlagKey)
	require.NoError(err)
	assert.Equal([]string{out.AuditID}, queued)

	// classifier still down: stays queued
	report, err := eng.Reconcile(ctx)
	require.NoError(err)
	assert.Equal(ReconcileReport{Checked: 1}, *report)

	eng.Classifier = &classifier.Static{
		Scores: classifier.NewScores(true, map[string]bool{"harassment/threatening": true}, map[string]float64{"harassment/threatening": 0.9}),
	}
	report, err = eng.Reconcile(ctx)
	require.NoError(err)
	assert.Equal(ReconcileReport{Checked: 1, Reconciled: 1, Escalated: 1}, *report)

	queued, err = eng.Flags.Get(ctx, ReconcileFlagKey)
	require.NoError(err)
	assert.Empty(queued)

	related, err := eng.Audit.Store.Related(ctx, out.AuditID)
	require.NoError(err)
	require.Len(related, 1)
	assert.Equal(audit.KindReconcile, related[0].Kind)
	assert.False(related[0].Verdict.Degraded)
	assert.Equal(enforce.ActionSuspend3d, related[0].Enforcement.ActionTaken)

	// the suspension replaces the warning: charged once for the content
	acct, err := eng.Enforcer.Store.Get(ctx, "user-1")
	require.NoError(err)
	assert.Equal(75, acct.Reputation)
	assert.Equal(0, acct.WarningCount)
	assert.Equal(enforce.StatusSuspended, acct.Status)

	// overturning the decision unwinds both enforcement steps
	rev, err := eng.Review(ctx, ReviewRequest{AuditID: out.AuditID, Moderator: "mod-1", Decision: audit.ReviewOverturn, Note: "banter between friends"})
	require.NoError(err)
	assert.Equal(audit.KindReview, rev.Review.Kind)
	require.Len(rev.Cascade, 1)
	assert.Equal(related[0].ID, rev.Cascade[0].RefID)
	assert.Equal(audit.ReviewOverturn, rev.Cascade[0].ReviewDecision)
	require.Len(rev.Reversals, 2)
	assert.Equal(related[0].ID, rev.Reversals[0].RefID)
	assert.Equal(out.AuditID, rev.Reversals[1].RefID)

	acct, err = eng.Enforcer.Store.Get(ctx, "user-1")
	require.NoError(err)
	assert.Equal(enforce.MaxReputation, acct.Reputation)
	assert.Equal(0, acct.WarningCount)
	assert.Equal(enforce.StatusActive, acct.Status)

	_, err = eng.Review(ctx, ReviewRequest{AuditID: out.AuditID, Moderator: "mod-2", Decision: audit.ReviewUphold})
	assert.ErrorIs(err, ErrAlreadyReviewed)
	_, err = eng.Review(ctx, ReviewRequest{AuditID: rev.Review.ID, Moderator: "mod-2", Decision: audit.ReviewUphold})
	assert.ErrorIs(err, ErrNotReviewable)

	// the reconcile record went with the decision and cannot be reversed again
	_, err = eng.Review(ctx, ReviewRequest{AuditID: related[0].ID, Moderator: "mod-2", Decision: audit.ReviewOverturn})
	assert.ErrorIs(err, ErrAlreadyReviewed)
	acct, err = eng.Enforcer.Store.Get(ctx, "user-1")
	require.NoError(err)
	assert.Equal(enforce.MaxReputation, acct.Reputation)

	queue, err := eng.Audit.Store.ReviewQueue(ctx, 0)
	require.NoError(err)
	for _, r := range queue {
		assert.NotEqual(out.AuditID, r.ID)
		assert.NotEqual(related[0].ID, r.ID)
	}
}

// submits a degraded warning for user-1 and reconciles it into a suspension
func escalatedFixture(t *testing.T) (*Engine, *audit.Record, *audit.Record) {
	ctx := context.Background()
	eng := EngineTestFixture()
	fetcher := eng.Fetcher.(*MemContentFetcher)
	eng.Classifier = &classifier.Static{Err: classifier.ErrUnavailable}

	text := "you are such a loser"
	fetcher.Put("post-1", text)
	out, err := eng.Submit(ctx, submission("post-1", "user-1", text))
	require.NoError(t, err)
	require.Equal(t, enforce.ActionWarn, out.Enforcement.ActionTaken)

	eng.Classifier = &classifier.Static{
		Scores: classifier.NewScores(true, map[string]bool{"harassment/threatening": true}, map[string]float64{"harassment/threatening": 0.9}),
	}
	report, err := eng.Reconcile(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Escalated)

	decision, err := eng.Audit.Store.Get(ctx, out.AuditID)
	require.NoError(t, err)
	related, err := eng.Audit.Store.Related(ctx, out.AuditID)
	require.NoError(t, err)
	require.Len(t, related, 1)
	return eng, decision, &related[0]
}

func TestReviewReconcileThenDecision(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng, decision, rec := escalatedFixture(t)

	// overturning the escalation falls back to the original warning
	rev, err := eng.Review(ctx, ReviewRequest{AuditID: rec.ID, Moderator: "mod-1", Decision: audit.ReviewOverturn})
	require.NoError(err)
	require.Len(rev.Reversals, 1)
	acct, err := eng.Enforcer.Store.Get(ctx, "user-1")
	require.NoError(err)
	assert.Equal(85, acct.Reputation)
	assert.Equal(1, acct.WarningCount)
	assert.Equal(enforce.StatusActive, acct.Status)

	// then the decision: only its own enforcement is left to reverse
	rev, err = eng.Review(ctx, ReviewRequest{AuditID: decision.ID, Moderator: "mod-2", Decision: audit.ReviewOverturn})
	require.NoError(err)
	assert.Empty(rev.Cascade)
	require.Len(rev.Reversals, 1)
	assert.Equal(decision.ID, rev.Reversals[0].RefID)

	acct, err = eng.Enforcer.Store.Get(ctx, "user-1")
	require.NoError(err)
	assert.Equal(enforce.MaxReputation, acct.Reputation)
	assert.Equal(0, acct.WarningCount)
}

func TestReviewUpheldReconcileStands(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng, decision, rec := escalatedFixture(t)

	_, err := eng.Review(ctx, ReviewRequest{AuditID: rec.ID, Moderator: "mod-1", Decision: audit.ReviewUphold})
	require.NoError(err)

	// the upheld suspension already replaced the warning
	rev, err := eng.Review(ctx, ReviewRequest{AuditID: decision.ID, Moderator: "mod-2", Decision: audit.ReviewOverturn})
	require.NoError(err)
	assert.Empty(rev.Cascade)
	assert.Empty(rev.Reversals)

	acct, err := eng.Enforcer.Store.Get(ctx, "user-1")
	require.NoError(err)
	assert.Equal(75, acct.Reputation)
	assert.Equal(enforce.StatusSuspended, acct.Status)
}

func TestReconcileAfterReviewDropped(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	fetcher := eng.Fetcher.(*MemContentFetcher)
	eng.Classifier = &classifier.Static{Err: classifier.ErrUnavailable}

	text := "you are such a loser"
	fetcher.Put("post-1", text)
	out, err := eng.Submit(ctx, submission("post-1", "user-1", text))
	require.NoError(err)
	_, err = eng.Review(ctx, ReviewRequest{AuditID: out.AuditID, Moderator: "mod-1", Decision: audit.ReviewOverturn})
	require.NoError(err)

	eng.Classifier = &classifier.Static{
		Scores: classifier.NewScores(true, map[string]bool{"harassment/threatening": true}, map[string]float64{"harassment/threatening": 0.9}),
	}
	report, err := eng.Reconcile(ctx)
	require.NoError(err)
	assert.Equal(ReconcileReport{Checked: 1, Reconciled: 1}, *report)

	queued, err := eng.Flags.Get(ctx, ReconcileFlagKey)
	require.NoError(err)
	assert.Empty(queued)
	acct, err := eng.Enforcer.Store.Get(ctx, "user-1")
	require.NoError(err)
	assert.Equal(enforce.MaxReputation, acct.Reputation)
	assert.Equal(enforce.StatusActive, acct.Status)
}

func TestReconcileLenientKeepsEnforcement(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	fetcher := eng.Fetcher.(*MemContentFetcher)
	eng.Classifier = &classifier.Static{Err: classifier.ErrUnavailable}

	fetcher.Put("post-1", "you idiot")
	out, err := eng.Submit(ctx, submission("post-1", "user-1", "you idiot"))
	require.NoError(err)

	eng.Classifier = classifier.NewNoop()
	report, err := eng.Reconcile(ctx)
	require.NoError(err)
	assert.Equal(ReconcileReport{Checked: 1, Reconciled: 1}, *report)

	related, err := eng.Audit.Store.Related(ctx, out.AuditID)
	require.NoError(err)
	require.Len(related, 1)
	assert.Nil(related[0].Enforcement)

	acct, err := eng.Enforcer.Store.Get(ctx, "user-1")
	require.NoError(err)
	assert.Equal(1, acct.WarningCount)
}

func TestReconcileMissingContent(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	eng.Classifier = &classifier.Static{Err: classifier.ErrUnavailable}

	_, err := eng.Submit(ctx, submission("post-gone", "user-1", "you idiot"))
	require.NoError(err)
	eng.Classifier = classifier.NewNoop()

	report, err := eng.Reconcile(ctx)
	require.NoError(err)
	assert.Equal(1, report.Reconciled)
	queued, err := eng.Flags.Get(ctx, ReconcileFlagKey)
	require.NoError(err)
	assert.Empty(queued)

	eng.Fetcher = nil
	_, err = eng.Reconcile(ctx)
	assert.ErrorIs(err, ErrNoFetcher)
}

func TestReviewUphold(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	out, err := eng.Submit(ctx, submission("post-1", "user-1", "You have such a sexy body!!"))
	require.NoError(err)

	queue, err := eng.Audit.Store.ReviewQueue(ctx, 10)
	require.NoError(err)
	require.Len(queue, 1)
	assert.Equal(out.AuditID, queue[0].ID)

	_, err = eng.Review(ctx, ReviewRequest{AuditID: out.AuditID, Decision: audit.ReviewUphold})
	assert.ErrorIs(err, ErrInvalidReview)
	_, err = eng.Review(ctx, ReviewRequest{AuditID: out.AuditID, Moderator: "mod-1", Decision: "shrug"})
	assert.ErrorIs(err, ErrInvalidReview)
	_, err = eng.Review(ctx, ReviewRequest{AuditID: "nope", Moderator: "mod-1", Decision: audit.ReviewUphold})
	assert.ErrorIs(err, audit.ErrNotFound)

	rev, err := eng.Review(ctx, ReviewRequest{AuditID: out.AuditID, Moderator: "mod-1", Decision: audit.ReviewUphold})
	require.NoError(err)
	assert.Empty(rev.Reversals)
	assert.Equal(out.AuditID, rev.Review.RefID)

	queue, err = eng.Audit.Store.ReviewQueue(ctx, 10)
	require.NoError(err)
	assert.Empty(queue)

	acct, err := eng.Enforcer.Store.Get(ctx, "user-1")
	require.NoError(err)
	assert.Equal(1, acct.WarningCount)
}

func TestReviewConcurrentOverturn(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	out, err := eng.Submit(ctx, submission("post-1", "user-1", "You have such a sexy body!!"))
	require.NoError(err)
	require.True(out.Enforcement.Changed())

	var wg sync.WaitGroup
	var ok, dup atomic.Int32
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.Review(ctx, ReviewRequest{AuditID: out.AuditID, Moderator: fmt.Sprintf("mod-%d", i), Decision: audit.ReviewOverturn})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrAlreadyReviewed):
				dup.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(int32(1), ok.Load())
	assert.Equal(int32(7), dup.Load())

	// reversed exactly once
	acct, err := eng.Enforcer.Store.Get(ctx, "user-1")
	require.NoError(err)
	assert.Equal(enforce.MaxReputation, acct.Reputation)
	assert.Equal(0, acct.WarningCount)
	related, err := eng.Audit.Store.Related(ctx, out.AuditID)
	require.NoError(err)
	assert.Len(related, 2)
}

func TestReviewOverturnKeepsEarlierWarning(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	fetcher := eng.Fetcher.(*MemContentFetcher)

	first, err := eng.Submit(ctx, submission("post-0", "user-1", "You have such a sexy body!!"))
	require.NoError(err)
	require.Equal(enforce.ActionWarn, first.Enforcement.ActionTaken)
	before, err := eng.Enforcer.Store.Get(ctx, "user-1")
	require.NoError(err)

	eng.Classifier = &classifier.Static{Err: classifier.ErrUnavailable}
	text := "you are such a loser"
	fetcher.Put("post-1", text)
	out, err := eng.Submit(ctx, submission("post-1", "user-1", text))
	require.NoError(err)
	eng.Classifier = &classifier.Static{
		Scores: classifier.NewScores(true, map[string]bool{"harassment/threatening": true}, map[string]float64{"harassment/threatening": 0.9}),
	}
	report, err := eng.Reconcile(ctx)
	require.NoError(err)
	require.Equal(1, report.Escalated)
	related, err := eng.Audit.Store.Related(ctx, out.AuditID)
	require.NoError(err)
	require.Len(related, 1)

	_, err = eng.Review(ctx, ReviewRequest{AuditID: out.AuditID, Moderator: "mod-1", Decision: audit.ReviewOverturn})
	require.NoError(err)
	acct, err := eng.Enforcer.Store.Get(ctx, "user-1")
	require.NoError(err)
	assert.Equal(before.Reputation, acct.Reputation)
	assert.Equal(1, acct.WarningCount)
	assert.Equal(enforce.StatusActive, acct.Status)

	// a second moderator working the queue cannot credit the account again
	queue, err := eng.Audit.Store.ReviewQueue(ctx, 0)
	require.NoError(err)
	for _, r := range queue {
		assert.NotEqual(related[0].ID, r.ID)
	}
	_, err = eng.Review(ctx, ReviewRequest{AuditID: related[0].ID, Moderator: "mod-2", Decision: audit.ReviewOverturn})
	assert.ErrorIs(err, ErrAlreadyReviewed)
	acct, err = eng.Enforcer.Store.Get(ctx, "user-1")
	require.NoError(err)
	assert.Equal(before.Reputation, acct.Reputation)
	assert.Equal(1, acct.WarningCount)
}
