package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/spotter-social/spotter/automod/audit"
	"github.com/spotter-social/spotter/automod/catalog"
	"github.com/spotter-social/spotter/automod/classifier"
	"github.com/spotter-social/spotter/automod/enforce"
	"github.com/spotter-social/spotter/automod/verdict"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func submission(ref, author, text string) Submission {
	return Submission{ContentRef: ref, AuthorID: author, Content: text, Context: publicPost}
}

func TestModerateScenarios(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	res, err := eng.Moderate(ctx, "You have such a sexy body!!", publicPost)
	require.NoError(err)
	assert.Equal(verdict.ActionFlagged, res.Action)
	assert.Equal("INAPPROPRIATE_PERSONAL_COMMENTS", res.PrimaryRuleID)
	assert.True(res.RequiresHumanReview)
	assert.Equal(verdict.PriorityMedium, res.ReviewPriority)
	assert.Equal(verdict.AccountActionWarn, res.SuggestedAccountAction)
	assert.InDelta(0.7, res.Confidence, 0.0001)

	res, err = eng.Moderate(ctx, "DM me, my number is 555-123-4567", publicPost)
	require.NoError(err)
	assert.Equal(verdict.ActionBlocked, res.Action)
	assert.Equal("UNSOLICITED_PERSONAL_ATTENTION", res.PrimaryRuleID)
	assert.Equal(5, res.Severity)
	assert.True(res.AutoBlock)
	assert.Equal(verdict.PriorityHigh, res.ReviewPriority)

	res, err = eng.Moderate(ctx, "Great squat depth today, keep pushing your goals!", publicPost)
	require.NoError(err)
	assert.Equal(verdict.ActionApprove, res.Action)
	assert.Zero(res.Confidence)
	assert.False(res.Degraded)
}

func TestModerateIdempotent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	eng.Classifier = &classifier.Static{
		Scores: classifier.NewScores(true, map[string]bool{"harassment": true}, map[string]float64{"harassment": 0.8}),
	}

	first, err := eng.Moderate(ctx, "shut up, loser", publicPost)
	assert.NoError(err)
	for range 5 {
		again, err := eng.Moderate(ctx, "shut up, loser", publicPost)
		assert.NoError(err)
		assert.Equal(first, again)
	}
	assert.Equal(verdict.SourceCombined, first.Source)
}

func TestModeratePending(t *testing.T) {
	assert := assert.New(t)
	eng := EngineTestFixture()
	eng.Classifier = &classifier.Static{Scores: &classifier.Scores{}, Delay: time.Second}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	out, err := eng.Submit(ctx, submission("post-1", "user-1", "hello gym friends"))
	assert.ErrorIs(err, ErrPending)
	assert.Equal(DispositionHold, out.Disposition)
	assert.Nil(out.Verdict)
}

func TestModerateClassifierTimeoutIsDegraded(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	eng := EngineTestFixture()
	eng.Classifier = &classifier.Static{Scores: &classifier.Scores{}, Delay: time.Second}
	eng.ClassifierTimeout = 10 * time.Millisecond

	res, err := eng.Moderate(context.Background(), "you idiot", publicPost)
	require.NoError(err)
	assert.True(res.Degraded)
	assert.Equal(verdict.SourceCustomRules, res.Source)
	assert.Equal("ABUSIVE_LANGUAGE", res.PrimaryRuleID)
}

func TestSubmitEnforcement(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	out, err := eng.Submit(ctx, submission("post-1", "user-1", "DM me, my number is 555-123-4567"))
	require.NoError(err)
	assert.Equal(DispositionReject, out.Disposition)
	require.NotNil(out.Enforcement)
	assert.Equal(enforce.ActionSuspend3d, out.Enforcement.ActionTaken)
	assert.Equal(-25, out.Enforcement.ReputationDelta)
	assert.Equal(75, out.Enforcement.Reputation)
	assert.NotEmpty(out.AuditID)
	assert.False(out.AuditFailed)

	rec, err := eng.Audit.Store.Get(ctx, out.AuditID)
	require.NoError(err)
	assert.Equal(audit.KindDecision, rec.Kind)
	assert.Equal(publicPost, rec.Context)
	assert.Equal(enforce.ActionSuspend3d, rec.Enforcement.ActionTaken)

	view, err := eng.AccountStatus(ctx, "user-1")
	require.NoError(err)
	assert.Equal(enforce.StatusSuspended, view.Account.Status)

	// approvals leave the account alone
	out, err = eng.Submit(ctx, submission("post-2", "user-2", "Great squat depth today, keep pushing your goals!"))
	require.NoError(err)
	assert.Equal(DispositionPublish, out.Disposition)
	assert.Nil(out.Enforcement)

	counts, err := eng.GetCounts(ctx, CounterRuleHits, "UNSOLICITED_PERSONAL_ATTENTION")
	require.NoError(err)
	assert.Equal(1, counts["total"])
	counts, err = eng.GetCounts(ctx, CounterVerdicts, string(verdict.ActionApprove))
	require.NoError(err)
	assert.Equal(1, counts["day"])
	counts, err = eng.GetCounts(ctx, CounterAuthorViolations, "user-1")
	require.NoError(err)
	assert.Equal(1, counts["hour"])
	counts, err = eng.GetCountsDistinct(ctx, CounterRuleAuthors, "UNSOLICITED_PERSONAL_ATTENTION")
	require.NoError(err)
	assert.Equal(1, counts["total"])
}

func TestSubmitLowReputationSuspends(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	_, err := eng.Enforcer.Store.Update(ctx, "user-1", func(acct *enforce.Account) (bool, error) {
		acct.Reputation = 20
		acct.WarningCount = 4
		return true, nil
	})
	require.NoError(err)

	out, err := eng.Submit(ctx, submission("post-1", "user-1", "what a loser"))
	require.NoError(err)
	assert.Equal(DispositionHold, out.Disposition)
	assert.Equal(enforce.ActionSuspend3d, out.Enforcement.ActionTaken)
	assert.Equal(5, out.Enforcement.Reputation)
}

func TestSubmitTrustedAuthor(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	spam := "use my code for a discount"
	coach := Submission{ContentRef: "post-1", AuthorID: "coach-anna", Content: spam, Context: ContentContext{
		ContentType: catalog.ContentPost,
		AuthorRole:  catalog.RoleCoach,
		Visibility:  catalog.VisibilityPublic,
	}}
	out, err := eng.Submit(ctx, coach)
	require.NoError(err)
	assert.Equal(verdict.ActionFlagged, out.Verdict.Action)
	assert.Nil(out.Enforcement)
	assert.NotEmpty(out.AuditID)

	other := coach
	other.AuthorID = "coach-bob"
	out, err = eng.Submit(ctx, other)
	require.NoError(err)
	require.NotNil(out.Enforcement)
	assert.Equal(enforce.ActionWarn, out.Enforcement.ActionTaken)
}

func TestConcurrentSubmissionsSameAuthor(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.Submit(ctx, submission("post", "user-1", "you idiot"))
			assert.NoError(err)
		}()
	}
	wg.Wait()

	acct, err := eng.Enforcer.Store.Get(ctx, "user-1")
	require.NoError(err)
	// three warnings, then a suspension once reputation drops under 50
	assert.Equal(40, acct.Reputation)
	assert.Equal(3, acct.WarningCount)
	assert.Equal(enforce.StatusSuspended, acct.Status)
}

type failingAuditStore struct {
	audit.Store
}

func (s failingAuditStore) Append(ctx context.Context, rec *audit.Record) error {
	return errors.New("disk full")
}

type recordingAlerter struct {
	mu   sync.Mutex
	msgs []string
}

func (a *recordingAlerter) Alert(ctx context.Context, msg string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.msgs = append(a.msgs, msg)
	return nil
}

func TestSubmitAuditFailure(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	alerter := &recordingAlerter{}
	eng.Audit = audit.NewLogger(failingAuditStore{audit.NewMemStore()}, alerter, nil)
	eng.Classifier = &classifier.Static{Err: classifier.ErrUnavailable}

	out, err := eng.Submit(ctx, submission("post-1", "user-1", "you idiot"))
	require.NoError(err)
	assert.True(out.AuditFailed)
	require.NotNil(out.Verdict)
	assert.Equal(verdict.ActionFlagged, out.Verdict.Action)
	// one for the lost record, one for the verdict that will not be reconciled
	require.Len(alerter.msgs, 2)
	assert.Contains(alerter.msgs[0], "audit write failed")
	assert.Contains(alerter.msgs[1], "not queued for reconciliation")
	assert.Contains(alerter.msgs[1], "content=post-1")

	// nothing durable to reconcile against
	queued, err := eng.Flags.Get(ctx, ReconcileFlagKey)
	require.NoError(err)
	assert.Empty(queued)
}

type brokenEnforceStore struct {
	*enforce.MemStore
}

func (s brokenEnforceStore) Update(ctx context.Context, userID string, fn enforce.UpdateFunc) (*enforce.Account, error) {
	return nil, errors.New("connection refused")
}

func TestSubmitEnforcementFailure(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()
	eng.Enforcer.Store = brokenEnforceStore{enforce.NewMemStore()}
	eng.Enforcer.MaxTries = 2

	out, err := eng.Submit(ctx, submission("post-1", "user-1", "DM me, my number is 555-123-4567"))
	assert.Error(err)
	require.NotNil(out.Verdict)
	assert.Equal(DispositionReject, out.Disposition)
	assert.Nil(out.Enforcement)

	// the decision is still on record
	rec, err := eng.Audit.Store.Get(ctx, out.AuditID)
	require.NoError(err)
	assert.Nil(rec.Enforcement)
}

func TestReloadRules(t *testing.T) {
	assert := assert.New(t)
	eng := EngineTestFixture()

	_, err := eng.ReloadRules("testdata/does-not-exist.yaml")
	assert.Error(err)
	// still the default catalog
	assert.Equal(len(catalog.DefaultRules()), eng.Rules.Load().Len())
}

func TestReloadVocabulary(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng := EngineTestFixture()

	require.NoError(eng.ReloadVocabulary(ctx))
	assert.True(eng.Detector().Detect("deadlift day").IsOnTopic)

	sets := eng.Sets.(interface{ Put(string, []string) })
	sets.Put(SetFitnessKeywords, []string{"kettlebell"})
	require.NoError(eng.ReloadVocabulary(ctx))
	assert.False(eng.Detector().Detect("deadlift day").IsOnTopic)
	assert.True(eng.Detector().Detect("kettlebell swings").IsOnTopic)
}
