package engine

import (
	"testing"

	"github.com/spotter-social/spotter/automod/catalog"
	"github.com/spotter-social/spotter/automod/classifier"
	"github.com/spotter-social/spotter/automod/verdict"

	"github.com/stretchr/testify/assert"
)

func ruleMatch(t *testing.T, id string, conf float64, matches ...string) RuleMatch {
	r, ok := catalog.MustDefault().Get(id)
	if !ok {
		t.Fatalf("no default rule %s", id)
	}
	return RuleMatch{Rule: r, Confidence: conf, Matches: matches}
}

func TestComposeApprove(t *testing.T) {
	assert := assert.New(t)

	res := Compose(MatchSet{}, classifier.NewScores(false, map[string]bool{"harassment": false}, map[string]float64{"harassment": 0.2}), PositiveSignal{}, false)
	assert.Equal(verdict.ActionApprove, res.Action)
	assert.Zero(res.Confidence)
	assert.Equal(approveReason, res.Reason)
	assert.Empty(res.Categories)
	assert.Equal(verdict.SourceCombined, res.Source)
	assert.False(res.RequiresHumanReview)
	assert.Equal(verdict.PriorityLow, res.ReviewPriority)
	assert.Equal(verdict.AccountActionNone, res.SuggestedAccountAction)
	assert.False(res.Appealable)

	res = Compose(nil, nil, PositiveSignal{}, true)
	assert.Equal(verdict.ActionApprove, res.Action)
	assert.Equal(verdict.SourceCustomRules, res.Source)
	assert.True(res.Degraded)
}

func TestComposePrimaryBySeverity(t *testing.T) {
	assert := assert.New(t)

	ms := MatchSet{
		ruleMatch(t, "ABUSIVE_LANGUAGE", 0.9, "idiot"),
		ruleMatch(t, "HARASSMENT_THREATS", 0.85, "kys"),
	}
	res := Compose(ms, nil, PositiveSignal{}, false)
	assert.Equal(verdict.ActionBlocked, res.Action)
	assert.Equal("HARASSMENT_THREATS", res.PrimaryRuleID)
	assert.Equal(5, res.Severity)
	assert.True(res.AutoBlock)
	assert.True(res.RequiresHumanReview)
	assert.Equal(verdict.PriorityHigh, res.ReviewPriority)
	assert.Equal(verdict.AccountActionSuspend, res.SuggestedAccountAction)
	assert.Equal(verdict.SourceCustomRules, res.Source)
	assert.Len(res.Categories, 2)
	assert.Equal(`Threats and incitement (harassment, severity 5): matched "kys" (+1 more)`, res.Reason)
}

func TestComposeCustomWinsTie(t *testing.T) {
	assert := assert.New(t)

	ms := MatchSet{ruleMatch(t, "ABUSIVE_LANGUAGE", 0.6, "loser")}
	scores := classifier.NewScores(true, map[string]bool{"harassment": true}, map[string]float64{"harassment": 0.6})
	res := Compose(ms, scores, PositiveSignal{}, false)
	assert.Equal("ABUSIVE_LANGUAGE", res.PrimaryRuleID)
	assert.Equal(verdict.SourceCombined, res.Source)
	assert.Len(res.Categories, 2)
	assert.Equal(verdict.SourceCustomRules, res.Categories[0].Source)
	assert.Equal("external:harassment", res.Categories[1].RuleID)

	// a stronger external category wins
	scores = classifier.NewScores(true, map[string]bool{"harassment/threatening": true}, map[string]float64{"harassment/threatening": 0.7})
	res = Compose(ms, scores, PositiveSignal{}, false)
	assert.Equal("external:harassment/threatening", res.PrimaryRuleID)
	assert.Equal(verdict.ActionBlocked, res.Action)
	assert.InDelta(0.7, res.Confidence, 0.0001)

	// external only
	res = Compose(nil, scores, PositiveSignal{}, false)
	assert.Equal(verdict.SourceExternalClassifier, res.Source)

	// degraded ignores any scores
	res = Compose(ms, scores, PositiveSignal{}, true)
	assert.Equal("ABUSIVE_LANGUAGE", res.PrimaryRuleID)
	assert.Len(res.Categories, 1)
	assert.Equal(verdict.SourceCustomRules, res.Source)
	assert.True(res.Degraded)
}

func TestComposeConfidenceClamp(t *testing.T) {
	assert := assert.New(t)
	ps := PositiveSignal{IsOnTopic: true, ConfidenceBonus: 0.3}

	// positive signal lowers confidence, but not below the rule's base confidence
	res := Compose(MatchSet{ruleMatch(t, "ABUSIVE_LANGUAGE", 0.9, "loser")}, nil, ps, false)
	assert.InDelta(0.6, res.Confidence, 0.0001)

	res = Compose(MatchSet{ruleMatch(t, "ABUSIVE_LANGUAGE", 0.7, "loser")}, nil, ps, false)
	assert.InDelta(0.5, res.Confidence, 0.0001)

	// a match below base confidence keeps its own value
	res = Compose(MatchSet{ruleMatch(t, "ABUSIVE_LANGUAGE", 0.4, "loser")}, nil, ps, false)
	assert.InDelta(0.4, res.Confidence, 0.0001)

	for _, c := range []float64{-1, 0, 0.5, 1, 3} {
		res = Compose(MatchSet{ruleMatch(t, "HARASSMENT_THREATS", c, "kys")}, nil, PositiveSignal{}, false)
		assert.GreaterOrEqual(res.Confidence, 0.0)
		assert.LessOrEqual(res.Confidence, 1.0)
	}
}

func TestComposeSuggestedAction(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(verdict.AccountActionNone, suggestedAccountAction(verdict.ActionFlagged, 2))
	assert.Equal(verdict.AccountActionWarn, suggestedAccountAction(verdict.ActionFlagged, 3))
	assert.Equal(verdict.AccountActionSuspend, suggestedAccountAction(verdict.ActionBlocked, 4))
	assert.Equal(verdict.AccountActionNone, suggestedAccountAction(verdict.ActionApprove, 5))
}
