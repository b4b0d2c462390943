package engine

import (
	"strings"

	"github.com/spotter-social/spotter/automod/catalog"
	"github.com/spotter-social/spotter/automod/keyword"

	"github.com/rivo/uniseg"
)

const (
	// content longer than this (in user-perceived characters) gets a confidence penalty
	LongContentChars = 500

	longContentPenalty = 0.1
	perMatchBonus      = 0.1
	maxMatchBonus      = 0.3
	patternHitBonus    = 0.1
)

// Matcher evaluates content against whatever catalog is currently published in the holder.
type Matcher struct {
	Rules *catalog.Holder
}

func (m *Matcher) Evaluate(content string, cc ContentContext) MatchSet {
	return Evaluate(m.Rules.Load(), content, cc)
}

// Evaluate runs every rule applicable to cc against content. It has no side effects.
func Evaluate(cat *catalog.Catalog, content string, cc ContentContext) MatchSet {
	lower := strings.ToLower(content)
	tokens := keyword.TokenizeText(content)
	long := longerThan(content, LongContentChars)

	out := MatchSet{}
	for _, rule := range cat.Applicable(cc) {
		var matches []string
		seen := make(map[string]bool)
		add := func(s string) {
			k := strings.ToLower(s)
			if !seen[k] {
				seen[k] = true
				matches = append(matches, s)
			}
		}

		patternHit := false
		for i, p := range rule.LowerPatterns {
			if strings.Contains(lower, p) {
				patternHit = true
				add(rule.Patterns[i])
			}
		}
		for i, seq := range rule.KeywordTokens {
			if keyword.ContainsSequence(tokens, seq) {
				add(rule.Keywords[i])
			}
		}
		for _, re := range rule.Regexes {
			for _, m := range re.FindAllString(content, -1) {
				add(m)
			}
		}

		if len(matches) == 0 {
			continue
		}
		out = append(out, RuleMatch{
			Rule:       rule,
			Confidence: matchConfidence(rule.BaseConfidence, len(matches), long, patternHit),
			Matches:    matches,
			PatternHit: patternHit,
		})
	}
	return out
}

// counts grapheme clusters, so emoji sequences and combining marks count once
func longerThan(s string, limit int) bool {
	if len(s) <= limit {
		return false
	}
	n := 0
	gr := uniseg.NewGraphemes(s)
	for gr.Next() {
		n++
		if n > limit {
			return true
		}
	}
	return false
}

func matchConfidence(base float64, count int, long, patternHit bool) float64 {
	conf := base + min(maxMatchBonus, perMatchBonus*float64(count))
	if long {
		conf -= longContentPenalty
	}
	if patternHit {
		conf += patternHitBonus
	}
	return clamp01(conf)
}

func clamp01(f float64) float64 {
	return max(0, min(1, f))
}
