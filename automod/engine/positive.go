package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/spotter-social/spotter/automod/keyword"
	"github.com/spotter-social/spotter/automod/setstore"
)

const (
	// setstore names which override the compiled-in vocabulary
	SetFitnessKeywords    = "fitness-keywords"
	SetEncouragingPhrases = "encouraging-phrases"

	maxPositiveBonus        = 0.3
	positiveKeywordWeight   = 0.1
	encouragingPhraseWeight = 0.15
)

var defaultFitnessKeywords = []string{
	"workout", "workouts", "training", "squat", "squats", "deadlift", "deadlifts", "bench", "press",
	"cardio", "run", "running", "reps", "sets", "pr", "gains", "protein", "stretch", "stretching",
	"mobility", "yoga", "lifting", "gym", "goal", "goals", "form", "recovery", "hiit", "rowing",
	"cycling", "marathon", "strength", "endurance", "plank",
}

var defaultEncouragingPhrases = []string{
	"keep pushing", "great job", "you got this", "proud of you", "well done", "keep it up",
	"nice work", "great form", "crushed it", "so inspiring",
}

// Detector finds on-topic fitness vocabulary and encouragement, used to soften borderline calls.
type Detector struct {
	keywords map[string]bool
	phrases  []string
}

func NewDetector(keywords, phrases []string) *Detector {
	d := &Detector{keywords: make(map[string]bool, len(keywords))}
	for _, kw := range keywords {
		for _, tok := range keyword.TokenizeText(kw) {
			d.keywords[tok] = true
		}
	}
	for _, p := range phrases {
		if n := strings.TrimSpace(keyword.NormalizeText(p)); n != "" {
			d.phrases = append(d.phrases, n)
		}
	}
	return d
}

func DefaultDetector() *Detector {
	return NewDetector(defaultFitnessKeywords, defaultEncouragingPhrases)
}

// LoadDetector builds a detector from the setstore, falling back to the compiled-in list for any set which isn't defined.
func LoadDetector(ctx context.Context, sets setstore.SetStore) (*Detector, error) {
	keywords, found, err := sets.Members(ctx, SetFitnessKeywords)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", SetFitnessKeywords, err)
	}
	if !found {
		keywords = defaultFitnessKeywords
	}
	phrases, found, err := sets.Members(ctx, SetEncouragingPhrases)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", SetEncouragingPhrases, err)
	}
	if !found {
		phrases = defaultEncouragingPhrases
	}
	return NewDetector(keywords, phrases), nil
}

func (d *Detector) Detect(content string) PositiveSignal {
	var sig PositiveSignal
	seen := make(map[string]bool)
	for _, tok := range keyword.TokenizeText(content) {
		if d.keywords[tok] && !seen[tok] {
			seen[tok] = true
			sig.Keywords = append(sig.Keywords, tok)
		}
	}
	norm := keyword.NormalizeText(content)
	for _, p := range d.phrases {
		if strings.Contains(norm, p) {
			sig.Phrases = append(sig.Phrases, p)
		}
	}
	sig.IsOnTopic = len(sig.Keywords) > 0
	sig.ConfidenceBonus = min(maxPositiveBonus, positiveKeywordWeight*float64(len(sig.Keywords))+encouragingPhraseWeight*float64(len(sig.Phrases)))
	return sig
}
