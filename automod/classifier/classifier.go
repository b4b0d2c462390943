// Package classifier consumes the external, general-purpose content-safety classifier.
//
// The classifier itself is a third-party service; this package defines the contract (Classifier), an HTTP client for the
// moderation-endpoint JSON format, and the table which turns flagged categories in to synthetic violation rules so the
// verdict composer can merge them with custom rule matches.
package classifier

import (
	"context"
	"errors"
	"sort"
)

var ErrUnavailable = errors.New("content classifier unavailable")

type Classifier interface {
	Classify(ctx context.Context, text string) (*Scores, error)
}

type CategoryScore struct {
	Category string  `json:"category"`
	Score    float64 `json:"score"`
	Flagged  bool    `json:"flagged"`
}

// Scores is the classifier response for one piece of text.
type Scores struct {
	Flagged    bool            `json:"flagged"`
	Categories []CategoryScore `json:"categories"`
	Model      string          `json:"model,omitempty"`
}

// Returns the categories the classifier marked as flagged, sorted by category name.
func (s *Scores) FlaggedCategories() []CategoryScore {
	if s == nil {
		return nil
	}
	var out []CategoryScore
	for _, c := range s.Categories {
		if c.Flagged {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

// NewScores builds a Scores value from the per-category maps of a moderation response.
func NewScores(flagged bool, categories map[string]bool, scores map[string]float64) *Scores {
	s := &Scores{Flagged: flagged}
	for name, score := range scores {
		s.Categories = append(s.Categories, CategoryScore{
			Category: name,
			Score:    score,
			Flagged:  categories[name],
		})
	}
	// categories reported flagged without a score still count
	for name, f := range categories {
		if _, ok := scores[name]; !ok && f {
			s.Categories = append(s.Categories, CategoryScore{Category: name, Flagged: true})
		}
	}
	sort.Slice(s.Categories, func(i, j int) bool { return s.Categories[i].Category < s.Categories[j].Category })
	return s
}
