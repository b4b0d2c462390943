// Package catalog holds the table of violation rules evaluated by the moderation engine.
//
// Rules are plain configuration records, loaded from the compiled-in defaults or from a JSON/YAML file. A Catalog is immutable once built; a Holder swaps whole catalogs atomically so rules can be reloaded while content is being evaluated.
package catalog

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/spotter-social/spotter/automod/keyword"
)

// Compiled is a validated rule with its match inputs pre-processed.
type Compiled struct {
	Rule

	// lower-cased literal patterns
	LowerPatterns []string
	// each keyword tokenized the same way content is
	KeywordTokens [][]string
	Regexes       []*regexp.Regexp
}

type Catalog struct {
	rules []*Compiled
	byID  map[string]*Compiled
}

// New validates every rule and builds an immutable catalog. A single malformed rule rejects the whole catalog.
func New(rules []Rule) (*Catalog, error) {
	var errs []error
	c := &Catalog{
		rules: make([]*Compiled, 0, len(rules)),
		byID:  make(map[string]*Compiled, len(rules)),
	}
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dupe := c.byID[r.ID]; dupe {
			errs = append(errs, fmt.Errorf("%w %q: duplicate id", ErrInvalidRule, r.ID))
			continue
		}
		cr := compile(r)
		c.rules = append(c.rules, cr)
		c.byID[r.ID] = cr
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return c, nil
}

func compile(r Rule) *Compiled {
	cr := &Compiled{Rule: r}
	for _, p := range r.Patterns {
		cr.LowerPatterns = append(cr.LowerPatterns, strings.ToLower(p))
	}
	for _, kw := range r.Keywords {
		cr.KeywordTokens = append(cr.KeywordTokens, keyword.TokenizeText(kw))
	}
	for _, re := range r.RegexPatterns {
		// already validated; matching is always case-insensitive
		cr.Regexes = append(cr.Regexes, regexp.MustCompile("(?i)"+re))
	}
	return cr
}

// Rules returns the compiled rules in catalog order. Callers must not modify the returned values.
func (c *Catalog) Rules() []*Compiled {
	return c.rules
}

func (c *Catalog) Get(id string) (*Compiled, bool) {
	r, ok := c.byID[id]
	return r, ok
}

func (c *Catalog) Len() int {
	return len(c.rules)
}

// Applicable filters the catalog to the rules whose declared scope covers s.
func (c *Catalog) Applicable(s Scope) []*Compiled {
	out := make([]*Compiled, 0, len(c.rules))
	for _, r := range c.rules {
		if r.AppliesTo(s) {
			out = append(out, r)
		}
	}
	return out
}

// Definitions returns copies of the source rule definitions, eg for admin listing or dumping to a file.
func (c *Catalog) Definitions() []Rule {
	out := make([]Rule, 0, len(c.rules))
	for _, r := range c.rules {
		out = append(out, r.Rule)
	}
	return out
}

// Holder publishes the active catalog. Readers never block; Swap replaces the whole table.
type Holder struct {
	cur atomic.Pointer[Catalog]
}

func NewHolder(c *Catalog) *Holder {
	h := &Holder{}
	h.cur.Store(c)
	return h
}

func (h *Holder) Load() *Catalog {
	return h.cur.Load()
}

func (h *Holder) Swap(c *Catalog) *Catalog {
	return h.cur.Swap(c)
}
