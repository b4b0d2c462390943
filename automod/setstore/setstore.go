package setstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Named sets of strings: positive-signal vocabulary, trusted authors, etc.
type SetStore interface {
	InSet(ctx context.Context, name, val string) (bool, error)
	// Members returns the sorted set contents, and false if the set is not defined at all.
	Members(ctx context.Context, name string) ([]string, bool, error)
}

type MemSetStore struct {
	mu   *sync.RWMutex
	Sets map[string]map[string]bool
}

func NewMemSetStore() MemSetStore {
	return MemSetStore{
		mu:   &sync.RWMutex{},
		Sets: make(map[string]map[string]bool),
	}
}

func (s MemSetStore) InSet(ctx context.Context, name, val string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.Sets[name]
	if !ok {
		// NOTE: currently returns false when entire set isn't found
		return false, nil
	}
	return set[val], nil
}

func (s MemSetStore) Members(ctx context.Context, name string) ([]string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.Sets[name]
	if !ok {
		return nil, false, nil
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out, true, nil
}

// Replaces the named set.
func (s MemSetStore) Put(name string, vals []string) {
	m := make(map[string]bool, len(vals))
	for _, val := range vals {
		m[val] = true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Sets[name] = m
}

// Loads sets from a file holding a single object of set name to list of values. Files ending in
// .yaml or .yml are parsed as YAML, anything else as JSON. Sets present in the file replace
// existing sets of the same name.
func (s MemSetStore) LoadFromFile(p string) error {
	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	raw, err := io.ReadAll(f)
	if err != nil {
		return err
	}

	var sets map[string][]string
	switch strings.ToLower(filepath.Ext(p)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &sets)
	default:
		err = json.Unmarshal(raw, &sets)
	}
	if err != nil {
		return fmt.Errorf("parsing set file %s: %w", p, err)
	}

	for name, l := range sets {
		s.Put(name, l)
	}
	return nil
}
