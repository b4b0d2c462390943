package cachestore

import (
	"context"
	"encoding/json"
	"fmt"
)

type CacheStore interface {
	// Returns the cached value and whether it was present.
	Get(ctx context.Context, name, key string) (string, bool, error)
	Set(ctx context.Context, name, key string, val string) error
	Purge(ctx context.Context, name, key string) error
}

// GetJSON reads and decodes a cached JSON value. A miss returns (nil, nil).
func GetJSON[T any](ctx context.Context, cs CacheStore, name, key string) (*T, error) {
	raw, ok, err := cs.Get(ctx, name, key)
	if err != nil || !ok {
		return nil, err
	}
	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decoding cached %s: %w", name, err)
	}
	return &out, nil
}

func SetJSON(ctx context.Context, cs CacheStore, name, key string, val any) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return cs.Set(ctx, name, key, string(b))
}
