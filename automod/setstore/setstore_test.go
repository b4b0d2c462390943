package setstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemSetStore(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	ss := NewMemSetStore()
	ok, err := ss.InSet(ctx, "trusted-authors", "coach-1")
	assert.NoError(err)
	assert.False(ok)

	_, found, err := ss.Members(ctx, "trusted-authors")
	assert.NoError(err)
	assert.False(found)

	ss.Put("trusted-authors", []string{"coach-2", "coach-1"})
	ok, err = ss.InSet(ctx, "trusted-authors", "coach-1")
	assert.NoError(err)
	assert.True(ok)

	l, found, err := ss.Members(ctx, "trusted-authors")
	assert.NoError(err)
	assert.True(found)
	assert.Equal([]string{"coach-1", "coach-2"}, l)

	// an empty set is still defined
	ss.Put("fitness-keywords", nil)
	l, found, err = ss.Members(ctx, "fitness-keywords")
	assert.NoError(err)
	assert.True(found)
	assert.Empty(l)
}

func TestLoadFromFile(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "sets.json")
	require.NoError(os.WriteFile(jsonPath, []byte(`{"trusted-authors": ["coach-1"], "fitness-keywords": ["squat", "rowing"]}`), 0o644))
	yamlPath := filepath.Join(dir, "sets.yaml")
	require.NoError(os.WriteFile(yamlPath, []byte("encouraging-phrases:\n  - keep going\n  - crushed it\n"), 0o644))

	ss := NewMemSetStore()
	require.NoError(ss.LoadFromFile(jsonPath))
	require.NoError(ss.LoadFromFile(yamlPath))

	ok, err := ss.InSet(ctx, "fitness-keywords", "rowing")
	assert.NoError(err)
	assert.True(ok)
	l, _, err := ss.Members(ctx, "encouraging-phrases")
	assert.NoError(err)
	assert.Equal([]string{"crushed it", "keep going"}, l)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(os.WriteFile(bad, []byte(`["not", "an", "object"]`), 0o644))
	assert.Error(ss.LoadFromFile(bad))
	assert.Error(ss.LoadFromFile(filepath.Join(dir, "missing.json")))
}
