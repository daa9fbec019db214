package cache

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternflow/tern/pkg/log"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.ErrorLevel})
	os.Exit(m.Run())
}

func newTestCache(t *testing.T) *LocalCache {
	t.Helper()
	c, err := New(t.TempDir())
	require.NoError(t, err)
	return c
}

func writeSource(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCachePathMaterializesOnce(t *testing.T) {
	c := newTestCache(t)
	session := uuid.New()
	source := writeSource(t, "payload")

	first, err := c.CachePath(session, source)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first, c.Root()))

	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	// The source is gone; a second call must reuse the cached copy.
	require.NoError(t, os.Remove(source))
	second, err := c.CachePath(session, source)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCachePathConcurrent(t *testing.T) {
	c := newTestCache(t)
	session := uuid.New()
	source := writeSource(t, "shared input")

	const callers = 16
	paths := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path, err := c.CachePath(session, source)
			assert.NoError(t, err)
			paths[i] = path
		}(i)
	}
	wg.Wait()

	for _, path := range paths {
		assert.Equal(t, paths[0], path)
	}
	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, "shared input", string(data))
}

func TestCachePathSessionIsolation(t *testing.T) {
	c := newTestCache(t)
	source := writeSource(t, "x")

	a, err := c.CachePath(uuid.New(), source)
	require.NoError(t, err)
	b, err := c.CachePath(uuid.New(), source)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestCachePathMissingSource(t *testing.T) {
	c := newTestCache(t)
	_, err := c.CachePath(uuid.New(), filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}

func TestScratchDirNeverReused(t *testing.T) {
	c := newTestCache(t)

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		dir, err := c.ScratchDir()
		require.NoError(t, err)
		assert.False(t, seen[dir])
		seen[dir] = true

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestCloseRemovesOwnedRoot(t *testing.T) {
	c, err := New("")
	require.NoError(t, err)
	root := c.Root()

	_, err = c.ScratchDir()
	require.NoError(t, err)

	require.NoError(t, c.Close())
	_, err = os.Stat(root)
	assert.True(t, os.IsNotExist(err))

	// Close is idempotent.
	assert.NoError(t, c.Close())
}

func TestCloseKeepsProvidedRoot(t *testing.T) {
	root := t.TempDir()
	c, err := New(root)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	_, err = os.Stat(root)
	assert.NoError(t, err)
}
