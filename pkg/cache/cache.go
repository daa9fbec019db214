package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/ternflow/tern/pkg/fsutil"
	"github.com/ternflow/tern/pkg/log"
	"github.com/ternflow/tern/pkg/metrics"
)

// LocalCache is the per-process worker scratch area. It owns a single root
// directory holding both the session content cache and every scratch
// directory created for envelope executions. Close removes the whole tree
// when New created the root, and leaves a caller-provided root in place;
// scratch directories are never reused across tasks.
type LocalCache struct {
	root   string
	owned  bool // root was created by us and is removed on Close
	group  singleflight.Group
	logger zerolog.Logger

	mu     sync.Mutex
	closed bool
}

// New creates a local cache rooted at root. An empty root allocates a fresh
// temporary directory that Close deletes.
func New(root string) (*LocalCache, error) {
	owned := false
	if root == "" {
		dir, err := os.MkdirTemp("", "tern-cache-")
		if err != nil {
			return nil, fmt.Errorf("failed to create cache root: %w", err)
		}
		root = dir
		owned = true
	} else {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache root %s: %w", root, err)
		}
	}
	return &LocalCache{
		root:   root,
		owned:  owned,
		logger: log.WithComponent("cache"),
	}, nil
}

// Root returns the cache root directory.
func (c *LocalCache) Root() string {
	return c.root
}

// ScratchDir creates a fresh scratch directory for one envelope execution.
func (c *LocalCache) ScratchDir() (string, error) {
	dir, err := os.MkdirTemp(c.root, "scratch-")
	if err != nil {
		return "", fmt.Errorf("failed to create scratch directory: %w", err)
	}
	return dir, nil
}

// CachePath returns the stable cache path for (sessionID, source),
// materializing the source into the cache on first use. Concurrent callers
// for the same key observe exactly one materialization; later callers reuse
// the existing file.
func (c *LocalCache) CachePath(sessionID uuid.UUID, source string) (string, error) {
	target := c.keyPath(sessionID, source)

	_, err, _ := c.group.Do(target, func() (any, error) {
		if fsutil.Exists(target) {
			return nil, nil
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache entry parent: %w", err)
		}
		// Materialize into a sibling temp path and rename, so a crashed
		// copy never leaves a half-written entry at the final path.
		tmp := target + ".part"
		if err := fsutil.CopyPath(source, tmp); err != nil {
			os.RemoveAll(tmp)
			return nil, fmt.Errorf("failed to materialize %s: %w", source, err)
		}
		if err := os.Rename(tmp, target); err != nil {
			os.RemoveAll(tmp)
			return nil, fmt.Errorf("failed to commit cache entry: %w", err)
		}
		metrics.CacheMaterializations.Inc()
		c.logger.Debug().
			Str("session_id", sessionID.String()).
			Str("source", source).
			Str("cache_path", target).
			Msg("Materialized input into local cache")
		return nil, nil
	})
	if err != nil {
		return "", err
	}
	return target, nil
}

// keyPath maps (sessionID, source) to a stable path under the cache root.
// The source path is hashed to keep the layout flat; the base name is kept
// for readability.
func (c *LocalCache) keyPath(sessionID uuid.UUID, source string) string {
	sum := sha256.Sum256([]byte(source))
	return filepath.Join(c.root, "sessions", sessionID.String(),
		hex.EncodeToString(sum[:8]), filepath.Base(source))
}

// Close deletes the cache tree if this process created it. Intended to run
// from the worker's shutdown path.
func (c *LocalCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if !c.owned {
		return nil
	}
	if err := os.RemoveAll(c.root); err != nil {
		return fmt.Errorf("failed to remove cache root %s: %w", c.root, err)
	}
	return nil
}
