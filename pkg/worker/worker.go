package worker

import (
	"fmt"
	"os"
	"runtime"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ternflow/tern/pkg/cache"
	"github.com/ternflow/tern/pkg/compute"
	"github.com/ternflow/tern/pkg/log"
	"github.com/ternflow/tern/pkg/remote"
)

// Config holds worker configuration
type Config struct {
	NodeID    string
	Hostname  string
	Slots     int    // concurrent envelope capacity; 0 sizes from the CPU count
	CacheRoot string // empty allocates a temporary cache removed on Close
	Registry  *remote.Registry
}

// Worker hosts envelope execution on one node: it owns the local cache and
// the session operator registry, and joins a compute grid as a node carrying
// them as its environment.
type Worker struct {
	nodeID   string
	hostname string
	slots    int
	cache    *cache.LocalCache
	registry *remote.Registry
	logger   zerolog.Logger
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) (*Worker, error) {
	localCache, err := cache.New(cfg.CacheRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize local cache: %w", err)
	}

	nodeID := cfg.NodeID
	if nodeID == "" {
		nodeID = uuid.New().String()
	}
	hostname := cfg.Hostname
	if hostname == "" {
		hostname, _ = os.Hostname()
	}
	slots := cfg.Slots
	if slots <= 0 {
		slots = runtime.NumCPU()
	}
	registry := cfg.Registry
	if registry == nil {
		registry = remote.NewRegistry()
	}

	return &Worker{
		nodeID:   nodeID,
		hostname: hostname,
		slots:    slots,
		cache:    localCache,
		registry: registry,
		logger:   log.WithComponent("worker"),
	}, nil
}

// Join registers the worker with a grid as a node whose environment carries
// the cache and operator registry.
func (w *Worker) Join(grid *compute.Grid) error {
	node := &compute.Node{
		ID:       w.nodeID,
		Hostname: w.hostname,
		Slots:    w.slots,
		Env: &remote.WorkerEnv{
			Cache:     w.cache,
			Operators: remote.NewStaticProvider(w.registry),
		},
	}
	if err := grid.AddNode(node); err != nil {
		return err
	}
	w.logger.Info().Str("node_id", w.nodeID).Int("slots", w.slots).Msg("Worker joined grid")
	return nil
}

// NodeID returns the worker's node identifier.
func (w *Worker) NodeID() string {
	return w.nodeID
}

// Cache returns the worker's local cache.
func (w *Worker) Cache() *cache.LocalCache {
	return w.cache
}

// Registry returns the worker's operator registry.
func (w *Worker) Registry() *remote.Registry {
	return w.registry
}

// Close tears down the local cache. Run it from the process shutdown path;
// scratch directories and cached inputs are removed when the cache root was
// allocated by the worker (empty CacheRoot), and kept otherwise.
func (w *Worker) Close() error {
	return w.cache.Close()
}
