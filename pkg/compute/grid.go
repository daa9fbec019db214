package compute

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ternflow/tern/pkg/log"
)

// Grid is an in-process implementation of the Compute facade. Each node runs
// jobs on its own bounded slot pool, so envelope execution happens on a
// worker goroutine separate from the submitter, mirroring the threading of a
// real cluster deployment.
type Grid struct {
	mu     sync.RWMutex
	nodes  []*Node
	sems   map[string]chan struct{}
	closed bool
	logger zerolog.Logger
	wg     sync.WaitGroup
}

// NewGrid creates an empty grid.
func NewGrid() *Grid {
	return &Grid{
		sems:   make(map[string]chan struct{}),
		logger: log.WithComponent("grid"),
	}
}

// AddNode registers a node with the grid. A node with zero Slots gets one.
func (g *Grid) AddNode(n *Node) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return errors.New("compute: grid is closed")
	}
	if _, ok := g.sems[n.ID]; ok {
		return fmt.Errorf("compute: node %s already registered", n.ID)
	}
	slots := n.Slots
	if slots <= 0 {
		slots = 1
	}
	g.nodes = append(g.nodes, n)
	g.sems[n.ID] = make(chan struct{}, slots)
	g.logger.Info().Str("node_id", n.ID).Int("slots", slots).Msg("Node joined grid")
	return nil
}

// RemoveNode deregisters a node. Jobs already dispatched to it run to
// completion.
func (g *Grid) RemoveNode(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, n := range g.nodes {
		if n.ID == id {
			g.nodes = append(g.nodes[:i], g.nodes[i+1:]...)
			break
		}
	}
	delete(g.sems, id)
}

// Nodes returns a snapshot of the registered nodes.
func (g *Grid) Nodes() []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	nodes := make([]*Node, len(g.nodes))
	copy(nodes, g.nodes)
	return nodes
}

// Call submits a single job, placing it on the least-loaded node.
func (g *Grid) Call(job Job) (Future, error) {
	nodes := g.Nodes()
	balancer := LeastLoadedBalancer{}
	node, err := balancer.Pick(job, nodes, nil)
	if err != nil {
		return nil, err
	}

	fut := newFuture()
	ctx, cancel := context.WithCancel(context.Background())
	fut.cancelFn = func() {
		cancel()
		job.Cancel()
	}

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		res := g.dispatch(ctx, node, job)
		fut.complete(res.Value, res.Err)
		cancel()
	}()
	return fut, nil
}

// Execute runs a mapped compute task: the adapter assigns jobs to nodes, the
// grid runs each job on its assigned node, and the adapter's Reduce folds the
// results into the future's value.
func (g *Grid) Execute(adapter TaskAdapter, arg any) (Future, error) {
	assignments, err := adapter.Map(g.Nodes(), arg)
	if err != nil {
		return nil, err
	}
	if len(assignments) == 0 {
		return nil, errors.New("compute: adapter mapped no jobs")
	}

	fut := newFuture()
	ctx, cancel := context.WithCancel(context.Background())

	jobs := make([]Job, 0, len(assignments))
	targets := make([]*Node, 0, len(assignments))
	for job, node := range assignments {
		if node == nil {
			cancel()
			return nil, errors.New("compute: adapter assigned a job to a nil node")
		}
		jobs = append(jobs, job)
		targets = append(targets, node)
	}

	fut.cancelFn = func() {
		cancel()
		for _, job := range jobs {
			job.Cancel()
		}
	}

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer cancel()

		results := make([]JobResult, len(jobs))
		var jobWg sync.WaitGroup
		for i := range jobs {
			jobWg.Add(1)
			go func(i int) {
				defer jobWg.Done()
				results[i] = g.dispatch(ctx, targets[i], jobs[i])
			}(i)
		}
		jobWg.Wait()

		value, err := adapter.Reduce(results)
		fut.complete(value, err)
	}()
	return fut, nil
}

// dispatch runs one job on one node, honoring the node's slot limit and
// binding the node environment into jobs that accept it.
func (g *Grid) dispatch(ctx context.Context, node *Node, job Job) JobResult {
	g.mu.RLock()
	sem := g.sems[node.ID]
	g.mu.RUnlock()
	if sem == nil {
		return JobResult{Err: fmt.Errorf("compute: node %s left the grid", node.ID)}
	}

	select {
	case sem <- struct{}{}:
		defer func() { <-sem }()
	case <-ctx.Done():
		return JobResult{Err: ctx.Err()}
	}

	node.active.Add(1)
	defer node.active.Add(-1)

	if b, ok := job.(Binder); ok {
		b.Bind(node.Env)
	}
	value, err := job.Call(ctx)
	return JobResult{Value: value, Err: err}
}

// Close marks the grid closed and waits for in-flight jobs to drain.
func (g *Grid) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
	g.wg.Wait()
}
