package compute

import (
	"context"
	"sync/atomic"
)

// Node identifies a member of the compute grid. Env carries the node-scoped
// worker services bound into jobs placed on it.
type Node struct {
	ID       string
	Hostname string
	Slots    int // concurrent job capacity; 0 means 1
	Env      any

	active atomic.Int64
}

// Active returns the number of jobs currently executing on the node.
func (n *Node) Active() int64 {
	return n.active.Load()
}

// Job is a unit of remote work. Call runs it to completion; Cancel asks a
// running job to stop cooperatively.
type Job interface {
	Call(ctx context.Context) (any, error)
	Cancel()
}

// Binder is implemented by jobs that accept node-scoped services before Call.
// The grid invokes Bind with the target node's Env on the worker side.
type Binder interface {
	Bind(env any)
}

// JobResult pairs one job's return value with its error.
type JobResult struct {
	Value any
	Err   error
}

// TaskAdapter maps a compute task onto grid nodes and folds the per-job
// results back into a single value.
type TaskAdapter interface {
	Map(nodes []*Node, arg any) (map[Job]*Node, error)
	Reduce(results []JobResult) (any, error)
}

// LoadBalancer picks the node a job should run on.
type LoadBalancer interface {
	Pick(job Job, nodes []*Node, excluded []*Node) (*Node, error)
}

// Future is the asynchronous handle to a submitted job's outcome. Result is
// non-blocking and only meaningful once Done reports true; Wait blocks until
// completion or context cancellation.
type Future interface {
	Done() bool
	Cancelled() bool
	Cancel() bool
	Result() (any, error)
	Wait(ctx context.Context) (any, error)
	OnDone(fn func())
}

// Compute is the cluster compute facade the executor submits through.
type Compute interface {
	Call(job Job) (Future, error)
	Execute(adapter TaskAdapter, arg any) (Future, error)
	Nodes() []*Node
}
