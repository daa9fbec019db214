package executor

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ternflow/tern/pkg/compute"
	"github.com/ternflow/tern/pkg/events"
	"github.com/ternflow/tern/pkg/log"
	"github.com/ternflow/tern/pkg/remote"
	"github.com/ternflow/tern/pkg/storage"
	"github.com/ternflow/tern/pkg/types"
)

// Config holds executor configuration. Grid is required; everything else has
// a working default.
type Config struct {
	Grid         compute.Compute
	Balancer     compute.LoadBalancer
	Wrapper      remote.WrapperBuilder
	PollInterval time.Duration
	Store        storage.Store  // optional task ledger
	Events       *events.Broker // optional lifecycle event broker
	SessionID    uuid.UUID      // zero value allocates a fresh session
}

// Executor submits task envelopes to the cluster compute service under a
// load-balanced single-job wrapper and owns the polling monitor that drives
// handler state machines.
type Executor struct {
	grid      compute.Compute
	balancer  compute.LoadBalancer
	wrapper   remote.WrapperBuilder
	store     storage.Store
	events    *events.Broker
	sessionID uuid.UUID
	monitor   *Monitor
	logger    zerolog.Logger
}

// New creates an executor from cfg.
func New(cfg Config) (*Executor, error) {
	if cfg.Grid == nil {
		return nil, errors.New("executor: a compute grid is required")
	}
	balancer := cfg.Balancer
	if balancer == nil {
		balancer = compute.LeastLoadedBalancer{}
	}
	wrapper := cfg.Wrapper
	if wrapper == nil {
		wrapper = remote.BashWrapper{}
	}
	sessionID := cfg.SessionID
	if sessionID == uuid.Nil {
		sessionID = types.NewSessionID()
	}
	return &Executor{
		grid:      cfg.Grid,
		balancer:  balancer,
		wrapper:   wrapper,
		store:     cfg.Store,
		events:    cfg.Events,
		sessionID: sessionID,
		monitor:   NewMonitor(cfg.PollInterval),
		logger:    log.WithComponent("executor"),
	}, nil
}

// SessionID returns the workflow session this executor submits under.
func (x *Executor) SessionID() uuid.UUID {
	return x.sessionID
}

// Monitor returns the executor's polling monitor.
func (x *Executor) Monitor() *Monitor {
	return x.monitor
}

// Start begins the polling monitor.
func (x *Executor) Start() {
	x.monitor.Start()
	x.logger.Info().Str("session_id", x.sessionID.String()).Msg("Executor started")
}

// Stop stops the polling monitor.
func (x *Executor) Stop() {
	x.monitor.Stop()
}

// CreateTaskHandler builds the handler for a task, dispatching on its kind at
// envelope construction time.
func (x *Executor) CreateTaskHandler(task *types.TaskRun) *TaskHandler {
	return newTaskHandler(task, x)
}

// Submit creates a handler for the task, submits it, and registers it with
// the polling monitor.
func (x *Executor) Submit(task *types.TaskRun) (*TaskHandler, error) {
	h := x.CreateTaskHandler(task)
	if err := h.Submit(); err != nil {
		return nil, err
	}
	x.monitor.Register(h)
	return h, nil
}

// Execute submits an envelope wrapped in the single-job load-balanced
// adapter and returns the cluster future.
func (x *Executor) Execute(env *remote.Envelope) (compute.Future, error) {
	adapter := &singleJobAdapter{job: env, balancer: x.balancer}
	return x.grid.Execute(adapter, env)
}

// Call submits a generic job without load-balancer indirection. Used by
// ancillary control tasks.
func (x *Executor) Call(job compute.Job) (compute.Future, error) {
	return x.grid.Call(job)
}

// recordState writes a ledger row for the task's current state, if a store
// is configured.
func (x *Executor) recordState(task *types.TaskRun, state types.TaskState) {
	if x.store == nil {
		return
	}
	record := &types.TaskRecord{
		TaskID:     task.ID,
		Name:       task.Name,
		Kind:       task.Kind,
		State:      state,
		ExitStatus: task.ExitStatus,
		UpdatedAt:  time.Now(),
	}
	if task.Error != nil {
		record.Error = task.Error.Error()
	}
	if err := x.store.SaveTaskRecord(record); err != nil {
		x.logger.Error().Err(err).Str("task_id", task.ID).Msg("Failed to record task state")
	}
}

func (x *Executor) publish(eventType events.EventType, task *types.TaskRun, message string) {
	if x.events == nil {
		return
	}
	x.events.Publish(&events.Event{
		Type:     eventType,
		TaskID:   task.ID,
		TaskName: task.Name,
		Message:  message,
	})
}

// singleJobAdapter maps exactly one job onto the node picked by the load
// balancer and returns the sole result. The indirection exists to surface
// the balancer dependency to the compute framework.
type singleJobAdapter struct {
	job      compute.Job
	balancer compute.LoadBalancer
}

func (a *singleJobAdapter) Map(nodes []*compute.Node, arg any) (map[compute.Job]*compute.Node, error) {
	node, err := a.balancer.Pick(a.job, nodes, nil)
	if err != nil {
		return nil, err
	}
	return map[compute.Job]*compute.Node{a.job: node}, nil
}

func (a *singleJobAdapter) Reduce(results []compute.JobResult) (any, error) {
	if len(results) != 1 {
		return nil, errors.New("executor: expected exactly one job result")
	}
	return results[0].Value, results[0].Err
}
