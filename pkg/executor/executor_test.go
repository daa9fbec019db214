package executor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternflow/tern/pkg/compute"
	"github.com/ternflow/tern/pkg/events"
	"github.com/ternflow/tern/pkg/log"
	"github.com/ternflow/tern/pkg/remote"
	"github.com/ternflow/tern/pkg/storage"
	"github.com/ternflow/tern/pkg/types"
	"github.com/ternflow/tern/pkg/worker"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.ErrorLevel})
	os.Exit(m.Run())
}

// testRig is an in-process grid with one worker and an executor submitting
// to it.
type testRig struct {
	grid     *compute.Grid
	worker   *worker.Worker
	executor *Executor
}

func newTestRig(t *testing.T, cfg Config) *testRig {
	t.Helper()

	grid := compute.NewGrid()
	w, err := worker.NewWorker(&worker.Config{
		NodeID:    "test-node",
		Slots:     4,
		CacheRoot: t.TempDir(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	require.NoError(t, w.Join(grid))

	cfg.Grid = grid
	cfg.PollInterval = 50 * time.Millisecond
	exec, err := New(cfg)
	require.NoError(t, err)

	return &testRig{grid: grid, worker: w, executor: exec}
}

func newScriptRun(t *testing.T, script string) *types.TaskRun {
	t.Helper()
	return &types.TaskRun{
		ID:        uuid.New().String(),
		Name:      "test-task",
		Kind:      types.TaskKindScript,
		WorkDir:   t.TempDir(),
		TargetDir: t.TempDir(),
		Script:    script,
	}
}

// drive polls the handler the way the monitor would until it completes.
func drive(t *testing.T, h *TaskHandler) {
	t.Helper()
	deadline := time.Now().Add(15 * time.Second)
	for h.State() != types.TaskStateCompleted {
		if time.Now().After(deadline) {
			t.Fatalf("handler stuck in state %s", h.State())
		}
		h.CheckIfRunning()
		h.CheckIfCompleted()
		time.Sleep(10 * time.Millisecond)
	}
}

func TestMinimalScriptTask(t *testing.T) {
	rig := newTestRig(t, Config{})
	task := newScriptRun(t, "echo hi")

	h := rig.executor.CreateTaskHandler(task)
	assert.Equal(t, types.TaskStateNew, h.State())
	require.NoError(t, h.Submit())
	drive(t, h)

	require.NoError(t, task.Error)
	assert.Equal(t, 0, task.ExitStatus)
	assert.Equal(t, filepath.Join(task.WorkDir, types.CmdOutFile), task.Stdout)
	assert.Equal(t, filepath.Join(task.WorkDir, types.CmdErrFile), task.Stderr)
	assert.FileExists(t, filepath.Join(task.WorkDir, types.CmdExitFile))
}

func TestHandlerStatesAreMonotonic(t *testing.T) {
	rig := newTestRig(t, Config{})
	task := newScriptRun(t, "true")

	h := rig.executor.CreateTaskHandler(task)
	assert.Equal(t, types.TaskStateNew, h.State())
	assert.False(t, h.CheckIfRunning())
	assert.False(t, h.CheckIfCompleted())

	require.NoError(t, h.Submit())
	assert.Equal(t, types.TaskStateSubmitted, h.State())

	assert.True(t, h.CheckIfRunning())
	assert.Equal(t, types.TaskStateRunning, h.State())
	// A second poll does not revisit the transition.
	assert.False(t, h.CheckIfRunning())

	drive(t, h)
	assert.Equal(t, types.TaskStateCompleted, h.State())
	assert.False(t, h.CheckIfRunning())
	assert.False(t, h.CheckIfCompleted())
}

func TestScriptTaskNonZeroExitStatus(t *testing.T) {
	rig := newTestRig(t, Config{})
	task := newScriptRun(t, "exit 7")

	h := rig.executor.CreateTaskHandler(task)
	require.NoError(t, h.Submit())
	drive(t, h)

	require.NoError(t, task.Error)
	assert.Equal(t, 7, task.ExitStatus)
}

func TestKillCancelsTask(t *testing.T) {
	rig := newTestRig(t, Config{})
	task := newScriptRun(t, "sleep 30")

	h := rig.executor.CreateTaskHandler(task)
	require.NoError(t, h.Submit())
	assert.True(t, h.CheckIfRunning())

	h.Kill()
	// Kill is idempotent.
	h.Kill()

	drive(t, h)
	assert.ErrorIs(t, task.Error, ErrCancelled)
}

func TestOperatorTaskThroughExecutor(t *testing.T) {
	rig := newTestRig(t, Config{})
	rig.worker.Registry().Register("sum", func(ctx context.Context, call *remote.OperatorCall) (any, error) {
		a := call.Args["a"].(int)
		b := call.Args["b"].(int)
		call.Binding["count"] = 1
		return map[string]any{"sum": a + b}, nil
	})

	task := &types.TaskRun{
		ID:           uuid.New().String(),
		Name:         "sum-task",
		Kind:         types.TaskKindOperator,
		TargetDir:    t.TempDir(),
		Operator:     "sum",
		OperatorArgs: map[string]any{"a": 1, "b": 2},
		Binding:      map[string]any{"count": 0},
	}

	h := rig.executor.CreateTaskHandler(task)
	require.NoError(t, h.Submit())
	drive(t, h)

	require.NoError(t, task.Error)
	assert.Equal(t, map[string]any{"sum": 3}, task.Stdout)
	require.NotNil(t, task.Context)
	assert.Equal(t, "sum-task", task.Context.TaskName)
	assert.Equal(t, map[string]any{"count": 1}, task.Context.Holder)
}

func TestMonitorDrivesHandlerToCompletion(t *testing.T) {
	rig := newTestRig(t, Config{})
	rig.executor.Start()
	defer rig.executor.Stop()

	task := newScriptRun(t, "echo monitored")
	h, err := rig.executor.Submit(task)
	require.NoError(t, err)

	deadline := time.Now().Add(15 * time.Second)
	for h.State() != types.TaskStateCompleted {
		if time.Now().After(deadline) {
			t.Fatalf("monitor never completed the task, state %s", h.State())
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.NoError(t, task.Error)
	assert.Equal(t, 0, task.ExitStatus)
}

func TestFailedEnvelopeRecordsError(t *testing.T) {
	rig := newTestRig(t, Config{})

	// A missing input makes staging fail on the worker.
	task := newScriptRun(t, "true")
	task.InputFiles = map[string]string{"in.txt": filepath.Join(t.TempDir(), "absent")}

	h := rig.executor.CreateTaskHandler(task)
	require.NoError(t, h.Submit())
	drive(t, h)

	require.Error(t, task.Error)
	var execErr *remote.ExecError
	assert.ErrorAs(t, task.Error, &execErr)
}

func TestLedgerRecordsTransitions(t *testing.T) {
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	rig := newTestRig(t, Config{Store: store})
	task := newScriptRun(t, "true")

	h := rig.executor.CreateTaskHandler(task)
	require.NoError(t, h.Submit())

	record, err := store.GetTaskRecord(task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TaskStateSubmitted, record.State)

	drive(t, h)

	record, err = store.GetTaskRecord(task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TaskStateCompleted, record.State)
}

func TestLifecycleEventsPublished(t *testing.T) {
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	sub := broker.Subscribe()

	rig := newTestRig(t, Config{Events: broker})
	task := newScriptRun(t, "true")

	h := rig.executor.CreateTaskHandler(task)
	require.NoError(t, h.Submit())
	drive(t, h)

	seen := make(map[events.EventType]bool)
	deadline := time.After(5 * time.Second)
	for len(seen) < 3 {
		select {
		case ev := <-sub:
			if ev.TaskID == task.ID {
				seen[ev.Type] = true
			}
		case <-deadline:
			t.Fatalf("missing lifecycle events, saw %v", seen)
		}
	}
	assert.True(t, seen[events.EventTaskSubmitted])
	assert.True(t, seen[events.EventTaskRunning])
	assert.True(t, seen[events.EventTaskCompleted])
}

// recordingBalancer captures the job it was asked to place.
type recordingBalancer struct {
	picked compute.Job
}

func (b *recordingBalancer) Pick(job compute.Job, nodes []*compute.Node, excluded []*compute.Node) (*compute.Node, error) {
	b.picked = job
	return compute.LeastLoadedBalancer{}.Pick(job, nodes, excluded)
}

func TestSubmissionDelegatesPlacementToBalancer(t *testing.T) {
	balancer := &recordingBalancer{}
	rig := newTestRig(t, Config{Balancer: balancer})

	task := newScriptRun(t, "true")
	h := rig.executor.CreateTaskHandler(task)
	require.NoError(t, h.Submit())
	drive(t, h)

	require.NoError(t, task.Error)
	_, isEnvelope := balancer.picked.(*remote.Envelope)
	assert.True(t, isEnvelope)
}

func TestNewRequiresGrid(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestSessionIDAssigned(t *testing.T) {
	rig := newTestRig(t, Config{})
	assert.NotEqual(t, uuid.Nil, rig.executor.SessionID())
}
