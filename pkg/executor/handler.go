package executor

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ternflow/tern/pkg/compute"
	"github.com/ternflow/tern/pkg/events"
	"github.com/ternflow/tern/pkg/log"
	"github.com/ternflow/tern/pkg/metrics"
	"github.com/ternflow/tern/pkg/remote"
	"github.com/ternflow/tern/pkg/types"
)

// ErrCancelled is recorded as the task error when the cluster future reports
// cancellation.
var ErrCancelled = errors.New("task was cancelled")

// TaskHandler is the per-task submitter-side state machine. States progress
// one way through NEW, SUBMITTED, RUNNING, COMPLETED; the polling monitor
// drives the transitions by calling CheckIfRunning and CheckIfCompleted, and
// the future's completion callback wakes the monitor between polls.
type TaskHandler struct {
	task *types.TaskRun
	exec *Executor

	mu       sync.Mutex
	state    types.TaskState
	envelope *remote.Envelope
	future   compute.Future

	logger zerolog.Logger
}

func newTaskHandler(task *types.TaskRun, exec *Executor) *TaskHandler {
	return &TaskHandler{
		task:   task,
		exec:   exec,
		state:  types.TaskStateNew,
		logger: log.WithTaskID(task.ID),
	}
}

// Task returns the task this handler owns.
func (h *TaskHandler) Task() *types.TaskRun {
	return h.task
}

// State returns the current lifecycle state.
func (h *TaskHandler) State() types.TaskState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Submit builds the task envelope, hands it to the executor for load-balanced
// submission, and registers the monitor wake-up on the returned future.
func (h *TaskHandler) Submit() error {
	var env *remote.Envelope
	var err error
	switch h.task.Kind {
	case types.TaskKindOperator:
		env, err = remote.NewOperatorEnvelope(h.task, h.exec.sessionID)
	default:
		env, err = remote.NewScriptEnvelope(h.task, h.exec.sessionID, h.exec.wrapper)
	}
	if err != nil {
		return err
	}

	future, err := h.exec.Execute(env)
	if err != nil {
		return err
	}

	// The callback captures the monitor alone, not the handler: the monitor
	// already knows the handler set, and a handler capture would cycle
	// through the future back to the handler.
	monitor := h.exec.monitor
	future.OnDone(func() { monitor.Signal() })

	h.mu.Lock()
	h.envelope = env
	h.future = future
	h.state = types.TaskStateSubmitted
	h.mu.Unlock()

	metrics.TasksSubmitted.WithLabelValues(string(h.task.Kind)).Inc()
	h.exec.recordState(h.task, types.TaskStateSubmitted)
	h.exec.publish(events.EventTaskSubmitted, h.task, "task submitted")
	h.logger.Debug().Str("task_name", h.task.Name).Msg("Task submitted")
	return nil
}

// CheckIfRunning advances SUBMITTED to RUNNING when a future exists. The
// cluster exposes no distinct started event; reaching a worker is
// approximated by the presence of a future and a subsequent poll.
func (h *TaskHandler) CheckIfRunning() bool {
	h.mu.Lock()
	if h.state != types.TaskStateSubmitted || h.future == nil {
		h.mu.Unlock()
		return false
	}
	h.state = types.TaskStateRunning
	h.mu.Unlock()

	h.exec.recordState(h.task, types.TaskStateRunning)
	h.exec.publish(events.EventTaskRunning, h.task, "task running")
	h.logger.Debug().Str("task_name", h.task.Name).Msg("Task running")
	return true
}

// CheckIfCompleted retrieves the result once the future has settled and, for
// script tasks, the exit-status file has been flushed to shared storage. It
// never blocks on the future; it only reads its status.
func (h *TaskHandler) CheckIfCompleted() bool {
	h.mu.Lock()
	if h.state != types.TaskStateRunning || h.future == nil {
		h.mu.Unlock()
		return false
	}
	future := h.future
	if !h.completionReady(future) {
		h.mu.Unlock()
		return false
	}

	cancelled := future.Cancelled()
	switch {
	case cancelled:
		h.task.Error = ErrCancelled
	default:
		value, err := future.Result()
		if err != nil {
			h.task.Error = err
		} else {
			h.parseResult(value)
		}
	}
	h.state = types.TaskStateCompleted
	h.mu.Unlock()

	h.finalize(cancelled)
	return true
}

// completionReady is the kind-dispatched completion predicate. Operator tasks
// complete with the future. Script tasks additionally wait for the exit file
// on shared storage, because the compute layer may settle the future before
// the worker finishes un-staging; a failed or cancelled future waives the
// file check since no artifacts are coming.
func (h *TaskHandler) completionReady(future compute.Future) bool {
	if future.Cancelled() {
		return true
	}
	if !future.Done() {
		return false
	}
	if h.task.Kind == types.TaskKindOperator {
		return true
	}
	if _, err := future.Result(); err != nil {
		return true
	}
	return h.exitFileReady()
}

func (h *TaskHandler) exitFileReady() bool {
	info, err := os.Stat(filepath.Join(h.task.WorkDir, types.CmdExitFile))
	return err == nil && info.ModTime().Unix() > 0
}

// parseResult installs a successful result into the task, dispatching on the
// task kind.
func (h *TaskHandler) parseResult(value any) {
	switch h.task.Kind {
	case types.TaskKindOperator:
		result, ok := value.(types.OperatorResult)
		if !ok {
			h.task.Error = errors.New("unexpected operator result payload")
			return
		}
		h.task.Stdout = result.Value
		h.task.Context = types.NewTaskContext(h.task.Name, result.Binding)
	default:
		result, ok := value.(types.ScriptResult)
		if !ok {
			h.task.Error = errors.New("unexpected script result payload")
			return
		}
		h.task.ExitStatus = result.ExitStatus
		h.task.Stdout = filepath.Join(h.task.WorkDir, types.CmdOutFile)
		h.task.Stderr = filepath.Join(h.task.WorkDir, types.CmdErrFile)
	}
}

func (h *TaskHandler) finalize(cancelled bool) {
	h.exec.recordState(h.task, types.TaskStateCompleted)

	switch {
	case cancelled:
		metrics.TasksCancelled.Inc()
		h.exec.publish(events.EventTaskCancelled, h.task, "task cancelled")
	case h.task.Error != nil:
		metrics.TasksFailed.Inc()
		h.exec.publish(events.EventTaskFailed, h.task, h.task.Error.Error())
	default:
		metrics.TasksCompleted.Inc()
		h.exec.publish(events.EventTaskCompleted, h.task, "task completed")
	}

	if h.task.Error != nil {
		h.logger.Info().Err(h.task.Error).Str("task_name", h.task.Name).Msg("Task completed with error")
	} else {
		h.logger.Info().Str("task_name", h.task.Name).Int("exit_status", h.task.ExitStatus).Msg("Task completed")
	}
}

// Kill cancels the cluster future if one exists. Idempotent.
func (h *TaskHandler) Kill() {
	h.mu.Lock()
	future := h.future
	h.mu.Unlock()
	if future != nil {
		future.Cancel()
	}
}
