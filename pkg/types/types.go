package types

import (
	"time"

	"github.com/google/uuid"
)

// TaskKind selects the execution shape of a task.
type TaskKind string

const (
	// TaskKindScript runs a shell script in a subprocess and yields its exit status.
	TaskKindScript TaskKind = "script"
	// TaskKindOperator runs a pre-registered operator bound to a delegate context.
	TaskKindOperator TaskKind = "operator"
)

// TaskState represents the submitter-side lifecycle of a task.
type TaskState string

const (
	TaskStateNew       TaskState = "new"
	TaskStateSubmitted TaskState = "submitted"
	TaskStateRunning   TaskState = "running"
	TaskStateCompleted TaskState = "completed"
)

// Well-known artifact names written into a task's shared working directory.
// The exit file doubles as the un-staging completion signal: the handler
// refuses to parse a script result until it exists.
const (
	CmdExitFile  = ".command.exit"
	CmdOutFile   = ".command.out"
	CmdErrFile   = ".command.err"
	CmdTraceFile = ".command.trace"
)

// Attribute keys used on the wire inside an envelope payload.
const (
	AttrTaskID      = "taskId"
	AttrName        = "name"
	AttrWorkDir     = "workDir"
	AttrTargetDir   = "targetDir"
	AttrInputFiles  = "inputFiles"
	AttrOutputFiles = "outputFiles"
)

// TaskRun describes one task submitted to the executor. The handler mutates
// the result fields (Stdout, Stderr, ExitStatus, Error, Context) on
// completion; everything else is fixed at submission time.
type TaskRun struct {
	ID        string
	Name      string
	Kind      TaskKind
	WorkDir   string // shared-storage working directory
	TargetDir string // shared-storage destination for output artifacts

	// Script task inputs
	Script     string
	Stdin      []byte
	Shell      []string // argv prefix, e.g. ["bash", "-ue"]
	Container  string
	Executable bool // container image is itself the executable
	Env        map[string]string

	// Operator task inputs
	Operator     string
	OperatorArgs map[string]any
	Binding      map[string]any // delegate context shipped to the worker

	InputFiles  map[string]string // logical name -> source path on shared storage
	OutputFiles []string          // glob patterns matched against the scratch tree

	// Result fields, written by the task handler.
	Stdout     any
	Stderr     string
	ExitStatus int
	Error      error
	Context    *TaskContext

	CreatedAt time.Time
}

// TaskContext carries the post-execution delegate bindings of an operator
// task back into the workflow engine.
type TaskContext struct {
	TaskName string
	Holder   map[string]any
}

// NewTaskContext creates a context bound to the named task with the given
// holder mapping. A nil holder yields an empty, writable holder.
func NewTaskContext(taskName string, holder map[string]any) *TaskContext {
	if holder == nil {
		holder = make(map[string]any)
	}
	return &TaskContext{TaskName: taskName, Holder: holder}
}

// ScriptResult is the worker-side outcome of a script task.
type ScriptResult struct {
	ExitStatus int
}

// OperatorResult is the worker-side outcome of an operator task. Value is the
// operator's return; Binding is the delegate context after execution.
type OperatorResult struct {
	Value   any
	Binding map[string]any
}

// TaskRecord is the ledger row persisted for each task lifecycle transition.
type TaskRecord struct {
	TaskID     string
	Name       string
	Kind       TaskKind
	State      TaskState
	ExitStatus int
	Error      string
	UpdatedAt  time.Time
}

// NewSessionID returns a fresh workflow session identifier.
func NewSessionID() uuid.UUID {
	return uuid.New()
}
