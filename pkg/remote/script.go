package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/ternflow/tern/pkg/fsutil"
	"github.com/ternflow/tern/pkg/types"
)

// defaultShell is the argv prefix used when a task declares none.
var defaultShell = []string{"/bin/bash", "-ue"}

// ScriptTask runs a shell script in a subprocess and yields its exit status.
// The environment map is a private copy taken at construction, so parallel
// submissions sharing a task processor cannot race on it.
type ScriptTask struct {
	Shell      []string
	Container  string
	Executable bool
	Env        map[string]string
	Stdin      []byte
	Script     string

	builder WrapperBuilder

	mu   sync.Mutex
	proc *os.Process
}

func newScriptTask(task *types.TaskRun, builder WrapperBuilder) *ScriptTask {
	shell := task.Shell
	if len(shell) == 0 {
		shell = defaultShell
	}
	env := make(map[string]string, len(task.Env))
	for k, v := range task.Env {
		env[k] = v
	}
	return &ScriptTask{
		Shell:      append([]string(nil), shell...),
		Container:  task.Container,
		Executable: task.Executable,
		Env:        env,
		Stdin:      task.Stdin,
		Script:     task.Script,
		builder:    builder,
	}
}

// run builds the launcher script, spawns the subprocess with scratch as its
// working directory and merged stdout/stderr, and waits for termination.
func (t *ScriptTask) run(ctx context.Context, e *Envelope) (any, error) {
	launcher, err := t.builder.Build(e.scratch, t)
	if err != nil {
		return nil, fmt.Errorf("failed to build wrapper script: %w", err)
	}

	argv := append(append([]string(nil), t.Shell...), launcher)
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = e.scratch
	cmd.Env = append(os.Environ(), flattenEnv(t.Env)...)

	logFile, err := os.Create(filepath.Join(e.scratch, ".command.log"))
	if err != nil {
		return nil, fmt.Errorf("failed to create process log: %w", err)
	}
	defer logFile.Close()
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if len(t.Stdin) > 0 {
		cmd.Stdin = bytes.NewReader(t.Stdin)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start subprocess: %w", err)
	}

	t.mu.Lock()
	t.proc = cmd.Process
	t.mu.Unlock()

	waitDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			t.cancel()
		case <-waitDone:
		}
	}()

	waitErr := cmd.Wait()
	close(waitDone)

	// Destroy the process handle; errors here are expected and suppressed.
	t.mu.Lock()
	if t.proc != nil {
		_ = t.proc.Kill()
		t.proc = nil
	}
	t.mu.Unlock()

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		return nil, fmt.Errorf("subprocess wait failed: %w", waitErr)
	}
	return types.ScriptResult{ExitStatus: cmd.ProcessState.ExitCode()}, nil
}

// cancel destroys the subprocess if one is running.
func (t *ScriptTask) cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.proc != nil {
		_ = t.proc.Kill()
	}
}

// copyArtifacts copies the well-known command files from scratch to the shared
// working directory. The exit-status and stdout files are required; the
// stderr and trace files are optional.
func (t *ScriptTask) copyArtifacts(e *Envelope) error {
	workDir := e.WorkDir()
	if workDir == "" {
		return errors.New("script task has no working directory")
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("failed to create working directory: %w", err)
	}

	for _, name := range []string{types.CmdExitFile, types.CmdOutFile} {
		if err := fsutil.CopyFile(filepath.Join(e.scratch, name), filepath.Join(workDir, name)); err != nil {
			return fmt.Errorf("failed to copy required artifact %s: %w", name, err)
		}
	}
	for _, name := range []string{types.CmdErrFile, types.CmdTraceFile} {
		src := filepath.Join(e.scratch, name)
		if !fsutil.Exists(src) {
			continue
		}
		if err := fsutil.CopyFile(src, filepath.Join(workDir, name)); err != nil {
			e.logger.Warn().Err(err).Str("artifact", name).Msg("Failed to copy optional artifact")
		}
	}
	return nil
}

func flattenEnv(env map[string]string) []string {
	flat := make([]string, 0, len(env))
	for k, v := range env {
		flat = append(flat, k+"="+v)
	}
	return flat
}
