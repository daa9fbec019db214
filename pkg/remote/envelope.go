package remote

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ternflow/tern/pkg/cache"
	"github.com/ternflow/tern/pkg/codec"
	"github.com/ternflow/tern/pkg/fsutil"
	"github.com/ternflow/tern/pkg/log"
	"github.com/ternflow/tern/pkg/metrics"
	"github.com/ternflow/tern/pkg/types"
)

// WorkerEnv carries the node-scoped services an envelope needs on the worker
// side. The grid binds it into the envelope before Call runs.
type WorkerEnv struct {
	Cache     *cache.LocalCache
	Operators Provider
}

// runner is the kind-specific execution body of an envelope.
type runner interface {
	run(ctx context.Context, e *Envelope) (any, error)
	cancel()
}

// artifactCopier is implemented by runners that copy extra well-known files
// out of scratch during un-staging.
type artifactCopier interface {
	copyArtifacts(e *Envelope) error
}

// Envelope is the portable task unit shipped to a worker. The submitter
// encodes the attribute map into Payload at construction and never touches it
// again; the worker reconstitutes the map on first access. Call drives the
// stage, execute, un-stage lifecycle.
type Envelope struct {
	SessionID uuid.UUID
	Payload   []byte

	name   string
	runner runner
	env    *WorkerEnv
	logger zerolog.Logger

	hydrateOnce sync.Once
	attrs       map[string]any
	attrsErr    error

	scratch string
	staged  bool
}

func newEnvelope(task *types.TaskRun, sessionID uuid.UUID, r runner) (*Envelope, error) {
	attrs := map[string]any{
		types.AttrTaskID:      task.ID,
		types.AttrName:        task.Name,
		types.AttrWorkDir:     task.WorkDir,
		types.AttrTargetDir:   task.TargetDir,
		types.AttrInputFiles:  task.InputFiles,
		types.AttrOutputFiles: task.OutputFiles,
	}
	payload, err := codec.EncodeAttrs(attrs)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		SessionID: sessionID,
		Payload:   payload,
		name:      task.Name,
		runner:    r,
		logger:    log.WithTaskID(task.ID),
	}, nil
}

// NewScriptEnvelope packages a script task for remote execution. A nil
// builder falls back to the default bash wrapper.
func NewScriptEnvelope(task *types.TaskRun, sessionID uuid.UUID, builder WrapperBuilder) (*Envelope, error) {
	if builder == nil {
		builder = BashWrapper{}
	}
	return newEnvelope(task, sessionID, newScriptTask(task, builder))
}

// NewOperatorEnvelope packages an operator task for remote execution,
// dehydrating the operator invocation and its delegate binding.
func NewOperatorEnvelope(task *types.TaskRun, sessionID uuid.UUID) (*Envelope, error) {
	r, err := newOperatorTask(task)
	if err != nil {
		return nil, err
	}
	return newEnvelope(task, sessionID, r)
}

// Bind injects the worker-side services. The grid calls this with the target
// node's environment before Call.
func (e *Envelope) Bind(env any) {
	if we, ok := env.(*WorkerEnv); ok {
		e.env = we
	}
}

// Call runs the envelope lifecycle on the worker: hydrate the attribute map,
// stage inputs into a fresh scratch directory, execute the task body, and
// un-stage declared outputs. Any failure is wrapped in *ExecError.
func (e *Envelope) Call(ctx context.Context) (any, error) {
	result, err := e.call(ctx)
	if err != nil {
		return nil, &ExecError{TaskName: e.name, Cause: err}
	}
	return result, nil
}

func (e *Envelope) call(ctx context.Context) (any, error) {
	if err := e.hydrate(); err != nil {
		return nil, err
	}
	if err := e.stage(); err != nil {
		e.removeScratch()
		return nil, err
	}

	timer := metrics.NewTimer()
	result, execErr := e.runner.run(ctx, e)
	timer.ObserveDuration(metrics.ExecutionLatency)

	// Un-staging runs on the error path too, so outputs produced before a
	// failure or cancellation still reach shared storage.
	unstageErr := e.unstage()
	if execErr != nil {
		return nil, execErr
	}
	if unstageErr != nil {
		return nil, unstageErr
	}
	return result, nil
}

// Cancel asks the running task body to stop. Default behavior for operator
// tasks is a no-op; script tasks destroy their subprocess.
func (e *Envelope) Cancel() {
	e.runner.cancel()
}

// hydrate decodes the payload blob into the live attribute map on first use.
func (e *Envelope) hydrate() error {
	e.hydrateOnce.Do(func() {
		if e.attrs != nil {
			return
		}
		e.attrs, e.attrsErr = codec.DecodeAttrs(e.Payload)
	})
	return e.attrsErr
}

// TaskID returns the task identifier carried in the attribute map.
func (e *Envelope) TaskID() string {
	return e.stringAttr(types.AttrTaskID)
}

// Name returns the human task name.
func (e *Envelope) Name() string {
	return e.name
}

// WorkDir returns the shared-storage working directory.
func (e *Envelope) WorkDir() string {
	return e.stringAttr(types.AttrWorkDir)
}

// TargetDir returns the shared-storage destination for output artifacts.
func (e *Envelope) TargetDir() string {
	return e.stringAttr(types.AttrTargetDir)
}

// InputFiles returns the logical-name to source-path staging map.
func (e *Envelope) InputFiles() map[string]string {
	if e.hydrate() != nil {
		return nil
	}
	raw, ok := e.attrs[types.AttrInputFiles].(map[string]any)
	if !ok {
		return nil
	}
	inputs := make(map[string]string, len(raw))
	for name, source := range raw {
		if s, ok := source.(string); ok {
			inputs[name] = s
		}
	}
	return inputs
}

// OutputFiles returns the declared output patterns.
func (e *Envelope) OutputFiles() []string {
	if e.hydrate() != nil {
		return nil
	}
	raw, ok := e.attrs[types.AttrOutputFiles].([]any)
	if !ok {
		return nil
	}
	patterns := make([]string, 0, len(raw))
	for _, p := range raw {
		if s, ok := p.(string); ok {
			patterns = append(patterns, s)
		}
	}
	return patterns
}

func (e *Envelope) stringAttr(key string) string {
	if e.hydrate() != nil {
		return ""
	}
	s, _ := e.attrs[key].(string)
	return s
}

// stage creates the scratch directory and links every declared input into it
// through the local cache. Inputs are symlinked, never copied, so identical
// inputs across parallel tasks on the same worker share one on-disk copy.
func (e *Envelope) stage() error {
	if e.env == nil || e.env.Cache == nil {
		return errors.New("envelope is not bound to a worker environment")
	}

	timer := metrics.NewTimer()
	scratch, err := e.env.Cache.ScratchDir()
	if err != nil {
		return err
	}
	e.scratch = scratch

	for name, source := range e.InputFiles() {
		cachePath, err := e.env.Cache.CachePath(e.SessionID, source)
		if err != nil {
			return fmt.Errorf("failed to stage input %s: %w", name, err)
		}
		linkPath := filepath.Join(scratch, name)
		if err := os.MkdirAll(filepath.Dir(linkPath), 0o755); err != nil {
			return fmt.Errorf("failed to stage input %s: %w", name, err)
		}
		if err := os.Symlink(cachePath, linkPath); err != nil {
			return fmt.Errorf("failed to stage input %s: %w", name, err)
		}
	}

	e.staged = true
	timer.ObserveDuration(metrics.StagingLatency)
	return nil
}

// unstage copies every output matching the declared patterns from scratch to
// the target directory, preserving scratch-relative paths. Unmatched patterns
// are not fatal; per-file copy failures are logged and skipped.
func (e *Envelope) unstage() error {
	if !e.staged {
		return nil
	}

	targetDir := e.TargetDir()
	if targetDir != "" {
		if err := os.MkdirAll(targetDir, 0o755); err != nil {
			return fmt.Errorf("failed to create target directory: %w", err)
		}
		for _, pattern := range e.OutputFiles() {
			e.copyMatches(pattern, targetDir)
		}
	}

	if hook, ok := e.runner.(artifactCopier); ok {
		return hook.copyArtifacts(e)
	}
	return nil
}

func (e *Envelope) copyMatches(pattern, targetDir string) {
	// Recursive patterns match only regular files; plain patterns accept any
	// entry, including directories.
	filesOnly := strings.Contains(pattern, "**")

	err := doublestar.GlobWalk(os.DirFS(e.scratch), pattern, func(path string, d fs.DirEntry) error {
		if filesOnly && !d.Type().IsRegular() {
			return nil
		}
		src := filepath.Join(e.scratch, filepath.FromSlash(path))
		dst := filepath.Join(targetDir, filepath.FromSlash(path))
		if err := fsutil.CopyPath(src, dst); err != nil {
			e.logger.Warn().Err(err).Str("path", path).Msg("Failed to copy output file")
			return nil
		}
		metrics.UnstagedFiles.Inc()
		return nil
	})
	if err != nil {
		e.logger.Warn().Err(err).Str("pattern", pattern).Msg("Output pattern match failed")
	}
}

func (e *Envelope) removeScratch() {
	if e.scratch == "" {
		return
	}
	if err := os.RemoveAll(e.scratch); err != nil {
		e.logger.Warn().Err(err).Str("scratch", e.scratch).Msg("Failed to remove scratch directory")
	}
	e.scratch = ""
}
