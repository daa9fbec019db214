package remote

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternflow/tern/pkg/cache"
	"github.com/ternflow/tern/pkg/types"
)

func newOperatorEnv(t *testing.T, registry *Registry) *WorkerEnv {
	t.Helper()
	c, err := cache.New(t.TempDir())
	require.NoError(t, err)
	return &WorkerEnv{Cache: c, Operators: NewStaticProvider(registry)}
}

func newOperatorRun(t *testing.T, name string) *types.TaskRun {
	t.Helper()
	return &types.TaskRun{
		ID:        uuid.New().String(),
		Name:      "op-task",
		Kind:      types.TaskKindOperator,
		TargetDir: t.TempDir(),
		Operator:  name,
	}
}

func TestOperatorTaskRoundTrip(t *testing.T) {
	registry := NewRegistry()
	registry.Register("sum", func(ctx context.Context, call *OperatorCall) (any, error) {
		a := call.Args["a"].(int)
		b := call.Args["b"].(int)
		call.Binding["count"] = 1
		return map[string]any{"sum": a + b}, nil
	})

	task := newOperatorRun(t, "sum")
	task.OperatorArgs = map[string]any{"a": 1, "b": 2}
	task.Binding = map[string]any{"count": 0}

	env, err := NewOperatorEnvelope(task, uuid.New())
	require.NoError(t, err)
	env.Bind(newOperatorEnv(t, registry))

	value, err := env.Call(context.Background())
	require.NoError(t, err)

	result, ok := value.(types.OperatorResult)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"sum": 3}, result.Value)
	assert.Equal(t, map[string]any{"count": 1}, result.Binding)
}

func TestOperatorTaskNilBinding(t *testing.T) {
	registry := NewRegistry()
	registry.Register("touch", func(ctx context.Context, call *OperatorCall) (any, error) {
		call.Binding["touched"] = true
		return nil, nil
	})

	task := newOperatorRun(t, "touch")
	env, err := NewOperatorEnvelope(task, uuid.New())
	require.NoError(t, err)
	env.Bind(newOperatorEnv(t, registry))

	value, err := env.Call(context.Background())
	require.NoError(t, err)

	result := value.(types.OperatorResult)
	assert.Equal(t, map[string]any{"touched": true}, result.Binding)
}

func TestOperatorTaskUnknownOperator(t *testing.T) {
	task := newOperatorRun(t, "nonexistent")
	env, err := NewOperatorEnvelope(task, uuid.New())
	require.NoError(t, err)
	env.Bind(newOperatorEnv(t, NewRegistry()))

	_, err = env.Call(context.Background())
	var execErr *ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "op-task", execErr.TaskName)
}

func TestOperatorTaskErrorPropagates(t *testing.T) {
	registry := NewRegistry()
	opErr := errors.New("operator blew up")
	registry.Register("boom", func(ctx context.Context, call *OperatorCall) (any, error) {
		return nil, opErr
	})

	task := newOperatorRun(t, "boom")
	env, err := NewOperatorEnvelope(task, uuid.New())
	require.NoError(t, err)
	env.Bind(newOperatorEnv(t, registry))

	_, err = env.Call(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, opErr)
}

func TestOperatorTaskWithoutName(t *testing.T) {
	task := newOperatorRun(t, "")
	_, err := NewOperatorEnvelope(task, uuid.New())
	assert.Error(t, err)
}

func TestRegistryResolve(t *testing.T) {
	registry := NewRegistry()
	registry.Register("noop", func(ctx context.Context, call *OperatorCall) (any, error) {
		return nil, nil
	})

	_, err := registry.Resolve("noop")
	assert.NoError(t, err)

	_, err = registry.Resolve("other")
	assert.Error(t, err)
}
