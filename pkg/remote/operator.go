package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternflow/tern/pkg/codec"
	"github.com/ternflow/tern/pkg/types"
)

// OperatorTask runs a pre-registered operator on the worker. The operator
// invocation and its delegate binding travel dehydrated; the worker resolves
// the operator through the session-scoped registry, the analogue of loading
// submitter-defined code through a session class loader.
type OperatorTask struct {
	CodeObj     []byte // dehydrated operator invocation
	DelegateObj []byte // dehydrated delegate binding
}

func newOperatorTask(task *types.TaskRun) (*OperatorTask, error) {
	if task.Operator == "" {
		return nil, errors.New("operator task has no operator name")
	}
	codeObj, err := codec.EncodeOperator(codec.OperatorPayload{
		Name: task.Operator,
		Args: task.OperatorArgs,
	})
	if err != nil {
		return nil, err
	}
	delegateObj, err := codec.EncodeBinding(task.Binding)
	if err != nil {
		return nil, err
	}
	return &OperatorTask{CodeObj: codeObj, DelegateObj: delegateObj}, nil
}

// run rehydrates the invocation and binding, resolves the operator through
// the session registry, and invokes it. The binding the operator sees is the
// delegate context; its mutations are returned with the result.
func (t *OperatorTask) run(ctx context.Context, e *Envelope) (any, error) {
	if e.env == nil || e.env.Operators == nil {
		return nil, errors.New("envelope is not bound to an operator provider")
	}
	registry, err := e.env.Operators.RegistryFor(e.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve session registry: %w", err)
	}

	payload, err := codec.DecodeOperator(t.CodeObj)
	if err != nil {
		return nil, err
	}
	binding, err := codec.DecodeBinding(t.DelegateObj)
	if err != nil {
		return nil, err
	}
	if binding == nil {
		binding = make(map[string]any)
	}

	fn, err := registry.Resolve(payload.Name)
	if err != nil {
		return nil, err
	}

	call := &OperatorCall{Args: payload.Args, Binding: binding}
	value, err := fn(ctx, call)
	if err != nil {
		return nil, err
	}
	return types.OperatorResult{Value: value, Binding: call.Binding}, nil
}

// cancel is a no-op: operator cancellation is best-effort through the
// context, there is no external process to destroy.
func (t *OperatorTask) cancel() {}
