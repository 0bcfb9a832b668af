// Package executor provides the batched fund-movement capability the payment
// core depends on. A batch either fully applies or leaves every participating
// resource untouched.
package executor

import (
	"context"
	"fmt"
	"sync"
)

// Call is one fund-moving step in a batch.
type Call struct {
	// Target names the resource the call acts on, for diagnostics.
	Target string
	// Op names the operation, for diagnostics.
	Op string
	// Do performs the step.
	Do func(ctx context.Context) error
}

// Executor executes batches of fund-moving calls atomically.
type Executor interface {
	Execute(ctx context.Context, calls []Call) error
}

// Resource is a stateful participant that can be rolled back when a batch fails.
type Resource interface {
	// Name identifies the resource in diagnostics.
	Name() string
	// Snapshot captures the resource state.
	Snapshot() any
	// Restore reinstates a snapshot taken by Snapshot.
	Restore(snapshot any)
}

// Local executes batches against in-process resources. Before running a
// batch it snapshots every registered resource; if any call fails, all
// snapshots are restored and the batch reports failure with no effect.
type Local struct {
	mu        sync.Mutex
	resources []Resource
}

// NewLocal creates a local executor over the given resources.
func NewLocal(resources ...Resource) *Local {
	return &Local{resources: resources}
}

// Register adds a resource to the executor's rollback set.
func (l *Local) Register(resource Resource) {
	if resource == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resources = append(l.resources, resource)
}

// Execute implements Executor.
func (l *Local) Execute(ctx context.Context, calls []Call) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	snapshots := make([]any, len(l.resources))
	for i, resource := range l.resources {
		snapshots[i] = resource.Snapshot()
	}

	for _, call := range calls {
		if call.Do == nil {
			continue
		}
		if err := call.Do(ctx); err != nil {
			for i, resource := range l.resources {
				resource.Restore(snapshots[i])
			}
			return fmt.Errorf("execute %s %s: %w", call.Target, call.Op, err)
		}
	}
	return nil
}
