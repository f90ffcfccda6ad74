package framework

import "context"

// Node is a processing stage in a state graph. Process receives a snapshot of
// the run state and returns a partial update; fields left at their zero value
// are treated as "no change" by the graph's reducer. Process must not mutate
// the snapshot it is given.
type Node[S any] interface {
	Name() string
	Process(ctx context.Context, state S) (S, error)
}

// NodeFunc adapts a plain function to a named Node.
type NodeFunc[S any] func(ctx context.Context, state S) (S, error)

type funcNode[S any] struct {
	name string
	fn   NodeFunc[S]
}

// NewNode wraps fn as a Node called name.
func NewNode[S any](name string, fn NodeFunc[S]) Node[S] {
	return &funcNode[S]{name: name, fn: fn}
}

func (n *funcNode[S]) Name() string { return n.name }

func (n *funcNode[S]) Process(ctx context.Context, state S) (S, error) {
	return n.fn(ctx, state)
}

// Passthrough returns a node that contributes no update. Used as an explicit
// join or fan-out point.
func Passthrough[S any](name string) Node[S] {
	return NewNode(name, func(context.Context, S) (S, error) {
		var zero S
		return zero, nil
	})
}

// Reducer merges a node's partial update into the current state. It must be
// pure: the graph calls it in node-name order so the merged state does not
// depend on which branch finished first.
type Reducer[S any] func(current, update S) S

// RouteFunc inspects the merged state after its node completes and returns
// a route label.
type RouteFunc[S any] func(state S) string
