package framework

import "errors"

var (
	// ErrNodeNotFound is returned when a referenced node does not exist in the graph.
	ErrNodeNotFound = errors.New("framework: node not found")

	// ErrNoRoute is returned when a router yields a label with no declared target.
	ErrNoRoute = errors.New("framework: no route for label")

	// ErrStalled is returned when triggered nodes remain but none can run
	// because a static predecessor will never complete.
	ErrStalled = errors.New("framework: graph stalled waiting on predecessors")

	// ErrCycle is returned when the static and routed edges form a cycle.
	ErrCycle = errors.New("framework: graph contains a cycle")
)
