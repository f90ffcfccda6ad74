package framework

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultDoneNode is the terminal pseudo-node name.
const DefaultDoneNode = "_done"

// Edge is a static connection. The target runs only after every node with a
// static edge into it has completed (a full barrier).
type Edge struct {
	ID   string
	Name string
	From string
	To   string
}

// Router is a conditional edge: after From completes, Route is evaluated once
// on the merged state and the returned label selects exactly one target.
type Router[S any] struct {
	From    string
	Route   RouteFunc[S]
	Targets map[string]string // label -> node (or the done node)
}

type graphConfig struct {
	done        string
	observer    Observer
	maxParallel int
}

// Option configures a Graph during construction.
type Option func(*graphConfig)

// WithDoneNode sets the terminal pseudo-node name. Defaults to "_done".
func WithDoneNode(name string) Option {
	return func(c *graphConfig) { c.done = name }
}

// WithObserver attaches an observer that receives run events. Observers are
// called from concurrent branches and must be safe for concurrent use.
func WithObserver(o Observer) Option {
	return func(c *graphConfig) { c.observer = o }
}

// WithMaxParallel bounds how many nodes of one superstep run at once.
// Zero means unbounded.
func WithMaxParallel(n int) Option {
	return func(c *graphConfig) { c.maxParallel = n }
}

// Graph is a directed acyclic graph of Nodes over a shared state of type S.
//
// Execution proceeds in supersteps. Every ready node of a superstep runs
// concurrently on the same state snapshot; their partial updates are then
// merged through the reducer in node-name order. A node is ready once it has
// been triggered (by a static edge, a router, or as a start node) and all of
// its static predecessors have completed.
type Graph[S any] struct {
	name      string
	nodes     map[string]Node[S]
	order     []string
	start     []string
	edges     []Edge
	edgeIndex map[string][]Edge // from-node -> edges in definition order
	preds     map[string][]string
	routers   map[string]Router[S]
	merge     Reducer[S]
	cfg       graphConfig
}

// NewGraph constructs a Graph and checks referential integrity and
// acyclicity.
func NewGraph[S any](name string, nodes []Node[S], edges []Edge, routers []Router[S], start []string, merge Reducer[S], opts ...Option) (*Graph[S], error) {
	cfg := graphConfig{done: DefaultDoneNode}
	for _, opt := range opts {
		opt(&cfg)
	}
	if merge == nil {
		return nil, fmt.Errorf("graph %s: reducer is required", name)
	}

	g := &Graph[S]{
		name:      name,
		nodes:     make(map[string]Node[S], len(nodes)),
		start:     start,
		edges:     edges,
		edgeIndex: make(map[string][]Edge),
		preds:     make(map[string][]string),
		routers:   make(map[string]Router[S]),
		merge:     merge,
		cfg:       cfg,
	}
	for _, n := range nodes {
		if _, dup := g.nodes[n.Name()]; dup {
			return nil, fmt.Errorf("graph %s: duplicate node %q", name, n.Name())
		}
		g.nodes[n.Name()] = n
		g.order = append(g.order, n.Name())
	}

	if len(start) == 0 {
		return nil, fmt.Errorf("graph %s: at least one start node is required", name)
	}
	for _, s := range start {
		if _, ok := g.nodes[s]; !ok {
			return nil, fmt.Errorf("%w: start node %q", ErrNodeNotFound, s)
		}
	}

	for _, e := range edges {
		if _, ok := g.nodes[e.From]; !ok {
			return nil, fmt.Errorf("%w: edge %s references source %q", ErrNodeNotFound, e.ID, e.From)
		}
		if e.To != cfg.done {
			if _, ok := g.nodes[e.To]; !ok {
				return nil, fmt.Errorf("%w: edge %s references target %q", ErrNodeNotFound, e.ID, e.To)
			}
			g.preds[e.To] = append(g.preds[e.To], e.From)
		}
		g.edgeIndex[e.From] = append(g.edgeIndex[e.From], e)
	}

	for _, r := range routers {
		if _, ok := g.nodes[r.From]; !ok {
			return nil, fmt.Errorf("%w: router source %q", ErrNodeNotFound, r.From)
		}
		if _, dup := g.routers[r.From]; dup {
			return nil, fmt.Errorf("graph %s: node %q has more than one router", name, r.From)
		}
		if r.Route == nil || len(r.Targets) == 0 {
			return nil, fmt.Errorf("graph %s: router on %q needs a route function and targets", name, r.From)
		}
		for label, to := range r.Targets {
			if to == cfg.done {
				continue
			}
			if _, ok := g.nodes[to]; !ok {
				return nil, fmt.Errorf("%w: route %q from %q targets %q", ErrNodeNotFound, label, r.From, to)
			}
		}
		g.routers[r.From] = r
	}

	if err := g.checkAcyclic(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Graph[S]) Name() string    { return g.name }
func (g *Graph[S]) Start() []string { return g.start }
func (g *Graph[S]) Edges() []Edge   { return g.edges }
func (g *Graph[S]) Done() string    { return g.cfg.done }

// NodeNames returns node names in definition order.
func (g *Graph[S]) NodeNames() []string { return g.order }

// Predecessors returns the static predecessors of node.
func (g *Graph[S]) Predecessors(node string) []string { return g.preds[node] }

// successors lists static and routed targets of node, excluding the done node.
func (g *Graph[S]) successors(node string) []string {
	var out []string
	for _, e := range g.edgeIndex[node] {
		if e.To != g.cfg.done {
			out = append(out, e.To)
		}
	}
	if r, ok := g.routers[node]; ok {
		for _, to := range r.Targets {
			if to != g.cfg.done {
				out = append(out, to)
			}
		}
	}
	return out
}

func (g *Graph[S]) checkAcyclic() error {
	const (
		unvisited = iota
		visiting
		visited
	)
	mark := make(map[string]int, len(g.nodes))
	var visit func(n string) error
	visit = func(n string) error {
		switch mark[n] {
		case visiting:
			return fmt.Errorf("%w: through %q", ErrCycle, n)
		case visited:
			return nil
		}
		mark[n] = visiting
		for _, s := range g.successors(n) {
			if err := visit(s); err != nil {
				return err
			}
		}
		mark[n] = visited
		return nil
	}
	for _, n := range g.order {
		if err := visit(n); err != nil {
			return err
		}
	}
	return nil
}

// Run executes the graph from its start nodes until no node is triggered,
// returning the final merged state. A node error aborts the run; the state
// merged so far is returned alongside the error.
func (g *Graph[S]) Run(ctx context.Context, initial S) (S, error) {
	state := initial
	completed := make(map[string]bool, len(g.nodes))
	triggered := make(map[string]bool, len(g.nodes))
	for _, s := range g.start {
		triggered[s] = true
	}

	for step := 0; ; step++ {
		if err := ctx.Err(); err != nil {
			g.emit(Event{Type: EventRunError, Step: step, Error: err})
			return state, err
		}

		ready := g.ready(triggered, completed)
		if len(ready) == 0 {
			if len(triggered) > 0 {
				waiting := sortedKeys(triggered)
				err := fmt.Errorf("%w: %v", ErrStalled, waiting)
				g.emit(Event{Type: EventRunError, Step: step, Error: err})
				return state, err
			}
			g.emit(Event{Type: EventRunComplete, Step: step})
			return state, nil
		}
		for _, n := range ready {
			delete(triggered, n)
		}

		updates, err := g.superstep(ctx, step, ready, state)
		if err != nil {
			g.emit(Event{Type: EventRunError, Step: step, Error: err})
			return state, err
		}
		for i, n := range ready {
			state = g.merge(state, updates[i])
			completed[n] = true
		}

		for _, n := range ready {
			for _, e := range g.edgeIndex[n] {
				if e.To != g.cfg.done {
					triggered[e.To] = true
				}
			}
			r, ok := g.routers[n]
			if !ok {
				continue
			}
			label := r.Route(state)
			to, ok := r.Targets[label]
			if !ok {
				err := fmt.Errorf("%w: node %q returned %q", ErrNoRoute, n, label)
				g.emit(Event{Type: EventRunError, Step: step, Node: n, Error: err})
				return state, err
			}
			g.emit(Event{Type: EventTransition, Step: step, Node: n, Route: label, Target: to})
			if to != g.cfg.done {
				triggered[to] = true
			}
		}
	}
}

// ready returns the triggered nodes whose static predecessors have all
// completed, sorted by name.
func (g *Graph[S]) ready(triggered, completed map[string]bool) []string {
	var out []string
	for n := range triggered {
		ok := true
		for _, p := range g.preds[n] {
			if !completed[p] {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

func (g *Graph[S]) superstep(ctx context.Context, step int, ready []string, snapshot S) ([]S, error) {
	updates := make([]S, len(ready))
	eg, egCtx := errgroup.WithContext(ctx)
	if g.cfg.maxParallel > 0 {
		eg.SetLimit(g.cfg.maxParallel)
	}
	for i, name := range ready {
		node := g.nodes[name]
		eg.Go(func() error {
			g.emit(Event{Type: EventNodeEnter, Step: step, Node: name})
			start := time.Now()
			upd, err := node.Process(egCtx, snapshot)
			g.emit(Event{Type: EventNodeExit, Step: step, Node: name, Elapsed: time.Since(start), Error: err})
			if err != nil {
				return fmt.Errorf("node %s: %w", name, err)
			}
			updates[i] = upd
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return updates, nil
}

func (g *Graph[S]) emit(e Event) {
	if g.cfg.observer == nil {
		return
	}
	e.Graph = g.name
	g.cfg.observer.OnEvent(e)
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
