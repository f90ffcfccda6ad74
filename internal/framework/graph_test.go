package framework

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// --- test helpers ---

type testState struct {
	Log   []string
	Marks map[string]int
	Flag  string
}

func mergeTest(cur, upd testState) testState {
	out := testState{Flag: cur.Flag}
	out.Log = append(append([]string(nil), cur.Log...), upd.Log...)
	out.Marks = make(map[string]int, len(cur.Marks)+len(upd.Marks))
	for k, v := range cur.Marks {
		out.Marks[k] = v
	}
	for k, v := range upd.Marks {
		out.Marks[k] += v
	}
	if upd.Flag != "" {
		out.Flag = upd.Flag
	}
	return out
}

// marker returns a node that appends its name to Log and sets Marks[name]
// after an optional delay.
func marker(name string, delay time.Duration) Node[testState] {
	return NewNode(name, func(ctx context.Context, _ testState) (testState, error) {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return testState{}, ctx.Err()
			}
		}
		return testState{Log: []string{name}, Marks: map[string]int{name: 1}}, nil
	})
}

type recorder struct {
	mu     sync.Mutex
	steps  map[string]int
	routes []string
}

func newRecorder() *recorder { return &recorder{steps: make(map[string]int)} }

func (r *recorder) OnEvent(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch e.Type {
	case EventNodeExit:
		r.steps[e.Node] = e.Step
	case EventTransition:
		r.routes = append(r.routes, e.Node+"->"+e.Target)
	}
}

// --- tests ---

func TestGraph_FanOutFanInBarrier(t *testing.T) {
	var seen map[string]int
	join := NewNode("join", func(_ context.Context, s testState) (testState, error) {
		seen = s.Marks
		return testState{Log: []string{"join"}}, nil
	})
	nodes := []Node[testState]{
		marker("a", 30*time.Millisecond),
		marker("b", 5*time.Millisecond),
		marker("c", 0),
		join,
	}
	edges := []Edge{
		{ID: "E1", From: "a", To: "join"},
		{ID: "E2", From: "b", To: "join"},
		{ID: "E3", From: "c", To: "join"},
		{ID: "E4", From: "join", To: DefaultDoneNode},
	}
	rec := newRecorder()
	g, err := NewGraph("fan", nodes, edges, nil, []string{"a", "b", "c"}, mergeTest, WithObserver(rec))
	if err != nil {
		t.Fatal(err)
	}

	final, err := g.Run(context.Background(), testState{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if diff := cmp.Diff(map[string]int{"a": 1, "b": 1, "c": 1}, seen); diff != "" {
		t.Errorf("join saw incomplete state (-want +got):\n%s", diff)
	}
	for _, n := range []string{"a", "b", "c"} {
		if rec.steps[n] >= rec.steps["join"] {
			t.Errorf("node %s step %d not before join step %d", n, rec.steps[n], rec.steps["join"])
		}
	}
	if diff := cmp.Diff([]string{"a", "b", "c", "join"}, final.Log); diff != "" {
		t.Errorf("log (-want +got):\n%s", diff)
	}
}

func TestGraph_MergeOrderIndependentOfCompletion(t *testing.T) {
	delays := [][3]time.Duration{
		{0, 10 * time.Millisecond, 20 * time.Millisecond},
		{20 * time.Millisecond, 10 * time.Millisecond, 0},
		{10 * time.Millisecond, 0, 20 * time.Millisecond},
	}
	var results [][]string
	for _, d := range delays {
		nodes := []Node[testState]{marker("x", d[0]), marker("y", d[1]), marker("z", d[2])}
		edges := []Edge{
			{ID: "1", From: "x", To: DefaultDoneNode},
			{ID: "2", From: "y", To: DefaultDoneNode},
			{ID: "3", From: "z", To: DefaultDoneNode},
		}
		g, err := NewGraph("order", nodes, edges, nil, []string{"z", "x", "y"}, mergeTest)
		if err != nil {
			t.Fatal(err)
		}
		final, err := g.Run(context.Background(), testState{})
		if err != nil {
			t.Fatal(err)
		}
		results = append(results, final.Log)
	}
	for i := 1; i < len(results); i++ {
		if diff := cmp.Diff(results[0], results[i]); diff != "" {
			t.Errorf("run %d differs from run 0:\n%s", i, diff)
		}
	}
}

func routedGraph(t *testing.T, rec *recorder) *Graph[testState] {
	t.Helper()
	gate := NewNode("gate", func(_ context.Context, s testState) (testState, error) {
		return testState{Log: []string{"gate"}}, nil
	})
	nodes := []Node[testState]{gate, marker("normal", 0), marker("degraded", 0), marker("final", 0)}
	edges := []Edge{
		{ID: "E1", From: "normal", To: "final"},
		{ID: "E2", From: "final", To: DefaultDoneNode},
		{ID: "E3", From: "degraded", To: DefaultDoneNode},
	}
	routers := []Router[testState]{{
		From: "gate",
		Route: func(s testState) string {
			return s.Flag
		},
		Targets: map[string]string{"ok": "normal", "fail": "degraded", "skip": DefaultDoneNode},
	}}
	var opts []Option
	if rec != nil {
		opts = append(opts, WithObserver(rec))
	}
	g, err := NewGraph("routed", nodes, edges, routers, []string{"gate"}, mergeTest, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestGraph_ConditionalRoute(t *testing.T) {
	cases := []struct {
		flag string
		want []string
	}{
		{"ok", []string{"gate", "normal", "final"}},
		{"fail", []string{"gate", "degraded"}},
		{"skip", []string{"gate"}},
	}
	for _, tc := range cases {
		t.Run(tc.flag, func(t *testing.T) {
			g := routedGraph(t, nil)
			final, err := g.Run(context.Background(), testState{Flag: tc.flag})
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if diff := cmp.Diff(tc.want, final.Log); diff != "" {
				t.Errorf("log (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGraph_NoRoute(t *testing.T) {
	g := routedGraph(t, nil)
	_, err := g.Run(context.Background(), testState{Flag: "unknown"})
	if !errors.Is(err, ErrNoRoute) {
		t.Fatalf("err = %v, want ErrNoRoute", err)
	}
}

func TestGraph_Stalled(t *testing.T) {
	gate := NewNode("gate", func(context.Context, testState) (testState, error) {
		return testState{}, nil
	})
	nodes := []Node[testState]{gate, marker("left", 0), marker("right", 0), marker("join", 0)}
	edges := []Edge{
		{ID: "E1", From: "left", To: "join"},
		{ID: "E2", From: "right", To: "join"},
		{ID: "E3", From: "join", To: DefaultDoneNode},
	}
	routers := []Router[testState]{{
		From:    "gate",
		Route:   func(testState) string { return "l" },
		Targets: map[string]string{"l": "left", "r": "right"},
	}}
	g, err := NewGraph("stall", nodes, edges, routers, []string{"gate"}, mergeTest)
	if err != nil {
		t.Fatal(err)
	}
	_, err = g.Run(context.Background(), testState{})
	if !errors.Is(err, ErrStalled) {
		t.Fatalf("err = %v, want ErrStalled", err)
	}
}

func TestGraph_NodeErrorAborts(t *testing.T) {
	boom := errors.New("boom")
	failing := NewNode("fail", func(context.Context, testState) (testState, error) {
		return testState{}, boom
	})
	nodes := []Node[testState]{failing, marker("slow", 20*time.Millisecond), marker("after", 0)}
	edges := []Edge{
		{ID: "E1", From: "fail", To: "after"},
		{ID: "E2", From: "slow", To: "after"},
		{ID: "E3", From: "after", To: DefaultDoneNode},
	}
	g, err := NewGraph("err", nodes, edges, nil, []string{"fail", "slow"}, mergeTest)
	if err != nil {
		t.Fatal(err)
	}
	final, err := g.Run(context.Background(), testState{})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if len(final.Log) != 0 {
		t.Errorf("failed superstep should not merge, got %v", final.Log)
	}
}

func TestGraph_ContextCanceled(t *testing.T) {
	g := routedGraph(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := g.Run(ctx, testState{Flag: "ok"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestGraph_ObserverSeesTransitions(t *testing.T) {
	rec := newRecorder()
	g := routedGraph(t, rec)
	if _, err := g.Run(context.Background(), testState{Flag: "fail"}); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"gate->degraded"}, rec.routes); diff != "" {
		t.Errorf("routes (-want +got):\n%s", diff)
	}
}

func TestGraph_MaxParallel(t *testing.T) {
	var mu sync.Mutex
	running, peak := 0, 0
	mk := func(name string) Node[testState] {
		return NewNode(name, func(context.Context, testState) (testState, error) {
			mu.Lock()
			running++
			if running > peak {
				peak = running
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			mu.Lock()
			running--
			mu.Unlock()
			return testState{}, nil
		})
	}
	names := []string{"n1", "n2", "n3", "n4"}
	var nodes []Node[testState]
	var edges []Edge
	for _, n := range names {
		nodes = append(nodes, mk(n))
		edges = append(edges, Edge{ID: n, From: n, To: DefaultDoneNode})
	}
	g, err := NewGraph("limit", nodes, edges, nil, names, mergeTest, WithMaxParallel(1))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.Run(context.Background(), testState{}); err != nil {
		t.Fatal(err)
	}
	if peak != 1 {
		t.Errorf("peak concurrency = %d, want 1", peak)
	}
}

func TestNewGraph_Integrity(t *testing.T) {
	a, b := marker("a", 0), marker("b", 0)
	cases := []struct {
		name    string
		edges   []Edge
		routers []Router[testState]
		start   []string
		want    error
	}{
		{"missing source", []Edge{{ID: "E", From: "x", To: "a"}}, nil, []string{"a"}, ErrNodeNotFound},
		{"missing target", []Edge{{ID: "E", From: "a", To: "x"}}, nil, []string{"a"}, ErrNodeNotFound},
		{"missing start", nil, nil, []string{"x"}, ErrNodeNotFound},
		{"cycle", []Edge{{ID: "1", From: "a", To: "b"}, {ID: "2", From: "b", To: "a"}}, nil, []string{"a"}, ErrCycle},
		{"routed cycle", []Edge{{ID: "1", From: "a", To: "b"}}, []Router[testState]{{
			From: "b", Route: func(testState) string { return "x" }, Targets: map[string]string{"x": "a"},
		}}, []string{"a"}, ErrCycle},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewGraph("g", []Node[testState]{a, b}, tc.edges, tc.routers, tc.start, mergeTest)
			if !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestGraph_Accessors(t *testing.T) {
	g := routedGraph(t, nil)
	names := append([]string(nil), g.NodeNames()...)
	sort.Strings(names)
	if diff := cmp.Diff([]string{"degraded", "final", "gate", "normal"}, names); diff != "" {
		t.Errorf("NodeNames (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"normal"}, g.Predecessors("final")); diff != "" {
		t.Errorf("Predecessors (-want +got):\n%s", diff)
	}
	if g.Done() != DefaultDoneNode {
		t.Errorf("Done = %q", g.Done())
	}
}
