package framework

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const sampleYAML = `
pipeline: sample
description: two collectors, a gate and two terminals
nodes:
  - name: left
    family: mark
  - name: right
    family: mark
  - name: gate
  - name: good
    family: mark
  - name: bad
    family: mark
edges:
  - id: E1
    from: left
    to: gate
  - id: E2
    from: right
    to: gate
  - id: E3
    from: gate
    to: good
    router: verdict
    when: ok
  - id: E4
    from: gate
    to: bad
    router: verdict
    when: fail
  - id: E5
    from: good
    to: _done
  - id: E6
    from: bad
    to: _done
start: [left, right]
done: _done
`

func sampleRegistries() (NodeRegistry[testState], RouterRegistry[testState]) {
	nodes := NodeRegistry[testState]{
		"mark": func(def NodeDef) Node[testState] { return marker(def.Name, 0) },
		"gate": func(def NodeDef) Node[testState] { return Passthrough[testState](def.Name) },
	}
	routers := RouterRegistry[testState]{
		"verdict": func(s testState) string {
			if s.Flag == "" {
				return "fail"
			}
			return "ok"
		},
	}
	return nodes, routers
}

func TestLoadPipeline_BuildAndRun(t *testing.T) {
	def, err := LoadPipeline([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("LoadPipeline: %v", err)
	}
	if def.Pipeline != "sample" || len(def.Nodes) != 5 || len(def.Edges) != 6 {
		t.Fatalf("unexpected def: %+v", def)
	}
	if !def.Edges[2].Conditional() || def.Edges[0].Conditional() {
		t.Error("Conditional() misclassified edges")
	}

	nodes, routers := sampleRegistries()
	g, err := Build(def, nodes, routers, mergeTest)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if diff := cmp.Diff([]string{"left", "right"}, g.Predecessors("gate")); diff != "" {
		t.Errorf("gate predecessors (-want +got):\n%s", diff)
	}

	final, err := g.Run(context.Background(), testState{Flag: "x"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if diff := cmp.Diff([]string{"left", "right", "good"}, final.Log); diff != "" {
		t.Errorf("ok path (-want +got):\n%s", diff)
	}

	final, err = g.Run(context.Background(), testState{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if diff := cmp.Diff([]string{"left", "right", "bad"}, final.Log); diff != "" {
		t.Errorf("fail path (-want +got):\n%s", diff)
	}
}

func TestBuild_MissingFactoryOrRouter(t *testing.T) {
	def, err := LoadPipeline([]byte(sampleYAML))
	if err != nil {
		t.Fatal(err)
	}
	nodes, routers := sampleRegistries()

	delete(nodes, "gate")
	if _, err := Build(def, nodes, routers, mergeTest); err == nil || !strings.Contains(err.Error(), "no node factory") {
		t.Errorf("missing factory: err = %v", err)
	}

	nodes, _ = sampleRegistries()
	if _, err := Build(def, nodes, RouterRegistry[testState]{}, mergeTest); err == nil || !strings.Contains(err.Error(), "no router") {
		t.Errorf("missing router: err = %v", err)
	}
}

func TestPipelineDef_Validate(t *testing.T) {
	base := func() *PipelineDef {
		def, err := LoadPipeline([]byte(sampleYAML))
		if err != nil {
			t.Fatal(err)
		}
		return def
	}
	cases := []struct {
		name   string
		mutate func(*PipelineDef)
		want   string
	}{
		{"ok", func(*PipelineDef) {}, ""},
		{"no name", func(d *PipelineDef) { d.Pipeline = "" }, "pipeline name"},
		{"no start", func(d *PipelineDef) { d.Start = nil }, "start node is required"},
		{"no done", func(d *PipelineDef) { d.Done = "" }, "done node"},
		{"unknown start", func(d *PipelineDef) { d.Start = []string{"ghost"} }, "not found"},
		{"duplicate node", func(d *PipelineDef) { d.Nodes = append(d.Nodes, NodeDef{Name: "left"}) }, "duplicate node"},
		{"shadow done", func(d *PipelineDef) { d.Nodes = append(d.Nodes, NodeDef{Name: "_done"}) }, "shadows"},
		{"duplicate edge", func(d *PipelineDef) { d.Edges[1].ID = "E1" }, "duplicate edge"},
		{"unknown target", func(d *PipelineDef) { d.Edges[0].To = "ghost" }, "unknown target"},
		{"label without router", func(d *PipelineDef) { d.Edges[0].When = "x" }, "no router"},
		{"router without label", func(d *PipelineDef) { d.Edges[2].When = "" }, "needs a when label"},
		{"mixed routers", func(d *PipelineDef) { d.Edges[3].Router = "other" }, "uses routers"},
		{"duplicate label", func(d *PipelineDef) { d.Edges[3].When = "ok" }, "duplicate route label"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			def := base()
			tc.mutate(def)
			err := def.Validate()
			if tc.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("err = %v, want substring %q", err, tc.want)
			}
		})
	}
}

func TestLogObserver_NilLoggerUsesDefault(t *testing.T) {
	// Must not panic with a zero-value observer.
	LogObserver{}.OnEvent(Event{Type: EventNodeExit, Graph: "g", Node: "n"})
}
