package audit

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"auditor/internal/document"
	"auditor/internal/evidence"
	"auditor/internal/judge"
	"auditor/internal/repo"
)

type fakeInspector struct {
	path       string
	acquireErr error
	files      []string
	history    []repo.Commit
	structure  repo.Structure
	schema     repo.StateSchema
}

func (f *fakeInspector) Acquire(_ context.Context, url string) (string, error) {
	if f.acquireErr != nil {
		return "", &repo.AcquireError{URL: url, Err: f.acquireErr}
	}
	return f.path, nil
}
func (f *fakeInspector) ListFiles(context.Context, string) ([]string, error) { return f.files, nil }
func (f *fakeInspector) History(context.Context, string) ([]repo.Commit, error) {
	return f.history, nil
}
func (f *fakeInspector) AnalyzeStructure(context.Context, string) repo.Structure { return f.structure }
func (f *fakeInspector) AnalyzeStateSchema(context.Context, string) repo.StateSchema {
	return f.schema
}
func (f *fakeInspector) ScanSafety(context.Context, string) ([]repo.SafetyFinding, error) {
	return nil, nil
}

func unreachableRepo() *fakeInspector {
	return &fakeInspector{acquireErr: errors.New("dial tcp: connection refused")}
}

func healthyRepo(path string) *fakeInspector {
	return &fakeInspector{
		path:  path,
		files: []string{"README.md", "pyproject.toml", "src/graph.py", "src/state.py", "src/nodes/judges.py"},
		history: []repo.Commit{
			{ID: "a1", Message: "scaffold state"},
			{ID: "b2", Message: "wire detectives"},
			{ID: "c3", Message: "add judges"},
			{ID: "d4", Message: "chief justice synthesis"},
		},
		structure: repo.Structure{
			FileFound:     true,
			File:          "src/graph.py",
			Declared:      true,
			Nodes:         []string{"repo_investigator", "doc_analyst", "prosecutor", "defense", "tech_lead", "chief_justice"},
			Edges:         []repo.GraphEdge{{From: "START", To: "repo_investigator"}, {From: "START", To: "doc_analyst"}},
			HasFanOut:     true,
			UsesReducers:  true,
			FanOutSources: []string{"START"},
		},
		schema: repo.StateSchema{
			FileFound:     true,
			Models:        []string{"Evidence", "JudicialOpinion", "AgentState"},
			HasEvidence:   true,
			HasOpinion:    true,
			HasAgentState: true,
			ReducerKeys:   []string{"evidences", "opinions"},
		},
	}
}

type fakeReader struct {
	text   string
	images []document.Image
}

func (r fakeReader) Ingest(_ context.Context, path string) (*document.Store, error) {
	return document.NewStore(path, r.text), nil
}
func (r fakeReader) ExtractImages(context.Context, string) ([]document.Image, error) {
	return r.images, nil
}

type fixedDescriber string

func (d fixedDescriber) Describe(context.Context, document.Image, string) (string, error) {
	return string(d), nil
}

// countingOracle scores each persona with a fixed value and records calls.
type countingOracle struct {
	scores map[evidence.Judge]int
	fail   bool
	calls  atomic.Int64

	mu   sync.Mutex
	seen map[string]int
}

func (o *countingOracle) Score(_ context.Context, req judge.Request) (judge.Verdict, error) {
	o.calls.Add(1)
	o.mu.Lock()
	if o.seen == nil {
		o.seen = map[string]int{}
	}
	o.seen[req.Dimension.ID]++
	o.mu.Unlock()
	if o.fail {
		return judge.Verdict{}, errors.New("model overloaded")
	}
	return judge.Verdict{
		Score:         o.scores[req.Judge],
		Argument:      string(req.Judge) + " weighed the evidence for " + req.Dimension.ID + ".",
		CitedEvidence: []string{"src/graph.py"},
	}, nil
}

func writeFile(dir, name, body string) string {
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		panic(err)
	}
	return p
}
