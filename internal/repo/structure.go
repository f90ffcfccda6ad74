package repo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// GraphFileCandidates are the orchestration-graph definition files looked up,
// in order, relative to the repository root.
var GraphFileCandidates = []string{"src/graph.py", "graph.py"}

// GraphEdge is one add_edge(source, target) declaration.
type GraphEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (e GraphEdge) String() string { return e.From + "->" + e.To }

// Structure is the static analysis of an orchestration graph definition.
type Structure struct {
	FileFound     bool        `json:"file_found"`
	File          string      `json:"file,omitempty"`
	Declared      bool        `json:"declared"` // a StateGraph is constructed
	Nodes         []string    `json:"nodes"`
	Edges         []GraphEdge `json:"edges"`
	Conditional   bool        `json:"conditional"`
	HasFanOut     bool        `json:"has_fan_out"`
	UsesReducers  bool        `json:"uses_reducers"`
	FanOutSources []string    `json:"fan_out_sources"`
	FanInTargets  []string    `json:"fan_in_targets"`
	Error         string      `json:"error,omitempty"`
}

// WiringSummary renders the analysis as one human-readable paragraph.
func (s Structure) WiringSummary() string {
	if !s.FileFound {
		return ""
	}
	edges := make([]string, len(s.Edges))
	for i, e := range s.Edges {
		edges[i] = e.String()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "StateGraph declared: %t. Nodes (%d): %s. ", s.Declared, len(s.Nodes), list(s.Nodes))
	fmt.Fprintf(&b, "Edges (%d): %s. ", len(s.Edges), list(edges))
	fmt.Fprintf(&b, "Fan-out: %t; sources with several edges: %s. ", s.HasFanOut, list(s.FanOutSources))
	fmt.Fprintf(&b, "Fan-in targets: %s. ", list(s.FanInTargets))
	fmt.Fprintf(&b, "Conditional edges: %t. Reducers used: %t.", s.Conditional, s.UsesReducers)
	return b.String()
}

func list(xs []string) string { return "[" + strings.Join(xs, ", ") + "]" }

// AnalyzeStructure parses the first graph file found under root and extracts
// declared nodes, edges, fan-out/fan-in and reducer usage.
func AnalyzeStructure(ctx context.Context, root string) Structure {
	var rel string
	for _, c := range GraphFileCandidates {
		if fi, err := os.Stat(filepath.Join(root, filepath.FromSlash(c))); err == nil && !fi.IsDir() {
			rel = c
			break
		}
	}
	if rel == "" {
		return Structure{Error: "no graph file found"}
	}
	src, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return Structure{FileFound: true, File: rel, Error: err.Error()}
	}
	s, err := analyzeGraphSource(ctx, src)
	s.FileFound, s.File = true, rel
	if err != nil {
		s.Error = err.Error()
	}
	return s
}

func parsePython(ctx context.Context, src []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return tree, nil
}

func analyzeGraphSource(ctx context.Context, src []byte) (Structure, error) {
	tree, err := parsePython(ctx, src)
	if err != nil {
		return Structure{}, err
	}
	defer tree.Close()
	root := tree.RootNode()
	if root.HasError() {
		return Structure{}, fmt.Errorf("syntax error")
	}

	var (
		s           Structure
		nodeSeen    = map[string]bool{}
		edgeSeen    = map[GraphEdge]bool{}
		reducerCall bool
	)
	walk(root, func(n *sitter.Node) {
		switch n.Type() {
		case "call":
			name := callName(n, src)
			args := stringArgs(n, src)
			switch {
			case strings.Contains(name, "StateGraph"):
				s.Declared = true
			case strings.Contains(strings.ToLower(name), "add_conditional"):
				s.Conditional = true
			case strings.Contains(name, "add_edge"):
				if len(args) >= 2 && args[0] != "" && args[1] != "" {
					e := GraphEdge{From: args[0], To: args[1]}
					if !edgeSeen[e] {
						edgeSeen[e] = true
						s.Edges = append(s.Edges, e)
					}
				}
			case strings.Contains(name, "add_node"):
				if len(args) >= 1 && args[0] != "" && !nodeSeen[args[0]] {
					nodeSeen[args[0]] = true
					s.Nodes = append(s.Nodes, args[0])
				}
			}
			switch name {
			case "operator.ior", "operator.add", "ior", "add":
				reducerCall = true
			}
		case "assignment":
			if left := n.ChildByFieldName("left"); left != nil && left.Type() == "identifier" && text(left, src) == "reducer" {
				reducerCall = true
			}
		}
	})

	source := string(src)
	s.UsesReducers = reducerCall || strings.Contains(source, "operator.ior") || strings.Contains(source, "operator.add")

	outDeg := map[string]int{}
	inDeg := map[string]int{}
	for _, e := range s.Edges {
		outDeg[e.From]++
		inDeg[e.To]++
	}
	s.FanOutSources = multi(outDeg)
	s.FanInTargets = multi(inDeg)
	s.HasFanOut = s.Conditional || len(s.FanOutSources) > 0
	return s, nil
}

func multi(deg map[string]int) []string {
	var out []string
	for k, v := range deg {
		if v > 1 {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// walk visits n and all of its named descendants depth-first.
func walk(n *sitter.Node, visit func(*sitter.Node)) {
	if n == nil {
		return
	}
	visit(n)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		walk(n.NamedChild(i), visit)
	}
}

func text(n *sitter.Node, src []byte) string {
	return string(src[n.StartByte():n.EndByte()])
}

// callName returns the dotted callee of a call node, e.g. "builder.add_edge".
func callName(call *sitter.Node, src []byte) string {
	fn := call.ChildByFieldName("function")
	if fn == nil {
		return ""
	}
	switch fn.Type() {
	case "identifier", "attribute":
		return strings.Join(strings.Fields(text(fn, src)), "")
	}
	return ""
}

// stringArgs returns the positional arguments of call, with string literals
// unquoted and every other argument as "".
func stringArgs(call *sitter.Node, src []byte) []string {
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return nil
	}
	var out []string
	for i := 0; i < int(args.NamedChildCount()); i++ {
		a := args.NamedChild(i)
		switch a.Type() {
		case "keyword_argument", "comment":
			continue
		case "string":
			out = append(out, unquote(text(a, src)))
		default:
			out = append(out, "")
		}
	}
	return out
}

// unquote strips a Python string prefix and its quotes. f-strings and
// concatenations are returned with their raw body.
func unquote(lit string) string {
	s := strings.TrimLeft(lit, "rRbBuUfF")
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if len(s) >= 2*len(q) && strings.HasPrefix(s, q) && strings.HasSuffix(s, q) {
			return s[len(q) : len(s)-len(q)]
		}
	}
	return s
}
