package repo

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// StateFile is the state-definition file inspected by AnalyzeStateSchema.
const StateFile = "src/state.py"

// StateSchema describes the typed run-state definition of the audited
// project.
type StateSchema struct {
	FileFound     bool     `json:"file_found"`
	Models        []string `json:"models"`
	ReducerKeys   []string `json:"reducer_keys"`
	HasEvidence   bool     `json:"has_evidence"`
	HasOpinion    bool     `json:"has_opinion"`
	HasAgentState bool     `json:"has_agent_state"`
	Error         string   `json:"error,omitempty"`
}

// Complete reports whether the schema declares the evidence, opinion and
// agent-state models and at least two reducer-annotated keys.
func (s StateSchema) Complete() bool {
	return s.HasEvidence && s.HasOpinion && s.HasAgentState && len(s.ReducerKeys) >= 2
}

// AnalyzeStateSchema inspects StateFile under root for model classes and
// reducer-annotated state keys (Annotated[..., reducer]).
func AnalyzeStateSchema(ctx context.Context, root string) StateSchema {
	src, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(StateFile)))
	if errors.Is(err, os.ErrNotExist) {
		return StateSchema{Error: StateFile + " not found"}
	}
	if err != nil {
		return StateSchema{FileFound: true, Error: err.Error()}
	}
	s, err := analyzeStateSource(ctx, src)
	s.FileFound = true
	if err != nil {
		s.Error = err.Error()
	}
	return s
}

func analyzeStateSource(ctx context.Context, src []byte) (StateSchema, error) {
	tree, err := parsePython(ctx, src)
	if err != nil {
		return StateSchema{}, err
	}
	defer tree.Close()
	root := tree.RootNode()
	if root.HasError() {
		return StateSchema{}, errors.New("syntax error")
	}

	var s StateSchema
	keySeen := map[string]bool{}
	addKey := func(k string) {
		if !keySeen[k] {
			keySeen[k] = true
			s.ReducerKeys = append(s.ReducerKeys, k)
		}
	}

	walk(root, func(n *sitter.Node) {
		switch n.Type() {
		case "class_definition":
			name := n.ChildByFieldName("name")
			if name == nil {
				return
			}
			cls := text(name, src)
			s.Models = append(s.Models, cls)
			switch {
			case cls == "Evidence":
				s.HasEvidence = true
			case cls == "AgentState":
				s.HasAgentState = true
			case strings.HasSuffix(cls, "Opinion"):
				s.HasOpinion = true
			}
		case "assignment":
			left, typ := n.ChildByFieldName("left"), n.ChildByFieldName("type")
			if left == nil || typ == nil || left.Type() != "identifier" {
				return
			}
			if isReducerAnnotation(typ, src) {
				addKey(text(left, src))
			}
		}
	})

	if len(s.ReducerKeys) == 0 {
		source := string(src)
		if strings.Contains(source, "merge_evidences") || strings.Contains(source, "merge_opinions") {
			if strings.Contains(source, "evidences") {
				addKey("evidences")
			}
			if strings.Contains(source, "opinions") {
				addKey("opinions")
			}
		}
	}
	return s, nil
}

// isReducerAnnotation accepts Annotated[T, fn] and any annotation that calls
// a merge/ior/add helper.
func isReducerAnnotation(typ *sitter.Node, src []byte) bool {
	ann := strings.Join(strings.Fields(text(typ, src)), "")
	if strings.HasPrefix(ann, "Annotated[") && strings.Contains(ann, ",") {
		return true
	}
	found := false
	walk(typ, func(n *sitter.Node) {
		if n.Type() != "call" {
			return
		}
		name := strings.ToLower(callName(n, src))
		if strings.Contains(name, "merge") || strings.Contains(name, "ior") || strings.Contains(name, "add") {
			found = true
		}
	})
	return found
}
