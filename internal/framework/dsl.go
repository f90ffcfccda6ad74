package framework

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// PipelineDef is the top-level DSL structure for declaring a state graph.
// Layout reads top-down: pipeline > nodes > edges > start/done.
type PipelineDef struct {
	Pipeline    string    `yaml:"pipeline"`
	Description string    `yaml:"description,omitempty"`
	Nodes       []NodeDef `yaml:"nodes"`
	Edges       []EdgeDef `yaml:"edges"`
	Start       []string  `yaml:"start"`
	Done        string    `yaml:"done"`
}

// NodeDef declares a node. Family selects the factory; when empty the node
// name is used.
type NodeDef struct {
	Name   string `yaml:"name"`
	Family string `yaml:"family,omitempty"`
}

// EdgeDef declares an edge. Edges carrying Router and When are conditional:
// all conditional edges leaving one node share a router, and the label the
// router returns selects the edge whose When matches.
type EdgeDef struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name,omitempty"`
	From   string `yaml:"from"`
	To     string `yaml:"to"`
	Router string `yaml:"router,omitempty"`
	When   string `yaml:"when,omitempty"`
}

// Conditional reports whether e is a routed edge.
func (e EdgeDef) Conditional() bool { return e.Router != "" }

// NodeRegistry maps node family names to Node factories.
type NodeRegistry[S any] map[string]func(def NodeDef) Node[S]

// RouterRegistry maps router names to route functions.
type RouterRegistry[S any] map[string]RouteFunc[S]

// LoadPipeline parses a YAML pipeline definition.
func LoadPipeline(data []byte) (*PipelineDef, error) {
	var def PipelineDef
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse pipeline YAML: %w", err)
	}
	return &def, nil
}

// Validate checks referential integrity of the pipeline definition:
//   - pipeline name, nodes, edges, start and done are present
//   - node names and edge ids are unique
//   - every start node and edge endpoint exists (or is the done node)
//   - conditional edges from one node share a router and have distinct labels
func (def *PipelineDef) Validate() error {
	if def.Pipeline == "" {
		return fmt.Errorf("pipeline name is required")
	}
	if len(def.Nodes) == 0 {
		return fmt.Errorf("at least one node is required")
	}
	if len(def.Edges) == 0 {
		return fmt.Errorf("at least one edge is required")
	}
	if len(def.Start) == 0 {
		return fmt.Errorf("start node is required")
	}
	if def.Done == "" {
		return fmt.Errorf("done node is required")
	}

	nodeSet := make(map[string]bool, len(def.Nodes))
	for _, n := range def.Nodes {
		if n.Name == "" {
			return fmt.Errorf("node name is required")
		}
		if n.Name == def.Done {
			return fmt.Errorf("node %q shadows the done node", n.Name)
		}
		if nodeSet[n.Name] {
			return fmt.Errorf("duplicate node name %q", n.Name)
		}
		nodeSet[n.Name] = true
	}
	for _, s := range def.Start {
		if !nodeSet[s] {
			return fmt.Errorf("start node %q not found in node list", s)
		}
	}

	edgeIDs := make(map[string]bool, len(def.Edges))
	routerOf := make(map[string]string)
	labels := make(map[string]map[string]bool)
	for _, e := range def.Edges {
		if e.ID == "" {
			return fmt.Errorf("edge id is required")
		}
		if edgeIDs[e.ID] {
			return fmt.Errorf("duplicate edge id %q", e.ID)
		}
		edgeIDs[e.ID] = true

		if !nodeSet[e.From] {
			return fmt.Errorf("edge %s references unknown source node %q", e.ID, e.From)
		}
		if e.To != def.Done && !nodeSet[e.To] {
			return fmt.Errorf("edge %s references unknown target node %q", e.ID, e.To)
		}

		if !e.Conditional() {
			if e.When != "" {
				return fmt.Errorf("edge %s has a label but no router", e.ID)
			}
			continue
		}
		if e.When == "" {
			return fmt.Errorf("conditional edge %s needs a when label", e.ID)
		}
		if r, ok := routerOf[e.From]; ok && r != e.Router {
			return fmt.Errorf("node %q uses routers %q and %q", e.From, r, e.Router)
		}
		routerOf[e.From] = e.Router
		if labels[e.From] == nil {
			labels[e.From] = make(map[string]bool)
		}
		if labels[e.From][e.When] {
			return fmt.Errorf("node %q has duplicate route label %q", e.From, e.When)
		}
		labels[e.From][e.When] = true
	}
	return nil
}

// Build constructs a Graph from def. Node factories are looked up by family,
// then by name; routers by the edge's router name.
func Build[S any](def *PipelineDef, nodes NodeRegistry[S], routers RouterRegistry[S], merge Reducer[S], opts ...Option) (*Graph[S], error) {
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}

	fwNodes := make([]Node[S], 0, len(def.Nodes))
	for _, nd := range def.Nodes {
		factory, ok := nodes[nd.Family]
		if !ok || nd.Family == "" {
			factory = nodes[nd.Name]
		}
		if factory == nil {
			return nil, fmt.Errorf("no node factory for family %q (node %q)", nd.Family, nd.Name)
		}
		fwNodes = append(fwNodes, factory(nd))
	}

	var edges []Edge
	routed := make(map[string]*Router[S])
	var routedOrder []string
	for _, ed := range def.Edges {
		if !ed.Conditional() {
			edges = append(edges, Edge{ID: ed.ID, Name: ed.Name, From: ed.From, To: ed.To})
			continue
		}
		r, ok := routed[ed.From]
		if !ok {
			fn, found := routers[ed.Router]
			if !found {
				return nil, fmt.Errorf("no router %q (node %q)", ed.Router, ed.From)
			}
			r = &Router[S]{From: ed.From, Route: fn, Targets: make(map[string]string)}
			routed[ed.From] = r
			routedOrder = append(routedOrder, ed.From)
		}
		r.Targets[ed.When] = ed.To
	}

	fwRouters := make([]Router[S], 0, len(routed))
	for _, from := range routedOrder {
		fwRouters = append(fwRouters, *routed[from])
	}

	opts = append([]Option{WithDoneNode(def.Done)}, opts...)
	return NewGraph(def.Pipeline, fwNodes, edges, fwRouters, def.Start, merge, opts...)
}
