package audit

import (
	"context"
	"log/slog"
	"time"

	"auditor/internal/aggregate"
	"auditor/internal/chief"
	"auditor/internal/collect"
	"auditor/internal/evidence"
	"auditor/internal/framework"
	"auditor/internal/judge"
)

// Route labels of the critical-failure router.
const (
	RouteDegraded = "degraded"
	RouteJudicial = "judicial"
)

// stages are the collaborators the pipeline nodes close over.
type stages struct {
	repo         collect.Collector
	doc          collect.Collector
	images       collect.Collector
	bench        *judge.Bench
	justice      *chief.Justice
	queryTimeout time.Duration
	log          *slog.Logger
}

func (st *stages) nodes() framework.NodeRegistry[State] {
	return framework.NodeRegistry[State]{
		"repo_investigator":   st.collector(st.repo, 0),
		"doc_analyst":         st.collector(st.doc, st.queryTimeout),
		"vision_inspector":    st.collector(st.images, st.queryTimeout),
		"evidence_aggregator": st.fn(st.aggregate),
		"degraded_report":     st.fn(st.degraded),
		"passthrough":         func(def framework.NodeDef) framework.Node[State] { return framework.Passthrough[State](def.Name) },
		"judge":               st.judge,
		"judge_collector":     st.fn(st.joinOpinions),
		"chief_justice":       st.fn(st.synthesize),
	}
}

func (st *stages) routers() framework.RouterRegistry[State] {
	return framework.RouterRegistry[State]{
		"critical": func(s State) string {
			if s.CriticalFailure {
				return RouteDegraded
			}
			return RouteJudicial
		},
	}
}

func (st *stages) fn(f framework.NodeFunc[State]) func(framework.NodeDef) framework.Node[State] {
	return func(def framework.NodeDef) framework.Node[State] { return framework.NewNode(def.Name, f) }
}

// collector adapts a Collector. A positive timeout bounds the whole
// collection; collectors turn the expiry into failure evidence.
func (st *stages) collector(c collect.Collector, timeout time.Duration) func(framework.NodeDef) framework.Node[State] {
	return st.fn(func(ctx context.Context, s State) (State, error) {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		out := c.Collect(ctx, s.collectInput())
		return State{
			Evidence:     out.Evidence,
			RepoPath:     out.RepoPath,
			RepoFiles:    out.RepoFiles,
			DocumentText: out.DocumentText,
		}, nil
	})
}

func (st *stages) aggregate(_ context.Context, s State) (State, error) {
	res := aggregate.New(s.Rubric, st.log.With("stage", "aggregator")).Aggregate(aggregate.Input{
		Rubric:       s.Rubric,
		Evidence:     s.Evidence,
		RepoFiles:    s.RepoFiles,
		DocumentText: s.DocumentText,
	})
	if res.CriticalFailure {
		st.log.Warn("no substantive evidence collected, taking degraded path")
	}
	return State{Evidence: res.Added, CriticalFailure: res.CriticalFailure}, nil
}

func (st *stages) degraded(_ context.Context, s State) (State, error) {
	return State{Report: chief.Degraded(s.Rubric, s.Target())}, nil
}

// judge binds a judge node to the persona of the same name.
func (st *stages) judge(def framework.NodeDef) framework.Node[State] {
	j := personaFor(def.Name)
	return framework.NewNode(def.Name, func(ctx context.Context, s State) (State, error) {
		ops, err := st.bench.Deliberate(ctx, j, s.Rubric, s.Evidence)
		if err != nil {
			return State{}, err
		}
		return State{Opinions: ops}, nil
	})
}

// personaFor maps pipeline node names to personas.
func personaFor(node string) evidence.Judge {
	switch node {
	case "prosecutor":
		return evidence.Prosecutor
	case "defense":
		return evidence.Defense
	case "tech_lead":
		return evidence.TechLead
	}
	return evidence.Judge(node)
}

// joinOpinions is the barrier after the judges. It contributes nothing and
// reports dimensions that did not receive one opinion per persona.
func (st *stages) joinOpinions(_ context.Context, s State) (State, error) {
	counts := evidence.CountByCriterion(s.Opinions)
	want := len(evidence.Judges())
	for _, id := range s.Rubric.IDs() {
		if counts[id] != want {
			st.log.Warn("unexpected opinion count", "dimension", id, "opinions", counts[id], "want", want)
		}
	}
	st.log.Info("opinions collected", "opinions", len(s.Opinions), "dimensions", len(counts))
	return State{}, nil
}

func (st *stages) synthesize(_ context.Context, s State) (State, error) {
	return State{Report: st.justice.Synthesize(s.Rubric, s.Target(), s.Evidence, s.Opinions)}, nil
}
