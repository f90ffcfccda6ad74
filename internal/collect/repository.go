package collect

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"auditor/internal/evidence"
	"auditor/internal/repo"
	"auditor/internal/rubric"
)

// HistoryLimit caps the commits quoted in history Evidence.
const HistoryLimit = 20

// RequiredFiles are the project files the development-progress hint checks.
var RequiredFiles = []string{"src/state.py", "src/graph.py", "src/tools", "src/nodes", "pyproject.toml", "README.md"}

// Repository collects evidence for repository dimensions.
type Repository struct {
	Inspector repo.Inspector
	Keywords  rubric.Keywords
	Log       *slog.Logger
}

// NewRepository returns a Repository collector using the default keyword
// table.
func NewRepository(in repo.Inspector, log *slog.Logger) *Repository {
	return &Repository{Inspector: in, Keywords: rubric.DefaultKeywords(), Log: log}
}

func (c *Repository) Name() string { return "repo_investigator" }

// repoArtifacts are derived once per run and shared across dimensions.
type repoArtifacts struct {
	path      string
	history   []repo.Commit
	structure repo.Structure
	schema    repo.StateSchema
	files     []string
	safety    []repo.SafetyFinding
	safetyErr error
}

// Collect acquires the repository (or reuses a pre-supplied directory),
// derives its artifacts once and maps them onto every repository dimension.
func (c *Repository) Collect(ctx context.Context, in Input) Output {
	log := logger(c.Log, c.Name())
	dims := dimensions(in, rubric.TargetRepository)
	if len(dims) == 0 {
		return Output{Evidence: evidence.Map{}}
	}

	root := in.RepoPath
	if root != "" {
		if fi, err := os.Stat(root); err != nil || !fi.IsDir() {
			log.Warn("pre-supplied repository path unusable, ignoring", "path", root)
			root = ""
		}
	}
	if root == "" && in.RepoURL != "" {
		p, err := c.Inspector.Acquire(ctx, in.RepoURL)
		if err != nil {
			log.Warn("repository acquisition failed", "url", in.RepoURL, "error", err)
			return Output{Evidence: missingAll(dims, in.RepoURL, err.Error())}
		}
		root = p
	}
	if root == "" {
		return Output{Evidence: missingAll(dims, "(no url)", "No repository URL or path provided.")}
	}

	a := c.derive(ctx, log, root, dims)
	out := make(evidence.Map, len(dims))
	for _, d := range dims {
		out[d.ID] = c.forDimension(d, a)
		log.Debug("dimension collected", "dimension", d.ID, "evidence", len(out[d.ID]))
	}
	log.Info("repository collected", "dimensions", len(dims), "evidence", out.Count(),
		"commits", len(a.history), "files", len(a.files))
	return Output{Evidence: out, RepoPath: root, RepoFiles: a.files}
}

func (c *Repository) derive(ctx context.Context, log *slog.Logger, root string, dims []rubric.Dimension) repoArtifacts {
	a := repoArtifacts{path: root}
	var err error
	if a.history, err = c.Inspector.History(ctx, root); err != nil {
		log.Warn("read history failed", "error", err)
	}
	if a.files, err = c.Inspector.ListFiles(ctx, root); err != nil {
		log.Warn("list files failed", "error", err)
	}
	a.structure = c.Inspector.AnalyzeStructure(ctx, root)
	a.schema = c.Inspector.AnalyzeStateSchema(ctx, root)

	for _, d := range dims {
		if rubric.HasRoute(c.Keywords.Classify(d), rubric.RouteToolSafety) {
			a.safety, a.safetyErr = c.Inspector.ScanSafety(ctx, root)
			break
		}
	}
	return a
}

func (c *Repository) forDimension(d rubric.Dimension, a repoArtifacts) []evidence.Evidence {
	routes := c.Keywords.Classify(d)
	goal := d.ForensicInstruction
	var out []evidence.Evidence

	if rubric.HasRoute(routes, rubric.RouteHistory) {
		out = append(out, historyEvidence(d, a))
	}
	if rubric.HasRoute(routes, rubric.RouteStructure) {
		out = append(out, structureEvidence(d, a))
	}
	if rubric.HasRoute(routes, rubric.RouteStateSchema) && a.schema.FileFound {
		out = append(out, schemaEvidence(d, a))
	}
	switch {
	case rubric.HasRoute(routes, rubric.RouteProgress):
		out = append(out, progressEvidence(d, a))
	case rubric.HasRoute(routes, rubric.RouteToolSafety):
		out = append(out, safetyEvidence(d, a))
	case len(out) == 0:
		out = append(out, evidence.Evidence{
			Goal:       goal,
			Found:      true,
			Location:   a.path,
			Rationale:  d.SuccessPattern,
			Confidence: 0.7,
		})
	}
	return out
}

func historyEvidence(d rubric.Dimension, a repoArtifacts) evidence.Evidence {
	found := len(a.history) > 0
	lines := make([]string, 0, HistoryLimit)
	for i, cm := range a.history {
		if i == HistoryLimit {
			break
		}
		lines = append(lines, cm.ID+" "+cm.Message)
	}
	return evidence.Evidence{
		Goal:       d.ForensicInstruction,
		Found:      found,
		Content:    evidence.Content(strings.Join(lines, "\n")),
		Location:   a.path,
		Rationale:  successOr(found, d.SuccessPattern, d.FailurePattern),
		Confidence: confidence(found, 0.9, 0.2),
	}
}

func structureEvidence(d rubric.Dimension, a repoArtifacts) evidence.Evidence {
	s := a.structure
	edges := make([]string, len(s.Edges))
	for i, e := range s.Edges {
		edges[i] = e.String()
	}
	content := fmt.Sprintf("Static analysis: nodes=[%s], edges=[%s], has_fan_out=%t, reducers_used=%t. Wiring: %s",
		strings.Join(s.Nodes, ", "), strings.Join(edges, ", "), s.HasFanOut, s.UsesReducers, s.WiringSummary())
	rationale := d.SuccessPattern
	if !s.FileFound {
		rationale = d.FailurePattern
		if s.Error != "" {
			rationale = s.Error
		}
	}
	file := s.File
	if file == "" {
		file = repo.GraphFileCandidates[0]
	}
	return evidence.Evidence{
		Goal:       d.ForensicInstruction,
		Found:      s.FileFound,
		Content:    evidence.Content(content),
		Location:   filepath.Join(a.path, file),
		Rationale:  rationale,
		Confidence: confidence(s.FileFound, 0.85, 0.2),
	}
}

func schemaEvidence(d rubric.Dimension, a repoArtifacts) evidence.Evidence {
	s := a.schema
	content := fmt.Sprintf("State schema: models=[%s], Evidence=%t, Opinion=%t, AgentState=%t, reducer_keys=[%s]",
		strings.Join(s.Models, ", "), s.HasEvidence, s.HasOpinion, s.HasAgentState, strings.Join(s.ReducerKeys, ", "))
	rationale := d.SuccessPattern
	if !(s.HasEvidence && s.HasOpinion && len(s.ReducerKeys) > 0) {
		rationale = d.FailurePattern
		if s.Error != "" {
			rationale = s.Error
		}
	}
	return evidence.Evidence{
		Goal:       d.ForensicInstruction,
		Found:      s.Complete(),
		Content:    evidence.Content(content),
		Location:   filepath.Join(a.path, repo.StateFile),
		Rationale:  rationale,
		Confidence: confidence(s.HasEvidence && s.HasOpinion, 0.85, 0.3),
	}
}

// Development-progress level hints, lowest first.
const (
	LevelAbsent      = "absent"
	LevelSuperficial = "superficial"
	LevelPartial     = "partial_pipeline"
	LevelComplete    = "complete_system"
)

func progressEvidence(d rubric.Dimension, a repoArtifacts) evidence.Evidence {
	commits := len(a.history)
	s := a.structure
	hasJudges := anyContains(s.Nodes, "judge", "prosecutor")
	hasChief := anyContains(s.Nodes, "chief", "justice")
	var present int
	for _, f := range RequiredFiles {
		if anyContains(a.files, f) {
			present++
		}
	}

	var level, rationale string
	var conf float64
	switch {
	case commits == 0 && len(a.files) == 0:
		level, conf = LevelAbsent, 0.95
		rationale = "No commits and no files."
	case commits <= 1 && !s.FileFound:
		level, conf = LevelSuperficial, 0.8
		rationale = fmt.Sprintf("%d commit(s) and no graph wiring found.", commits)
	case !s.HasFanOut || !hasJudges || !hasChief:
		level, conf = LevelPartial, 0.85
		rationale = fmt.Sprintf("Commits: %d; graph: %t; fan-out: %t; judges: %t; chief: %t. Core pipeline present, judicial synthesis incomplete.",
			commits, s.FileFound, s.HasFanOut, hasJudges, hasChief)
	default:
		level, conf = LevelComplete, 0.85
		rationale = fmt.Sprintf("Commits: %d; graph with fan-out, judges and chief; required files %d/%d.",
			commits, present, len(RequiredFiles))
	}
	return evidence.Evidence{
		Goal:       d.ForensicInstruction,
		Found:      level == LevelPartial || level == LevelComplete,
		Content:    evidence.Content("Level hint: " + level + ". " + rationale),
		Location:   a.path,
		Rationale:  rationale,
		Confidence: conf,
	}
}

// SafetyListLimit caps the findings quoted in tool-safety Evidence.
const SafetyListLimit = 10

func safetyEvidence(d rubric.Dimension, a repoArtifacts) evidence.Evidence {
	if a.safetyErr != nil {
		return evidence.Missing(d.ForensicInstruction, a.path, "safety scan failed: "+a.safetyErr.Error())
	}
	if len(a.safety) == 0 {
		return evidence.Evidence{
			Goal:       d.ForensicInstruction,
			Found:      true,
			Content:    evidence.Content(fmt.Sprintf("No unsafe execution patterns in %d tracked files.", len(a.files))),
			Location:   a.path,
			Rationale:  d.SuccessPattern,
			Confidence: 0.8,
		}
	}
	lines := []string{fmt.Sprintf("%s %d unsanitized execution site(s):", evidence.UnsafeMarker, len(a.safety))}
	for i, f := range a.safety {
		if i == SafetyListLimit {
			lines = append(lines, fmt.Sprintf("... and %d more", len(a.safety)-SafetyListLimit))
			break
		}
		lines = append(lines, f.String()+": "+f.Text)
	}
	rationale := d.FailurePattern
	if rationale == "" {
		rationale = "Unsafe execution patterns detected."
	}
	return evidence.Evidence{
		Goal:       d.ForensicInstruction,
		Found:      false,
		Content:    evidence.Content(strings.Join(lines, "\n")),
		Location:   a.path,
		Rationale:  evidence.UnsafeMarker + " " + rationale,
		Confidence: 0.85,
	}
}

func anyContains(xs []string, subs ...string) bool {
	for _, x := range xs {
		lx := strings.ToLower(x)
		for _, s := range subs {
			if strings.Contains(lx, strings.ToLower(s)) {
				return true
			}
		}
	}
	return false
}
