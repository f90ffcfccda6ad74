// Package audit runs one audit end to end: pre-flight validation, the
// collector/aggregator/judge/chief pipeline, report writing and history.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"auditor/internal/chief"
	"auditor/internal/collect"
	"auditor/internal/config"
	"auditor/internal/document"
	"auditor/internal/evidence"
	"auditor/internal/framework"
	"auditor/internal/judge"
	"auditor/internal/oracle"
	"auditor/internal/repo"
	"auditor/internal/report"
	"auditor/internal/rubric"
	"auditor/internal/store"
)

var (
	// ErrInvalidInput is returned when neither a repository URL nor a path
	// is given.
	ErrInvalidInput = errors.New("audit: repository url or path is required")
	// ErrEmptyRubric is returned for a rubric without dimensions.
	ErrEmptyRubric = errors.New("audit: rubric has no dimensions")
)

// Request names what to audit. Only one of RepoURL and RepoPath is needed.
type Request struct {
	RepoURL      string
	RepoPath     string
	DocumentPath string
	RubricPath   string
	// OutputPath overrides the default audit/report_<slug>.md. The extension
	// selects Markdown, HTML or PDF.
	OutputPath string
}

// Result is a finished audit.
type Result struct {
	RunID        string
	Report       *evidence.Report
	ReportPath   string
	RubricSource string
	Oracle       string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Auditor holds the collaborators of a run. Nil collaborators are built
// from Config: a go-git Inspector, the file document Reader, and the oracle
// backend it names. History goes to Store, or to a SQLite database opened at
// HistoryPath after the run; with neither it is not kept.
type Auditor struct {
	Config    config.Config
	Inspector repo.Inspector
	Reader    document.Reader
	Describer document.Describer
	Oracle    judge.Oracle
	// OracleName is recorded in history when Oracle is injected.
	OracleName  string
	Store       store.Store
	HistoryPath string
	Observer    framework.Observer
	Log         *slog.Logger
}

func (a *Auditor) logger() *slog.Logger {
	if a.Log != nil {
		return a.Log
	}
	return slog.Default()
}

// Run audits req. Pre-flight and configuration errors return before any
// side effect; once the pipeline starts, collection and oracle failures are
// encoded in the report and only report writing or cancellation can fail.
func (a *Auditor) Run(ctx context.Context, req Request) (*Result, error) {
	log := a.logger()
	req.RepoURL = strings.TrimSpace(req.RepoURL)
	req.RepoPath = strings.TrimSpace(req.RepoPath)
	if req.RepoURL == "" && req.RepoPath == "" {
		return nil, ErrInvalidInput
	}

	rubricPath := req.RubricPath
	if rubricPath == "" {
		rubricPath = a.Config.Rubric
	}
	rb, source, err := rubric.Resolve(rubricPath)
	if err != nil {
		return nil, fmt.Errorf("load rubric: %w", err)
	}
	if len(rb.Dimensions) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyRubric, source)
	}

	set, err := a.oracles(ctx)
	if err != nil {
		return nil, err
	}

	workDir, err := os.MkdirTemp("", "auditor-run-")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	st := a.stages(set, workDir)
	opts := []framework.Option{framework.WithObserver(a.observer())}
	g, err := st.graph(opts...)
	if err != nil {
		return nil, err
	}

	res := &Result{
		RunID:        store.NewRunID(),
		RubricSource: source,
		Oracle:       set.Name,
		StartedAt:    time.Now().UTC(),
	}
	log = log.With("run", res.RunID)
	log.Info("audit started", "repo", req.RepoURL, "path", req.RepoPath, "document", req.DocumentPath,
		"rubric", source, "dimensions", len(rb.Dimensions), "oracle", set.Name)

	final, err := g.Run(ctx, State{
		RepoURL:      req.RepoURL,
		RepoPath:     req.RepoPath,
		DocumentPath: req.DocumentPath,
		RubricPath:   source,
		Rubric:       rb,
		Evidence:     evidence.Map{},
	})
	if err != nil {
		return nil, fmt.Errorf("run pipeline: %w", err)
	}
	if final.Report == nil {
		return nil, errors.New("audit: pipeline finished without a report")
	}
	res.Report = final.Report
	res.FinishedAt = time.Now().UTC()

	res.ReportPath = req.OutputPath
	if res.ReportPath == "" {
		res.ReportPath = report.DefaultPath(a.Config.OutputDir, final.Target())
	}
	if err := report.Write(ctx, res.Report, res.ReportPath); err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}
	a.record(ctx, log, req, rb, res)

	log.Info("audit finished", "overall", res.Report.OverallScore, "degraded", res.Report.Degraded,
		"dissent", res.Report.DissentCount(), "report", res.ReportPath, "elapsed", res.FinishedAt.Sub(res.StartedAt))
	return res, nil
}

// oracles resolves the scoring oracle and vision describer, validating the
// configuration only for what has to be built from it.
func (a *Auditor) oracles(ctx context.Context) (oracle.Set, error) {
	set := oracle.Set{Name: a.OracleName, Oracle: a.Oracle, Describer: a.Describer}
	if set.Oracle != nil && set.Describer != nil {
		if set.Name == "" {
			set.Name = "custom"
		}
		return set, nil
	}
	if err := a.Config.Validate(); err != nil {
		return oracle.Set{}, err
	}
	opts := a.Config.OracleOptions()
	opts.Log = a.logger().With("component", "oracle")
	built, err := oracle.New(ctx, opts)
	if err != nil {
		return oracle.Set{}, fmt.Errorf("configure oracle: %w", err)
	}
	if set.Oracle == nil {
		set.Oracle, set.Name = built.Oracle, built.Name
	}
	if set.Describer == nil {
		set.Describer = built.Describer
	}
	return set, nil
}

func (a *Auditor) stages(set oracle.Set, workDir string) *stages {
	log := a.logger()
	insp := a.Inspector
	if insp == nil {
		insp = &repo.Git{
			Depth:   a.Config.CloneDepth,
			Timeout: a.Config.CloneTimeout.Duration,
			WorkDir: workDir,
			Log:     log.With("component", "git"),
		}
	}
	reader := a.Reader
	if reader == nil {
		reader = document.Files{}
	}
	return &stages{
		repo:   collect.NewRepository(insp, log),
		doc:    &collect.Document{Reader: reader, Log: log},
		images: &collect.Images{Reader: reader, Describer: set.Describer, Log: log},
		bench: &judge.Bench{
			Oracle:      set.Oracle,
			MaxAttempts: a.Config.MaxAttempts,
			Parallel:    a.Config.Parallel,
			Log:         log.With("stage", "judges"),
		},
		justice:      &chief.Justice{Log: log.With("stage", "chief")},
		queryTimeout: a.Config.QueryTimeout.Duration,
		log:          log,
	}
}

func (a *Auditor) observer() framework.Observer {
	obs := framework.MultiObserver{framework.LogObserver{Logger: a.logger().With("component", "pipeline")}}
	if a.Observer != nil {
		obs = append(obs, a.Observer)
	}
	return obs
}

// record saves the run to history. History is best effort: a failure is
// logged and the audit still succeeds.
func (a *Auditor) record(ctx context.Context, log *slog.Logger, req Request, rb *rubric.Rubric, res *Result) {
	st := a.Store
	if st == nil {
		if a.HistoryPath == "" {
			return
		}
		opened, err := store.Open(a.HistoryPath)
		if err != nil {
			log.Warn("history database unavailable", "path", a.HistoryPath, "error", err)
			return
		}
		defer opened.Close()
		st = opened
	}
	target := req.RepoURL
	if target == "" {
		target = req.RepoPath
	}
	run := &store.Run{
		ID:           res.RunID,
		RepoURL:      target,
		DocumentPath: req.DocumentPath,
		RubricName:   rb.Metadata.Name,
		Oracle:       res.Oracle,
		StartedAt:    res.StartedAt,
		FinishedAt:   res.FinishedAt,
		OverallScore: res.Report.OverallScore,
		TotalPoints:  res.Report.TotalPoints,
		MaxPoints:    res.Report.MaxPoints,
		Degraded:     res.Report.Degraded,
		ReportPath:   res.ReportPath,
		Report:       res.Report,
	}
	if err := st.SaveRun(ctx, run); err != nil {
		log.Warn("history not saved", "error", err)
	}
}

// RunAudit runs one audit with collaborators built from cfg, recording it in
// the history database unless cfg.NoHistory is set.
func RunAudit(ctx context.Context, cfg config.Config, req Request) (*Result, error) {
	a := &Auditor{Config: cfg, Log: slog.Default().With("component", "audit")}
	if !cfg.NoHistory {
		a.HistoryPath = cfg.DBPath
	}
	return a.Run(ctx, req)
}
