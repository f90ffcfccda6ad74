// Package mcp serves audits over the Model Context Protocol: run_audit
// starts an audit session, get_report waits for and returns its report, and
// list_runs and get_signals expose history and pipeline progress.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"sync"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"auditor/internal/audit"
	"auditor/internal/config"
	"auditor/internal/evidence"
	"auditor/internal/framework"
	"auditor/internal/logging"
	"auditor/internal/report"
	"auditor/internal/store"
)

// Version is reported in the MCP implementation info.
var Version = "dev"

// ListLimit is the default number of runs list_runs returns.
const ListLimit = 20

// Server wraps the MCP SDK server and the current audit session.
type Server struct {
	MCPServer *sdkmcp.Server
	Store     store.Store
	Run       Runner

	mu      sync.Mutex
	session *Session
}

// NewServer creates a server whose audits run with cfg and are recorded in
// st. st may be nil, in which case list_runs and run-id lookups fail.
func NewServer(cfg config.Config, st store.Store) *Server {
	s := &Server{Store: st}
	s.Run = func(ctx context.Context, req audit.Request, obs framework.Observer) (*audit.Result, error) {
		a := &audit.Auditor{Config: cfg, Store: st, Observer: obs, Log: logging.New("audit")}
		return a.Run(ctx, req)
	}
	s.MCPServer = sdkmcp.NewServer(&sdkmcp.Implementation{Name: "auditor", Version: Version}, nil)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "run_audit",
		Description: "Start an audit of a repository (and optional report document) against the rubric. Returns a session ID immediately.",
	}, s.handleRunAudit)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_report",
		Description: "Get an audit report as Markdown, by session ID (waits for the audit to finish) or by stored run ID or prefix.",
	}, s.handleGetReport)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_runs",
		Description: "List recorded audits, newest first.",
	}, s.handleListRuns)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_signals",
		Description: "Read pipeline events of the current audit session, optionally from an index onward.",
	}, s.handleGetSignals)
}

// --- Tool input/output types ---

type runAuditInput struct {
	RepoURL      string `json:"repo_url,omitempty" jsonschema:"git URL of the repository to audit"`
	RepoPath     string `json:"repo_path,omitempty" jsonschema:"local checkout to audit instead of cloning"`
	DocumentPath string `json:"document_path,omitempty" jsonschema:"optional PDF or Markdown report to audit alongside"`
	RubricPath   string `json:"rubric_path,omitempty" jsonschema:"rubric file (JSON or YAML); built-in rubric when empty"`
	OutputPath   string `json:"output_path,omitempty" jsonschema:"report destination (.md, .html or .pdf)"`
	Force        bool   `json:"force,omitempty" jsonschema:"cancel a running audit and start this one"`
}

type runAuditOutput struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

type getReportInput struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"session ID from run_audit"`
	RunID     string `json:"run_id,omitempty" jsonschema:"stored run ID or unique prefix"`
}

type getReportOutput struct {
	Status       string  `json:"status"`
	RunID        string  `json:"run_id,omitempty"`
	RepoURL      string  `json:"repo_url,omitempty"`
	OverallScore float64 `json:"overall_score"`
	Dimensions   int     `json:"dimensions"`
	Degraded     bool    `json:"degraded"`
	ReportPath   string  `json:"report_path,omitempty"`
	Report       string  `json:"report,omitempty"`
	Error        string  `json:"error,omitempty"`
}

type listRunsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum runs to return (default 20)"`
}

type runSummary struct {
	RunID        string  `json:"run_id"`
	RepoURL      string  `json:"repo_url"`
	FinishedAt   string  `json:"finished_at"`
	Oracle       string  `json:"oracle"`
	OverallScore float64 `json:"overall_score"`
	Degraded     bool    `json:"degraded"`
	ReportPath   string  `json:"report_path,omitempty"`
}

type listRunsOutput struct {
	Runs []runSummary `json:"runs"`
}

type getSignalsInput struct {
	SessionID string `json:"session_id" jsonschema:"session ID from run_audit"`
	Since     int    `json:"since,omitempty" jsonschema:"return signals from this index onward (0-based)"`
}

type getSignalsOutput struct {
	Signals []Signal `json:"signals"`
	Total   int      `json:"total"`
}

// --- Tool handlers ---

func (s *Server) handleRunAudit(_ context.Context, _ *sdkmcp.CallToolRequest, input runAuditInput) (*sdkmcp.CallToolResult, runAuditOutput, error) {
	log := logging.New("mcp")
	if input.RepoURL == "" && input.RepoPath == "" {
		return nil, runAuditOutput{}, audit.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		select {
		case <-s.session.Done():
		default:
			if !input.Force {
				return nil, runAuditOutput{}, fmt.Errorf("an audit is already running (session_id=%s)", s.session.ID)
			}
			log.Warn("force-replacing running audit", "old_id", s.session.ID)
			s.session.Cancel()
		}
	}

	s.session = NewSession(s.Run, audit.Request{
		RepoURL:      input.RepoURL,
		RepoPath:     input.RepoPath,
		DocumentPath: input.DocumentPath,
		RubricPath:   input.RubricPath,
		OutputPath:   input.OutputPath,
	})
	log.Info("audit session started", "session", s.session.ID, "repo", input.RepoURL, "path", input.RepoPath)
	return nil, runAuditOutput{SessionID: s.session.ID, Status: string(StateRunning)}, nil
}

func (s *Server) handleGetReport(ctx context.Context, _ *sdkmcp.CallToolRequest, input getReportInput) (*sdkmcp.CallToolResult, getReportOutput, error) {
	if input.RunID != "" {
		return s.storedReport(ctx, input.RunID)
	}
	sess, err := s.getSession(input.SessionID)
	if err != nil {
		return nil, getReportOutput{}, err
	}

	select {
	case <-sess.Done():
	case <-ctx.Done():
		return nil, getReportOutput{}, ctx.Err()
	}

	if err := sess.Err(); err != nil {
		return nil, getReportOutput{Status: string(StateError), Error: err.Error()}, nil
	}
	res := sess.Result()
	out := summarize(res.Report)
	out.Status = string(StateDone)
	out.RunID = res.RunID
	out.ReportPath = res.ReportPath
	return nil, out, nil
}

func (s *Server) storedReport(ctx context.Context, id string) (*sdkmcp.CallToolResult, getReportOutput, error) {
	if s.Store == nil {
		return nil, getReportOutput{}, errors.New("audit history is disabled")
	}
	run, err := s.Store.GetRun(ctx, id)
	if err != nil {
		return nil, getReportOutput{}, err
	}
	if run.Report == nil {
		return nil, getReportOutput{Status: "no_report", RunID: run.ID}, nil
	}
	out := summarize(run.Report)
	out.Status = string(StateDone)
	out.RunID = run.ID
	out.ReportPath = run.ReportPath
	return nil, out, nil
}

func summarize(rep *evidence.Report) getReportOutput {
	return getReportOutput{
		RepoURL:      rep.RepoURL,
		OverallScore: rep.OverallScore,
		Dimensions:   len(rep.Criteria),
		Degraded:     rep.Degraded,
		Report:       report.Markdown(rep),
	}
}

func (s *Server) handleListRuns(ctx context.Context, _ *sdkmcp.CallToolRequest, input listRunsInput) (*sdkmcp.CallToolResult, listRunsOutput, error) {
	if s.Store == nil {
		return nil, listRunsOutput{}, errors.New("audit history is disabled")
	}
	limit := input.Limit
	if limit <= 0 {
		limit = ListLimit
	}
	runs, err := s.Store.ListRuns(ctx, limit)
	if err != nil {
		return nil, listRunsOutput{}, fmt.Errorf("list runs: %w", err)
	}
	out := listRunsOutput{Runs: make([]runSummary, 0, len(runs))}
	for _, r := range runs {
		out.Runs = append(out.Runs, runSummary{
			RunID:        r.ID,
			RepoURL:      r.RepoURL,
			FinishedAt:   r.FinishedAt.Format("2006-01-02T15:04:05Z07:00"),
			Oracle:       r.Oracle,
			OverallScore: r.OverallScore,
			Degraded:     r.Degraded,
			ReportPath:   r.ReportPath,
		})
	}
	return nil, out, nil
}

func (s *Server) handleGetSignals(_ context.Context, _ *sdkmcp.CallToolRequest, input getSignalsInput) (*sdkmcp.CallToolResult, getSignalsOutput, error) {
	sess, err := s.getSession(input.SessionID)
	if err != nil {
		return nil, getSignalsOutput{}, err
	}
	return nil, getSignalsOutput{Signals: sess.Bus.Since(input.Since), Total: sess.Bus.Len()}, nil
}

// SessionID returns the current session's ID, or "" if none.
func (s *Server) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		return s.session.ID
	}
	return ""
}

// Shutdown cancels the running audit and waits for it to stop.
func (s *Server) Shutdown() {
	s.mu.Lock()
	sess := s.session
	s.session = nil
	s.mu.Unlock()
	if sess != nil {
		sess.Cancel()
		<-sess.Done()
	}
}

func (s *Server) getSession(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, errors.New("no audit session (call run_audit first)")
	}
	if s.session.ID != id {
		return nil, fmt.Errorf("session_id mismatch: have %s, got %s", s.session.ID, id)
	}
	return s.session, nil
}

// Serve runs the server over stdio until ctx is canceled or the client
// disconnects.
func (s *Server) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	WatchParent(ctx, cancel)
	defer s.Shutdown()
	return s.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}
