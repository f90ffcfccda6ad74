package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"auditor/internal/audit"
	"auditor/internal/framework"
)

// SessionState tracks the lifecycle of an audit session.
type SessionState string

const (
	StateRunning SessionState = "running"
	StateDone    SessionState = "done"
	StateError   SessionState = "error"
)

// Signal is one event on a session's signal bus.
type Signal struct {
	Timestamp string            `json:"ts"`
	Event     string            `json:"event"`
	Node      string            `json:"node,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// SignalBus is a thread-safe, append-only event log for one session.
type SignalBus struct {
	mu      sync.Mutex
	signals []Signal
}

func (b *SignalBus) Emit(event, node string, meta map[string]string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.signals = append(b.signals, Signal{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Event:     event,
		Node:      node,
		Meta:      meta,
	})
}

// Since returns the signals from index idx onward. Negative idx is clamped.
func (b *SignalBus) Since(idx int) []Signal {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx = max(idx, 0)
	if idx >= len(b.signals) {
		return nil
	}
	out := make([]Signal, len(b.signals)-idx)
	copy(out, b.signals[idx:])
	return out
}

func (b *SignalBus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.signals)
}

// OnEvent forwards pipeline events onto the bus.
func (b *SignalBus) OnEvent(e framework.Event) {
	meta := map[string]string{"step": fmt.Sprint(e.Step)}
	switch e.Type {
	case framework.EventNodeExit:
		meta["elapsed"] = e.Elapsed.String()
	case framework.EventTransition:
		meta["route"], meta["target"] = e.Route, e.Target
	}
	if e.Error != nil {
		meta["error"] = e.Error.Error()
	}
	b.Emit(string(e.Type), e.Node, meta)
}

// Runner executes one audit, reporting pipeline events to obs.
type Runner func(ctx context.Context, req audit.Request, obs framework.Observer) (*audit.Result, error)

// Session is one audit started through the run_audit tool.
type Session struct {
	ID      string
	Request audit.Request
	Bus     *SignalBus

	state  SessionState
	result *audit.Result
	err    error
	doneCh chan struct{}
	cancel context.CancelFunc

	mu sync.Mutex
}

// NewSession starts run in a goroutine and returns immediately. The run is
// detached from the caller's context; Cancel stops it.
func NewSession(run Runner, req audit.Request) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:      uuid.NewString(),
		Request: req,
		Bus:     &SignalBus{},
		state:   StateRunning,
		doneCh:  make(chan struct{}),
		cancel:  cancel,
	}
	s.Bus.Emit("session_started", "", map[string]string{"repo": req.RepoURL, "path": req.RepoPath})
	go s.run(ctx, run)
	return s
}

func (s *Session) run(ctx context.Context, run Runner) {
	defer close(s.doneCh)
	defer s.cancel()
	log := slog.Default().With("component", "mcp-session", "session", s.ID)

	res, err := run(ctx, s.Request, s.Bus)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state, s.err = StateError, err
		s.Bus.Emit("session_error", "", map[string]string{"error": err.Error()})
		log.Warn("audit failed", "error", err)
		return
	}
	s.state, s.result = StateDone, res
	s.Bus.Emit("session_done", "", map[string]string{"run_id": res.RunID, "report_path": res.ReportPath})
	log.Info("audit complete", "run", res.RunID, "overall", res.Report.OverallScore)
}

// Cancel stops the audit.
func (s *Session) Cancel() { s.cancel() }

// State returns the current session state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Result returns the finished audit, or nil while running or after an error.
func (s *Session) Result() *audit.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Err returns the audit error, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done closes when the audit finishes.
func (s *Session) Done() <-chan struct{} { return s.doneCh }
