package framework

import (
	"log/slog"
	"time"
)

// EventType classifies run events for filtering and routing.
type EventType string

const (
	EventNodeEnter   EventType = "node_enter"
	EventNodeExit    EventType = "node_exit"
	EventTransition  EventType = "transition"
	EventRunComplete EventType = "run_complete"
	EventRunError    EventType = "run_error"
)

// Event is a single observation from a graph run.
type Event struct {
	Type    EventType
	Graph   string
	Node    string
	Step    int
	Route   string
	Target  string
	Elapsed time.Duration
	Error   error
}

// Observer receives events during a graph run. Single-method so new event
// types never break existing observers.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc func(Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }

// MultiObserver fans out events to multiple observers.
type MultiObserver []Observer

func (m MultiObserver) OnEvent(e Event) {
	for _, o := range m {
		o.OnEvent(e)
	}
}

// LogObserver writes run events as structured slog lines.
type LogObserver struct {
	Logger *slog.Logger
}

func (o LogObserver) OnEvent(e Event) {
	l := o.Logger
	if l == nil {
		l = slog.Default()
	}
	attrs := []any{"graph", e.Graph, "step", e.Step}
	if e.Node != "" {
		attrs = append(attrs, "node", e.Node)
	}
	switch e.Type {
	case EventNodeEnter:
		l.Debug("node enter", attrs...)
	case EventNodeExit:
		attrs = append(attrs, "elapsed", e.Elapsed)
		if e.Error != nil {
			l.Warn("node failed", append(attrs, "error", e.Error)...)
			return
		}
		l.Info("node done", attrs...)
	case EventTransition:
		l.Info("route", append(attrs, "label", e.Route, "target", e.Target)...)
	case EventRunComplete:
		l.Info("run complete", attrs...)
	case EventRunError:
		l.Error("run failed", append(attrs, "error", e.Error)...)
	}
}
