package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"auditor/internal/document"
	"auditor/internal/judge"
)

// Backend names.
const (
	BackendBasic = "basic"
	BackendGenAI = "genai"
	BackendFile  = "file"
)

// ErrUnknownBackend is returned for an unrecognized backend name.
var ErrUnknownBackend = errors.New("oracle: unknown backend")

// Options selects and configures the scoring and vision backends.
type Options struct {
	Backend     string
	APIKey      string
	Model       string
	VisionModel string
	Temperature float32
	FileDir     string
	FileTimeout time.Duration
	Log         *slog.Logger
}

// Set is a configured scoring oracle plus vision describer.
type Set struct {
	Name      string
	Oracle    judge.Oracle
	Describer document.Describer
}

// New builds the backends named by o. The vision describer uses Gemini
// whenever an API key is present, regardless of the scoring backend, and
// falls back to Stub otherwise.
func New(ctx context.Context, o Options) (Set, error) {
	var s Set
	switch o.Backend {
	case "", BackendBasic:
		s.Name, s.Oracle = BackendBasic, Basic{}
	case BackendGenAI:
		g, err := NewGenAI(ctx, o.APIKey, o.Model, o.Temperature)
		if err != nil {
			return Set{}, err
		}
		s.Name, s.Oracle = BackendGenAI, g
	case BackendFile:
		if o.FileDir == "" {
			return Set{}, fmt.Errorf("file oracle: directory is required")
		}
		s.Name, s.Oracle = BackendFile, NewFile(o.FileDir, o.FileTimeout, o.Log)
	default:
		return Set{}, fmt.Errorf("%w: %q", ErrUnknownBackend, o.Backend)
	}

	s.Describer = Stub{}
	if o.APIKey != "" {
		v, err := NewGenAIVision(ctx, o.APIKey, o.VisionModel)
		if err != nil {
			return Set{}, err
		}
		s.Describer = v
	}
	return s, nil
}
