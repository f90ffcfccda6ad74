package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"auditor/internal/judge"
	"auditor/internal/logging"
)

// File defaults.
const (
	DefaultFileTimeout     = 10 * time.Minute
	DefaultPollInterval    = time.Second
	DefaultMaxStaleRejects = 10
)

// ErrStaleArtifact is returned when an external agent keeps answering an
// older dispatch.
var ErrStaleArtifact = errors.New("oracle: stale artifact tolerance exceeded")

// Signal is written next to each prompt to tell the external agent a prompt
// is waiting.
type Signal struct {
	Status       string `json:"status"` // waiting, processing, done, error
	DispatchID   int64  `json:"dispatch_id"`
	Judge        string `json:"judge"`
	Criterion    string `json:"criterion"`
	Attempt      int    `json:"attempt"`
	PromptPath   string `json:"prompt_path"`
	ArtifactPath string `json:"artifact_path"`
	Timestamp    string `json:"timestamp"`
	Error        string `json:"error,omitempty"`
}

// Artifact is the envelope the agent writes. It is accepted only when
// DispatchID echoes the current signal.
type Artifact struct {
	DispatchID int64           `json:"dispatch_id"`
	Data       json.RawMessage `json:"data"`
}

// File delegates scoring to an external agent through the filesystem: it
// writes a prompt and a signal file, then waits for a matching artifact.
// Each judge and criterion pair uses its own files so concurrent requests do
// not collide.
type File struct {
	Dir             string
	Timeout         time.Duration
	PollInterval    time.Duration
	MaxStaleRejects int
	Log             *slog.Logger

	seq atomic.Int64
}

// NewFile returns a File oracle rooted at dir with default timings.
func NewFile(dir string, timeout time.Duration, log *slog.Logger) *File {
	if timeout <= 0 {
		timeout = DefaultFileTimeout
	}
	if log == nil {
		log = logging.New("file-oracle")
	}
	return &File{Dir: dir, Timeout: timeout, PollInterval: DefaultPollInterval, MaxStaleRejects: DefaultMaxStaleRejects, Log: log}
}

// Name returns the backend identifier.
func (f *File) Name() string { return "file" }

var unsafeName = regexp.MustCompile(`[^\w\-]`)

// Paths returns the prompt, signal and artifact paths for a request.
func (f *File) Paths(req judge.Request) (prompt, signal, artifact string) {
	base := unsafeName.ReplaceAllString(string(req.Judge)+"_"+req.Dimension.ID, "_")
	return filepath.Join(f.Dir, base+".prompt.md"),
		filepath.Join(f.Dir, base+".signal.json"),
		filepath.Join(f.Dir, base+".artifact.json")
}

// Score implements judge.Oracle.
func (f *File) Score(ctx context.Context, req judge.Request) (judge.Verdict, error) {
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return judge.Verdict{}, fmt.Errorf("create oracle dir: %w", err)
	}
	promptPath, signalPath, artifactPath := f.Paths(req)
	did := f.seq.Add(1)
	log := f.logger().With("judge", string(req.Judge), "criterion", req.Dimension.ID, "dispatch_id", did)

	if _, err := os.Stat(artifactPath); err == nil {
		log.Debug("removing stale artifact before dispatch", "path", artifactPath)
		_ = os.Remove(artifactPath)
	}
	if err := os.WriteFile(promptPath, []byte(req.System+"\n\n"+req.Prompt+"\n"), 0o644); err != nil {
		return judge.Verdict{}, fmt.Errorf("write prompt: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return judge.Verdict{}, fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(f.Dir); err != nil {
		return judge.Verdict{}, fmt.Errorf("watch %s: %w", f.Dir, err)
	}

	sig := Signal{
		Status:       "waiting",
		DispatchID:   did,
		Judge:        string(req.Judge),
		Criterion:    req.Dimension.ID,
		Attempt:      req.Attempt,
		PromptPath:   promptPath,
		ArtifactPath: artifactPath,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	}
	if err := WriteSignal(signalPath, &sig); err != nil {
		return judge.Verdict{}, err
	}
	log.Info("signal written, waiting for artifact", "artifact_path", artifactPath, "timeout", f.timeout())

	ctx, cancel := context.WithTimeout(ctx, f.timeout())
	defer cancel()
	poll := time.NewTicker(f.pollInterval())
	defer poll.Stop()

	stale := 0
	check := func() (judge.Verdict, bool, error) {
		data, err := os.ReadFile(artifactPath)
		if err != nil {
			return judge.Verdict{}, false, nil
		}
		var a Artifact
		if err := json.Unmarshal(data, &a); err != nil {
			// Partially written; the next write event retries.
			return judge.Verdict{}, false, nil
		}
		if a.DispatchID != did {
			stale++
			log.Debug("stale artifact", "got", a.DispatchID, "stale_streak", stale)
			if stale >= f.maxStale() {
				return judge.Verdict{}, true, fmt.Errorf("%w: want dispatch %d, got %d", ErrStaleArtifact, did, a.DispatchID)
			}
			return judge.Verdict{}, false, nil
		}
		stale = 0
		v, err := judge.ParseVerdict(string(a.Data))
		return v, true, err
	}

	for {
		select {
		case <-ctx.Done():
			sig.Status, sig.Error = "error", "timeout waiting for artifact"
			_ = WriteSignal(signalPath, &sig)
			return judge.Verdict{}, fmt.Errorf("waiting for %s: %w", artifactPath, ctx.Err())
		case ev, ok := <-w.Events:
			if !ok {
				return judge.Verdict{}, errors.New("oracle: watcher closed")
			}
			if filepath.Clean(ev.Name) != artifactPath || !(ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write)) {
				continue
			}
		case err, ok := <-w.Errors:
			if ok {
				log.Warn("watcher error", "error", err)
			}
			continue
		case <-poll.C:
		}

		v, done, err := check()
		if !done {
			continue
		}
		if err != nil {
			sig.Status, sig.Error = "error", err.Error()
		} else {
			sig.Status, sig.Error = "done", ""
		}
		_ = WriteSignal(signalPath, &sig)
		log.Info("artifact accepted", "error", err)
		return v, err
	}
}

func (f *File) logger() *slog.Logger {
	if f.Log != nil {
		return f.Log
	}
	return slog.Default()
}

func (f *File) timeout() time.Duration {
	if f.Timeout > 0 {
		return f.Timeout
	}
	return DefaultFileTimeout
}

func (f *File) pollInterval() time.Duration {
	if f.PollInterval > 0 {
		return f.PollInterval
	}
	return DefaultPollInterval
}

func (f *File) maxStale() int {
	if f.MaxStaleRejects > 0 {
		return f.MaxStaleRejects
	}
	return DefaultMaxStaleRejects
}

// WriteSignal atomically writes a signal file.
func WriteSignal(path string, sig *Signal) error {
	data, err := json.MarshalIndent(sig, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write signal tmp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		defer os.Remove(tmp)
		return os.WriteFile(path, data, 0o644)
	}
	return nil
}

// ReadSignal reads a signal file.
func ReadSignal(path string) (Signal, error) {
	var s Signal
	data, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	err = json.Unmarshal(data, &s)
	return s, err
}
