package mcp

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// ParentPollInterval is how often WatchParent checks the parent PID.
var ParentPollInterval = 2 * time.Second

// WatchParent calls cancel when the parent process exits (the parent PID
// changes), so an orphaned stdio server shuts down. It never reads stdin:
// the stdio transport owns it. The goroutine exits with ctx.
func WatchParent(ctx context.Context, cancel context.CancelFunc) {
	ppid := os.Getppid()
	go func() {
		t := time.NewTicker(ParentPollInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if os.Getppid() != ppid {
					slog.Warn("parent process exited, shutting down", "component", "mcp", "ppid", ppid)
					cancel()
					return
				}
			}
		}
	}()
}
