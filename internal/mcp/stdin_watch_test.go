package mcp_test

import (
	"bufio"
	"context"
	"io"
	"testing"
	"time"

	"go.uber.org/goleak"

	mcpserver "auditor/internal/mcp"
)

func TestWatchParent_StopsWhenContextCanceled(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	ctx, cancel := context.WithCancel(context.Background())
	mcpserver.WatchParent(ctx, cancel)
	cancel()
	time.Sleep(20 * time.Millisecond)
}

func TestWatchParent_DoesNotConsumeInput(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pr, pw := io.Pipe()
	defer pr.Close()
	mcpserver.WatchParent(ctx, cancel)

	msg := `{"jsonrpc":"2.0","id":1,"method":"initialize"}`
	go func() {
		pw.Write([]byte(msg + "\n"))
		pw.Close()
	}()

	sc := bufio.NewScanner(pr)
	if !sc.Scan() {
		t.Fatalf("reader got no data: %v", sc.Err())
	}
	if got := sc.Text(); got != msg {
		t.Fatalf("reader got %q, want %q", got, msg)
	}
}
