package daemon

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xcawolfe-amzn/cc-sessions/internal/state"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 100}))
}

func TestWriteResponseAndReadRequestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := writeResponse(&buf, Response{RequestID: "r1", Stdout: "hi", ExitCode: 0}); err != nil {
		t.Fatal(err)
	}

	reqBuf := bytes.NewBufferString(`{"requestId":"r1","hook":"ping","payload":{}}` + "\n")
	req, err := readRequest(bufio.NewReader(reqBuf))
	if err != nil {
		t.Fatal(err)
	}
	if req.RequestID != "r1" || req.Hook != "ping" {
		t.Fatalf("unexpected decoded request: %+v", req)
	}

	var resp Response
	if err := json.Unmarshal(buf.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Stdout != "hi" {
		t.Fatalf("expected stdout to round-trip, got %q", resp.Stdout)
	}
}

func TestServerPingOverSocket(t *testing.T) {
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "test.sock")

	srv := New(socketPath, discardLogger(), nil)
	if err := srv.Listen(); err != nil {
		t.Fatal(err)
	}
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	req, _ := json.Marshal(Request{RequestID: "abc", Hook: "ping"})
	if _, err := conn.Write(append(req, '\n')); err != nil {
		t.Fatal(err)
	}

	reader := bufio.NewReader(conn)
	line, err := reader.ReadBytes('\n')
	if err != nil {
		t.Fatal(err)
	}
	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		t.Fatal(err)
	}
	if resp.ExitCode != 0 || resp.Stdout != "pong" || resp.RequestID != "abc" {
		t.Fatalf("unexpected ping response: %+v", resp)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop after context cancellation")
	}
}

func TestServerUnknownHookReturnsError(t *testing.T) {
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "test.sock")
	srv := New(socketPath, discardLogger(), nil)
	if err := srv.Listen(); err != nil {
		t.Fatal(err)
	}
	defer srv.Close()

	resp := srv.dispatch(context.Background(), Request{RequestID: "x", Hook: "nonexistent"})
	if resp.ExitCode != 1 {
		t.Fatalf("expected exit 1 for unknown hook, got %+v", resp)
	}
}

func TestComponentCacheReusesInstanceForSameRoot(t *testing.T) {
	c := newComponentCache()
	a := c.get("/tmp/project-a")
	b := c.get("/tmp/project-a")
	if a != b {
		t.Fatal("expected the same components instance for the same root")
	}
	other := c.get("/tmp/project-b")
	if other == a {
		t.Fatal("expected a distinct components instance for a different root")
	}
}

func TestTaskListingCacheReusesWithinTTL(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "1-foo.md"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := newTaskListingCache()
	first, err := c.list(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 1 {
		t.Fatalf("expected one task file, got %v", first)
	}

	if err := os.WriteFile(filepath.Join(dir, "2-bar.md"), []byte("y"), 0o644); err != nil {
		t.Fatal(err)
	}
	second, err := c.list(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(second) != 1 {
		t.Fatalf("expected the cached (stale) listing of length 1 within TTL, got %v", second)
	}
}

func TestHandleStatuslineComposesBadgeAndTask(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}

	srv := New(filepath.Join(dir, "d.sock"), discardLogger(), nil)
	comp := srv.comps.get(dir)
	if err := comp.gate.States.Edit(func(st *state.State) error {
		st.Mode = state.ModeOrchestration
		st.CurrentTask = &state.CurrentTask{Name: "refactor-widgets"}
		st.Todos.Active = []state.Todo{
			{Content: "a", Status: state.TodoCompleted},
			{Content: "b", Status: state.TodoPending},
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	payload, _ := json.Marshal(map[string]any{"cwd": dir, "model": "sonnet"})
	resp := handleStatusline(context.Background(), srv, Request{Hook: "statusline", Payload: payload})
	if resp.ExitCode != 0 {
		t.Fatalf("expected exit 0, got %+v", resp)
	}
	if resp.Stdout == "" {
		t.Fatal("expected a non-empty statusline")
	}
}

func TestHandleUserMessagesSwitchesMode(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	srv := New(filepath.Join(dir, "d.sock"), discardLogger(), nil)

	payload, _ := json.Marshal(map[string]any{"cwd": dir, "prompt": "let's build the thing"})
	resp := handleUserMessages(context.Background(), srv, Request{Hook: "user_messages", Payload: payload})
	if resp.ExitCode != 0 {
		t.Fatalf("expected exit 0, got %+v", resp)
	}

	comp := srv.comps.get(dir)
	st, err := comp.gate.States.Load()
	if err != nil {
		t.Fatal(err)
	}
	if st.Mode != state.ModeOrchestration {
		t.Fatalf("expected mode switched to orchestration, got %v", st.Mode)
	}
}
