package hookshim

import (
	"encoding/json"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// fakeDaemon is a minimal single-request echo server standing in for the
// real daemon package, so this package's tests don't import daemon (and
// stay focused on the client's own retry/fallback logic).
func fakeDaemon(t *testing.T, socketPath string) func() {
	t.Helper()
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan struct{})
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				buf := make([]byte, 4096)
				n, _ := conn.Read(buf)
				var req struct {
					RequestID string `json:"requestId"`
				}
				_ = json.Unmarshal(buf[:n], &req)
				resp, _ := json.Marshal(map[string]any{
					"requestId": req.RequestID,
					"stdout":    "ok",
					"exitCode":  0,
				})
				resp = append(resp, '\n')
				_, _ = conn.Write(resp)
			}()
		}
	}()
	return func() {
		close(done)
		ln.Close()
	}
}

func TestClientRunUsesDaemonWhenReachable(t *testing.T) {
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "d.sock")
	stop := fakeDaemon(t, socketPath)
	defer stop()

	c := &Client{SocketPath: socketPath, HookName: "ping"}
	legacyCalled := false
	legacy := func(_ []byte) (string, string, int) {
		legacyCalled = true
		return "", "", 1
	}

	stdout, _, exitCode := c.Run(strings.NewReader(`{}`), legacy)
	if legacyCalled {
		t.Fatal("expected the daemon path to succeed without falling back to legacy")
	}
	if stdout != "ok" || exitCode != 0 {
		t.Fatalf("unexpected response: stdout=%q exitCode=%d", stdout, exitCode)
	}
}

func TestClientRunFallsBackToLegacyWhenDaemonUnreachable(t *testing.T) {
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "missing.sock")

	c := &Client{SocketPath: socketPath, HookName: "ping", DaemonArgv: nil, PollBudget: 50 * time.Millisecond, PollInterval: 5 * time.Millisecond}
	legacyCalled := false
	legacy := func(stdin []byte) (string, string, int) {
		legacyCalled = true
		return "legacy-out", "", 0
	}

	stdout, _, exitCode := c.Run(strings.NewReader(`{"a":1}`), legacy)
	if !legacyCalled {
		t.Fatal("expected legacy fallback when the socket never appears and no daemon can be spawned")
	}
	if stdout != "legacy-out" || exitCode != 0 {
		t.Fatalf("unexpected legacy response: stdout=%q exitCode=%d", stdout, exitCode)
	}
}

func TestIsRetryableRecognizesMissingSocket(t *testing.T) {
	dir := t.TempDir()
	_, err := net.DialTimeout("unix", filepath.Join(dir, "nope.sock"), 0)
	if err == nil {
		t.Fatal("expected dialing a nonexistent socket to fail")
	}
	if !isRetryable(err) {
		t.Fatalf("expected a missing-socket dial error to be retryable, got %v", err)
	}
}

func TestRequestIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		id := requestID()
		if seen[id] {
			t.Fatalf("requestID produced a duplicate: %s", id)
		}
		seen[id] = true
	}
}
