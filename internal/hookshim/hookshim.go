// Package hookshim implements the thin per-hook client the host agent
// actually invokes (spec §4.I): read stdin to EOF, try the daemon's
// socket, auto-spawn the daemon on a retryable connect failure, and fall
// back to a bundled legacy implementation on any terminal failure.
// Grounded on the teacher's internal/cmd/daemon.go "start" subcommand's
// detached exec.Command(...).Start() spawn pattern, adapted from a
// user-invoked CLI subcommand to an automatic, silent respawn a hook
// shim performs on the host's behalf.
package hookshim

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"net"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/google/uuid"
)

// pollBudget bounds how long the client waits for a freshly spawned
// daemon's socket to appear before giving up and falling back to legacy
// (spec §4.I: "waits (polling) up to ~1.5s").
const pollBudget = 1500 * time.Millisecond

const pollInterval = 50 * time.Millisecond

// LegacyFunc runs the bundled per-invocation implementation of one hook,
// given its raw stdin. It returns the same (stdout, stderr, exitCode)
// triple a daemon round-trip would have produced.
type LegacyFunc func(stdin []byte) (stdout string, stderr string, exitCode int)

// Client dispatches one hook invocation to the daemon, or to legacy.
type Client struct {
	SocketPath string
	HookName   string
	DaemonArgv []string // argv[0] + args to spawn the daemon in the background

	// PollBudget/PollInterval override the package defaults (tests only;
	// zero values fall back to pollBudget/pollInterval).
	PollBudget   time.Duration
	PollInterval time.Duration
}

// NewClient builds a Client for hookName that dials socketPath as given;
// resolving the socket path is left to the caller.
func NewClient(hookName, socketPath string) *Client {
	self, err := os.Executable()
	if err != nil {
		self = "cc-sessions"
	}
	return &Client{
		SocketPath: socketPath,
		HookName:   hookName,
		DaemonArgv: []string{self, "daemon", "run"},
	}
}

// Run executes the full pre-dispatch/auto-spawn/fallback sequence for one
// hook call: read stdin, try the daemon, and only call legacy if the
// daemon path terminally fails.
func (c *Client) Run(stdin io.Reader, legacy LegacyFunc) (stdout string, stderr string, exitCode int) {
	payload, err := io.ReadAll(stdin)
	if err != nil {
		return "", "cc-sessions: reading stdin: " + err.Error(), 1
	}

	stdout, stderr, exitCode, err = c.viaDaemon(payload)
	if err == nil {
		return stdout, stderr, exitCode
	}

	if isRetryable(err) {
		c.spawnDaemon()
		if c.awaitSocket() {
			stdout, stderr, exitCode, err = c.viaDaemon(payload)
			if err == nil {
				return stdout, stderr, exitCode
			}
		}
	}

	return legacy(payload)
}

// viaDaemon opens one connection, sends a single request line, and reads
// the matching response line.
func (c *Client) viaDaemon(payload []byte) (stdout, stderr string, exitCode int, err error) {
	conn, err := net.DialTimeout("unix", c.SocketPath, 500*time.Millisecond)
	if err != nil {
		return "", "", 0, err
	}
	defer conn.Close()

	req := struct {
		RequestID string          `json:"requestId"`
		Hook      string          `json:"hook"`
		Payload   json.RawMessage `json:"payload"`
	}{RequestID: requestID(), Hook: c.HookName, Payload: json.RawMessage(payload)}

	data, marshalErr := json.Marshal(req)
	if marshalErr != nil {
		return "", "", 0, marshalErr
	}
	data = append(data, '\n')
	if _, writeErr := conn.Write(data); writeErr != nil {
		return "", "", 0, writeErr
	}

	line, readErr := bufio.NewReader(conn).ReadBytes('\n')
	if readErr != nil && len(line) == 0 {
		return "", "", 0, readErr
	}

	var resp struct {
		Stdout   string `json:"stdout"`
		Stderr   string `json:"stderr"`
		ExitCode int    `json:"exitCode"`
	}
	if jsonErr := json.Unmarshal(line, &resp); jsonErr != nil {
		return "", "", 0, jsonErr
	}
	return resp.Stdout, resp.Stderr, resp.ExitCode, nil
}

// spawnDaemon launches the daemon detached from this process, matching
// the teacher's background-spawn shape: no stdio inheritance, no Wait.
func (c *Client) spawnDaemon() {
	if len(c.DaemonArgv) == 0 {
		return
	}
	cmd := exec.Command(c.DaemonArgv[0], c.DaemonArgv[1:]...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	_ = cmd.Start()
}

// awaitSocket polls for c.SocketPath to appear, up to pollBudget.
func (c *Client) awaitSocket() bool {
	budget := c.PollBudget
	if budget == 0 {
		budget = pollBudget
	}
	interval := c.PollInterval
	if interval == 0 {
		interval = pollInterval
	}

	deadline := time.Now().Add(budget)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(c.SocketPath); err == nil {
			return true
		}
		time.Sleep(interval)
	}
	return false
}

// isRetryable reports whether err names one of the connect failures spec
// §4.I calls out as grounds for an auto-spawn attempt: socket absent,
// connection refused, connection reset, or a broken pipe.
func isRetryable(err error) bool {
	return errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}

// requestID generates an opaque id for correlating one request/response
// pair on a connection that carries exactly one of each (no pipelining).
func requestID() string {
	return uuid.NewString()
}
