package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/xcawolfe-amzn/cc-sessions/internal/daemonconfig"
	"github.com/xcawolfe-amzn/cc-sessions/internal/lock"
	"github.com/xcawolfe-amzn/cc-sessions/internal/rotlog"
)

// instanceLockProbe is the short budget for trying the singleton-instance
// lock (polled every instanceLockPoll), used both to claim it on startup and to probe
// whether a daemon already holds it (IsRunning).
const instanceLockProbe = 30 * time.Millisecond
const instanceLockPoll = 10 * time.Millisecond

// DefaultSocketPath returns the conventional per-user socket path (spec
// §6.2), honoring CC_SESSIONS_SOCKET the same way daemonconfig.Load does.
func DefaultSocketPath() string {
	if v := os.Getenv("CC_SESSIONS_SOCKET"); v != "" {
		return v
	}
	uid := os.Getuid()
	return filepath.Join(os.TempDir(), fmt.Sprintf("cc-sessions-%d.sock", uid))
}

// instanceLockPath is the singleton-instance guard sibling to the socket,
// preventing two daemons from racing to bind the same path (spec §4.H).
func instanceLockPath(socketPath string) string {
	return socketPath + ".instance.lock"
}

// Run loads bootstrap config, builds the rotating logger and benchmark
// sink, binds the socket under a singleton-instance lock, and serves
// until SIGINT/SIGTERM, matching the teacher's internal/cmd/daemon.go
// "run" subcommand's foreground lifecycle (minus gastown's supervisor
// re-exec machinery, which this daemon has no equivalent of).
func Run(bootstrapPath string) error {
	cfg, err := daemonconfig.Load(bootstrapPath)
	if err != nil {
		return fmt.Errorf("loading daemon bootstrap config: %w", err)
	}

	logger, err := rotlog.New(rotlog.Config{
		Path:       cfg.Log.Path,
		Level:      cfg.Log.Level,
		MaxBytes:   cfg.Log.MaxBytes,
		MaxBackups: cfg.Log.MaxBackups,
	})
	if err != nil {
		return fmt.Errorf("building daemon logger: %w", err)
	}

	var bench *benchmarkSink
	if cfg.Benchmark {
		bench, err = newBenchmarkSink("")
		if err != nil {
			return fmt.Errorf("opening benchmark sink: %w", err)
		}
		defer bench.Close()
	}

	socketPath := cfg.SocketPath
	if socketPath == "" {
		socketPath = DefaultSocketPath()
	}

	releaseInstance, err := lock.FlockTryAcquire(context.Background(), instanceLockPath(socketPath), instanceLockProbe, instanceLockPoll)
	if err != nil {
		return fmt.Errorf("another cc-sessions daemon already owns %s: %w", socketPath, err)
	}
	defer releaseInstance()

	srv := New(socketPath, logger, bench)
	if err := srv.Listen(); err != nil {
		return fmt.Errorf("binding socket %s: %w", socketPath, err)
	}
	defer srv.Close()

	logger.Info("daemon started", "socket", socketPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Serve(ctx); err != nil {
		logger.Error("daemon serve loop exited with error", "error", err)
		return err
	}
	logger.Info("daemon stopped")
	return nil
}

// IsRunning reports whether a daemon appears to be listening at
// socketPath, by attempting (and immediately releasing) its instance
// lock — held only for as long as the real daemon is alive.
func IsRunning(socketPath string) bool {
	release, err := lock.FlockTryAcquire(context.Background(), instanceLockPath(socketPath), instanceLockProbe, instanceLockPoll)
	if err != nil {
		return true
	}
	release()
	return false
}
