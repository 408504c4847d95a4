// Package daemonconfig loads the daemon process's own bootstrap settings —
// socket path, benchmark toggle, log rotation limits — distinct from the
// project-scoped Config store (internal/config). This is spec §4.K: an
// optional local TOML file, env-var overridable, missing-is-fine.
package daemonconfig

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Bootstrap holds the daemon's own runtime knobs.
type Bootstrap struct {
	SocketPath string    `toml:"socket_path"`
	Benchmark  bool      `toml:"benchmark"`
	Log        LogConfig `toml:"log"`
}

// LogConfig mirrors rotlog.Config's TOML-facing fields.
type LogConfig struct {
	Path       string `toml:"path"`
	Level      string `toml:"level"`
	MaxBytes   int64  `toml:"max_bytes"`
	MaxBackups int    `toml:"max_backups"`
}

// DefaultPath returns the conventional location of the bootstrap file.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "cc-sessions", "daemon.toml")
}

// Load reads the bootstrap file at path (DefaultPath() if empty), applies
// environment-variable overrides from spec §6.5, and returns the result.
// A missing file is not an error — built-in defaults are used and env vars
// still apply on top of them.
func Load(path string) (Bootstrap, error) {
	var b Bootstrap
	if path == "" {
		path = DefaultPath()
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, decodeErr := toml.DecodeFile(path, &b); decodeErr != nil {
				return Bootstrap{}, decodeErr
			}
		}
	}

	applyEnvOverrides(&b)
	return b, nil
}

func applyEnvOverrides(b *Bootstrap) {
	if v := os.Getenv("CC_SESSIONS_SOCKET"); v != "" {
		b.SocketPath = v
	}
	if v := os.Getenv("CC_SESSIONS_BENCHMARK"); v != "" {
		b.Benchmark = v == "1"
	}
	if v := os.Getenv("ORCH_LOG_PATH"); v != "" {
		b.Log.Path = v
	}
	if v := os.Getenv("ORCH_LOG_LEVEL"); v != "" {
		b.Log.Level = v
	}
	if v := os.Getenv("ORCH_LOG_MAX_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			b.Log.MaxBytes = n
		}
	}
	if v := os.Getenv("ORCH_LOG_MAX_BACKUPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			b.Log.MaxBackups = n
		}
	}
}
