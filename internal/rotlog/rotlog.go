// Package rotlog provides the rotating JSON-lines log sink shared by every
// cc-sessions component (spec §4.J). No example repository in the reference
// pack carries a log-rotation library (e.g. lumberjack), so rotation itself
// is a small, deliberate stdlib piece; the logger built on top of it is
// log/slog, matching the structured-logging style demonstrated elsewhere in
// the pack (githubnext-gh-aw/pkg/workflow/logging).
package rotlog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Config controls rotation behavior. Zero values fall back to defaults.
type Config struct {
	Path        string // ORCH_LOG_PATH
	Level       string // ORCH_LOG_LEVEL: debug|info|warn|error
	MaxBytes    int64  // ORCH_LOG_MAX_BYTES
	MaxBackups  int    // ORCH_LOG_MAX_BACKUPS
}

const (
	defaultMaxBytes   = 10 * 1024 * 1024
	defaultMaxBackups = 5
)

// New builds a *slog.Logger that writes JSON lines to cfg.Path, rotating
// when the file exceeds cfg.MaxBytes and keeping at most cfg.MaxBackups
// numbered siblings (path.1, path.2, ...).
func New(cfg Config) (*slog.Logger, error) {
	if cfg.Path == "" {
		return slog.New(slog.NewJSONHandler(os.Stderr, nil)), nil
	}

	w, err := newRotatingWriter(cfg.Path, firstPositive(cfg.MaxBytes, defaultMaxBytes), firstPositiveInt(cfg.MaxBackups, defaultMaxBackups))
	if err != nil {
		return nil, fmt.Errorf("opening log file %s: %w", cfg.Path, err)
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(cfg.Level)})
	return slog.New(handler), nil
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func firstPositive(v, fallback int64) int64 {
	if v > 0 {
		return v
	}
	return fallback
}

func firstPositiveInt(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// rotatingWriter is an io.Writer that rolls its target file once it exceeds
// maxBytes, renaming up to maxBackups numbered siblings out of the way.
type rotatingWriter struct {
	mu         sync.Mutex
	path       string
	maxBytes   int64
	maxBackups int
	f          *os.File
	size       int64
}

func newRotatingWriter(path string, maxBytes int64, maxBackups int) (*rotatingWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	w := &rotatingWriter{path: path, maxBytes: maxBytes, maxBackups: maxBackups}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *rotatingWriter) open() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	w.f = f
	w.size = info.Size()
	return nil
}

func (w *rotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.size+int64(len(p)) > w.maxBytes {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := w.f.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *rotatingWriter) rotate() error {
	if err := w.f.Close(); err != nil {
		return err
	}

	for i := w.maxBackups - 1; i >= 1; i-- {
		src := fmt.Sprintf("%s.%d", w.path, i)
		dst := fmt.Sprintf("%s.%d", w.path, i+1)
		if _, err := os.Stat(src); err == nil {
			os.Rename(src, dst)
		}
	}
	if w.maxBackups > 0 {
		os.Rename(w.path, fmt.Sprintf("%s.1", w.path))
	}

	return w.open()
}
