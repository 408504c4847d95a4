package daemon

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// benchmarkRecord is one JSON line written to the benchmark sink per
// handled request, when enabled.
type benchmarkRecord struct {
	Hook        string  `json:"hook"`
	DurationMS  float64 `json:"duration_ms"`
	CacheHitGit bool    `json:"cache_hit_git"`
	CacheHitTasks bool  `json:"cache_hit_tasks"`
	ExitCode    int     `json:"exit_code"`
	At          string  `json:"at"`
}

// benchmarkSink appends JSONL benchmark records to a file, gated by
// daemonconfig.Bootstrap.Benchmark (spec §4.H: "an opt-in JSONL benchmark
// sink"). A nil *benchmarkSink disables recording entirely — callers
// should guard with a nil check rather than constructing a no-op sink, to
// keep the hot path free of any write in the common case.
type benchmarkSink struct {
	mu   sync.Mutex
	f    *os.File
}

// newBenchmarkSink opens (creating if needed) the JSONL file at path. An
// empty path falls back to a file under the daemon's own state directory.
func newBenchmarkSink(path string) (*benchmarkSink, error) {
	if path == "" {
		path = defaultBenchmarkPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &benchmarkSink{f: f}, nil
}

func defaultBenchmarkPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "cc-sessions-benchmark.jsonl")
	}
	return filepath.Join(home, ".config", "cc-sessions", "benchmark.jsonl")
}

func (s *benchmarkSink) record(rec benchmarkRecord) {
	if s == nil {
		return
	}
	rec.At = time.Now().UTC().Format(time.RFC3339Nano)
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.f.Write(data)
}

func (s *benchmarkSink) Close() error {
	if s == nil {
		return nil
	}
	return s.f.Close()
}
