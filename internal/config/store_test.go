package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMaterializesDefaultsOnMissingFile(t *testing.T) {
	root := t.TempDir()
	store := New(root)

	cfg, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Features.IconStyle != IconStylePlain {
		t.Fatalf("expected default icon style plain, got %q", cfg.Features.IconStyle)
	}
	if _, statErr := os.Stat(store.Path()); statErr != nil {
		t.Fatalf("expected config file persisted on first load: %v", statErr)
	}
}

func TestSaveLoadRoundTripsKnownFields(t *testing.T) {
	root := t.TempDir()
	store := New(root)

	cfg := Default()
	cfg.Extrasafe = true
	cfg.Git.DefaultBranch = "main"
	if err := store.Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !loaded.Extrasafe || loaded.Git.DefaultBranch != "main" {
		t.Fatalf("unexpected roundtrip result: %+v", loaded)
	}
}

func TestLoadPreservesUnknownTopLevelKeys(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, configSubpath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	doc := `{"trigger_phrases":{},"features":{"icon_style":"plain"},"a_user_added_key":{"nested":true}}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	store := New(root)
	cfg, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := store.Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `"a_user_added_key"`) {
		t.Fatalf("expected unknown key preserved across roundtrip, got %s", raw)
	}
}

func TestMigrateUseNerdFontsToIconStyle(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, configSubpath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	doc := `{"trigger_phrases":{},"features":{"use_nerd_fonts":true}}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	store := New(root)
	cfg, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Features.IconStyle != IconStyleNerdFont {
		t.Fatalf("expected migrated icon style nerd_font, got %q", cfg.Features.IconStyle)
	}
}

func TestMigrateImplementationModeTriggerKey(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, configSubpath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	doc := `{"trigger_phrases":{"implementation_mode":["go go go"]}}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	store := New(root)
	cfg, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	phrases, ok := cfg.TriggerPhrases[TriggerOrchestrationMode]
	if !ok || len(phrases) != 1 || phrases[0] != "go go go" {
		t.Fatalf("expected migrated trigger phrase under orchestration_mode, got %+v", cfg.TriggerPhrases)
	}
}

func TestLoadQuarantinesCorruptConfig(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, configSubpath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := New(root)
	cfg, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Features.IconStyle != IconStylePlain {
		t.Fatalf("expected defaults after quarantine, got %+v", cfg)
	}
	if _, statErr := os.Stat(path + ".bad"); statErr != nil {
		t.Fatalf("expected .bad quarantine file: %v", statErr)
	}
}
