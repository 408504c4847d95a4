package taskfile

import (
	"reflect"
	"testing"
)

func TestParseFullFrontmatter(t *testing.T) {
	content := `---
task: ship-feature
name: Ship the feature
branch: feature/ship
status: in-progress
created: 2026-07-01
started: 2026-07-02
dependencies: [setup-db, write-tests]
submodules: [vendor/widget, vendor/gadget]
---

# Ship the feature

Body text here.
`
	fm, ok := Parse(content)
	if !ok {
		t.Fatal("expected frontmatter to parse")
	}
	if fm.Task != "ship-feature" || fm.Branch != "feature/ship" || fm.Status != "in-progress" {
		t.Fatalf("unexpected scalar fields: %+v", fm)
	}
	if !reflect.DeepEqual(fm.Dependencies, []string{"setup-db", "write-tests"}) {
		t.Fatalf("unexpected dependencies: %+v", fm.Dependencies)
	}
	if !reflect.DeepEqual(fm.Submodules, []string{"vendor/widget", "vendor/gadget"}) {
		t.Fatalf("unexpected submodules: %+v", fm.Submodules)
	}
}

func TestParseNoFrontmatterFence(t *testing.T) {
	_, ok := Parse("# Just a heading\n\nno frontmatter here\n")
	if ok {
		t.Fatal("expected no frontmatter detected")
	}
}

func TestParseEmptyLists(t *testing.T) {
	content := "---\ntask: x\nsubmodules: []\n---\n"
	fm, ok := Parse(content)
	if !ok {
		t.Fatal("expected frontmatter to parse")
	}
	if fm.Submodules != nil {
		t.Fatalf("expected nil submodules for empty list, got %+v", fm.Submodules)
	}
}

func TestParseModulesAliasesSubmodules(t *testing.T) {
	content := "---\ntask: x\nmodules: [a, b]\n---\n"
	fm, ok := Parse(content)
	if !ok {
		t.Fatal("expected frontmatter to parse")
	}
	if !reflect.DeepEqual(fm.Submodules, []string{"a", "b"}) {
		t.Fatalf("expected modules key to populate Submodules, got %+v", fm.Submodules)
	}
}
