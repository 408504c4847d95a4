// Package taskfile parses the YAML-like frontmatter of a task markdown
// file (spec §4.F, §6): key/value lines between two `---` fences, with
// `[a,b,c]` comma-separated lists on the submodules/modules keys. This is
// deliberately not a YAML library — the format is a narrow, line-oriented
// subset chosen so task files stay hand-editable, matching the teacher's
// own preference for small hand-rolled line parsers over a YAML dependency
// for simple key/value front matter (internal/config's settings merge
// logic takes the same tack for JSON).
package taskfile

import (
	"bufio"
	"strings"
)

// Frontmatter is the parsed key/value frontmatter of one task file.
type Frontmatter struct {
	Task        string
	Name        string
	Branch      string
	Status      string
	Created     string
	Started     string
	Updated     string
	Dependencies []string
	Submodules   []string
	File        string
}

// Parse reads a task file's content and extracts its frontmatter. It
// returns a zero-value Frontmatter (ok=false) if no `---` fenced block is
// found at the top of the document.
func Parse(content string) (Frontmatter, bool) {
	lines := strings.Split(content, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return Frontmatter{}, false
	}

	var fm Frontmatter
	scanner := bufio.NewScanner(strings.NewReader(strings.Join(lines[1:], "\n")))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "---" {
			return fm, true
		}
		key, value, ok := splitKeyValue(line)
		if !ok {
			continue
		}
		applyField(&fm, key, value)
	}
	return fm, true
}

func splitKeyValue(line string) (key, value string, ok bool) {
	idx := strings.Index(line, ":")
	if idx < 0 {
		return "", "", false
	}
	key = strings.TrimSpace(line[:idx])
	value = strings.TrimSpace(line[idx+1:])
	if key == "" {
		return "", "", false
	}
	return key, value, true
}

func applyField(fm *Frontmatter, key, value string) {
	switch key {
	case "task":
		fm.Task = value
	case "name":
		fm.Name = value
	case "branch":
		fm.Branch = value
	case "status":
		fm.Status = value
	case "created":
		fm.Created = value
	case "started":
		fm.Started = value
	case "updated":
		fm.Updated = value
	case "dependencies":
		fm.Dependencies = parseList(value)
	case "submodules", "modules":
		fm.Submodules = parseList(value)
	case "file":
		fm.File = value
	}
}

// parseList splits a bracketed, comma-separated list ("[a, b, c]") into
// its trimmed elements. A bare value with no brackets is treated as a
// single-element list; an empty bracket pair yields nil.
func parseList(value string) []string {
	value = strings.TrimSpace(value)
	if strings.HasPrefix(value, "[") && strings.HasSuffix(value, "]") {
		value = strings.TrimSuffix(strings.TrimPrefix(value, "["), "]")
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
