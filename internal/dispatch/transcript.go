package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// defaultTailBytes is the initial bounded read size from the end of a
// transcript file (spec §4.G pre-dispatch step 2).
const defaultTailBytes = 128 * 1024

// maxChunkBytes is the per-chunk ceiling for a written transcript chunk
// (spec §4.G pre-dispatch step 6).
const maxChunkBytes = 24000

// toolUseTrimSet is the set of tool names whose first tool_use entry marks
// the start of the retained transcript window (spec §4.G pre-dispatch step 3).
var toolUseTrimSet = map[string]bool{"Edit": true, "Write": true, "MultiEdit": true}

// entry is one parsed line of a transcript (a user or assistant turn, or a
// tool_use/tool_result record embedded in a message's content blocks).
type entry struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

type messageEnvelope struct {
	Message struct {
		Content []contentBlock `json:"content"`
	} `json:"message"`
}

type contentBlock struct {
	Type  string          `json:"type"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

// readTranscriptTail reads up to maxBytes from the end of path, growing the
// read (doubling, capped at the file size) until the tail contains at least
// one complete line — a partial leading line from a mid-read cut is always
// dropped. Returns the raw tail bytes.
func readTranscriptTail(path string, maxBytes int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening transcript %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat transcript %s: %w", path, err)
	}
	size := info.Size()

	chunk := maxBytes
	if chunk <= 0 {
		chunk = defaultTailBytes
	}

	for {
		readSize := chunk
		if readSize > size {
			readSize = size
		}
		buf := make([]byte, readSize)
		if _, err := f.ReadAt(buf, size-readSize); err != nil {
			return nil, fmt.Errorf("reading tail of %s: %w", path, err)
		}

		if readSize == size {
			return buf, nil
		}

		if idx := bytes.IndexByte(buf, '\n'); idx >= 0 && idx < len(buf)-1 {
			return buf[idx+1:], nil
		}

		if chunk >= size {
			return buf, nil
		}
		chunk *= 2
	}
}

// parseEntries splits a transcript tail into one entry per non-empty line,
// skipping lines that fail to parse as JSON (a truncated leading fragment).
func parseEntries(tail []byte) []entry {
	lines := bytes.Split(tail, []byte("\n"))
	entries := make([]entry, 0, len(lines))
	for _, line := range lines {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var e entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		e.Raw = append(json.RawMessage(nil), line...)
		entries = append(entries, e)
	}
	return entries
}

// trimToWriteTrigger drops every entry prior to the first tool_use entry
// whose name is in toolUseTrimSet, then filters to user/assistant entries
// only (spec §4.G pre-dispatch step 3).
func trimToWriteTrigger(entries []entry) []entry {
	start := -1
	for i, e := range entries {
		for _, use := range toolUsesOf(e) {
			if toolUseTrimSet[use.Name] {
				start = i
				break
			}
		}
		if start >= 0 {
			break
		}
	}
	if start < 0 {
		return nil
	}

	retained := make([]entry, 0, len(entries)-start)
	for _, e := range entries[start:] {
		if e.Type == "user" || e.Type == "assistant" {
			retained = append(retained, e)
		}
	}
	return retained
}

func toolUsesOf(e entry) []contentBlock {
	var env messageEnvelope
	if err := json.Unmarshal(e.Raw, &env); err != nil {
		return nil
	}
	var uses []contentBlock
	for _, block := range env.Message.Content {
		if block.Type == "tool_use" {
			uses = append(uses, block)
		}
	}
	return uses
}

// lastTaskDispatch scans entries (most recent first) for the last tool_use
// block named "Task" and returns its input fields (spec §4.G post-stop
// step 2).
func lastTaskDispatch(entries []entry) (taskID, groupID, subagentType string, ok bool) {
	for i := len(entries) - 1; i >= 0; i-- {
		for _, block := range toolUsesOf(entries[i]) {
			if block.Name != "Task" {
				continue
			}
			var input struct {
				TaskID       string `json:"task_id"`
				GroupID      string `json:"group_id"`
				SubagentType string `json:"subagent_type"`
			}
			if err := json.Unmarshal(block.Input, &input); err != nil {
				continue
			}
			return input.TaskID, input.GroupID, input.SubagentType, true
		}
	}
	return "", "", "", false
}

// subagentTypeOfTrailingTask returns the subagent_type of the last Task
// tool_use in entries, defaulting to "shared" (spec §4.G pre-dispatch step 4).
func subagentTypeOfTrailingTask(entries []entry) string {
	_, _, subagentType, ok := lastTaskDispatch(entries)
	if !ok || subagentType == "" {
		return "shared"
	}
	return subagentType
}

// chunkTranscript serializes entries as pretty JSON and splits it into
// chunks of at most maxChunkBytes, breaking preferentially at a newline,
// else a space, else a hard cut (spec §4.G pre-dispatch step 6).
func chunkTranscript(entries []entry) ([][]byte, error) {
	raws := make([]json.RawMessage, 0, len(entries))
	for _, e := range entries {
		raws = append(raws, e.Raw)
	}
	data, err := json.MarshalIndent(raws, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serializing transcript: %w", err)
	}
	if len(entries) == 0 {
		data = []byte("[]")
	}

	var chunks [][]byte
	for len(data) > 0 {
		if len(data) <= maxChunkBytes {
			chunks = append(chunks, data)
			break
		}
		cut := breakPoint(data[:maxChunkBytes])
		chunks = append(chunks, data[:cut])
		data = data[cut:]
	}
	return chunks, nil
}

// breakPoint finds the preferred split point within window: the last
// newline, else the last space, else the full window length (hard cut).
func breakPoint(window []byte) int {
	if idx := bytes.LastIndexByte(window, '\n'); idx > 0 {
		return idx + 1
	}
	if idx := bytes.LastIndexByte(window, ' '); idx > 0 {
		return idx + 1
	}
	return len(window)
}
