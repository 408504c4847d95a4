package style

import "github.com/charmbracelet/lipgloss"

// Adaptive colors, readable on both light and dark terminal backgrounds
// (grounded on the pack's githubnext-gh-aw/pkg/styles/theme.go convention).
var (
	ColorAccent = lipgloss.AdaptiveColor{Light: "#2980B9", Dark: "#8BE9FD"}
	ColorGood   = lipgloss.AdaptiveColor{Light: "#27AE60", Dark: "#50FA7B"}
	ColorWarn   = lipgloss.AdaptiveColor{Light: "#E67E22", Dark: "#FFB86C"}
	ColorMuted  = lipgloss.AdaptiveColor{Light: "#6C7A89", Dark: "#6272A4"}
)

// Bold renders emphasized terminal text (headers, confirmations).
var Bold = lipgloss.NewStyle().Bold(true)

// Dim renders secondary/muted terminal text (separators, hints).
var Dim = lipgloss.NewStyle().Foreground(ColorMuted)

// Accent renders the mode/status badge in the statusline.
var Accent = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)

// Good renders a favorable status (e.g. all todos complete).
var Good = lipgloss.NewStyle().Foreground(ColorGood)

// Warn renders a cautionary status (e.g. branch mismatch, blocked tool).
var Warn = lipgloss.NewStyle().Bold(true).Foreground(ColorWarn)
