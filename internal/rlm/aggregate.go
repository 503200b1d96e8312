package rlm

import "strings"

// CombineToolResults concatenates the text content of every result into
// a single block, separated by blank lines, for contexts that want one
// flat string instead of individual tool_result turns.
func CombineToolResults(results []ToolResultBlock) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		if r.Content == nil {
			continue
		}
		text := r.Content.Text
		if text == "" {
			continue
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n\n")
}

// DeduplicateLines removes duplicate lines from text while preserving
// the order of first occurrence, for collapsing overlapping output
// from tool calls that read overlapping ranges of the same file.
func DeduplicateLines(text string) string {
	if text == "" {
		return text
	}
	lines := strings.Split(text, "\n")
	seen := make(map[string]bool, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if seen[line] {
			continue
		}
		seen[line] = true
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// TruncateToLimit truncates text to at most limit bytes, cutting on a
// line boundary where possible so a tool result doesn't end mid-line.
func TruncateToLimit(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := text[:limit]
	if idx := strings.LastIndexByte(cut, '\n'); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "\n... [truncated]"
}
