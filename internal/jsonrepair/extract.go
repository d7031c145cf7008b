package jsonrepair

import (
	"regexp"
	"strings"
)

var (
	reasoningBlockRE = regexp.MustCompile(`(?is)<(?:think|thinking|reasoning)>.*?</(?:think|thinking|reasoning)>`)
	fenceMarkerRE    = regexp.MustCompile("```[A-Za-z0-9_+-]*")
)

// Extract isolates the outermost candidate JSON object in raw model output.
// Reasoning blocks are deleted, code fence markers are dropped (their contents
// kept), and the text between the first '{' and the last '}' is returned. When
// no such pair exists the cleaned text is returned unchanged.
func Extract(raw string) string {
	cleaned := StripReasoning(raw)
	cleaned = StripFences(cleaned)
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end == -1 || end < start {
		return cleaned
	}
	return cleaned[start : end+1]
}

func StripReasoning(text string) string {
	return reasoningBlockRE.ReplaceAllString(text, "")
}

func StripFences(text string) string {
	if !strings.Contains(text, "```") {
		return text
	}
	return fenceMarkerRE.ReplaceAllString(text, "")
}
