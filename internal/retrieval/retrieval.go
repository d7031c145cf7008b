package retrieval

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

const defaultTop = 3

type Source struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	URL        string `json:"url"`
	SourceType string `json:"sourceType,omitempty"`
}

// Finder looks up reference material for a goal. Implementations degrade to
// an empty slice rather than failing the caller.
type Finder interface {
	FindSources(ctx context.Context, query string) ([]Source, error)
}

// FormatContext renders sources as the bulleted list injected into the system
// prompt. It returns "" for no sources.
func FormatContext(sources []Source) string {
	if len(sources) == 0 {
		return ""
	}
	var b strings.Builder
	for i, src := range sources {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- %s: %s (%s)", src.Title, src.Content, src.URL)
	}
	return b.String()
}

// Static always returns the same sources.
type Static []Source

func (s Static) FindSources(context.Context, string) ([]Source, error) {
	return append([]Source(nil), s...), nil
}

// DemoSources back the offline demo mode.
func DemoSources() Static {
	return Static{
		{Title: "Hospital Admission Guide", URL: "https://hospital.gov.in/guide", Content: "Official guidelines..."},
		{Title: "Insurance Policies", URL: "https://insurance.gov.in/policies", Content: "Details on claiming..."},
	}
}

var strictPolicy = bluemonday.StrictPolicy()

func sanitize(text string) string {
	cleaned := html.UnescapeString(strictPolicy.Sanitize(text))
	return strings.Join(strings.Fields(cleaned), " ")
}
