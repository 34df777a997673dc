// Package export writes chat transcripts in downloadable formats.
package export

import (
	"fmt"
	"io"
	"sort"

	"github.com/ashureev/deepcode-chat/internal/domain"
)

// Exporter writes a chat session transcript.
type Exporter interface {
	Export(session *domain.ChatSession, w io.Writer) error
	Extension() string
	ContentType() string
}

var exporters = map[string]Exporter{
	"json":     &JSONExporter{},
	"yaml":     &YAMLExporter{},
	"markdown": &MarkdownExporter{},
}

// Get returns the exporter for format ("json", "yaml", "markdown"; "md" and
// "yml" are accepted aliases).
func Get(format string) (Exporter, error) {
	switch format {
	case "md":
		format = "markdown"
	case "yml":
		format = "yaml"
	case "":
		format = "markdown"
	}
	e, ok := exporters[format]
	if !ok {
		return nil, fmt.Errorf("unsupported export format %q (supported: %v)", format, Formats())
	}
	return e, nil
}

// Formats lists the supported format names.
func Formats() []string {
	out := make([]string, 0, len(exporters))
	for k := range exporters {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// FileName returns the suggested download name for a session transcript.
func FileName(session *domain.ChatSession, e Exporter) string {
	return fmt.Sprintf("chat_%s_%s.%s", session.SessionID, session.UpdatedAt.UTC().Format("20060102_150405"), e.Extension())
}
