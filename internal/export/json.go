package export

import (
	"encoding/json"
	"io"

	"github.com/ashureev/deepcode-chat/internal/domain"
)

// JSONExporter exports sessions as indented JSON.
type JSONExporter struct{}

// Export writes the session as JSON.
func (e *JSONExporter) Export(session *domain.ChatSession, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(session)
}

// Extension returns the file extension for this format.
func (e *JSONExporter) Extension() string { return "json" }

// ContentType returns the MIME type for this format.
func (e *JSONExporter) ContentType() string { return "application/json" }
