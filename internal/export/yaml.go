package export

import (
	"io"

	"github.com/ashureev/deepcode-chat/internal/domain"
	"gopkg.in/yaml.v3"
)

// YAMLExporter exports sessions in YAML format.
type YAMLExporter struct{}

// Export exports a session to YAML format.
func (e *YAMLExporter) Export(session *domain.ChatSession, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer func() { _ = enc.Close() }()

	return enc.Encode(session)
}

// Extension returns the file extension for this format.
func (e *YAMLExporter) Extension() string { return "yaml" }

// ContentType returns the MIME type for this format.
func (e *YAMLExporter) ContentType() string { return "application/yaml" }
