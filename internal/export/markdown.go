package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/ashureev/deepcode-chat/internal/domain"
)

// MarkdownExporter exports sessions in Markdown format.
type MarkdownExporter struct{}

// Export exports a session to Markdown format.
func (e *MarkdownExporter) Export(session *domain.ChatSession, w io.Writer) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# Chat %s\n\n", session.SessionID)
	fmt.Fprintf(&b, "**Stage:** %s  \n", session.Stage)
	fmt.Fprintf(&b, "**Messages:** %d  \n", len(session.Messages))
	if session.PlanSource != domain.PlanSourceNone {
		fmt.Fprintf(&b, "**Plan source:** %s  \n", session.PlanSource)
	}
	if session.HasArchive() {
		fmt.Fprintf(&b, "**Archive:** %s  \n", session.ArchiveName())
	}
	b.WriteString("\n---\n\n")

	for i, msg := range session.Messages {
		fmt.Fprintf(&b, "**%s** (%s):\n\n%s\n\n", roleLabel(msg.Role), msg.CreatedAt.UTC().Format("2006-01-02 15:04:05"), msg.Content)
		if i < len(session.Messages)-1 {
			b.WriteString("---\n\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func roleLabel(r domain.Role) string {
	switch r {
	case domain.RoleUser:
		return "User"
	case domain.RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// Extension returns the file extension for this format.
func (e *MarkdownExporter) Extension() string { return "md" }

// ContentType returns the MIME type for this format.
func (e *MarkdownExporter) ContentType() string { return "text/markdown; charset=utf-8" }
