// Package render turns chat message Markdown into HTML for the page.
package render

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Renderer converts Markdown to HTML. Raw HTML embedded in the source is
// dropped, so message content can never inject markup into the page.
type Renderer struct {
	md goldmark.Markdown
}

// New returns a Renderer with GitHub-flavoured Markdown and hard line wraps.
func New() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
	}
}

// Markdown renders src to HTML.
func (r *Renderer) Markdown(src string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	//nolint:gosec // goldmark output without html.WithUnsafe has raw HTML stripped.
	return template.HTML(buf.String()), nil
}

// MarkdownOrText renders src, falling back to escaped plain text on error.
func (r *Renderer) MarkdownOrText(src string) template.HTML {
	out, err := r.Markdown(src)
	if err != nil {
		return template.HTML("<p>" + template.HTMLEscapeString(src) + "</p>")
	}
	return out
}
