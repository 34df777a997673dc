package render

import (
	"strings"
	"testing"
)

func TestMarkdownRendersPlanSections(t *testing.T) {
	r := New()
	out, err := r.Markdown("## Technical Implementation Plan\n\n1. **Architecture Design**\n2. Testing")
	if err != nil {
		t.Fatalf("Markdown failed: %v", err)
	}
	html := string(out)
	for _, want := range []string{"<h2>Technical Implementation Plan</h2>", "<ol>", "<strong>Architecture Design</strong>"} {
		if !strings.Contains(html, want) {
			t.Errorf("Expected %q in %q", want, html)
		}
	}
}

func TestMarkdownDropsRawHTML(t *testing.T) {
	out, err := New().Markdown(`hello <script>alert("x")</script> <div class="message">x</div>`)
	if err != nil {
		t.Fatalf("Markdown failed: %v", err)
	}
	if strings.Contains(string(out), "<script>") || strings.Contains(string(out), `<div class="message">`) {
		t.Errorf("Raw HTML leaked into output: %q", out)
	}
}

func TestMarkdownCodeFence(t *testing.T) {
	out := New().MarkdownOrText("```\nproject/\n├── src/\n```")
	if !strings.Contains(string(out), "<pre><code>") || !strings.Contains(string(out), "├── src/") {
		t.Errorf("Expected fenced code block, got %q", out)
	}
}

func TestMarkdownHardWraps(t *testing.T) {
	out := New().MarkdownOrText("line one\nline two")
	if !strings.Contains(string(out), "<br>") {
		t.Errorf("Expected hard wrap, got %q", out)
	}
}
