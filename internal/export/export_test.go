package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/deepcode-chat/internal/domain"
	"gopkg.in/yaml.v3"
)

func sampleSession() *domain.ChatSession {
	at := time.Date(2025, 5, 4, 10, 0, 0, 0, time.UTC)
	s := domain.NewChatSession("anon_1", "tab-1", at)
	s.AddMessage(domain.RoleAssistant, "Hello!", at)
	s.AddMessage(domain.RoleUser, "Build a chess engine", at.Add(time.Minute))
	s.Stage = domain.StagePlanning
	s.PlanSource = domain.PlanSourceEngine
	return s
}

func TestGetAliases(t *testing.T) {
	for in, want := range map[string]string{"md": "md", "": "md", "yml": "yaml", "json": "json"} {
		e, err := Get(in)
		if err != nil {
			t.Fatalf("Get(%q) failed: %v", in, err)
		}
		if e.Extension() != want {
			t.Errorf("Get(%q).Extension() = %q, want %q", in, e.Extension(), want)
		}
	}
	if _, err := Get("pdf"); err == nil {
		t.Error("Expected error for unsupported format")
	}
}

func TestJSONExport(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSONExporter{}).Export(sampleSession(), &buf); err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	var got domain.ChatSession
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(got.Messages) != 2 || got.Stage != domain.StagePlanning {
		t.Errorf("Unexpected decoded session %+v", got)
	}
}

func TestYAMLExport(t *testing.T) {
	var buf bytes.Buffer
	if err := (&YAMLExporter{}).Export(sampleSession(), &buf); err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	var got map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid YAML: %v", err)
	}
	if got["stage"] != "planning" || got["session_id"] != "tab-1" {
		t.Errorf("Unexpected YAML document %v", got)
	}
}

func TestMarkdownExport(t *testing.T) {
	var buf bytes.Buffer
	if err := (&MarkdownExporter{}).Export(sampleSession(), &buf); err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"# Chat tab-1", "**Stage:** planning", "**User** (2025-05-04 10:01:00):", "Build a chess engine", "**Plan source:** engine"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in markdown:\n%s", want, out)
		}
	}
	if strings.Count(out, "---") != 2 {
		t.Errorf("Expected header rule and one separator, got:\n%s", out)
	}
}

func TestFileName(t *testing.T) {
	e, _ := Get("json")
	if got := FileName(sampleSession(), e); got != "chat_tab-1_20250504_100100.json" {
		t.Errorf("Unexpected file name %q", got)
	}
}
