package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/deepcode-chat/internal/domain"
	"github.com/ashureev/deepcode-chat/internal/store"
)

func offlineEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ENGINE_ADDR", "")
	t.Setenv("OPENAI_API_KEY", "")
}

func seedStore(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "cli.db")
	repo, err := store.NewSQLite(dbPath)
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	defer func() { _ = repo.Close() }()

	now := time.Now()
	sess := domain.NewChatSession("anon_cli", "tab-1", now)
	sess.AddMessage(domain.RoleAssistant, "Hello!", now)
	sess.AddMessage(domain.RoleUser, "A markdown wiki with search", now)
	sess.Advance(domain.StageCollectingRequirements)
	if err := repo.SaveChatSession(context.Background(), sess); err != nil {
		t.Fatalf("SaveChatSession failed: %v", err)
	}
	return dbPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.Execute()
	return out.String(), err
}

func TestPlanCommandOffline(t *testing.T) {
	offlineEnv(t)

	out, err := run(t, "plan", "a", "markdown", "wiki")
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}
	if !strings.Contains(out, "Technical Implementation Plan") || !strings.Contains(out, "a markdown wiki") {
		t.Errorf("Unexpected plan output:\n%s", out)
	}
}

func TestPlanRequiresArgs(t *testing.T) {
	offlineEnv(t)
	if _, err := run(t, "plan"); err == nil {
		t.Error("Expected error without requirements")
	}
}

func TestSessionsCommand(t *testing.T) {
	offlineEnv(t)
	db := seedStore(t)

	out, err := run(t, "sessions", "--db", db, "--user", "anon_cli")
	if err != nil {
		t.Fatalf("sessions failed: %v", err)
	}
	if !strings.Contains(out, "tab-1") || !strings.Contains(out, "collecting_requirements") {
		t.Errorf("Unexpected sessions output:\n%s", out)
	}

	out, err = run(t, "sessions", "--db", db, "--user", "anon_nobody")
	if err != nil || !strings.Contains(out, "No sessions found") {
		t.Errorf("Expected empty listing, got %q, %v", out, err)
	}

	if _, err := run(t, "sessions", "--db", db); err == nil {
		t.Error("Expected error without --user")
	}
}

func TestExportCommand(t *testing.T) {
	offlineEnv(t)
	db := seedStore(t)

	out, err := run(t, "export", "--db", db, "--user", "anon_cli", "--session", "tab-1", "--format", "yaml")
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if !strings.Contains(out, "session_id: tab-1") || !strings.Contains(out, "A markdown wiki with search") {
		t.Errorf("Unexpected yaml export:\n%s", out)
	}

	if _, err := run(t, "export", "--db", db, "--user", "anon_cli", "--session", "missing"); err == nil {
		t.Error("Expected error for missing session")
	}
	if _, err := run(t, "export", "--db", db, "--user", "anon_cli", "--session", "tab-1", "--format", "pdf"); err == nil {
		t.Error("Expected error for unsupported format")
	}
}

func TestOpenStoreMissingDatabase(t *testing.T) {
	offlineEnv(t)
	missing := filepath.Join(t.TempDir(), "nope.db")
	if _, err := run(t, "sessions", "--db", missing, "--user", "anon_cli"); err == nil {
		t.Error("Expected error for missing database")
	}
}
