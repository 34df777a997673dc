package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashureev/deepcode-chat/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNewSQLiteAppliesPragmas(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var mode string
	if err := s.db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("Expected wal journal mode, got %q", mode)
	}

	var timeout int
	if err := s.db.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout); err != nil {
		t.Fatalf("busy_timeout: %v", err)
	}
	if timeout != 5000 {
		t.Errorf("Expected busy_timeout 5000, got %d", timeout)
	}
}

func TestUserRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	got, err := s.GetUser(ctx, "anon_missing")
	if err != nil || got != nil {
		t.Fatalf("Expected nil user, got %v, %v", got, err)
	}

	now := time.Unix(time.Now().Unix(), 0)
	if err := s.UpsertUser(ctx, &domain.User{
		UserID: "anon_1", Username: "anon-1", LastSeenAt: now, CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("UpsertUser failed: %v", err)
	}

	got, err = s.GetUser(ctx, "anon_1")
	if err != nil || got == nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if got.Username != "anon-1" || !got.LastSeenAt.Equal(now) {
		t.Errorf("Unexpected user %+v", got)
	}

	later := now.Add(time.Hour)
	if err := s.UpdateLastSeen(ctx, "anon_1", later); err != nil {
		t.Fatalf("UpdateLastSeen failed: %v", err)
	}
	got, _ = s.GetUser(ctx, "anon_1")
	if !got.LastSeenAt.Equal(later) {
		t.Errorf("Expected last seen %v, got %v", later, got.LastSeenAt)
	}
}

func TestChatSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	now := time.Unix(time.Now().Unix(), 0)
	session := domain.NewChatSession("anon_1", "tab-1", now)
	session.AddMessage(domain.RoleAssistant, "hello", now)
	session.AddMessage(domain.RoleUser, "build me a todo app", now)
	session.Stage = domain.StagePlanning
	session.Plan = "## Technical Implementation Plan"
	session.PlanSource = domain.PlanSourceEngine

	if err := s.SaveChatSession(ctx, session); err != nil {
		t.Fatalf("SaveChatSession failed: %v", err)
	}

	got, err := s.GetChatSession(ctx, "anon_1", "tab-1")
	if err != nil || got == nil {
		t.Fatalf("GetChatSession failed: %v", err)
	}
	if got.Stage != domain.StagePlanning {
		t.Errorf("Expected planning stage, got %s", got.Stage)
	}
	if len(got.Messages) != 2 || got.Messages[1].Content != "build me a todo app" {
		t.Errorf("Unexpected messages %+v", got.Messages)
	}
	if got.PlanSource != domain.PlanSourceEngine || got.Plan == "" {
		t.Errorf("Plan not persisted: %+v", got)
	}

	got.CodeGenerated = true
	got.ArchivePath = "/tmp/generated_code.zip"
	got.Stage = domain.StageGenerating
	if err := s.SaveChatSession(ctx, got); err != nil {
		t.Fatalf("SaveChatSession update failed: %v", err)
	}

	again, _ := s.GetChatSession(ctx, "anon_1", "tab-1")
	if !again.HasArchive() || again.Stage != domain.StageGenerating {
		t.Errorf("Update not persisted: %+v", again)
	}

	if err := s.DeleteChatSession(ctx, "anon_1", "tab-1"); err != nil {
		t.Fatalf("DeleteChatSession failed: %v", err)
	}
	gone, err := s.GetChatSession(ctx, "anon_1", "tab-1")
	if err != nil || gone != nil {
		t.Errorf("Expected deleted session, got %v, %v", gone, err)
	}
}

func TestListChatSessions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	base := time.Unix(time.Now().Unix(), 0)
	older := domain.NewChatSession("anon_1", "old", base.Add(-2*time.Hour))
	newer := domain.NewChatSession("anon_1", "new", base)
	other := domain.NewChatSession("anon_2", "x", base)
	for _, sess := range []*domain.ChatSession{older, newer, other} {
		if err := s.SaveChatSession(ctx, sess); err != nil {
			t.Fatalf("SaveChatSession failed: %v", err)
		}
	}

	list, err := s.ListChatSessions(ctx, "anon_1")
	if err != nil {
		t.Fatalf("ListChatSessions failed: %v", err)
	}
	if len(list) != 2 || list[0].SessionID != "new" {
		t.Fatalf("Unexpected session list %+v", list)
	}

	expired, err := s.ListExpiredChatSessions(ctx, time.Hour)
	if err != nil {
		t.Fatalf("ListExpiredChatSessions failed: %v", err)
	}
	if len(expired) != 1 || expired[0].SessionID != "old" {
		t.Errorf("Expected only the old session to be expired, got %+v", expired)
	}
}
