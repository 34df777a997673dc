package domain

import (
	"testing"
	"time"
)

func TestStageNext(t *testing.T) {
	tests := []struct {
		in   Stage
		want Stage
	}{
		{StageGreeting, StageCollectingRequirements},
		{StageCollectingRequirements, StagePlanning},
		{StagePlanning, StageGenerating},
		{StageGenerating, StageGenerating},
		{Stage("bogus"), Stage("bogus")},
	}
	for _, tt := range tests {
		if got := tt.in.Next(); got != tt.want {
			t.Errorf("%s.Next() = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestStageValid(t *testing.T) {
	if !StagePlanning.Valid() {
		t.Error("Expected planning to be valid")
	}
	if Stage("done").Valid() {
		t.Error("Expected unknown stage to be invalid")
	}
}

func TestAdvanceIsMonotonic(t *testing.T) {
	s := NewChatSession("u", "s", time.Now())
	s.Advance(StagePlanning)
	if s.Stage != StagePlanning {
		t.Fatalf("Expected planning, got %s", s.Stage)
	}
	s.Advance(StageCollectingRequirements)
	if s.Stage != StagePlanning {
		t.Errorf("Expected stage to stay at planning, got %s", s.Stage)
	}
}

func TestArchiveHelpers(t *testing.T) {
	s := NewChatSession("u", "s", time.Now())
	if s.HasArchive() {
		t.Error("New session should not have an archive")
	}
	s.ArchivePath = "/tmp/generated_code_20250101_120000_abcd1234.zip"
	if s.HasArchive() {
		t.Error("Archive path without CodeGenerated should not count")
	}
	s.CodeGenerated = true
	if !s.HasArchive() {
		t.Error("Expected archive to be available")
	}
	if got := s.ArchiveName(); got != "generated_code_20250101_120000_abcd1234.zip" {
		t.Errorf("Unexpected archive name %q", got)
	}
}

func TestAddMessageUpdatesTimestamp(t *testing.T) {
	start := time.Unix(100, 0)
	s := NewChatSession("u", "s", start)
	later := start.Add(time.Minute)
	s.AddMessage(RoleUser, "hi", later)

	msg, ok := s.LastMessage()
	if !ok || msg.Content != "hi" || msg.Role != RoleUser {
		t.Fatalf("Unexpected last message %+v", msg)
	}
	if !s.UpdatedAt.Equal(later) {
		t.Errorf("Expected UpdatedAt %v, got %v", later, s.UpdatedAt)
	}
}
