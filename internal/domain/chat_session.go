package domain

import (
	"path/filepath"
	"time"
)

// Role tags the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single entry in a conversation.
type Message struct {
	Role      Role      `json:"role" yaml:"role"`
	Content   string    `json:"content" yaml:"content"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Stage is the position of a session in the conversation flow.
type Stage string

const (
	StageGreeting               Stage = "greeting"
	StageCollectingRequirements Stage = "collecting_requirements"
	StagePlanning               Stage = "planning"
	StageGenerating             Stage = "generating"
)

var stageOrder = []Stage{
	StageGreeting,
	StageCollectingRequirements,
	StagePlanning,
	StageGenerating,
}

// Valid reports whether s is one of the known stages.
func (s Stage) Valid() bool {
	return s.index() >= 0
}

// Next returns the stage that follows s. The last stage is terminal.
func (s Stage) Next() Stage {
	i := s.index()
	if i < 0 || i == len(stageOrder)-1 {
		return s
	}
	return stageOrder[i+1]
}

// Before reports whether s comes earlier in the flow than other.
func (s Stage) Before(other Stage) bool {
	return s.index() < other.index()
}

func (s Stage) index() int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// PlanSource records where the stored plan text came from.
type PlanSource string

const (
	PlanSourceNone     PlanSource = ""
	PlanSourceEngine   PlanSource = "engine"
	PlanSourceFallback PlanSource = "fallback"
)

// ChatSession is the state of one browser tab's conversation.
type ChatSession struct {
	UserID        string     `json:"user_id" yaml:"user_id"`
	SessionID     string     `json:"session_id" yaml:"session_id"`
	Stage         Stage      `json:"stage" yaml:"stage"`
	Messages      []Message  `json:"messages" yaml:"messages"`
	Plan          string     `json:"plan,omitempty" yaml:"plan,omitempty"`
	PlanSource    PlanSource `json:"plan_source,omitempty" yaml:"plan_source,omitempty"`
	CodeGenerated bool       `json:"code_generated" yaml:"code_generated"`
	ArchivePath   string     `json:"-" yaml:"-"`
	CreatedAt     time.Time  `json:"created_at" yaml:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" yaml:"updated_at"`
}

// NewChatSession returns an empty session in the greeting stage.
func NewChatSession(userID, sessionID string, now time.Time) *ChatSession {
	return &ChatSession{
		UserID:    userID,
		SessionID: sessionID,
		Stage:     StageGreeting,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddMessage appends a message to the history.
func (s *ChatSession) AddMessage(role Role, content string, now time.Time) {
	s.Messages = append(s.Messages, Message{Role: role, Content: content, CreatedAt: now})
	s.UpdatedAt = now
}

// Advance moves the session to stage if it lies ahead of the current one.
// Moving backwards is ignored.
func (s *ChatSession) Advance(stage Stage) {
	if s.Stage.Before(stage) {
		s.Stage = stage
	}
}

// HasArchive reports whether a generated archive is available for download.
func (s *ChatSession) HasArchive() bool {
	return s.CodeGenerated && s.ArchivePath != ""
}

// ArchiveName is the download file name of the generated archive.
func (s *ChatSession) ArchiveName() string {
	if s.ArchivePath == "" {
		return ""
	}
	return filepath.Base(s.ArchivePath)
}

// ShowCommandHint reports whether the UI should prompt for /code.
func (s *ChatSession) ShowCommandHint() bool {
	return s.Stage == StagePlanning
}

// LastMessage returns the most recent message, if any.
func (s *ChatSession) LastMessage() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}
