// Package chat implements the guided conversation that turns a user's
// project description into a technical plan and then into generated code.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ashureev/deepcode-chat/internal/archive"
	"github.com/ashureev/deepcode-chat/internal/domain"
	"github.com/ashureev/deepcode-chat/internal/engine"
	"github.com/ashureev/deepcode-chat/internal/export"
	"github.com/ashureev/deepcode-chat/internal/progress"
	"github.com/ashureev/deepcode-chat/internal/store"
)

var (
	// ErrEmptyInput is returned for blank chat input.
	ErrEmptyInput = errors.New("message is empty")
	// ErrBusy is returned while another turn of the same session is running.
	ErrBusy = errors.New("a previous message is still being processed")
	// ErrNoArchive is returned when no generated code exists for the session.
	ErrNoArchive = errors.New("no generated code available")
	// ErrSessionNotFound is returned when a session does not exist.
	ErrSessionNotFound = errors.New("chat session not found")
)

const defaultMinRequirementsLength = 50

// Notifier receives progress events for a tab session.
type Notifier interface {
	Publish(userID, sessionID string, ev progress.Event)
}

type nopNotifier struct{}

func (nopNotifier) Publish(string, string, progress.Event) {}

// Options tunes the conversation flow.
type Options struct {
	MinRequirementsLength int
	PlanTimeout           time.Duration
	PipelineTimeout       time.Duration
	EnableIndexing        bool
}

// Service runs chat turns against persisted sessions.
type Service struct {
	repo     store.Repository
	engine   engine.Engine
	archives *archive.Writer
	notifier Notifier
	log      ConversationLogger
	opts     Options
	now      func() time.Time

	inflight sync.Map // sessionKey -> struct{}
}

// NewService wires the chat flow. notifier and log may be nil.
func NewService(repo store.Repository, eng engine.Engine, archives *archive.Writer, notifier Notifier, log ConversationLogger, opts Options) *Service {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if log == nil {
		log = noopConversationLogger{}
	}
	if opts.MinRequirementsLength <= 0 {
		opts.MinRequirementsLength = defaultMinRequirementsLength
	}
	return &Service{
		repo:     repo,
		engine:   eng,
		archives: archives,
		notifier: notifier,
		log:      log,
		opts:     opts,
		now:      time.Now,
	}
}

func sessionKey(userID, sessionID string) string {
	return userID + ":" + sessionID
}

func (s *Service) acquire(userID, sessionID string) (func(), bool) {
	key := sessionKey(userID, sessionID)
	if _, loaded := s.inflight.LoadOrStore(key, struct{}{}); loaded {
		return nil, false
	}
	return func() { s.inflight.Delete(key) }, true
}

// Processing reports whether a turn is currently running for the session.
func (s *Service) Processing(userID, sessionID string) bool {
	_, ok := s.inflight.Load(sessionKey(userID, sessionID))
	return ok
}

// Open returns the session, creating it with the greeting when it does not exist.
func (s *Service) Open(ctx context.Context, userID, sessionID string) (*domain.ChatSession, error) {
	sess, err := s.repo.GetChatSession(ctx, userID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess != nil {
		return sess, nil
	}

	sess = s.newSession(userID, sessionID)
	if err := s.repo.SaveChatSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	slog.Info("Chat session created", "user_id", userID, "session_id", sessionID)
	return sess, nil
}

// Get returns an existing session without creating one.
func (s *Service) Get(ctx context.Context, userID, sessionID string) (*domain.ChatSession, error) {
	sess, err := s.repo.GetChatSession(ctx, userID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// List returns every session of a user, most recent first.
func (s *Service) List(ctx context.Context, userID string) ([]*domain.ChatSession, error) {
	return s.repo.ListChatSessions(ctx, userID)
}

func (s *Service) newSession(userID, sessionID string) *domain.ChatSession {
	now := s.now()
	sess := domain.NewChatSession(userID, sessionID, now)
	sess.AddMessage(domain.RoleAssistant, Greeting, now)
	return sess
}

// Process handles one user message: it appends the input, computes the
// assistant reply for the current stage, appends it and persists the session.
func (s *Service) Process(ctx context.Context, userID, sessionID, input string) (*domain.ChatSession, error) {
	if strings.TrimSpace(input) == "" {
		return nil, ErrEmptyInput
	}

	release, ok := s.acquire(userID, sessionID)
	if !ok {
		return nil, ErrBusy
	}
	defer release()

	sess, err := s.Open(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	stageBefore := sess.Stage
	sess.AddMessage(domain.RoleUser, input, s.now())
	s.logMessage(sess, domain.RoleUser, input, nil)

	reply := s.respond(ctx, sess, input)

	sess.AddMessage(domain.RoleAssistant, reply, s.now())
	s.logMessage(sess, domain.RoleAssistant, reply, map[string]any{
		"stage_before": string(stageBefore),
		"stage_after":  string(sess.Stage),
	})

	// The turn has already happened; persist it even if the request was cancelled.
	if err := s.repo.SaveChatSession(context.WithoutCancel(ctx), sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	slog.Info("Chat turn processed",
		"user_id", userID,
		"session_id", sessionID,
		"stage_before", stageBefore,
		"stage_after", sess.Stage,
		"input_length", utf8.RuneCountInString(input),
	)
	return sess, nil
}

func (s *Service) respond(ctx context.Context, sess *domain.ChatSession, input string) string {
	switch sess.Stage {
	case domain.StageCollectingRequirements:
		if utf8.RuneCountInString(input) <= s.opts.MinRequirementsLength {
			return replyMoreDetail
		}
		reply := s.draftPlan(ctx, sess, input)
		sess.Advance(sess.Stage.Next())
		return reply

	case domain.StagePlanning:
		if !IsCodeCommand(input) {
			return replyCodeHint
		}
		reply, ok := s.generateCode(ctx, sess)
		if ok {
			sess.Advance(sess.Stage.Next())
		}
		return reply

	case domain.StageGenerating:
		return replyFollowUp

	default:
		sess.Advance(domain.StageCollectingRequirements)
		return replyIntroduction
	}
}

func (s *Service) draftPlan(ctx context.Context, sess *domain.ChatSession, requirements string) string {
	ctx, cancel := withOptionalTimeout(ctx, s.opts.PlanTimeout)
	defer cancel()

	started := time.Now()
	planText, err := s.engine.RunChatPlanningAgent(ctx, requirements)
	if err != nil {
		slog.Warn("Planning agent failed, using fallback plan",
			"user_id", sess.UserID,
			"session_id", sess.SessionID,
			"duration", time.Since(started),
			"error", err,
		)
		sess.Plan = fallbackPlan(requirements)
		sess.PlanSource = domain.PlanSourceFallback
		return replyPlanUnavailable + "\n\n" + sess.Plan
	}

	sess.Plan = formatPlan(planText)
	sess.PlanSource = domain.PlanSourceEngine
	slog.Info("Plan generated", "user_id", sess.UserID, "session_id", sess.SessionID, "duration", time.Since(started))
	return sess.Plan
}

func (s *Service) generateCode(ctx context.Context, sess *domain.ChatSession) (string, bool) {
	input := sess.Plan
	if input == "" {
		input = defaultPipelineInput
	}

	s.notifier.Publish(sess.UserID, sess.SessionID, progress.Event{Type: "started", Message: "Generating code"})
	defer s.notifier.Publish(sess.UserID, sess.SessionID, progress.Event{Type: "finished"})

	ctx, cancel := withOptionalTimeout(ctx, s.opts.PipelineTimeout)
	defer cancel()

	result, err := s.engine.ExecuteChatBasedPlanningPipeline(ctx,
		engine.PipelineRequest{UserInput: input, EnableIndexing: s.opts.EnableIndexing},
		func(ev engine.ProgressEvent) {
			s.notifier.Publish(sess.UserID, sess.SessionID, progress.Event{
				Type:    "progress",
				Stage:   ev.Stage,
				Message: ev.Message,
				Percent: ev.Percent,
			})
		},
	)
	if err != nil {
		slog.Error("Code generation failed", "user_id", sess.UserID, "session_id", sess.SessionID, "error", err)
		return codeErrorReply(err), false
	}

	files := result.Files
	if len(files) == 0 {
		files = archive.PlaceholderFiles(input)
	}

	p, err := s.archives.Write(files)
	if err != nil {
		slog.Error("Failed to store generated code", "user_id", sess.UserID, "session_id", sess.SessionID, "error", err)
		return codeErrorReply(err), false
	}

	sess.ArchivePath = p
	sess.CodeGenerated = true
	slog.Info("Code generated",
		"user_id", sess.UserID,
		"session_id", sess.SessionID,
		"archive", sess.ArchiveName(),
		"files", len(files),
		"status", result.Status,
	)
	return codeGeneratedReply, true
}

// Reset discards the session and its archive and starts a fresh conversation.
func (s *Service) Reset(ctx context.Context, userID, sessionID string) (*domain.ChatSession, error) {
	release, ok := s.acquire(userID, sessionID)
	if !ok {
		return nil, ErrBusy
	}
	defer release()

	if err := s.discard(ctx, userID, sessionID); err != nil {
		return nil, err
	}

	sess := s.newSession(userID, sessionID)
	if err := s.repo.SaveChatSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.log.Log(ConversationLogEvent{
		Timestamp: s.now().UTC().Format(time.RFC3339Nano),
		UserID:    userID,
		SessionID: sessionID,
		Channel:   "chat_http",
		Direction: "inbound",
		EventType: "chat_reset",
	})
	slog.Info("Chat session reset", "user_id", userID, "session_id", sessionID)
	return sess, nil
}

// Expire removes a session that outlived its TTL. Sessions with a turn in
// flight, or that changed since sess was read, are skipped and reported as
// not removed.
func (s *Service) Expire(ctx context.Context, sess *domain.ChatSession) (bool, error) {
	release, ok := s.acquire(sess.UserID, sess.SessionID)
	if !ok {
		return false, nil
	}
	defer release()

	current, err := s.repo.GetChatSession(ctx, sess.UserID, sess.SessionID)
	if err != nil {
		return false, fmt.Errorf("load session: %w", err)
	}
	if current == nil || current.UpdatedAt.After(sess.UpdatedAt) {
		return false, nil
	}

	if err := s.remove(ctx, current); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) discard(ctx context.Context, userID, sessionID string) error {
	sess, err := s.repo.GetChatSession(ctx, userID, sessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		return nil
	}
	return s.remove(ctx, sess)
}

func (s *Service) remove(ctx context.Context, sess *domain.ChatSession) error {
	if err := s.archives.Remove(sess.ArchivePath); err != nil {
		slog.Warn("Failed to remove archive", "user_id", sess.UserID, "session_id", sess.SessionID, "error", err)
	}
	if err := s.repo.DeleteChatSession(ctx, sess.UserID, sess.SessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Export writes the transcript of an existing session with exp and returns
// the session it exported.
func (s *Service) Export(ctx context.Context, userID, sessionID string, exp export.Exporter, w io.Writer) (*domain.ChatSession, error) {
	sess, err := s.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if err := exp.Export(sess, w); err != nil {
		return nil, fmt.Errorf("export session: %w", err)
	}
	return sess, nil
}

// Archive opens the generated archive for download.
func (s *Service) Archive(ctx context.Context, userID, sessionID string) (*os.File, string, error) {
	sess, err := s.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, "", err
	}
	if !sess.HasArchive() {
		return nil, "", ErrNoArchive
	}
	f, err := s.archives.Open(sess.ArchivePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", ErrNoArchive
		}
		return nil, "", fmt.Errorf("open archive: %w", err)
	}
	return f, sess.ArchiveName(), nil
}

func (s *Service) logMessage(sess *domain.ChatSession, role domain.Role, content string, meta map[string]any) {
	direction := "inbound"
	eventType := "chat_user_message"
	if role == domain.RoleAssistant {
		direction = "outbound"
		eventType = "chat_assistant_message"
	}
	s.log.Log(ConversationLogEvent{
		Timestamp:  s.now().UTC().Format(time.RFC3339Nano),
		UserID:     sess.UserID,
		SessionID:  sess.SessionID,
		Channel:    "chat_http",
		Direction:  direction,
		EventType:  eventType,
		ContentRaw: content,
		Content:    cleanForReadability(content),
		Meta:       meta,
	})
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
