package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/deepcode-chat/internal/chat"
	"github.com/ashureev/deepcode-chat/internal/domain"
	"github.com/ashureev/deepcode-chat/internal/export"
	"github.com/ashureev/deepcode-chat/internal/identity"
	"github.com/ashureev/deepcode-chat/internal/render"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// MessageView is a chat message as shown on the page.
type MessageView struct {
	Role      domain.Role   `json:"role"`
	Content   string        `json:"content"`
	HTML      template.HTML `json:"html"`
	CreatedAt time.Time     `json:"created_at"`
}

// SessionView is the page state of one tab session.
type SessionView struct {
	SessionID       string            `json:"session_id"`
	Stage           domain.Stage      `json:"stage"`
	Messages        []MessageView     `json:"messages"`
	ShowCommandHint bool              `json:"show_command_hint"`
	HasArchive      bool              `json:"has_archive"`
	ArchiveName     string            `json:"archive_name,omitempty"`
	PlanSource      domain.PlanSource `json:"plan_source,omitempty"`
	Processing      bool              `json:"processing"`
}

type postMessageRequest struct {
	Message string `json:"message"`
}

// ChatHandler serves the chat endpoints.
type ChatHandler struct {
	svc         *chat.Service
	renderer    *render.Renderer
	limiter     *RateLimiter
	maxBodySize int64
}

// NewChatHandler creates a chat handler. limiter may be nil to disable throttling.
func NewChatHandler(svc *chat.Service, renderer *render.Renderer, limiter *RateLimiter, maxBodySize int64) *ChatHandler {
	if maxBodySize <= 0 {
		maxBodySize = 1 << 20
	}
	return &ChatHandler{
		svc:         svc,
		renderer:    renderer,
		limiter:     limiter,
		maxBodySize: maxBodySize,
	}
}

// Register registers the chat routes.
func (h *ChatHandler) Register(r chi.Router) {
	r.Route("/chat", func(r chi.Router) {
		r.Get("/", h.GetSession)
		r.Post("/messages", h.PostMessage)
		r.Post("/reset", h.Reset)
		r.Get("/archive", h.DownloadArchive)
		r.Get("/export", h.Export)
	})
}

func (h *ChatHandler) view(sess *domain.ChatSession) SessionView {
	msgs := make([]MessageView, 0, len(sess.Messages))
	for _, m := range sess.Messages {
		msgs = append(msgs, MessageView{
			Role:      m.Role,
			Content:   m.Content,
			HTML:      h.renderer.MarkdownOrText(m.Content),
			CreatedAt: m.CreatedAt,
		})
	}
	v := SessionView{
		SessionID:       sess.SessionID,
		Stage:           sess.Stage,
		Messages:        msgs,
		ShowCommandHint: sess.ShowCommandHint(),
		HasArchive:      sess.HasArchive(),
		PlanSource:      sess.PlanSource,
		Processing:      h.svc.Processing(sess.UserID, sess.SessionID),
	}
	if v.HasArchive {
		v.ArchiveName = sess.ArchiveName()
	}
	return v
}

// GetSession returns the current tab session, creating it on first visit.
func (h *ChatHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())

	sess, err := h.svc.Open(r.Context(), userID, sessionID)
	if err != nil {
		slog.Error("Failed to open chat session", "error", err, "user_id", userID, "session_id", sessionID)
		Error(w, http.StatusInternalServerError, "failed to load chat session")
		return
	}
	JSON(w, http.StatusOK, h.view(sess))
}

// PostMessage processes one chat turn.
func (h *ChatHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())

	if h.limiter != nil && !h.limiter.Allow(userID) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "message too large")
			return
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	slog.Info("Chat message received",
		"user_id", userID,
		"username", identity.UsernameFromContext(r.Context()),
		"session_id", sessionID,
		"request_id", chiMiddleware.GetReqID(r.Context()),
		"ip", identity.IPFromRequest(r),
		"message_length", len(req.Message),
	)

	sess, err := h.svc.Process(r.Context(), userID, sessionID, req.Message)
	switch {
	case errors.Is(err, chat.ErrEmptyInput):
		Error(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, chat.ErrBusy):
		Error(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		slog.Error("Failed to process chat message", "error", err, "user_id", userID, "session_id", sessionID)
		Error(w, http.StatusInternalServerError, "failed to process message")
		return
	}
	JSON(w, http.StatusOK, h.view(sess))
}

// Reset discards the tab session and starts over.
func (h *ChatHandler) Reset(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())

	sess, err := h.svc.Reset(r.Context(), userID, sessionID)
	if errors.Is(err, chat.ErrBusy) {
		Error(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		slog.Error("Failed to reset chat session", "error", err, "user_id", userID, "session_id", sessionID)
		Error(w, http.StatusInternalServerError, "failed to reset chat session")
		return
	}
	JSON(w, http.StatusOK, h.view(sess))
}

// DownloadArchive streams the generated zip.
func (h *ChatHandler) DownloadArchive(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())

	f, name, err := h.svc.Archive(r.Context(), userID, sessionID)
	if errors.Is(err, chat.ErrNoArchive) || errors.Is(err, chat.ErrSessionNotFound) {
		Error(w, http.StatusNotFound, chat.ErrNoArchive.Error())
		return
	}
	if err != nil {
		slog.Error("Failed to open archive", "error", err, "user_id", userID, "session_id", sessionID)
		Error(w, http.StatusInternalServerError, "failed to open archive")
		return
	}
	defer func() { _ = f.Close() }()

	var modTime time.Time
	if info, err := f.Stat(); err == nil {
		modTime = info.ModTime()
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, modTime, f)
}

// Export downloads the transcript in the requested format.
func (h *ChatHandler) Export(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())

	exp, err := export.Get(r.URL.Query().Get("format"))
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	var buf bytes.Buffer
	sess, err := h.svc.Export(r.Context(), userID, sessionID, exp, &buf)
	if errors.Is(err, chat.ErrSessionNotFound) {
		Error(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		slog.Error("Failed to export chat session", "error", err, "user_id", userID, "session_id", sessionID)
		Error(w, http.StatusInternalServerError, "failed to export chat session")
		return
	}

	w.Header().Set("Content-Type", exp.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(sess, exp)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
