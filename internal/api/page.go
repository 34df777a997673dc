package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// PageConfig describes the chat page chrome.
type PageConfig struct {
	Title            string   `json:"title"`
	Icon             string   `json:"icon"`
	Layout           string   `json:"layout"`
	SidebarState     string   `json:"sidebar_state"`
	InputPlaceholder string   `json:"input_placeholder"`
	CommandHint      string   `json:"command_hint"`
	EngineMode       string   `json:"engine_mode"`
	ExportFormats    []string `json:"export_formats"`
}

// PageHandler serves the static page configuration.
type PageHandler struct {
	cfg PageConfig
}

// NewPageHandler returns the page handler for the given engine mode.
func NewPageHandler(engineMode string, exportFormats []string) *PageHandler {
	return &PageHandler{cfg: PageConfig{
		Title:            "DeepCode - AI Coding Assistant",
		Icon:             "💬",
		Layout:           "wide",
		SidebarState:     "expanded",
		InputPlaceholder: "Describe your coding requirements or ask questions...",
		CommandHint:      "Type /code to generate the implementation",
		EngineMode:       engineMode,
		ExportFormats:    exportFormats,
	}}
}

// Page returns the page configuration.
func (h *PageHandler) Page(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, h.cfg)
}

// Register registers the page route.
func (h *PageHandler) Register(r chi.Router) {
	r.Get("/page", h.Page)
}
