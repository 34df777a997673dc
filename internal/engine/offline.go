package engine

import (
	"context"
	"fmt"
	"strings"
)

// Offline is a deterministic local engine for development without the
// orchestration service. It never calls out to a model.
type Offline struct{}

// NewOffline returns the offline engine.
func NewOffline() *Offline { return &Offline{} }

// RunChatPlanningAgent builds a generic plan skeleton around the requirements.
func (Offline) RunChatPlanningAgent(ctx context.Context, requirements string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("**Project Overview:**\n")
	sb.WriteString(strings.TrimSpace(requirements))
	sb.WriteString("\n\n**Milestones:**\n")
	sb.WriteString("1. Scaffold the project layout and configuration\n")
	sb.WriteString("2. Implement the core modules described above\n")
	sb.WriteString("3. Expose the functionality through its entry point\n")
	sb.WriteString("4. Add tests and documentation\n")
	return sb.String(), nil
}

var offlineSteps = []ProgressEvent{
	{Stage: "analysis", Message: "Analyzing requirements", Percent: 10},
	{Stage: "planning", Message: "Planning project structure", Percent: 40},
	{Stage: "generation", Message: "Generating project files", Percent: 80},
	{Stage: "packaging", Message: "Packaging results", Percent: 100},
}

// ExecuteChatBasedPlanningPipeline reports progress and returns a result
// without files, so callers fall back to their placeholder project.
func (Offline) ExecuteChatBasedPlanningPipeline(ctx context.Context, req PipelineRequest, progress ProgressFunc) (*PipelineResult, error) {
	for _, step := range offlineSteps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		progress.emit(step)
	}
	return &PipelineResult{
		Status:  "completed",
		Summary: fmt.Sprintf("offline run, %d characters of input, indexing=%t", len(req.UserInput), req.EnableIndexing),
	}, nil
}

// Health always succeeds.
func (Offline) Health(context.Context) error { return nil }

// Close is a no-op.
func (Offline) Close() {}

var _ Engine = Offline{}
