// Package engine is the boundary to the external planning and
// code-generation orchestration engine.
package engine

import (
	"context"
)

// Planner turns free-form requirements into a technical plan.
type Planner interface {
	RunChatPlanningAgent(ctx context.Context, requirements string) (string, error)
}

// Pipeline runs the full planning and code-generation pipeline.
type Pipeline interface {
	ExecuteChatBasedPlanningPipeline(ctx context.Context, req PipelineRequest, progress ProgressFunc) (*PipelineResult, error)
}

// Engine is the complete orchestration engine surface used by the chat flow.
type Engine interface {
	Planner
	Pipeline

	// Health reports whether the engine can currently serve requests.
	Health(ctx context.Context) error

	// Close releases resources.
	Close()
}

// PipelineRequest is the input of one code-generation run.
type PipelineRequest struct {
	UserInput      string
	EnableIndexing bool
}

// PipelineResult is what the pipeline reports back. Files maps archive
// paths to file contents and may be empty.
type PipelineResult struct {
	Status  string
	Summary string
	Files   map[string]string
}

// ProgressEvent is an intermediate status update emitted during a run.
type ProgressEvent struct {
	Stage   string  `json:"stage"`
	Message string  `json:"message"`
	Percent float64 `json:"percent"`
}

// ProgressFunc receives progress events. It may be nil.
type ProgressFunc func(ProgressEvent)

func (f ProgressFunc) emit(ev ProgressEvent) {
	if f != nil {
		f(ev)
	}
}

// Combined pairs a Planner with a separate Pipeline.
type Combined struct {
	Planner  Planner
	Pipeline Pipeline
}

// Combine returns an Engine that plans with planner and generates with pipeline.
func Combine(planner Planner, pipeline Pipeline) *Combined {
	return &Combined{Planner: planner, Pipeline: pipeline}
}

// RunChatPlanningAgent delegates to the planner.
func (c *Combined) RunChatPlanningAgent(ctx context.Context, requirements string) (string, error) {
	return c.Planner.RunChatPlanningAgent(ctx, requirements)
}

// ExecuteChatBasedPlanningPipeline delegates to the pipeline.
func (c *Combined) ExecuteChatBasedPlanningPipeline(ctx context.Context, req PipelineRequest, progress ProgressFunc) (*PipelineResult, error) {
	return c.Pipeline.ExecuteChatBasedPlanningPipeline(ctx, req, progress)
}

// Health checks every part that knows how to report health.
func (c *Combined) Health(ctx context.Context) error {
	for _, part := range []any{c.Planner, c.Pipeline} {
		if h, ok := part.(interface{ Health(context.Context) error }); ok {
			if err := h.Health(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close closes every part that holds resources.
func (c *Combined) Close() {
	for _, part := range []any{c.Planner, c.Pipeline} {
		if cl, ok := part.(interface{ Close() }); ok {
			cl.Close()
		}
	}
}

var _ Engine = (*Combined)(nil)
