package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestOfflinePlanEchoesRequirements(t *testing.T) {
	plan, err := NewOffline().RunChatPlanningAgent(context.Background(), "  a CLI that renames photos by EXIF date  ")
	if err != nil {
		t.Fatalf("RunChatPlanningAgent failed: %v", err)
	}
	if !strings.Contains(plan, "a CLI that renames photos by EXIF date") {
		t.Errorf("Expected requirements in plan, got %q", plan)
	}
}

func TestOfflinePipelineReportsProgress(t *testing.T) {
	var events []ProgressEvent
	res, err := NewOffline().ExecuteChatBasedPlanningPipeline(context.Background(),
		PipelineRequest{UserInput: "plan", EnableIndexing: true},
		func(ev ProgressEvent) { events = append(events, ev) },
	)
	if err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}
	if res.Status != "completed" || len(res.Files) != 0 {
		t.Errorf("Unexpected result %+v", res)
	}
	if len(events) != len(offlineSteps) || events[len(events)-1].Percent != 100 {
		t.Errorf("Unexpected progress events %+v", events)
	}
}

func TestOfflinePipelineHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewOffline().ExecuteChatBasedPlanningPipeline(ctx, PipelineRequest{}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

type stubPlanner struct{ plan string }

func (s stubPlanner) RunChatPlanningAgent(context.Context, string) (string, error) {
	return s.plan, nil
}

func TestCombineDelegates(t *testing.T) {
	eng := Combine(stubPlanner{plan: "stub plan"}, NewOffline())
	plan, err := eng.RunChatPlanningAgent(context.Background(), "x")
	if err != nil || plan != "stub plan" {
		t.Fatalf("Unexpected plan %q, %v", plan, err)
	}
	if err := eng.Health(context.Background()); err != nil {
		t.Errorf("Expected healthy combined engine, got %v", err)
	}
	eng.Close()
}

func TestNewOpenAIPlannerValidatesOptions(t *testing.T) {
	if _, err := NewOpenAIPlanner(OpenAISettings{Model: "gpt-4o-mini"}); err == nil {
		t.Error("Expected error without API key")
	}
	if _, err := NewOpenAIPlanner(OpenAISettings{APIKey: "sk-test"}); err == nil {
		t.Error("Expected error without model")
	}
	p, err := NewOpenAIPlanner(OpenAISettings{APIKey: "sk-test", Model: "gpt-4o-mini", BaseURL: "http://localhost:1234/v1"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(p.Opts) != 2 {
		t.Errorf("Expected API key and base URL options, got %d", len(p.Opts))
	}
}
