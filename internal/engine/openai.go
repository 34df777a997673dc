package engine

import (
	"context"
	"errors"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const planningSystemPrompt = `You are a senior software architect. Given a user's project requirements,
write a concise technical implementation plan in Markdown with these sections:
Project Overview, Technology Stack, Core Modules, API Design, File Structure, Testing Strategy.
Do not write the implementation itself.`

// OpenAISettings configures an OpenAI-compatible chat completions endpoint.
type OpenAISettings struct {
	APIKey  string
	Model   string
	BaseURL string
}

// OpenAIPlanner implements Planner with the openai-go chat completions API.
// It is used when no orchestration engine address is configured.
type OpenAIPlanner struct {
	Model string
	Opts  []option.RequestOption
}

// NewOpenAIPlanner validates settings and returns a planner.
func NewOpenAIPlanner(cfg OpenAISettings) (*OpenAIPlanner, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key missing; set OPENAI_API_KEY")
	}
	if cfg.Model == "" {
		return nil, errors.New("openai model is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIPlanner{Model: cfg.Model, Opts: opts}, nil
}

// RunChatPlanningAgent asks the model for a plan.
func (o *OpenAIPlanner) RunChatPlanningAgent(ctx context.Context, requirements string) (string, error) {
	client := openai.NewClient(o.Opts...)

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(planningSystemPrompt),
			openai.UserMessage(requirements),
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty choices")
	}
	plan := strings.TrimSpace(resp.Choices[0].Message.Content)
	if plan == "" {
		return "", errEmptyPlan
	}
	return plan, nil
}

var _ Planner = (*OpenAIPlanner)(nil)
