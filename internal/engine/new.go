package engine

import (
	"fmt"
	"log/slog"

	"github.com/ashureev/deepcode-chat/internal/config"
)

// New selects a backend from configuration: the gRPC engine when
// ENGINE_ADDR is set, an OpenAI planner paired with the offline pipeline
// when an API key is set, and the offline engine otherwise.
func New(cfg *config.Config, logger *slog.Logger) (Engine, error) {
	switch cfg.EngineMode() {
	case "grpc":
		client, err := NewGrpcClient(GrpcClientConfig{
			Address:        cfg.Engine.Addr,
			ConnectTimeout: cfg.Engine.ConnectTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	case "openai":
		planner, err := NewOpenAIPlanner(OpenAISettings{
			APIKey:  cfg.OpenAI.APIKey,
			Model:   cfg.OpenAI.Model,
			BaseURL: cfg.OpenAI.BaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("configure openai planner: %w", err)
		}
		return Combine(planner, NewOffline()), nil
	default:
		return NewOffline(), nil
	}
}
