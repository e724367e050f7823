package ai

import "context"

// Runtime is implemented by the AI backends (OpenRouter, Ollama).
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// Provider identifiers used in configuration.
const (
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
)
