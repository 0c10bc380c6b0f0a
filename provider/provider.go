package provider

import (
	"context"
	"errors"

	"github.com/xicom-labs/presales-bot/config"
	"github.com/xicom-labs/presales-bot/models"
	openai_provider "github.com/xicom-labs/presales-bot/provider/openai"
)

// Client represents different LLM providers
type Client string

const (
	OpenAI    Client = "openai"
	Anthropic Client = "anthropic"
	Gemini    Client = "gemini"
)

// Provider is the interface that all LLM implementations must satisfy
type Provider interface {
	// ExtractSlots pulls structured lead fields out of free text. The
	// result is restricted to the nine known slot keys.
	ExtractSlots(ctx context.Context, text string) (models.Slots, error)
	// Answer generates a grounded reply from the retrieved chunks.
	Answer(ctx context.Context, question string, contextChunks []string) (string, error)
	// CreateEmbedding embeds the given texts.
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// NewProvider creates a new LLM client based on the provided configuration
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	switch Client(cfg.Provider) {
	case OpenAI:
		if cfg.APIKey == "" {
			return nil, errors.New("llm.api_key (or OPENAI_API_KEY) not set")
		}
		return openai_provider.NewOpenAIClient(
			cfg.APIKey,
			cfg.CompletionModel,
			cfg.EmbeddingModel,
			cfg.Temperature,
			cfg.MaxTokens,
			cfg.Timeout,
		), nil
	case Anthropic:
		return nil, errors.New("anthropic client not implemented yet")
	case Gemini:
		return nil, errors.New("gemini client not implemented yet")
	default:
		return nil, errors.New("unsupported LLM provider")
	}
}
