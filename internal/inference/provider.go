// Package inference wraps the language-model services the orchestrator
// consumes: intent classification and free-text generation. Providers back
// the same two-method contract whether they call Anthropic, OpenAI, or the
// offline keyword analyzer.
package inference

import (
	"context"
	"fmt"

	"github.com/quorumhq/quorum/pkg/models"
)

// Provider serves both classification and generation.
type Provider interface {
	Classify(ctx context.Context, text string) (models.Classification, error)
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config selects and configures a provider.
type Config struct {
	// Provider is one of "anthropic", "openai", "keyword", or "auto".
	// Auto picks the first provider with credentials, falling back to
	// the keyword analyzer.
	Provider string
	// Model overrides the provider's default model when non-empty.
	Model string
	// AnthropicAPIKey is the Anthropic key; empty falls back to the env.
	AnthropicAPIKey string
	// OpenAIAPIKey is the OpenAI key.
	OpenAIAPIKey string
	// UseAWSBedrock routes Anthropic calls through AWS Bedrock.
	UseAWSBedrock bool
	// AWSRegion is the Bedrock region.
	AWSRegion string
	// AWSProfile is the optional AWS profile name.
	AWSProfile string
}

// New builds the provider named by the config.
func New(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "anthropic":
		return NewAnthropicProvider(cfg)
	case "openai":
		return NewOpenAIProvider(cfg)
	case "keyword", "none":
		return NewKeywordProvider(), nil
	case "", "auto":
		if cfg.UseAWSBedrock || cfg.AnthropicAPIKey != "" {
			return NewAnthropicProvider(cfg)
		}
		if cfg.OpenAIAPIKey != "" {
			return NewOpenAIProvider(cfg)
		}
		return NewKeywordProvider(), nil
	default:
		return nil, fmt.Errorf("unknown inference provider %q", cfg.Provider)
	}
}
