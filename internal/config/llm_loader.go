package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/josephgoksu/taskfleet/internal/llm"
)

// LLMClientConfig resolves the chat client configuration.
// Precedence: explicit config > environment variables > defaults. Without a
// provider, one is inferred from the model name.
func (c *AppConfig) LLMClientConfig() (llm.Config, error) {
	provider := c.LLM.Provider
	if provider == "" {
		provider = string(llm.DefaultProvider)
		if p, ok := llm.InferProviderFromModel(c.LLM.Model); ok {
			provider = string(p)
		}
	}

	llmProvider, err := llm.ValidateProvider(provider)
	if err != nil {
		return llm.Config{}, fmt.Errorf("invalid provider: %w", err)
	}

	model := c.LLM.Model
	if model == "" {
		model = llm.DefaultModelForProvider(string(llmProvider))
	}

	baseURL := c.LLM.BaseURL
	if baseURL == "" && llmProvider == llm.ProviderOllama {
		baseURL = llm.DefaultOllamaURL
	}

	return llm.Config{
		Provider:  llmProvider,
		Model:     model,
		APIKey:    c.ResolveAPIKey(llmProvider),
		BaseURL:   baseURL,
		MaxTokens: c.LLM.MaxTokens,
	}, nil
}

// ResolveAPIKey returns the best API key for the given provider using
// the per-provider config key, then provider-specific env vars.
func (c *AppConfig) ResolveAPIKey(provider llm.Provider) string {
	if key := strings.TrimSpace(c.LLM.APIKeys[string(provider)]); key != "" {
		return key
	}
	return providerEnvKey(provider)
}

func providerEnvKey(provider llm.Provider) string {
	switch provider {
	case llm.ProviderOpenAI:
		return strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	case llm.ProviderAnthropic:
		return strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	case llm.ProviderGemini:
		key := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
		if key == "" {
			key = strings.TrimSpace(os.Getenv("GOOGLE_API_KEY"))
		}
		return key
	default:
		return ""
	}
}
