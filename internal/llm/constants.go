package llm

import "strings"

// Provider constants
const (
	// DefaultProvider is the provider used when none is configured
	DefaultProvider = ProviderAnthropic

	// ProviderOpenAI represents the OpenAI provider
	ProviderOpenAI Provider = "openai"

	// ProviderOllama represents a local Ollama runtime
	ProviderOllama Provider = "ollama"

	// ProviderAnthropic represents the Anthropic provider
	ProviderAnthropic Provider = "anthropic"

	// ProviderGemini represents the Google Gemini provider
	ProviderGemini Provider = "gemini"
)

// DefaultOllamaURL is the default URL for Ollama server
const DefaultOllamaURL = "http://localhost:11434"

// DefaultMaxTokens caps a single completion.
const DefaultMaxTokens = 8192

var defaultModels = map[Provider]string{
	ProviderOpenAI:    "gpt-5-mini",
	ProviderOllama:    "llama3.2",
	ProviderAnthropic: "claude-sonnet-4-5",
	ProviderGemini:    "gemini-2.5-flash",
}

// DefaultModelForProvider returns the default model ID for a provider, or ""
// for unknown providers.
func DefaultModelForProvider(provider string) string {
	return defaultModels[Provider(provider)]
}

// InferProviderFromModel guesses the provider from a model name prefix.
func InferProviderFromModel(model string) (Provider, bool) {
	m := strings.ToLower(model)
	switch {
	case strings.HasPrefix(m, "gpt-"), strings.HasPrefix(m, "o1"), strings.HasPrefix(m, "o3"), strings.HasPrefix(m, "o4"):
		return ProviderOpenAI, true
	case strings.HasPrefix(m, "claude-"):
		return ProviderAnthropic, true
	case strings.HasPrefix(m, "gemini-"):
		return ProviderGemini, true
	case strings.HasPrefix(m, "llama"), strings.HasPrefix(m, "qwen"), strings.HasPrefix(m, "mistral"), strings.HasPrefix(m, "deepseek"):
		return ProviderOllama, true
	default:
		return "", false
	}
}
