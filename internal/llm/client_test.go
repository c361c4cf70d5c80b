package llm

import (
	"context"
	"strings"
	"testing"
)

func TestValidateProvider(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		want     Provider
		wantErr  bool
	}{
		{name: "valid openai", provider: "openai", want: ProviderOpenAI},
		{name: "valid ollama", provider: "ollama", want: ProviderOllama},
		{name: "valid anthropic", provider: "anthropic", want: ProviderAnthropic},
		{name: "valid gemini", provider: "gemini", want: ProviderGemini},
		{name: "invalid provider", provider: "invalid", wantErr: true},
		{name: "empty provider", provider: "", wantErr: true},
		{name: "case sensitive - OPENAI fails", provider: "OPENAI", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateProvider(tt.provider)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateProvider(%q) error = %v, wantErr %v", tt.provider, err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("ValidateProvider(%q) = %v, want %v", tt.provider, got, tt.want)
			}
		})
	}
}

func TestDefaultModelForProvider(t *testing.T) {
	tests := []struct {
		provider string
		want     string
	}{
		{provider: "openai", want: "gpt-5-mini"},
		{provider: "ollama", want: "llama3.2"},
		{provider: "anthropic", want: "claude-sonnet-4-5"},
		{provider: "gemini", want: "gemini-2.5-flash"},
		{provider: "unknown", want: ""},
		{provider: "", want: ""},
	}

	for _, tt := range tests {
		if got := DefaultModelForProvider(tt.provider); got != tt.want {
			t.Errorf("DefaultModelForProvider(%q) = %q, want %q", tt.provider, got, tt.want)
		}
	}
}

func TestInferProviderFromModel(t *testing.T) {
	tests := []struct {
		model  string
		want   Provider
		wantOk bool
	}{
		{"gpt-5-mini", ProviderOpenAI, true},
		{"o4-mini", ProviderOpenAI, true},
		{"claude-opus-4-5", ProviderAnthropic, true},
		{"gemini-2.0-flash", ProviderGemini, true},
		{"llama3.2", ProviderOllama, true},
		{"mystery", "", false},
	}
	for _, tt := range tests {
		got, ok := InferProviderFromModel(tt.model)
		if got != tt.want || ok != tt.wantOk {
			t.Errorf("InferProviderFromModel(%q) = %q, %v; want %q, %v", tt.model, got, ok, tt.want, tt.wantOk)
		}
	}
}

func TestNewChatModel_Validation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "openai requires API key",
			cfg:     Config{Provider: ProviderOpenAI, Model: "gpt-4"},
			wantErr: "OpenAI API key is required",
		},
		{
			name:    "anthropic requires API key",
			cfg:     Config{Provider: ProviderAnthropic, Model: "claude-3"},
			wantErr: "anthropic API key is required",
		},
		{
			name:    "gemini requires API key",
			cfg:     Config{Provider: ProviderGemini, Model: "gemini-pro"},
			wantErr: "gemini API key is required",
		},
		{
			name:    "unsupported provider",
			cfg:     Config{Provider: "unknown", Model: "model", APIKey: "key"},
			wantErr: "unsupported LLM provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewChatModel(ctx, tt.cfg)
			if err == nil {
				t.Errorf("NewChatModel() expected error containing %q, got nil", tt.wantErr)
				return
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("NewChatModel() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestProviderRequiresAPIKey(t *testing.T) {
	if ProviderOllama.RequiresAPIKey() {
		t.Error("ollama should not require an API key")
	}
	if !ProviderOpenAI.RequiresAPIKey() {
		t.Error("openai should require an API key")
	}
}
