package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/josephgoksu/taskfleet/internal/llm"
)

// NameOllama is the registry name of the local inference adapter.
const NameOllama = "ollama"

// Ollama runs items against a local Ollama runtime. Execution shares the chat
// adapter; validation asks the runtime whether the model is pulled.
type Ollama struct {
	*Chat
	httpClient *http.Client
}

// NewOllama returns the local inference adapter.
func NewOllama(opts Options) *Ollama {
	opts.LLM.Provider = llm.ProviderOllama
	if opts.LLM.BaseURL == "" {
		opts.LLM.BaseURL = llm.DefaultOllamaURL
	}
	if opts.LLM.Model == "" {
		opts.LLM.Model = llm.DefaultModelForProvider(string(llm.ProviderOllama))
	}
	chat := NewChat(opts)
	chat.name = NameOllama
	return &Ollama{
		Chat:       chat,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

type tagsResponse struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

// Validate checks that the runtime answers and has the configured model.
func (o *Ollama) Validate(ctx context.Context) error {
	url := strings.TrimRight(o.cfg.BaseURL, "/") + "/api/tags"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama not reachable at %s: %w", o.cfg.BaseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned %s", resp.Status)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("decode ollama tags: %w", err)
	}
	for _, m := range tags.Models {
		for _, name := range []string{m.Name, m.Model} {
			if name == o.cfg.Model || strings.TrimSuffix(name, ":latest") == o.cfg.Model {
				return nil
			}
		}
	}
	return fmt.Errorf("model %q is not available in ollama (try: ollama pull %s)", o.cfg.Model, o.cfg.Model)
}
