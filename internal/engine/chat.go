package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/josephgoksu/taskfleet/internal/llm"
	"github.com/josephgoksu/taskfleet/internal/task"
)

// NameChat is the registry name of the hosted chat API adapter.
const NameChat = "chat"

const defaultSystem = "You are an autonomous software engineer completing one task from a larger plan. " +
	"Reply with the work product and a short summary on the last line."

// ModelFactory builds a chat model. Tests swap it for a fake.
type ModelFactory func(ctx context.Context, cfg llm.Config) (model.BaseChatModel, error)

// Chat executes items through a hosted chat model (OpenAI, Anthropic, Gemini).
type Chat struct {
	name         string
	cfg          llm.Config
	system       string
	timeout      time.Duration
	modelFactory ModelFactory
}

// NewChat returns the hosted chat adapter.
func NewChat(opts Options) *Chat {
	system := opts.System
	if system == "" {
		system = defaultSystem
	}
	return &Chat{
		name:         NameChat,
		cfg:          opts.LLM,
		system:       system,
		timeout:      opts.Timeout,
		modelFactory: llm.NewChatModel,
	}
}

func (c *Chat) Name() string { return c.name }

// Validate checks the provider and that a key is present for hosted providers.
func (c *Chat) Validate(ctx context.Context) error {
	p, err := llm.ValidateProvider(string(c.cfg.Provider))
	if err != nil {
		return err
	}
	if p.RequiresAPIKey() && strings.TrimSpace(c.cfg.APIKey) == "" {
		return fmt.Errorf("no API key configured for %s", p)
	}
	return nil
}

func (c *Chat) Execute(ctx context.Context, item task.WorkItem) task.TaskResult {
	return guard(ctx, c.name, item, func(ctx context.Context) (task.TaskResult, error) {
		return c.generate(ctx, item)
	})
}

func (c *Chat) generate(ctx context.Context, item task.WorkItem) (task.TaskResult, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	prompt, err := BuildPrompt(item, "")
	if err != nil {
		return task.TaskResult{}, err
	}

	chatModel, err := c.modelFactory(ctx, c.cfg)
	if err != nil {
		return task.TaskResult{}, fmt.Errorf("create model: %w", err)
	}

	messages := []*schema.Message{
		schema.SystemMessage(c.system),
		schema.UserMessage(prompt),
	}

	resp, err := chatModel.Generate(ctx, messages)
	if err != nil {
		return task.TaskResult{}, fmt.Errorf("llm generate: %w", err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return task.TaskResult{}, fmt.Errorf("llm generate: empty response from %s/%s", c.cfg.Provider, c.cfg.Model)
	}

	res := task.TaskResult{Output: tail(resp.Content, maxOutput)}
	applySelfReport(&res, resp.Content)
	return res, nil
}
