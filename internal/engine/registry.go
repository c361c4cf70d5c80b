package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/josephgoksu/taskfleet/internal/llm"
)

// Options carries everything the built-in adapters may need.
type Options struct {
	Binary  string
	Args    []string
	Timeout time.Duration
	WorkDir string
	TempDir string
	LLM     llm.Config
	System  string
}

// Factory builds an engine from options.
type Factory func(Options) (Engine, error)

// Registry maps engine names to factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns a registry with the built-in adapters.
func NewRegistry() *Registry {
	r := &Registry{factories: map[string]Factory{}}
	r.Register(NameCLI, func(o Options) (Engine, error) { return NewCLI(o), nil })
	r.Register(NameChat, func(o Options) (Engine, error) {
		if o.LLM.Provider == llm.ProviderOllama {
			return nil, fmt.Errorf("use the %q engine for local models", NameOllama)
		}
		return NewChat(o), nil
	})
	r.Register(NameOllama, func(o Options) (Engine, error) { return NewOllama(o), nil })
	return r
}

// Register adds or replaces a factory.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// New builds the named engine.
func (r *Registry) New(name string, opts Options) (Engine, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown engine %q (available: %v)", name, r.Names())
	}
	return f(opts)
}

// Names lists registered engines in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
