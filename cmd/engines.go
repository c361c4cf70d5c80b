package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/taskfleet/internal/config"
	"github.com/josephgoksu/taskfleet/internal/engine"
	"github.com/josephgoksu/taskfleet/internal/llm"
	"github.com/josephgoksu/taskfleet/internal/ui"
)

// engineCheckTimeout bounds each Validate call of `engines --check`.
const engineCheckTimeout = 10 * time.Second

// registry is the engine registry used by run and engines. Tests replace it.
var registry = engine.NewRegistry()

var enginesCmd = &cobra.Command{
	Use:   "engines",
	Short: "List the available engines",
	Long: `Lists the registered engine adapters and marks the configured one.
With --check each adapter's Validate is run: binary on PATH for claude-cli,
API key present for chat, model pulled for ollama.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		check, _ := cmd.Flags().GetBool("check")
		out := cmd.OutOrStdout()
		cfg := appCfg

		table := &ui.Table{Headers: []string{"", "Engine", "Status"}, Plain: !ui.IsInteractive()}
		configuredFailed := false
		for _, name := range registry.Names() {
			marker := ""
			if name == cfg.Engine.Name {
				marker = "*"
			}
			status := "-"
			if check {
				status = "✅ ready"
				if err := checkEngine(cmd.Context(), cfg, name); err != nil {
					status = "❌ " + err.Error()
					if name == cfg.Engine.Name {
						configuredFailed = true
					}
				}
			}
			table.Rows = append(table.Rows, []string{marker, name, status})
		}
		fmt.Fprint(out, table.Render())
		fmt.Fprintf(out, "\n* configured engine (engine.name)\n")
		if configuredFailed {
			return itemsFailed
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(enginesCmd)
	enginesCmd.Flags().Bool("check", false, "run each engine's readiness check")
}

func checkEngine(ctx context.Context, cfg *config.AppConfig, name string) error {
	opts, err := engineOptions(cfg, name)
	if err != nil {
		return err
	}
	eng, err := registry.New(name, opts)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, engineCheckTimeout)
	defer cancel()
	return eng.Validate(ctx)
}

// engineOptions maps configuration onto adapter options for engine name.
func engineOptions(cfg *config.AppConfig, name string) (engine.Options, error) {
	opts := engine.Options{
		Binary:  cfg.Engine.Binary,
		Args:    cfg.Engine.Args,
		Timeout: cfg.Engine.Timeout,
		WorkDir: workDir(),
		System:  cfg.LLM.System,
	}
	if name == engine.NameCLI {
		return opts, nil
	}

	llmCfg, err := cfg.LLMClientConfig()
	if err != nil {
		return opts, err
	}
	if name == engine.NameOllama && llmCfg.Provider != llm.ProviderOllama {
		// The hosted provider's model and endpoint mean nothing to a local runtime.
		llmCfg = llm.Config{Provider: llm.ProviderOllama, MaxTokens: llmCfg.MaxTokens}
	}
	opts.LLM = llmCfg
	return opts, nil
}
