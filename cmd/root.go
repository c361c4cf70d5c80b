package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/josephgoksu/taskfleet/internal/config"
	"github.com/josephgoksu/taskfleet/internal/logger"
)

// version is the application version.
var version = "0.3.0"

var (
	// cfgFile is the path to the configuration file.
	cfgFile string
	// verbose enables verbose output.
	verbose bool

	// appCfg is loaded by the root pre-run hook for every subcommand.
	appCfg *config.AppConfig
	// crash receives command context for crash logs. main installs it.
	crash     *logger.Crash
	logCloser io.Closer
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "taskfleet",
	Short: "Run a planned task list across AI coding engines in parallel",
	Long: `taskfleet takes a tracking document (or a YAML/TOML/JSON manifest) of
dependent work items and fans them out to AI coding engines.

Work either in-process (run) with a parallel, batch or dependency-ordered
strategy, or as detached terminal workers (launch) that you watch with the
dashboard and fold back into the tracking document with aggregate.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// flagBinding ties a command flag to a config key. Bindings are applied to a
// fresh viper instance on every execution.
type flagBinding struct {
	cmd  *cobra.Command
	flag string
	key  string
}

var bindings []flagBinding

func bindFlag(cmd *cobra.Command, flag, key string) {
	bindings = append(bindings, flagBinding{cmd: cmd, flag: flag, key: key})
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if logCloser != nil {
		_ = logCloser.Close()
		logCloser = nil
	}
	return reportExit(err)
}

// SetCrash installs the crash recorder main defers on.
func SetCrash(c *logger.Crash) { crash = c }

// GetVersion returns the application version.
func GetVersion() string { return version }

func init() {
	rootCmd.PersistentPreRunE = loadConfig
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./.taskfleet.yaml or $HOME/.taskfleet.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().String("workspace", "", "artifact directory for tasks, logs and results (default .taskfleet)")
	rootCmd.PersistentFlags().String("tasks", "", "tracking document or manifest (default TASKS.md)")

	bindFlag(rootCmd, "verbose", "verbose")
	bindFlag(rootCmd, "workspace", "workspace")
	bindFlag(rootCmd, "tasks", "tasks")
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	v := config.New()
	if err := bindFlags(v, cmd); err != nil {
		return &ExitError{Code: ExitFatal, Err: err}
	}
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return &ExitError{Code: ExitFatal, Err: err}
	}
	if abs, err := filepath.Abs(cfg.Workspace); err == nil {
		cfg.Workspace = abs
	}
	if !filepath.IsAbs(cfg.Report.Path) {
		if abs, err := filepath.Abs(cfg.Report.Path); err == nil {
			cfg.Report.Path = abs
		}
	}
	appCfg = cfg
	verbose = cfg.Verbose

	if logCloser != nil {
		_ = logCloser.Close()
	}
	closer, err := logger.Setup(cfg.LogPath(), cfg.Verbose)
	if err != nil {
		slog.SetDefault(slog.New(logger.NewHandler(io.Discard, false)))
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
	} else {
		logCloser = closer
	}
	if crash != nil {
		crash.SetDir(cfg.CrashDir())
		crash.SetCommand(cmd.CommandPath())
	}
	slog.Debug("command start", "command", cmd.CommandPath(), "workspace", cfg.Workspace, "tasks", cfg.Tasks)
	return nil
}

func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for _, b := range bindings {
		var f *pflag.Flag
		switch b.cmd {
		case rootCmd:
			f = rootCmd.PersistentFlags().Lookup(b.flag)
		case cmd:
			f = cmd.Flags().Lookup(b.flag)
		default:
			continue
		}
		if f == nil {
			continue
		}
		if err := v.BindPFlag(b.key, f); err != nil {
			return fmt.Errorf("bind --%s: %w", b.flag, err)
		}
	}
	return nil
}
