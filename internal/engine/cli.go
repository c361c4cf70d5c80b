package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/josephgoksu/taskfleet/internal/task"
)

// NameCLI is the registry name of the CLI tool adapter.
const NameCLI = "claude-cli"

// maxOutput bounds the output kept on a result.
const maxOutput = 64 * 1024

// CLI runs an interactive LLM command-line tool non-interactively, feeding the
// prompt on stdin from a temporary file.
type CLI struct {
	binary  string
	args    []string
	timeout time.Duration
	dir     string // working directory for the tool
	tmpDir  string // where prompt files are created ("" = os.TempDir)

	lookPath func(string) (string, error)
}

// NewCLI returns the CLI adapter.
func NewCLI(opts Options) *CLI {
	binary := opts.Binary
	if binary == "" {
		binary = "claude"
	}
	return &CLI{
		binary:   binary,
		args:     opts.Args,
		timeout:  opts.Timeout,
		dir:      opts.WorkDir,
		tmpDir:   opts.TempDir,
		lookPath: exec.LookPath,
	}
}

func (c *CLI) Name() string { return NameCLI }

// Validate checks that the binary is on PATH.
func (c *CLI) Validate(ctx context.Context) error {
	if _, err := c.lookPath(c.binary); err != nil {
		return fmt.Errorf("%s: %w", c.binary, err)
	}
	return nil
}

func (c *CLI) Execute(ctx context.Context, item task.WorkItem) task.TaskResult {
	return guard(ctx, NameCLI, item, func(ctx context.Context) (task.TaskResult, error) {
		return c.run(ctx, item)
	})
}

func (c *CLI) run(ctx context.Context, item task.WorkItem) (task.TaskResult, error) {
	prompt, err := BuildPrompt(item, "")
	if err != nil {
		return task.TaskResult{}, err
	}

	f, err := os.CreateTemp(c.tmpDir, "taskfleet-prompt-*.txt")
	if err != nil {
		return task.TaskResult{}, fmt.Errorf("create prompt file: %w", err)
	}
	promptPath := f.Name()
	defer func() { _ = os.Remove(promptPath) }()

	if _, err := f.WriteString(prompt); err != nil {
		_ = f.Close()
		return task.TaskResult{}, fmt.Errorf("write prompt file: %w", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		_ = f.Close()
		return task.TaskResult{}, fmt.Errorf("rewind prompt file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.binary, c.args...)
	cmd.Dir = c.dir
	cmd.Stdin = f
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	// Grandchildren holding the pipe open must not outlive the timeout by much.
	cmd.WaitDelay = 2 * time.Second

	runErr := cmd.Run()
	output := tail(out.String(), maxOutput)
	res := task.TaskResult{Output: output}

	switch {
	case runErr == nil:
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return res, fmt.Errorf("%s timed out after %s", c.binary, c.timeout)
	default:
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return res, fmt.Errorf("%s exited with status %d: %s", c.binary, exitErr.ExitCode(), lastLine(output))
		}
		return res, fmt.Errorf("run %s: %w", c.binary, runErr)
	}

	if strings.TrimSpace(output) == "" {
		return res, fmt.Errorf("%s produced no output", c.binary)
	}
	applySelfReport(&res, output)
	return res, nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return tail(strings.TrimSpace(s), 500)
}
