// Package legendary wraps invocation of the external legendary CLI: one-shot
// subcommands with captured output, and long-running processes whose output
// is streamed line by line.
package legendary

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tinoosan/gamedock/internal/metrics"
)

const (
	DefaultBinary  = "legendary"
	DefaultTimeout = 60 * time.Second
)

// CommandFunc builds the exec.Cmd for an invocation. Tests swap it to run a fake CLI.
type CommandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

type Client struct {
	bin     string
	env     []string
	timeout time.Duration
	command CommandFunc
	log     *slog.Logger
}

// NewClient creates a client for the given binary. A zero timeout selects
// DefaultTimeout for one-shot commands; streamed processes are never timed out.
func NewClient(bin string, timeout time.Duration) *Client {
	if strings.TrimSpace(bin) == "" {
		bin = DefaultBinary
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{bin: bin, timeout: timeout, command: exec.CommandContext, log: slog.Default()}
}

func (c *Client) Binary() string { return c.bin }

// SetCommandFunc replaces how commands are built.
func (c *Client) SetCommandFunc(f CommandFunc) {
	if f != nil {
		c.command = f
	}
}

// SetEnv adds KEY=VALUE pairs to every invocation's environment.
func (c *Client) SetEnv(env ...string) { c.env = append(c.env, env...) }

// SetLogger allows wiring a shared application logger into the client.
func (c *Client) SetLogger(l *slog.Logger) {
	if l != nil {
		c.log = l
	}
}

// Result is the captured outcome of a one-shot command.
type Result struct {
	Stdout   []byte
	Stderr   string
	ExitCode int
}

// ExitError is returned by Run when the CLI exits with a non-zero status.
type ExitError struct {
	Args     []string
	ExitCode int
	// Message is the last error line the CLI printed, if any.
	Message string
}

func (e *ExitError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("legendary %s: exit %d: %s", subcommand(e.Args), e.ExitCode, e.Message)
	}
	return fmt.Sprintf("legendary %s: exit %d", subcommand(e.Args), e.ExitCode)
}

// Run executes a one-shot subcommand and waits for it. A non-zero exit is
// reported as *ExitError alongside the captured result.
func (c *Client) Run(ctx context.Context, args ...string) (*Result, error) {
	sub := subcommand(args)
	timer := prometheus.NewTimer(metrics.BackendExecLatency.WithLabelValues(sub))
	defer timer.ObserveDuration()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := c.build(ctx, args)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := &Result{Stdout: stdout.Bytes(), Stderr: stderr.String(), ExitCode: exitCode(cmd, err)}
	if err != nil {
		metrics.BackendExecErrors.WithLabelValues(sub).Inc()
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			c.log.Debug("legendary exited non-zero", "subcommand", sub, "exit", res.ExitCode)
			return res, &ExitError{Args: args, ExitCode: res.ExitCode, Message: LastError(res.Stderr)}
		}
		return res, fmt.Errorf("legendary %s: %w", sub, err)
	}
	return res, nil
}

// LastError returns the text of the last "ERROR:" line in output, or "".
func LastError(output string) string {
	lines := strings.Split(output, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if msg, ok := ErrorMessage(lines[i]); ok {
			return msg
		}
	}
	return ""
}

// ErrorMessage extracts the message of a legendary log line at ERROR level.
func ErrorMessage(line string) (string, bool) {
	_, msg, ok := strings.Cut(line, "ERROR:")
	if !ok {
		return "", false
	}
	return strings.TrimSpace(msg), true
}

// build creates the command for args. Environment set by the CommandFunc is
// kept and extended with the client's own variables.
func (c *Client) build(ctx context.Context, args []string) *exec.Cmd {
	cmd := c.command(ctx, c.bin, args...)
	env := cmd.Env
	if env == nil {
		env = os.Environ()
	}
	cmd.Env = append(env, c.env...)
	return cmd
}

func subcommand(args []string) string {
	for _, a := range args {
		if !strings.HasPrefix(a, "-") {
			return a
		}
	}
	return "none"
}

func exitCode(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if err != nil {
		return -1
	}
	return 0
}
