// Package gateway is the single place where the harness invokes the
// external probe CLI. Every live check goes through it, so timeout, process
// cleanup and pacing policy live here and nowhere else.
package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	units "github.com/docker/go-units"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds a single CLI invocation.
	DefaultTimeout = 30 * time.Second

	// DefaultGracePeriod is how long a timed-out process gets between
	// SIGTERM and SIGKILL.
	DefaultGracePeriod = 2 * time.Second
)

// Request describes one probe run.
type Request struct {
	ProbePath string
	DryRun    bool
	JSON      bool
	Limit     int
	Env       map[string]string

	// Timeout overrides the gateway default when positive.
	Timeout time.Duration
}

// Args returns the CLI arguments for the request.
func (r Request) Args() []string {
	args := []string{"run", "-f", r.ProbePath}
	if r.DryRun {
		args = append(args, "--dry_run")
	}
	if r.JSON {
		args = append(args, "-o", "json")
	}
	if r.Limit > 0 {
		args = append(args, "--limit", strconv.Itoa(r.Limit))
	}
	return args
}

// Invocation is a raw CLI call.
type Invocation struct {
	Args    []string
	Env     map[string]string
	Timeout time.Duration
}

// Result is everything captured from one invocation. It belongs to the
// caller that made the invocation and is never shared between checks.
type Result struct {
	Args     []string
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Elapsed  time.Duration
	TimedOut bool

	// Err is set when the process could not be started, was cancelled,
	// or timed out. A non-zero exit alone leaves Err nil.
	Err error
}

// OK reports whether the process ran to completion with exit code 0.
func (r *Result) OK() bool {
	return r.Err == nil && !r.TimedOut && r.ExitCode == 0
}

// Reason describes why the invocation did not succeed.
func (r *Result) Reason() string {
	switch {
	case r.TimedOut:
		return "execution timeout"
	case r.Err != nil:
		return r.Err.Error()
	case r.ExitCode != 0:
		stderr := strings.TrimSpace(string(r.Stderr))
		if stderr == "" {
			return fmt.Sprintf("exit status %d", r.ExitCode)
		}
		return fmt.Sprintf("exit status %d: %s", r.ExitCode, stderr)
	}
	return ""
}

// Gateway runs the probe CLI as a subprocess.
type Gateway struct {
	cli     string
	timeout time.Duration
	grace   time.Duration
	limiter *rate.Limiter
}

// Option is a functional option for configuring a Gateway.
type Option func(*Gateway) error

// WithTimeout sets the hard wall-clock limit per invocation.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %v", d)
		}
		g.timeout = d
		return nil
	}
}

// WithGracePeriod sets the delay between SIGTERM and SIGKILL on timeout.
func WithGracePeriod(d time.Duration) Option {
	return func(g *Gateway) error {
		if d < 0 {
			return fmt.Errorf("grace period must not be negative, got %v", d)
		}
		g.grace = d
		return nil
	}
}

// WithPace enforces a minimum interval between invocation starts.
// Zero disables pacing.
func WithPace(interval time.Duration) Option {
	return func(g *Gateway) error {
		if interval < 0 {
			return fmt.Errorf("pace must not be negative, got %v", interval)
		}
		if interval == 0 {
			g.limiter = nil
			return nil
		}
		g.limiter = rate.NewLimiter(rate.Every(interval), 1)
		return nil
	}
}

// New creates a Gateway for the named CLI binary.
func New(cli string, opts ...Option) (*Gateway, error) {
	if cli == "" {
		return nil, fmt.Errorf("gateway: cli must not be empty")
	}

	g := &Gateway{
		cli:     cli,
		timeout: DefaultTimeout,
		grace:   DefaultGracePeriod,
	}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, fmt.Errorf("gateway: %w", err)
		}
	}
	return g, nil
}

// CLI returns the configured binary name.
func (g *Gateway) CLI() string {
	return g.cli
}

// LookPath resolves the CLI binary in PATH.
func (g *Gateway) LookPath() (string, error) {
	return exec.LookPath(g.cli)
}

// Run executes a probe run request.
func (g *Gateway) Run(ctx context.Context, req Request) *Result {
	return g.Exec(ctx, Invocation{Args: req.Args(), Env: req.Env, Timeout: req.Timeout})
}

// Exec runs the CLI with the given arguments. It never blocks longer than
// the configured timeout plus grace period; a timed-out process is sent
// SIGTERM, then killed and reaped.
func (g *Gateway) Exec(ctx context.Context, inv Invocation) *Result {
	res := &Result{Args: inv.Args, ExitCode: -1}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			res.Err = fmt.Errorf("wait for invocation slot: %w", err)
			return res
		}
	}

	timeout := g.timeout
	if inv.Timeout > 0 {
		timeout = inv.Timeout
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(timeoutCtx, g.cli, inv.Args...)
	cmd.Env = buildEnv(inv.Env)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = g.grace

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res.Elapsed = time.Since(start)
	res.Stdout = stdout.Bytes()
	res.Stderr = stderr.Bytes()

	switch {
	case err == nil:
		res.ExitCode = 0
	case ctx.Err() != nil:
		res.Err = fmt.Errorf("invocation cancelled: %w", ctx.Err())
	case errors.Is(timeoutCtx.Err(), context.DeadlineExceeded):
		res.TimedOut = true
		res.Err = fmt.Errorf("execution timeout after %s", timeout)
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.Err = fmt.Errorf("run %s: %w", g.cli, err)
		}
	}

	slog.Debug("cli invocation",
		"cli", g.cli,
		"args", strings.Join(inv.Args, " "),
		"exit_code", res.ExitCode,
		"timed_out", res.TimedOut,
		"duration_ms", res.Elapsed.Milliseconds(),
		"stdout", units.HumanSize(float64(len(res.Stdout))),
		"stderr", units.HumanSize(float64(len(res.Stderr))),
	)

	return res
}

// buildEnv returns the process environment with overrides appended. Later
// entries win, so overrides replace inherited values.
func buildEnv(overrides map[string]string) []string {
	env := os.Environ()
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		if k == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+overrides[k])
	}
	return env
}
