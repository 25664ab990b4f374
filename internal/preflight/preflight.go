// Package preflight verifies, once per harness invocation, that live checks
// can mean anything: the CLI is installed and at least one execution agent
// is connected to the backend.
package preflight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jandubois/probecheck/internal/check"
	"github.com/jandubois/probecheck/internal/gateway"
	"github.com/jandubois/probecheck/internal/output"
)

// noAgentsMarker is what the CLI prints when no agent is registered.
const noAgentsMarker = "No viziers"

// healthyStatus is the status of an agent that can run scripts.
const healthyStatus = "CS_HEALTHY"

var (
	// ErrCLINotFound means the CLI binary is not resolvable.
	ErrCLINotFound = errors.New("probe CLI not found")

	// ErrNoAgents means the backend reports no connected execution agent.
	ErrNoAgents = errors.New("not connected to a live backend")
)

// Commander is the part of the gateway preflight needs.
type Commander interface {
	CLI() string
	LookPath() (string, error)
	Exec(ctx context.Context, inv gateway.Invocation) *gateway.Result
}

// Session is the verified live environment handed to the runner. Validators
// never read process state; everything ambient arrives through a Session.
type Session struct {
	CLIPath   string
	Agents    int
	Env       map[string]string
	CheckedAt time.Time
}

// EnvFor merges per-probe defaults with the session's configured overrides.
// Configured values win.
func (s *Session) EnvFor(defaults map[string]string) map[string]string {
	env := make(map[string]string, len(defaults)+len(s.Env))
	for k, v := range defaults {
		env[k] = v
	}
	for k, v := range s.Env {
		env[k] = v
	}
	return env
}

// Run performs both gates. Any failure is a *check.Error of kind
// KindPreflightFailed wrapping ErrCLINotFound or ErrNoAgents.
func Run(ctx context.Context, cmd Commander, env map[string]string) (*Session, error) {
	path, err := cmd.LookPath()
	if err != nil {
		return nil, &check.Error{
			Kind:   check.KindPreflightFailed,
			Reason: fmt.Sprintf("%s not found, please install it first", cmd.CLI()),
			Err:    fmt.Errorf("%w: %v", ErrCLINotFound, err),
		}
	}

	res := cmd.Exec(ctx, gateway.Invocation{
		Args: []string{"get", "viziers", "-o", "json"},
		Env:  env,
	})
	agents, err := countAgents(res)
	if err != nil {
		return nil, &check.Error{
			Kind:   check.KindPreflightFailed,
			Reason: "not connected to a live backend, please connect first",
			Err:    err,
		}
	}

	slog.Info("preflight passed", "cli", path, "agents", agents)

	copied := make(map[string]string, len(env))
	for k, v := range env {
		copied[k] = v
	}
	return &Session{
		CLIPath:   path,
		Agents:    agents,
		Env:       copied,
		CheckedAt: time.Now(),
	}, nil
}

func countAgents(res *gateway.Result) (int, error) {
	if !res.OK() {
		return 0, fmt.Errorf("%w: list agents: %s", ErrNoAgents, res.Reason())
	}
	if strings.Contains(string(res.Stdout), noAgentsMarker) {
		return 0, fmt.Errorf("%w: %s", ErrNoAgents, noAgentsMarker)
	}

	parsed, err := output.Parse(res.Stdout)
	if err != nil {
		return 0, fmt.Errorf("%w: list agents: %v", ErrNoAgents, err)
	}
	if len(parsed.Rows) == 0 {
		return 0, fmt.Errorf("%w: no execution agents registered", ErrNoAgents)
	}

	healthy := 0
	for _, row := range parsed.Rows {
		if reachable(row) {
			healthy++
		}
	}
	if healthy == 0 {
		return 0, fmt.Errorf("%w: none of %d registered agents is healthy", ErrNoAgents, len(parsed.Rows))
	}
	return healthy, nil
}

// reachable reports whether an agent record is usable. Records without a
// status field are taken at face value.
func reachable(row map[string]any) bool {
	for _, key := range []string{"Status", "status"} {
		if v, ok := row[key]; ok {
			status, _ := v.(string)
			return status == healthyStatus
		}
	}
	return true
}
