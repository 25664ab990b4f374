// Package harness composes the locator, the validators and the execution
// gateway into the per-probe validation pipeline.
//
// Stages run cheapest first and stop at the first failure, so a probe that
// is missing or structurally incomplete never costs a backend call. Probes
// run sequentially; each gets an independent Report.
package harness

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jandubois/probecheck/internal/check"
	"github.com/jandubois/probecheck/internal/gateway"
	"github.com/jandubois/probecheck/internal/output"
	"github.com/jandubois/probecheck/internal/preflight"
	"github.com/jandubois/probecheck/internal/probe"
	"github.com/jandubois/probecheck/internal/requirements"
	"github.com/jandubois/probecheck/internal/telemetry"
)

// Row limits for the live stages.
const (
	schemaLimit      = 1
	performanceLimit = 10
	semanticsLimit   = 1
)

// Gateway runs a probe through the external CLI.
type Gateway interface {
	Run(ctx context.Context, req gateway.Request) *gateway.Result
}

// Recorder persists run progress. Recorder errors are logged and never
// change a verdict.
type Recorder interface {
	StartRun(ctx context.Context, s *Summary) error
	RecordReport(ctx context.Context, s *Summary, r *Report) error
	FinishRun(ctx context.Context, s *Summary) error
}

// Runner executes the pipeline. It can only be built from a passed
// preflight Session.
type Runner struct {
	session     *preflight.Session
	catalog     *requirements.Catalog
	locator     *probe.Locator
	gw          Gateway
	maxDuration time.Duration
	timeout     time.Duration
	recorder    Recorder
}

// Option is a functional option for configuring a Runner.
type Option func(*Runner) error

// WithMaxDuration overrides every requirement's performance budget.
func WithMaxDuration(d time.Duration) Option {
	return func(r *Runner) error {
		if d < 0 {
			return fmt.Errorf("max duration must not be negative, got %v", d)
		}
		r.maxDuration = d
		return nil
	}
}

// WithTimeout overrides every requirement's invocation timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) error {
		if d < 0 {
			return fmt.Errorf("timeout must not be negative, got %v", d)
		}
		r.timeout = d
		return nil
	}
}

// WithRecorder stores runs and reports as they complete.
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) error {
		r.recorder = rec
		return nil
	}
}

// NewRunner creates a Runner.
func NewRunner(session *preflight.Session, catalog *requirements.Catalog, locator *probe.Locator, gw Gateway, opts ...Option) (*Runner, error) {
	if session == nil {
		return nil, fmt.Errorf("harness: preflight session is required")
	}
	if catalog == nil || locator == nil || gw == nil {
		return nil, fmt.Errorf("harness: catalog, locator and gateway are required")
	}

	r := &Runner{
		session: session,
		catalog: catalog,
		locator: locator,
		gw:      gw,
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, fmt.Errorf("harness: %w", err)
		}
	}
	return r, nil
}

// Discover returns the catalog probes that have a script in the probes
// directory. Scripts without a requirement entry are logged and skipped.
func (r *Runner) Discover() ([]string, error) {
	found, err := r.locator.Discover()
	if err != nil {
		return nil, err
	}

	var names []string
	for _, name := range found {
		if _, ok := r.catalog.Get(name); ok {
			names = append(names, name)
			continue
		}
		if name, ok := r.byScript(name); ok {
			names = append(names, name)
			continue
		}
		slog.Warn("probe script has no requirements, skipping", "script", name, "dir", r.locator.Dir())
	}
	return names, nil
}

func (r *Runner) byScript(script string) (string, bool) {
	for _, req := range r.catalog.All() {
		if strings.TrimSuffix(req.ScriptName(), probe.Extension) == script {
			return req.Name, true
		}
	}
	return "", false
}

// Run checks the named probes in order. Unknown names are rejected before
// any probe is checked. The returned error is only non-nil for such setup
// problems; probe failures are in the Summary.
func (r *Runner) Run(ctx context.Context, names []string) (*Summary, error) {
	reqs := make([]requirements.Requirement, 0, len(names))
	for _, name := range names {
		req, ok := r.catalog.Get(name)
		if !ok {
			return nil, fmt.Errorf("no requirements for probe %q", name)
		}
		reqs = append(reqs, req)
	}

	ctx, span := telemetry.StartSpan(ctx, "harness.run", attribute.Int("probes", len(reqs)))
	defer span.End()

	s := &Summary{
		ID:      uuid.NewString(),
		CLIPath: r.session.CLIPath,
		Started: time.Now(),
	}
	if r.recorder != nil {
		if err := r.recorder.StartRun(ctx, s); err != nil {
			slog.Error("failed to record run start", "run", s.ID, "error", err)
		}
	}

	for _, req := range reqs {
		report := r.checkProbe(ctx, req)
		s.Reports = append(s.Reports, report)
		if r.recorder != nil {
			if err := r.recorder.RecordReport(ctx, s, report); err != nil {
				slog.Error("failed to record report", "run", s.ID, "probe", report.Probe, "error", err)
			}
		}
	}
	s.Finished = time.Now()

	if r.recorder != nil {
		if err := r.recorder.FinishRun(ctx, s); err != nil {
			slog.Error("failed to record run finish", "run", s.ID, "error", err)
		}
	}

	span.SetAttributes(attribute.Bool("pass", s.Passed()), attribute.Int("failed", s.Failed()))
	if !s.Passed() {
		span.SetStatus(codes.Error, ErrChecksFailed.Error())
	}
	slog.Info("run complete", "run", s.ID, "probes", len(s.Reports), "failed", s.Failed(),
		"duration_ms", s.Finished.Sub(s.Started).Milliseconds())
	return s, nil
}

// stageFunc runs one stage. It is only called once every earlier stage
// passed.
type stageFunc func(ctx context.Context, pc *probeCheck) check.Outcome

// probeCheck is the state threaded through one probe's stages.
type probeCheck struct {
	req     requirements.Requirement
	probe   *probe.Probe
	path    string
	env     map[string]string
	budget  time.Duration
	timeout time.Duration
}

type pipelineStage struct {
	stage check.Stage
	run   stageFunc
}

func (r *Runner) pipeline() []pipelineStage {
	return []pipelineStage{
		{check.StageExists, r.checkExists},
		{check.StageStructure, r.checkStructure},
		{check.StageSyntax, r.checkSyntax},
		{check.StageSchema, r.checkSchema},
		{check.StagePerformance, r.checkPerformance},
		{check.StageSemantics, r.checkSemantics},
	}
}

func (r *Runner) checkProbe(ctx context.Context, req requirements.Requirement) *Report {
	ctx, span := telemetry.StartSpan(ctx, "probe.check", attribute.String("probe", req.Name))
	defer span.End()

	budget := req.MaxDuration
	if r.maxDuration > 0 {
		budget = r.maxDuration
	}
	timeout := req.Timeout
	if r.timeout > 0 {
		timeout = r.timeout
	}
	pc := &probeCheck{
		req:     req,
		env:     r.session.EnvFor(req.Env),
		budget:  budget,
		timeout: timeout,
	}

	report := newReport(req.Name)
	for _, st := range r.pipeline() {
		o := r.runStage(ctx, st.stage, st.run, pc)
		report.Path = pc.path
		if !report.record(o) {
			break
		}
	}
	if report.State != StateDone {
		report.finish(true)
	}

	span.SetAttributes(attribute.Bool("pass", report.Pass))
	if f := report.Failure(); f != nil {
		span.SetAttributes(attribute.String("failure_kind", string(f.Kind)))
		span.SetStatus(codes.Error, f.Reason)
		slog.Warn("probe failed", "probe", req.Name, "stage", f.Stage, "kind", f.Kind, "reason", f.Reason)
	} else {
		slog.Info("probe passed", "probe", req.Name, "duration_ms", report.Duration().Milliseconds())
	}
	return report
}

func (r *Runner) runStage(ctx context.Context, stage check.Stage, run stageFunc, pc *probeCheck) check.Outcome {
	ctx, span := telemetry.StartSpan(ctx, "stage."+string(stage),
		attribute.String("probe", pc.req.Name),
		attribute.String("stage", string(stage)),
		attribute.Bool("live", stage.Live()),
	)
	defer span.End()

	o := run(ctx, pc)
	o.Stage = stage
	recordOutcome(span, o)
	slog.Debug("stage checked", "probe", pc.req.Name, "stage", stage, "pass", o.Pass,
		"elapsed_ms", o.Elapsed.Milliseconds())
	return o
}

func recordOutcome(span trace.Span, o check.Outcome) {
	span.SetAttributes(attribute.Bool("pass", o.Pass))
	if o.Pass {
		return
	}
	span.SetAttributes(attribute.String("failure_kind", string(o.Kind)))
	span.SetStatus(codes.Error, o.Reason)
}

func (r *Runner) checkExists(_ context.Context, pc *probeCheck) check.Outcome {
	p, loc := r.locator.Open(pc.req.ScriptName())
	pc.path = loc.Path
	if !loc.Exists {
		return check.Failed(check.StageExists, check.KindNotFound,
			fmt.Sprintf("probe not found at %s", loc.Path))
	}
	pc.probe = p
	return check.Passed(check.StageExists)
}

func (r *Runner) checkStructure(_ context.Context, pc *probeCheck) check.Outcome {
	src, err := pc.probe.Source()
	if err != nil {
		return check.Failed(check.StageStructure, check.KindNotFound, err.Error())
	}
	return check.Structure(src, pc.req.Markers)
}

func (r *Runner) request(pc *probeCheck) gateway.Request {
	return gateway.Request{
		ProbePath: pc.path,
		Env:       pc.env,
		Timeout:   pc.timeout,
	}
}

func (r *Runner) checkSyntax(ctx context.Context, pc *probeCheck) check.Outcome {
	req := r.request(pc)
	req.DryRun = true
	res := r.gw.Run(ctx, req)
	if !res.OK() {
		return executionFailed(check.StageSyntax, "syntax check failed", res)
	}
	return check.Passed(check.StageSyntax).WithElapsed(res.Elapsed)
}

// runJSON executes the probe with JSON output and decodes the result.
func (r *Runner) runJSON(ctx context.Context, stage check.Stage, pc *probeCheck, limit int) (*output.Result, *gateway.Result, *check.Outcome) {
	req := r.request(pc)
	req.JSON = true
	req.Limit = limit
	res := r.gw.Run(ctx, req)
	if !res.OK() {
		o := executionFailed(stage, "execution failed", res)
		return nil, res, &o
	}

	parsed, err := output.Parse(res.Stdout)
	if err != nil {
		o := check.Failed(stage, check.KindDecodeFailed, err.Error()).WithElapsed(res.Elapsed)
		return nil, res, &o
	}
	return parsed, res, nil
}

func (r *Runner) checkSchema(ctx context.Context, pc *probeCheck) check.Outcome {
	parsed, res, failed := r.runJSON(ctx, check.StageSchema, pc, schemaLimit)
	if failed != nil {
		return *failed
	}
	return check.Schema(pc.req.Columns, parsed.Columns).WithElapsed(res.Elapsed)
}

func (r *Runner) checkPerformance(ctx context.Context, pc *probeCheck) check.Outcome {
	req := r.request(pc)
	req.JSON = true
	req.Limit = performanceLimit
	res := r.gw.Run(ctx, req)
	if !res.OK() {
		return executionFailed(check.StagePerformance, "execution failed", res)
	}
	return check.Performance(res.Elapsed, pc.budget).WithElapsed(res.Elapsed)
}

func (r *Runner) checkSemantics(ctx context.Context, pc *probeCheck) check.Outcome {
	parsed, res, failed := r.runJSON(ctx, check.StageSemantics, pc, semanticsLimit)
	if failed != nil {
		return *failed
	}
	return check.Semantics(pc.req.Flags, parsed.Flags).WithElapsed(res.Elapsed)
}

func executionFailed(stage check.Stage, prefix string, res *gateway.Result) check.Outcome {
	return check.Failed(stage, check.KindExecutionFailed, prefix+": "+res.Reason()).WithElapsed(res.Elapsed)
}
