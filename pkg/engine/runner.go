package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jfarrimo/frycook/pkg/errdefs"
	"github.com/jfarrimo/frycook/pkg/fileset"
	"github.com/jfarrimo/frycook/pkg/ops"
	"github.com/jfarrimo/frycook/pkg/session"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// RunOptions modifies how a run list is executed.
type RunOptions struct {
	// Targets are the caller's target tokens, recorded in the journal.
	Targets []string

	// Mode is the selection mode, recorded in the journal.
	Mode string

	// DryRun resolves and logs the run list without connecting to any host.
	DryRun bool

	// MessagesOnly queues every work item's messages without applying.
	MessagesOnly bool

	// UpdatePackages refreshes each host's package index before its run list.
	UpdatePackages bool

	// AbortOnError stops the whole run at the first failed host. By default
	// the run moves on to the next host.
	AbortOnError bool
}

// Runner executes run lists host by host, strictly in order.
type Runner struct {
	registry *Registry
	opts     Options
	dialer   session.Dialer
	journal  Journal
	observer Observer
	tracer   Tracer
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithJournal records runs in j.
func WithJournal(j Journal) RunnerOption {
	return func(r *Runner) { r.journal = j }
}

// WithObserver reports measurements to o.
func WithObserver(o Observer) RunnerOption {
	return func(r *Runner) { r.observer = o }
}

// WithTracer starts spans on t.
func WithTracer(t Tracer) RunnerOption {
	return func(r *Runner) { r.tracer = t }
}

// NewRunner creates a runner that builds recipes from registry with opts and
// opens host sessions through dialer.
func NewRunner(registry *Registry, opts Options, dialer session.Dialer, options ...RunnerOption) *Runner {
	r := &Runner{
		registry: registry,
		opts:     opts,
		dialer:   dialer,
		tracer:   otel.Tracer("frycook"),
	}
	for _, o := range options {
		o(r)
	}
	return r
}

// Run executes rl. Unknown recipes or cookbooks fail the run before any host
// is contacted. A failing host stops at its failing work item; the run
// continues with the next host unless AbortOnError is set. The returned error
// joins every host failure.
func (r *Runner) Run(ctx context.Context, rl *RunList, ro RunOptions) (*Run, *MessageQueue, error) {
	messages := NewMessageQueue()

	if err := r.registry.Validate(rl); err != nil {
		return nil, messages, err
	}

	run := &Run{
		ID:        uuid.New().String(),
		Mode:      ro.Mode,
		Targets:   append([]string(nil), ro.Targets...),
		Status:    RunStatusRunning,
		StartedAt: time.Now(),
	}
	logger := log.With().Str("run_id", run.ID).Logger()

	if ro.DryRun {
		for _, host := range rl.Hosts {
			for _, item := range rl.For(host) {
				logger.Info().Str("host", host).Str("item", item.String()).Msg("Would apply")
			}
		}
		run.Status = RunStatusSucceeded
		run.FinishedAt = time.Now()
		return run, messages, nil
	}

	if ro.MessagesOnly {
		lc := NewLifecycle(r.registry, r.opts, messages)
		for _, host := range rl.Hosts {
			rc := NewRunContext(host, nil, r.opts)
			for _, item := range rl.For(host) {
				if err := lc.QueueMessages(rc, item); err != nil {
					return nil, messages, err
				}
			}
		}
		run.Status = RunStatusSucceeded
		run.FinishedAt = time.Now()
		return run, messages, nil
	}

	ctx, span := r.tracer.Start(ctx, "run", trace.WithAttributes(
		attribute.String("run.id", run.ID),
		attribute.String("run.mode", run.Mode),
		attribute.Int("run.hosts", len(rl.Hosts)),
	))
	defer span.End()

	if r.journal != nil {
		if err := r.journal.StartRun(ctx, run); err != nil {
			logger.Warn().Err(err).Msg("Failed to record run start")
		}
	}
	logger.Info().Int("hosts", len(rl.Hosts)).Str("mode", run.Mode).Msg("Run started")

	var errs []error
	aborted := false
	for i, host := range rl.Hosts {
		hr := r.RunHost(ctx, run.ID, host, rl.For(host), messages, ro)
		run.Hosts = append(run.Hosts, hr)
		if hr.Err == nil {
			continue
		}
		errs = append(errs, fmt.Errorf("host %s: %w", host, hr.Err))
		if ro.AbortOnError && i < len(rl.Hosts)-1 {
			logger.Error().Str("host", host).Msg("Aborting run after host failure")
			aborted = true
			break
		}
	}

	run.Status = runStatus(run, aborted)
	run.FinishedAt = time.Now()
	span.SetAttributes(attribute.String("run.status", string(run.Status)))
	if len(errs) > 0 {
		span.SetStatus(codes.Error, "one or more hosts failed")
	}

	if r.journal != nil {
		if err := r.journal.FinishRun(ctx, run); err != nil {
			logger.Warn().Err(err).Msg("Failed to record run completion")
		}
	}
	logger.Info().
		Str("status", string(run.Status)).
		Dur("duration", run.FinishedAt.Sub(run.StartedAt)).
		Msg("Run finished")

	return run, messages, errors.Join(errs...)
}

// RunHost opens a session to host and applies items in order. The session
// is closed on every return path. After a failing item the remaining items
// are marked skipped.
func (r *Runner) RunHost(ctx context.Context, runID, host string, items []WorkItem, messages *MessageQueue, ro RunOptions) *HostResult {
	start := time.Now()
	hr := &HostResult{Host: host}
	logger := log.With().Str("run_id", runID).Str("host", host).Logger()

	ctx, span := r.tracer.Start(ctx, "host", trace.WithAttributes(attribute.String("host", host)))
	defer span.End()

	defer func() {
		hr.Duration = time.Since(start)
		hr.Status = HostStatusSucceeded
		if hr.Err != nil {
			hr.Status = HostStatusFailed
			span.RecordError(hr.Err)
			span.SetStatus(codes.Error, hr.Err.Error())
		}
		if r.observer != nil {
			r.observer.ObserveHost(host, hr.Status, hr.Duration)
		}
		logger.Info().Str("status", string(hr.Status)).Dur("duration", hr.Duration).Msg("Host finished")
	}()

	sess, err := r.dialer.Dial(ctx, r.target(host))
	if err != nil {
		hr.Err = fmt.Errorf("connect: %w", err)
		logger.Error().Err(err).Msg("Failed to open session")
		for _, item := range items {
			r.record(ctx, runID, host, hr, &ItemResult{Item: item, Status: ItemStatusSkipped})
		}
		return hr
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close session")
		}
	}()

	if ro.UpdatePackages {
		if err := ops.PackageIndexUpdate(ctx, sess); err != nil {
			hr.Err = err
			for _, item := range items {
				r.record(ctx, runID, host, hr, &ItemResult{Item: item, Status: ItemStatusSkipped})
			}
			return hr
		}
	}

	rc := NewRunContext(host, sess, r.opts)
	lc := NewLifecycle(r.registry, r.opts, messages)

	for _, item := range items {
		if hr.Err != nil {
			r.record(ctx, runID, host, hr, &ItemResult{Item: item, Status: ItemStatusSkipped})
			continue
		}

		ir := r.applyItem(ctx, lc, rc, item)
		if ir.Err != nil {
			hr.Err = ir.Err
			logger.Error().Err(ir.Err).Str("item", item.String()).Msg("Work item failed")
		}
		r.record(ctx, runID, host, hr, ir)
	}

	return hr
}

func (r *Runner) applyItem(ctx context.Context, lc *Lifecycle, rc *RunContext, item WorkItem) *ItemResult {
	ctx, span := r.tracer.Start(ctx, "work_item", trace.WithAttributes(
		attribute.String("item.kind", string(item.Kind)),
		attribute.String("item.name", item.Name),
	))
	defer span.End()

	start := time.Now()
	before := rc.Files()
	err := lc.Apply(ctx, rc, item)

	ir := &ItemResult{
		Item:     item,
		Status:   ItemStatusCompleted,
		Files:    statsDelta(before, rc.Files()),
		Duration: time.Since(start),
		Err:      err,
	}
	if err != nil {
		ir.Status = ItemStatusFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return ir
}

func (r *Runner) record(ctx context.Context, runID, host string, hr *HostResult, ir *ItemResult) {
	hr.Items = append(hr.Items, ir)
	if r.observer != nil {
		r.observer.ObserveItem(ir)
	}
	if r.journal != nil {
		if err := r.journal.RecordItem(ctx, runID, host, ir); err != nil {
			log.Warn().Err(err).Str("host", host).Msg("Failed to record work item")
		}
	}
}

// Cleanup runs recipe's cleanup action on each host in order. Every host is
// attempted; failures are joined.
func (r *Runner) Cleanup(ctx context.Context, hosts []string, recipe string) error {
	if !r.registry.HasRecipe(recipe) {
		return errdefs.NewUnknownComponentError(string(KindRecipe), recipe)
	}

	var errs []error
	for _, host := range hosts {
		if err := r.cleanupHost(ctx, host, recipe); err != nil {
			errs = append(errs, fmt.Errorf("host %s: %w", host, err))
		}
	}
	return errors.Join(errs...)
}

func (r *Runner) cleanupHost(ctx context.Context, host, recipe string) error {
	sess, err := r.dialer.Dial(ctx, r.target(host))
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer sess.Close()

	lc := NewLifecycle(r.registry, r.opts, nil)
	return lc.Cleanup(ctx, NewRunContext(host, sess, r.opts), recipe)
}

// target builds the session target for host. The computer's "address" key
// overrides the name as network address.
func (r *Runner) target(host string) session.Target {
	t := session.Target{Name: host, Address: host}
	if r.opts.Settings != nil {
		t.User = r.opts.Settings.RemoteUser
	}
	if c, ok := r.opts.Env.Computer(host); ok {
		if addr, ok := c["address"].(string); ok && addr != "" {
			t.Address = addr
		}
	}
	return t
}

func runStatus(run *Run, aborted bool) RunStatus {
	failed := len(run.Failed())
	switch {
	case aborted:
		return RunStatusAborted
	case failed == 0:
		return RunStatusSucceeded
	case failed == len(run.Hosts):
		return RunStatusFailed
	default:
		return RunStatusPartial
	}
}

func statsDelta(before, after fileset.Stats) fileset.Stats {
	return fileset.Stats{
		Written:   after.Written - before.Written,
		Unchanged: after.Unchanged - before.Unchanged,
		Deleted:   after.Deleted - before.Deleted,
		Skipped:   after.Skipped - before.Skipped,
		Rendered:  after.Rendered - before.Rendered,
	}
}
