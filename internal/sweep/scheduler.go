package sweep

import (
	"context"
	"log/slog"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"TreasurySweep/internal/custody"
	xerrors "TreasurySweep/internal/errors"
	"TreasurySweep/internal/observability/alerting"
	"TreasurySweep/internal/observability/metrics"
	"TreasurySweep/pkg/logger"
)

// Directory lists the custody accounts whose wallets are swept each
// iteration. The listing is re-fetched every tick so newly created wallets
// join the rotation without a restart.
type Directory interface {
	ListAccounts(ctx context.Context) ([]custody.Account, error)
}

// Sweeper runs one per-wallet consolidation attempt.
type Sweeper interface {
	Sweep(ctx context.Context, target Target) Outcome
}

// SchedulerConfig fixes the identity and cadence of a scheduler instance.
type SchedulerConfig struct {
	Network       string
	TokenDecimals int
	// Schedule is a cron expression or @every interval understood by
	// robfig/cron. Defaults to every five minutes.
	Schedule string
}

const defaultSchedule = "@every 5m"

// Summary aggregates one completed iteration.
type Summary struct {
	Iteration   int
	StartedAt   time.Time
	FinishedAt  time.Time
	Attempted   int
	Succeeded   int
	Skipped     int
	Failed      int
	Swept       *big.Int
	Outcomes    []Outcome
	Interrupted bool
}

// Scheduler drives sweep iterations: strictly sequential within a tick,
// single-flight across ticks, and cooperative on cancellation.
type Scheduler struct {
	directory Directory
	sweeper   Sweeper
	cfg       SchedulerConfig
	guard     Guard
	publisher Publisher
	alerts    alerting.Dispatcher
	logger    *slog.Logger
	stats     *statsTracker

	// iteration numbers attempts, including failed ones. Atomic because a
	// skipped tick reports it concurrently with the in-flight iteration.
	iteration atomic.Int64
}

// SchedulerOption configures optional scheduler behaviour.
type SchedulerOption func(*Scheduler)

// WithGuard replaces the default in-process single-flight guard.
func WithGuard(g Guard) SchedulerOption {
	return func(s *Scheduler) {
		if g != nil {
			s.guard = g
		}
	}
}

// WithPublisher replaces the default log-backed event publisher.
func WithPublisher(p Publisher) SchedulerOption {
	return func(s *Scheduler) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithAlerts attaches an alert dispatcher for failure outcomes.
func WithAlerts(d alerting.Dispatcher) SchedulerOption {
	return func(s *Scheduler) {
		if d != nil {
			s.alerts = d
		}
	}
}

// WithSchedulerLogger overrides the component logger.
func WithSchedulerLogger(log *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if log != nil {
			s.logger = log
		}
	}
}

// NewScheduler constructs a Scheduler.
func NewScheduler(directory Directory, sweeper Sweeper, cfg SchedulerConfig, opts ...SchedulerOption) *Scheduler {
	if cfg.Schedule == "" {
		cfg.Schedule = defaultSchedule
	}
	s := &Scheduler{
		directory: directory,
		sweeper:   sweeper,
		cfg:       cfg,
		guard:     NewFlightGuard(),
		stats:     newStatsTracker(cfg.TokenDecimals),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.publisher == nil {
		s.publisher = NewLogPublisher(nil)
	}
	if s.logger == nil {
		s.logger = logger.Named("sweep.scheduler")
	}
	return s
}

// Stats returns a snapshot of the cumulative counters.
func (s *Scheduler) Stats() Stats {
	return s.stats.snapshot()
}

// RunOnce executes a single iteration. A directory failure aborts the whole
// iteration with an error; individual wallet failures are recorded in the
// summary and never abort it.
func (s *Scheduler) RunOnce(ctx context.Context) (Summary, error) {
	summary := Summary{
		Iteration: int(s.iteration.Add(1)),
		StartedAt: time.Now(),
		Swept:     new(big.Int),
	}
	s.publish(ctx, Event{
		Type:       EventIterationStarted,
		Iteration:  summary.Iteration,
		OccurredAt: summary.StartedAt,
	})

	accounts, err := s.directory.ListAccounts(ctx)
	if err != nil {
		summary.FinishedAt = time.Now()
		metrics.ObserveIteration(s.cfg.Network, "failed")
		s.publish(ctx, Event{
			Type:       EventIterationFailed,
			Iteration:  summary.Iteration,
			OccurredAt: summary.FinishedAt,
			Error:      err.Error(),
		})
		s.alert(ctx, alerting.Event{
			Code:       xerrors.CodeOf(err),
			Message:    err.Error(),
			Severity:   xerrors.SeverityOf(err),
			Network:    s.cfg.Network,
			OccurredAt: summary.FinishedAt,
		})
		return summary, err
	}

	s.sweepAccounts(ctx, accounts, &summary)

	summary.FinishedAt = time.Now()
	s.stats.recordIteration()
	metrics.ObserveIteration(s.cfg.Network, "completed")
	s.publish(ctx, Event{
		Type:       EventIterationCompleted,
		Iteration:  summary.Iteration,
		OccurredAt: summary.FinishedAt,
		Attempted:  summary.Attempted,
		Succeeded:  summary.Succeeded,
		Skipped:    summary.Skipped,
		Failed:     summary.Failed,
		Swept:      FormatUnits(summary.Swept, s.cfg.TokenDecimals),
	})
	s.logger.Info("iteration completed",
		slog.Int("iteration", summary.Iteration),
		slog.Int("attempted", summary.Attempted),
		slog.Int("succeeded", summary.Succeeded),
		slog.Int("skipped", summary.Skipped),
		slog.Int("failed", summary.Failed),
		slog.Bool("interrupted", summary.Interrupted),
		slog.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)),
	)
	return summary, nil
}

// sweepAccounts walks every wallet of every account in order. One wallet at a
// time: the delegated signer throttles concurrent requests per realm, and
// sequential execution keeps gas spend observable. Cancellation is honoured
// between wallets, never mid-attempt.
func (s *Scheduler) sweepAccounts(ctx context.Context, accounts []custody.Account, summary *Summary) {
	for _, account := range accounts {
		for _, wallet := range account.Wallets {
			if ctx.Err() != nil {
				summary.Interrupted = true
				return
			}
			out := s.sweeper.Sweep(ctx, Target{RealmID: account.RealmID, Wallet: wallet})
			s.recordOutcome(ctx, out, summary)
		}
	}
}

func (s *Scheduler) recordOutcome(ctx context.Context, out Outcome, summary *Summary) {
	summary.Attempted++
	summary.Outcomes = append(summary.Outcomes, out)
	s.stats.recordOutcome(out)
	metrics.ObserveSweep(s.cfg.Network, string(out.Kind), out.Duration)

	switch {
	case out.Succeeded():
		summary.Succeeded++
		if out.Amount != nil {
			summary.Swept.Add(summary.Swept, out.Amount)
		}
	case out.Skipped():
		summary.Skipped++
		return
	default:
		summary.Failed++
	}

	s.publish(ctx, Event{
		Type:       EventSweepCompleted,
		Iteration:  summary.Iteration,
		OccurredAt: time.Now(),
		RealmID:    out.RealmID,
		Wallet:     out.Wallet,
		Kind:       string(out.Kind),
		Amount:     out.AmountStr,
		TxHash:     out.TxHash,
		Error:      out.Error,
	})
	if out.Failed() {
		s.alert(ctx, alerting.Event{
			Code:       out.Code(),
			Message:    out.Error,
			Severity:   xerrors.AttributesOf(out.Code()).Severity,
			Network:    s.cfg.Network,
			RealmID:    out.RealmID,
			Wallet:     out.Wallet,
			TxHash:     out.TxHash,
			OccurredAt: time.Now(),
		})
	}
}

// Run executes iterations on the configured cadence until the context is
// cancelled. The first iteration starts immediately rather than waiting for
// the first tick. A tick that fires while an iteration is still in flight is
// dropped, never queued.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(s.cfg.Schedule, func() { s.runGuarded(ctx) }); err != nil {
		return xerrors.Wrap(xerrors.CodeConfigError, err, "invalid sweep schedule",
			xerrors.WithMetadata("schedule", s.cfg.Schedule))
	}

	s.logger.Info("scheduler started", slog.String("schedule", s.cfg.Schedule))
	s.runGuarded(ctx)
	c.Start()

	<-ctx.Done()
	// Stop delivering ticks, then wait for an in-flight iteration to notice
	// the cancellation and unwind.
	stopCtx := c.Stop()
	<-stopCtx.Done()

	stats := s.stats.snapshot()
	s.publish(context.Background(), Event{
		Type:       EventRunSummary,
		Iteration:  stats.Iterations,
		OccurredAt: time.Now(),
		Attempted:  stats.Attempted,
		Succeeded:  stats.Succeeded,
		Skipped:    stats.Skipped,
		Failed:     stats.Failed,
		Swept:      stats.SweptTotal,
	})
	s.logger.Info("scheduler stopped",
		slog.Int("iterations", stats.Iterations),
		slog.Int("ticks_skipped", stats.TicksSkipped),
		slog.String("swept_total", stats.SweptTotal),
	)
	return nil
}

// runGuarded wraps one iteration in the single-flight guard so overlapping
// ticks are observable as explicit skip events.
func (s *Scheduler) runGuarded(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	ok, err := s.guard.TryAcquire(ctx)
	if err != nil {
		s.logger.Error("guard acquire failed", slog.String("error", err.Error()))
		return
	}
	if !ok {
		s.stats.recordSkippedTick()
		metrics.ObserveIteration(s.cfg.Network, "skipped")
		s.publish(ctx, Event{
			Type:       EventIterationSkipped,
			Iteration:  int(s.iteration.Load()),
			OccurredAt: time.Now(),
		})
		return
	}
	defer func() {
		if err := s.guard.Release(context.Background()); err != nil {
			s.logger.Error("guard release failed", slog.String("error", err.Error()))
		}
	}()

	if summary, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("iteration failed",
			slog.Int("iteration", summary.Iteration),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Scheduler) publish(ctx context.Context, event Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed",
			slog.String("type", string(event.Type)),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Scheduler) alert(ctx context.Context, event alerting.Event) {
	if s.alerts == nil {
		return
	}
	if !xerrors.AttributesOf(event.Code).Alert {
		return
	}
	if err := s.alerts.Notify(ctx, event); err != nil {
		s.logger.Warn("alert dispatch failed",
			slog.String("code", string(event.Code)),
			slog.String("error", err.Error()),
		)
	}
}
