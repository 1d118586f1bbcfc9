// Package scheduler drives the periodic work: polling for due checks,
// fanning them out to a worker pool, and the calendar shift sync.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bissquit/status-garden/internal/domain"
)

// Config contains scheduler configuration.
type Config struct {
	PollInterval      time.Duration
	NumWorkers        int
	CheckTimeout      time.Duration
	ShiftSyncInterval time.Duration
}

// DefaultConfig returns default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		PollInterval:      10 * time.Second,
		NumWorkers:        5,
		CheckTimeout:      2 * time.Minute,
		ShiftSyncInterval: 10 * time.Minute,
	}
}

// CheckSource supplies checks that are due and their service links.
type CheckSource interface {
	ListDueChecks(ctx context.Context, now time.Time) ([]domain.StatusCheck, error)
	ServicesForCheck(ctx context.Context, checkID string) ([]string, error)
}

// Runner executes a single check.
type Runner interface {
	Run(ctx context.Context, check *domain.StatusCheck) (*domain.CheckResult, error)
}

// Aggregator recomputes a service's status after its checks change.
type Aggregator interface {
	UpdateServiceStatus(ctx context.Context, serviceID string, now time.Time) (*domain.Snapshot, error)
}

// ShiftSyncer reconciles the on-call roster with the calendar.
type ShiftSyncer interface {
	SyncShifts(ctx context.Context, now time.Time) error
}

// Scheduler owns the polling loops and the check worker pool.
type Scheduler struct {
	config Config
	source CheckSource
	runner Runner
	agg    Aggregator
	syncer ShiftSyncer

	jobs     chan domain.StatusCheck
	inFlight sync.Map

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a new scheduler.
func New(config Config, source CheckSource, runner Runner, agg Aggregator, syncer ShiftSyncer) *Scheduler {
	if config.PollInterval == 0 {
		config.PollInterval = DefaultConfig().PollInterval
	}
	if config.NumWorkers == 0 {
		config.NumWorkers = DefaultConfig().NumWorkers
	}
	if config.CheckTimeout == 0 {
		config.CheckTimeout = DefaultConfig().CheckTimeout
	}
	if config.ShiftSyncInterval == 0 {
		config.ShiftSyncInterval = DefaultConfig().ShiftSyncInterval
	}

	return &Scheduler{
		config: config,
		source: source,
		runner: runner,
		agg:    agg,
		syncer: syncer,
		jobs:   make(chan domain.StatusCheck, config.NumWorkers*2),
		stopCh: make(chan struct{}),
	}
}

// Start launches the dispatch loop, the worker pool, and the shift sync
// loop.
func (s *Scheduler) Start(ctx context.Context) {
	slog.Info("starting scheduler",
		"workers", s.config.NumWorkers,
		"poll_interval", s.config.PollInterval,
		"shift_sync_interval", s.config.ShiftSyncInterval,
	)

	for i := 0; i < s.config.NumWorkers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.wg.Add(1)
	go s.dispatchLoop(ctx)

	if s.syncer != nil {
		s.wg.Add(1)
		go s.shiftSyncLoop(ctx)
	}
}

// Stop gracefully stops the scheduler, waiting for in-flight checks.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	slog.Info("scheduler stopped")
}

func (s *Scheduler) dispatchLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.jobs)

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.dispatch(ctx)
		}
	}
}

func (s *Scheduler) dispatch(ctx context.Context) {
	due, err := s.source.ListDueChecks(ctx, time.Now())
	if err != nil {
		slog.Error("failed to list due checks", "error", err)
		return
	}
	if len(due) == 0 {
		return
	}

	slog.Debug("dispatching due checks", "count", len(due))
	for _, check := range due {
		// A slow check must not pile up behind itself. Skip it while a
		// previous run is still going; the next poll retries.
		if _, loaded := s.inFlight.LoadOrStore(check.ID, struct{}{}); loaded {
			recordDispatch("skipped_in_flight")
			continue
		}

		select {
		case s.jobs <- check:
			recordDispatch("queued")
		case <-ctx.Done():
			s.inFlight.Delete(check.ID)
			return
		case <-s.stopCh:
			s.inFlight.Delete(check.ID)
			return
		}
	}
}

func (s *Scheduler) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()

	for check := range s.jobs {
		s.runCheck(ctx, workerID, check)
	}
}

func (s *Scheduler) runCheck(ctx context.Context, workerID int, check domain.StatusCheck) {
	defer s.inFlight.Delete(check.ID)

	runCtx, cancel := context.WithTimeout(ctx, s.config.CheckTimeout)
	defer cancel()

	start := time.Now()
	if _, err := s.runner.Run(runCtx, &check); err != nil {
		slog.Error("check run failed",
			"worker", workerID,
			"check", check.Name,
			"type", check.Type,
			"error", err,
		)
		return
	}

	slog.Debug("check finished",
		"worker", workerID,
		"check", check.Name,
		"duration", time.Since(start),
	)

	services, err := s.source.ServicesForCheck(runCtx, check.ID)
	if err != nil {
		slog.Error("failed to resolve services for check", "check", check.Name, "error", err)
		return
	}

	now := time.Now()
	for _, serviceID := range services {
		if _, err := s.agg.UpdateServiceStatus(runCtx, serviceID, now); err != nil {
			slog.Error("failed to update service status",
				"service_id", serviceID,
				"check", check.Name,
				"error", err,
			)
		}
	}
}

func (s *Scheduler) shiftSyncLoop(ctx context.Context) {
	defer s.wg.Done()

	// Sync once at startup so a fresh deployment has a roster before
	// the first tick.
	s.syncShifts(ctx)

	ticker := time.NewTicker(s.config.ShiftSyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.syncShifts(ctx)
		}
	}
}

func (s *Scheduler) syncShifts(ctx context.Context) {
	if err := s.syncer.SyncShifts(ctx, time.Now()); err != nil {
		slog.Error("shift sync failed", "error", err)
	}
}
