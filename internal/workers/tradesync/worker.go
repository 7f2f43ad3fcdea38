package tradesync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/folio-service/folio_service/internal/domain/entities"
	"github.com/folio-service/folio_service/internal/domain/repositories"
	"github.com/folio-service/folio_service/pkg/metrics"
)

// TradeSource supplies the current trade ledger. Implemented by the
// portfolio service.
type TradeSource interface {
	AllTrades(ctx context.Context, forceRefresh bool) []entities.Trade
}

// SessionKeeper keeps the upstream session alive between runs
type SessionKeeper interface {
	KeepAlive(ctx context.Context) error
}

// Config holds configuration for the sync worker
type Config struct {
	Interval   time.Duration // how often to sync
	RunTimeout time.Duration // per-run deadline
}

// DefaultConfig returns default worker configuration
func DefaultConfig() Config {
	return Config{
		Interval:   5 * time.Minute,
		RunTimeout: 4 * time.Minute,
	}
}

// Worker periodically pulls the trade ledger from the brokerage and upserts
// it into the database. A run that fires while the previous one is still in
// flight is skipped entirely, never queued.
type Worker struct {
	source  TradeSource
	session SessionKeeper
	repo    repositories.TradeRepository
	config  Config
	logger  *zap.Logger

	cron    *cron.Cron
	entryID cron.EntryID
	runMu   sync.Mutex

	mu        sync.Mutex
	isRunning bool
}

// NewWorker creates a sync worker. repo may be nil when no database is
// configured; runs then only refresh the in-memory ledger cache.
func NewWorker(source TradeSource, session SessionKeeper, repo repositories.TradeRepository, config Config, logger *zap.Logger) *Worker {
	return &Worker{
		source:  source,
		session: session,
		repo:    repo,
		config:  config,
		logger:  logger,
		cron:    cron.New(),
	}
}

// Start schedules the periodic sync and kicks off an initial run
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning {
		return fmt.Errorf("trade sync worker is already running")
	}

	spec := fmt.Sprintf("@every %s", w.config.Interval)
	entryID, err := w.cron.AddFunc(spec, func() {
		w.RunOnce(context.Background())
	})
	if err != nil {
		return fmt.Errorf("failed to schedule trade sync: %w", err)
	}
	w.entryID = entryID
	w.cron.Start()
	w.isRunning = true

	w.logger.Info("trade sync worker started",
		zap.Duration("interval", w.config.Interval))

	// First sync runs right away rather than waiting a full interval
	go w.RunOnce(context.Background())

	return nil
}

// Stop halts the schedule and waits for an in-flight run to finish
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.isRunning {
		return
	}
	ctx := w.cron.Stop()
	<-ctx.Done()

	// An in-flight run holds runMu; acquiring it means the run finished
	w.runMu.Lock()
	w.runMu.Unlock() //nolint:staticcheck // lock-then-unlock is the drain

	w.isRunning = false
	w.logger.Info("trade sync worker stopped")
}

// InFlight reports whether a sync run is currently in progress. Advisory
// only; RunOnce still guards itself.
func (w *Worker) InFlight() bool {
	if w.runMu.TryLock() {
		w.runMu.Unlock()
		return false
	}
	return true
}

// RunOnce performs one guarded sync. Returns false when a run was already in
// progress and this one was skipped.
func (w *Worker) RunOnce(ctx context.Context) bool {
	if !w.runMu.TryLock() {
		w.logger.Info("sync already in progress, skipping overlapping run")
		metrics.SyncRunsTotal.WithLabelValues("skipped").Inc()
		return false
	}
	defer w.runMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, w.config.RunTimeout)
	defer cancel()

	if err := w.sync(ctx); err != nil {
		w.logger.Error("trade sync failed", zap.Error(err))
		metrics.SyncRunsTotal.WithLabelValues("error").Inc()
		return true
	}
	metrics.SyncRunsTotal.WithLabelValues("ok").Inc()
	return true
}

func (w *Worker) sync(ctx context.Context) error {
	w.logger.Info("starting trade sync")

	if w.session != nil {
		if err := w.session.KeepAlive(ctx); err != nil {
			w.logger.Warn("session keep-alive failed, continuing", zap.Error(err))
		}
	}

	trades := w.source.AllTrades(ctx, true)
	if len(trades) == 0 {
		w.logger.Info("no trades returned, nothing to upsert")
		return nil
	}

	if w.repo == nil {
		w.logger.Debug("no database configured, ledger cache refreshed only")
		return nil
	}

	if err := w.repo.UpsertBatch(ctx, trades); err != nil {
		return fmt.Errorf("failed to upsert trades: %w", err)
	}
	metrics.SyncedTradesTotal.Add(float64(len(trades)))

	w.logger.Info("trades synced", zap.Int("count", len(trades)))
	return nil
}
