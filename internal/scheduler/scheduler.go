// Package scheduler runs the engine's background sweeps on cron schedules:
//  1. pending-bet expiry  – refunds stale unpaid bets.
//  2. settlement retry    – re-drives payout disbursements that failed.
//  3. market-state watch  – pushes pool state for active markets to WS
//     clients and turns status changes observed in the database (new,
//     resolved, cancelled) into broadcast events, whichever process made
//     them.
//
// Every job recovers its own panics so a failing sweep never takes the
// process down with it.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/wagerpool/parimutuel/internal/domain"
	"github.com/wagerpool/parimutuel/internal/service"
)

const (
	expirySpec    = "@every 1m"
	retrySpec     = "@every 2m"
	broadcastSpec = "@every 5s"

	retryBatchSize = 100
	watchBatchSize = 200
	jobTimeout     = 30 * time.Second
)

// Scheduler owns the cron runner and the jobs it drives.  Call Start once
// from main; Stop waits for in-flight jobs to finish.
type Scheduler struct {
	cron          *cron.Cron
	betSvc        *service.BetService
	marketSvc     *service.MarketService
	resolutionSvc *service.ResolutionService
	broadcaster   service.Broadcaster
	baseCtx       context.Context

	// watch state: last observed status per active market.  Markets in a
	// terminal status are dropped after their event is broadcast.
	watchMu sync.Mutex
	watched map[uuid.UUID]domain.MarketStatus
	seeded  bool
}

// NewScheduler creates a Scheduler with all sweeps registered.
func NewScheduler(
	baseCtx context.Context,
	betSvc *service.BetService,
	marketSvc *service.MarketService,
	resolutionSvc *service.ResolutionService,
	broadcaster service.Broadcaster,
) *Scheduler {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Scheduler{
		cron:          cron.New(),
		betSvc:        betSvc,
		marketSvc:     marketSvc,
		resolutionSvc: resolutionSvc,
		broadcaster:   broadcaster,
		baseCtx:       baseCtx,
		watched:       make(map[uuid.UUID]domain.MarketStatus),
	}
}

// Start registers and launches the sweeps.  Returns after scheduling; jobs
// run on the cron's own goroutine until Stop is called.
func (s *Scheduler) Start() error {
	jobs := []struct {
		name string
		spec string
		fn   func(context.Context)
	}{
		{"expire_pending_bets", expirySpec, s.expirePendingBets},
		{"retry_unpaid_payouts", retrySpec, s.retryUnpaidPayouts},
		{"broadcast_market_state", broadcastSpec, s.broadcastMarketState},
	}
	for _, j := range jobs {
		j := j
		if _, err := s.cron.AddFunc(j.spec, func() { s.run(j.name, j.fn) }); err != nil {
			return err
		}
	}
	s.cron.Start()
	slog.Info("scheduler started", "jobs", len(jobs))
	return nil
}

// Stop halts scheduling and blocks until running jobs complete.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("scheduler stopped")
}

// run wraps a job with a timeout context and panic recovery.
func (s *Scheduler) run(name string, fn func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("scheduler job panicked", "job", name, "panic", r)
		}
	}()
	ctx, cancel := context.WithTimeout(s.baseCtx, jobTimeout)
	defer cancel()
	fn(ctx)
}

// expirePendingBets refunds pending bets whose payment never arrived.
func (s *Scheduler) expirePendingBets(ctx context.Context) {
	if _, err := s.betSvc.ExpirePendingBets(ctx); err != nil {
		slog.Error("pending bet expiry sweep failed", "err", err)
	}
}

// retryUnpaidPayouts re-sends disbursements for won bets that were settled
// but never paid.
func (s *Scheduler) retryUnpaidPayouts(ctx context.Context) {
	if err := s.resolutionSvc.RetryUnpaidPayouts(ctx, retryBatchSize); err != nil {
		slog.Error("payout retry sweep failed", "err", err)
	}
}

// broadcastMarketState pushes the current pool state of every active market
// so connected clients see countdowns tick even between bets, and diffs
// market statuses against the previous sweep to announce openings,
// resolutions and cancellations.  Polling the database makes the events
// process-independent: a market resolved through the backoffice binary still
// reaches this server's WS clients.
func (s *Scheduler) broadcastMarketState(ctx context.Context) {
	if s.broadcaster == nil {
		return
	}
	markets, _, err := s.marketSvc.ListMarkets(ctx, watchBatchSize, 0, "")
	if err != nil {
		slog.Error("market state sweep failed", "err", err)
		return
	}

	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	for _, m := range markets {
		prev, seen := s.watched[m.ID]

		switch {
		case !s.seeded:
			// First sweep after boot observes, never replays history.
		case !seen && m.Status == domain.StatusActive:
			s.broadcaster.BroadcastNewMarket(m)
		case seen && prev == domain.StatusActive && m.Status == domain.StatusResolved:
			s.broadcaster.BroadcastMarketResolved(m)
		case seen && prev == domain.StatusActive && m.Status == domain.StatusCancelled:
			s.broadcaster.BroadcastMarketCancelled(m.ID)
		}

		if m.Status == domain.StatusActive {
			s.watched[m.ID] = m.Status
			summary := m.ToSummary()
			s.broadcaster.BroadcastMarketUpdate(&summary)
		} else {
			// Terminal statuses never change again; forget the market.
			delete(s.watched, m.ID)
		}
	}
	s.seeded = true
}
