// Package scheduler runs the engine's background loops: the price-refresh
// loop that marks positions and fires risk exits, and the order-monitor loop
// that triggers pending orders. Both loops slow down outside the regular
// session and speed up inside it.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"papertrade-enginev1/internal/engine"
	"papertrade-enginev1/internal/markethours"
	"papertrade-enginev1/internal/metrics"
	"papertrade-enginev1/internal/model"
)

// Cadences. The off-session intervals keep quote traffic low while still
// picking up session transitions promptly.
const (
	DefaultRefreshInterval     = 5 * time.Second
	DefaultRefreshIntervalSlow = 30 * time.Second
	DefaultMonitorInterval     = 2 * time.Second
	DefaultMonitorIntervalSlow = 10 * time.Second
)

// Config tunes the scheduler's loop cadences. Zero values take the defaults.
type Config struct {
	RefreshInterval     time.Duration
	RefreshIntervalSlow time.Duration
	MonitorInterval     time.Duration
	MonitorIntervalSlow time.Duration

	// Now is the clock used for session decisions; nil means time.Now.
	Now func() time.Time
}

// Scheduler drives the refresh and monitor loops against the engine.
type Scheduler struct {
	engine *engine.Engine
	store  model.Store
	prom   *metrics.Metrics
	cfg    Config
	now    func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a stopped scheduler.
func New(eng *engine.Engine, store model.Store, prom *metrics.Metrics, cfg Config) *Scheduler {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}
	if cfg.RefreshIntervalSlow <= 0 {
		cfg.RefreshIntervalSlow = DefaultRefreshIntervalSlow
	}
	if cfg.MonitorInterval <= 0 {
		cfg.MonitorInterval = DefaultMonitorInterval
	}
	if cfg.MonitorIntervalSlow <= 0 {
		cfg.MonitorIntervalSlow = DefaultMonitorIntervalSlow
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Scheduler{engine: eng, store: store, prom: prom, cfg: cfg, now: now}
}

// Start launches both loops. Call Stop to shut them down.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(2)
	go s.loop(ctx, "refresh", s.cfg.RefreshInterval, s.cfg.RefreshIntervalSlow, s.RefreshCycle)
	go s.loop(ctx, "monitor", s.cfg.MonitorInterval, s.cfg.MonitorIntervalSlow, s.MonitorCycle)

	log.Printf("[scheduler] started (refresh %s/%s, monitor %s/%s)",
		s.cfg.RefreshInterval, s.cfg.RefreshIntervalSlow,
		s.cfg.MonitorInterval, s.cfg.MonitorIntervalSlow)
}

// Stop cancels the loops and waits for in-flight cycles to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	log.Printf("[scheduler] stopped")
}

// loop runs cycle on a ticker whose interval follows the market session:
// fast during the regular session, slow otherwise. The interval is
// re-evaluated after every cycle so a session transition takes effect on
// the next tick.
func (s *Scheduler) loop(ctx context.Context, name string, fast, slow time.Duration, cycle func(context.Context)) {
	defer s.wg.Done()

	interval := s.pick(fast, slow)
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			cycle(ctx)
			if next := s.pick(fast, slow); next != interval {
				interval = next
				t.Reset(interval)
				log.Printf("[scheduler] %s loop interval -> %s", name, interval)
			}
		}
	}
}

func (s *Scheduler) pick(fast, slow time.Duration) time.Duration {
	if markethours.IsRegularOpen(s.now()) {
		return fast
	}
	return slow
}

// RefreshCycle reprices every account with open positions and recomputes
// valuations. Per-account failures are logged and skipped; one bad account
// must not starve the rest.
func (s *Scheduler) RefreshCycle(ctx context.Context) {
	start := time.Now()

	positions, err := s.store.ListAllPositions(ctx)
	if err != nil {
		log.Printf("[scheduler] list positions: %v", err)
		return
	}
	if s.prom != nil {
		s.prom.OpenPositions.Set(float64(len(positions)))
		if markethours.IsRegularOpen(s.now()) {
			s.prom.MarketState.Set(1)
		} else {
			s.prom.MarketState.Set(0)
		}
	}

	seen := make(map[string]struct{})
	for _, p := range positions {
		if _, ok := seen[p.AccountID]; ok {
			continue
		}
		seen[p.AccountID] = struct{}{}

		if err := s.engine.RefreshAccount(ctx, p.AccountID); err != nil {
			log.Printf("[scheduler] refresh account %s: %v", p.AccountID, err)
		}
	}

	if s.prom != nil {
		s.prom.RefreshCycleDur.Observe(time.Since(start).Seconds())
	}
}

// MonitorCycle evaluates every pending order's trigger condition.
func (s *Scheduler) MonitorCycle(ctx context.Context) {
	start := time.Now()

	orders, err := s.store.ListPendingOrders(ctx)
	if err != nil {
		log.Printf("[scheduler] list pending orders: %v", err)
		return
	}
	if s.prom != nil {
		s.prom.PendingOrders.Set(float64(len(orders)))
	}

	for i := range orders {
		if ctx.Err() != nil {
			return
		}
		if err := s.engine.CheckPendingOrder(ctx, &orders[i]); err != nil {
			log.Printf("[scheduler] check order %s: %v", orders[i].ID, err)
		}
	}

	if s.prom != nil {
		s.prom.MonitorCycleDur.Observe(time.Since(start).Seconds())
	}
}
