// Package scheduler runs the sync cycle in the background: periodically
// while online, and immediately whenever connectivity comes back.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vickyymosafan/posyandu-core/internal/syncer"
)

// syncTimeout bounds one background sync cycle.
const syncTimeout = 5 * time.Minute

// Syncer runs one drain-and-refresh cycle.
type Syncer interface {
	SyncAll(ctx context.Context) *syncer.Result
}

// OnlineSource provides connectivity state and transition callbacks.
type OnlineSource interface {
	Online() bool
	OnOnline(fn func())
}

// Scheduler drives the syncer from a ticker and from online transitions.
// All reentrancy and offline guards live in the syncer itself; the
// scheduler only decides when to call it.
type Scheduler struct {
	syncer   Syncer
	source   OnlineSource
	interval time.Duration
	logger   *zap.Logger

	trigger  chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu        sync.Mutex
	isRunning bool
}

// New creates a scheduler syncing every interval while online.
func New(s Syncer, source OnlineSource, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		syncer:   s,
		source:   source,
		interval: interval,
		logger:   logger,
		trigger:  make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
	}
}

// Start launches the background loop and hooks the online transition.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.mu.Unlock()

	// Drain as soon as connectivity comes back rather than waiting out a
	// full interval with a loaded queue.
	s.source.OnOnline(s.TriggerSync)

	s.wg.Add(1)
	go s.loop(ctx)
	s.logger.Info("sync scheduler started", zap.Duration("interval", s.interval))
}

// Stop terminates the background loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
	s.logger.Info("sync scheduler stopped")
}

// TriggerSync requests an immediate cycle. Safe from any goroutine; a
// request while one is already queued is coalesced.
func (s *Scheduler) TriggerSync() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// IsRunning reports whether the background loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if !s.source.Online() {
				continue
			}
			s.runSync(ctx)
		case <-s.trigger:
			s.runSync(ctx)
		}
	}
}

func (s *Scheduler) runSync(ctx context.Context) {
	syncCtx, cancel := context.WithTimeout(ctx, syncTimeout)
	defer cancel()

	result := s.syncer.SyncAll(syncCtx)
	if result.Skipped {
		return
	}
	s.logger.Info("background sync completed",
		zap.Int("drained", result.Drained),
		zap.Int("failed", result.Failed),
		zap.Int("dropped", result.Dropped),
		zap.Int("refreshed", result.Refreshed))
}
