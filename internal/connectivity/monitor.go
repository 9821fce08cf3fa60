// Package connectivity tracks whether the posyandu backend is reachable.
// The monitor plays the role a browser's online/offline events would: a
// reactive boolean plus transition callbacks, fed by periodic health probes.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Prober answers whether the backend is reachable right now.
type Prober interface {
	Health(ctx context.Context) error
}

// Monitor maintains the current online state. Callbacks registered with
// OnOnline and OnOffline are invoked synchronously with each transition,
// never for a repeated state.
type Monitor struct {
	prober   Prober
	interval time.Duration
	logger   *zap.Logger

	mu        sync.RWMutex
	online    bool
	onOnline  []func()
	onOffline []func()

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewMonitor creates a monitor probing at the given interval. The monitor
// starts offline; the first successful probe flips it online.
func NewMonitor(prober Prober, interval time.Duration, logger *zap.Logger) *Monitor {
	return &Monitor{
		prober:   prober,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Online reports the last observed connectivity state.
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// OnOnline registers a callback for offline-to-online transitions.
func (m *Monitor) OnOnline(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onOnline = append(m.onOnline, fn)
}

// OnOffline registers a callback for online-to-offline transitions.
func (m *Monitor) OnOffline(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onOffline = append(m.onOffline, fn)
}

// SetOnline forces the connectivity state. Used by tests and by the
// forced-offline mode; the probe loop calls it with every probe outcome.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	var callbacks []func()
	if online {
		callbacks = append(callbacks, m.onOnline...)
	} else {
		callbacks = append(callbacks, m.onOffline...)
	}
	m.mu.Unlock()

	if online {
		m.logger.Info("backend reachable, now online")
	} else {
		m.logger.Warn("backend unreachable, now offline")
	}
	for _, fn := range callbacks {
		fn()
	}
}

// Start launches the probe loop. The loop stops when ctx is cancelled or
// Stop is called.
func (m *Monitor) Start(ctx context.Context) {
	m.wg.Add(1)
	go m.loop(ctx)
	m.logger.Info("connectivity monitor started", zap.Duration("interval", m.interval))
}

// Stop terminates the probe loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()
	m.logger.Info("connectivity monitor stopped")
}

func (m *Monitor) loop(ctx context.Context) {
	defer m.wg.Done()

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = time.Second
	retry.MaxInterval = m.interval
	retry.MaxElapsedTime = 0 // probe forever

	// First probe fires immediately so startup does not sit offline for a
	// whole interval.
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-timer.C:
		}

		probeCtx, cancel := context.WithTimeout(ctx, m.interval)
		err := m.prober.Health(probeCtx)
		cancel()

		wait := m.interval
		if err != nil {
			m.logger.Debug("health probe failed", zap.Error(err))
			m.SetOnline(false)
			// Failed probes back off so a dead backend is not hammered.
			wait = retry.NextBackOff()
		} else {
			m.SetOnline(true)
			retry.Reset()
		}
		timer.Reset(wait)
	}
}
