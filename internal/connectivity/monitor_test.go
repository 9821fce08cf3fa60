package connectivity

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vickyymosafan/posyandu-core/internal/apperrors"
	"github.com/vickyymosafan/posyandu-core/internal/logging"
)

type fakeProber struct {
	healthy atomic.Bool
	calls   atomic.Int64
}

func (p *fakeProber) Health(ctx context.Context) error {
	p.calls.Add(1)
	if p.healthy.Load() {
		return nil
	}
	return apperrors.New(apperrors.ErrNetwork, "probe failed")
}

func TestMonitorStartsOffline(t *testing.T) {
	m := NewMonitor(&fakeProber{}, time.Minute, logging.NewNop())
	assert.False(t, m.Online())
}

func TestSetOnlineFiresCallbacksOnTransitionOnly(t *testing.T) {
	m := NewMonitor(&fakeProber{}, time.Minute, logging.NewNop())

	var onlineHits, offlineHits int
	m.OnOnline(func() { onlineHits++ })
	m.OnOffline(func() { offlineHits++ })

	m.SetOnline(true)
	m.SetOnline(true) // repeat, no transition
	m.SetOnline(false)
	m.SetOnline(false)
	m.SetOnline(true)

	assert.Equal(t, 2, onlineHits)
	assert.Equal(t, 1, offlineHits)
}

func TestCallbacksRunSynchronously(t *testing.T) {
	m := NewMonitor(&fakeProber{}, time.Minute, logging.NewNop())

	fired := false
	m.OnOnline(func() {
		fired = true
		// Reading state from inside a callback must not deadlock.
		assert.True(t, m.Online())
	})
	m.SetOnline(true)
	assert.True(t, fired, "callback completed before SetOnline returned")
}

func TestProbeLoopTracksBackend(t *testing.T) {
	prober := &fakeProber{}
	prober.healthy.Store(true)
	m := NewMonitor(prober, 10*time.Millisecond, logging.NewNop())

	m.Start(context.Background())
	defer m.Stop()

	require.Eventually(t, m.Online, time.Second, 2*time.Millisecond, "first successful probe flips online")

	prober.healthy.Store(false)
	require.Eventually(t, func() bool { return !m.Online() }, time.Second, 2*time.Millisecond, "failed probe flips offline")

	prober.healthy.Store(true)
	require.Eventually(t, m.Online, 5*time.Second, 5*time.Millisecond, "recovery flips back online")
}

func TestStopTerminatesLoop(t *testing.T) {
	prober := &fakeProber{}
	m := NewMonitor(prober, 5*time.Millisecond, logging.NewNop())

	m.Start(context.Background())
	require.Eventually(t, func() bool { return prober.calls.Load() > 0 }, time.Second, time.Millisecond)

	m.Stop()
	after := prober.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, prober.calls.Load(), "no probes after Stop")

	// Stop is safe to call twice.
	m.Stop()
}
