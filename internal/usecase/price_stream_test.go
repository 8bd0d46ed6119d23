package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"SignalDesk/internal/domain/models"
	drepo "SignalDesk/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct {
	mu     sync.Mutex
	delays []time.Duration
	fire   chan time.Time
	now    time.Time
}

func newManualClock() *manualClock {
	return &manualClock{fire: make(chan time.Time), now: t0}
}

func (c *manualClock) Now() time.Time { return c.now }

func (c *manualClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delays = append(c.delays, d)
	return c.fire
}

func (c *manualClock) waits() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.delays))
	copy(out, c.delays)
	return out
}

type fakeConn struct {
	snaps  chan models.PriceSnapshot
	errs   chan error
	closed atomic.Bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{snaps: make(chan models.PriceSnapshot), errs: make(chan error)}
}

func (c *fakeConn) Next(ctx context.Context) (models.PriceSnapshot, error) {
	select {
	case <-ctx.Done():
		return models.PriceSnapshot{}, ctx.Err()
	case s := <-c.snaps:
		return s, nil
	case err := <-c.errs:
		return models.PriceSnapshot{}, err
	}
}

func (c *fakeConn) Close() error { c.closed.Store(true); return nil }

type dialResult struct {
	conn drepo.TickerConn
	err  error
}

type fakeDialer struct {
	results chan dialResult
	dials   atomic.Int32
}

func newFakeDialer() *fakeDialer { return &fakeDialer{results: make(chan dialResult)} }

func (d *fakeDialer) Dial(ctx context.Context) (drepo.TickerConn, error) {
	d.dials.Add(1)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-d.results:
		return r.conn, r.err
	}
}

func waitState(t *testing.T, s *PriceStream, want models.StreamState) {
	t.Helper()
	require.Eventually(t, func() bool { return s.State() == want }, 2*time.Second, time.Millisecond, "state %s", want)
}

func TestPriceStream_ConnectReadReconnect(t *testing.T) {
	clk := newManualClock()
	dialer := newFakeDialer()
	s := NewPriceStream(dialer, 3*time.Second, 3*time.Second, nil, nil, WithStreamClock(clk))

	assert.Equal(t, models.StreamDisconnected, s.State())
	_, ok := s.Snapshot()
	assert.False(t, ok)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()
	waitState(t, s, models.StreamConnecting)

	conn := newFakeConn()
	dialer.results <- dialResult{conn: conn}
	waitState(t, s, models.StreamConnected)

	conn.snaps <- models.PriceSnapshot{Symbol: "BTCUSDT", Price: 65000.5, High24h: 66000}
	conn.snaps <- models.PriceSnapshot{Symbol: "BTCUSDT", Price: 65001}
	require.Eventually(t, func() bool {
		snap, ok := s.Snapshot()
		return ok && snap.Price == 65001
	}, 2*time.Second, time.Millisecond)
	snap, _ := s.Snapshot()
	assert.Zero(t, snap.High24h, "snapshots are replaced wholesale")
	assert.Equal(t, t0, snap.ReceivedAt)

	conn.errs <- errors.New("connection reset")
	require.Eventually(t, func() bool { return len(clk.waits()) == 1 }, 2*time.Second, time.Millisecond)
	assert.Equal(t, models.StreamDisconnected, s.State())
	assert.True(t, conn.closed.Load())
	assert.Equal(t, 3*time.Second, clk.waits()[0])

	_, ok = s.Snapshot()
	assert.True(t, ok, "last snapshot stays readable while disconnected")

	clk.fire <- time.Time{}
	waitState(t, s, models.StreamConnecting)
	dialer.results <- dialResult{conn: newFakeConn()}
	waitState(t, s, models.StreamConnected)
	assert.Equal(t, int32(2), dialer.dials.Load())
}

func TestPriceStream_BackoffDoublesAndResets(t *testing.T) {
	clk := newManualClock()
	dialer := newFakeDialer()
	s := NewPriceStream(dialer, time.Second, 4*time.Second, nil, nil, WithStreamClock(clk))
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	for i := 0; i < 4; i++ {
		dialer.results <- dialResult{err: errors.New("refused")}
		require.Eventually(t, func() bool { return len(clk.waits()) == i+1 }, 2*time.Second, time.Millisecond)
		clk.fire <- time.Time{}
	}
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 4 * time.Second}, clk.waits())

	conn := newFakeConn()
	dialer.results <- dialResult{conn: conn}
	waitState(t, s, models.StreamConnected)
	conn.errs <- errors.New("eof")
	require.Eventually(t, func() bool { return len(clk.waits()) == 5 }, 2*time.Second, time.Millisecond)
	assert.Equal(t, time.Second, clk.waits()[4])
}

func TestPriceStream_FixedDelayWhenMaxNotLarger(t *testing.T) {
	clk := newManualClock()
	dialer := newFakeDialer()
	s := NewPriceStream(dialer, 3*time.Second, 0, nil, nil, WithStreamClock(clk))
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	for i := 0; i < 3; i++ {
		dialer.results <- dialResult{err: errors.New("refused")}
		require.Eventually(t, func() bool { return len(clk.waits()) == i+1 }, 2*time.Second, time.Millisecond)
		clk.fire <- time.Time{}
	}
	assert.Equal(t, []time.Duration{3 * time.Second, 3 * time.Second, 3 * time.Second}, clk.waits())
}

func TestPriceStream_StopCancelsPendingReconnect(t *testing.T) {
	clk := newManualClock()
	dialer := newFakeDialer()
	s := NewPriceStream(dialer, time.Hour, time.Hour, nil, nil, WithStreamClock(clk))
	require.NoError(t, s.Start(context.Background()))

	dialer.results <- dialResult{err: errors.New("refused")}
	require.Eventually(t, func() bool { return len(clk.waits()) == 1 }, 2*time.Second, time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not cancel the reconnect timer")
	}
	assert.Equal(t, models.StreamDisconnected, s.State())
	assert.Equal(t, int32(1), dialer.dials.Load())
}

func TestPriceStream_StopClosesActiveConnection(t *testing.T) {
	dialer := newFakeDialer()
	s := NewPriceStream(dialer, time.Second, time.Second, nil, nil, WithStreamClock(newManualClock()))
	require.NoError(t, s.Start(context.Background()))

	conn := newFakeConn()
	dialer.results <- dialResult{conn: conn}
	waitState(t, s, models.StreamConnected)

	s.Stop()
	assert.True(t, conn.closed.Load())
	assert.Equal(t, models.StreamDisconnected, s.State())
}

func TestPriceStream_StartTwice(t *testing.T) {
	s := NewPriceStream(newFakeDialer(), time.Second, time.Second, nil, nil)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.ErrorIs(t, s.Start(context.Background()), ErrStreamRunning)
}
