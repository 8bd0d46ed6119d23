package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"SignalDesk/internal/domain/models"
	drepo "SignalDesk/internal/domain/repository"
	applogger "SignalDesk/pkg/logger"
)

// ErrStreamRunning is returned by Start on a stream that is already running.
var ErrStreamRunning = errors.New("price stream already running")

// Clock abstracts time for the reconnect timer.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// PriceStream keeps the latest ticker snapshot and reconnects forever.
//
// States: Disconnected -> Connecting -> Connected -> Disconnected. Readers
// only ever see whole snapshots.
type PriceStream struct {
	dialer   drepo.TickerDialer
	clock    Clock
	delay    time.Duration
	maxDelay time.Duration
	metrics  drepo.Metrics
	logger   *applogger.Logger

	snap  atomic.Pointer[models.PriceSnapshot]
	state atomic.Value

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// PriceStreamOption configures PriceStream.
type PriceStreamOption func(*PriceStream)

// WithStreamClock overrides the clock.
func WithStreamClock(c Clock) PriceStreamOption {
	return func(s *PriceStream) { s.clock = c }
}

// NewPriceStream creates a stopped stream. maxDelay above delay enables doubling backoff.
func NewPriceStream(dialer drepo.TickerDialer, delay, maxDelay time.Duration, metrics drepo.Metrics, l *applogger.Logger, opts ...PriceStreamOption) *PriceStream {
	if metrics == nil {
		metrics = drepo.NopMetrics{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	s := &PriceStream{
		dialer:   dialer,
		clock:    realClock{},
		delay:    delay,
		maxDelay: maxDelay,
		metrics:  metrics,
		logger:   l,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setState(models.StreamDisconnected)
	return s
}

// Start launches the connection loop.
func (s *PriceStream) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrStreamRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
	return nil
}

// Stop closes the active connection, cancels any pending reconnect and waits.
func (s *PriceStream) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// State returns the current connection state.
func (s *PriceStream) State() models.StreamState {
	return s.state.Load().(models.StreamState)
}

// Snapshot returns the latest snapshot, if any has arrived.
func (s *PriceStream) Snapshot() (models.PriceSnapshot, bool) {
	p := s.snap.Load()
	if p == nil {
		return models.PriceSnapshot{}, false
	}
	return *p, true
}

func (s *PriceStream) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer s.setState(models.StreamDisconnected)

	delay := s.delay
	for {
		if ctx.Err() != nil {
			return
		}

		s.setState(models.StreamConnecting)
		conn, err := s.dialer.Dial(ctx)
		if err == nil {
			s.setState(models.StreamConnected)
			s.logger.Info("price stream: connected")
			delay = s.delay
			err = s.consume(ctx, conn)
			_ = conn.Close()
		}
		s.setState(models.StreamDisconnected)

		if ctx.Err() != nil {
			return
		}
		s.metrics.RecordError("price_stream")
		s.logger.Warn("price stream: disconnected, reconnecting",
			applogger.Error(err),
			applogger.Duration("delay_ms", delay),
		)

		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(delay):
		}
		delay = s.nextDelay(delay)
	}
}

func (s *PriceStream) consume(ctx context.Context, conn drepo.TickerConn) error {
	for {
		snap, err := conn.Next(ctx)
		if err != nil {
			return err
		}
		if snap.ReceivedAt.IsZero() {
			snap.ReceivedAt = s.clock.Now()
		}
		s.snap.Store(&snap)
		s.metrics.RecordLastPrice(snap.Symbol, snap.Price)
	}
}

func (s *PriceStream) nextDelay(d time.Duration) time.Duration {
	if s.maxDelay <= s.delay {
		return s.delay
	}
	d *= 2
	if d > s.maxDelay {
		d = s.maxDelay
	}
	return d
}

func (s *PriceStream) setState(st models.StreamState) {
	s.state.Store(st)
	s.metrics.RecordStreamState(string(st), models.StreamStates...)
}
