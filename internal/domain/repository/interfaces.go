package repository

import (
	"context"
	"time"

	"SignalDesk/internal/domain/models"
)

// SignalSource fetches raw signal records for one dataset.
type SignalSource interface {
	FetchSignals(ctx context.Context, dataset models.Dataset, window models.TimeRange) ([]models.RawSignal, error)
}

// TickerConn is one open ticker stream connection.
type TickerConn interface {
	// Next blocks until the next snapshot arrives or the connection fails.
	Next(ctx context.Context) (models.PriceSnapshot, error)
	Close() error
}

// TickerDialer opens ticker stream connections.
type TickerDialer interface {
	Dial(ctx context.Context) (TickerConn, error)
}

// Sender delivers a formatted text message to a chat.
type Sender interface {
	Send(ctx context.Context, cred models.Credential, text string) error
}

// EventPublisher publishes newly detected signals to a message bus.
type EventPublisher interface {
	PublishSignal(ctx context.Context, s models.Signal) error
	Close() error
}

// SnapshotStore holds the latest poll result per dataset and short-lived upstream responses.
type SnapshotStore interface {
	SaveResult(ctx context.Context, r models.PollResult) error
	LatestResult(ctx context.Context, dataset models.Dataset) (models.PollResult, bool, error)
	SaveSignals(ctx context.Context, dataset models.Dataset, signals []models.Signal, ttl time.Duration) error
	CachedSignals(ctx context.Context, dataset models.Dataset) ([]models.Signal, bool, error)
}

type Metrics interface {
	RecordPoll(dataset, result string)
	RecordFallback(dataset, kind string)
	RecordNewSignals(dataset string, n int)
	RecordNotification(channel, result string)
	RecordStreamState(state string, states ...string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordPoll(string, string)           {}
func (NopMetrics) RecordFallback(string, string)       {}
func (NopMetrics) RecordNewSignals(string, int)        {}
func (NopMetrics) RecordNotification(string, string)   {}
func (NopMetrics) RecordStreamState(string, ...string) {}
func (NopMetrics) RecordError(string)                  {}
func (NopMetrics) RecordLastPrice(string, float64)     {}
func (NopMetrics) RecordLatency(string, float64)       {}
