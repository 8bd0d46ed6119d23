package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"SignalDesk/internal/domain/models"
	"SignalDesk/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProducer struct {
	topic  string
	key    []byte
	value  interface{}
	err    error
	closed bool
}

func (f *fakeProducer) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	f.topic, f.key, f.value = topic, key, value
	return f.err
}

func (f *fakeProducer) Close() error { f.closed = true; return nil }

func TestKafkaPublisher_PublishSignal(t *testing.T) {
	fp := &fakeProducer{}
	pub := NewKafkaPublisher(fp, "signaldesk.signals.new")
	ts := time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC)

	err := pub.PublishSignal(context.Background(), models.Signal{
		ID: "1", Dataset: "b7", Timestamp: ts, Decision: models.DecisionBuy, Label: "BUY", Price: 65000.5,
	})
	require.NoError(t, err)
	assert.Equal(t, "signaldesk.signals.new", fp.topic)
	assert.Equal(t, []byte("b7"), fp.key)

	raw, err := json.Marshal(fp.value)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "signal.new", got["type"])
	assert.Equal(t, "b7", got["table"])
	assert.Equal(t, float64(1), got["decision"])
	assert.Equal(t, 65000.5, got["price"])

	require.NoError(t, pub.Close())
	assert.True(t, fp.closed)
}

func TestKafkaPublisher_PropagatesError(t *testing.T) {
	boom := errors.New("down")
	pub := NewKafkaPublisher(&fakeProducer{err: boom}, "t")
	assert.ErrorIs(t, pub.PublishSignal(context.Background(), models.Signal{}), boom)
}

func TestCacheSnapshotStore_RoundTrip(t *testing.T) {
	mc := cache.NewMemoryCache(cache.WithMemoryCleanup(0))
	defer mc.Close()
	s := NewCacheSnapshotStore(mc, time.Minute)
	ctx := context.Background()

	_, ok, err := s.LatestResult(ctx, "b7")
	require.NoError(t, err)
	assert.False(t, ok)

	rsi := 55.5
	ts := time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC)
	in := models.PollResult{
		Dataset:  "b7",
		Degraded: true,
		Failure:  models.FailureTimeout,
		Signals:  []models.Signal{{ID: "1", Timestamp: ts, Indicators: models.Indicators{RSI: &rsi}}},
		Cursor:   models.PollCursor{LastSeen: &ts},
	}
	require.NoError(t, s.SaveResult(ctx, in))

	out, ok, err := s.LatestResult(ctx, "b7")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, out.Degraded)
	assert.Equal(t, models.FailureTimeout, out.Failure)
	require.Len(t, out.Signals, 1)
	require.NotNil(t, out.Signals[0].Indicators.RSI)
	assert.Equal(t, 55.5, *out.Signals[0].Indicators.RSI)
	assert.Nil(t, out.Signals[0].Indicators.MACD)
	require.NotNil(t, out.Cursor.LastSeen)
	assert.True(t, ts.Equal(*out.Cursor.LastSeen))

	_, ok, err = s.LatestResult(ctx, "b8")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCacheSnapshotStore_SignalsRespectTTL(t *testing.T) {
	mc := cache.NewMemoryCache(cache.WithMemoryCleanup(0))
	defer mc.Close()
	s := NewCacheSnapshotStore(mc, time.Minute)
	ctx := context.Background()

	require.NoError(t, s.SaveSignals(ctx, "b7", []models.Signal{{ID: "a"}}, 0))
	_, ok, err := s.CachedSignals(ctx, "b7")
	require.NoError(t, err)
	assert.False(t, ok, "zero ttl disables response caching")

	require.NoError(t, s.SaveSignals(ctx, "b7", []models.Signal{{ID: "a"}}, time.Minute))
	got, ok, err := s.CachedSignals(ctx, "b7")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", got[0].ID)
}
