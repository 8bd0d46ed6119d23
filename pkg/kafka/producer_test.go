package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestNewProducer_RequiresBrokers(t *testing.T) {
	_, err := NewProducer()
	assert.Error(t, err)
}

func TestProducer_PublishEncodesJSON(t *testing.T) {
	w := &recordingWriter{}
	reg := prometheus.NewRegistry()
	p := newProducer(w, "gzip", reg)
	fixed := time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	err := p.Publish(context.Background(), "signals", []byte("b7"), map[string]int{"decision": 1})
	require.NoError(t, err)

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "signals", w.msgs[0].Topic)
	assert.Equal(t, []byte("b7"), w.msgs[0].Key)
	assert.JSONEq(t, `{"decision":1}`, string(w.msgs[0].Value))
	assert.Equal(t, fixed, w.msgs[0].Time)
	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.msgsTotal.WithLabelValues("signals", "gzip", "ok")))
}

func TestProducer_PublishPassesRawBytes(t *testing.T) {
	w := &recordingWriter{}
	p := newProducer(w, "gzip", nil)

	require.NoError(t, p.Publish(context.Background(), "t", nil, "plain"))
	require.NoError(t, p.Publish(context.Background(), "t", nil, []byte("raw")))

	assert.Equal(t, "plain", string(w.msgs[0].Value))
	assert.Equal(t, "raw", string(w.msgs[1].Value))
}

func TestProducer_PublishWrapsWriterError(t *testing.T) {
	boom := errors.New("broker down")
	p := newProducer(&recordingWriter{err: boom}, "gzip", prometheus.NewRegistry())

	err := p.Publish(context.Background(), "t", nil, "x")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.msgsTotal.WithLabelValues("t", "gzip", "error")))
}

func TestParseCompression(t *testing.T) {
	assert.Equal(t, kafka.Snappy, parseCompression("snappy"))
	assert.Equal(t, kafka.Zstd, parseCompression("zstd"))
	assert.Equal(t, kafka.Gzip, parseCompression("unknown"))
}
