package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	polls         *prometheus.CounterVec
	fallbacks     *prometheus.CounterVec
	newSignals    *prometheus.CounterVec
	notifications *prometheus.CounterVec
	streamState   *prometheus.GaugeVec
	errorsTotal   *prometheus.CounterVec
	lastPrice     *prometheus.GaugeVec
	latency       *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder registered on reg.
// A nil reg falls back to the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		polls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signaldesk_polls_total",
				Help: "Total number of poll ticks by dataset and result",
			},
			[]string{"dataset", "result"},
		),
		fallbacks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signaldesk_fallbacks_total",
				Help: "Total number of synthetic fallbacks by dataset and failure kind",
			},
			[]string{"dataset", "kind"},
		),
		newSignals: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signaldesk_new_signals_total",
				Help: "Total number of newly detected signals",
			},
			[]string{"dataset"},
		),
		notifications: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signaldesk_notifications_total",
				Help: "Total number of notification attempts by channel and result",
			},
			[]string{"channel", "result"},
		),
		streamState: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "signaldesk_price_stream_state",
				Help: "Current price stream state (1 for the active state)",
			},
			[]string{"state"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signaldesk_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "signaldesk_last_price",
				Help: "Last recorded price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signaldesk_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordPoll records a completed poll tick.
func (r *Recorder) RecordPoll(dataset, result string) {
	r.polls.WithLabelValues(dataset, result).Inc()
}

// RecordFallback records a synthetic fallback.
func (r *Recorder) RecordFallback(dataset, kind string) {
	r.fallbacks.WithLabelValues(dataset, kind).Inc()
}

// RecordNewSignals adds n newly detected signals.
func (r *Recorder) RecordNewSignals(dataset string, n int) {
	if n <= 0 {
		return
	}
	r.newSignals.WithLabelValues(dataset).Add(float64(n))
}

// RecordNotification records one notification attempt.
func (r *Recorder) RecordNotification(channel, result string) {
	r.notifications.WithLabelValues(channel, result).Inc()
}

// RecordStreamState marks state as the active stream state among states.
func (r *Recorder) RecordStreamState(state string, states ...string) {
	for _, s := range states {
		r.streamState.WithLabelValues(s).Set(0)
	}
	r.streamState.WithLabelValues(state).Set(1)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
