package models

import (
	"strings"
	"time"
)

// Dataset names an upstream source table ("b7", "b8").
type Dataset string

// Decision is the upstream signal code.
type Decision int

const (
	DecisionSell Decision = 0
	DecisionBuy  Decision = 1
	DecisionWait Decision = 2
)

// Valid reports whether d is one of the known codes.
func (d Decision) Valid() bool {
	return d == DecisionSell || d == DecisionBuy || d == DecisionWait
}

// Label returns the display label.
func (d Decision) Label() string {
	switch d {
	case DecisionBuy:
		return "BUY"
	case DecisionSell:
		return "SELL"
	default:
		return "WAIT"
	}
}

// Trend is the short-term direction derived from trend_1h.
type Trend string

const (
	TrendUp      Trend = "up"
	TrendDown    Trend = "down"
	TrendNeutral Trend = "neutral"
)

// Color returns the dashboard color for t.
func (t Trend) Color() string {
	switch t {
	case TrendUp:
		return "#22c55e"
	case TrendDown:
		return "#ef4444"
	default:
		return "#f59e0b"
	}
}

// Indicators holds optional technical indicator values. Nil means absent or not numeric.
type Indicators struct {
	RSI              *float64 `json:"rsi"`
	MACD             *float64 `json:"macd"`
	SMAShort         *float64 `json:"sma_short"`
	SMALong          *float64 `json:"sma_long"`
	BollingerUpper   *float64 `json:"bollinger_upper"`
	BollingerLower   *float64 `json:"bollinger_lower"`
	StochasticK      *float64 `json:"stochastic_k"`
	StochasticD      *float64 `json:"stochastic_d"`
	ADX              *float64 `json:"adx"`
	ATR              *float64 `json:"atr"`
	VolumeMultiplier *float64 `json:"volume_multiplier"`
	BuySellRatio     *float64 `json:"buy_sell_ratio"`
	CryptoVIX        *float64 `json:"crypto_vix"`
	Trend1h          *float64 `json:"trend_1h"`
}

// Signal is one normalized trading signal.
type Signal struct {
	ID           string     `json:"id"`
	Timestamp    time.Time  `json:"timestamp"`
	Dataset      Dataset    `json:"table"`
	Decision     Decision   `json:"decision"`
	Label        string     `json:"label"`
	Price        float64    `json:"price"`
	Strength     float64    `json:"strength"`
	MLConfidence float64    `json:"mlConfidence"`
	Message      string     `json:"message,omitempty"`
	Indicators   Indicators `json:"indicators"`
	Trend        Trend      `json:"trend"`
	TrendColor   string     `json:"trendColor"`
	Synthetic    bool       `json:"synthetic,omitempty"`
}

// RawSignal is one upstream record as decoded from JSON.
type RawSignal map[string]any

// TimeRange bounds an upstream query.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// PollCursor tracks the newest signal timestamp seen for a dataset. LastSeen nil means nothing seen yet.
type PollCursor struct {
	LastSeen *time.Time `json:"lastSeen"`
}

// IsNull reports whether the cursor has not been seeded.
func (c PollCursor) IsNull() bool { return c.LastSeen == nil }

// SignalStats summarizes a poll result.
type SignalStats struct {
	Total         int     `json:"total"`
	Buy           int     `json:"buy"`
	Sell          int     `json:"sell"`
	Wait          int     `json:"wait"`
	AvgConfidence float64 `json:"avgConfidence"`
	Latest        *Signal `json:"latest,omitempty"`
}

// PollResult is the outcome of one pipeline tick.
type PollResult struct {
	Dataset    Dataset     `json:"table"`
	FetchedAt  time.Time   `json:"fetchedAt"`
	Signals    []Signal    `json:"signals"`
	Degraded   bool        `json:"degraded"`
	Failure    FailureKind `json:"failure,omitempty"`
	Error      string      `json:"error,omitempty"`
	Stats      SignalStats `json:"stats"`
	Cursor     PollCursor  `json:"cursor"`
	NewSignals []Signal    `json:"newSignals"`
}

// TimelinePoint is one point of the dashboard price chart.
type TimelinePoint struct {
	Time     time.Time `json:"time"`
	Price    float64   `json:"price"`
	Decision *Decision `json:"decision,omitempty"`
	Label    string    `json:"label,omitempty"`
	Live     bool      `json:"live,omitempty"`
}

// Credential addresses a notification channel.
type Credential struct {
	Token  string
	ChatID string
}

// Complete reports whether both parts are present.
func (c Credential) Complete() bool {
	return strings.TrimSpace(c.Token) != "" && strings.TrimSpace(c.ChatID) != ""
}

// Notification is the content of one outgoing message.
type Notification struct {
	Decision     Decision
	Dataset      Dataset
	Price        float64
	Message      string
	Strength     float64
	MLConfidence float64
	Time         time.Time
}

// NotificationFromSignal builds the notification for s.
func NotificationFromSignal(s Signal) Notification {
	return Notification{
		Decision:     s.Decision,
		Dataset:      s.Dataset,
		Price:        s.Price,
		Message:      s.Message,
		Strength:     s.Strength,
		MLConfidence: s.MLConfidence,
		Time:         s.Timestamp,
	}
}

// DispatchSummary counts outcomes of a batch dispatch.
type DispatchSummary struct {
	Sent    int
	Failed  int
	Skipped int
}
