package models

import "time"

// StreamState is the live price stream connection state.
type StreamState string

const (
	StreamDisconnected StreamState = "disconnected"
	StreamConnecting   StreamState = "connecting"
	StreamConnected    StreamState = "connected"
)

// StreamStates lists every state, for metrics.
var StreamStates = []string{string(StreamDisconnected), string(StreamConnecting), string(StreamConnected)}

// PriceSnapshot is the latest ticker message. Replaced wholesale, never mutated.
type PriceSnapshot struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	High24h       float64   `json:"high24h"`
	Low24h        float64   `json:"low24h"`
	Volume24h     float64   `json:"volume24h"`
	ChangePercent float64   `json:"changePercent"`
	EventTime     time.Time `json:"eventTime"`
	ReceivedAt    time.Time `json:"receivedAt"`
}
