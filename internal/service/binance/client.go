package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"SignalDesk/internal/domain/models"
	drepo "SignalDesk/internal/domain/repository"
	"SignalDesk/pkg/config"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

// ErrNotTicker marks a frame that is not a 24h ticker event.
var ErrNotTicker = errors.New("binance: not a ticker frame")

// Dialer opens Binance individual symbol ticker streams.
type Dialer struct {
	url         string
	readTimeout time.Duration
	dialer      *websocket.Dialer
	now         func() time.Time
}

// New creates a Dialer for cfg.Symbol on cfg.WebSocketURL.
func New(cfg config.TickerConfig) *Dialer {
	return &Dialer{
		url:         StreamURL(cfg.WebSocketURL, cfg.Symbol),
		readTimeout: cfg.ReadTimeout,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		now: time.Now,
	}
}

// StreamURL builds {base}/{symbol}@ticker.
func StreamURL(base, symbol string) string {
	return strings.TrimRight(base, "/") + "/" + strings.ToLower(symbol) + "@ticker"
}

// Dial establishes the WebSocket connection.
func (d *Dialer) Dial(ctx context.Context) (drepo.TickerConn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, d.url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("binance connect: %w", err)
	}
	return &Conn{conn: conn, readTimeout: d.readTimeout, now: d.now}, nil
}

// Conn is one ticker stream connection.
type Conn struct {
	conn        *websocket.Conn
	readTimeout time.Duration
	now         func() time.Time
}

// Next reads frames until a ticker event arrives. Frames that are not ticker events are skipped.
func (c *Conn) Next(ctx context.Context) (models.PriceSnapshot, error) {
	stop := context.AfterFunc(ctx, func() { _ = c.conn.Close() })
	defer stop()

	for {
		if c.readTimeout > 0 {
			_ = c.conn.SetReadDeadline(c.now().Add(c.readTimeout))
		}
		_, b, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return models.PriceSnapshot{}, ctx.Err()
			}
			return models.PriceSnapshot{}, fmt.Errorf("binance read: %w", err)
		}
		snap, err := ParseTicker(b, c.now())
		if err != nil {
			continue
		}
		return snap, nil
	}
}

// Close closes the WS connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}

type tickerFrame struct {
	Event     string      `json:"e"`
	EventTime int64       `json:"E"`
	Symbol    string      `json:"s"`
	Close     json.Number `json:"c"`
	High      json.Number `json:"h"`
	Low       json.Number `json:"l"`
	Volume    json.Number `json:"v"`
	ChangePct json.Number `json:"P"`
}

// ParseTicker decodes a 24hrTicker frame. Binance sends numbers as strings.
func ParseTicker(b []byte, receivedAt time.Time) (models.PriceSnapshot, error) {
	var f tickerFrame
	if err := json.Unmarshal(b, &f); err != nil {
		return models.PriceSnapshot{}, fmt.Errorf("%w: %v", ErrNotTicker, err)
	}
	if f.Close == "" {
		return models.PriceSnapshot{}, ErrNotTicker
	}
	price, err := decimal.NewFromString(f.Close.String())
	if err != nil {
		return models.PriceSnapshot{}, fmt.Errorf("%w: price %q", ErrNotTicker, f.Close)
	}

	snap := models.PriceSnapshot{
		Symbol:        f.Symbol,
		Price:         price.InexactFloat64(),
		High24h:       number(f.High),
		Low24h:        number(f.Low),
		Volume24h:     number(f.Volume),
		ChangePercent: number(f.ChangePct),
		ReceivedAt:    receivedAt,
	}
	if f.EventTime > 0 {
		snap.EventTime = time.UnixMilli(f.EventTime).UTC()
	}
	return snap, nil
}

func number(n json.Number) float64 {
	if n == "" {
		return 0
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return 0
	}
	return d.InexactFloat64()
}
