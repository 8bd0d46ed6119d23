package binance

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"SignalDesk/pkg/config"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const frame = `{"e":"24hrTicker","E":1752105600000,"s":"BTCUSDT","P":"-1.25","c":"65000.50","h":"66000.00","l":"64000.00","v":"1234.5"}`

func wsServer(t *testing.T, frames ...string) (*httptest.Server, <-chan string) {
	t.Helper()
	paths := make(chan string, 1)
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.Path
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		// hold the connection open until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	return srv, paths
}

func testConfig(srvURL string) config.TickerConfig {
	return config.TickerConfig{
		WebSocketURL:     "ws" + strings.TrimPrefix(srvURL, "http") + "/ws",
		Symbol:           "BTCUSDT",
		ReadTimeout:      2 * time.Second,
		HandshakeTimeout: time.Second,
	}
}

func TestDialer_ReadsTickerAndSkipsOtherFrames(t *testing.T) {
	srv, paths := wsServer(t, `{"result":null,"id":1}`, `garbage`, frame)
	defer srv.Close()

	conn, err := New(testConfig(srv.URL)).Dial(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, "/ws/btcusdt@ticker", <-paths)

	snap, err := conn.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", snap.Symbol)
	assert.InDelta(t, 65000.5, snap.Price, 1e-9)
	assert.InDelta(t, 66000.0, snap.High24h, 1e-9)
	assert.InDelta(t, 64000.0, snap.Low24h, 1e-9)
	assert.InDelta(t, 1234.5, snap.Volume24h, 1e-9)
	assert.InDelta(t, -1.25, snap.ChangePercent, 1e-9)
	assert.Equal(t, time.UnixMilli(1752105600000).UTC(), snap.EventTime)
	assert.False(t, snap.ReceivedAt.IsZero())
}

func TestConn_NextHonoursContext(t *testing.T) {
	srv, _ := wsServer(t)
	defer srv.Close()

	conn, err := New(testConfig(srv.URL)).Dial(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = conn.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConn_ServerCloseIsError(t *testing.T) {
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = conn.Close()
	}))
	defer srv.Close()

	conn, err := New(testConfig(srv.URL)).Dial(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Next(context.Background())
	assert.Error(t, err)
}

func TestDial_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(testConfig(url)).Dial(context.Background())
	assert.Error(t, err)
}

func TestParseTicker(t *testing.T) {
	now := time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC)

	snap, err := ParseTicker([]byte(frame), now)
	require.NoError(t, err)
	assert.Equal(t, now, snap.ReceivedAt)

	snap, err = ParseTicker([]byte(`{"c":12}`), now)
	require.NoError(t, err)
	assert.Equal(t, 12.0, snap.Price)

	for _, bad := range []string{`{}`, `{"c":"abc"}`, `[`} {
		_, err := ParseTicker([]byte(bad), now)
		assert.True(t, errors.Is(err, ErrNotTicker), bad)
	}
}
