package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type routes struct{}

func (routes) RegisterRoutes(e *echo.Echo) {
	e.GET("/ok", func(c echo.Context) error { return SuccessResponse(c, "pong") })
	e.GET("/panic", func(echo.Context) error { panic("boom") })
	e.GET("/ip", func(c echo.Context) error { return c.String(http.StatusOK, c.RealIP()) })
	e.GET("/limited", func(c echo.Context) error {
		return AppErrorResponse(c, TooManyRequestsError("slow down"))
	})
}

func serve(s *Server, method, target string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func TestServer_ResponseEnvelopeAndRequestID(t *testing.T) {
	s := NewServer(routes{})

	rec := serve(s, http.MethodGet, "/ok", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":200,"message":"OK","data":"pong"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	rec = serve(s, http.MethodGet, "/ok", map[string]string{echo.HeaderXRequestID: "abc"})
	assert.Equal(t, "abc", rec.Header().Get(echo.HeaderXRequestID))
}

func TestServer_RecoversPanics(t *testing.T) {
	s := NewServer(routes{})
	rec := serve(s, http.MethodGet, "/panic", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_RealIP(t *testing.T) {
	ip := func(s *Server) string {
		req := httptest.NewRequest(http.MethodGet, "/ip", nil)
		req.RemoteAddr = "10.0.0.7:5100"
		req.Header.Set(echo.HeaderXForwardedFor, "203.0.113.9")
		req.Header.Set(echo.HeaderXRealIP, "203.0.113.10")
		rec := httptest.NewRecorder()
		s.Echo().ServeHTTP(rec, req)
		return rec.Body.String()
	}
	assert.Equal(t, "10.0.0.7", ip(NewServer(routes{})), "headers are ignored by default")
	assert.Equal(t, "203.0.113.9", ip(NewServer(routes{}, WithTrustProxy(true))))
}

func TestServer_AppErrorStatus(t *testing.T) {
	s := NewServer(routes{})
	rec := serve(s, http.MethodGet, "/limited", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_RATE_LIMITED")
}

func TestServer_CORS(t *testing.T) {
	s := NewServer(routes{}, WithCORS("https://desk.example"))

	rec := serve(s, http.MethodOptions, "/ok", map[string]string{"Origin": "https://desk.example"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://desk.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPut)

	rec = serve(s, http.MethodGet, "/ok", map[string]string{"Origin": "https://evil.example"})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	s = NewServer(routes{}, WithCORS())
	rec = serve(s, http.MethodGet, "/ok", map[string]string{"Origin": "https://desk.example"})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_MetricsUseRouteTemplate(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewServer(routes{}, WithMetrics(reg, "/metrics", 0))

	serve(s, http.MethodGet, "/ok", nil)
	serve(s, http.MethodGet, "/ok?x=1", nil)
	serve(s, http.MethodGet, "/nowhere", nil)

	n, err := testutil.GatherAndCount(reg, "http_requests_total")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)

	rec := serve(s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `http_requests_total{method="GET",route="/ok",status="200"} 2`))
}

func TestServer_StopWithoutStart(t *testing.T) {
	s := NewServer(nil, WithPort(0))
	assert.NoError(t, s.Stop(context.Background()))
}
