package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"SignalDesk/internal/domain/models"
	drepo "SignalDesk/internal/domain/repository"
	"SignalDesk/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var window = models.TimeRange{
	Start: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2025, 7, 16, 23, 59, 59, 0, time.UTC),
}

func newTestClient(baseURL string, timeout time.Duration) *Client {
	return New(config.UpstreamConfig{BaseURL: baseURL, Path: "/data", Timeout: timeout},
		drepo.NewDatasets([]string{"b7", "b8"}, "b7"))
}

func sourceErr(t *testing.T, err error) *models.SourceError {
	t.Helper()
	var se *models.SourceError
	require.True(t, errors.As(err, &se), "expected *SourceError, got %T: %v", err, err)
	return se
}

func TestFetchSignals_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data", r.URL.Path)
		assert.Equal(t, "b7", r.URL.Query().Get("table"))
		assert.Equal(t, "2025-07-01 00:00:00", r.URL.Query().Get("start"))
		assert.Equal(t, "2025-07-16 23:59:59", r.URL.Query().Get("end"))
		_, _ = w.Write([]byte(`{"data":[{"id":1,"timestamp":"2025-07-10T00:00:00Z","signal":1,"price":"65000.5"}]}`))
	}))
	defer srv.Close()

	raws, err := newTestClient(srv.URL, time.Second).FetchSignals(context.Background(), "b7", window)
	require.NoError(t, err)
	require.Len(t, raws, 1)
	assert.Equal(t, json.Number("1"), raws[0]["id"])
	assert.Equal(t, json.Number("1"), raws[0]["signal"])
	assert.Equal(t, "65000.5", raws[0]["price"])
}

func TestFetchSignals_EmptyDataArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	raws, err := newTestClient(srv.URL, time.Second).FetchSignals(context.Background(), "b8", window)
	require.NoError(t, err)
	assert.Empty(t, raws)
}

func TestFetchSignals_InvalidDatasetMakesNoRequest(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { hits.Add(1) }))
	defer srv.Close()

	_, err := newTestClient(srv.URL, time.Second).FetchSignals(context.Background(), "b9", window)
	se := sourceErr(t, err)
	assert.Equal(t, models.FailureInvalidDataset, se.Kind)
	assert.ErrorIs(t, err, models.ErrUnsupportedDataset)
	assert.Zero(t, hits.Load())
}

func TestFetchSignals_UpstreamStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, time.Second).FetchSignals(context.Background(), "b7", window)
	se := sourceErr(t, err)
	assert.Equal(t, models.FailureUpstreamStatus, se.Kind)
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
	assert.Equal(t, models.Dataset("b7"), se.Dataset)
}

func TestFetchSignals_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := newTestClient(srv.URL, 50*time.Millisecond).FetchSignals(context.Background(), "b7", window)
	assert.Equal(t, models.FailureTimeout, sourceErr(t, err).Kind)
}

func TestFetchSignals_ContextDeadlineIsTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := newTestClient(srv.URL, 5*time.Second).FetchSignals(ctx, "b7", window)
	assert.Equal(t, models.FailureTimeout, sourceErr(t, err).Kind)
}

func TestFetchSignals_Connection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url, time.Second).FetchSignals(context.Background(), "b7", window)
	assert.Equal(t, models.FailureConnection, sourceErr(t, err).Kind)
}

func TestFetchSignals_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("  \n"))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, time.Second).FetchSignals(context.Background(), "b7", window)
	assert.Equal(t, models.FailureEmptyResponse, sourceErr(t, err).Kind)
}

func TestFetchSignals_Malformed(t *testing.T) {
	bodies := []string{
		`not json`,
		`[1,2,3]`,
		`{"rows":[]}`,
		`{"data":null}`,
		`{"data":{"id":1}}`,
		`{"data":[1,2]}`,
		`{"data":[{"id":1},"x"]}`,
	}
	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL, time.Second).FetchSignals(context.Background(), "b7", window)
			assert.Equal(t, models.FailureMalformedPayload, sourceErr(t, err).Kind)
		})
	}
}

func TestWindow(t *testing.T) {
	now := time.Date(2025, 7, 10, 12, 0, 0, 0, time.UTC)

	w, err := NewWindow(config.UpstreamConfig{Lookback: 24 * time.Hour})
	require.NoError(t, err)
	r := w.At(now)
	assert.Equal(t, now, r.End)
	assert.Equal(t, now.Add(-24*time.Hour), r.Start)

	w, err = NewWindow(config.UpstreamConfig{Start: "2025-07-01 00:00:00", End: "2025-07-16 23:59:59", Lookback: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, window, w.At(now))

	_, err = NewWindow(config.UpstreamConfig{Start: "yesterday"})
	assert.Error(t, err)
}
