package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"SignalDesk/internal/domain/models"
	drepo "SignalDesk/internal/domain/repository"
	"SignalDesk/pkg/config"
	xhttp "SignalDesk/pkg/http"
	"SignalDesk/pkg/util"
)

// maxBodyBytes caps how much of an upstream response is read.
const maxBodyBytes = 32 << 20

// Client fetches raw signals from the analytics data service.
type Client struct {
	baseURL  string
	path     string
	datasets drepo.Datasets
	client   *xhttp.Client
}

// New builds a Client from upstream config.
func New(cfg config.UpstreamConfig, datasets drepo.Datasets, opts ...xhttp.ClientOption) *Client {
	opts = append([]xhttp.ClientOption{xhttp.WithTimeout(cfg.Timeout), xhttp.WithUserAgent("signaldesk")}, opts...)
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		path:     cfg.Path,
		datasets: datasets,
		client:   xhttp.NewClient(opts...),
	}
}

// FetchSignals issues one GET for dataset over window. Failures are *models.SourceError.
func (c *Client) FetchSignals(ctx context.Context, dataset models.Dataset, window models.TimeRange) ([]models.RawSignal, error) {
	if !c.datasets.IsSupported(dataset) {
		return nil, &models.SourceError{Kind: models.FailureInvalidDataset, Dataset: dataset, Err: models.ErrUnsupportedDataset}
	}

	resp, err := c.client.SendRequest(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + c.path,
		Headers: map[string]string{
			"Accept": "application/json",
		},
		QueryParams: map[string][]string{
			"table": {string(dataset)},
			"start": {util.FormatQueryTime(window.Start)},
			"end":   {util.FormatQueryTime(window.End)},
		},
	})
	if err != nil {
		return nil, &models.SourceError{Kind: transportKind(err), Dataset: dataset, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &models.SourceError{
			Kind:       models.FailureUpstreamStatus,
			Dataset:    dataset,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &models.SourceError{Kind: transportKind(err), Dataset: dataset, Err: fmt.Errorf("read body: %w", err)}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, &models.SourceError{Kind: models.FailureEmptyResponse, Dataset: dataset, StatusCode: resp.StatusCode}
	}

	raws, err := decodeEnvelope(body)
	if err != nil {
		return nil, &models.SourceError{Kind: models.FailureMalformedPayload, Dataset: dataset, StatusCode: resp.StatusCode, Err: err}
	}
	return raws, nil
}

// decodeEnvelope accepts only {"data": [ {...}, ... ]}. Numbers stay json.Number.
func decodeEnvelope(body []byte) ([]models.RawSignal, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var env map[string]json.RawMessage
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	data, ok := env["data"]
	if !ok {
		return nil, errors.New("missing data field")
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil || items == nil {
		return nil, errors.New("data is not an array")
	}

	out := make([]models.RawSignal, 0, len(items))
	for i, item := range items {
		d := json.NewDecoder(bytes.NewReader(item))
		d.UseNumber()
		var rec map[string]any
		if err := d.Decode(&rec); err != nil || rec == nil {
			return nil, fmt.Errorf("data[%d] is not an object", i)
		}
		out = append(out, models.RawSignal(rec))
	}
	return out, nil
}

func transportKind(err error) models.FailureKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.FailureTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return models.FailureTimeout
	}
	return models.FailureConnection
}

// Window yields the query range for a poll.
type Window struct {
	Start    time.Time
	End      time.Time
	Lookback time.Duration
}

// NewWindow parses the configured fixed bounds. Unset bounds mean a rolling lookback.
func NewWindow(cfg config.UpstreamConfig) (Window, error) {
	w := Window{Lookback: cfg.Lookback}
	if cfg.Start != "" {
		t, ok := util.ParseTime(cfg.Start)
		if !ok {
			return w, fmt.Errorf("upstream.start: unrecognized time %q", cfg.Start)
		}
		w.Start = t
	}
	if cfg.End != "" {
		t, ok := util.ParseTime(cfg.End)
		if !ok {
			return w, fmt.Errorf("upstream.end: unrecognized time %q", cfg.End)
		}
		w.End = t
	}
	return w, nil
}

// At returns the range to query at now.
func (w Window) At(now time.Time) models.TimeRange {
	r := models.TimeRange{Start: w.Start, End: w.End}
	if r.End.IsZero() {
		r.End = now
	}
	if r.Start.IsZero() {
		r.Start = r.End.Add(-w.Lookback)
	}
	return r
}
