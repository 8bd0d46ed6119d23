package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"SignalDesk/internal/domain/models"
	drepo "SignalDesk/internal/domain/repository"
	applogger "SignalDesk/pkg/logger"
)

// WindowFunc returns the upstream query range for a poll started at now.
type WindowFunc func(now time.Time) models.TimeRange

// PipelineConfig holds the scalar settings of a SignalPipeline.
type PipelineConfig struct {
	FallbackCount int
	Window        WindowFunc
	Credential    models.Credential
	Now           func() time.Time
}

// session is the selected dataset and its cursor. A dataset switch replaces
// the whole session, which resets the cursor and invalidates in-flight ticks.
type session struct {
	dataset models.Dataset
	cursor  models.PollCursor
}

// SignalPipeline polls, normalizes, detects and dispatches signals for the selected dataset.
type SignalPipeline struct {
	source     drepo.SignalSource
	fallback   *FallbackGenerator
	dispatcher *Dispatcher
	store      drepo.SnapshotStore
	datasets   drepo.Datasets
	metrics    drepo.Metrics
	logger     *applogger.Logger

	fallbackCount int
	window        WindowFunc
	credential    models.Credential
	now           func() time.Time

	tickMu sync.Mutex

	mu      sync.RWMutex
	session *session
	latest  map[models.Dataset]models.PollResult
}

// NewSignalPipeline creates a pipeline on the default dataset with a null cursor.
func NewSignalPipeline(
	source drepo.SignalSource,
	fallback *FallbackGenerator,
	dispatcher *Dispatcher,
	store drepo.SnapshotStore,
	datasets drepo.Datasets,
	cfg PipelineConfig,
	metrics drepo.Metrics,
	l *applogger.Logger,
) *SignalPipeline {
	if metrics == nil {
		metrics = drepo.NopMetrics{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Window == nil {
		cfg.Window = func(now time.Time) models.TimeRange {
			return models.TimeRange{Start: now.Add(-24 * time.Hour), End: now}
		}
	}
	return &SignalPipeline{
		source:        source,
		fallback:      fallback,
		dispatcher:    dispatcher,
		store:         store,
		datasets:      datasets,
		metrics:       metrics,
		logger:        l,
		fallbackCount: cfg.FallbackCount,
		window:        cfg.Window,
		credential:    cfg.Credential,
		now:           cfg.Now,
		session:       &session{dataset: datasets.Default()},
		latest:        make(map[models.Dataset]models.PollResult),
	}
}

// Dataset returns the selected dataset.
func (p *SignalPipeline) Dataset() models.Dataset {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.session.dataset
}

// Cursor returns the cursor of the selected dataset.
func (p *SignalPipeline) Cursor() models.PollCursor {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.session.cursor
}

// Datasets returns the dataset registry.
func (p *SignalPipeline) Datasets() drepo.Datasets { return p.datasets }

// SelectDataset switches the polled dataset and resets its cursor.
// Selecting the current dataset is a no-op.
func (p *SignalPipeline) SelectDataset(raw string) (models.Dataset, error) {
	ds, ok := p.datasets.Resolve(raw)
	if !ok {
		return ds, &models.SourceError{Kind: models.FailureInvalidDataset, Dataset: ds, Err: models.ErrUnsupportedDataset}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session.dataset == ds {
		return ds, nil
	}
	p.session = &session{dataset: ds}
	p.logger.Info("pipeline: dataset selected", applogger.String("table", string(ds)))
	return ds, nil
}

// Tick runs one poll: fetch (or fall back), detect, store and dispatch.
// It returns models.ErrStaleResult when the dataset changed while the fetch ran.
func (p *SignalPipeline) Tick(ctx context.Context) (models.PollResult, error) {
	p.tickMu.Lock()
	defer p.tickMu.Unlock()

	p.mu.RLock()
	sess := p.session
	cursor := sess.cursor
	p.mu.RUnlock()

	ds := sess.dataset
	start := p.now()
	result := models.PollResult{Dataset: ds, FetchedAt: start, NewSignals: []models.Signal{}}

	raws, err := p.source.FetchSignals(ctx, ds, p.window(start))
	p.metrics.RecordLatency("poll_fetch", p.now().Sub(start).Seconds())
	if err != nil {
		kind := models.FailureKindOf(err)
		if kind == "" {
			kind = models.FailureConnection
		}
		result.Signals = p.fallback.Generate(ds, p.fallbackCount)
		result.Degraded = true
		result.Failure = kind
		result.Error = err.Error()
		p.metrics.RecordFallback(string(ds), string(kind))
		p.logger.Warn("pipeline: upstream failed, serving synthetic signals",
			applogger.String("table", string(ds)),
			applogger.String("kind", string(kind)),
			applogger.Error(err),
		)
	} else {
		result.Signals = NormalizeAll(ds, raws)
	}
	result.Stats = Summarize(result.Signals)

	p.mu.Lock()
	if p.session != sess {
		p.mu.Unlock()
		p.metrics.RecordPoll(string(ds), "stale")
		p.logger.Debug("pipeline: discarding stale result", applogger.String("table", string(ds)))
		return models.PollResult{}, models.ErrStaleResult
	}
	if !result.Degraded {
		var fresh []models.Signal
		fresh, cursor = DetectNew(cursor, result.Signals)
		sess.cursor = cursor
		if fresh != nil {
			result.NewSignals = fresh
		}
	}
	result.Cursor = cursor
	p.latest[ds] = result
	p.mu.Unlock()

	if p.store != nil {
		if err := p.store.SaveResult(ctx, result); err != nil {
			p.metrics.RecordError("snapshot_store")
			p.logger.Warn("pipeline: store result failed", applogger.String("table", string(ds)), applogger.Error(err))
		}
	}

	if n := len(result.NewSignals); n > 0 {
		p.metrics.RecordNewSignals(string(ds), n)
		sum := p.dispatcher.DispatchAll(ctx, ds, result.NewSignals, p.credential)
		p.logger.Info("pipeline: new signals",
			applogger.String("table", string(ds)),
			applogger.Int("count", n),
			applogger.Int("sent", sum.Sent),
			applogger.Int("failed", sum.Failed),
			applogger.Int("skipped", sum.Skipped),
		)
	}

	status := "ok"
	if result.Degraded {
		status = "degraded"
	}
	p.metrics.RecordPoll(string(ds), status)
	return result, nil
}

// Run is the scheduler entry point: one tick with errors logged.
func (p *SignalPipeline) Run(ctx context.Context) {
	if _, err := p.Tick(ctx); err != nil && !errors.Is(err, models.ErrStaleResult) {
		p.logger.Error("pipeline: tick failed", applogger.Error(err))
	}
}

// Latest returns the most recent result for ds (the selected dataset when empty).
func (p *SignalPipeline) Latest(ctx context.Context, ds models.Dataset) (models.PollResult, bool, error) {
	if ds == "" {
		ds = p.Dataset()
	}

	p.mu.RLock()
	r, ok := p.latest[ds]
	p.mu.RUnlock()
	if ok || p.store == nil {
		return r, ok, nil
	}

	r, ok, err := p.store.LatestResult(ctx, ds)
	if err != nil {
		return models.PollResult{}, false, fmt.Errorf("latest %s: %w", ds, err)
	}
	return r, ok, nil
}

// Summarize counts decisions and averages ML confidence.
func Summarize(signals []models.Signal) models.SignalStats {
	st := models.SignalStats{Total: len(signals)}
	if len(signals) == 0 {
		return st
	}

	var sum float64
	latest := 0
	for i, s := range signals {
		switch s.Decision {
		case models.DecisionBuy:
			st.Buy++
		case models.DecisionSell:
			st.Sell++
		default:
			st.Wait++
		}
		sum += s.MLConfidence
		if s.Timestamp.After(signals[latest].Timestamp) {
			latest = i
		}
	}
	st.AvgConfidence = sum / float64(len(signals))
	l := signals[latest]
	st.Latest = &l
	return st
}
