package api

import (
	"errors"
	"net/http"
	"time"

	models "SignalDesk/internal/domain/models"
	domrepo "SignalDesk/internal/domain/repository"
	"SignalDesk/internal/service/ratelimit"
	"SignalDesk/internal/usecase"
	xhttp "SignalDesk/pkg/http"
	xlogger "SignalDesk/pkg/logger"

	"github.com/labstack/echo/v4"
)

// HandlerConfig holds the scalar settings of SignalsEchoHandler.
type HandlerConfig struct {
	// CacheTTL bounds how long a direct upstream response is served from cache. Zero disables caching.
	CacheTTL time.Duration
	Window   usecase.WindowFunc
	// OnSelect runs after a dataset switch, typically to trigger an immediate poll.
	OnSelect func(models.Dataset)
	Now      func() time.Time
}

// PriceReader exposes the live price stream.
type PriceReader interface {
	State() models.StreamState
	Snapshot() (models.PriceSnapshot, bool)
}

// SignalsEchoHandler serves the dashboard API.
type SignalsEchoHandler struct {
	logger     *xlogger.Logger
	pipeline   *usecase.SignalPipeline
	dispatcher *usecase.Dispatcher
	source     domrepo.SignalSource
	store      domrepo.SnapshotStore
	prices     PriceReader
	limiter    *ratelimit.Limiter
	cfg        HandlerConfig
}

func NewSignalsEchoHandler(
	logger *xlogger.Logger,
	pipeline *usecase.SignalPipeline,
	dispatcher *usecase.Dispatcher,
	source domrepo.SignalSource,
	store domrepo.SnapshotStore,
	prices PriceReader,
	limiter *ratelimit.Limiter,
	cfg HandlerConfig,
) *SignalsEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Window == nil {
		cfg.Window = func(now time.Time) models.TimeRange {
			return models.TimeRange{Start: now.Add(-24 * time.Hour), End: now}
		}
	}
	return &SignalsEchoHandler{
		logger:     logger,
		pipeline:   pipeline,
		dispatcher: dispatcher,
		source:     source,
		store:      store,
		prices:     prices,
		limiter:    limiter,
		cfg:        cfg,
	}
}

func (h *SignalsEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	g := e.Group("/api")
	g.GET("/signals", h.Signals)
	g.POST("/notify", h.Notify)
	g.GET("/dashboard", h.Dashboard)
	g.PUT("/dataset", h.SelectDataset)
	g.GET("/price", h.Price)
	g.GET("/timeline", h.Timeline)
}

// signalsError is the flat failure body of /api/signals.
type signalsError struct {
	Status         int    `json:"status"`
	Message        string `json:"message"`
	Code           string `json:"code"`
	Table          string `json:"table"`
	UpstreamStatus int    `json:"upstream_status,omitempty"`
}

// StatusForKind maps a fetch failure kind to the HTTP status returned to clients.
func StatusForKind(kind models.FailureKind) int {
	switch kind {
	case models.FailureInvalidDataset:
		return http.StatusBadRequest
	case models.FailureTimeout:
		return http.StatusGatewayTimeout
	case models.FailureConnection:
		return http.StatusServiceUnavailable
	case models.FailureUpstreamStatus:
		return http.StatusBadGateway
	case models.FailureEmptyResponse:
		return http.StatusFailedDependency
	case models.FailureMalformedPayload:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *SignalsEchoHandler) sourceError(c echo.Context, ds models.Dataset, err error) error {
	body := signalsError{Table: string(ds), Code: "internal", Message: err.Error()}
	var se *models.SourceError
	if errors.As(err, &se) {
		body.Code = string(se.Kind)
		body.UpstreamStatus = se.StatusCode
	}
	body.Status = StatusForKind(models.FailureKind(body.Code))
	return c.JSON(body.Status, body)
}

// Signals fetches the dataset straight from upstream, bypassing the poll cursor.
func (h *SignalsEchoHandler) Signals(c echo.Context) error {
	req := &models.SignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ds, ok := h.pipeline.Datasets().Resolve(req.Table)
	if !ok {
		return h.sourceError(c, ds, &models.SourceError{
			Kind:    models.FailureInvalidDataset,
			Dataset: ds,
			Err:     models.ErrUnsupportedDataset,
		})
	}

	ctx := c.Request().Context()
	if h.store != nil && h.cfg.CacheTTL > 0 {
		cached, hit, err := h.store.CachedSignals(ctx, ds)
		if err != nil {
			h.logger.Warn("signals cache read failed", xlogger.String("table", string(ds)), xlogger.Error(err))
		} else if hit {
			return xhttp.SuccessResponse(c, cached)
		}
	}

	raws, err := h.source.FetchSignals(ctx, ds, h.cfg.Window(h.cfg.Now()))
	if err != nil {
		h.logger.Warn("signals fetch failed", xlogger.String("table", string(ds)), xlogger.Error(err))
		return h.sourceError(c, ds, err)
	}
	signals := usecase.NormalizeAll(ds, raws)

	if h.store != nil && h.cfg.CacheTTL > 0 {
		if err := h.store.SaveSignals(ctx, ds, signals, h.cfg.CacheTTL); err != nil {
			h.logger.Warn("signals cache write failed", xlogger.String("table", string(ds)), xlogger.Error(err))
		}
	}
	return xhttp.SuccessResponse(c, signals)
}

// Notify sends one manual notification with the caller's credential.
func (h *SignalsEchoHandler) Notify(c echo.Context) error {
	if h.limiter != nil && !h.limiter.Allow(c.RealIP()) {
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many notification requests"))
	}

	req := &models.NotifyRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ds, ok := h.pipeline.Datasets().Resolve(req.Table)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_ONEOF", "table", "table is not a supported dataset", http.StatusBadRequest).
			WithParam("options", h.pipeline.Datasets().All()))
	}

	n := models.Notification{
		Decision:     models.Decision(*req.Decision),
		Dataset:      ds,
		Price:        req.Price,
		Message:      req.Message,
		Strength:     req.Strength,
		MLConfidence: req.MLConfidence,
	}
	cred := models.Credential{Token: req.Credential.Token, ChatID: req.Credential.ChatID}
	if err := h.dispatcher.Deliver(c.Request().Context(), n, cred); err != nil {
		h.logger.Error("notify failed", xlogger.String("table", string(ds)), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("notification could not be delivered").WithError(err))
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

type dashboardResponse struct {
	Selected models.Dataset     `json:"selected"`
	Datasets []models.Dataset   `json:"datasets"`
	Result   models.PollResult  `json:"result"`
	Stream   models.StreamState `json:"stream"`
}

// Dashboard returns the latest poll result for a dataset.
func (h *SignalsEchoHandler) Dashboard(c echo.Context) error {
	req := &models.SignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	var ds models.Dataset
	if req.Table != "" {
		var ok bool
		if ds, ok = h.pipeline.Datasets().Resolve(req.Table); !ok {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError("unsupported dataset").WithParam("table", req.Table))
		}
	}

	res, ok, err := h.pipeline.Latest(c.Request().Context(), ds)
	if err != nil {
		h.logger.Error("dashboard lookup failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("dashboard unavailable").WithError(err))
	}
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no poll result yet"))
	}
	return xhttp.SuccessResponse(c, dashboardResponse{
		Selected: h.pipeline.Dataset(),
		Datasets: h.pipeline.Datasets().All(),
		Result:   res,
		Stream:   h.streamState(),
	})
}

// SelectDataset switches the polled dataset.
func (h *SignalsEchoHandler) SelectDataset(c echo.Context) error {
	req := &models.DatasetRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	prev := h.pipeline.Dataset()
	ds, err := h.pipeline.SelectDataset(req.Table)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("unsupported dataset").
			WithParam("table", req.Table).
			WithParam("options", h.pipeline.Datasets().All()))
	}
	if ds != prev && h.cfg.OnSelect != nil {
		h.cfg.OnSelect(ds)
	}
	return xhttp.SuccessResponse(c, map[string]any{
		"table":  ds,
		"cursor": h.pipeline.Cursor(),
	})
}

type priceResponse struct {
	State    models.StreamState    `json:"state"`
	Snapshot *models.PriceSnapshot `json:"snapshot"`
}

// Price returns the stream state and the latest ticker snapshot, if any.
func (h *SignalsEchoHandler) Price(c echo.Context) error {
	return xhttp.SuccessResponse(c, priceResponse{State: h.streamState(), Snapshot: h.snapshot()})
}

// Timeline returns the latest signals of the selected dataset as chart points.
func (h *SignalsEchoHandler) Timeline(c echo.Context) error {
	req := &models.TimelineRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, _, err := h.pipeline.Latest(c.Request().Context(), "")
	if err != nil {
		h.logger.Error("timeline lookup failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("timeline unavailable").WithError(err))
	}
	return xhttp.SuccessResponse(c, usecase.BuildTimeline(res.Signals, req.Limit, h.snapshot(), h.cfg.Now()))
}

func (h *SignalsEchoHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"table":  h.pipeline.Dataset(),
		"stream": h.streamState(),
	})
}

func (h *SignalsEchoHandler) streamState() models.StreamState {
	if h.prices == nil {
		return models.StreamDisconnected
	}
	return h.prices.State()
}

func (h *SignalsEchoHandler) snapshot() *models.PriceSnapshot {
	if h.prices == nil {
		return nil
	}
	snap, ok := h.prices.Snapshot()
	if !ok {
		return nil
	}
	return &snap
}
