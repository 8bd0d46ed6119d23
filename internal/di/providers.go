package di

import (
	"context"
	"fmt"
	"time"

	"SignalDesk/internal/domain/models"
	"SignalDesk/internal/domain/repository"
	"SignalDesk/internal/handler/api"
	internalrepo "SignalDesk/internal/repository"
	"SignalDesk/internal/service/binance"
	"SignalDesk/internal/service/ratelimit"
	"SignalDesk/internal/service/telegram"
	"SignalDesk/internal/service/upstream"
	"SignalDesk/internal/usecase"
	"SignalDesk/pkg/cache"
	"SignalDesk/pkg/config"
	xhttp "SignalDesk/pkg/http"
	pkgkafka "SignalDesk/pkg/kafka"
	applogger "SignalDesk/pkg/logger"
	"SignalDesk/pkg/metrics"
	"SignalDesk/pkg/scheduler"
	"SignalDesk/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideRegistry creates the Prometheus registry with runtime collectors.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) repository.Metrics {
	return metrics.New(reg)
}

func ProvideDatasets(cfg *config.Config) repository.Datasets {
	return repository.NewDatasets(cfg.Datasets.Supported, cfg.Datasets.Default)
}

// ProvideCacheStore creates the configured cache backend.
func ProvideCacheStore(cfg *config.Config) (cache.Store, func(), error) {
	var store cache.Store
	switch cfg.Cache.Backend {
	case "redis":
		rc, err := cache.NewRedisCache(
			cache.WithRedisHost(cfg.Cache.Redis.Host),
			cache.WithRedisPort(cfg.Cache.Redis.Port),
			cache.WithRedisPassword(cfg.Cache.Redis.Password),
			cache.WithRedisDB(cfg.Cache.Redis.DB),
			cache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
			cache.WithRedisPool(cfg.Cache.Redis.PoolSize, cfg.Cache.Redis.MinIdleConns, cfg.Cache.Redis.PoolTimeout),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("redis cache: %w", err)
		}
		store = rc
	default:
		store = cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Cache.MaxSize))
	}
	return store, func() { _ = store.Close() }, nil
}

func ProvideSnapshotStore(store cache.Store, cfg *config.Config) repository.SnapshotStore {
	return internalrepo.NewCacheSnapshotStore(store, cfg.Cache.ResultTTL)
}

// ProvideSignalSource creates the analytics service client.
func ProvideSignalSource(cfg *config.Config, datasets repository.Datasets) repository.SignalSource {
	return upstream.New(cfg.Upstream, datasets)
}

// ProvideWindow resolves the upstream query window.
func ProvideWindow(cfg *config.Config) (usecase.WindowFunc, error) {
	w, err := upstream.NewWindow(cfg.Upstream)
	if err != nil {
		return nil, err
	}
	return w.At, nil
}

func ProvideSender(cfg *config.Config) repository.Sender {
	return telegram.New(cfg.Telegram)
}

// ProvideEventPublisher creates the Kafka sink for new signals. It is nil when Kafka is disabled.
func ProvideEventPublisher(cfg *config.Config, reg *prometheus.Registry) (repository.EventPublisher, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithRegisterer(reg),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	pub := internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)
	return pub, func() { _ = pub.Close() }, nil
}

// ProvideDispatcher creates the notification dispatcher.
func ProvideDispatcher(
	cfg *config.Config,
	sender repository.Sender,
	pub repository.EventPublisher,
	m repository.Metrics,
	l *applogger.Logger,
) (*usecase.Dispatcher, error) {
	loc, err := time.LoadLocation(cfg.Notify.Timezone)
	if err != nil {
		return nil, fmt.Errorf("notify.timezone: %w", err)
	}
	var opts []usecase.DispatcherOption
	if pub != nil {
		opts = append(opts, usecase.WithPublisher(pub))
	}
	return usecase.NewDispatcher(sender, cfg.Notify.Enabled, loc, m, l, opts...), nil
}

// ProvideSignalPipeline creates the polling pipeline.
func ProvideSignalPipeline(
	cfg *config.Config,
	source repository.SignalSource,
	dispatcher *usecase.Dispatcher,
	store repository.SnapshotStore,
	datasets repository.Datasets,
	window usecase.WindowFunc,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.SignalPipeline {
	return usecase.NewSignalPipeline(source, usecase.NewFallbackGenerator(), dispatcher, store, datasets,
		usecase.PipelineConfig{
			FallbackCount: cfg.Poll.FallbackCount,
			Window:        window,
			Credential:    models.Credential{Token: cfg.Telegram.BotToken, ChatID: cfg.Telegram.ChatID},
		}, m, l)
}

// ProvidePriceStream creates the live ticker stream. It is started by the app only when enabled.
func ProvidePriceStream(cfg *config.Config, m repository.Metrics, l *applogger.Logger) *usecase.PriceStream {
	return usecase.NewPriceStream(binance.New(cfg.Ticker), cfg.Ticker.ReconnectDelay, cfg.Ticker.ReconnectMaxDelay, m, l)
}

func ProvideScheduler(l *applogger.Logger) *scheduler.Runner {
	return scheduler.New(context.Background(), l)
}

func ProvideLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Notify.RateLimit.Capacity, cfg.Notify.RateLimit.RefillPerSec)
}

// ProvideHandler creates the HTTP API handler. Selecting a dataset triggers an immediate poll.
func ProvideHandler(
	cfg *config.Config,
	l *applogger.Logger,
	pipeline *usecase.SignalPipeline,
	dispatcher *usecase.Dispatcher,
	source repository.SignalSource,
	store repository.SnapshotStore,
	stream *usecase.PriceStream,
	limiter *ratelimit.Limiter,
	runner *scheduler.Runner,
	window usecase.WindowFunc,
) xhttp.Handler {
	return api.NewSignalsEchoHandler(l, pipeline, dispatcher, source, store, stream, limiter, api.HandlerConfig{
		CacheTTL: cfg.Cache.TTL,
		Window:   window,
		OnSelect: func(models.Dataset) {
			runner.RunNow("signals-poll", cfg.Poll.TickTimeout, pipeline.Run)
		},
	})
}

// ProvideHTTPServer creates the Echo server.
func ProvideHTTPServer(cfg *config.Config, h xhttp.Handler, reg *prometheus.Registry, l *applogger.Logger) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithCORS(cfg.Server.CORSOrigins...),
		xhttp.WithTrustProxy(cfg.Server.TrustProxy),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(l),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(reg, cfg.Metrics.Path, cfg.Server.SlowThreshold))
	}
	return xhttp.NewServer(h, opts...)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	runner *scheduler.Runner,
	pipeline *usecase.SignalPipeline,
	stream *usecase.PriceStream,
) *server.App {
	return server.New(cfg, l, httpServer, runner, pipeline, stream)
}
