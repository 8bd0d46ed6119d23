//go:build wireinject
// +build wireinject

package di

import (
	"SignalDesk/pkg/config"
	"SignalDesk/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideRegistry,
		ProvideMetrics,

		// Infrastructure clients
		ProvideCacheStore,
		ProvideEventPublisher,
		ProvideSignalSource,
		ProvideSender,
		ProvidePriceStream,

		// Repositories
		ProvideDatasets,
		ProvideSnapshotStore,
		ProvideWindow,

		// Use cases
		ProvideDispatcher,
		ProvideSignalPipeline,

		// Transport
		ProvideScheduler,
		ProvideLimiter,
		ProvideHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return nil, nil, nil
}
