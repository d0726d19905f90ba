//go:build wireinject
// +build wireinject

package di

import (
	"CoilScan/pkg/config"
	"CoilScan/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideCache,
		ProvideReportPublisher,

		// Repositories and sources
		ProvideCandleStore,
		ProvideCandleSource,
		ProvideCandleStream,

		// Use cases
		ProvideUniverseResolver,
		ProvideIngestor,
		ProvideStageEvaluator,
		ProvideMTFAAggregator,
		ProvideScanner,
		ProvideTailCollector,

		// HTTP and application server
		ProvideHTTPHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
