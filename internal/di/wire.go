//go:build wireinject
// +build wireinject

package di

import (
	"SigPulse/pkg/config"
	"SigPulse/pkg/server"

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
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideDecisionStore,
		ProvideDecisionPublisher,
		ProvideExchangeStream,
		ProvideTrendFetcher,

		// Engine and use cases
		ProvideSignalPipeline,
		ProvideDecisionProcessor,
		ProvideTickProcessor,
		ProvideTickCollector,
		ProvideKafkaTicksHandler,

		// HTTP surface and application server
		ProvideEngineHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
