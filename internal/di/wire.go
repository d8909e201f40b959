//go:build wireinject
// +build wireinject

package di

import (
	"EmeraldAgent/pkg/config"
	"EmeraldAgent/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideRedisPublisher,
		ProvideRegistry,
		ProvideMetrics,

		// Engine
		ProvideLocator,
		ProvideInvoker,
		ProvideCatalog,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideAttemptStore,
		ProvideResultPublisher,

		// Use cases
		ProvideFallbackController,
		ProvideDecisionService,
		ProvideKafkaDecisionHandler,

		// Transports
		ProvideDecisionHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
