//go:build wireinject
// +build wireinject

package di

import (
	"FinFuse/pkg/config"
	"FinFuse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideRedisClient,
		ProvideRedisQueue,
		ProvideCacheService,
		ProvideBytesCache,

		// Repositories (with business logic)
		ProvideIntentStore,
		ProvideIntentPublisher,
		ProvideSignalStream,
		ProvideContextProvider,

		// Engine and use cases
		ProvideFusionEngine,
		ProvideFuseUseCase,
		ProvideFuseBatchUseCase,
		ProvideIntentsQueryUseCase,
		ProvideIntentProcessor,
		ProvideSnapshotTable,
		ProvideSignalIngest,
		ProvideSignalCollector,
		ProvideKafkaSignalsHandler,

		// Transport
		ProvideFusionHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
