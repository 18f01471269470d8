//go:build wireinject
// +build wireinject

package di

import (
	"RSIBoard/internal/domain/repository"
	internalrepo "RSIBoard/internal/repository"
	"RSIBoard/pkg/config"
	"RSIBoard/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Static configuration
		ProvideInstruments,
		ProvideTimeframes,
		ProvideBoardLayout,

		// Upstreams
		ProvideUpstreamHTTPClient,
		ProvideClickHouseClient,
		ProvideUpstreamLimiter,
		ProvideMarketSource,
		ProvideQuoteBook,
		ProvideQuoteSource,
		ProvideFinnhubStream,

		// Messaging and mirrors
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideTickHandler,
		ProvideRedisCache,
		ProvideSnapshotPublishers,

		// Snapshot store
		ProvideSnapshotStore,
		wire.Bind(new(repository.SnapshotStore), new(*internalrepo.MemorySnapshotStore)),

		// Use cases
		ProvideRefresher,
		ProvideScheduler,
		ProvideBoardUseCase,

		// HTTP
		ProvideRSIHandler,
		ProvideHTTPLimiter,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return nil, nil, nil
}
