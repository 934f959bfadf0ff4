//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	domrepo "MDK/internal/domain/repository"
	internalrepo "MDK/internal/repository"
	"MDK/pkg/config"
	"MDK/pkg/metrics"
	"MDK/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application and
// a cleanup function that releases the clients it opened.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,
		wire.Bind(new(domrepo.Metrics), new(*metrics.Recorder)),

		// Infrastructure
		ProvideKVStore,
		ProvideCandleSource,
		ProvideTransport,

		// Repositories
		ProvideExperimentStore,
		wire.Bind(new(domrepo.ExperimentStore), new(*internalrepo.ExperimentStore)),
		ProvideEventPublisher,

		// Training
		ProvideModelFactory,
		ProvideTrainer,
		ProvideTrainingRunner,
		ProvideDispatcher,
		ProvideExperimentService,

		// Serving
		ProvideModelCache,
		ProvidePredictor,
		ProvideLimiter,
		ProvideHandlers,
		ProvideHTTPServer,

		ProvideApp,
	)
	return nil, nil, nil
}
