//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"StockPredictor/internal/services/dataload"
	"StockPredictor/internal/usecase"
	"StockPredictor/pkg/config"
	"StockPredictor/pkg/server"
)

var predictionSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideClickHouseClient,
	ProvideSeriesStore,
	ProvideKafkaProducer,
	ProvideResultPublisher,
	ProvideHTTPClient,
	ProvideLoader,
	wire.Bind(new(usecase.SeriesLoader), new(*dataload.Loader)),
	ProvideTrainer,
	ProvideEngine,
	ProvideRunner,
	usecase.NewPredictionUseCase,
)

// InitializeApp wires up all dependencies and returns the application.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		predictionSet,

		// Cache, jobs and schedule
		ProvideRedisCache,
		ProvideCache,
		ProvideJobStore,
		ProvideRedisQueue,
		ProvideJobManager,
		ProvideScheduler,

		// Kafka intake
		ProvideKafkaConsumer,
		ProvideKafkaPredictionHandler,

		// HTTP
		ProvideRateLimiter,
		ProvidePredictionHandler,
		ProvideHealthHandler,
		ProvideHTTPServer,

		ProvideApp,
	)
	return &server.App{}, nil
}

// InitializePredictionUseCase wires the synchronous prediction path for the CLI.
func InitializePredictionUseCase(cfg *config.Config) (*usecase.PredictionUseCase, error) {
	wire.Build(predictionSet)
	return &usecase.PredictionUseCase{}, nil
}
