package fx

import (
	"database/sql"

	"combat-meter/internal/api"
	"combat-meter/internal/config"
	"combat-meter/internal/database"
	"combat-meter/internal/gamedata"
	"combat-meter/internal/live"
	"combat-meter/internal/logger"
	"combat-meter/internal/repository"
	"combat-meter/internal/server"
	"combat-meter/internal/service"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func ProvideEncounterRepository(sqlDB *sql.DB, cfg *config.Config, logger zerolog.Logger) *repository.EncounterRepository {
	return repository.NewEncounterRepository(sqlDB, cfg.AppVersion, logger)
}

// ProvideEngine hands finished encounters to the encounter service.
func ProvideEngine(cfg *config.Config, data *gamedata.Data, encounterSvc *service.EncounterService, logger zerolog.Logger) *live.Engine {
	return live.NewEngine(cfg, data, encounterSvc, logger)
}

var Module = fx.Options(
	fx.Provide(config.Load),
	fx.Provide(logger.New),
	fx.Invoke(config.LogLoaded),
	// migrations run inside database.New, nothing reads the store before they finish
	fx.Provide(database.New),
	fx.Provide(gamedata.LoadEmbedded),
	// repos
	fx.Provide(ProvideEncounterRepository),
	fx.Provide(repository.NewStatsUploadRepository),
	// api client
	fx.Provide(api.NewStatsClient),
	// svc
	fx.Provide(service.NewEncounterService),
	fx.Provide(service.NewStatsService),
	// live
	fx.Provide(ProvideEngine),
	// server
	fx.Provide(server.NewMeterServer),
)
