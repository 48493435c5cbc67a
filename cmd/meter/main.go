package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"combat-meter/internal/config"
	"combat-meter/internal/constants"
	fxmodules "combat-meter/internal/fx"
	"combat-meter/internal/live"
	"combat-meter/internal/middleware"
	"combat-meter/internal/packet"
	"combat-meter/internal/replay"
	"combat-meter/internal/server"
	"combat-meter/internal/service"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		fxmodules.Module,
		// hooks stop in reverse order: the engine drains before the store closes
		fx.Invoke(runServer),
		fx.Invoke(runEngine),
	).Run()
}

func runEngine(
	lc fx.Lifecycle,
	engine *live.Engine,
	encounterSvc *service.EncounterService,
	cfg *config.Config,
	logger zerolog.Logger,
) {
	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan packet.Event, constants.EventBuffer)
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if cfg.ReplayPath != "" {
				go func() {
					if err := replay.StreamFile(ctx, cfg.ReplayPath, events, logger); err != nil && !errors.Is(err, context.Canceled) {
						logger.Error().Err(err).Str("replay_path", cfg.ReplayPath).Msg("replay failed")
					}
				}()
			}

			go func() {
				defer close(done)
				if err := engine.Run(ctx, events); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error().Err(err).Msg("live engine failed")
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			<-done
			encounterSvc.WaitUploads()
			return nil
		},
	})
}

func runServer(
	lc fx.Lifecycle,
	meterServer *server.MeterServer,
	cfg *config.Config,
	db *sql.DB,
	logger zerolog.Logger,
) {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: c.Handler(middleware.RequestID(logger)(meterServer.Routes())),
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Info().Str("addr", srv.Addr).Msg("server starting")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal().Err(err).Msg("server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("server shutdown failed")
				return err
			}

			if err := db.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing database connection")
			}
			logger.Info().Msg("server stopped gracefully")
			return nil
		},
	})
}
