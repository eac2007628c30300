package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if level, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info")); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	config, err := loadConfig(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Postgres only comes up when the store needs it.
	var pool *pgxpool.Pool
	if config.Store.Backend == "postgres" {
		pool, err = setupDatabase(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to setup database")
		}
		defer pool.Close()
	}

	services, err := setupServices(config, pool)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to setup services")
	}

	log.Info().
		Str("store", config.Store.Backend).
		Bool("nats", config.NATS.Enabled).
		Msg("starting draftroomd")

	// Connection manager broadcast loop.
	go services.ConnectionManager.Manager.Start(ctx)

	// Deadline scheduler: auto-picks for expired turns.
	go func() {
		if err := services.Scheduler.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("scheduler exited")
		}
	}()

	// JetStream → WebSocket fan-out, when NATS is on.
	if consumer := services.ConnectionManager.EventConsumer; consumer != nil {
		defer consumer.Close()
		go func() {
			if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("event consumer exited")
			}
		}()
	}

	server := setupServer(services)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	cancel()
	log.Info().Msg("draftroomd shutdown complete")
}
