package main

import (
	"context"
	"errors"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"

	"go-fraud-score-dashboard/internal/config"
	httpapi "go-fraud-score-dashboard/internal/http"
	"go-fraud-score-dashboard/internal/logger"
)

var version = "dev"

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	srv, err := httpapi.NewServer(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize server")
	}

	go func() {
		log.Info().Str("version", version).Str("addr", cfg.ListenAddr).Msg("starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("server stopped")
}
