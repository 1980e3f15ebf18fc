package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mcdev12/codebattle/go/internal/gameconfig"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("codebattle exited with error")
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := gameconfig.Load()
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(cfg.Level())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := setupServices(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to set up services: %w", err)
	}
	defer services.Close()

	server := setupServer(cfg, services)

	log.Info().
		Str("port", cfg.Port).
		Int("hand_size", cfg.Game.HandSize).
		Int("base_duration_sec", cfg.Game.BaseDurationSec).
		Bool("judge_configured", cfg.Judge.URL != "").
		Bool("relay_enabled", services.Relay != nil).
		Bool("debug_rewards", cfg.Game.DebugRewards).
		Msg("starting codebattle server")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return services.Rooms.Run(gctx) })
	g.Go(func() error { return services.Gateway.Start(gctx) })
	if services.Relay != nil {
		g.Go(func() error { return services.Relay.Run(gctx) })
	}

	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("received shutdown signal")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("codebattle shutdown complete")
	return nil
}
