package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/mcdev12/codebattle/go/internal/catalog"
	"github.com/mcdev12/codebattle/go/internal/game/engine"
	"github.com/mcdev12/codebattle/go/internal/game/gateway"
	"github.com/mcdev12/codebattle/go/internal/game/orchestrator"
	"github.com/mcdev12/codebattle/go/internal/game/relay"
	"github.com/mcdev12/codebattle/go/internal/gameconfig"
	"github.com/mcdev12/codebattle/go/internal/judge"
	"github.com/rs/zerolog/log"
)

const (
	relayBufferSize  = 1024
	judgePingTimeout = 3 * time.Second
)

type Services struct {
	Rooms   *orchestrator.Manager
	Gateway *gateway.Service
	Relay   *relay.Relay

	publisher *relay.JetStreamPublisher
}

func setupServices(ctx context.Context, cfg gameconfig.Config) (*Services, error) {
	// Wire up dependency chain
	// Catalog → Engine → Orchestrator ← Gateway, with the relay as event sink

	deck, err := loadCatalog(cfg.Game.CatalogPath)
	if err != nil {
		return nil, err
	}
	log.Info().Int("problems", deck.Len()).Msg("problem catalog loaded")

	rules := engine.Rules{
		HandSize:     cfg.Game.HandSize,
		BaseDuration: cfg.Game.BaseDuration(),
		MinPlayers:   cfg.Game.MinPlayers,
	}
	seed := uint64(time.Now().UnixNano())
	eng := engine.New(rules, deck, rand.New(rand.NewPCG(seed, seed>>1|1)))

	services := &Services{}
	var opts []orchestrator.Option
	if cfg.NATS.URL != "" {
		jsCfg := relay.DefaultJetStreamConfig()
		jsCfg.URL = cfg.NATS.URL
		jsCfg.StreamName = cfg.NATS.Stream
		jsCfg.SubjectPrefix = cfg.NATS.SubjectPrefix

		publisher, err := relay.NewJetStreamPublisher(ctx, jsCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create event relay: %w", err)
		}
		services.publisher = publisher
		services.Relay = relay.New(publisher, relayBufferSize)
		opts = append(opts, orchestrator.WithEventSink(services.Relay))
	}

	gatewayConfig := gateway.DefaultConfig()
	gatewayConfig.PublicURL = cfg.PublicURL
	connections := gateway.NewConnectionManager(gatewayConfig.ConnectionConfig)

	services.Rooms = orchestrator.NewManager(orchestrator.Config{
		TickInterval:      cfg.Game.TickInterval(),
		StateSyncInterval: cfg.Game.StateSyncInterval(),
		JudgeWorkers:      cfg.Judge.Workers,
		JudgeTimeout:      cfg.Judge.Timeout(),
		JudgeQueueSize:    cfg.Judge.Workers * 8,
		DebugRewards:      cfg.Game.DebugRewards,
	}, eng, setupJudge(ctx, cfg.Judge), connections, opts...)

	services.Gateway = gateway.NewService(gatewayConfig, connections, services.Rooms)

	return services, nil
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	deck, err := catalog.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog %s: %w", path, err)
	}
	return deck, nil
}

func setupJudge(ctx context.Context, cfg gameconfig.JudgeConfig) judge.Judge {
	if cfg.URL == "" {
		log.Warn().Msg("JUDGE_URL not set, every submission will fail")
		return judge.Unavailable{}
	}
	j := judge.NewHTTPJudge(cfg.URL, cfg.APIKey, cfg.Timeout())

	// A failed check only warns.
	pingCtx, cancel := context.WithTimeout(ctx, judgePingTimeout)
	defer cancel()
	if err := j.Ping(pingCtx); err != nil {
		log.Warn().Err(err).Str("judge_url", cfg.URL).Msg("judge health check failed")
	} else {
		log.Info().Str("judge_url", cfg.URL).Msg("judge service reachable")
	}
	return j
}

// Close releases the bus connection.
func (s *Services) Close() {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close event publisher")
	}
}
