package main

import (
	"context"
	"sync"

	"github.com/mcdev12/sketchturn/go/internal/admin"
	"github.com/mcdev12/sketchturn/go/internal/discovery"
	"github.com/mcdev12/sketchturn/go/internal/gateway"
	"github.com/mcdev12/sketchturn/go/internal/relay"
	"github.com/mcdev12/sketchturn/go/internal/repository"
	"github.com/mcdev12/sketchturn/go/internal/session"
	"github.com/rs/zerolog/log"
)

type Services struct {
	Connections *gateway.ConnectionManager
	Relay       *relay.Relay
	Repository  repository.Repository
	Session     *session.Session
	WebSocket   *gateway.WebSocketHandler
	Admin       *admin.Service
	AdminHTTP   *admin.HTTPHandlers

	publisher  *relay.JetStreamPublisher
	advertiser *discovery.Advertiser
	wg         sync.WaitGroup
}

func setupServices(ctx context.Context, cfg *Config, rules session.Rules) (*Services, error) {
	// Wire up the broadcast chain
	// Connection manager → (relay) → Session → WebSocket handler
	s := &Services{
		Connections: gateway.NewConnectionManager(gateway.DefaultConnectionConfig()),
	}

	var bc session.Broadcaster = s.Connections
	if cfg.natsURL != "" {
		jsCfg := relay.DefaultJetStreamConfig()
		jsCfg.URL = cfg.natsURL
		publisher, err := relay.NewJetStreamPublisher(ctx, jsCfg)
		if err != nil {
			return nil, err
		}
		s.publisher = publisher

		relayCfg := relay.DefaultConfig()
		relayCfg.SubjectPrefix = jsCfg.SubjectPrefix
		s.Relay = relay.New(s.Connections, publisher, relayCfg)
		bc = s.Relay
	}

	repo, err := setupRepository(ctx, cfg.dsn())
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Repository = repo

	s.Session = session.New(session.Config{
		Rules:       rules,
		Store:       repo,
		Broadcaster: bc,
	})
	s.WebSocket = gateway.NewWebSocketHandler(s.Connections, s.Session)
	s.Admin = admin.NewService(s.Session)
	s.AdminHTTP = admin.NewHTTPHandlers(s.Session, cfg.publicURL)

	if cfg.mdns {
		joinURL := cfg.publicURL
		if joinURL == "" {
			joinURL = discovery.LocalURL(cfg.port)
		}
		advertiser, err := discovery.Advertise("", cfg.port, discovery.TXTRecords(joinURL))
		if err != nil {
			// The game works without discovery
			log.Warn().Err(err).Msg("mDNS advertising disabled")
		} else {
			s.advertiser = advertiser
		}
	}

	return s, nil
}

// Start runs the background loops until ctx is cancelled.
func (s *Services) Start(ctx context.Context) {
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.Connections.Start(ctx)
	}()
	go func() {
		defer s.wg.Done()
		if err := s.Session.Run(ctx); err != nil {
			log.Error().Err(err).Msg("session coordinator failed")
		}
	}()

	if s.Relay != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.Relay.Run(ctx)
		}()
	}
}

// Close waits for the loops started by Start and releases external resources.
func (s *Services) Close() {
	s.wg.Wait()

	if s.advertiser != nil {
		if err := s.advertiser.Shutdown(); err != nil {
			log.Error().Err(err).Msg("failed to stop mDNS advertiser")
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close NATS publisher")
		}
	}
	if s.Repository != nil {
		s.Repository.Close()
	}
}
