// Package gateway pushes auction events from JetStream to websocket clients
// watching a round.
package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/leagueauction/go/internal/auth"
)

// Service ties the connection manager, the websocket handler and the
// JetStream consumer together
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	eventConsumer     *EventConsumer
}

type Config struct {
	ConnectionConfig ConnectionConfig
	JetStreamConfig  JetStreamConsumerConfig
}

func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		JetStreamConfig:  DefaultJetStreamConsumerConfig(),
	}
}

func NewService(config Config, verifier *auth.Verifier) (*Service, error) {
	connectionManager := NewConnectionManager(config.ConnectionConfig)

	eventConsumer, err := NewEventConsumer(connectionManager, config.JetStreamConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create event consumer: %w", err)
	}

	return &Service{
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager, verifier),
		eventConsumer:     eventConsumer,
	}, nil
}

// Start runs the connection manager and the consumer until ctx is done
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting auction gateway service")

	go s.connectionManager.Start(ctx)

	err := s.eventConsumer.Start(ctx)
	if stopErr := s.eventConsumer.Stop(); stopErr != nil {
		log.Error().Err(stopErr).Msg("failed to stop event consumer")
	}
	log.Info().Msg("auction gateway service stopped")
	return err
}

func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	log.Info().Msg("auction gateway routes registered")
}

func (s *Service) Stats() ConnectionStats {
	return s.connectionManager.Stats()
}

// Healthy reports whether the consumer is connected to NATS
func (s *Service) Healthy() bool {
	return s.eventConsumer.Connected()
}
