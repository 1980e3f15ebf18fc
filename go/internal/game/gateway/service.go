package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// Backend is everything the gateway needs from the room orchestrator.
type Backend interface {
	GameService
	StateProvider
	RoomCount() int
}

// Service is the game gateway: WebSocket connections, message dispatch and
// the HTTP state endpoints.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
	dispatcher        *Dispatcher
	backend           Backend
}

// Config holds configuration for the gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	PublicURL        string
	RequestTimeout   time.Duration
}

// DefaultConfig returns default configuration for the gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		RequestTimeout:   5 * time.Second,
	}
}

// Stats is the payload of the info endpoint.
type Stats struct {
	Service     string          `json:"service"`
	Status      string          `json:"status"`
	Rooms       int             `json:"rooms"`
	Connections ConnectionStats `json:"connections"`
}

// NewService wires a gateway around an existing connection manager, which is
// also the orchestrator's broadcaster.
func NewService(config Config, cm *ConnectionManager, backend Backend) *Service {
	dispatcher := NewDispatcher(backend, cm, config.RequestTimeout)
	cm.SetHandler(dispatcher)

	return &Service{
		connectionManager: cm,
		wsHandler:         NewWebSocketHandler(cm),
		stateHandler:      NewStateHandler(backend, config.PublicURL),
		dispatcher:        dispatcher,
		backend:           backend,
	}
}

// Start runs the broadcast loop until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting game gateway service")
	s.connectionManager.Start(ctx)
	log.Info().Msg("game gateway service stopped")
	return nil
}

// RegisterRoutes registers the WebSocket and state routes
func (s *Service) RegisterRoutes(r chi.Router) {
	r.Get("/ws", s.wsHandler.HandleConnection)
	s.stateHandler.RegisterRoutes(r)
	log.Info().Msg("game gateway routes registered")
}

// HandleInfo handles GET /info
func (s *Service) HandleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.GetStats())
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() Stats {
	return Stats{
		Service:     "codebattle_gateway",
		Status:      "running",
		Rooms:       s.backend.RoomCount(),
		Connections: s.connectionManager.Stats(),
	}
}
