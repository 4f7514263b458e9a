package handlers

import (
	"github.com/rs/zerolog"

	"workify/services/conversation-api/internal/config"
	"workify/services/conversation-api/internal/domain/conversation"
	domainrt "workify/services/conversation-api/internal/domain/realtime"
	"workify/services/conversation-api/internal/infrastructure/auth"
	"workify/services/conversation-api/internal/infrastructure/realtime"
)

// Provider wires all HTTP handlers for dependency injection.
type Provider struct {
	Conversation *ConversationHandler
	Internal     *InternalHandler
	Websocket    *WebsocketHandler
	Health       *HealthHandler
}

// NewProvider constructs the handler provider with domain services.
func NewProvider(
	cfg *config.Config,
	manager conversation.Manager,
	engine conversation.Engine,
	publisher domainrt.Publisher,
	registry *realtime.Registry,
	authValidator *auth.Validator,
	checks map[string]Pinger,
	log zerolog.Logger,
) *Provider {
	return &Provider{
		Conversation: NewConversationHandler(manager, engine, log),
		Internal:     NewInternalHandler(manager, publisher, log),
		Websocket: NewWebsocketHandler(authValidator, manager, engine, registry, WebsocketOptions{
			AllowedOrigins: cfg.WSAllowedOrigins,
			ReadLimit:      cfg.WSReadLimit,
			Connection: realtime.ConnectionOptions{
				SendBuffer:   cfg.WSSendBuffer,
				PingInterval: cfg.WSPingInterval,
				WriteTimeout: cfg.WSWriteTimeout,
			},
		}, log),
		Health: NewHealthHandler(checks, log),
	}
}
