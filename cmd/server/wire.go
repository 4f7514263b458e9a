//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"
	"github.com/rs/zerolog"

	"workify/services/conversation-api/internal/config"
	"workify/services/conversation-api/internal/domain"
	"workify/services/conversation-api/internal/domain/conversation"
	domainrt "workify/services/conversation-api/internal/domain/realtime"
	"workify/services/conversation-api/internal/infrastructure/auth"
	"workify/services/conversation-api/internal/infrastructure/realtime"
	"workify/services/conversation-api/internal/interfaces"
)

var infrastructureSet = wire.NewSet(
	newCleanup,
	newStorage,
	wire.FieldsOf(new(*Storage), "Repo", "Messages", "Locker"),
	newDirectory,
	wire.Bind(new(conversation.Directory), new(directoryBackend)),
	newIdentityResolver,
	newRedisClient,
	newRelay,
	realtime.NewRegistry,
	newHub,
	wire.Bind(new(domainrt.Publisher), new(*realtime.Hub)),
	auth.NewValidator,
	newReadinessChecks,
	newSyncer,
)

// BuildApplication assembles the conversation service with Wire.
func BuildApplication(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Application, error) {
	wire.Build(
		infrastructureSet,
		domain.ServiceProvider,
		interfaces.InterfacesProvider,
		NewApplication,
	)
	return nil, nil
}
