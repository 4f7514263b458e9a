package domain

import (
	"github.com/google/wire"
	"github.com/rs/zerolog"

	"workify/services/conversation-api/internal/config"
	"workify/services/conversation-api/internal/domain/conversation"
	"workify/services/conversation-api/internal/domain/realtime"
	"workify/services/conversation-api/internal/domain/retry"
)

// ProvideConversationManager provides the conversation manager with the inbound retry policy.
func ProvideConversationManager(
	repo conversation.Repository,
	directory conversation.Directory,
	resolver conversation.IdentityResolver,
	log zerolog.Logger,
) conversation.Manager {
	return conversation.NewManager(repo, directory, resolver, retry.DefaultPolicy(), log)
}

// ProvideMessagingEngine provides the messaging engine.
func ProvideMessagingEngine(
	locker conversation.Locker,
	repo conversation.Repository,
	messages conversation.MessageRepository,
	publisher realtime.Publisher,
	cfg *config.Config,
	log zerolog.Logger,
) conversation.Engine {
	return conversation.NewEngine(locker, repo, messages, publisher, conversation.EngineOptions{
		MaxContentLength: cfg.MessageMaxLength,
		PageSize:         cfg.MessagePageSize,
		PageMax:          cfg.MessagePageMax,
	}, log)
}

// ProvideReconciler provides the unread counter reconciler.
func ProvideReconciler(locker conversation.Locker, repo conversation.Repository, log zerolog.Logger) conversation.Reconciler {
	return conversation.NewReconciler(locker, repo, log)
}

// ServiceProvider provides all domain services.
var ServiceProvider = wire.NewSet(
	ProvideConversationManager,
	ProvideMessagingEngine,
	ProvideReconciler,
)
