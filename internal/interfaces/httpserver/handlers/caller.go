package handlers

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"workify/services/conversation-api/internal/domain/conversation"
	"workify/services/conversation-api/internal/infrastructure/auth"
	"workify/services/conversation-api/internal/infrastructure/metrics"
	"workify/services/conversation-api/internal/utils/platformerrors"
)

// callerResolver is the part of the manager every caller-facing handler needs.
type callerResolver interface {
	ResolveCaller(ctx context.Context, principal conversation.Principal) (conversation.Identity, error)
}

func currentCaller(c *gin.Context, resolver callerResolver) (conversation.Identity, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return conversation.Identity{}, platformerrors.NewError(c.Request.Context(), platformerrors.LayerHandler,
			platformerrors.ErrorTypeUnauthorized, "authentication required", nil, "")
	}
	return resolver.ResolveCaller(c.Request.Context(), principal)
}

func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, platformerrors.NewErrorWithContext(c.Request.Context(), platformerrors.LayerHandler,
			platformerrors.ErrorTypeValidation, "invalid "+name, err, "", map[string]any{name: c.Param(name)})
	}
	return id, nil
}

func bindingError(ctx context.Context, err error) error {
	return platformerrors.NewError(ctx, platformerrors.LayerHandler, platformerrors.ErrorTypeValidation,
		err.Error(), err, "")
}

// sendMessage runs a send and records its outcome for the given transport.
func sendMessage(ctx context.Context, engine conversation.Engine, params conversation.SendParams, transport string) (*conversation.SendResult, error) {
	res, err := engine.Send(ctx, params)
	if err != nil {
		metrics.RecordSendRejected(rejectionReason(err))
		return nil, err
	}
	if res.Duplicate {
		metrics.DuplicateSends.Inc()
		return res, nil
	}
	metrics.RecordMessageSent(string(params.Caller.Type), transport)
	return res, nil
}

func markSeen(ctx context.Context, engine conversation.Engine, conversationID int64, caller conversation.Identity) (*conversation.SeenResult, error) {
	res, err := engine.MarkSeen(ctx, conversationID, caller)
	if err != nil {
		return nil, err
	}
	metrics.RecordSeen(string(caller.Type), res.Flipped)
	return res, nil
}

func rejectionReason(err error) string {
	platformErr := platformerrors.GetPlatformError(err)
	if platformErr == nil {
		return "internal"
	}
	if platformErr.UUID != "" && platformErr.UUID != "unclassified" {
		return platformErr.UUID
	}
	return platformerrors.ErrorTypeToString(platformErr.Type)
}
