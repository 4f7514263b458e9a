package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"workify/services/conversation-api/internal/domain/conversation"
	"workify/services/conversation-api/internal/domain/realtime"
	"workify/services/conversation-api/internal/infrastructure/logger"
	"workify/services/conversation-api/internal/interfaces/httpserver/requests"
	"workify/services/conversation-api/internal/interfaces/httpserver/responses"
)

// InternalHandler serves service-to-service calls guarded by the internal token.
type InternalHandler struct {
	manager   conversation.Manager
	publisher realtime.Publisher
	log       zerolog.Logger
}

// NewInternalHandler constructs the handler.
func NewInternalHandler(manager conversation.Manager, publisher realtime.Publisher, log zerolog.Logger) *InternalHandler {
	return &InternalHandler{
		manager:   manager,
		publisher: publisher,
		log:       log.With().Str("handler", "internal").Logger(),
	}
}

// CreateConversation handles POST /v1/internal/conversations
// @Summary Get or create the conversation of an application
// @Description Called by the application-submission flow. Returns 201 when the conversation was created and 200 when it already existed.
// @Tags Internal
// @Accept json
// @Produce json
// @Param request body requests.CreateConversationRequest true "References"
// @Success 201 {object} responses.CreateConversationResponse
// @Success 200 {object} responses.CreateConversationResponse
// @Failure 400 {object} platformerrors.HTTPErrorResponse
// @Failure 404 {object} platformerrors.HTTPErrorResponse
// @Failure 409 {object} platformerrors.HTTPErrorResponse
// @Router /v1/internal/conversations [post]
func (h *InternalHandler) CreateConversation(c *gin.Context) {
	var req requests.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleError(c, bindingError(c.Request.Context(), err), h.log)
		return
	}

	conv, created, err := h.manager.GetOrCreate(c.Request.Context(), req.JobID, req.ApplicationID, req.EmployerID)
	if err != nil {
		responses.HandleError(c, err, h.log)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, responses.CreateConversationResponse{
		Conversation: responses.MapConversation(conv),
		Created:      created,
	})
}

// PushNotification handles POST /v1/internal/notifications
// @Summary Push a notification to every live session of a recipient
// @Tags Internal
// @Accept json
// @Param request body requests.PushNotificationRequest true "Notification"
// @Success 202
// @Failure 400 {object} platformerrors.HTTPErrorResponse
// @Router /v1/internal/notifications [post]
func (h *InternalHandler) PushNotification(c *gin.Context) {
	var req requests.PushNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleError(c, bindingError(c.Request.Context(), err), h.log)
		return
	}

	destination := realtime.NewDestination(req.RecipientType, req.RecipientEmail)
	h.publisher.Publish(c.Request.Context(), destination, realtime.Event{
		Type:    realtime.EventNotification,
		Channel: realtime.ChannelNotifications,
		Payload: req.Payload,
		SentAt:  time.Now().UTC(),
	})

	h.log.Debug().
		Str("recipient_type", req.RecipientType).
		Str("recipient", logger.MaskEmail(req.RecipientEmail)).
		Msg("notification pushed")
	c.Status(http.StatusAccepted)
}
