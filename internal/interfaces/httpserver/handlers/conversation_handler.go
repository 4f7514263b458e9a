package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"workify/services/conversation-api/internal/domain/conversation"
	"workify/services/conversation-api/internal/interfaces/httpserver/requests"
	"workify/services/conversation-api/internal/interfaces/httpserver/responses"
)

// ConversationHandler exposes the caller-facing conversation API.
type ConversationHandler struct {
	manager conversation.Manager
	engine  conversation.Engine
	log     zerolog.Logger
}

// NewConversationHandler constructs the handler.
func NewConversationHandler(manager conversation.Manager, engine conversation.Engine, log zerolog.Logger) *ConversationHandler {
	return &ConversationHandler{
		manager: manager,
		engine:  engine,
		log:     log.With().Str("handler", "conversation").Logger(),
	}
}

// List handles GET /v1/conversations
// @Summary List conversations
// @Description Lists the conversations of the authenticated job seeker or employer, most recent first
// @Tags Conversations
// @Produce json
// @Success 200 {object} responses.ConversationListResponse
// @Failure 400 {object} platformerrors.HTTPErrorResponse
// @Failure 401 {object} platformerrors.HTTPErrorResponse
// @Failure 404 {object} platformerrors.HTTPErrorResponse
// @Router /v1/conversations [get]
func (h *ConversationHandler) List(c *gin.Context) {
	caller, err := currentCaller(c, h.manager)
	if err != nil {
		responses.HandleError(c, err, h.log)
		return
	}

	items, err := h.manager.ListForParticipant(c.Request.Context(), caller)
	if err != nil {
		responses.HandleError(c, err, h.log)
		return
	}

	c.JSON(http.StatusOK, responses.MapConversations(items))
}

// UnreadCount handles GET /v1/conversations/unread-count
// @Summary Count conversations with unread messages
// @Tags Conversations
// @Produce json
// @Success 200 {object} responses.UnreadCountResponse
// @Failure 401 {object} platformerrors.HTTPErrorResponse
// @Router /v1/conversations/unread-count [get]
func (h *ConversationHandler) UnreadCount(c *gin.Context) {
	caller, err := currentCaller(c, h.manager)
	if err != nil {
		responses.HandleError(c, err, h.log)
		return
	}

	count, err := h.manager.CountUnreadConversations(c.Request.Context(), caller)
	if err != nil {
		responses.HandleError(c, err, h.log)
		return
	}

	c.JSON(http.StatusOK, responses.UnreadCountResponse{Count: count})
}

// Get handles GET /v1/conversations/:conversation_id
// @Summary Get a conversation
// @Tags Conversations
// @Produce json
// @Param conversation_id path int true "Conversation ID"
// @Success 200 {object} responses.ConversationResponse
// @Failure 403 {object} platformerrors.HTTPErrorResponse
// @Failure 404 {object} platformerrors.HTTPErrorResponse
// @Router /v1/conversations/{conversation_id} [get]
func (h *ConversationHandler) Get(c *gin.Context) {
	conversationID, err := pathID(c, "conversation_id")
	if err != nil {
		responses.HandleError(c, err, h.log)
		return
	}
	caller, err := currentCaller(c, h.manager)
	if err != nil {
		responses.HandleError(c, err, h.log)
		return
	}

	conv, err := h.manager.GetForParticipant(c.Request.Context(), conversationID, caller)
	if err != nil {
		responses.HandleError(c, err, h.log)
		return
	}

	c.JSON(http.StatusOK, responses.MapConversation(conv))
}

// GetMessages handles GET /v1/conversations/:conversation_id/messages
// @Summary List messages
// @Description Returns one page of messages in ascending order. Pages walk backwards from the newest message.
// @Tags Conversations
// @Produce json
// @Param conversation_id path int true "Conversation ID"
// @Param before_id query int false "Return messages older than this id"
// @Param limit query int false "Page size"
// @Success 200 {object} responses.MessagePageResponse
// @Failure 400 {object} platformerrors.HTTPErrorResponse
// @Failure 403 {object} platformerrors.HTTPErrorResponse
// @Failure 404 {object} platformerrors.HTTPErrorResponse
// @Router /v1/conversations/{conversation_id}/messages [get]
func (h *ConversationHandler) GetMessages(c *gin.Context) {
	conversationID, err := pathID(c, "conversation_id")
	if err != nil {
		responses.HandleError(c, err, h.log)
		return
	}

	var query requests.ListMessagesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		responses.HandleError(c, bindingError(c.Request.Context(), err), h.log)
		return
	}

	caller, err := currentCaller(c, h.manager)
	if err != nil {
		responses.HandleError(c, err, h.log)
		return
	}

	page, err := h.engine.GetMessages(c.Request.Context(), conversationID, caller, conversation.Page{
		BeforeID: query.BeforeID,
		Limit:    query.Limit,
	})
	if err != nil {
		responses.HandleError(c, err, h.log)
		return
	}

	c.JSON(http.StatusOK, responses.MapMessagePage(page))
}

// Send handles POST /v1/conversations/:conversation_id/messages
// @Summary Send a message
// @Description Appends a message. A retry with the same client_message_id returns the original message with 200.
// @Tags Conversations
// @Accept json
// @Produce json
// @Param conversation_id path int true "Conversation ID"
// @Param request body requests.SendMessageRequest true "Message"
// @Success 201 {object} responses.SendMessageResponse
// @Success 200 {object} responses.SendMessageResponse
// @Failure 400 {object} platformerrors.HTTPErrorResponse
// @Failure 403 {object} platformerrors.HTTPErrorResponse
// @Failure 404 {object} platformerrors.HTTPErrorResponse
// @Failure 503 {object} platformerrors.HTTPErrorResponse
// @Router /v1/conversations/{conversation_id}/messages [post]
func (h *ConversationHandler) Send(c *gin.Context) {
	conversationID, err := pathID(c, "conversation_id")
	if err != nil {
		responses.HandleError(c, err, h.log)
		return
	}

	var req requests.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleError(c, bindingError(c.Request.Context(), err), h.log)
		return
	}

	caller, err := currentCaller(c, h.manager)
	if err != nil {
		responses.HandleError(c, err, h.log)
		return
	}

	res, err := sendMessage(c.Request.Context(), h.engine, conversation.SendParams{
		ConversationID:  conversationID,
		Caller:          caller,
		Content:         req.Content,
		ClientMessageID: req.ClientMessageID,
	}, "http")
	if err != nil {
		responses.HandleError(c, err, h.log)
		return
	}

	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	}
	c.JSON(status, responses.MapSendResult(res))
}

// MarkSeen handles POST /v1/conversations/:conversation_id/seen
// @Summary Mark the other party's messages as seen
// @Tags Conversations
// @Produce json
// @Param conversation_id path int true "Conversation ID"
// @Success 200 {object} responses.SeenResponse
// @Failure 403 {object} platformerrors.HTTPErrorResponse
// @Failure 404 {object} platformerrors.HTTPErrorResponse
// @Failure 503 {object} platformerrors.HTTPErrorResponse
// @Router /v1/conversations/{conversation_id}/seen [post]
func (h *ConversationHandler) MarkSeen(c *gin.Context) {
	conversationID, err := pathID(c, "conversation_id")
	if err != nil {
		responses.HandleError(c, err, h.log)
		return
	}
	caller, err := currentCaller(c, h.manager)
	if err != nil {
		responses.HandleError(c, err, h.log)
		return
	}

	res, err := markSeen(c.Request.Context(), h.engine, conversationID, caller)
	if err != nil {
		responses.HandleError(c, err, h.log)
		return
	}

	c.JSON(http.StatusOK, responses.MapSeenResult(res))
}

// GetByApplication handles GET /v1/applications/:application_id/conversation
// @Summary Get the conversation of an application
// @Tags Conversations
// @Produce json
// @Param application_id path int true "Application ID"
// @Success 200 {object} responses.ConversationResponse
// @Failure 403 {object} platformerrors.HTTPErrorResponse
// @Failure 404 {object} platformerrors.HTTPErrorResponse
// @Router /v1/applications/{application_id}/conversation [get]
func (h *ConversationHandler) GetByApplication(c *gin.Context) {
	applicationID, err := pathID(c, "application_id")
	if err != nil {
		responses.HandleError(c, err, h.log)
		return
	}
	caller, err := currentCaller(c, h.manager)
	if err != nil {
		responses.HandleError(c, err, h.log)
		return
	}

	conv, err := h.manager.GetByApplicationID(c.Request.Context(), applicationID, caller)
	if err != nil {
		responses.HandleError(c, err, h.log)
		return
	}

	c.JSON(http.StatusOK, responses.MapConversation(conv))
}
