package v1

import (
	"github.com/gin-gonic/gin"

	"workify/services/conversation-api/internal/interfaces/httpserver/handlers"
)

func registerConversationRoutes(router gin.IRoutes, handler *handlers.ConversationHandler) {
	router.GET("/conversations", handler.List)
	router.GET("/conversations/unread-count", handler.UnreadCount)
	router.GET("/conversations/:conversation_id", handler.Get)
	router.GET("/conversations/:conversation_id/messages", handler.GetMessages)
	router.POST("/conversations/:conversation_id/messages", handler.Send)
	router.POST("/conversations/:conversation_id/seen", handler.MarkSeen)

	router.GET("/applications/:application_id/conversation", handler.GetByApplication)
}
