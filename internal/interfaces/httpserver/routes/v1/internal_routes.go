package v1

import (
	"github.com/gin-gonic/gin"

	"workify/services/conversation-api/internal/interfaces/httpserver/handlers"
)

func registerInternalRoutes(router gin.IRoutes, handler *handlers.InternalHandler) {
	router.POST("/conversations", handler.CreateConversation)
	router.POST("/notifications", handler.PushNotification)
}
