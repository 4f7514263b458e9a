package v1

import (
	"github.com/gin-gonic/gin"

	"workify/services/conversation-api/internal/interfaces/httpserver/handlers"
	"workify/services/conversation-api/internal/interfaces/httpserver/middlewares"
)

// Routes encapsulates versioned route registration.
type Routes struct {
	handlers      *handlers.Provider
	authenticate  gin.HandlerFunc
	internalToken string
}

// NewRoutes builds the v1 route registrar.
func NewRoutes(handlerProvider *handlers.Provider, authenticate gin.HandlerFunc, internalToken string) *Routes {
	return &Routes{
		handlers:      handlerProvider,
		authenticate:  authenticate,
		internalToken: internalToken,
	}
}

// Register attaches all v1 routes under /v1 prefix.
func (r *Routes) Register(engine *gin.Engine) {
	group := engine.Group("/v1")

	// The websocket validates its own credential so it can read access_token and track expiry.
	group.GET("/ws", r.handlers.Websocket.Serve)

	internal := group.Group("/internal", middlewares.InternalToken(r.internalToken))
	registerInternalRoutes(internal, r.handlers.Internal)

	authenticated := group.Group("")
	if r.authenticate != nil {
		authenticated.Use(r.authenticate)
	}
	registerConversationRoutes(authenticated, r.handlers.Conversation)
}
