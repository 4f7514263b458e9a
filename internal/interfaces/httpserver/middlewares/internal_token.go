package middlewares

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	"workify/services/conversation-api/internal/utils/platformerrors"
)

// InternalTokenHeader carries the service-to-service token.
const InternalTokenHeader = "X-Internal-Token"

// InternalToken guards service-to-service routes. With no token configured every call is refused.
func InternalToken(token string) gin.HandlerFunc {
	expected := []byte(token)
	return func(c *gin.Context) {
		if len(expected) == 0 {
			platformerrors.WriteForbidden(c, "internal API is disabled")
			return
		}
		got := []byte(c.GetHeader(InternalTokenHeader))
		if subtle.ConstantTimeCompare(got, expected) != 1 {
			platformerrors.WriteUnauthorized(c, "invalid internal token")
			return
		}
		c.Next()
	}
}
