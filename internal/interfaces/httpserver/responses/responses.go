package responses

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"workify/services/conversation-api/internal/utils/platformerrors"
)

// HandleError renders err with the platform error envelope.
func HandleError(c *gin.Context, err error, log zerolog.Logger) {
	platformerrors.WriteError(c, err, log)
}

// ErrorFrame is the error body sent on the websocket.
type ErrorFrame struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      string `json:"code,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// NewErrorFrame maps any error onto the websocket error body.
func NewErrorFrame(err error) *ErrorFrame {
	platformErr := platformerrors.GetPlatformError(err)
	if platformErr == nil {
		return &ErrorFrame{Message: "internal server error", Type: platformerrors.ErrorTypeToString(platformerrors.ErrorTypeInternal)}
	}
	return &ErrorFrame{
		Message:   platformErr.Message,
		Type:      platformerrors.ErrorTypeToString(platformErr.Type),
		Code:      platformErr.UUID,
		Retryable: platformerrors.IsRetryable(platformErr),
	}
}
