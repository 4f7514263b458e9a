package platformerrors_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workify/services/conversation-api/internal/utils/platformerrors"
)

var errSentinel = errors.New("sentinel")

func TestNewError_CarriesRequestIDAndUnwraps(t *testing.T) {
	ctx := platformerrors.WithRequestID(context.Background(), "req-1")

	err := platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden, "denied", errSentinel, "code-1")

	assert.Equal(t, "req-1", err.RequestID)
	assert.True(t, errors.Is(err, errSentinel))
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeForbidden))
	assert.False(t, platformerrors.IsErrorType(errSentinel, platformerrors.ErrorTypeForbidden))
}

func TestAsError_KeepsWrappedType(t *testing.T) {
	inner := platformerrors.NewError(context.Background(), platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "row missing", errSentinel, "repo-1")

	outer := platformerrors.AsError(context.Background(), platformerrors.LayerDomain, inner, "load conversation")

	assert.Equal(t, platformerrors.ErrorTypeNotFound, outer.Type)
	assert.Equal(t, "repo-1", outer.UUID)
	assert.True(t, errors.Is(outer, errSentinel))
	assert.Nil(t, platformerrors.AsError(context.Background(), platformerrors.LayerDomain, nil, "noop"))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"timeout", platformerrors.NewError(context.Background(), platformerrors.LayerRepository, platformerrors.ErrorTypeTimeout, "busy", nil, ""), true},
		{"database", platformerrors.NewError(context.Background(), platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "db", nil, ""), true},
		{"forbidden", platformerrors.NewError(context.Background(), platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden, "no", nil, ""), false},
		{"plain", errSentinel, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, platformerrors.IsRetryable(tt.err))
		})
	}
}

func TestWriteError_TimeoutSetsRetryAfter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/conversations/1/messages", nil)

	err := platformerrors.NewError(context.Background(), platformerrors.LayerRepository, platformerrors.ErrorTypeTimeout, "conversation is busy", nil, "lock-timeout")
	platformerrors.WriteError(c, err, zerolog.Nop())

	require.Equal(t, http.StatusServiceUnavailable, recorder.Code)
	assert.Equal(t, "1", recorder.Header().Get("Retry-After"))

	var body platformerrors.HTTPErrorResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, "timeout_error", body.Error.Type)
	assert.Equal(t, "lock-timeout", body.Error.Code)
	assert.True(t, body.Error.Retryable)
}

func TestWriteError_PlainErrorIsInternal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	platformerrors.WriteError(c, errSentinel, zerolog.Nop())

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.NotContains(t, recorder.Body.String(), "sentinel")
}
