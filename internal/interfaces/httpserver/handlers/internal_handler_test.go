package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"workify/services/conversation-api/internal/domain/conversation"
	"workify/services/conversation-api/internal/domain/realtime"
	"workify/services/conversation-api/internal/interfaces/httpserver/handlers"
	"workify/services/conversation-api/internal/interfaces/httpserver/responses"
	"workify/services/conversation-api/internal/utils/platformerrors"
)

func setupInternalTestRouter(manager *MockManager, publisher *MockPublisher) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := handlers.NewInternalHandler(manager, publisher, zerolog.Nop())
	router.POST("/v1/internal/conversations", handler.CreateConversation)
	router.POST("/v1/internal/notifications", handler.PushNotification)
	return router
}

func TestInternalHandler_CreateConversation(t *testing.T) {
	existing := map[int64]bool{}
	manager := &MockManager{
		GetOrCreateFunc: func(ctx context.Context, jobID, applicationID, employerID int64) (*conversation.Conversation, bool, error) {
			if jobID != 7 || employerID != 3 {
				return nil, false, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict,
					"application does not belong to job", conversation.ErrApplicationJobMismatch, conversation.CodeApplicationJob)
			}
			created := !existing[applicationID]
			existing[applicationID] = true
			return sampleConversation(), created, nil
		},
	}
	router := setupInternalTestRouter(manager, &MockPublisher{})

	tests := []struct {
		name           string
		body           map[string]any
		expectedStatus int
		expectCreated  bool
	}{
		{name: "created", body: map[string]any{"job_id": 7, "application_id": 42, "employer_id": 3}, expectedStatus: http.StatusCreated, expectCreated: true},
		{name: "existing", body: map[string]any{"job_id": 7, "application_id": 42, "employer_id": 3}, expectedStatus: http.StatusOK},
		{name: "mismatch", body: map[string]any{"job_id": 8, "application_id": 42, "employer_id": 3}, expectedStatus: http.StatusConflict},
		{name: "missing employer", body: map[string]any{"job_id": 7, "application_id": 42}, expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, http.MethodPost, "/v1/internal/conversations", "", "", tt.body)
			if w.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
			if w.Code >= http.StatusBadRequest {
				return
			}
			var resp responses.CreateConversationResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Created != tt.expectCreated || resp.Conversation.ID != 11 {
				t.Errorf("unexpected response: %+v", resp)
			}
		})
	}
}

func TestInternalHandler_PushNotification(t *testing.T) {
	publisher := &MockPublisher{}
	router := setupInternalTestRouter(&MockManager{}, publisher)

	w := doRequest(router, http.MethodPost, "/v1/internal/notifications", "", "", map[string]any{
		"recipient_type":  "USER",
		"recipient_email": "Ana@Workify.vn",
		"payload":         map[string]any{"kind": "application.viewed", "job_id": 7},
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", w.Code, w.Body.String())
	}

	events := publisher.published()
	if len(events) != 1 {
		t.Fatalf("expected one published event, got %d", len(events))
	}
	if events[0].destination != realtime.Destination("USER:ana@workify.vn") {
		t.Errorf("unexpected destination %q", events[0].destination)
	}
	if events[0].event.Channel != realtime.ChannelNotifications || events[0].event.Type != realtime.EventNotification {
		t.Errorf("unexpected event: %+v", events[0].event)
	}
	if string(events[0].event.Payload) != `{"job_id":7,"kind":"application.viewed"}` {
		t.Errorf("payload not forwarded verbatim: %s", events[0].event.Payload)
	}

	w = doRequest(router, http.MethodPost, "/v1/internal/notifications", "", "", map[string]any{
		"recipient_type":  "ADMIN",
		"recipient_email": "ana@workify.vn",
		"payload":         map[string]any{},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for an unknown recipient type, got %d", w.Code)
	}
	if len(publisher.published()) != 1 {
		t.Errorf("rejected notification must not be published")
	}
}
