package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workify/services/conversation-api/internal/config"
	"workify/services/conversation-api/internal/domain/conversation"
	"workify/services/conversation-api/internal/domain/retry"
	"workify/services/conversation-api/internal/infrastructure/auth"
	"workify/services/conversation-api/internal/infrastructure/realtime"
	"workify/services/conversation-api/internal/infrastructure/repository/memory"
	"workify/services/conversation-api/internal/interfaces/httpserver"
	"workify/services/conversation-api/internal/interfaces/httpserver/handlers"
	"workify/services/conversation-api/internal/interfaces/httpserver/middlewares"
)

const internalToken = "s3cret"

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	cfg := &config.Config{
		ServiceName:      "conversation-api",
		Environment:      "test",
		InternalAPIToken: internalToken,
		ShutdownTimeout:  time.Second,
	}
	log := zerolog.Nop()

	store := memory.NewStore(time.Second, log)
	directory := memory.NewDirectory()
	directory.AddJob(conversation.Job{ID: 7, Title: "Backend Engineer"})
	directory.AddEmployer(conversation.Employer{ID: 3, Email: "hr@acme.io", CompanyName: "Acme"})
	directory.AddUser(5, "ana@workify.vn", "Ana")
	directory.AddApplication(conversation.Application{ID: 42, JobID: 7, ApplicantID: 5, ApplicantEmail: "ana@workify.vn", ApplicantName: "Ana"})

	registry := realtime.NewRegistry(log)
	hub := realtime.NewHub(registry, nil, log)
	manager := conversation.NewManager(store, directory, directory, retry.NoRetryPolicy(), log)
	engine := conversation.NewEngine(store, store, store, hub, conversation.EngineOptions{}, log)

	validator, err := auth.NewValidator(context.Background(), cfg, log)
	require.NoError(t, err)

	provider := handlers.NewProvider(cfg, manager, engine, hub, registry, validator,
		map[string]handlers.Pinger{"storage": store}, log)
	return httpserver.New(cfg, log, provider, validator).Handler()
}

type request struct {
	method  string
	path    string
	body    any
	headers map[string]string
}

func serve(t *testing.T, handler http.Handler, r request) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if r.body != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(r.body))
	}
	req := httptest.NewRequest(r.method, r.path, &body)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func as(role, email string) map[string]string {
	return map[string]string{auth.HeaderUserRole: role, auth.HeaderUserEmail: email}
}

func TestConversationFlowOverHTTP(t *testing.T) {
	server := newTestServer(t)
	create := request{
		method: http.MethodPost,
		path:   "/v1/internal/conversations",
		body:   map[string]any{"job_id": 7, "application_id": 42, "employer_id": 3},
	}

	w := serve(t, server, create)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "internal routes need the service token")

	create.headers = map[string]string{middlewares.InternalTokenHeader: internalToken}
	w = serve(t, server, create)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Conversation struct {
			ID int64 `json:"id"`
		} `json:"conversation"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEmpty(t, w.Header().Get(middlewares.RequestIDHeader))

	w = serve(t, server, create)
	assert.Equal(t, http.StatusOK, w.Code)

	messages := "/v1/conversations/" + strconv.FormatInt(created.Conversation.ID, 10) + "/messages"

	w = serve(t, server, request{method: http.MethodPost, path: messages, body: map[string]any{"content": "Hi"}, headers: as("USER", "ana@workify.vn")})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), conversation.CodeApplicantMustWait)

	w = serve(t, server, request{method: http.MethodPost, path: messages, body: map[string]any{"content": "Welcome"}, headers: as("EMPLOYER", "hr@acme.io")})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = serve(t, server, request{method: http.MethodPost, path: messages, body: map[string]any{"content": "Thanks"}, headers: as("USER", "ana@workify.vn")})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = serve(t, server, request{method: http.MethodGet, path: "/v1/conversations/unread-count", headers: as("USER", "ana@workify.vn")})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count":1}`, w.Body.String())

	w = serve(t, server, request{method: http.MethodGet, path: messages, headers: as("USER", "ana@workify.vn")})
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Data []struct {
			Content string `json:"content"`
		} `json:"data"`
		HasMore bool `json:"has_more"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Data, 2)
	assert.Equal(t, "Welcome", page.Data[0].Content)
	assert.Equal(t, "Thanks", page.Data[1].Content)
	assert.False(t, page.HasMore)

	w = serve(t, server, request{method: http.MethodGet, path: messages})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPublicRoutes(t *testing.T) {
	server := newTestServer(t)

	for _, path := range []string{"/", "/healthz", "/readyz", "/health/auth", "/metrics"} {
		w := serve(t, server, request{method: http.MethodGet, path: path})
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}
