package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workify/services/conversation-api/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "conversation-api", cfg.ServiceName)
	assert.Equal(t, ":8090", cfg.Addr())
	assert.Equal(t, config.StorageDriverPostgres, cfg.StorageDriver)
	assert.Equal(t, config.BrokerLocal, cfg.RealtimeBroker)
	assert.Equal(t, 3*time.Second, cfg.LockTimeout)
	assert.Equal(t, 50, cfg.MessagePageSize)
	assert.Equal(t, 200, cfg.MessagePageMax)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "auth requires issuer",
			env:     map[string]string{"AUTH_ENABLED": "true", "AUTH_JWKS_URL": "http://keycloak/certs"},
			wantErr: "AUTH_ISSUER",
		},
		{
			name:    "nats broker requires url",
			env:     map[string]string{"REALTIME_BROKER": "nats"},
			wantErr: "NATS_URL",
		},
		{
			name:    "redis broker requires url",
			env:     map[string]string{"REALTIME_BROKER": "redis"},
			wantErr: "REDIS_URL",
		},
		{
			name:    "unknown broker",
			env:     map[string]string{"REALTIME_BROKER": "kafka"},
			wantErr: "unsupported REALTIME_BROKER",
		},
		{
			name:    "http directory requires base url",
			env:     map[string]string{"DIRECTORY_MODE": "http"},
			wantErr: "DIRECTORY_BASE_URL",
		},
		{
			name:    "database directory requires postgres",
			env:     map[string]string{"STORAGE_DRIVER": "memory"},
			wantErr: "DIRECTORY_MODE=database",
		},
		{
			name:    "page max below page size",
			env:     map[string]string{"MESSAGE_PAGE_SIZE": "100", "MESSAGE_PAGE_MAX": "10"},
			wantErr: "MESSAGE_PAGE_MAX",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := config.Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MemoryWithHTTPDirectory(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("DIRECTORY_MODE", "http")
	t.Setenv("DIRECTORY_BASE_URL", "http://core:8080")
	t.Setenv("WS_ALLOWED_ORIGINS", "https://workify.vn,https://employer.workify.vn")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://workify.vn", "https://employer.workify.vn"}, cfg.WSAllowedOrigins)
}
