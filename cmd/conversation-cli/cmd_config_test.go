package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"workify/services/conversation-api/internal/config"
)

func TestRedact(t *testing.T) {
	cfg := config.Config{
		DatabaseURL:      "postgres://workify:hunter2@db:5432/workify?sslmode=disable",
		RedisURL:         "redis://:pa55@cache:6379/0",
		NATSURL:          "nats://nats:4222",
		InternalAPIToken: "s3cret",
	}

	got := redact(cfg)
	assert.Equal(t, "postgres://workify:xxxxx@db:5432/workify?sslmode=disable", got.DatabaseURL)
	assert.NotContains(t, got.RedisURL, "pa55")
	assert.Equal(t, "nats://nats:4222", got.NATSURL)
	assert.Equal(t, redacted, got.InternalAPIToken)
	assert.Equal(t, "s3cret", cfg.InternalAPIToken, "the original is left untouched")
}

func TestConfigShowYAML(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"STORAGE_DRIVER=memory\nDIRECTORY_MODE=http\nDIRECTORY_BASE_URL=http://core:8080\nINTERNAL_API_TOKEN=s3cret\n",
	), 0o600))
	for _, key := range []string{"STORAGE_DRIVER", "DIRECTORY_MODE", "DIRECTORY_BASE_URL", "INTERNAL_API_TOKEN"} {
		t.Setenv(key, "")
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"config", "show", "--env-file", envFile})
	require.NoError(t, rootCmd.Execute())

	var shown map[string]any
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &shown))
	assert.Equal(t, "memory", shown["storagedriver"])
	assert.Equal(t, redacted, shown["internalapitoken"])
}
