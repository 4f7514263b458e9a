package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"workify/services/conversation-api/internal/config"
)

// New creates the service logger. Development gets a console writer; other environments log JSON
// so the collector can index conversation_id and the other structured fields.
func New(cfg *config.Config) zerolog.Logger {
	var out io.Writer = os.Stdout
	if isDevelopment(cfg.Environment) {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return NewWithWriter(cfg, out)
}

// NewWithWriter builds the logger on out. Every line carries the instance and the storage and
// broker modes, since events for one conversation may be handled by any instance.
func NewWithWriter(cfg *config.Config, out io.Writer) zerolog.Logger {
	return zerolog.New(out).
		With().
		Timestamp().
		Str("service", cfg.ServiceName).
		Str("environment", cfg.Environment).
		Str("instance", instanceName()).
		Str("storage", cfg.StorageDriver).
		Str("broker", cfg.RealtimeBroker).
		Logger().
		Level(parseLevel(cfg.LogLevel))
}

// MaskEmail keeps the first character of the local part and the full domain.
func MaskEmail(email string) string {
	local, domain, ok := strings.Cut(strings.TrimSpace(email), "@")
	if !ok || local == "" {
		return "***"
	}
	return local[:1] + "***@" + domain
}

func isDevelopment(environment string) bool {
	switch strings.ToLower(strings.TrimSpace(environment)) {
	case "", "development", "dev", "local":
		return true
	default:
		return false
	}
}

func instanceName() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "unknown"
}

func parseLevel(raw string) zerolog.Level {
	if raw == "" {
		return zerolog.InfoLevel
	}
	level, err := zerolog.ParseLevel(strings.ToLower(raw))
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
