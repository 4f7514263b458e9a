package realtime

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NATSConfig configures the NATS relay.
type NATSConfig struct {
	URL           string
	Subject       string
	MaxReconnects int
	ReconnectWait time.Duration
}

// NATSRelay fans envelopes out over a plain NATS subject. Every instance subscribes without a
// queue group so each one sees every envelope.
type NATSRelay struct {
	conn    *nats.Conn
	subject string
	sub     *nats.Subscription
	log     zerolog.Logger
}

// NewNATSRelay connects to NATS.
func NewNATSRelay(cfg NATSConfig, log zerolog.Logger) (*NATSRelay, error) {
	log = log.With().Str("component", "nats-relay").Logger()
	opts := []nats.Option{
		nats.Name("conversation-api"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, err
	}

	return &NATSRelay{conn: conn, subject: cfg.Subject, log: log}, nil
}

func (r *NATSRelay) Name() string { return "nats" }

func (r *NATSRelay) Publish(_ context.Context, data []byte) error {
	return r.conn.Publish(r.subject, data)
}

func (r *NATSRelay) Subscribe(_ context.Context, handler func(data []byte)) error {
	sub, err := r.conn.Subscribe(r.subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return err
	}
	r.sub = sub
	return nil
}

// Ping reports whether the connection is currently usable.
func (r *NATSRelay) Ping(context.Context) error {
	if !r.conn.IsConnected() {
		return nats.ErrConnectionClosed
	}
	return nil
}

func (r *NATSRelay) Close() error {
	if r.sub != nil {
		_ = r.sub.Unsubscribe()
	}
	return r.conn.Drain()
}
