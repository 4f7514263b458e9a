package realtime

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	domainrt "workify/services/conversation-api/internal/domain/realtime"
	"workify/services/conversation-api/internal/infrastructure/metrics"
)

// Relay carries envelopes between instances. Every subscriber, the publisher included,
// receives each envelope once.
type Relay interface {
	Name() string
	Publish(ctx context.Context, data []byte) error
	Subscribe(ctx context.Context, handler func(data []byte)) error
	Close() error
}

// Hub implements the domain Publisher on top of the local registry and an optional relay.
type Hub struct {
	registry *Registry
	relay    Relay
	nodeID   string
	log      zerolog.Logger
}

// NewHub creates a hub. A nil relay delivers to local sessions only.
func NewHub(registry *Registry, relay Relay, log zerolog.Logger) *Hub {
	return &Hub{
		registry: registry,
		relay:    relay,
		nodeID:   uuid.NewString(),
		log:      log.With().Str("component", "realtime-hub").Logger(),
	}
}

var _ domainrt.Publisher = (*Hub)(nil)

// Start subscribes to the relay. It returns immediately when there is none.
func (h *Hub) Start(ctx context.Context) error {
	if h.relay == nil {
		return nil
	}
	h.log.Info().Str("broker", h.relay.Name()).Str("node_id", h.nodeID).Msg("subscribing to realtime relay")
	return h.relay.Subscribe(ctx, h.receive)
}

// Close releases the relay.
func (h *Hub) Close() error {
	if h.relay == nil {
		return nil
	}
	return h.relay.Close()
}

// Publish never fails from the caller's point of view.
// A relay failure falls back to delivering on this instance.
func (h *Hub) Publish(ctx context.Context, destination domainrt.Destination, event domainrt.Event) {
	if h.relay == nil {
		h.deliver(destination, event)
		return
	}

	data, err := encodeEnvelope(Envelope{Origin: h.nodeID, Destination: destination, Event: event})
	if err != nil {
		metrics.RecordRelayError(h.relay.Name(), "encode")
		h.log.Error().Err(err).Str("destination", string(destination)).Msg("failed to encode realtime envelope")
		h.deliver(destination, event)
		return
	}
	if err := h.relay.Publish(ctx, data); err != nil {
		metrics.RecordRelayError(h.relay.Name(), "publish")
		h.log.Warn().Err(err).Str("destination", string(destination)).Msg("relay publish failed, delivering locally")
		h.deliver(destination, event)
	}
}

func (h *Hub) receive(data []byte) {
	env, err := decodeEnvelope(data)
	if err != nil {
		metrics.RecordRelayError(h.relay.Name(), "decode")
		h.log.Warn().Err(err).Msg("discarding malformed realtime envelope")
		return
	}
	h.deliver(env.Destination, env.Event)
}

func (h *Hub) deliver(destination domainrt.Destination, event domainrt.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Str("event_type", string(event.Type)).Msg("failed to marshal realtime event")
		return
	}

	delivered := h.registry.Deliver(destination, payload)
	metrics.RecordFanout(string(event.Channel), delivered > 0)
	if delivered == 0 {
		h.log.Debug().
			Str("destination", string(destination)).
			Str("event_type", string(event.Type)).
			Msg("no live session, event dropped")
	}
}
