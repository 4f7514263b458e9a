package realtime

import (
	"sync"

	"github.com/rs/zerolog"

	domainrt "workify/services/conversation-api/internal/domain/realtime"
	"workify/services/conversation-api/internal/infrastructure/metrics"
)

// Registry tracks the live sessions of every destination. An identity may hold several sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domainrt.Destination]map[string]Session
	log      zerolog.Logger
}

// NewRegistry constructs an empty registry.
func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		sessions: make(map[domainrt.Destination]map[string]Session),
		log:      log.With().Str("component", "realtime-registry").Logger(),
	}
}

// Register adds a session under its destination.
func (r *Registry) Register(s Session) {
	r.mu.Lock()
	set := r.sessions[s.Destination()]
	if set == nil {
		set = make(map[string]Session)
		r.sessions[s.Destination()] = set
	}
	set[s.ID()] = s
	r.mu.Unlock()

	metrics.WebsocketConnections.Inc()
	r.log.Debug().Str("session_id", s.ID()).Str("destination", string(s.Destination())).Msg("session registered")
}

// Unregister removes a session if it is still tracked.
func (r *Registry) Unregister(s Session) {
	r.mu.Lock()
	set := r.sessions[s.Destination()]
	_, tracked := set[s.ID()]
	if tracked {
		delete(set, s.ID())
		if len(set) == 0 {
			delete(r.sessions, s.Destination())
		}
	}
	r.mu.Unlock()

	if tracked {
		metrics.WebsocketConnections.Dec()
		r.log.Debug().Str("session_id", s.ID()).Str("destination", string(s.Destination())).Msg("session unregistered")
	}
}

// Deliver writes payload to every session of destination and returns how many accepted it.
// Sessions that fail are dropped.
func (r *Registry) Deliver(destination domainrt.Destination, payload []byte) int {
	r.mu.RLock()
	targets := make([]Session, 0, len(r.sessions[destination]))
	for _, s := range r.sessions[destination] {
		targets = append(targets, s)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, s := range targets {
		if err := s.Send(payload); err != nil {
			r.log.Warn().Err(err).Str("session_id", s.ID()).Msg("dropping session after failed send")
			r.Unregister(s)
			continue
		}
		delivered++
	}
	return delivered
}

// Count returns the number of live sessions of destination.
func (r *Registry) Count(destination domainrt.Destination) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions[destination])
}

// CloseAll closes and forgets every session.
func (r *Registry) CloseAll(code int, reason string) {
	r.mu.Lock()
	var all []Session
	for _, set := range r.sessions {
		for _, s := range set {
			all = append(all, s)
		}
	}
	r.sessions = make(map[domainrt.Destination]map[string]Session)
	r.mu.Unlock()

	metrics.WebsocketConnections.Sub(float64(len(all)))
	for _, s := range all {
		s.Close(code, reason)
	}
}
