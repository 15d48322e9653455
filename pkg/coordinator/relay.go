package coordinator

import (
	"sync"

	"github.com/wirecall/wirecall/pkg/api"
	"github.com/wirecall/wirecall/pkg/logger"
)

// SignalingRelay forwards WebRTC negotiation envelopes
// between the two participants of a call session.
// There is no acknowledgment, retry or buffering.
type SignalingRelay struct {
	mu       sync.Locker
	presence *Presence
	calls    *Calls
	metrics  *Metrics
	log      *logger.Logger
}

func NewSignalingRelay(mu sync.Locker, p *Presence, c *Calls, m *Metrics, log *logger.Logger) *SignalingRelay {
	return &SignalingRelay{mu: mu, presence: p, calls: c, metrics: m, log: log}
}

// Forward sends the envelope to the other side of the sender's session.
// Returns false if the envelope has been dropped.
func (r *SignalingRelay) Forward(from Conn, env api.SignalingEnvelope) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sender, ok := r.presence.IdentityOf(from)
	if !ok {
		return r.drop("unregistered sender", from)
	}
	s, ok := r.calls.Of(sender.Id)
	if !ok {
		return r.drop("no session", from)
	}
	if env.SessionId != "" && env.SessionId != s.Id {
		return r.drop("foreign session", from)
	}
	peer, ok := r.presence.Lookup(s.Other(sender.Id))
	if !ok {
		return r.drop("peer is offline", from)
	}
	env.From = sender.Id
	env.SessionId = s.Id
	peer.Notify(api.Signaling, env)
	r.metrics.SignalingRelayed.Inc()
	return true
}

func (r *SignalingRelay) drop(why string, from Conn) bool {
	r.log.Debug().Str(logger.ClientField, from.Id().Short()).Msgf("signaling dropped: %v", why)
	r.metrics.SignalingDropped.Inc()
	return false
}

// Chat delivery modes.
const (
	ChatDirect    = "direct"
	ChatBroadcast = "broadcast"
	ChatDropped   = "dropped"
)

// ChatRelay delivers chat messages independently of the call state.
type ChatRelay struct {
	mu       sync.Locker
	presence *Presence
	metrics  *Metrics
	log      *logger.Logger
}

func NewChatRelay(mu sync.Locker, p *Presence, m *Metrics, log *logger.Logger) *ChatRelay {
	return &ChatRelay{mu: mu, presence: p, metrics: m, log: log}
}

// Deliver sends the message to its recipient with a copy back to the sender.
// A message without a known recipient goes to everyone connected.
// Messages from the connections without an identity are dropped.
func (r *ChatRelay) Deliver(from Conn, env api.ChatEnvelope) (mode string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer func() { r.metrics.ChatMessages.WithLabelValues(mode).Inc() }()

	sender, ok := r.presence.IdentityOf(from)
	if !ok {
		r.log.Debug().Str(logger.ClientField, from.Id().Short()).Msg("chat from unregistered connection")
		return ChatDropped
	}
	env.From = sender.Id

	if env.To != "" {
		if to, ok := r.presence.Lookup(env.To); ok {
			to.Notify(api.ChatMessage, env)
			if to.Id() != from.Id() {
				from.Notify(api.ChatMessage, env)
			}
			return ChatDirect
		}
	}
	r.presence.Broadcast(api.ChatMessage, env)
	return ChatBroadcast
}
