package coordinator

import (
	"context"
	"net/http"
	"sync"

	"github.com/wirecall/wirecall/pkg/api"
	"github.com/wirecall/wirecall/pkg/com"
	"github.com/wirecall/wirecall/pkg/config"
	"github.com/wirecall/wirecall/pkg/logger"
)

// Hub owns the presence and the call sessions of all the connected users.
// Every command that changes them runs under one lock,
// so the notifications of a command are queued before the next command starts.
type Hub struct {
	conf      config.CoordinatorConfig
	connector *com.Connector
	log       *logger.Logger
	users     com.NetMap[com.Uid, *User]

	mu       sync.Mutex
	presence *Presence
	calls    *Calls
	signal   *SignalingRelay
	chat     *ChatRelay
	metrics  *Metrics
}

// world is what call commands are decided against.
type world struct {
	*Calls
	presence *Presence
}

func (w world) online(user string) bool { return w.presence.Online(user) }

func NewHub(conf config.CoordinatorConfig, metrics *Metrics, log *logger.Logger) *Hub {
	h := &Hub{
		conf:      conf,
		connector: com.NewConnector(com.WithOrigin(conf.Coordinator.Origin), com.WithTag("u")),
		log:       log,
		users:     com.NewNetMap[com.Uid, *User](),
		presence:  NewPresence(),
		calls:     NewCalls(),
		metrics:   metrics,
	}
	h.signal = NewSignalingRelay(&h.mu, h.presence, h.calls, metrics, log)
	h.chat = NewChatRelay(&h.mu, h.presence, metrics, log)
	return h
}

// handleUserConnection serves the websocket of one user until it's closed.
func (h *Hub) handleUserConnection(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if err := recover(); err != nil {
			h.log.Error().Msgf("Recovered user connection: %v", err)
		}
	}()

	conn, err := h.connector.NewServer(w, r, h.log)
	if err != nil {
		h.log.Error().Err(err).Msg("couldn't init user connection")
		return
	}
	usr := NewUser(conn)
	h.users.Add(usr)
	h.connect(usr)
	defer func() {
		h.disconnect(usr)
		h.users.Remove(usr)
	}()
	usr.OnPacket(h.route(usr))
	usr.Listen()
	<-usr.Done()
}

func (h *Hub) connect(c Conn) { h.presence.Connect(c) }

// disconnect drops the call of the connection and then its presence.
func (h *Hub) disconnect(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if identity, ok := h.presence.IdentityOf(c); ok {
		if out, _ := h.execute(Drop{User: identity.Id}); out.Remove != nil {
			h.metrics.Hangups.WithLabelValues(string(api.ReasonDropped)).Inc()
		}
	}
	h.presence.Disconnect(c)
	h.metrics.OnlineUsers.Set(float64(h.presence.Len()))
}

// Register binds the identity to the connection and sends everyone the new roster.
func (h *Hub) Register(c Conn, identity api.Identity) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	added := h.presence.Register(c, identity)
	h.metrics.OnlineUsers.Set(float64(h.presence.Len()))
	return added
}

// Initiate starts a call from the connection identity to the callee.
func (h *Hub) Initiate(c Conn, rq api.CallInitiateRequest) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	caller, err := h.identity(c, rq.CallerId)
	if err != nil {
		return "", err
	}
	out, err := h.execute(Initiate{Caller: caller, Callee: rq.CalleeId})
	h.metrics.Calls.WithLabelValues(callResult(err)).Inc()
	if err != nil {
		return "", err
	}
	return out.Put.Id, nil
}

func (h *Hub) Accept(c Conn, rq api.CallAcceptRequest) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	callee, err := h.identity(c, "")
	if err != nil {
		return err
	}
	_, err = h.execute(Accept{By: callee.Id, Session: rq.SessionId})
	return err
}

func (h *Hub) Hangup(c Conn, rq api.CallHangupRequest) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	by, err := h.identity(c, rq.InitiatorId)
	if err != nil {
		return err
	}
	reason := rq.Reason
	if reason == "" {
		reason = api.ReasonHangup
	}
	out, err := h.execute(Hangup{By: by.Id, Session: rq.SessionId, Reactive: rq.Reactive, Reason: reason})
	if out.Remove != nil {
		h.metrics.Hangups.WithLabelValues(string(reason)).Inc()
		h.log.Debug().Str("session", out.Remove.Id).Str("by", by.Id).Msgf("hangup: %v", reason)
	}
	return err
}

func (h *Hub) Roster() []api.PresenceEntry { return h.presence.List() }

func (h *Hub) Sessions() []Session { return h.calls.List() }

// identity gives the registered identity of the connection.
// A non-empty claim must match it.
func (h *Hub) identity(c Conn, claim string) (api.Identity, error) {
	identity, ok := h.presence.IdentityOf(c)
	if !ok || (claim != "" && claim != identity.Id) {
		return api.Identity{}, api.ErrForbidden
	}
	return identity, nil
}

// execute decides and applies a call command.
// Should be called under the lock.
func (h *Hub) execute(cmd any) (Outcome, error) {
	out, err := decide(world{Calls: h.calls, presence: h.presence}, cmd, func() string { return com.NewUid().String() })
	h.calls.apply(out)
	for _, n := range out.Notices {
		if to, ok := h.presence.Lookup(n.To); ok {
			to.Notify(n.T, n.Payload)
		}
	}
	h.metrics.ActiveCalls.Set(float64(h.calls.Len()))
	return out, err
}

// Shutdown closes all user connections.
func (h *Hub) Shutdown(context.Context) error {
	for _, u := range h.users.Values() {
		u.Disconnect()
	}
	return nil
}

func (h *Hub) String() string { return "hub" }
