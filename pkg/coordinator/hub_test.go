package coordinator

import (
	"math/rand"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wirecall/wirecall/pkg/api"
	"github.com/wirecall/wirecall/pkg/com"
	"github.com/wirecall/wirecall/pkg/config"
	"github.com/wirecall/wirecall/pkg/logger"
)

func newTestHub() *Hub {
	return NewHub(config.CoordinatorConfig{}, NewMetrics(prometheus.NewRegistry()), logger.Nop())
}

// join connects and registers a fake user.
func join(h *Hub, name string) *fakeConn {
	c := newFakeConn()
	h.connect(c)
	h.Register(c, api.Identity{Id: name})
	return c
}

func call(t *testing.T, h *Hub, from *fakeConn, caller, callee string) string {
	t.Helper()
	id, err := h.Initiate(from, api.CallInitiateRequest{CallerId: caller, CalleeId: callee})
	require.NoError(t, err)
	return id
}

func TestHub(t *testing.T) {
	t.Run("RingThenHangup", testHubRingThenHangup)
	t.Run("AcceptedCall", testHubAcceptedCall)
	t.Run("TargetOffline", testHubTargetOffline)
	t.Run("Busy", testHubBusy)
	t.Run("ForeignClaims", testHubForeignClaims)
	t.Run("DisconnectMidCall", testHubDisconnectMidCall)
	t.Run("ConcurrentCommands", testHubConcurrentCommands)
	t.Run("StalledConnection", testHubStalledConnection)
}

func testHubRingThenHangup(t *testing.T) {
	h := newTestHub()
	alice, bob := join(h, "alice"), join(h, "bob")

	id := call(t, h, alice, "alice", "bob")

	incoming, ok := bob.last(api.CallIncoming)
	require.True(t, ok)
	assert.Equal(t, id, incoming.Payload.(api.CallIncomingNotice).SessionId)
	assert.Equal(t, "alice", incoming.Payload.(api.CallIncomingNotice).Caller.Id)

	require.NoError(t, h.Hangup(alice, api.CallHangupRequest{SessionId: id, InitiatorId: "alice"}))
	assert.Equal(t, 1, bob.count(api.CallHangupNotify))
	assert.Zero(t, alice.count(api.CallHangupNotify))
	assert.Empty(t, h.Sessions())

	// no session, no signaling
	assert.False(t, h.signal.Forward(alice, api.SignalingEnvelope{SessionId: id, Sdp: &api.SessionDescription{Type: "offer"}}))
	assert.Zero(t, bob.count(api.Signaling))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Hangups.WithLabelValues("hangup")))
}

func testHubAcceptedCall(t *testing.T) {
	h := newTestHub()
	alice, bob := join(h, "alice"), join(h, "bob")
	id := call(t, h, alice, "alice", "bob")

	require.NoError(t, h.Accept(bob, api.CallAcceptRequest{SessionId: id}))
	require.NoError(t, h.Accept(bob, api.CallAcceptRequest{SessionId: id}))
	assert.Equal(t, 1, alice.count(api.CallAccepted))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.ActiveCalls))

	assert.True(t, h.signal.Forward(alice, api.SignalingEnvelope{Offerer: true, Sdp: &api.SessionDescription{Type: "offer", Sdp: "v=0"}}))
	env, ok := bob.last(api.Signaling)
	require.True(t, ok)
	assert.Equal(t, "alice", env.Payload.(api.SignalingEnvelope).From)
	assert.Equal(t, id, env.Payload.(api.SignalingEnvelope).SessionId)

	require.NoError(t, h.Hangup(bob, api.CallHangupRequest{SessionId: id, InitiatorId: "bob", Reactive: true}))
	assert.Zero(t, alice.count(api.CallHangupNotify))
	assert.Zero(t, testutil.ToFloat64(h.metrics.ActiveCalls))
}

func testHubTargetOffline(t *testing.T) {
	h := newTestHub()
	alice := join(h, "alice")
	lurker := newFakeConn()
	h.connect(lurker)

	_, err := h.Initiate(alice, api.CallInitiateRequest{CallerId: "alice", CalleeId: "bob"})
	assert.ErrorIs(t, err, api.ErrTargetOffline)
	assert.Empty(t, h.Sessions())
	assert.Zero(t, lurker.count(api.CallIncoming))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Calls.WithLabelValues("target_offline")))
}

func testHubBusy(t *testing.T) {
	h := newTestHub()
	alice, bob, carol := join(h, "alice"), join(h, "bob"), join(h, "carol")
	call(t, h, alice, "alice", "bob")

	_, err := h.Initiate(carol, api.CallInitiateRequest{CallerId: "carol", CalleeId: "bob"})
	assert.ErrorIs(t, err, api.ErrBusy)
	assert.Equal(t, 1, carol.count(api.CallHangupNotify))
	assert.Equal(t, 1, bob.count(api.CallIncoming))
	assert.Len(t, h.Sessions(), 1)

	_, err = h.Initiate(alice, api.CallInitiateRequest{CallerId: "alice", CalleeId: "carol"})
	assert.ErrorIs(t, err, api.ErrAlreadyInCall)
}

func testHubForeignClaims(t *testing.T) {
	h := newTestHub()
	alice, _ := join(h, "alice"), join(h, "bob")
	stranger := newFakeConn()
	h.connect(stranger)

	_, err := h.Initiate(alice, api.CallInitiateRequest{CallerId: "bob", CalleeId: "alice"})
	assert.ErrorIs(t, err, api.ErrForbidden)
	_, err = h.Initiate(stranger, api.CallInitiateRequest{CallerId: "stranger", CalleeId: "alice"})
	assert.ErrorIs(t, err, api.ErrForbidden)

	id := call(t, h, alice, "alice", "bob")
	assert.ErrorIs(t, h.Hangup(alice, api.CallHangupRequest{SessionId: id, InitiatorId: "bob"}), api.ErrForbidden)
	assert.Len(t, h.Sessions(), 1)
}

func testHubDisconnectMidCall(t *testing.T) {
	h := newTestHub()
	alice, bob := join(h, "alice"), join(h, "bob")
	id := call(t, h, alice, "alice", "bob")
	require.NoError(t, h.Accept(bob, api.CallAcceptRequest{SessionId: id}))

	h.disconnect(bob)

	assert.Equal(t, 1, alice.count(api.CallHangupNotify))
	assert.Empty(t, h.Sessions())
	assert.Equal(t, []string{"alice"}, ids(h.Roster()))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.OnlineUsers))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Hangups.WithLabelValues("dropped")))

	// the late hangup of the dropped call
	require.NoError(t, h.Hangup(alice, api.CallHangupRequest{SessionId: id, InitiatorId: "alice", Reactive: true}))
	assert.Equal(t, 1, alice.count(api.CallHangupNotify))
}

func testHubConcurrentCommands(t *testing.T) {
	h := newTestHub()
	names := []string{"a", "b", "c", "d", "e", "f"}
	conns := make(map[string]*fakeConn)
	for _, n := range names {
		conns[n] = join(h, n)
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rnd := rand.New(rand.NewSource(seed))
			for i := 0; i < 300; i++ {
				me := names[rnd.Intn(len(names))]
				other := names[rnd.Intn(len(names))]
				switch rnd.Intn(3) {
				case 0:
					_, _ = h.Initiate(conns[me], api.CallInitiateRequest{CallerId: me, CalleeId: other})
				case 1:
					if s, ok := h.calls.Of(me); ok {
						_ = h.Accept(conns[me], api.CallAcceptRequest{SessionId: s.Id})
					}
				case 2:
					if s, ok := h.calls.Of(me); ok {
						_ = h.Hangup(conns[me], api.CallHangupRequest{SessionId: s.Id, InitiatorId: me})
					}
				}
			}
		}(int64(g))
	}
	wg.Wait()

	busy := map[string]int{}
	for _, s := range h.Sessions() {
		busy[s.Caller.Id]++
		busy[s.Callee]++
		assert.NotEqual(t, s.Caller.Id, s.Callee)
	}
	for user, n := range busy {
		assert.Equal(t, 1, n, user)
	}
}

// a user that stops reading gets dropped without holding up the others
func testHubStalledConnection(t *testing.T) {
	h := newTestHub()
	joined := make(chan *User, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sock, err := h.connector.NewServer(w, r, logger.Nop())
		if err != nil {
			return
		}
		// not listening, nothing drains the send queue
		usr := NewUser(sock)
		h.connect(usr)
		h.Register(usr, api.Identity{Id: "carol"})
		joined <- usr
	}))
	defer srv.Close()

	addr, err := url.Parse(srv.URL)
	require.NoError(t, err)
	addr.Scheme = "ws"
	remote, err := com.NewConnector().NewClient(*addr, logger.Nop())
	require.NoError(t, err)
	defer remote.Disconnect()

	var carol *User
	select {
	case carol = <-joined:
	case <-time.After(3 * time.Second):
		t.Fatal("no connection")
	}

	alice, bob := join(h, "alice"), join(h, "bob")
	const spam = 300

	var callErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < spam; i++ {
			h.chat.Deliver(alice, api.ChatEnvelope{Message: "spam"})
		}
		dave := newFakeConn()
		h.connect(dave)
		h.Register(dave, api.Identity{Id: "dave"})
		_, callErr = h.Initiate(alice, api.CallInitiateRequest{CallerId: "alice", CalleeId: "bob"})
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("the hub is stuck on a stalled connection")
	}
	require.NoError(t, callErr)
	assert.Equal(t, spam, bob.count(api.ChatMessage))
	assert.Equal(t, 1, bob.count(api.CallIncoming))

	// the pumps find the socket closed
	carol.Listen()
	select {
	case <-carol.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("the stalled connection is still open")
	}
	h.disconnect(carol)
	assert.Equal(t, []string{"alice", "bob", "dave"}, ids(h.Roster()))
}
