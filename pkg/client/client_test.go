package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wirecall/wirecall/pkg/api"
	"github.com/wirecall/wirecall/pkg/logger"
)

var (
	offer  = api.SessionDescription{Type: "offer", Sdp: "v=0 offer"}
	answer = api.SessionDescription{Type: "answer", Sdp: "v=0 answer"}
	cand   = api.IceCandidate{Candidate: "candidate:1 1 udp 1 127.0.0.1 5000 typ host"}
)

type testRig struct {
	*Client
	tr     *mockTransport
	media  *mockMedia
	peers  *mockPeerFactory
	peer   *mockPeer
	stream *fakeStream

	mu     sync.Mutex
	states []string
	rings  []api.CallIncomingNotice
	roster []api.PresenceEntry
}

func newRig(t *testing.T, id string) *testRig {
	r := &testRig{
		tr:     &mockTransport{},
		media:  &mockMedia{},
		peers:  &mockPeerFactory{},
		peer:   &mockPeer{},
		stream: newFakeStream(),
	}
	r.tr.On("Notify", mock.Anything, mock.Anything).Return()
	r.peer.On("Close").Return(nil)
	r.Client = New(api.Identity{Id: id}, r.tr, r.media, r.peers, Handlers{
		OnState: func(from, to string) {
			r.mu.Lock()
			r.states = append(r.states, from+">"+to)
			r.mu.Unlock()
		},
		OnIncoming: func(rq api.CallIncomingNotice) {
			r.mu.Lock()
			r.rings = append(r.rings, rq)
			r.mu.Unlock()
		},
		OnRoster: func(entries []api.PresenceEntry) {
			r.mu.Lock()
			r.roster = entries
			r.mu.Unlock()
		},
	}, Options{Constraints: Constraints{Audio: true, Video: true}, EndedDelay: 50 * time.Millisecond}, logger.Nop())
	t.Cleanup(r.Close)
	return r
}

func (r *testRig) withMedia() *testRig {
	r.media.On("GetUserMedia", mock.Anything, Constraints{Audio: true, Video: true}).Return(r.stream, nil)
	return r
}

func (r *testRig) withPeer() *testRig {
	r.peers.On("NewPeer", r.stream).Return(r.peer, nil)
	return r
}

func (r *testRig) transitions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.states...)
}

func envelopes(r *testRig) []api.SignalingEnvelope {
	var out []api.SignalingEnvelope
	for _, p := range r.tr.all(api.Signaling) {
		out = append(out, p.(api.SignalingEnvelope))
	}
	return out
}

func hangups(r *testRig) []api.CallHangupRequest {
	var out []api.CallHangupRequest
	for _, p := range r.tr.all(api.CallHangup) {
		out = append(out, p.(api.CallHangupRequest))
	}
	return out
}

// dial makes an outgoing call that the coordinator accepts with the session s1.
func (r *testRig) dial(t *testing.T) {
	r.withMedia().withPeer()
	r.tr.On("Call", api.CallInitiate, api.CallInitiateRequest{CallerId: r.self.Id, CalleeId: "bob"}).
		Return(reply(api.CallInitiateResponse{SessionId: "s1"}), nil)
	r.peer.On("Offer").Return(offer, nil)
	require.NoError(t, r.Call(context.Background(), "bob"))
}

func TestCaller(t *testing.T) {
	t.Run("OffersAfterInitiate", testCallerOffers)
	t.Run("FirstAnswerWins", testCallerFirstAnswer)
	t.Run("SendsCandidates", testCallerCandidates)
	t.Run("HangsUp", testCallerHangup)
	t.Run("AlreadyInCall", testCallerAlreadyInCall)
}

func testCallerOffers(t *testing.T) {
	r := newRig(t, "alice")
	r.dial(t)

	assert.Equal(t, Dialing, r.State())
	assert.Equal(t, "s1", r.Session())
	assert.Equal(t, "bob", r.Remote())
	env := envelopes(r)
	require.Len(t, env, 1)
	assert.True(t, env[0].Offerer, "the caller offers")
	assert.Equal(t, "s1", env[0].SessionId)
	assert.Equal(t, offer, *env[0].Sdp)
}

func testCallerFirstAnswer(t *testing.T) {
	r := newRig(t, "alice")
	r.dial(t)
	r.peer.On("SetAnswer", answer).Return(nil)

	require.NoError(t, r.Route(packetOf(api.Signaling, api.SignalingEnvelope{SessionId: "s1", From: "bob", Sdp: &answer})))
	require.NoError(t, r.Route(packetOf(api.CallAccepted, api.CallAcceptedNotice{SessionId: "s1"})))

	assert.Equal(t, Active, r.State())
	assert.Equal(t, []string{"idle>dialing", "dialing>active"}, r.transitions())
	r.peer.AssertCalled(t, "SetAnswer", answer)
}

func testCallerCandidates(t *testing.T) {
	r := newRig(t, "alice")
	r.dial(t)
	r.peer.On("AddCandidate", cand).Return(nil)

	r.peers.peerEvents().OnCandidate(cand)
	require.NoError(t, r.Route(packetOf(api.Signaling, api.SignalingEnvelope{SessionId: "s1", Candidate: &cand})))

	env := envelopes(r)
	require.Len(t, env, 2)
	assert.True(t, env[1].Offerer)
	assert.Equal(t, cand, *env[1].Candidate)
	r.peer.AssertCalled(t, "AddCandidate", cand)

	// not ours
	require.NoError(t, r.Route(packetOf(api.Signaling, api.SignalingEnvelope{SessionId: "s9", Candidate: &cand})))
	r.peer.AssertNumberOfCalls(t, "AddCandidate", 1)
}

func testCallerHangup(t *testing.T) {
	r := newRig(t, "alice")
	r.dial(t)
	require.NoError(t, r.Route(packetOf(api.CallAccepted, api.CallAcceptedNotice{SessionId: "s1"})))

	r.Hangup()

	assert.Equal(t, Ended, r.State())
	assert.True(t, r.stream.stopped())
	r.peer.AssertCalled(t, "Close")
	assert.Equal(t, []api.CallHangupRequest{{SessionId: "s1", InitiatorId: "alice", Reason: api.ReasonHangup}}, hangups(r))
	assert.Empty(t, r.Session())

	require.Eventually(t, func() bool { return r.State() == Idle }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"idle>dialing", "dialing>active", "active>ended", "ended>idle"}, r.transitions())
}

func testCallerAlreadyInCall(t *testing.T) {
	r := newRig(t, "alice")
	r.dial(t)
	assert.ErrorIs(t, r.Call(context.Background(), "carol"), api.ErrAlreadyInCall)
	r.tr.AssertNumberOfCalls(t, "Call", 1)
}

func TestCallee(t *testing.T) {
	t.Run("AnswersBufferedOffer", testCalleeAnswers)
	t.Run("Reject", testCalleeReject)
	t.Run("MediaFailureRejects", testCalleeMediaFailure)
	t.Run("HangupNotifyIsReactive", testCalleeReactive)
	t.Run("BusyWhileInCall", testCalleeBusy)
}

func ringing(t *testing.T, r *testRig) {
	require.NoError(t, r.Route(packetOf(api.CallIncoming, api.CallIncomingNotice{SessionId: "s1", Caller: api.Identity{Id: "alice", Name: "Alice"}})))
	require.Equal(t, Ringing, r.State())
}

func testCalleeAnswers(t *testing.T) {
	r := newRig(t, "bob")
	r.withMedia().withPeer()
	r.peer.On("Answer", offer).Return(answer, nil)
	r.peer.On("AddCandidate", cand).Return(nil)

	ringing(t, r)
	require.Len(t, r.rings, 1)
	assert.Equal(t, "Alice", r.rings[0].Caller.Name)

	// the offer comes before the accept
	require.NoError(t, r.Route(packetOf(api.Signaling, api.SignalingEnvelope{SessionId: "s1", Offerer: true, Sdp: &offer})))
	require.NoError(t, r.Route(packetOf(api.Signaling, api.SignalingEnvelope{SessionId: "s1", Offerer: true, Candidate: &cand})))
	r.peers.AssertNotCalled(t, "NewPeer", mock.Anything)

	require.NoError(t, r.Accept(context.Background()))

	assert.Equal(t, Active, r.State())
	assert.Equal(t, []any{api.CallAcceptRequest{SessionId: "s1"}}, r.tr.all(api.CallAccept))
	env := envelopes(r)
	require.Len(t, env, 1)
	assert.False(t, env[0].Offerer, "the callee answers")
	assert.Equal(t, answer, *env[0].Sdp)
	require.Len(t, r.peer.Calls, 2)
	assert.Equal(t, "Answer", r.peer.Calls[0].Method)
	assert.Equal(t, "AddCandidate", r.peer.Calls[1].Method)
}

func testCalleeReject(t *testing.T) {
	r := newRig(t, "bob")
	assert.ErrorIs(t, r.Reject(), ErrNoCall)
	ringing(t, r)

	require.NoError(t, r.Reject())
	assert.Equal(t, Ended, r.State())
	assert.Equal(t, []api.CallHangupRequest{{SessionId: "s1", InitiatorId: "bob", Reason: api.ReasonRejected}}, hangups(r))
}

func testCalleeMediaFailure(t *testing.T) {
	r := newRig(t, "bob")
	r.media.On("GetUserMedia", mock.Anything, mock.Anything).Return(nil, errors.New("no camera"))
	ringing(t, r)

	err := r.Accept(context.Background())
	assert.ErrorIs(t, err, ErrMediaAcquisition)
	assert.Equal(t, Ended, r.State())
	assert.Empty(t, r.tr.all(api.CallAccept))
	assert.Equal(t, []api.CallHangupRequest{{SessionId: "s1", InitiatorId: "bob", Reason: api.ReasonRejected}}, hangups(r))
}

func testCalleeReactive(t *testing.T) {
	r := newRig(t, "bob")
	ringing(t, r)

	require.NoError(t, r.Route(packetOf(api.CallHangupNotify, nil)))
	assert.Equal(t, Ended, r.State())
	assert.Empty(t, hangups(r))
	assert.ErrorIs(t, r.Accept(context.Background()), ErrNoCall)
}

func testCalleeBusy(t *testing.T) {
	r := newRig(t, "bob")
	ringing(t, r)

	require.NoError(t, r.Route(packetOf(api.CallIncoming, api.CallIncomingNotice{SessionId: "s2", Caller: api.Identity{Id: "carol"}})))
	assert.Equal(t, Ringing, r.State())
	assert.Equal(t, "s1", r.Session())
	assert.Equal(t, []api.CallHangupRequest{{SessionId: "s2", InitiatorId: "bob", Reason: api.ReasonBusy}}, hangups(r))
}

func TestCallFailures(t *testing.T) {
	t.Run("MediaFailureSendsNothing", func(t *testing.T) {
		r := newRig(t, "alice")
		r.media.On("GetUserMedia", mock.Anything, mock.Anything).Return(nil, errors.New("denied"))

		err := r.Call(context.Background(), "bob")

		var mediaErr *MediaAcquisitionError
		require.ErrorAs(t, err, &mediaErr)
		assert.EqualError(t, mediaErr.Err, "denied")
		assert.ErrorIs(t, err, ErrMediaAcquisition)
		assert.Equal(t, Idle, r.State())
		r.tr.AssertNotCalled(t, "Call", mock.Anything, mock.Anything)
		assert.Zero(t, r.tr.total())
	})

	tests := []struct {
		code  api.ErrCode
		err   error
		state string
	}{
		{code: api.CodeTargetOffline, err: api.ErrTargetOffline, state: Idle},
		{code: api.CodeBusy, err: api.ErrBusy, state: Ended},
		{code: api.CodeAlreadyInCall, err: api.ErrAlreadyInCall, state: Idle},
	}
	for _, test := range tests {
		t.Run(string(test.code), func(t *testing.T) {
			r := newRig(t, "alice").withMedia()
			r.tr.On("Call", api.CallInitiate, mock.Anything).Return(reply(api.Error{Code: test.code}), nil)

			assert.ErrorIs(t, r.Call(context.Background(), "bob"), test.err)
			assert.Equal(t, test.state, r.State())
			assert.True(t, r.stream.stopped())
			assert.Zero(t, r.tr.total())
		})
	}

	t.Run("PeerFailure", func(t *testing.T) {
		r := newRig(t, "alice")
		r.dial(t)

		r.peers.peerEvents().OnState(PeerFailed)

		assert.Equal(t, Ended, r.State())
		assert.Equal(t, []api.CallHangupRequest{{SessionId: "s1", InitiatorId: "alice", Reason: api.ReasonFailed}}, hangups(r))
	})

	t.Run("BadOffer", func(t *testing.T) {
		r := newRig(t, "bob")
		r.withMedia().withPeer()
		r.peer.On("Answer", offer).Return(api.SessionDescription{}, errors.New("bad sdp"))
		ringing(t, r)
		require.NoError(t, r.Route(packetOf(api.Signaling, api.SignalingEnvelope{SessionId: "s1", Offerer: true, Sdp: &offer})))

		assert.ErrorIs(t, r.Accept(context.Background()), ErrNegotiation)
		assert.Equal(t, Ended, r.State())
		assert.Equal(t, api.ReasonFailed, hangups(r)[0].Reason)
	})
}

func TestRoster(t *testing.T) {
	r := newRig(t, "alice")
	entries := []api.PresenceEntry{
		{Identity: api.Identity{Id: "alice"}, ConnectionId: "1"},
		{Identity: api.Identity{Id: "bob"}, ConnectionId: "2"},
	}
	require.NoError(t, r.Route(packetOf(api.Roster, entries)))

	assert.Equal(t, entries[1:], r.Roster())
	assert.Equal(t, entries[1:], r.roster)

	require.NoError(t, r.Register())
	assert.Equal(t, []any{api.Identity{Id: "alice"}}, r.tr.all(api.Register))
}

func TestChat(t *testing.T) {
	r := newRig(t, "alice")

	env, err := r.SendMessage("bob", "hi", NewAttachment("note.txt", []byte("hello there")))
	require.NoError(t, err)
	_, err = uuid.Parse(env.Id)
	assert.NoError(t, err)
	assert.Equal(t, "alice", env.From)
	assert.Equal(t, "text/plain; charset=utf-8", env.Attachment.MimeType)
	assert.Len(t, r.tr.all(api.ChatMessage), 1)

	_, err = r.SendMessage("", "no name", &api.Attachment{Data: []byte{1}})
	assert.ErrorIs(t, err, api.ErrMalformed)

	for _, m := range []api.ChatEnvelope{
		{From: "alice", To: "bob", Message: "1"},
		{From: "carol", To: "alice", Message: "2"},
		{From: "bob", To: "alice", Message: "3"},
		{From: "bob", Message: "4"},
	} {
		require.NoError(t, r.Route(packetOf(api.ChatMessage, m)))
	}
	assert.Len(t, r.Messages(), 4)
	conv := r.Conversation("alice", "bob")
	require.Len(t, conv, 2)
	assert.Equal(t, "1", conv[0].Message)
	assert.Equal(t, "3", conv[1].Message)
}

func TestNewAttachment(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	assert.Equal(t, "image/png", NewAttachment("a.png", png).MimeType)
	assert.Equal(t, "application/octet-stream", NewAttachment("x", []byte{0, 1, 2, 3, 0xff}).MimeType)
}

func TestToggles(t *testing.T) {
	r := newRig(t, "alice")
	assert.False(t, r.ToggleAudio(), "no media")

	r.dial(t)
	assert.False(t, r.ToggleAudio())
	assert.False(t, r.stream.tracks[0].Enabled())
	assert.True(t, r.stream.tracks[1].Enabled())
	assert.True(t, r.ToggleAudio())
	assert.False(t, r.ToggleVideo())
	assert.False(t, r.stream.tracks[1].Enabled())
}

func TestPeerState(t *testing.T) {
	assert.Equal(t, "failed", PeerFailed.String())
	assert.Equal(t, "new", PeerNew.String())
}
