package client

import (
	"context"
	"sync"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/mock"
	"github.com/wirecall/wirecall/pkg/api"
	"github.com/wirecall/wirecall/pkg/com"
)

type sentPacket struct {
	T       api.PT
	Payload any
}

type mockTransport struct {
	mock.Mock
	mu   sync.Mutex
	sent []sentPacket
}

func (m *mockTransport) Call(t api.PT, payload any) ([]byte, error) {
	args := m.Called(t, payload)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *mockTransport) Notify(t api.PT, payload any) {
	m.mu.Lock()
	m.sent = append(m.sent, sentPacket{T: t, Payload: payload})
	m.mu.Unlock()
	m.Called(t, payload)
}

func (m *mockTransport) all(t api.PT) []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []any
	for _, p := range m.sent {
		if p.T == t {
			out = append(out, p.Payload)
		}
	}
	return out
}

func (m *mockTransport) total() int { m.mu.Lock(); defer m.mu.Unlock(); return len(m.sent) }

type mockMedia struct{ mock.Mock }

func (m *mockMedia) GetUserMedia(ctx context.Context, c Constraints) (MediaStream, error) {
	args := m.Called(ctx, c)
	s, _ := args.Get(0).(MediaStream)
	return s, args.Error(1)
}

type mockPeerFactory struct {
	mock.Mock
	mu     sync.Mutex
	events PeerEvents
}

func (m *mockPeerFactory) NewPeer(stream MediaStream, events PeerEvents) (Peer, error) {
	m.mu.Lock()
	m.events = events
	m.mu.Unlock()
	args := m.Called(stream)
	p, _ := args.Get(0).(Peer)
	return p, args.Error(1)
}

func (m *mockPeerFactory) peerEvents() PeerEvents { m.mu.Lock(); defer m.mu.Unlock(); return m.events }

type mockPeer struct{ mock.Mock }

func (m *mockPeer) Offer() (api.SessionDescription, error) {
	args := m.Called()
	return args.Get(0).(api.SessionDescription), args.Error(1)
}

func (m *mockPeer) Answer(offer api.SessionDescription) (api.SessionDescription, error) {
	args := m.Called(offer)
	return args.Get(0).(api.SessionDescription), args.Error(1)
}

func (m *mockPeer) SetAnswer(answer api.SessionDescription) error { return m.Called(answer).Error(0) }
func (m *mockPeer) AddCandidate(c api.IceCandidate) error         { return m.Called(c).Error(0) }
func (m *mockPeer) Close() error                                  { return m.Called().Error(0) }

type fakeTrack struct {
	mu      sync.Mutex
	kind    string
	enabled bool
	stopped bool
}

func (t *fakeTrack) Kind() string       { return t.kind }
func (t *fakeTrack) Enabled() bool      { t.mu.Lock(); defer t.mu.Unlock(); return t.enabled }
func (t *fakeTrack) SetEnabled(on bool) { t.mu.Lock(); t.enabled = on; t.mu.Unlock() }
func (t *fakeTrack) Stop()              { t.mu.Lock(); t.stopped = true; t.mu.Unlock() }
func (t *fakeTrack) isStopped() bool    { t.mu.Lock(); defer t.mu.Unlock(); return t.stopped }

type fakeStream struct {
	tracks []*fakeTrack
}

func newFakeStream() *fakeStream {
	return &fakeStream{tracks: []*fakeTrack{{kind: KindAudio, enabled: true}, {kind: KindVideo, enabled: true}}}
}

func (s *fakeStream) Tracks() []Track {
	out := make([]Track, len(s.tracks))
	for i, t := range s.tracks {
		out[i] = t
	}
	return out
}

func (s *fakeStream) Stop() {
	for _, t := range s.tracks {
		t.Stop()
	}
}

func (s *fakeStream) stopped() bool {
	for _, t := range s.tracks {
		if !t.isStopped() {
			return false
		}
	}
	return true
}

func packetOf(t api.PT, payload any) com.In {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	return com.In{T: t, Payload: data}
}

func reply(payload any) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	return data
}
