package client

import (
	"context"

	"github.com/wirecall/wirecall/pkg/api"
)

// Transport is the connection to the coordinator.
type Transport interface {
	// Call waits for the reply.
	Call(t api.PT, payload any) ([]byte, error)
	Notify(t api.PT, payload any)
}

// Track kinds.
const (
	KindAudio = "audio"
	KindVideo = "video"
)

type Constraints struct {
	Audio bool
	Video bool
}

type MediaDevices interface {
	GetUserMedia(ctx context.Context, c Constraints) (MediaStream, error)
}

// MediaStream is a set of local tracks.
type MediaStream interface {
	Tracks() []Track
	// Stop stops all the tracks of the stream.
	Stop()
}

type Track interface {
	Kind() string
	Enabled() bool
	SetEnabled(bool)
	Stop()
}

type PeerState uint8

const (
	PeerNew PeerState = iota
	PeerConnecting
	PeerConnected
	PeerDisconnected
	PeerFailed
	PeerClosed
)

func (s PeerState) String() string {
	switch s {
	case PeerConnecting:
		return "connecting"
	case PeerConnected:
		return "connected"
	case PeerDisconnected:
		return "disconnected"
	case PeerFailed:
		return "failed"
	case PeerClosed:
		return "closed"
	default:
		return "new"
	}
}

// RemoteTrack is a track that came from the other side.
// Track is the implementation specific value.
type RemoteTrack struct {
	Id    string
	Kind  string
	Track any
}

// PeerEvents are called by a peer from its own goroutines.
type PeerEvents struct {
	OnCandidate func(api.IceCandidate)
	OnState     func(PeerState)
	OnTrack     func(RemoteTrack)
}

type PeerFactory interface {
	NewPeer(stream MediaStream, events PeerEvents) (Peer, error)
}

// Peer is a WebRTC peer connection.
type Peer interface {
	Offer() (api.SessionDescription, error)
	Answer(offer api.SessionDescription) (api.SessionDescription, error)
	SetAnswer(answer api.SessionDescription) error
	AddCandidate(candidate api.IceCandidate) error
	Close() error
}

// ToggleAudio mutes or unmutes the local audio.
// Returns the new state, false without media.
func (c *Client) ToggleAudio() bool { return c.toggle(KindAudio) }

// ToggleVideo turns the local video on or off.
func (c *Client) ToggleVideo() bool { return c.toggle(KindVideo) }

func (c *Client) toggle(kind string) (enabled bool) {
	c.lock()
	defer c.unlock()
	if c.stream == nil {
		return false
	}
	for _, t := range c.stream.Tracks() {
		if t.Kind() == kind {
			enabled = !t.Enabled()
			t.SetEnabled(enabled)
		}
	}
	return
}
