package webrtc

import (
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/wirecall/wirecall/pkg/api"
	"github.com/wirecall/wirecall/pkg/client"
	"github.com/wirecall/wirecall/pkg/logger"
)

var ErrNoRemote = errors.New("no remote description")

// LocalTrack is a track that can be sent over a peer connection.
type LocalTrack interface {
	Local() webrtc.TrackLocal
}

// PeerFactory makes pion peer connections for the client.
type PeerFactory struct {
	api *ApiFactory
	log *logger.Logger
}

func NewPeerFactory(api *ApiFactory, log *logger.Logger) *PeerFactory {
	return &PeerFactory{api: api, log: log.Module("webrtc")}
}

// Peer is a client peer over a pion connection.
type Peer struct {
	conn   *webrtc.PeerConnection
	events client.PeerEvents
	log    *logger.Logger

	mu      sync.Mutex
	pending []webrtc.ICECandidateInit
}

func (f *PeerFactory) NewPeer(stream client.MediaStream, events client.PeerEvents) (client.Peer, error) {
	conn, err := f.api.NewPeer()
	if err != nil {
		return nil, err
	}
	p := &Peer{conn: conn, events: events, log: f.log}

	if stream != nil {
		for _, t := range stream.Tracks() {
			local, ok := t.(LocalTrack)
			if !ok {
				continue
			}
			sender, err := conn.AddTrack(local.Local())
			if err != nil {
				_ = conn.Close()
				return nil, err
			}
			go drainRTCP(sender)
			p.log.Debug().Msgf("Added [%s] track", t.Kind())
		}
	}

	conn.OnICECandidate(p.handleICECandidate)
	conn.OnConnectionStateChange(p.handleState)
	conn.OnTrack(p.handleTrack)
	return p, nil
}

// Offer makes the local offer.
func (p *Peer) Offer() (api.SessionDescription, error) {
	offer, err := p.conn.CreateOffer(nil)
	if err != nil {
		return api.SessionDescription{}, err
	}
	if err = p.conn.SetLocalDescription(offer); err != nil {
		return api.SessionDescription{}, err
	}
	p.log.Debug().Msg("Created Offer")
	return description(offer), nil
}

// Answer takes the remote offer and makes the local answer.
func (p *Peer) Answer(offer api.SessionDescription) (api.SessionDescription, error) {
	if err := p.setRemote(webrtc.SDPTypeOffer, offer); err != nil {
		return api.SessionDescription{}, err
	}
	answer, err := p.conn.CreateAnswer(nil)
	if err != nil {
		return api.SessionDescription{}, err
	}
	if err = p.conn.SetLocalDescription(answer); err != nil {
		return api.SessionDescription{}, err
	}
	p.log.Debug().Msg("Created Answer")
	return description(answer), nil
}

func (p *Peer) SetAnswer(answer api.SessionDescription) error {
	return p.setRemote(webrtc.SDPTypeAnswer, answer)
}

// AddCandidate adds the remote candidate,
// the candidates before the remote description wait for it.
func (p *Peer) AddCandidate(candidate api.IceCandidate) error {
	ice := webrtc.ICECandidateInit{
		Candidate:        candidate.Candidate,
		SDPMid:           candidate.SdpMid,
		SDPMLineIndex:    candidate.SdpMLineIndex,
		UsernameFragment: candidate.UsernameFragment,
	}
	p.mu.Lock()
	if p.conn.RemoteDescription() == nil {
		p.pending = append(p.pending, ice)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()
	p.log.Debug().Str("candidate", ice.Candidate).Msg("ICE")
	return p.conn.AddICECandidate(ice)
}

func (p *Peer) Close() error {
	if p.conn.ConnectionState() == webrtc.PeerConnectionStateClosed {
		return nil
	}
	p.log.Debug().Msg("WebRTC stop")
	return p.conn.Close()
}

func (p *Peer) setRemote(t webrtc.SDPType, d api.SessionDescription) error {
	if d.Sdp == "" {
		return ErrNoRemote
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.conn.SetRemoteDescription(webrtc.SessionDescription{Type: t, SDP: d.Sdp}); err != nil {
		return err
	}
	pending := p.pending
	p.pending = nil
	for _, ice := range pending {
		if err := p.conn.AddICECandidate(ice); err != nil {
			return err
		}
	}
	return nil
}

func (p *Peer) handleICECandidate(ice *webrtc.ICECandidate) {
	// ICE gathering finish condition
	if ice == nil {
		p.log.Debug().Msg("ICE gathering was complete probably")
		return
	}
	c := ice.ToJSON()
	p.log.Debug().Str("candidate", c.Candidate).Msg("ICE")
	if p.events.OnCandidate != nil {
		go p.events.OnCandidate(api.IceCandidate{
			Candidate:        c.Candidate,
			SdpMid:           c.SDPMid,
			SdpMLineIndex:    c.SDPMLineIndex,
			UsernameFragment: c.UsernameFragment,
		})
	}
}

func (p *Peer) handleState(state webrtc.PeerConnectionState) {
	p.log.Debug().Str(".state", state.String()).Msg("WebRTC")
	if state == webrtc.PeerConnectionStateFailed {
		p.log.Error().Msgf("WebRTC connection fail! ice: %v, gathering: %v, signalling: %v",
			p.conn.ICEConnectionState(), p.conn.ICEGatheringState(), p.conn.SignalingState())
	}
	if p.events.OnState != nil {
		go p.events.OnState(PeerState(state))
	}
}

func (p *Peer) handleTrack(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
	p.log.Debug().Msgf("Remote [%s] track %s", remote.Kind(), remote.Codec().MimeType)
	if p.events.OnTrack != nil {
		p.events.OnTrack(client.RemoteTrack{Id: remote.ID(), Kind: remote.Kind().String(), Track: remote})
	}
	// nobody plays it, just keep the receiver going
	buf := make([]byte, 1500)
	for {
		if _, _, err := remote.Read(buf); err != nil {
			return
		}
	}
}

// PeerState maps the pion connection states.
func PeerState(state webrtc.PeerConnectionState) client.PeerState {
	switch state {
	case webrtc.PeerConnectionStateConnecting:
		return client.PeerConnecting
	case webrtc.PeerConnectionStateConnected:
		return client.PeerConnected
	case webrtc.PeerConnectionStateDisconnected:
		return client.PeerDisconnected
	case webrtc.PeerConnectionStateFailed:
		return client.PeerFailed
	case webrtc.PeerConnectionStateClosed:
		return client.PeerClosed
	default:
		return client.PeerNew
	}
}

func description(d webrtc.SessionDescription) api.SessionDescription {
	return api.SessionDescription{Type: d.Type.String(), Sdp: d.SDP}
}

// drainRTCP reads the incoming RTCP packets so the interceptors get them.
func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}
