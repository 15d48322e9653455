package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/wirecall/wirecall/pkg/api"
)

// Call dials the callee.
// The caller makes the offer once the coordinator has created the session.
func (c *Client) Call(ctx context.Context, callee string) error {
	c.lock()
	if !c.is(Idle, Ended) {
		c.unlock()
		return api.ErrAlreadyInCall
	}
	c.fire(evDial)
	gen := c.newCall(callee, true)
	c.unlock()

	stream, err := c.media.GetUserMedia(ctx, c.opts.Constraints)
	if err != nil {
		c.lock()
		if c.current(gen) {
			c.teardown()
			c.fire(evAbort)
		}
		c.unlock()
		return &MediaAcquisitionError{Err: err}
	}

	c.lock()
	if !c.current(gen) {
		c.unlock()
		stream.Stop()
		return ErrCanceled
	}
	c.stream = stream
	c.unlock()

	resp, err := api.UnwrapChecked[api.CallInitiateResponse](
		c.tr.Call(api.CallInitiate, api.CallInitiateRequest{CallerId: c.self.Id, CalleeId: callee}))

	c.lock()
	defer c.unlock()
	if err != nil {
		if c.current(gen) {
			c.teardown()
			if errors.Is(err, api.ErrBusy) {
				c.fire(evHangup)
			} else {
				c.fire(evAbort)
			}
		}
		return err
	}
	if !c.current(gen) {
		// hung up while dialing, the coordinator doesn't know yet
		c.tr.Notify(api.CallHangup, api.CallHangupRequest{
			SessionId: resp.SessionId, InitiatorId: c.self.Id, Reason: api.ReasonHangup})
		return ErrCanceled
	}
	c.session = resp.SessionId

	peer, err := c.peers.NewPeer(c.stream, c.peerEvents(gen))
	if err != nil {
		return c.fail(err)
	}
	c.peer = peer
	offer, err := peer.Offer()
	if err != nil {
		return c.fail(err)
	}
	c.signal(api.SignalingEnvelope{Sdp: &offer})
	return c.replay()
}

// Accept answers the ringing call.
func (c *Client) Accept(ctx context.Context) error {
	c.lock()
	if !c.is(Ringing) {
		c.unlock()
		return ErrNoCall
	}
	gen := c.gen
	c.unlock()

	stream, err := c.media.GetUserMedia(ctx, c.opts.Constraints)
	c.lock()
	defer c.unlock()
	if err != nil {
		if c.current(gen) {
			c.end(api.ReasonRejected, true)
		}
		return &MediaAcquisitionError{Err: err}
	}
	if !c.current(gen) {
		stream.Stop()
		return ErrCanceled
	}
	c.stream = stream
	c.tr.Notify(api.CallAccept, api.CallAcceptRequest{SessionId: c.session})
	c.fire(evAccept)

	peer, err := c.peers.NewPeer(stream, c.peerEvents(gen))
	if err != nil {
		return c.fail(err)
	}
	c.peer = peer
	return c.replay()
}

// Reject declines the ringing call.
func (c *Client) Reject() error {
	c.lock()
	defer c.unlock()
	if !c.is(Ringing) {
		return ErrNoCall
	}
	c.end(api.ReasonRejected, true)
	return nil
}

// Hangup ends the current call.
func (c *Client) Hangup() {
	c.lock()
	defer c.unlock()
	if c.is(Dialing, Ringing, Active) {
		c.end(api.ReasonHangup, true)
	}
}

func (c *Client) onIncoming(rq api.CallIncomingNotice) {
	c.lock()
	defer c.unlock()
	if !c.is(Idle, Ended) {
		c.tr.Notify(api.CallHangup, api.CallHangupRequest{
			SessionId: rq.SessionId, InitiatorId: c.self.Id, Reason: api.ReasonBusy})
		return
	}
	c.fire(evRing)
	c.newCall(rq.Caller.Id, false)
	c.session = rq.SessionId
	if c.h.OnIncoming != nil {
		c.emit(func() { c.h.OnIncoming(rq) })
	}
}

func (c *Client) onAccepted(rq api.CallAcceptedNotice) {
	c.lock()
	defer c.unlock()
	if c.session != "" && c.session != rq.SessionId {
		return
	}
	if c.is(Dialing) {
		c.fire(evAnswered)
	}
}

func (c *Client) onHangupNotify() {
	c.lock()
	defer c.unlock()
	if c.is(Dialing, Ringing, Active) {
		c.end("", false)
	}
}

func (c *Client) onSignal(env api.SignalingEnvelope) {
	c.lock()
	defer c.unlock()
	if !c.is(Dialing, Ringing, Active) || (c.session != "" && env.SessionId != c.session) {
		c.log.Debug().Msg("skip signaling without a call")
		return
	}
	if c.peer == nil {
		c.pending = append(c.pending, env)
		return
	}
	if err := c.apply(env); err != nil {
		_ = c.fail(err)
	}
}

// apply feeds the envelope into the peer.
func (c *Client) apply(env api.SignalingEnvelope) error {
	if env.Candidate != nil {
		return c.peer.AddCandidate(*env.Candidate)
	}
	switch env.Sdp.Type {
	case "offer":
		answer, err := c.peer.Answer(*env.Sdp)
		if err != nil {
			return err
		}
		c.signal(api.SignalingEnvelope{Sdp: &answer})
	case "answer":
		if err := c.peer.SetAnswer(*env.Sdp); err != nil {
			return err
		}
		if c.is(Dialing) {
			c.fire(evAnswered)
		}
	}
	return nil
}

// replay applies the envelopes that came before the peer.
func (c *Client) replay() error {
	pending := c.pending
	c.pending = nil
	for _, env := range pending {
		if err := c.apply(env); err != nil {
			return c.fail(err)
		}
	}
	return nil
}

func (c *Client) signal(env api.SignalingEnvelope) {
	env.SessionId = c.session
	env.Offerer = c.caller
	c.tr.Notify(api.Signaling, env)
}

func (c *Client) peerEvents(gen uint64) PeerEvents {
	return PeerEvents{
		OnCandidate: func(candidate api.IceCandidate) {
			c.lock()
			defer c.unlock()
			if c.current(gen) && c.session != "" {
				c.signal(api.SignalingEnvelope{Candidate: &candidate})
			}
		},
		OnState: func(state PeerState) {
			c.log.Debug().Msgf("peer: %v", state)
			if state != PeerFailed && state != PeerDisconnected {
				return
			}
			c.lock()
			defer c.unlock()
			if c.current(gen) {
				c.end(api.ReasonFailed, true)
			}
		},
		OnTrack: func(track RemoteTrack) {
			if c.h.OnRemoteTrack != nil {
				c.h.OnRemoteTrack(track)
			}
		},
	}
}

// newCall starts the bookkeeping of a new call.
func (c *Client) newCall(remote string, caller bool) uint64 {
	c.gen++
	c.remote = remote
	c.caller = caller
	c.pending = nil
	return c.gen
}

// current tells whether the call of the generation is still going on.
func (c *Client) current(gen uint64) bool { return c.gen == gen && c.is(Dialing, Ringing, Active) }

// fail ends the call after a negotiation error.
func (c *Client) fail(err error) error {
	c.log.Error().Err(err).Msg("negotiation")
	c.end(api.ReasonFailed, true)
	return fmt.Errorf("%w: %w", ErrNegotiation, err)
}

// end finishes the call, notify tells the other side about it.
func (c *Client) end(reason api.HangupReason, notify bool) {
	session := c.session
	c.teardown()
	c.fire(evHangup)
	if notify && session != "" {
		c.tr.Notify(api.CallHangup, api.CallHangupRequest{
			SessionId: session, InitiatorId: c.self.Id, Reason: reason})
	}
}

// teardown releases everything of the current call.
func (c *Client) teardown() {
	if c.stream != nil {
		for _, t := range c.stream.Tracks() {
			t.Stop()
		}
		c.stream.Stop()
		c.stream = nil
	}
	if c.peer != nil {
		if err := c.peer.Close(); err != nil {
			c.log.Warn().Err(err).Msg("peer close")
		}
		c.peer = nil
	}
	c.pending = nil
	c.session = ""
	c.remote = ""
}

// Remote is the other side of the current call.
func (c *Client) Remote() string {
	c.lock()
	defer c.unlock()
	return c.remote
}
