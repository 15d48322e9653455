// Package client is the client side of the calls.
// It mirrors the call state of the coordinator
// and drives the local media and the peer connection.
package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"github.com/samber/lo"
	"github.com/wirecall/wirecall/pkg/api"
	"github.com/wirecall/wirecall/pkg/com"
	"github.com/wirecall/wirecall/pkg/logger"
)

// Call states.
const (
	Idle    = "idle"
	Dialing = "dialing"
	Ringing = "ringing"
	Active  = "active"
	Ended   = "ended"
)

const (
	evDial     = "dial"
	evRing     = "ring"
	evAccept   = "accept"
	evAnswered = "answered"
	evAbort    = "abort"
	evHangup   = "hangup"
	evClear    = "clear"
)

const DefaultEndedDelay = 2 * time.Second

// Handlers are the UI callbacks.
// They are never called with the client lock held.
type Handlers struct {
	OnRoster      func([]api.PresenceEntry)
	OnIncoming    func(api.CallIncomingNotice)
	OnState       func(from, to string)
	OnMessage     func(api.ChatEnvelope)
	OnRemoteTrack func(RemoteTrack)
}

type Options struct {
	Constraints Constraints
	// EndedDelay is how long the client stays in the ended state.
	EndedDelay time.Duration
}

type Client struct {
	self  api.Identity
	tr    Transport
	media MediaDevices
	peers PeerFactory
	h     Handlers
	opts  Options
	log   *logger.Logger

	mu     sync.Mutex
	state  *fsm.FSM
	queued []func()
	clear  *time.Timer

	roster []api.PresenceEntry
	chat   []api.ChatEnvelope

	// the current call
	gen     uint64
	session string
	remote  string
	caller  bool
	stream  MediaStream
	peer    Peer
	pending []api.SignalingEnvelope
}

func New(self api.Identity, tr Transport, media MediaDevices, peers PeerFactory, h Handlers, opts Options, log *logger.Logger) *Client {
	if opts.EndedDelay <= 0 {
		opts.EndedDelay = DefaultEndedDelay
	}
	if log == nil {
		log = logger.Default()
	}
	c := &Client{
		self:  self,
		tr:    tr,
		media: media,
		peers: peers,
		h:     h,
		opts:  opts,
		log:   log.Module("client"),
	}
	c.state = fsm.NewFSM(
		Idle,
		fsm.Events{
			{Name: evDial, Src: []string{Idle, Ended}, Dst: Dialing},
			{Name: evRing, Src: []string{Idle, Ended}, Dst: Ringing},
			{Name: evAccept, Src: []string{Ringing}, Dst: Active},
			{Name: evAnswered, Src: []string{Dialing}, Dst: Active},
			{Name: evAbort, Src: []string{Dialing}, Dst: Idle},
			{Name: evHangup, Src: []string{Dialing, Ringing, Active}, Dst: Ended},
			{Name: evClear, Src: []string{Ended}, Dst: Idle},
		},
		fsm.Callbacks{
			"enter_" + Ended: func(context.Context, *fsm.Event) { c.scheduleClear() },
			"leave_" + Ended: func(context.Context, *fsm.Event) { c.cancelClear() },
			"after_event": func(_ context.Context, e *fsm.Event) {
				from, to := e.Src, e.Dst
				c.log.Debug().Msgf("%v: %v -> %v", e.Event, from, to)
				if c.h.OnState != nil {
					c.emit(func() { c.h.OnState(from, to) })
				}
			},
		},
	)
	return c
}

func (c *Client) lock() { c.mu.Lock() }

// unlock runs the queued handlers after the lock is released.
func (c *Client) unlock() {
	queued := c.queued
	c.queued = nil
	c.mu.Unlock()
	for _, fn := range queued {
		fn()
	}
}

func (c *Client) emit(fn func()) { c.queued = append(c.queued, fn) }

func (c *Client) fire(event string) {
	if err := c.state.Event(context.Background(), event); err != nil {
		var noop fsm.NoTransitionError
		if !errors.As(err, &noop) {
			c.log.Debug().Err(err).Msgf("skip %v", event)
		}
	}
}

func (c *Client) is(states ...string) bool { return lo.Contains(states, c.state.Current()) }

func (c *Client) scheduleClear() {
	c.clear = time.AfterFunc(c.opts.EndedDelay, func() {
		c.lock()
		defer c.unlock()
		if c.is(Ended) {
			c.fire(evClear)
		}
	})
}

func (c *Client) cancelClear() {
	if c.clear != nil {
		c.clear.Stop()
		c.clear = nil
	}
}

// Register introduces the client to everyone.
func (c *Client) Register() error {
	if err := api.Validate(c.self); err != nil {
		return err
	}
	c.tr.Notify(api.Register, c.self)
	return nil
}

// Route handles the packets from the coordinator.
// Should be called for one packet at a time.
func (c *Client) Route(in com.In) error {
	switch in.T {
	case api.Roster:
		entries := api.Unwrap[[]api.PresenceEntry](in.Payload)
		if entries == nil {
			return api.ErrMalformed
		}
		c.onRoster(*entries)
	case api.CallIncoming:
		rq := api.Unwrap[api.CallIncomingNotice](in.Payload)
		if rq == nil || rq.SessionId == "" {
			return api.ErrMalformed
		}
		c.onIncoming(*rq)
	case api.CallAccepted:
		rq := api.Unwrap[api.CallAcceptedNotice](in.Payload)
		if rq == nil {
			return api.ErrMalformed
		}
		c.onAccepted(*rq)
	case api.CallHangupNotify:
		c.onHangupNotify()
	case api.Signaling:
		rq := api.Unwrap[api.SignalingEnvelope](in.Payload)
		if rq == nil {
			return api.ErrMalformed
		}
		if err := api.Validate(rq); err != nil {
			return err
		}
		c.onSignal(*rq)
	case api.ChatMessage:
		rq := api.Unwrap[api.ChatEnvelope](in.Payload)
		if rq == nil {
			return api.ErrMalformed
		}
		c.onMessage(*rq)
	case api.ErrorPacket:
		if e := api.Unwrap[api.Error](in.Payload); e != nil {
			c.log.Warn().Str("code", string(e.Code)).Msg(e.Message)
		}
	default:
		c.log.Warn().Msgf("unknown packet %v", in.T)
	}
	return nil
}

func (c *Client) onRoster(entries []api.PresenceEntry) {
	c.lock()
	defer c.unlock()
	c.roster = entries
	if c.h.OnRoster != nil {
		others := c.others()
		c.emit(func() { c.h.OnRoster(others) })
	}
}

// Roster returns everyone online but the client itself.
func (c *Client) Roster() []api.PresenceEntry {
	c.lock()
	defer c.unlock()
	return c.others()
}

func (c *Client) others() []api.PresenceEntry {
	return lo.Filter(c.roster, func(e api.PresenceEntry, _ int) bool { return e.Identity.Id != c.self.Id })
}

func (c *Client) State() string { return c.state.Current() }

// Session returns the id of the current call session.
func (c *Client) Session() string {
	c.lock()
	defer c.unlock()
	return c.session
}

func (c *Client) Identity() api.Identity { return c.self }

// Close ends the current call without notifying anyone.
func (c *Client) Close() {
	c.lock()
	defer c.unlock()
	c.teardown()
	c.cancelClear()
}
