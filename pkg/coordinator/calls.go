package coordinator

import (
	"sync"

	"github.com/wirecall/wirecall/pkg/api"
)

type CallState uint8

const (
	Ringing CallState = iota + 1
	Active
)

func (s CallState) String() string {
	switch s {
	case Ringing:
		return "ringing"
	case Active:
		return "active"
	default:
		return "none"
	}
}

// Session is a call between two identities.
type Session struct {
	Id     string
	Caller api.Identity
	Callee string
	State  CallState
}

func (s Session) Has(user string) bool { return s.Caller.Id == user || s.Callee == user }

// Other returns the participant that is not the user.
func (s Session) Other(user string) string {
	if s.Caller.Id == user {
		return s.Callee
	}
	return s.Caller.Id
}

// Call commands.
type (
	Initiate struct {
		Caller api.Identity
		Callee string
	}
	Accept struct {
		By      string
		Session string
	}
	Hangup struct {
		By       string
		Session  string
		Reactive bool
		Reason   api.HangupReason
	}
	// Drop is a forced hangup of whatever session the user has.
	Drop struct {
		User string
	}
)

// Notice is a packet for an identity.
type Notice struct {
	To      string
	T       api.PT
	Payload any
}

// Outcome is what a command does to the session table.
type Outcome struct {
	Put     *Session
	Remove  *Session
	Notices []Notice
}

// callView is a read-only view of the world a command is decided against.
type callView interface {
	sessionOf(user string) (Session, bool)
	session(id string) (Session, bool)
	online(user string) bool
}

// decide computes the outcome of a call command.
// It has no side effects, all changes are applied by the caller.
func decide(v callView, cmd any, newId func() string) (Outcome, error) {
	switch c := cmd.(type) {
	case Initiate:
		if !v.online(c.Callee) {
			return Outcome{}, api.ErrTargetOffline
		}
		if _, busy := v.sessionOf(c.Caller.Id); busy {
			return Outcome{}, api.ErrAlreadyInCall
		}
		if _, busy := v.sessionOf(c.Callee); busy {
			return Outcome{Notices: []Notice{{To: c.Caller.Id, T: api.CallHangupNotify}}}, api.ErrBusy
		}
		if c.Caller.Id == c.Callee {
			return Outcome{}, api.ErrForbidden
		}
		s := Session{Id: newId(), Caller: c.Caller, Callee: c.Callee, State: Ringing}
		return Outcome{
			Put: &s,
			Notices: []Notice{{To: c.Callee, T: api.CallIncoming,
				Payload: api.CallIncomingNotice{SessionId: s.Id, Caller: c.Caller}}},
		}, nil
	case Accept:
		s, ok := v.session(c.Session)
		if !ok {
			return Outcome{}, api.ErrNoSession
		}
		if s.Callee != c.By {
			return Outcome{}, api.ErrForbidden
		}
		if s.State == Active {
			return Outcome{}, nil
		}
		s.State = Active
		return Outcome{
			Put:     &s,
			Notices: []Notice{{To: s.Caller.Id, T: api.CallAccepted, Payload: api.CallAcceptedNotice{SessionId: s.Id}}},
		}, nil
	case Hangup:
		s, ok := v.session(c.Session)
		if !ok {
			return Outcome{}, nil
		}
		if !s.Has(c.By) {
			return Outcome{}, api.ErrForbidden
		}
		out := Outcome{Remove: &s}
		if !c.Reactive {
			out.Notices = []Notice{{To: s.Other(c.By), T: api.CallHangupNotify}}
		}
		return out, nil
	case Drop:
		s, ok := v.sessionOf(c.User)
		if !ok {
			return Outcome{}, nil
		}
		return Outcome{Remove: &s, Notices: []Notice{{To: s.Other(c.User), T: api.CallHangupNotify}}}, nil
	}
	return Outcome{}, api.ErrMalformed
}

// Calls is the table of the call sessions.
// An identity takes part in at most one session,
// so there is at most one session per pair of identities.
type Calls struct {
	mu     sync.RWMutex
	byId   map[string]Session
	byUser map[string]string
}

func NewCalls() *Calls {
	return &Calls{byId: make(map[string]Session), byUser: make(map[string]string)}
}

func (c *Calls) apply(o Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s := o.Remove; s != nil {
		delete(c.byId, s.Id)
		for _, u := range []string{s.Caller.Id, s.Callee} {
			if c.byUser[u] == s.Id {
				delete(c.byUser, u)
			}
		}
	}
	if s := o.Put; s != nil {
		c.byId[s.Id] = *s
		c.byUser[s.Caller.Id] = s.Id
		c.byUser[s.Callee] = s.Id
	}
}

func (c *Calls) session(id string) (Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.byId[id]
	return s, ok
}

func (c *Calls) sessionOf(user string) (Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.byUser[user]
	if !ok {
		return Session{}, false
	}
	s, ok := c.byId[id]
	return s, ok
}

func (c *Calls) Get(id string) (Session, bool)  { return c.session(id) }
func (c *Calls) Of(user string) (Session, bool) { return c.sessionOf(user) }
func (c *Calls) Len() int                       { c.mu.RLock(); defer c.mu.RUnlock(); return len(c.byId) }

// List is a snapshot of all sessions.
func (c *Calls) List() []Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Session, 0, len(c.byId))
	for _, s := range c.byId {
		out = append(out, s)
	}
	return out
}
