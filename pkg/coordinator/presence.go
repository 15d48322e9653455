package coordinator

import (
	"sync"

	"github.com/samber/lo"
	"github.com/wirecall/wirecall/pkg/api"
	"github.com/wirecall/wirecall/pkg/com"
)

// Conn is a live client connection that can receive packets.
// Notify is called under the hub lock and must not block,
// the socket clients drop a connection that can't keep up.
type Conn interface {
	Id() com.Uid
	Notify(t api.PT, payload any)
}

type presenceEntry struct {
	identity api.Identity
	conn     Conn
}

// Presence keeps track of who is online and through which connection.
// Every change of the list is followed by a full roster broadcast.
type Presence struct {
	mu       sync.RWMutex
	entries  []presenceEntry // in the order of registration
	audience *com.Map[com.Uid, Conn]
}

func NewPresence() *Presence {
	return &Presence{audience: com.NewMap[com.Uid, Conn]()}
}

// Connect adds the connection to the broadcast audience.
func (p *Presence) Connect(c Conn) { p.audience.Put(c.Id(), c) }

// Disconnect removes the connection from the audience and unregisters it.
func (p *Presence) Disconnect(c Conn) (api.Identity, bool) {
	p.audience.RemoveByKey(c.Id())
	return p.Unregister(c)
}

// Register binds the identity to the connection.
// The first connection of an identity wins, a connection keeps
// its first identity. Returns true if a new entry was added.
func (p *Presence) Register(c Conn, identity api.Identity) bool {
	p.mu.Lock()
	_, taken := lo.Find(p.entries, func(e presenceEntry) bool {
		return e.identity.Id == identity.Id || e.conn.Id() == c.Id()
	})
	if !taken {
		p.entries = append(p.entries, presenceEntry{identity: identity, conn: c})
	}
	p.mu.Unlock()

	p.Broadcast(api.Roster, p.List())
	return !taken
}

// Unregister removes the entry of the connection if there is one.
func (p *Presence) Unregister(c Conn) (identity api.Identity, ok bool) {
	p.mu.Lock()
	e, i, found := lo.FindIndexOf(p.entries, func(e presenceEntry) bool { return e.conn.Id() == c.Id() })
	if found {
		identity, ok = e.identity, true
		p.entries = append(p.entries[:i], p.entries[i+1:]...)
	}
	p.mu.Unlock()

	if ok {
		p.Broadcast(api.Roster, p.List())
	}
	return
}

// Lookup resolves an identity id into its connection.
func (p *Presence) Lookup(id string) (Conn, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := lo.Find(p.entries, func(e presenceEntry) bool { return e.identity.Id == id })
	return e.conn, ok
}

func (p *Presence) IdentityOf(c Conn) (api.Identity, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := lo.Find(p.entries, func(e presenceEntry) bool { return e.conn.Id() == c.Id() })
	return e.identity, ok
}

func (p *Presence) Online(id string) bool { _, ok := p.Lookup(id); return ok }

// List is a snapshot of the roster.
func (p *Presence) List() []api.PresenceEntry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return lo.Map(p.entries, func(e presenceEntry, _ int) api.PresenceEntry {
		return api.PresenceEntry{Identity: e.identity, ConnectionId: e.conn.Id().String()}
	})
}

func (p *Presence) Len() int { p.mu.RLock(); defer p.mu.RUnlock(); return len(p.entries) }

// Broadcast sends the packet to every live connection,
// registered or not.
func (p *Presence) Broadcast(t api.PT, payload any) {
	for _, c := range p.audience.Values() {
		c.Notify(t, payload)
	}
}
