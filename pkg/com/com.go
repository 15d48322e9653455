package com

import (
	"github.com/wirecall/wirecall/pkg/api"
	"github.com/wirecall/wirecall/pkg/logger"
)

type NetClient[K comparable] interface {
	Disconnect()
	Id() K
}

type NetMap[K comparable, T NetClient[K]] struct{ *Map[K, T] }

func NewNetMap[K comparable, T NetClient[K]]() NetMap[K, T] {
	return NetMap[K, T]{Map: NewMap[K, T]()}
}

func (m NetMap[K, T]) Add(client T)              { m.Put(client.Id(), client) }
func (m NetMap[K, T]) Remove(client T)           { m.RemoveByKey(client.Id()) }
func (m NetMap[K, T]) RemoveDisconnect(client T) { client.Disconnect(); m.Remove(client) }

// SocketClient is a packet client with a logger that shows x -> y directions.
type SocketClient struct {
	id   Uid
	wire *Client
	log  *logger.Logger
}

func NewConnection(conn *Client, id Uid, tag string, log *logger.Logger) *SocketClient {
	if id.IsNil() {
		id = NewUid()
	}
	dir := "→"
	if conn.IsServer() {
		dir = "←"
	}
	ctx := log.With().Str(logger.ClientField, id.Short()).Str(logger.DirectionField, dir)
	if tag != "" {
		ctx = ctx.Str(logger.ModuleField, tag)
	}
	dirClLog := log.Extend(ctx)
	dirClLog.Debug().Msg("Connect")
	return &SocketClient{wire: conn, id: id, log: dirClLog}
}

// OnPacket sets the single router of the connection.
// Packets are handled one by one in the order they came.
func (c *SocketClient) OnPacket(fn func(in In) error) {
	c.wire.OnPacket(func(p In) {
		c.log.Debug().Str(logger.DirectionField, "←").Msgf("%v", p.T)
		if err := fn(p); err != nil {
			c.log.Error().Err(err).Msgf("%v", p.T)
		}
	})
}

// Route replies to the in packet.
func (c *SocketClient) Route(in In, out any) {
	c.log.Debug().Str(logger.DirectionField, "→").Msgf("ʳ%v", in.T)
	if err := c.wire.Route(in, out); err != nil {
		c.log.Warn().Err(err).Msgf("%v", in.T)
	}
}

// Call makes a blocking call.
func (c *SocketClient) Call(t api.PT, data any) ([]byte, error) {
	c.log.Debug().Str(logger.DirectionField, "→").Msgf("ᵇ%v", t)
	return c.wire.Call(uint8(t), data)
}

// Notify just sends a message and goes further.
func (c *SocketClient) Notify(t api.PT, data any) {
	c.log.Debug().Str(logger.DirectionField, "→").Msgf("%v", t)
	if err := c.wire.Send(uint8(t), data); err != nil {
		c.log.Warn().Err(err).Msgf("%v", t)
	}
}

func (c *SocketClient) Disconnect() {
	c.wire.Close()
	c.log.Debug().Str(logger.DirectionField, "x").Msg("Close")
}

func (c *SocketClient) Id() Uid                { return c.id }
func (c *SocketClient) Listen()                { c.wire.Listen() }
func (c *SocketClient) Done() <-chan struct{}  { return c.wire.Wait() }
func (c *SocketClient) Logger() *logger.Logger { return c.log }
func (c *SocketClient) String() string         { return c.Id().String() }
