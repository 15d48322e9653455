package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

// conn puts the deadlines on a gorilla socket.
// Reads and writes each must come from a single goroutine.
type conn struct {
	sock      *websocket.Conn
	writeWait time.Duration
}

// prepare limits the frame size, with keepAlive
// the reads fail if no pong comes in time.
func (c conn) prepare(keepAlive bool) {
	c.sock.SetReadLimit(maxMessageSize)
	if !keepAlive {
		return
	}
	extend := func(string) error { return c.sock.SetReadDeadline(time.Now().Add(pongTime)) }
	_ = extend("")
	c.sock.SetPongHandler(extend)
}

func (c conn) read() ([]byte, error) {
	_, data, err := c.sock.ReadMessage()
	return data, err
}

func (c conn) write(t int, data []byte) error {
	if err := c.sock.SetWriteDeadline(time.Now().Add(c.deadline(len(data)))); err != nil {
		return err
	}
	return c.sock.WriteMessage(t, data)
}

// deadline gives the frame of n bytes writeWait plus
// the time it takes at minWriteRate.
func (c conn) deadline(n int) time.Duration {
	return c.writeWait + time.Duration(n)*time.Second/minWriteRate
}

func (c conn) close() error { return c.sock.Close() }
