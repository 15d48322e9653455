package websocket

import (
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wirecall/wirecall/pkg/logger"
)

const (
	// attachments travel inline, so frames are big
	maxMessageSize = 16 * 1024 * 1024
	pingTime       = pongTime * 9 / 10
	pongTime       = 60 * time.Second
	writeWait      = 10 * time.Second
	// readers slower than this lose big frames
	minWriteRate = 128 * 1024
	sendQueue    = 128
)

var ErrClosed = errors.New("websocket closed")

type WS struct {
	conn conn
	send chan []byte

	OnMessage WSMessageHandler

	pingPong bool
	server   bool

	closed    chan struct{}
	closeOnce sync.Once
	listen    sync.Once
	shutdown  sync.WaitGroup
	Done      chan struct{}

	log *logger.Logger
}

type WSMessageHandler func(message []byte, err error)

type Upgrader struct {
	websocket.Upgrader
}

var DefaultUpgrader = Upgrader{
	Upgrader: websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		WriteBufferPool: &sync.Pool{},
	},
}

// NewUpgrader makes an upgrader with an origin policy.
// An empty origin keeps the same-origin check of gorilla,
// the * value allows any origin.
func NewUpgrader(origin string) *Upgrader {
	u := Upgrader{Upgrader: DefaultUpgrader.Upgrader}
	switch origin {
	case "":
	case "*":
		u.CheckOrigin = func(*http.Request) bool { return true }
	default:
		u.CheckOrigin = func(r *http.Request) bool { return r.Header.Get("Origin") == origin }
	}
	return &u
}

func NewServerWithConn(conn *websocket.Conn, log *logger.Logger) (*WS, error) {
	if conn == nil {
		return nil, errors.New("null connection")
	}
	ws := newSocket(conn, true, log)
	ws.server = true
	return ws, nil
}

func NewClient(address url.URL, log *logger.Logger) (*WS, error) {
	conn, _, err := websocket.DefaultDialer.Dial(address.String(), nil)
	if err != nil {
		return nil, err
	}
	return newSocket(conn, false, log), nil
}

func newSocket(sock *websocket.Conn, pingPong bool, log *logger.Logger) *WS {
	if log == nil {
		log = logger.Default()
	}
	return &WS{
		conn:     conn{sock: sock, writeWait: writeWait},
		send:     make(chan []byte, sendQueue),
		pingPong: pingPong,
		closed:   make(chan struct{}),
		Done:     make(chan struct{}),
		log:      log,
	}
}

// Listen starts the reader and writer pumps.
// OnMessage should be set before that.
func (ws *WS) Listen() {
	ws.listen.Do(func() {
		ws.shutdown.Add(2)
		go ws.writer()
		go ws.reader()
		go func() {
			ws.shutdown.Wait()
			close(ws.Done)
		}()
	})
}

// reader pumps messages from the websocket connection to the OnMessage callback.
// Serializes all websocket reads.
func (ws *WS) reader() {
	defer func() {
		ws.Close()
		ws.shutdown.Done()
	}()
	ws.conn.prepare(ws.pingPong)
	for {
		message, err := ws.conn.read()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ws.log.Warn().Err(err).Msg("WebSocket read fail")
			}
			return
		}
		if ws.OnMessage != nil {
			ws.OnMessage(message, nil)
		}
	}
}

// writer pumps messages from the send channel to the websocket connection.
// Serializes all websocket writes.
func (ws *WS) writer() {
	var ping <-chan time.Time
	if ws.pingPong {
		ticker := time.NewTicker(pingTime)
		defer ticker.Stop()
		ping = ticker.C
	}
	defer func() {
		_ = ws.conn.close()
		ws.shutdown.Done()
	}()
	for {
		select {
		case message := <-ws.send:
			if err := ws.conn.write(websocket.TextMessage, message); err != nil {
				ws.log.Warn().Err(err).Msg("WebSocket write fail")
				ws.Close()
				return
			}
		case <-ping:
			if err := ws.conn.write(websocket.PingMessage, nil); err != nil {
				ws.Close()
				return
			}
		case <-ws.closed:
			_ = ws.conn.write(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Write queues a message. Messages of one socket are written in the order they were queued.
// It never blocks: a socket that doesn't drain its queue is closed.
func (ws *WS) Write(data []byte) error {
	select {
	case <-ws.closed:
		return ErrClosed
	default:
	}
	select {
	case ws.send <- data:
		return nil
	case <-ws.closed:
		return ErrClosed
	default:
		ws.log.Warn().Msgf("WebSocket send queue is full (%v), closing", sendQueue)
		ws.Close()
		return ErrClosed
	}
}

// Close stops the pumps, it is safe to call it many times.
func (ws *WS) Close() {
	ws.closeOnce.Do(func() {
		close(ws.closed)
		ws.log.Debug().Msg("WebSocket close")
	})
}

func (ws *WS) IsServer() bool { return ws.server }

// IsClosed tells whether Close has been called.
func (ws *WS) IsClosed() bool {
	select {
	case <-ws.closed:
		return true
	default:
		return false
	}
}
