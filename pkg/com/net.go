package com

import (
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/wirecall/wirecall/pkg/api"
	"github.com/wirecall/wirecall/pkg/logger"
	"github.com/wirecall/wirecall/pkg/network/websocket"
)

type (
	In  = api.In[Uid]
	Out = api.Out
)

type (
	Connector struct {
		tag string
		wu  *websocket.Upgrader
	}
	Client struct {
		conn     *websocket.WS
		queue    map[Uid]*call
		onPacket func(packet In)
		mu       sync.Mutex
	}
	call struct {
		done     chan struct{}
		err      error
		Response In
	}
	Option = func(c *Connector)
)

var (
	ErrConnClosed = errors.New("connection closed")
	ErrTimeout    = errors.New("timeout")
)

var outPool = sync.Pool{New: func() any { o := Out{}; return &o }}

func WithOrigin(url string) Option { return func(c *Connector) { c.wu = websocket.NewUpgrader(url) } }
func WithTag(tag string) Option    { return func(c *Connector) { c.tag = tag } }

const callTimeout = 5 * time.Second

func NewConnector(opts ...Option) *Connector {
	c := &Connector{}
	for _, opt := range opts {
		opt(c)
	}
	if c.wu == nil {
		c.wu = &websocket.DefaultUpgrader
	}
	return c
}

// NewServer upgrades an HTTP request into a server-side socket client.
func (co *Connector) NewServer(w http.ResponseWriter, r *http.Request, log *logger.Logger) (*SocketClient, error) {
	ws, err := co.wu.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	conn, err := connect(websocket.NewServerWithConn(ws, log))
	if err != nil {
		return nil, err
	}
	return NewConnection(conn, NewUid(), co.tag, log), nil
}

// NewClient dials a coordinator.
func (co *Connector) NewClient(address url.URL, log *logger.Logger) (*SocketClient, error) {
	conn, err := connect(websocket.NewClient(address, log))
	if err != nil {
		return nil, err
	}
	return NewConnection(conn, NewUid(), co.tag, log), nil
}

func connect(conn *websocket.WS, err error) (*Client, error) {
	if err != nil {
		return nil, err
	}
	client := &Client{conn: conn, queue: make(map[Uid]*call, 1)}
	client.conn.OnMessage = client.handleMessage
	return client, nil
}

func (c *Client) IsServer() bool { return c.conn.IsServer() }

func (c *Client) OnPacket(fn func(packet In)) { c.mu.Lock(); c.onPacket = fn; c.mu.Unlock() }

// Listen starts processing of the incoming packets.
func (c *Client) Listen() {
	c.conn.Listen()
	go func() {
		<-c.conn.Done
		c.drain(ErrConnClosed)
	}()
}

func (c *Client) Close() {
	c.conn.Close()
	c.drain(ErrConnClosed)
}

// Call sends a packet and waits for the reply with the same id.
func (c *Client) Call(type_ uint8, payload any) ([]byte, error) {
	rq := outPool.Get().(*Out)
	id := NewUid()
	rq.Id, rq.T, rq.Payload = id.String(), type_, payload
	r, err := json.Marshal(rq)
	rq.Payload = nil
	outPool.Put(rq)
	if err != nil {
		return nil, err
	}

	task := &call{done: make(chan struct{})}
	c.mu.Lock()
	c.queue[id] = task
	c.mu.Unlock()
	if err = c.conn.Write(r); err != nil {
		c.pop(id)
		return nil, ErrConnClosed
	}
	select {
	case <-task.done:
	case <-time.After(callTimeout):
		if c.pop(id) != nil {
			return nil, ErrTimeout
		}
		// answered or drained at the same time
		<-task.done
	}
	return task.Response.Payload, task.err
}

func (c *Client) Send(type_ uint8, pl any) error {
	rq := outPool.Get().(*Out)
	rq.Id, rq.T, rq.Payload = "", type_, pl
	defer func() { rq.Payload = nil; outPool.Put(rq) }()
	return c.SendPacket(rq)
}

// Route sends a reply to the packet p.
func (c *Client) Route(p In, pl any) error {
	rq := outPool.Get().(*Out)
	rq.Id, rq.T, rq.Payload = p.Id.String(), uint8(p.T), pl
	defer func() { rq.Payload = nil; outPool.Put(rq) }()
	return c.SendPacket(rq)
}

func (c *Client) SendPacket(packet *Out) error {
	r, err := json.Marshal(packet)
	if err != nil {
		return err
	}
	return c.conn.Write(r)
}

func (c *Client) Wait() <-chan struct{} { return c.conn.Done }

func (c *Client) handleMessage(message []byte, err error) {
	if err != nil {
		return
	}

	var res In
	if err = json.Unmarshal(message, &res); err != nil {
		return
	}

	// empty id implies that we won't track (wait) the response
	if !res.Id.IsEmpty() {
		if task := c.pop(res.Id); task != nil {
			task.Response = res
			close(task.done)
			return
		}
	}
	c.mu.Lock()
	fn := c.onPacket
	c.mu.Unlock()
	if fn != nil {
		fn(res)
	}
}

// pop extracts and removes a task from the queue by its id.
func (c *Client) pop(id Uid) *call {
	c.mu.Lock()
	task := c.queue[id]
	delete(c.queue, id)
	c.mu.Unlock()
	return task
}

// drain cancels all what's left in the task queue.
func (c *Client) drain(err error) {
	c.mu.Lock()
	for id, task := range c.queue {
		task.err = err
		close(task.done)
		delete(c.queue, id)
	}
	c.mu.Unlock()
}
