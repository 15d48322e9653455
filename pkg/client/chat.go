package client

import (
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/wirecall/wirecall/pkg/api"
)

// SendMessage sends a chat message, an empty to means everyone.
// Chat doesn't depend on calls.
func (c *Client) SendMessage(to, text string, attachment *api.Attachment) (api.ChatEnvelope, error) {
	env := api.ChatEnvelope{
		Id:         uuid.NewString(),
		From:       c.self.Id,
		To:         to,
		Message:    text,
		Timestamp:  time.Now().UTC(),
		Attachment: attachment,
	}
	if err := api.Validate(env); err != nil {
		return env, err
	}
	c.tr.Notify(api.ChatMessage, env)
	return env, nil
}

func (c *Client) onMessage(env api.ChatEnvelope) {
	c.lock()
	defer c.unlock()
	c.chat = append(c.chat, env)
	if c.h.OnMessage != nil {
		c.emit(func() { c.h.OnMessage(env) })
	}
}

// Messages is the chat log in the order of arrival.
func (c *Client) Messages() []api.ChatEnvelope {
	c.lock()
	defer c.unlock()
	return append([]api.ChatEnvelope(nil), c.chat...)
}

// Conversation returns the messages between a and b.
func (c *Client) Conversation(a, b string) []api.ChatEnvelope {
	c.lock()
	defer c.unlock()
	return lo.Filter(c.chat, func(m api.ChatEnvelope, _ int) bool { return m.Involves(a, b) })
}

// NewAttachment wraps the data with its detected MIME type.
func NewAttachment(name string, data []byte) *api.Attachment {
	return &api.Attachment{Name: name, MimeType: mimetype.Detect(data).String(), Data: data}
}

func LoadAttachment(path string) (*api.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewAttachment(filepath.Base(path), data), nil
}
