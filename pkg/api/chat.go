package api

import "time"

// ChatEnvelope is one chat message.
// An empty To means the message goes to everyone.
type ChatEnvelope struct {
	Id         string      `json:"id,omitempty"`
	From       string      `json:"from"`
	To         string      `json:"to,omitempty"`
	Message    string      `json:"message"`
	Timestamp  time.Time   `json:"timestamp"`
	Attachment *Attachment `json:"attachment,omitempty"`
}

// Attachment holds opaque bytes, base64 on the wire.
type Attachment struct {
	Name     string `json:"name" validate:"required"`
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

func (c ChatEnvelope) IsBroadcast() bool { return c.To == "" }

// Involves tells whether the message belongs to the conversation of a and b.
func (c ChatEnvelope) Involves(a, b string) bool {
	return (c.From == a && c.To == b) || (c.From == b && c.To == a)
}
