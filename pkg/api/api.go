// Package api defines the wire API between clients and the coordinator.
//
// Each API call (request and response) is a JSON-encoded "packet" of the following structure:
//
//	id - (optional) a globally unique packet id, set only for calls that wait for a reply;
//	 t - (required) one of the predefined unique packet types;
//	 p - (optional) packet payload with arbitrary data.
//
// The packets differentiate by their predefined types with which it is possible
// to unwrap the payload into distinct request/response data structures.
// A reply to a call carries the id of the request.
//
// Example:
//
//	{"id":"cfv68irdrc3ifu3jn6bg","t":10,"p":{"caller_id":"alice","callee_id":"bob"}}
package api

import (
	"fmt"

	"github.com/goccy/go-json"
)

type (
	Id interface {
		String() string
	}
	PT uint8
)

type In[I Id] struct {
	Id      I               `json:"id,omitempty"`
	T       PT              `json:"t"`
	Payload json.RawMessage `json:"p,omitempty"` // should be json.RawMessage for 2-pass unmarshal
}

func (i In[I]) GetId() I           { return i.Id }
func (i In[I]) GetPayload() []byte { return i.Payload }
func (i In[I]) GetType() PT        { return i.T }

type Out struct {
	Id      string `json:"id,omitempty"` // string because omitempty won't work as intended with arrays
	T       uint8  `json:"t"`
	Payload any    `json:"p,omitempty"`
}

// Packet codes:
//
//	x   - presence
//	1x  - calls
//	2x  - signaling
//	3x  - chat
//	99  - errors
const (
	Register         PT = 1
	Roster           PT = 2
	CallInitiate     PT = 10
	CallIncoming     PT = 11
	CallAccept       PT = 12
	CallAccepted     PT = 13
	CallHangup       PT = 14
	CallHangupNotify PT = 15
	Signaling        PT = 20
	ChatMessage      PT = 30
	ErrorPacket      PT = 99
)

func (p PT) String() string {
	switch p {
	case Register:
		return "register"
	case Roster:
		return "roster"
	case CallInitiate:
		return "call.initiate"
	case CallIncoming:
		return "call.incoming"
	case CallAccept:
		return "call.accept"
	case CallAccepted:
		return "call.accepted"
	case CallHangup:
		return "call.hangup"
	case CallHangupNotify:
		return "call.hangup.notify"
	case Signaling:
		return "signaling.envelope"
	case ChatMessage:
		return "chat.message"
	case ErrorPacket:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(p))
	}
}

// Unwrap decodes a packet payload, returns nil if the payload is broken.
func Unwrap[T any](data []byte) *T {
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil
	}
	return out
}

// UnwrapChecked decodes a reply of a call.
// The reply either holds an Error with a known code or the T value.
func UnwrapChecked[T any](bytes []byte, err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	if e := Unwrap[Error](bytes); e != nil && e.Code != "" {
		return nil, e.Err()
	}
	out := Unwrap[T](bytes)
	if out == nil {
		return nil, ErrMalformed
	}
	return out, nil
}
