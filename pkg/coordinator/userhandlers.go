package coordinator

import (
	"fmt"

	"github.com/wirecall/wirecall/pkg/api"
	"github.com/wirecall/wirecall/pkg/com"
)

// route makes the packet router of a user.
// Packets of one user are handled one after another.
func (h *Hub) route(u *User) func(com.In) error {
	return func(in com.In) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%v handler: %v", in.T, r)
			}
		}()

		switch in.T {
		case api.Register:
			rq, err := unwrap[api.Identity](in)
			if err != nil {
				return h.fail(u, in, err)
			}
			if !h.Register(u, *rq) {
				u.Logger().Debug().Msgf("duplicate register of [%v]", rq.Id)
			}
		case api.CallInitiate:
			rq, err := unwrap[api.CallInitiateRequest](in)
			if err != nil {
				u.Route(in, api.NewError(err))
				return err
			}
			id, err := h.Initiate(u, *rq)
			if err != nil {
				u.Route(in, api.NewError(err))
				return nil
			}
			u.Route(in, api.CallInitiateResponse{SessionId: id})
		case api.CallAccept:
			rq, err := unwrap[api.CallAcceptRequest](in)
			if err == nil {
				err = h.Accept(u, *rq)
			}
			if err != nil {
				return h.fail(u, in, err)
			}
		case api.CallHangup:
			rq, err := unwrap[api.CallHangupRequest](in)
			if err == nil {
				err = h.Hangup(u, *rq)
			}
			if err != nil {
				return h.fail(u, in, err)
			}
		case api.Signaling:
			rq, err := unwrap[api.SignalingEnvelope](in)
			if err != nil {
				return h.fail(u, in, err)
			}
			h.signal.Forward(u, *rq)
		case api.ChatMessage:
			rq, err := unwrap[api.ChatEnvelope](in)
			if err != nil {
				return h.fail(u, in, err)
			}
			h.chat.Deliver(u, *rq)
		default:
			return h.fail(u, in, fmt.Errorf("unknown packet: %w", api.ErrMalformed))
		}
		return nil
	}
}

// fail answers a bad packet with an error packet.
func (h *Hub) fail(u *User, in com.In, err error) error {
	u.Notify(api.ErrorPacket, api.NewError(err))
	return fmt.Errorf("%v: %w", in.T, err)
}

func unwrap[T any](in com.In) (*T, error) {
	rq := api.Unwrap[T](in.Payload)
	if rq == nil {
		return nil, api.ErrMalformed
	}
	if err := api.Validate(rq); err != nil {
		return nil, err
	}
	return rq, nil
}
