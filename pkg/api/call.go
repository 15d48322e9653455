package api

type (
	CallInitiateRequest struct {
		CallerId string `json:"caller_id" validate:"required"`
		CalleeId string `json:"callee_id" validate:"required"`
	}
	CallInitiateResponse struct {
		SessionId string `json:"session_id"`
	}
	CallIncomingNotice struct {
		SessionId string   `json:"session_id"`
		Caller    Identity `json:"caller"`
	}
	CallAcceptRequest struct {
		SessionId string `json:"session_id" validate:"required"`
	}
	CallAcceptedNotice struct {
		SessionId string `json:"session_id"`
	}
	CallHangupRequest struct {
		SessionId   string       `json:"session_id" validate:"required"`
		InitiatorId string       `json:"initiator_id" validate:"required"`
		Reactive    bool         `json:"reactive,omitempty"`
		Reason      HangupReason `json:"reason,omitempty" validate:"omitempty,oneof=hangup failed busy rejected"`
	}
)

type HangupReason string

const (
	ReasonHangup   HangupReason = "hangup"
	ReasonFailed   HangupReason = "failed"
	ReasonBusy     HangupReason = "busy"
	ReasonRejected HangupReason = "rejected"
	ReasonDropped  HangupReason = "dropped"
)
