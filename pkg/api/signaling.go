package api

// SignalingEnvelope carries either a session description or an ICE candidate.
type SignalingEnvelope struct {
	SessionId string              `json:"session_id,omitempty"`
	From      string              `json:"from,omitempty"`
	Offerer   bool                `json:"offerer"`
	Sdp       *SessionDescription `json:"sdp,omitempty" validate:"required_without=Candidate,excluded_with=Candidate"`
	Candidate *IceCandidate       `json:"candidate,omitempty" validate:"required_without=Sdp"`
}

type SessionDescription struct {
	Type string `json:"type" validate:"oneof=offer answer pranswer rollback"`
	Sdp  string `json:"sdp"`
}

type IceCandidate struct {
	Candidate        string  `json:"candidate"`
	SdpMid           *string `json:"sdpMid,omitempty"`
	SdpMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

func (s SignalingEnvelope) IsDescription() bool { return s.Sdp != nil }
