package api

import "errors"

var (
	ErrTargetOffline = errors.New("target offline")
	ErrAlreadyInCall = errors.New("already in call")
	ErrBusy          = errors.New("busy")
	ErrNoSession     = errors.New("no session")
	ErrForbidden     = errors.New("forbidden")
	ErrMalformed     = errors.New("malformed")
)

// ErrCode is the wire form of an error.
type ErrCode string

const (
	CodeTargetOffline ErrCode = "target_offline"
	CodeAlreadyInCall ErrCode = "already_in_call"
	CodeBusy          ErrCode = "busy"
	CodeNoSession     ErrCode = "no_session"
	CodeForbidden     ErrCode = "forbidden"
	CodeMalformed     ErrCode = "malformed"
)

var codes = map[ErrCode]error{
	CodeTargetOffline: ErrTargetOffline,
	CodeAlreadyInCall: ErrAlreadyInCall,
	CodeBusy:          ErrBusy,
	CodeNoSession:     ErrNoSession,
	CodeForbidden:     ErrForbidden,
	CodeMalformed:     ErrMalformed,
}

// Error is the payload of an error packet or a failed call reply.
type Error struct {
	Code    ErrCode `json:"code"`
	Message string  `json:"message,omitempty"`
}

// NewError converts any error into its wire form.
// Unknown errors become malformed.
func NewError(err error) Error {
	for code, e := range codes {
		if errors.Is(err, e) {
			return Error{Code: code, Message: err.Error()}
		}
	}
	return Error{Code: CodeMalformed, Message: err.Error()}
}

// Err gives back the sentinel error of the code.
func (e Error) Err() error {
	if err, ok := codes[e.Code]; ok {
		return err
	}
	return ErrMalformed
}
