package cai

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by Conn operations after Close, or when the server
	// drops the socket while a call is waiting.
	ErrClosed = errors.New("cai: connection closed")

	// ErrUnexpectedPayload matches a ServerError whose payload had none of the
	// known shapes.
	ErrUnexpectedPayload = errors.New("cai: unexpected payload")
)

// ErrorKind tags which server error shape produced a ServerError.
type ErrorKind string

const (
	KindNeoError   ErrorKind = "neo_error"
	KindStatus     ErrorKind = "status"
	KindError      ErrorKind = "error"
	KindComment    ErrorKind = "comment"
	KindUnexpected ErrorKind = "unexpected_payload"
)

// AuthError reports a rejected token, either from a REST response or from the
// WebSocket handshake.
type AuthError struct {
	Detail     string
	StatusCode int
}

func (e *AuthError) Error() string {
	if e.Detail == "" {
		return "cai: invalid token"
	}
	return fmt.Sprintf("cai: invalid token: %s", e.Detail)
}

// ServerError is a structured error payload returned by the backend. Message
// carries the server-supplied text (the comment field on the chat2 socket).
type ServerError struct {
	Kind    ErrorKind
	Message string
	Payload Payload
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("cai: server error (%s): %s", e.Kind, e.Message)
}

// Is lets errors.Is(err, ErrUnexpectedPayload) match unrecognized payloads.
func (e *ServerError) Is(target error) bool {
	return target == ErrUnexpectedPayload && e.Kind == KindUnexpected
}

// PostTypeError is returned by PostService.Create for an unknown post type.
type PostTypeError struct {
	PostType PostType
}

func (e *PostTypeError) Error() string {
	return fmt.Sprintf("cai: invalid post type %q", string(e.PostType))
}

// LabelError is returned when a rating is outside the accepted range.
type LabelError struct {
	Rate int
}

func (e *LabelError) Error() string {
	return fmt.Sprintf("cai: wrong rate value %d", e.Rate)
}
