package client

import (
	"errors"
	"fmt"
	"net"
)

// Kind discriminates the ways an exchange can fail. Kinds are mutually exclusive.
type Kind int

const (
	// KindBind means the local UDP socket could not be bound.
	KindBind Kind = iota + 1
	// KindConnect means the socket could not be associated with the remote endpoint.
	KindConnect
	// KindConnectionTimeout means association did not finish within the connection timeout.
	KindConnectionTimeout
	// KindEncodePacket means the request could not be serialized. Nothing was sent.
	KindEncodePacket
	// KindSend means the request datagram could not be written.
	KindSend
	// KindReceive means the reply datagram could not be read.
	KindReceive
	// KindSocketTimeout means no reply arrived within the socket timeout.
	KindSocketTimeout
	// KindDecodePacket means the reply failed to parse or validate.
	KindDecodePacket
)

// String returns the snake_case name of the kind, suitable for metric labels.
func (k Kind) String() string {
	switch k {
	case KindBind:
		return "bind"
	case KindConnect:
		return "connect"
	case KindConnectionTimeout:
		return "connection_timeout"
	case KindEncodePacket:
		return "encode_packet"
	case KindSend:
		return "send"
	case KindReceive:
		return "receive"
	case KindSocketTimeout:
		return "socket_timeout"
	case KindDecodePacket:
		return "decode_packet"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by SendPacket.
type Error struct {
	Kind Kind

	// Remote is set for KindConnect, KindSend and KindReceive.
	Remote net.Addr

	// Cause is the underlying error. It is nil for the two timeout kinds.
	Cause error
}

// Sentinel values for errors.Is. Only the Kind is compared.
var (
	ErrBind              = &Error{Kind: KindBind}
	ErrConnect           = &Error{Kind: KindConnect}
	ErrConnectionTimeout = &Error{Kind: KindConnectionTimeout}
	ErrEncodePacket      = &Error{Kind: KindEncodePacket}
	ErrSend              = &Error{Kind: KindSend}
	ErrReceive           = &Error{Kind: KindReceive}
	ErrSocketTimeout     = &Error{Kind: KindSocketTimeout}
	ErrDecodePacket      = &Error{Kind: KindDecodePacket}
)

func (e *Error) Error() string {
	switch e.Kind {
	case KindBind:
		return fmt.Sprintf("failed to bind a UDP socket: %v", e.Cause)
	case KindConnect:
		return fmt.Sprintf("failed to associate UDP socket with %s: %v", e.Remote, e.Cause)
	case KindConnectionTimeout:
		return "connection timeout"
	case KindEncodePacket:
		return fmt.Sprintf("failed to encode RADIUS request: %v", e.Cause)
	case KindSend:
		return fmt.Sprintf("failed to send UDP datagram to %s: %v", e.Remote, e.Cause)
	case KindReceive:
		return fmt.Sprintf("failed to receive UDP response from %s: %v", e.Remote, e.Cause)
	case KindSocketTimeout:
		return "socket timeout"
	case KindDecodePacket:
		return fmt.Sprintf("failed to decode RADIUS response: %v", e.Cause)
	default:
		return fmt.Sprintf("exchange failed: %v", e.Cause)
	}
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error of the same Kind, so errors.Is(err, ErrSocketTimeout) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Timeout reports whether the error is one of the two timeout kinds.
func (e *Error) Timeout() bool {
	return e.Kind == KindConnectionTimeout || e.Kind == KindSocketTimeout
}

// KindOf returns the Kind of an exchange error, or 0 if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsTimeout reports whether err is a connection or socket timeout.
func IsTimeout(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Timeout()
}
