// Package radius implements the RADIUS packet codec (RFC 2865, RFC 2866, RFC 5997)
// consumed by the exchange client.
package radius

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrEmptySecret is returned when a packet is encoded or decoded without a shared secret
	ErrEmptySecret = errors.New("shared secret is empty")

	// ErrPacketTooShort is returned when fewer than HeaderSize bytes are available
	ErrPacketTooShort = errors.New("packet too short")

	// ErrPacketTooLarge is returned when an encoded packet would exceed MaxPacketSize
	ErrPacketTooLarge = errors.New("packet exceeds maximum size")

	// ErrInvalidLength is returned when the header length field is out of range
	ErrInvalidLength = errors.New("invalid length field")

	// ErrMalformedAttribute is returned for truncated or inconsistent attributes
	ErrMalformedAttribute = errors.New("malformed attribute")

	// ErrAttributeTooLong is returned when an attribute value exceeds MaxAttributeValueSize
	ErrAttributeTooLong = errors.New("attribute value too long")

	// ErrPasswordTooLong is returned when a User-Password exceeds 128 bytes
	ErrPasswordTooLong = errors.New("user-password too long")

	// ErrIdentifierMismatch is returned when a reply does not carry the request identifier
	ErrIdentifierMismatch = errors.New("identifier mismatch")

	// ErrUnexpectedCode is returned when a reply code does not answer the request code
	ErrUnexpectedCode = errors.New("unexpected reply code")

	// ErrAuthenticatorMismatch is returned when the packet authenticator does not verify.
	// A wrong shared secret surfaces as this error.
	ErrAuthenticatorMismatch = errors.New("authenticator mismatch")

	// ErrMessageAuthenticator is returned when the Message-Authenticator attribute
	// is missing where required or does not verify
	ErrMessageAuthenticator = errors.New("invalid message-authenticator")
)

const (
	// HeaderSize is the fixed RADIUS header length: Code, Identifier, Length, Authenticator.
	HeaderSize = 20

	// MaxPacketSize is the largest packet RFC 2865 permits.
	MaxPacketSize = 4096

	// AuthenticatorSize is the length of the header authenticator.
	AuthenticatorSize = 16

	// MaxAttributeValueSize is the largest value a single attribute can carry.
	MaxAttributeValueSize = 253

	maxPasswordSize = 128
)

// Code is the RADIUS packet type.
type Code uint8

// Packet codes.
const (
	CodeAccessRequest      Code = 1
	CodeAccessAccept       Code = 2
	CodeAccessReject       Code = 3
	CodeAccountingRequest  Code = 4
	CodeAccountingResponse Code = 5
	CodeAccessChallenge    Code = 11
	CodeStatusServer       Code = 12
	CodeDisconnectRequest  Code = 40
	CodeDisconnectACK      Code = 41
	CodeDisconnectNAK      Code = 42
	CodeCoARequest         Code = 43
	CodeCoAACK             Code = 44
	CodeCoANAK             Code = 45
)

// String returns the RFC name of the code.
func (c Code) String() string {
	switch c {
	case CodeAccessRequest:
		return "Access-Request"
	case CodeAccessAccept:
		return "Access-Accept"
	case CodeAccessReject:
		return "Access-Reject"
	case CodeAccountingRequest:
		return "Accounting-Request"
	case CodeAccountingResponse:
		return "Accounting-Response"
	case CodeAccessChallenge:
		return "Access-Challenge"
	case CodeStatusServer:
		return "Status-Server"
	case CodeDisconnectRequest:
		return "Disconnect-Request"
	case CodeDisconnectACK:
		return "Disconnect-ACK"
	case CodeDisconnectNAK:
		return "Disconnect-NAK"
	case CodeCoARequest:
		return "CoA-Request"
	case CodeCoAACK:
		return "CoA-ACK"
	case CodeCoANAK:
		return "CoA-NAK"
	default:
		return fmt.Sprintf("Code(%d)", uint8(c))
	}
}

// IsRequest reports whether packets with this code are sent by a client.
func (c Code) IsRequest() bool {
	switch c {
	case CodeAccessRequest, CodeAccountingRequest, CodeStatusServer,
		CodeDisconnectRequest, CodeCoARequest:
		return true
	default:
		return false
	}
}

// answers reports whether c is a valid reply to a request with code req.
func (c Code) answers(req Code) bool {
	switch req {
	case CodeAccessRequest:
		return c == CodeAccessAccept || c == CodeAccessReject || c == CodeAccessChallenge
	case CodeAccountingRequest:
		return c == CodeAccountingResponse
	case CodeStatusServer:
		// RFC 5997: authentication ports answer Access-Accept, accounting ports Accounting-Response.
		return c == CodeAccessAccept || c == CodeAccountingResponse
	case CodeDisconnectRequest:
		return c == CodeDisconnectACK || c == CodeDisconnectNAK
	case CodeCoARequest:
		return c == CodeCoAACK || c == CodeCoANAK
	default:
		return false
	}
}

// randomAuthenticator reports whether the request authenticator is random
// rather than computed over the packet contents.
func (c Code) randomAuthenticator() bool {
	return c == CodeAccessRequest || c == CodeStatusServer
}

// Attribute is a single type-length-value attribute. Value excludes the two header bytes.
type Attribute struct {
	Type  AttributeType
	Value []byte
}

// Packet is a RADIUS packet together with the shared secret used to protect it.
//
// For requests, Authenticator is the request authenticator. It is generated or computed
// by Encode and kept on the packet so that replies can be validated by DecodeResponse.
// For a reply built with Reply, Authenticator holds the originating request authenticator
// until the reply is encoded. Encode mutates request packets and must not be called
// concurrently on the same Packet.
type Packet struct {
	Code          Code
	Identifier    uint8
	Authenticator [AuthenticatorSize]byte
	Attributes    []Attribute

	secret []byte
}

// New creates a packet with a random identifier.
func New(code Code, secret []byte) *Packet {
	var id [1]byte
	_, _ = rand.Read(id[:])

	return &Packet{
		Code:       code,
		Identifier: id[0],
		secret:     append([]byte(nil), secret...),
	}
}

// Secret returns the shared secret carried by the packet.
func (p *Packet) Secret() []byte {
	return p.secret
}

// Reply creates a reply skeleton for p: same identifier, same secret, and the request
// authenticator needed to compute the response authenticator.
func (p *Packet) Reply(code Code) *Packet {
	return &Packet{
		Code:          code,
		Identifier:    p.Identifier,
		Authenticator: p.Authenticator,
		secret:        p.secret,
	}
}

// Encode serializes the packet, hiding User-Password, filling in Message-Authenticator
// and computing the header authenticator appropriate for the code.
func (p *Packet) Encode() ([]byte, error) {
	if len(p.secret) == 0 {
		return nil, ErrEmptySecret
	}

	// Status-Server always carries a Message-Authenticator (RFC 5997 section 3).
	needMA := p.Code == CodeStatusServer
	size := HeaderSize
	for _, a := range p.Attributes {
		n := len(a.Value)
		if a.Type == AttrUserPassword {
			if n > maxPasswordSize {
				return nil, fmt.Errorf("%w: %d bytes", ErrPasswordTooLong, n)
			}
			n = hiddenLen(n)
		}
		if a.Type == AttrMessageAuthenticator {
			needMA = false
			n = AuthenticatorSize
		}
		if n > MaxAttributeValueSize {
			return nil, fmt.Errorf("%w: %s is %d bytes", ErrAttributeTooLong, a.Type, n)
		}
		size += 2 + n
	}
	if needMA {
		size += 2 + AuthenticatorSize
	}
	if size > MaxPacketSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrPacketTooLarge, size)
	}

	if p.Code.randomAuthenticator() && p.Authenticator == ([AuthenticatorSize]byte{}) {
		if _, err := rand.Read(p.Authenticator[:]); err != nil {
			return nil, fmt.Errorf("generate request authenticator: %w", err)
		}
	}

	buf := make([]byte, size)
	buf[0] = byte(p.Code)
	buf[1] = p.Identifier
	binary.BigEndian.PutUint16(buf[2:4], uint16(size))

	// Computed request authenticators start from 16 zero octets; everything else
	// carries the (request) authenticator while attributes are protected.
	computedRequest := p.Code.IsRequest() && !p.Code.randomAuthenticator()
	if !computedRequest {
		copy(buf[4:HeaderSize], p.Authenticator[:])
	}

	maOffset := -1
	offset := HeaderSize
	for _, a := range p.Attributes {
		value := a.Value
		switch a.Type {
		case AttrUserPassword:
			value = hidePassword(a.Value, p.secret, p.Authenticator)
		case AttrMessageAuthenticator:
			value = make([]byte, AuthenticatorSize)
			maOffset = offset + 2
		}
		buf[offset] = byte(a.Type)
		buf[offset+1] = byte(2 + len(value))
		copy(buf[offset+2:], value)
		offset += 2 + len(value)
	}
	if needMA {
		buf[offset] = byte(AttrMessageAuthenticator)
		buf[offset+1] = 2 + AuthenticatorSize
		maOffset = offset + 2
	}

	if maOffset >= 0 {
		copy(buf[maOffset:], messageAuthenticator(buf, p.secret))
	}

	if computedRequest || !p.Code.IsRequest() {
		sum := md5Sum(buf, p.secret)
		copy(buf[4:HeaderSize], sum)
		if computedRequest {
			copy(p.Authenticator[:], sum)
		}
	}

	return buf, nil
}

// Decode parses a packet and verifies what can be verified without the originating
// request: request authenticators of accounting and dynamic-authorization requests,
// and Message-Authenticator where present (mandatory for Status-Server).
// User-Password values of Access-Requests are returned in clear text.
// Replies should be decoded with DecodeResponse on the request instead.
func Decode(b, secret []byte) (*Packet, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}

	p, raw, err := parse(b, secret)
	if err != nil {
		return nil, err
	}

	maOffset := findAttribute(raw, AttrMessageAuthenticator)

	switch {
	case p.Code.randomAuthenticator():
		if maOffset < 0 && p.Code == CodeStatusServer {
			return nil, fmt.Errorf("%w: required for %s", ErrMessageAuthenticator, p.Code)
		}
		if maOffset >= 0 && !verifyMessageAuthenticator(raw, p.Authenticator, maOffset, secret) {
			return nil, ErrMessageAuthenticator
		}
		for i, a := range p.Attributes {
			if a.Type != AttrUserPassword {
				continue
			}
			plain, err := revealPassword(a.Value, secret, p.Authenticator)
			if err != nil {
				return nil, err
			}
			p.Attributes[i].Value = plain
		}

	case p.Code.IsRequest():
		var zero [AuthenticatorSize]byte
		if maOffset >= 0 && !verifyMessageAuthenticator(raw, zero, maOffset, secret) {
			return nil, ErrMessageAuthenticator
		}
		if !hmac.Equal(authenticatorOver(raw, zero, secret), raw[4:HeaderSize]) {
			return nil, fmt.Errorf("%w: request authenticator", ErrAuthenticatorMismatch)
		}
	}

	return p, nil
}

// DecodeResponse decodes a reply to p and validates it against p: the identifier must
// match, the code must answer p.Code, the response authenticator must verify with the
// given secret and p's request authenticator, and Message-Authenticator must verify
// when present.
func (p *Packet) DecodeResponse(b, secret []byte) (*Packet, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}

	resp, raw, err := parse(b, secret)
	if err != nil {
		return nil, err
	}

	if resp.Identifier != p.Identifier {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrIdentifierMismatch, resp.Identifier, p.Identifier)
	}
	if !resp.Code.answers(p.Code) {
		return nil, fmt.Errorf("%w: %s in reply to %s", ErrUnexpectedCode, resp.Code, p.Code)
	}
	if !hmac.Equal(authenticatorOver(raw, p.Authenticator, secret), raw[4:HeaderSize]) {
		return nil, fmt.Errorf("%w: response authenticator", ErrAuthenticatorMismatch)
	}
	if off := findAttribute(raw, AttrMessageAuthenticator); off >= 0 {
		if !verifyMessageAuthenticator(raw, p.Authenticator, off, secret) {
			return nil, ErrMessageAuthenticator
		}
	}

	return resp, nil
}

// String returns a debug representation of the packet.
func (p *Packet) String() string {
	return fmt.Sprintf("Packet{Code=%s, ID=%d, Attributes=%d}", p.Code, p.Identifier, len(p.Attributes))
}

// parse validates the header and attribute framing. raw is b truncated to the
// length field; octets beyond it are padding and ignored (RFC 2865 section 3).
func parse(b, secret []byte) (*Packet, []byte, error) {
	if len(b) < HeaderSize {
		return nil, nil, fmt.Errorf("%w: %d bytes", ErrPacketTooShort, len(b))
	}

	length := int(binary.BigEndian.Uint16(b[2:4]))
	if length < HeaderSize || length > MaxPacketSize || length > len(b) {
		return nil, nil, fmt.Errorf("%w: %d (have %d bytes)", ErrInvalidLength, length, len(b))
	}
	raw := b[:length]

	p := &Packet{
		Code:       Code(raw[0]),
		Identifier: raw[1],
		secret:     append([]byte(nil), secret...),
	}
	copy(p.Authenticator[:], raw[4:HeaderSize])

	for offset := HeaderSize; offset < length; {
		if length-offset < 2 {
			return nil, nil, fmt.Errorf("%w: truncated header at offset %d", ErrMalformedAttribute, offset)
		}
		l := int(raw[offset+1])
		if l < 2 || offset+l > length {
			return nil, nil, fmt.Errorf("%w: length %d at offset %d", ErrMalformedAttribute, l, offset)
		}
		p.Attributes = append(p.Attributes, Attribute{
			Type:  AttributeType(raw[offset]),
			Value: append([]byte(nil), raw[offset+2:offset+l]...),
		})
		offset += l
	}

	return p, raw, nil
}

// findAttribute returns the offset of the first value of type t in an already
// validated raw packet, or -1.
func findAttribute(raw []byte, t AttributeType) int {
	for offset := HeaderSize; offset+1 < len(raw); offset += int(raw[offset+1]) {
		if AttributeType(raw[offset]) == t {
			return offset + 2
		}
	}
	return -1
}

func md5Sum(buf, secret []byte) []byte {
	h := md5.New()
	h.Write(buf)
	h.Write(secret)
	return h.Sum(nil)
}

// authenticatorOver computes MD5(Code+ID+Length+auth+Attributes+Secret).
func authenticatorOver(raw []byte, auth [AuthenticatorSize]byte, secret []byte) []byte {
	tmp := append([]byte(nil), raw...)
	copy(tmp[4:HeaderSize], auth[:])
	return md5Sum(tmp, secret)
}

func messageAuthenticator(buf, secret []byte) []byte {
	mac := hmac.New(md5.New, secret)
	mac.Write(buf)
	return mac.Sum(nil)
}

func verifyMessageAuthenticator(raw []byte, auth [AuthenticatorSize]byte, offset int, secret []byte) bool {
	if offset+AuthenticatorSize > len(raw) || raw[offset-1] != 2+AuthenticatorSize {
		return false
	}
	tmp := append([]byte(nil), raw...)
	copy(tmp[4:HeaderSize], auth[:])
	clear(tmp[offset : offset+AuthenticatorSize])
	return hmac.Equal(messageAuthenticator(tmp, secret), raw[offset:offset+AuthenticatorSize])
}
