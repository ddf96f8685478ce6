package radius

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"net"
)

// AttributeType identifies a RADIUS attribute.
type AttributeType uint8

// Attribute types from RFC 2865, RFC 2866 and RFC 3579.
const (
	AttrUserName             AttributeType = 1
	AttrUserPassword         AttributeType = 2
	AttrNASIPAddress         AttributeType = 4
	AttrNASPort              AttributeType = 5
	AttrServiceType          AttributeType = 6
	AttrFramedIPAddress      AttributeType = 8
	AttrReplyMessage         AttributeType = 18
	AttrState                AttributeType = 24
	AttrClass                AttributeType = 25
	AttrVendorSpecific       AttributeType = 26
	AttrSessionTimeout       AttributeType = 27
	AttrCalledStationID      AttributeType = 30
	AttrCallingStationID     AttributeType = 31
	AttrNASIdentifier        AttributeType = 32
	AttrAcctStatusType       AttributeType = 40
	AttrAcctDelayTime        AttributeType = 41
	AttrAcctInputOctets      AttributeType = 42
	AttrAcctOutputOctets     AttributeType = 43
	AttrAcctSessionID        AttributeType = 44
	AttrAcctSessionTime      AttributeType = 46
	AttrEventTimestamp       AttributeType = 55
	AttrNASPortType          AttributeType = 61
	AttrMessageAuthenticator AttributeType = 80
)

// Acct-Status-Type values (RFC 2866 section 5.1).
const (
	AcctStatusStart         uint32 = 1
	AcctStatusStop          uint32 = 2
	AcctStatusInterimUpdate uint32 = 3
	AcctStatusAccountingOn  uint32 = 7
	AcctStatusAccountingOff uint32 = 8
)

// Add appends an attribute.
func (p *Packet) Add(t AttributeType, value []byte) {
	p.Attributes = append(p.Attributes, Attribute{Type: t, Value: append([]byte(nil), value...)})
}

// AddString appends a text attribute.
func (p *Packet) AddString(t AttributeType, s string) {
	p.Add(t, []byte(s))
}

// AddUint32 appends an integer attribute.
func (p *Packet) AddUint32(t AttributeType, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	p.Add(t, b[:])
}

// AddIPv4 appends an address attribute. Only IPv4 addresses fit the RFC 2865 ipaddr type.
func (p *Packet) AddIPv4(t AttributeType, ip net.IP) error {
	v4 := ip.To4()
	if v4 == nil {
		return fmt.Errorf("%w: %s is not an IPv4 address", ErrMalformedAttribute, ip)
	}
	p.Add(t, v4)
	return nil
}

// SetUserPassword replaces any User-Password with the given clear text.
// The value is hidden with the shared secret when the packet is encoded.
func (p *Packet) SetUserPassword(password string) {
	p.Del(AttrUserPassword)
	p.AddString(AttrUserPassword, password)
}

// Del removes every attribute of type t.
func (p *Packet) Del(t AttributeType) {
	kept := p.Attributes[:0]
	for _, a := range p.Attributes {
		if a.Type != t {
			kept = append(kept, a)
		}
	}
	p.Attributes = kept
}

// Get returns the first value of type t.
func (p *Packet) Get(t AttributeType) ([]byte, bool) {
	for _, a := range p.Attributes {
		if a.Type == t {
			return a.Value, true
		}
	}
	return nil, false
}

// GetString returns the first value of type t as text, or "".
func (p *Packet) GetString(t AttributeType) string {
	v, _ := p.Get(t)
	return string(v)
}

// GetUint32 returns the first value of type t as an integer.
func (p *Packet) GetUint32(t AttributeType) (uint32, bool) {
	v, ok := p.Get(t)
	if !ok || len(v) != 4 {
		return 0, false
	}
	return binary.BigEndian.Uint32(v), true
}

// hiddenLen is the on-wire length of a User-Password of n clear-text bytes.
func hiddenLen(n int) int {
	if n == 0 {
		return 16
	}
	return (n + 15) / 16 * 16
}

// hidePassword implements the User-Password hiding of RFC 2865 section 5.2.
func hidePassword(password, secret []byte, auth [AuthenticatorSize]byte) []byte {
	out := make([]byte, hiddenLen(len(password)))
	copy(out, password)

	prev := auth[:]
	for i := 0; i < len(out); i += 16 {
		h := md5.New()
		h.Write(secret)
		h.Write(prev)
		sum := h.Sum(nil)
		for j := 0; j < 16; j++ {
			out[i+j] ^= sum[j]
		}
		prev = out[i : i+16]
	}
	return out
}

// revealPassword reverses hidePassword and strips the zero padding.
func revealPassword(hidden, secret []byte, auth [AuthenticatorSize]byte) ([]byte, error) {
	if len(hidden) == 0 || len(hidden)%16 != 0 {
		return nil, fmt.Errorf("%w: user-password length %d", ErrMalformedAttribute, len(hidden))
	}

	out := make([]byte, len(hidden))
	prev := auth[:]
	for i := 0; i < len(hidden); i += 16 {
		h := md5.New()
		h.Write(secret)
		h.Write(prev)
		sum := h.Sum(nil)
		for j := 0; j < 16; j++ {
			out[i+j] = hidden[i+j] ^ sum[j]
		}
		prev = hidden[i : i+16]
	}
	return bytes.TrimRight(out, "\x00"), nil
}
