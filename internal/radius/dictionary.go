package radius

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ValueKind is the data type of an attribute value.
type ValueKind int

const (
	KindOctets ValueKind = iota
	KindString
	KindInteger
	KindIPAddr
)

type attributeDef struct {
	name   string
	kind   ValueKind
	values map[string]uint32 // named integer values
}

var dictionary = map[AttributeType]attributeDef{
	AttrUserName:     {name: "User-Name", kind: KindString},
	AttrUserPassword: {name: "User-Password", kind: KindString},
	AttrNASIPAddress: {name: "NAS-IP-Address", kind: KindIPAddr},
	AttrNASPort:      {name: "NAS-Port", kind: KindInteger},
	AttrServiceType: {name: "Service-Type", kind: KindInteger, values: map[string]uint32{
		"login-user":          1,
		"framed-user":         2,
		"callback-login-user": 3,
		"outbound-user":       5,
		"administrative-user": 6,
		"authenticate-only":   8,
	}},
	AttrFramedIPAddress:  {name: "Framed-IP-Address", kind: KindIPAddr},
	AttrReplyMessage:     {name: "Reply-Message", kind: KindString},
	AttrState:            {name: "State", kind: KindOctets},
	AttrClass:            {name: "Class", kind: KindOctets},
	AttrVendorSpecific:   {name: "Vendor-Specific", kind: KindOctets},
	AttrSessionTimeout:   {name: "Session-Timeout", kind: KindInteger},
	AttrCalledStationID:  {name: "Called-Station-Id", kind: KindString},
	AttrCallingStationID: {name: "Calling-Station-Id", kind: KindString},
	AttrNASIdentifier:    {name: "NAS-Identifier", kind: KindString},
	AttrAcctStatusType: {name: "Acct-Status-Type", kind: KindInteger, values: map[string]uint32{
		"start":          AcctStatusStart,
		"stop":           AcctStatusStop,
		"interim-update": AcctStatusInterimUpdate,
		"accounting-on":  AcctStatusAccountingOn,
		"accounting-off": AcctStatusAccountingOff,
	}},
	AttrAcctDelayTime:        {name: "Acct-Delay-Time", kind: KindInteger},
	AttrAcctInputOctets:      {name: "Acct-Input-Octets", kind: KindInteger},
	AttrAcctOutputOctets:     {name: "Acct-Output-Octets", kind: KindInteger},
	AttrAcctSessionID:        {name: "Acct-Session-Id", kind: KindString},
	AttrAcctSessionTime:      {name: "Acct-Session-Time", kind: KindInteger},
	AttrEventTimestamp:       {name: "Event-Timestamp", kind: KindInteger},
	AttrNASPortType:          {name: "NAS-Port-Type", kind: KindInteger},
	AttrMessageAuthenticator: {name: "Message-Authenticator", kind: KindOctets},
}

// String returns the dictionary name of the attribute type.
func (t AttributeType) String() string {
	if def, ok := dictionary[t]; ok {
		return def.name
	}
	return fmt.Sprintf("Attr-%d", uint8(t))
}

// LookupAttribute resolves a dictionary name (case-insensitive) or an "Attr-N" / "N"
// numeric form to an attribute type and its value kind.
func LookupAttribute(name string) (AttributeType, ValueKind, bool) {
	for t, def := range dictionary {
		if strings.EqualFold(def.name, name) {
			return t, def.kind, true
		}
	}

	num := strings.TrimPrefix(strings.ToLower(name), "attr-")
	n, err := strconv.ParseUint(num, 10, 8)
	if err != nil || n == 0 {
		return 0, KindOctets, false
	}
	t := AttributeType(n)
	if def, ok := dictionary[t]; ok {
		return t, def.kind, true
	}
	return t, KindOctets, true
}

// ParseAttribute parses "Name=value". Integer values accept dictionary names
// (e.g. Acct-Status-Type=Start); octets accept a 0x-prefixed hex string.
func ParseAttribute(s string) (Attribute, error) {
	name, value, ok := strings.Cut(s, "=")
	if !ok {
		return Attribute{}, fmt.Errorf("attribute %q: expected Name=value", s)
	}
	name = strings.TrimSpace(name)
	value = strings.TrimSpace(value)

	t, kind, ok := LookupAttribute(name)
	if !ok {
		return Attribute{}, fmt.Errorf("unknown attribute %q", name)
	}

	v, err := parseValue(t, kind, value)
	if err != nil {
		return Attribute{}, fmt.Errorf("attribute %s: %w", t, err)
	}
	if len(v) > MaxAttributeValueSize {
		return Attribute{}, fmt.Errorf("%w: %s is %d bytes", ErrAttributeTooLong, t, len(v))
	}
	return Attribute{Type: t, Value: v}, nil
}

func parseValue(t AttributeType, kind ValueKind, value string) ([]byte, error) {
	switch kind {
	case KindString:
		return []byte(value), nil

	case KindInteger:
		if n, ok := dictionary[t].values[strings.ToLower(value)]; ok {
			return binary.BigEndian.AppendUint32(nil, n), nil
		}
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", value)
		}
		return binary.BigEndian.AppendUint32(nil, uint32(n)), nil

	case KindIPAddr:
		ip := net.ParseIP(value).To4()
		if ip == nil {
			return nil, fmt.Errorf("invalid IPv4 address %q", value)
		}
		return ip, nil

	default:
		if h, ok := strings.CutPrefix(value, "0x"); ok {
			b, err := hex.DecodeString(h)
			if err != nil {
				return nil, fmt.Errorf("invalid hex %q", value)
			}
			return b, nil
		}
		return []byte(value), nil
	}
}

// FormatAttribute renders an attribute as "Name = value" using its dictionary kind.
func FormatAttribute(a Attribute) string {
	def, known := dictionary[a.Type]
	kind := KindOctets
	if known {
		kind = def.kind
	}

	var value string
	switch {
	case kind == KindString:
		value = strconv.Quote(string(a.Value))
	case kind == KindInteger && len(a.Value) == 4:
		n := binary.BigEndian.Uint32(a.Value)
		value = strconv.FormatUint(uint64(n), 10)
		for name, v := range def.values {
			if v == n {
				value = name
				break
			}
		}
	case kind == KindIPAddr && len(a.Value) == 4:
		value = net.IP(a.Value).String()
	default:
		value = "0x" + hex.EncodeToString(a.Value)
	}
	return a.Type.String() + " = " + value
}
