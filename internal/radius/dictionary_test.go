package radius

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseAttribute(t *testing.T) {
	tests := []struct {
		input     string
		wantType  AttributeType
		wantValue []byte
	}{
		{"User-Name=alice", AttrUserName, []byte("alice")},
		{"user-name = bob ", AttrUserName, []byte("bob")},
		{"NAS-Port=42", AttrNASPort, []byte{0, 0, 0, 42}},
		{"Acct-Status-Type=Interim-Update", AttrAcctStatusType, []byte{0, 0, 0, 3}},
		{"Service-Type=Framed-User", AttrServiceType, []byte{0, 0, 0, 2}},
		{"NAS-IP-Address=192.0.2.1", AttrNASIPAddress, []byte{192, 0, 2, 1}},
		{"State=0xdeadbeef", AttrState, []byte{0xde, 0xad, 0xbe, 0xef}},
		{"Attr-200=raw", AttributeType(200), []byte("raw")},
		{"31=0123", AttrCallingStationID, []byte("0123")},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			a, err := ParseAttribute(tc.input)
			if err != nil {
				t.Fatalf("ParseAttribute() error = %v", err)
			}
			if a.Type != tc.wantType {
				t.Errorf("Type = %s, want %s", a.Type, tc.wantType)
			}
			if !bytes.Equal(a.Value, tc.wantValue) {
				t.Errorf("Value = %v, want %v", a.Value, tc.wantValue)
			}
		})
	}
}

func TestParseAttribute_Errors(t *testing.T) {
	inputs := []string{
		"User-Name",
		"No-Such-Attribute=1",
		"NAS-Port=many",
		"NAS-IP-Address=2001:db8::1",
		"State=0xzz",
		"Attr-0=x",
		"User-Name=" + strings.Repeat("x", 254),
	}

	for _, in := range inputs {
		if _, err := ParseAttribute(in); err == nil {
			t.Errorf("ParseAttribute(%q) expected error", in)
		}
	}
}

func TestFormatAttribute(t *testing.T) {
	tests := []struct {
		attr Attribute
		want string
	}{
		{Attribute{AttrReplyMessage, []byte("hi")}, `Reply-Message = "hi"`},
		{Attribute{AttrSessionTimeout, []byte{0, 0, 0x0e, 0x10}}, "Session-Timeout = 3600"},
		{Attribute{AttrAcctStatusType, []byte{0, 0, 0, 2}}, "Acct-Status-Type = stop"},
		{Attribute{AttrFramedIPAddress, []byte{10, 1, 2, 3}}, "Framed-IP-Address = 10.1.2.3"},
		{Attribute{AttrClass, []byte{1, 2}}, "Class = 0x0102"},
		{Attribute{AttributeType(222), []byte{0xff}}, "Attr-222 = 0xff"},
	}

	for _, tc := range tests {
		if got := FormatAttribute(tc.attr); got != tc.want {
			t.Errorf("FormatAttribute() = %s, want %s", got, tc.want)
		}
	}
}
