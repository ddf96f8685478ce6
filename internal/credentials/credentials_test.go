package credentials

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
)

func TestNormalizeUsername(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"plain", "alice", "alice", nil},
		{"trimmed", "  bob@example.com ", "bob@example.com", nil},
		{"decomposed accent", "jose\u0301", "jos\u00e9", nil},
		{"empty", "   ", "", ErrEmptyUsername},
		{"control character", "ali\x00ce", "", ErrInvalidUsername},
		{"too long", strings.Repeat("u", 254), "", ErrTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeUsername(tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("NormalizeUsername(%q) error = %v, want %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("NormalizeUsername(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizePassword(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"plain", "wonderland", "wonderland", false},
		{"empty", "", "", false},
		{"non-ascii space mapped", "pass\u00a0word", "pass word", false},
		{"decomposed accent", "cafe\u0301", "caf\u00e9", false},
		{"control character", "pass\x07", "", true},
		{"too long", strings.Repeat("p", 129), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePassword(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizePassword(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("NormalizePassword(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCheckPassword(t *testing.T) {
	if err := CheckPassword("pass\u00a0word"); err != nil {
		t.Errorf("CheckPassword() error = %v, want nil", err)
	}
	if err := CheckPassword(""); err != nil {
		t.Errorf("CheckPassword(\"\") error = %v, want nil", err)
	}
	if err := CheckPassword(strings.Repeat("x", 129)); !errors.Is(err, ErrTooLong) {
		t.Errorf("CheckPassword(129 bytes) error = %v, want ErrTooLong", err)
	}
}

func TestPrompter_Password(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() error = %v", err)
	}
	defer r.Close()

	if _, err := w.WriteString("s3cret\r\nsecond"); err != nil {
		t.Fatalf("write: %v", err)
	}
	w.Close()

	var out bytes.Buffer
	p := &Prompter{In: r, Out: &out}

	got, err := p.Password("Password: ")
	if err != nil {
		t.Fatalf("Password() error = %v", err)
	}
	if got != "s3cret" {
		t.Errorf("Password() = %q, want s3cret", got)
	}

	got, err = p.Password("Again: ")
	if err != nil {
		t.Fatalf("Password() error = %v", err)
	}
	if got != "second" {
		t.Errorf("Password() = %q, want second", got)
	}

	if out.String() != "Password: Again: " {
		t.Errorf("prompts = %q", out.String())
	}

	if _, err := p.Password("More: "); err == nil {
		t.Error("Password() at EOF should fail")
	}
}
