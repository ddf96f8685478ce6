// Package credentials prepares user names and passwords for Access-Requests.
package credentials

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"golang.org/x/term"
	"golang.org/x/text/secure/precis"
	"golang.org/x/text/unicode/norm"
)

// maxValueSize is the longest value a RADIUS text attribute can carry.
const maxValueSize = 253

// maxPasswordSize is the longest User-Password RFC 2865 allows.
const maxPasswordSize = 128

var (
	ErrEmptyUsername   = errors.New("user name is empty")
	ErrInvalidUsername = errors.New("user name contains control characters")
	ErrTooLong         = errors.New("value too long")
)

// NormalizeUsername applies NFC normalization and trims surrounding spaces,
// so visually identical names produce identical User-Name octets.
func NormalizeUsername(name string) (string, error) {
	normalized := strings.TrimSpace(norm.NFC.String(name))
	if normalized == "" {
		return "", ErrEmptyUsername
	}
	if strings.IndexFunc(normalized, unicode.IsControl) >= 0 {
		return "", ErrInvalidUsername
	}
	if len(normalized) > maxValueSize {
		return "", fmt.Errorf("%w: user name is %d bytes, max %d", ErrTooLong, len(normalized), maxValueSize)
	}
	return normalized, nil
}

// CheckPassword verifies that password fits in a User-Password attribute.
// The password itself is left byte for byte as given.
func CheckPassword(password string) error {
	if len(password) > maxPasswordSize {
		return fmt.Errorf("%w: password is %d bytes, max %d", ErrTooLong, len(password), maxPasswordSize)
	}
	return nil
}

// NormalizePassword prepares a password with the PRECIS OpaqueString profile
// (RFC 8265). An empty password is passed through unchanged.
func NormalizePassword(password string) (string, error) {
	if password == "" {
		return "", nil
	}
	normalized, err := precis.OpaqueString.String(password)
	if err != nil {
		return "", fmt.Errorf("invalid password: %w", err)
	}
	if len(normalized) > maxPasswordSize {
		return "", fmt.Errorf("%w: password is %d bytes, max %d", ErrTooLong, len(normalized), maxPasswordSize)
	}
	return normalized, nil
}

// Prompter asks for secrets. Input from a terminal is read without echo;
// other input is read one line at a time.
type Prompter struct {
	In  *os.File
	Out io.Writer

	reader *bufio.Reader
}

// NewPrompter returns a prompter on stdin, writing prompts to stderr.
func NewPrompter() *Prompter {
	return &Prompter{In: os.Stdin, Out: os.Stderr}
}

// Password prints prompt and reads a password.
func (p *Prompter) Password(prompt string) (string, error) {
	fmt.Fprint(p.Out, prompt)

	fd := int(p.In.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(p.Out)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}

	if p.reader == nil {
		p.reader = bufio.NewReader(p.In)
	}
	line, err := p.reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
