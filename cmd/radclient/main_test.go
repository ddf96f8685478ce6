package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/postalsys/radclient/internal/radiustest"
)

const testSecret = "testing123"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if out != "radclient "+Version+"\n" {
		t.Errorf("output = %q", out)
	}
}

func TestAuth(t *testing.T) {
	srv := radiustest.NewResponder(t, []byte(testSecret), radiustest.Password("alice", "wonderland"))
	addr := srv.Addr().String()

	tests := []struct {
		name     string
		password string
		wantErr  error
		wantOut  []string
	}{
		{
			name:     "accepted",
			password: "wonderland",
			wantOut:  []string{"Received Access-Accept", `Reply-Message = "Welcome, alice"`},
		},
		{
			name:     "rejected",
			password: "looking-glass",
			wantErr:  errRejected,
			wantOut:  []string{"Received Access-Reject"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, "auth",
				"--server", addr, "--secret", testSecret, "--timeout", "1s",
				"--user", "alice", "--password", tt.password)

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("auth error = %v, want %v", err, tt.wantErr)
			}
			for _, want := range tt.wantOut {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestAuth_PasswordSentVerbatim(t *testing.T) {
	// The stored password contains a no-break space.
	srv := radiustest.NewResponder(t, []byte(testSecret), radiustest.Password("carol", "pass\u00a0word"))

	_, err := run(t, "auth", "-s", srv.Addr().String(), "--secret", testSecret,
		"--user", "carol", "--password", "pass\u00a0word")
	if err != nil {
		t.Fatalf("auth with verbatim password error = %v", err)
	}

	_, err = run(t, "auth", "-s", srv.Addr().String(), "--secret", testSecret,
		"--user", "carol", "--password", "pass\u00a0word", "--normalize-password")
	if !errors.Is(err, errRejected) {
		t.Errorf("auth with --normalize-password error = %v, want %v", err, errRejected)
	}
}

func TestAuth_ExtraAttributes(t *testing.T) {
	srv := radiustest.NewResponder(t, []byte(testSecret), radiustest.Password("bob", "pw"))

	_, err := run(t, "auth",
		"-s", srv.Addr().String(), "--secret", testSecret,
		"--user", "bob", "--password", "pw",
		"--attr", "NAS-Port=7", "--attr", "Calling-Station-Id=00-11-22")
	if err != nil {
		t.Fatalf("auth error = %v", err)
	}

	_, err = run(t, "auth",
		"-s", srv.Addr().String(), "--secret", testSecret,
		"--user", "bob", "--password", "pw", "--attr", "Bogus=1")
	if err == nil {
		t.Error("auth with unknown attribute should fail")
	}
}

func TestAuth_SocketTimeout(t *testing.T) {
	srv := radiustest.NewResponder(t, []byte(testSecret), radiustest.Silent)

	start := time.Now()
	_, err := run(t, "auth",
		"-s", srv.Addr().String(), "--secret", testSecret, "--timeout", "100ms",
		"--user", "alice", "--password", "x")
	if err == nil {
		t.Fatal("auth against a silent server should fail")
	}
	if !strings.Contains(err.Error(), "socket_timeout") || !strings.Contains(err.Error(), "socket timeout") {
		t.Errorf("error = %v, want socket timeout", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("auth took %v with a 100ms timeout", elapsed)
	}
}

func TestAcct(t *testing.T) {
	srv := radiustest.NewResponder(t, []byte(testSecret), radiustest.Accept)
	addr := srv.Addr().String()

	out, err := run(t, "acct", "-s", addr, "--secret", testSecret,
		"--status", "start", "--session-id", "s-1", "--user", "alice")
	if err != nil {
		t.Fatalf("acct error = %v", err)
	}
	if !strings.Contains(out, "Received Accounting-Response") {
		t.Errorf("output = %q", out)
	}

	if _, err := run(t, "acct", "-s", addr, "--secret", testSecret, "--status", "on"); err != nil {
		t.Errorf("acct --status on error = %v", err)
	}

	if _, err := run(t, "acct", "-s", addr, "--secret", testSecret, "--status", "stop"); err == nil {
		t.Error("acct --status stop without --session-id should fail")
	}
	if _, err := run(t, "acct", "-s", addr, "--secret", testSecret, "--status", "pause", "--session-id", "x"); err == nil {
		t.Error("acct with invalid status should fail")
	}
}

func TestStatus(t *testing.T) {
	srv := radiustest.NewResponder(t, []byte(testSecret), radiustest.Accept)

	out, err := run(t, "status", "-s", srv.Addr().String(), "--secret", testSecret, "--nas-identifier", "probe")
	if err != nil {
		t.Fatalf("status error = %v", err)
	}
	if !strings.Contains(out, "Received Access-Accept") {
		t.Errorf("output = %q", out)
	}
}

func TestStatus_WrongSecret(t *testing.T) {
	srv := radiustest.NewResponder(t, []byte("server-side"), radiustest.Accept)

	_, err := run(t, "status", "-s", srv.Addr().String(), "--secret", testSecret, "--timeout", "150ms")
	if err == nil {
		t.Fatal("status with a mismatched secret should fail")
	}
}

func TestConfigFile(t *testing.T) {
	srv := radiustest.NewResponder(t, []byte(testSecret), radiustest.Accept)

	path := filepath.Join(t.TempDir(), "radclient.yaml")
	content := fmt.Sprintf(`
server:
  address: "%s"
  secret: "%s"
  socket_timeout: 1s
log:
  level: error
`, srv.Addr(), testSecret)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := run(t, "status", "-c", path); err != nil {
		t.Errorf("status with config file error = %v", err)
	}

	// Flags override the file.
	if _, err := run(t, "status", "-c", path, "--secret", "wrong", "--timeout", "100ms"); err == nil {
		t.Error("status with overriding wrong secret should fail")
	}
}

func TestMissingSecret(t *testing.T) {
	_, err := run(t, "status", "-s", "127.0.0.1:1812")
	if err == nil || !strings.Contains(err.Error(), "shared secret is required") {
		t.Errorf("error = %v, want missing secret", err)
	}
}

func TestInvalidTimeoutFlag(t *testing.T) {
	_, err := run(t, "status", "-s", "127.0.0.1:1812", "--secret", "x", "--timeout", "soon")
	if err == nil || !strings.Contains(err.Error(), "--timeout") {
		t.Errorf("error = %v, want --timeout parse error", err)
	}
}

func TestBench(t *testing.T) {
	srv := radiustest.NewResponder(t, []byte(testSecret), radiustest.Accept)

	for _, kind := range []string{"auth", "acct", "status"} {
		t.Run(kind, func(t *testing.T) {
			out, err := run(t, "bench",
				"-s", srv.Addr().String(), "--secret", testSecret, "--timeout", "1s",
				"--type", kind, "--concurrency", "2", "--duration", "150ms",
				"--metrics-addr", "127.0.0.1:0", "--dump-metrics")
			if err != nil {
				t.Fatalf("bench error = %v", err)
			}
			for _, want := range []string{"Exchanges:", "0 failed", "radclient_exchanges_total", `result="ok"`} {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
		})
	}

	if _, err := run(t, "bench", "-s", srv.Addr().String(), "--secret", testSecret, "--type", "coa"); err == nil {
		t.Error("bench with invalid type should fail")
	}
}

func TestParseTimeoutFlag(t *testing.T) {
	tests := []struct {
		input   string
		want    *time.Duration
		wantErr bool
	}{
		{"", nil, false},
		{"none", nil, false},
		{"NONE", nil, false},
		{"2s", durationPtr(2 * time.Second), false},
		{"0s", durationPtr(0), false},
		{"-1s", durationPtr(-time.Second), false},
		{"2", nil, true},
	}

	for _, tt := range tests {
		got, err := parseTimeoutFlag(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseTimeoutFlag(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		switch {
		case got == nil && tt.want == nil:
		case got == nil || tt.want == nil || *got != *tt.want:
			t.Errorf("parseTimeoutFlag(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func durationPtr(d time.Duration) *time.Duration {
	return &d
}
