// Package client performs single request/reply RADIUS exchanges over UDP.
//
// Each call to SendPacket binds a fresh ephemeral socket, associates it with
// the server, sends one encoded request, waits for one datagram and decodes it
// against the request. The socket is released before SendPacket returns on
// every path. Two independent bounded waits apply: the connection timeout
// covers association only, and the socket timeout covers send plus receive.
// Either may be left unset, which means wait indefinitely.
package client

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/postalsys/radclient/internal/logging"
	"github.com/postalsys/radclient/internal/metrics"
	"github.com/postalsys/radclient/internal/radius"
)

// MaxDatagramSize is the receive buffer size, the largest UDP payload over IPv4.
const MaxDatagramSize = 65507

// ListenFunc binds a local UDP socket. It has the signature of net.ListenUDP.
type ListenFunc func(network string, laddr *net.UDPAddr) (*net.UDPConn, error)

// Config holds client configuration.
type Config struct {
	// ConnectionTimeout bounds association with the remote endpoint.
	// Nil means no bound.
	ConnectionTimeout *time.Duration

	// SocketTimeout bounds the send and receive steps together.
	// Nil means no bound.
	SocketTimeout *time.Duration

	// DSCP, when non-zero, is set on outgoing datagrams (0-63).
	DSCP int

	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// ListenUDP overrides net.ListenUDP for the bind step.
	ListenUDP ListenFunc
}

// Timeout returns a pointer to d, for populating Config.
func Timeout(d time.Duration) *time.Duration {
	return &d
}

// Client sends RADIUS requests. It holds no socket between calls and is safe
// for concurrent use; each exchange owns its own socket.
type Client struct {
	connectionTimeout *time.Duration
	socketTimeout     *time.Duration
	dscp              int
	logger            *slog.Logger
	metrics           *metrics.Metrics
	listenUDP         ListenFunc
	connect           func(conn *net.UDPConn, remote *net.UDPAddr) error
}

// New creates a client. The timeout values are copied; later changes to the
// pointed-to durations do not affect the client.
func New(cfg Config) *Client {
	c := &Client{
		dscp:      cfg.DSCP,
		logger:    logging.OrNop(cfg.Logger).With(logging.KeyComponent, "client"),
		metrics:   cfg.Metrics,
		listenUDP: cfg.ListenUDP,
		connect:   connectUDP,
	}
	if cfg.ConnectionTimeout != nil {
		c.connectionTimeout = Timeout(*cfg.ConnectionTimeout)
	}
	if cfg.SocketTimeout != nil {
		c.socketTimeout = Timeout(*cfg.SocketTimeout)
	}
	if c.listenUDP == nil {
		c.listenUDP = net.ListenUDP
	}
	return c
}

// ConnectionTimeout returns the configured association bound, if any.
func (c *Client) ConnectionTimeout() (time.Duration, bool) {
	if c.connectionTimeout == nil {
		return 0, false
	}
	return *c.connectionTimeout, true
}

// SocketTimeout returns the configured send plus receive bound, if any.
func (c *Client) SocketTimeout() (time.Duration, bool) {
	if c.socketTimeout == nil {
		return 0, false
	}
	return *c.socketTimeout, true
}

// SendPacket performs one exchange with remote and returns the decoded reply.
// The reply is validated against req using req's own shared secret.
//
// All failures are returned as *Error. Cancelling ctx aborts the step in
// progress; the resulting error carries that step's Kind and wraps ctx.Err().
func (c *Client) SendPacket(ctx context.Context, remote *net.UDPAddr, req *radius.Packet) (resp *radius.Packet, err error) {
	start := time.Now()
	c.metrics.RecordExchangeStart()
	defer func() {
		result := metrics.ResultOK
		if err != nil {
			result = KindOf(err).String()
			c.logger.Debug("exchange failed",
				logging.KeyState, StateFailed,
				logging.KeyRemoteAddr, remote,
				logging.KeyKind, result,
				logging.KeyError, err)
		}
		c.metrics.RecordExchangeDone(req.Code.String(), result, time.Since(start).Seconds())
	}()

	conn, err := c.bind(remote)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	c.trace(StateBound, remote, logging.KeyLocalAddr, conn.LocalAddr())

	if err := c.associate(ctx, conn, remote); err != nil {
		return nil, err
	}
	c.trace(StateAssociated, remote)

	data, err := req.Encode()
	if err != nil {
		return nil, &Error{Kind: KindEncodePacket, Cause: err}
	}
	c.trace(StateEncoded, remote,
		logging.KeyCode, req.Code,
		logging.KeyIdentifier, req.Identifier,
		logging.KeyBytes, len(data))

	reply, err := c.roundTrip(ctx, conn, remote, data)
	if err != nil {
		return nil, err
	}

	resp, err = req.DecodeResponse(reply, req.Secret())
	if err != nil {
		return nil, &Error{Kind: KindDecodePacket, Cause: err}
	}
	c.metrics.RecordResponse(resp.Code.String())
	c.trace(StateDecoded, remote,
		logging.KeyCode, resp.Code,
		logging.KeyDuration, time.Since(start))

	return resp, nil
}

// bind opens an ephemeral socket on the unspecified address of remote's family.
// An IPv4-mapped IPv6 remote (::ffff:a.b.c.d) binds udp4, since net.IP does
// not distinguish it from the plain IPv4 address.
func (c *Client) bind(remote *net.UDPAddr) (*net.UDPConn, error) {
	network, laddr := "udp4", &net.UDPAddr{IP: net.IPv4zero}
	if remote.IP.To4() == nil {
		network, laddr = "udp6", &net.UDPAddr{IP: net.IPv6unspecified}
	}

	conn, err := c.listenUDP(network, laddr)
	if err != nil {
		return nil, &Error{Kind: KindBind, Cause: err}
	}

	if c.dscp != 0 {
		if err := setDSCP(conn, network, c.dscp); err != nil {
			conn.Close()
			return nil, &Error{Kind: KindBind, Cause: err}
		}
	}
	return conn, nil
}

// associate fixes the socket's peer to remote, bounded by the connection timeout.
// A non-positive timeout is already expired and fails without attempting.
func (c *Client) associate(ctx context.Context, conn *net.UDPConn, remote *net.UDPAddr) error {
	var expired <-chan time.Time
	if c.connectionTimeout != nil {
		if *c.connectionTimeout <= 0 {
			return &Error{Kind: KindConnectionTimeout}
		}
		timer := time.NewTimer(*c.connectionTimeout)
		defer timer.Stop()
		expired = timer.C
	}

	done := make(chan error, 1)
	go func() {
		done <- c.connect(conn, remote)
	}()

	select {
	case err := <-done:
		if err != nil {
			return &Error{Kind: KindConnect, Remote: remote, Cause: err}
		}
		return nil
	case <-expired:
		return &Error{Kind: KindConnectionTimeout}
	case <-ctx.Done():
		return &Error{Kind: KindConnect, Remote: remote, Cause: ctx.Err()}
	}
}

// aLongTimeAgo is a deadline that has already passed, used to unblock I/O.
var aLongTimeAgo = time.Unix(1, 0)

// roundTrip sends data and reads one datagram, both under the socket timeout.
func (c *Client) roundTrip(ctx context.Context, conn *net.UDPConn, remote *net.UDPAddr, data []byte) ([]byte, error) {
	if c.socketTimeout != nil {
		if err := conn.SetDeadline(time.Now().Add(*c.socketTimeout)); err != nil {
			return nil, &Error{Kind: KindSend, Remote: remote, Cause: err}
		}
	}

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(aLongTimeAgo)
	})
	defer stop()

	sentAt := time.Now()
	n, err := conn.Write(data)
	if err != nil {
		return nil, ioError(ctx, KindSend, remote, err)
	}
	c.metrics.RecordBytesSent(n)
	c.trace(StateSent, remote, logging.KeyBytes, n)

	buf := make([]byte, MaxDatagramSize)
	n, err = conn.Read(buf)
	if err != nil {
		return nil, ioError(ctx, KindReceive, remote, err)
	}
	c.metrics.RecordBytesReceived(n)
	c.metrics.RecordRoundTrip(time.Since(sentAt).Seconds())
	c.trace(StateReceived, remote,
		logging.KeyBytes, n,
		logging.KeyDuration, time.Since(sentAt))

	return buf[:n], nil
}

// ioError classifies a send or receive failure. An expired socket deadline is
// a timeout unless the caller's context caused it.
func ioError(ctx context.Context, kind Kind, remote *net.UDPAddr, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &Error{Kind: kind, Remote: remote, Cause: ctxErr}
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return &Error{Kind: KindSocketTimeout}
	}
	return &Error{Kind: kind, Remote: remote, Cause: err}
}

func (c *Client) trace(state State, remote *net.UDPAddr, args ...any) {
	c.logger.Debug("exchange state",
		append([]any{logging.KeyState, state, logging.KeyRemoteAddr, remote}, args...)...)
}
