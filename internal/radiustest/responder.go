// Package radiustest provides an in-process RADIUS server for tests.
package radiustest

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/postalsys/radclient/internal/radius"
)

// Handler builds the reply for a decoded request. Returning nil sends nothing.
type Handler func(req *radius.Packet) *radius.Packet

// Responder answers RADIUS requests on a loopback UDP socket.
type Responder struct {
	conn    *net.UDPConn
	secret  []byte
	handler Handler

	delay    atomic.Int64
	received atomic.Int64
	answered atomic.Int64

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewResponder starts a responder on 127.0.0.1 with an ephemeral port.
// It is closed automatically when the test finishes.
func NewResponder(tb testing.TB, secret []byte, handler Handler) *Responder {
	tb.Helper()
	return newResponder(tb, "udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)}, secret, handler)
}

// NewResponder6 starts a responder on ::1, skipping the test if IPv6
// loopback is unavailable.
func NewResponder6(tb testing.TB, secret []byte, handler Handler) *Responder {
	tb.Helper()
	return newResponder(tb, "udp6", &net.UDPAddr{IP: net.IPv6loopback}, secret, handler)
}

func newResponder(tb testing.TB, network string, laddr *net.UDPAddr, secret []byte, handler Handler) *Responder {
	tb.Helper()

	conn, err := net.ListenUDP(network, laddr)
	if err != nil {
		if network == "udp6" {
			tb.Skipf("IPv6 loopback unavailable: %v", err)
		}
		tb.Fatalf("listen %s: %v", network, err)
	}

	r := &Responder{
		conn:    conn,
		secret:  append([]byte(nil), secret...),
		handler: handler,
	}

	r.wg.Add(1)
	go r.serve()

	tb.Cleanup(r.Close)
	return r
}

// Addr returns the address the responder listens on.
func (r *Responder) Addr() *net.UDPAddr {
	return r.conn.LocalAddr().(*net.UDPAddr)
}

// SetDelay makes the responder wait d before each reply.
func (r *Responder) SetDelay(d time.Duration) {
	r.delay.Store(int64(d))
}

// Received returns the number of datagrams received, valid or not.
func (r *Responder) Received() int64 {
	return r.received.Load()
}

// Answered returns the number of replies sent.
func (r *Responder) Answered() int64 {
	return r.answered.Load()
}

// Close stops the responder and waits for in-flight replies.
func (r *Responder) Close() {
	r.closeOnce.Do(func() {
		r.conn.Close()
		r.wg.Wait()
	})
}

func (r *Responder) serve() {
	defer r.wg.Done()

	buf := make([]byte, radius.MaxPacketSize)
	for {
		n, from, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}
		r.received.Add(1)

		req, err := radius.Decode(buf[:n], r.secret)
		if err != nil {
			continue
		}

		r.wg.Add(1)
		go r.reply(req, from)
	}
}

func (r *Responder) reply(req *radius.Packet, to *net.UDPAddr) {
	defer r.wg.Done()

	resp := r.handler(req)
	if resp == nil {
		return
	}
	if d := time.Duration(r.delay.Load()); d > 0 {
		time.Sleep(d)
	}

	data, err := resp.Encode()
	if err != nil {
		return
	}
	if _, err := r.conn.WriteToUDP(data, to); err == nil {
		r.answered.Add(1)
	}
}

// Accept answers Access-Request and Status-Server with Access-Accept and
// Accounting-Request with Accounting-Response.
func Accept(req *radius.Packet) *radius.Packet {
	switch req.Code {
	case radius.CodeAccessRequest, radius.CodeStatusServer:
		return req.Reply(radius.CodeAccessAccept)
	case radius.CodeAccountingRequest:
		return req.Reply(radius.CodeAccountingResponse)
	default:
		return nil
	}
}

// Reject answers every Access-Request with Access-Reject.
func Reject(req *radius.Packet) *radius.Packet {
	if req.Code != radius.CodeAccessRequest {
		return nil
	}
	return req.Reply(radius.CodeAccessReject)
}

// Silent never answers.
func Silent(*radius.Packet) *radius.Packet {
	return nil
}

// Password answers Access-Request with Access-Accept when the User-Name and
// User-Password match, and Access-Reject otherwise.
func Password(user, password string) Handler {
	return func(req *radius.Packet) *radius.Packet {
		if req.Code != radius.CodeAccessRequest {
			return Accept(req)
		}
		if req.GetString(radius.AttrUserName) == user && req.GetString(radius.AttrUserPassword) == password {
			resp := req.Reply(radius.CodeAccessAccept)
			resp.AddString(radius.AttrReplyMessage, "Welcome, "+user)
			return resp
		}
		return req.Reply(radius.CodeAccessReject)
	}
}
