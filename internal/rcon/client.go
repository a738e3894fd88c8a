// Package rcon speaks the Squad flavor of the Source RCON protocol: a
// single short-lived TCP connection that authenticates, issues one text
// command, and reassembles a possibly fragmented multi-frame response.
package rcon

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/squadops/squadmin/internal/protocol"
)

// DefaultTimeout bounds one whole connect/auth/command/collect sequence.
// Callers living under a platform deadline of a few seconds should keep
// this low; a single deliberate retry may use up to 8s.
const DefaultTimeout = 2500 * time.Millisecond

// DefaultIdleWindow is how long the socket must stay silent after the last
// parsed frame before the response is declared complete.
const DefaultIdleWindow = 400 * time.Millisecond

// authRequestID is the id we send in the auth frame. Some servers echo it
// back in the ack, others echo a server-chosen id; either way the ack id is
// reused for the command frame.
const authRequestID = 1

// fallbackCommandID is used for the command frame when the server acks auth
// with id 0.
const fallbackCommandID = 2

// ErrAuthFailed is the Result.Err value set when the server rejects the
// password with the -1 sentinel.
const ErrAuthFailed = "AUTH_FAIL"

// Target identifies one server for the duration of a single call.
// Password is resolved once per call and never logged in full.
type Target struct {
	Host     string
	Port     int
	Password string
}

// Addr returns the host:port form of the target.
func (t Target) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// Options tune a single exchange.
type Options struct {
	// Timeout is the hard deadline for the whole sequence. Zero means
	// DefaultTimeout.
	Timeout time.Duration

	// IdleWindow is the silence period that finalizes a response. Zero
	// means DefaultIdleWindow.
	IdleWindow time.Duration

	// SimpleHandshake skips the empty response-value probe normally sent
	// after the command frame. Some server builds close the connection
	// when they see the probe.
	SimpleHandshake bool
}

// Meta carries observability fields for one exchange.
type Meta struct {
	AuthSuccess bool
	CommandSent bool
	PacketCount int
	RawHex      string
}

// Result is the uniform outcome of one exchange. OK is true only when the
// concatenated output is non-empty; transport and protocol failures land in
// Err rather than being raised.
type Result struct {
	OK      bool
	Output  string
	Err     string
	Latency time.Duration
	Meta    Meta
}

// connection states
type state int

const (
	stateConnecting state = iota
	stateAuthSent
	stateAuthenticated
	stateAwaitingResponse
	stateIdle
	stateClosed
	stateFailed
)

type readEvent struct {
	data []byte
	err  error
}

// Execute runs one full connect → authenticate → command → collect → close
// sequence against the target. It never returns an error; every failure
// mode degrades into the Result.
func Execute(ctx context.Context, target Target, command string, opts Options) Result {
	start := time.Now()
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	idleWindow := opts.IdleWindow
	if idleWindow <= 0 {
		idleWindow = DefaultIdleWindow
	}

	if target.Host == "" {
		return Result{Err: "no host", Latency: time.Since(start)}
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", target.Addr())
	if err != nil {
		return Result{Err: err.Error(), Latency: time.Since(start)}
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(timeout))
	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.SetNoDelay(true)
		tcp.SetKeepAlive(true)
		tcp.SetKeepAlivePeriod(2 * time.Second)
	}

	log.Printf("[rcon] connected to %s, sending auth", target.Addr())
	if _, err := conn.Write(protocol.Encode(authRequestID, protocol.TypeAuth, target.Password)); err != nil {
		return Result{Err: fmt.Sprintf("writing auth: %v", err), Latency: time.Since(start)}
	}

	events := make(chan readEvent, 8)
	go readLoop(conn, events)

	var (
		agg   aggregator
		meta  Meta
		st    = stateAuthSent
		cmdID = int32(fallbackCommandID)
	)

	finalize := func(errMsg string) Result {
		meta.PacketCount = agg.count
		hexes := agg.rawHex
		if tail := agg.pendingHex(); tail != "" {
			// Unparsed tail bytes belong in the trace too.
			hexes = append(hexes, tail)
		}
		meta.RawHex = strings.Join(hexes, "|")
		out := agg.text()
		return Result{
			OK:      out != "",
			Output:  out,
			Err:     errMsg,
			Latency: time.Since(start),
			Meta:    meta,
		}
	}

	idle := time.NewTimer(timeout)
	idle.Stop()
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return finalize(ctx.Err().Error())

		case <-idle.C:
			st = stateIdle
			return finalize("")

		case ev := <-events:
			if ev.err != nil {
				if ne, ok := ev.err.(net.Error); ok && ne.Timeout() {
					return finalize("timeout")
				}
				// EOF and resets finalize with whatever was collected;
				// treat as an error only before auth completed.
				if st == stateAuthSent {
					return finalize(ev.err.Error())
				}
				return finalize("")
			}

			for _, f := range agg.push(ev.data) {
				if f.Type == protocol.TypeCommand && !meta.AuthSuccess {
					if f.ID == protocol.AuthFailedID {
						st = stateFailed
						log.Printf("[rcon] auth rejected by %s", target.Addr())
						return finalize(ErrAuthFailed)
					}
					// Treat any non-sentinel ack id as success and reuse
					// it for the command frame; some servers ack with a
					// server-chosen id instead of echoing ours.
					meta.AuthSuccess = true
					st = stateAuthenticated
					if f.ID != 0 {
						cmdID = f.ID
					}
					if _, err := conn.Write(protocol.Encode(cmdID, protocol.TypeCommand, command)); err != nil {
						return finalize(fmt.Sprintf("writing command: %v", err))
					}
					meta.CommandSent = true
					if !opts.SimpleHandshake {
						// Trailing empty probe; its echo marks the tail of
						// multi-frame responses on stock Source servers.
						conn.Write(protocol.Encode(cmdID, protocol.TypeResponse, ""))
					}
					st = stateAwaitingResponse
					continue
				}
				agg.collect(f)
			}

			// Re-arm the silence window after every chunk; the hard
			// socket deadline still bounds the whole exchange.
			if st == stateAwaitingResponse || st == stateAuthenticated {
				idle.Reset(idleWindow)
			}
		}
	}
}

// readLoop feeds raw chunks from the socket into the control loop. It owns
// nothing and exits on the first read error.
func readLoop(conn net.Conn, events chan<- readEvent) {
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			events <- readEvent{data: chunk}
		}
		if err != nil {
			events <- readEvent{err: err}
			return
		}
	}
}
