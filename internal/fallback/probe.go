package fallback

import (
	"context"
	"net"
	"time"

	"github.com/squadops/squadmin/internal/rcon"
)

// ProbeResult is the outcome of a bare reachability check.
type ProbeResult struct {
	Reachable bool
	Latency   time.Duration
	Err       string
}

// Probe opens and immediately closes a TCP connection to report whether
// the port answers at all, and how fast. No protocol bytes are exchanged.
func Probe(ctx context.Context, target rcon.Target, timeout time.Duration) ProbeResult {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	start := time.Now()
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", target.Addr())
	if err != nil {
		return ProbeResult{Err: err.Error()}
	}
	conn.Close()
	return ProbeResult{Reachable: true, Latency: time.Since(start)}
}

// DiagEvent is one observation in a connection lifecycle trace.
type DiagEvent struct {
	At    time.Time `json:"t"`
	Event string    `json:"ev"`
	Len   int       `json:"len,omitempty"`
	Note  string    `json:"note,omitempty"`
}

// Diagnose connects without speaking any protocol and records what the
// server does on its own: unsolicited data, an immediate close, or
// silence until the deadline. Useful when a server rejects the handshake
// and the chain keeps coming up empty.
func Diagnose(ctx context.Context, target rcon.Target, timeout time.Duration) []DiagEvent {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	events := []DiagEvent{{At: time.Now(), Event: "dial"}}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", target.Addr())
	if err != nil {
		events = append(events, DiagEvent{At: time.Now(), Event: "error", Note: err.Error()})
		return events
	}
	defer conn.Close()
	events = append(events, DiagEvent{At: time.Now(), Event: "connect"})
	conn.SetReadDeadline(time.Now().Add(timeout))

	buf := make([]byte, 2048)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			sample := string(buf[:n])
			if len(sample) > 200 {
				sample = sample[:200]
			}
			events = append(events, DiagEvent{At: time.Now(), Event: "data", Len: n, Note: sample})
		}
		if err != nil {
			ev := "close"
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				ev = "timeout"
			}
			events = append(events, DiagEvent{At: time.Now(), Event: ev})
			return events
		}
	}
}
