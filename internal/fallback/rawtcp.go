package fallback

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/squadops/squadmin/internal/rcon"
)

// rawTCP writes the command as plain newline-terminated text and collects
// whatever comes back. Some server builds answer plain-text status queries
// on the RCON port with a JSON blob, which is what the common Windows
// rcon.exe client relies on.
type rawTCP struct {
	name    string
	timeout time.Duration
}

func (s rawTCP) Name() string { return s.name }

func (s rawTCP) Try(ctx context.Context, target rcon.Target, command string) rcon.Result {
	start := time.Now()
	res := rcon.Result{}

	dialer := net.Dialer{Timeout: s.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", target.Addr())
	if err != nil {
		res.Err = err.Error()
		res.Latency = time.Since(start)
		return res
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(s.timeout))

	// CRLF termination is the most widely accepted form.
	if _, err := conn.Write([]byte(command + "\r\n")); err != nil {
		res.Err = err.Error()
		res.Latency = time.Since(start)
		return res
	}

	var sb strings.Builder
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			sb.Write(buf[:n])
			// Finish early once a balanced JSON object is on hand.
			t := strings.TrimSpace(sb.String())
			if strings.HasPrefix(t, "{") && strings.HasSuffix(t, "}") {
				break
			}
		}
		if err != nil {
			// EOF, reset, and deadline all finalize with whatever was
			// collected; raw TCP has no failure mode past connect.
			break
		}
	}

	out := strings.TrimSpace(sb.String())
	res.Output = out
	res.OK = out != ""
	res.Latency = time.Since(start)
	return res
}
