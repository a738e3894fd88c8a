// Package fallback tries an ordered list of transport strategies against a
// server until one yields usable command output, degrading to a bare
// reachability probe when none does. Stage failures are recorded, never
// propagated; the caller always gets a structured outcome.
package fallback

import (
	"context"
	"strings"
	"time"

	"github.com/squadops/squadmin/internal/rcon"
)

// Strategy is one way of obtaining command output from a server.
type Strategy interface {
	Name() string
	Try(ctx context.Context, target rcon.Target, command string) rcon.Result
}

// Attempt records one stage of the chain for the debug trace.
type Attempt struct {
	Strategy  string `json:"strategy"`
	Attempted bool   `json:"attempted"`
	Err       string `json:"err,omitempty"`
	LatencyMs int64  `json:"latencyMs"`
}

// Outcome is the uniform result of a full chain run.
type Outcome struct {
	rcon.Result

	// Strategy names the stage that produced the output, or "" when the
	// chain was exhausted.
	Strategy string

	// Reachable is true when any stage, including the bare probe,
	// established a TCP connection.
	Reachable bool

	// Trace holds one entry per attempted stage.
	Trace []Attempt
}

// native runs the in-house binary protocol client.
type native struct {
	name string
	opts rcon.Options
}

func (s native) Name() string { return s.name }

func (s native) Try(ctx context.Context, target rcon.Target, command string) rcon.Result {
	return rcon.Execute(ctx, target, command, s.opts)
}

// library runs the exchange through the gorcon implementation. For the
// default status command it additionally probes a few alternate verbs that
// other server builds respond to.
type library struct {
	timeout time.Duration
}

// alternateStatusCommands are tried in order when ShowServerInfo returns
// nothing over the library path.
var alternateStatusCommands = []string{"info", "serverinfo", "GetServerInfo", "status", "getstatus"}

func (s library) Name() string { return "gorcon" }

func (s library) Try(ctx context.Context, target rcon.Target, command string) rcon.Result {
	res := rcon.LibraryExecute(ctx, target, command, s.timeout)
	if command != StatusCommand || res.OK || res.Err != "" {
		return res
	}
	for _, alt := range alternateStatusCommands {
		if ctx.Err() != nil {
			break
		}
		altRes := rcon.LibraryExecute(ctx, target, alt, s.timeout)
		if altRes.OK {
			return altRes
		}
	}
	return res
}

// usable reports whether a stage produced text worth returning.
func usable(res rcon.Result) bool {
	return res.OK && strings.TrimSpace(res.Output) != ""
}
