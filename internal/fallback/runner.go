package fallback

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/squadops/squadmin/internal/rcon"
)

// StatusCommand is the default query issued when the caller wants server
// state rather than a specific admin verb.
const StatusCommand = "ShowServerInfo"

// Default stage budgets. The host environment usually imposes its own
// deadline of a few seconds, so the fast stages stay well under it.
const (
	rawQuickTimeout = 1500 * time.Millisecond
	rawLongTimeout  = 2500 * time.Millisecond
	probeTimeout    = 3 * time.Second

	// settle gives slow servers a moment between stages before the next
	// strategy opens a fresh connection.
	settle = 200 * time.Millisecond
)

// Runner evaluates strategies in priority order, first usable text wins.
type Runner struct {
	strategies   []Strategy
	probeTimeout time.Duration
	settle       time.Duration
}

// NewRunner builds the production chain:
//
//  1. quick raw-TCP plain text (balanced-JSON early exit)
//  2. native binary protocol client
//  3. native client with the challenge probe disabled
//  4. gorcon library client (independent second implementation)
//  5. long raw-TCP plain text
//
// followed by a bare reachability probe when everything comes up empty.
func NewRunner(timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = rcon.DefaultTimeout
	}
	return &Runner{
		strategies: []Strategy{
			rawTCP{name: "raw-quick", timeout: rawQuickTimeout},
			native{name: "native", opts: rcon.Options{Timeout: timeout}},
			native{name: "native-simple", opts: rcon.Options{Timeout: timeout, SimpleHandshake: true}},
			library{timeout: timeout},
			rawTCP{name: "raw-long", timeout: rawLongTimeout},
		},
		probeTimeout: probeTimeout,
		settle:       settle,
	}
}

// NewRunnerWith builds a runner over an explicit strategy list. Used by
// tests and by callers that need a trimmed chain.
func NewRunnerWith(strategies []Strategy, probeTimeout, settle time.Duration) *Runner {
	return &Runner{strategies: strategies, probeTimeout: probeTimeout, settle: settle}
}

// Run walks the chain once for the given command. Every stage failure is
// recorded in the trace; only full exhaustion, probe included, yields an
// unreachable outcome. Run never returns an error.
func (r *Runner) Run(ctx context.Context, target rcon.Target, command string) Outcome {
	out := Outcome{}

	for i, s := range r.strategies {
		if ctx.Err() != nil {
			break
		}
		if i > 0 && r.settle > 0 {
			time.Sleep(r.settle)
		}
		res := s.Try(ctx, target, command)
		att := Attempt{
			Strategy:  s.Name(),
			Attempted: true,
			Err:       res.Err,
			LatencyMs: res.Latency.Milliseconds(),
		}
		out.Trace = append(out.Trace, att)
		if res.Meta.AuthSuccess || usable(res) {
			out.Reachable = true
		}
		if usable(res) {
			log.Printf("[fallback] %s returned %d bytes for %q", s.Name(), len(res.Output), command)
			out.Result = res
			out.Strategy = s.Name()
			return out
		}
		// Remember the most informative failure so exhaustion still
		// reports something useful.
		if res.Err != "" && out.Err == "" {
			out.Err = res.Err
		}
	}

	probe := Probe(ctx, target, r.probeTimeout)
	out.Trace = append(out.Trace, Attempt{
		Strategy:  "probe",
		Attempted: true,
		Err:       probe.Err,
		LatencyMs: probe.Latency.Milliseconds(),
	})
	if probe.Reachable {
		out.Reachable = true
		out.Latency = probe.Latency
	}
	return out
}

// listing commands produce per-player or per-squad dumps; servers often
// answer the first request after connect with nothing at all.
func isListing(command string) bool {
	c := strings.TrimSpace(command)
	return strings.EqualFold(c, "ListPlayers") || strings.EqualFold(c, "ListSquads")
}

// emptyButClean reports a run that transported fine yet carried no text.
func emptyButClean(out Outcome) bool {
	return !out.OK && out.Reachable && strings.TrimSpace(out.Output) == ""
}

// RunCommand is Run plus the listing-command heuristics: one plain retry
// for an empty listing, ListSquads falling back to ListPlayers, and a
// final attempt with a trailing newline appended.
func (r *Runner) RunCommand(ctx context.Context, target rcon.Target, command string) Outcome {
	out := r.Run(ctx, target, command)
	if !isListing(command) || !emptyButClean(out) {
		return out
	}

	log.Printf("[fallback] empty output for %q, retrying once", command)
	if retry := r.Run(ctx, target, command); usable(retry.Result) {
		retry.Trace = append(out.Trace, retry.Trace...)
		return retry
	}

	effective := command
	if strings.EqualFold(strings.TrimSpace(command), "ListSquads") {
		log.Printf("[fallback] ListSquads empty, substituting ListPlayers")
		if sub := r.Run(ctx, target, "ListPlayers"); usable(sub.Result) {
			sub.Trace = append(out.Trace, sub.Trace...)
			return sub
		}
		effective = "ListPlayers"
	}

	log.Printf("[fallback] %q still empty, retrying with trailing newline", effective)
	if nl := r.Run(ctx, target, effective+"\n"); usable(nl.Result) {
		nl.Trace = append(out.Trace, nl.Trace...)
		return nl
	}

	return out
}
