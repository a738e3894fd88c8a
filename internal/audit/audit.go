// Package audit parses admin command strings into structured records and
// persists them through a pluggable sink. The grammar is
//
//	Admin<Verb>[ById] <target> [<duration>] <reason...>
//
// with the payload shape depending on the verb.
package audit

import (
	"context"
	"encoding/json"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"
)

var (
	commandRe = regexp.MustCompile(`(?i)^(Admin(?:Ban|Kick|Warn|ForceTeamChange|DemoteCommander)(?:ById)?)\s*(.*)$`)
	steam64Re = regexp.MustCompile(`\d{17,20}`)
)

// Action is the structured form of one admin command.
type Action struct {
	Action   string `json:"action"`   // Ban, Kick, Warn, ForceTeamChange, DemoteCommander
	ByID     bool   `json:"byId"`     // the ById command variant was used
	Target   string `json:"target"`   // name or id token as typed
	Target64 string `json:"target64"` // extracted 17–20 digit Steam identifier, if any
	Duration string `json:"duration"` // bans only
	Reason   string `json:"reason"`
	Command  string `json:"command"` // the raw command string
}

// ParseCommand recognizes an admin command string. The second return is
// false for anything that is not an admin verb.
func ParseCommand(command string) (Action, bool) {
	m := commandRe.FindStringSubmatch(strings.TrimSpace(command))
	if m == nil {
		return Action{}, false
	}
	verb := m[1]
	payload := strings.TrimSpace(m[2])

	act := Action{Command: command}
	act.ByID = strings.HasSuffix(strings.ToLower(verb), "byid")
	name := verb[len("Admin"):]
	if act.ByID {
		name = name[:len(name)-len("ById")]
	}
	act.Action = canonicalVerb(name)

	parts := strings.Fields(payload)
	next := func() string {
		if len(parts) == 0 {
			return ""
		}
		head := parts[0]
		parts = parts[1:]
		return head
	}

	switch strings.ToLower(act.Action) {
	case "ban":
		act.Target = next()
		act.Duration = next()
		if act.Duration == "" {
			act.Duration = "0"
		}
		act.Reason = strings.Join(parts, " ")
	case "kick", "warn":
		act.Target = next()
		act.Reason = strings.Join(parts, " ")
	case "forceteamchange", "demotecommander":
		act.Target = next()
	default:
		act.Target = payload
	}

	act.Target64 = ExtractSteam64(act.Target, payload)
	return act, true
}

// canonicalVerb fixes the casing of a verb matched case-insensitively.
func canonicalVerb(name string) string {
	for _, v := range []string{"Ban", "Kick", "Warn", "ForceTeamChange", "DemoteCommander"} {
		if strings.EqualFold(name, v) {
			return v
		}
	}
	return name
}

// ExtractSteam64 returns the first 17–20 digit run found in any of the
// given values, scanning in order.
func ExtractSteam64(values ...string) string {
	for _, v := range values {
		if m := steam64Re.FindString(v); m != "" {
			return m
		}
	}
	return ""
}

// Record is one persisted audit entry: the parsed action plus operator
// identity and outcome.
type Record struct {
	Action

	ServerKey       string    `json:"serverKey,omitempty"`
	Host            string    `json:"host,omitempty"`
	Port            int       `json:"port,omitempty"`
	Operator        string    `json:"operator,omitempty"`
	OperatorID      string    `json:"operatorId,omitempty"`
	OperatorSteam64 string    `json:"operatorSteam64,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
	ResultOK        bool      `json:"resultOk"`
}

// Sink receives audit records. Implementations must tolerate being called
// from concurrent command handlers.
type Sink interface {
	Write(ctx context.Context, rec Record) error
}

// FileSink appends records as JSON lines. Writes are serialized; a failed
// write is the caller's problem to log, not to fail the command over.
type FileSink struct {
	mu   sync.Mutex
	path string
}

// NewFileSink creates a sink appending to path. The file is created on
// first write.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

func (s *FileSink) Write(ctx context.Context, rec Record) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return err
	}
	return nil
}

// Discard is a Sink that drops everything, for callers without an audit
// log configured.
type Discard struct{}

func (Discard) Write(context.Context, Record) error { return nil }
