package fallback

import (
	"context"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/squadops/squadmin/internal/rcon"
)

// mockStrategy returns canned results and records the commands it saw.
type mockStrategy struct {
	name string
	fn   func(command string) rcon.Result

	mu       sync.Mutex
	commands []string
}

func (m *mockStrategy) Name() string { return m.name }

func (m *mockStrategy) Try(ctx context.Context, target rcon.Target, command string) rcon.Result {
	m.mu.Lock()
	m.commands = append(m.commands, command)
	m.mu.Unlock()
	return m.fn(command)
}

func (m *mockStrategy) seen() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.commands...)
}

func failing(err string) func(string) rcon.Result {
	return func(string) rcon.Result { return rcon.Result{Err: err} }
}

func succeeding(output string) func(string) rcon.Result {
	return func(string) rcon.Result {
		return rcon.Result{OK: true, Output: output, Meta: rcon.Meta{AuthSuccess: true}}
	}
}

// deadTarget points at a port nothing listens on.
func deadTarget(t *testing.T) rcon.Target {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	ln.Close()
	return rcon.Target{Host: host, Port: port}
}

// liveTarget points at a listener that accepts and ignores connections.
func liveTarget(t *testing.T) rcon.Target {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				time.Sleep(time.Second)
				conn.Close()
			}()
		}
	}()
	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return rcon.Target{Host: host, Port: port}
}

func TestRunner_FirstUsableWins(t *testing.T) {
	first := &mockStrategy{name: "first", fn: failing("boom")}
	second := &mockStrategy{name: "second", fn: succeeding("payload")}
	third := &mockStrategy{name: "third", fn: succeeding("never reached")}

	r := NewRunnerWith([]Strategy{first, second, third}, 500*time.Millisecond, 0)
	out := r.Run(context.Background(), deadTarget(t), "ShowServerInfo")

	if !out.OK || out.Output != "payload" {
		t.Fatalf("outcome = %+v, want payload from second", out.Result)
	}
	if out.Strategy != "second" {
		t.Errorf("strategy = %q, want %q", out.Strategy, "second")
	}
	if len(third.seen()) != 0 {
		t.Error("third strategy was tried after a success")
	}
	if len(out.Trace) != 2 {
		t.Fatalf("trace length = %d, want 2", len(out.Trace))
	}
	if out.Trace[0].Err != "boom" || !out.Trace[0].Attempted {
		t.Errorf("trace[0] = %+v, want attempted with error", out.Trace[0])
	}
}

func TestRunner_ExhaustionIsNotAnError(t *testing.T) {
	a := &mockStrategy{name: "a", fn: failing("refused")}
	b := &mockStrategy{name: "b", fn: failing("timeout")}

	r := NewRunnerWith([]Strategy{a, b}, 500*time.Millisecond, 0)
	out := r.Run(context.Background(), deadTarget(t), "ShowServerInfo")

	if out.OK {
		t.Error("OK = true, want false")
	}
	if out.Reachable {
		t.Error("Reachable = true, want false — probe target is dead")
	}
	// strategies plus the probe
	if len(out.Trace) != 3 {
		t.Fatalf("trace length = %d, want 3", len(out.Trace))
	}
	if out.Trace[2].Strategy != "probe" || out.Trace[2].Err == "" {
		t.Errorf("trace[2] = %+v, want failed probe", out.Trace[2])
	}
	if out.Err == "" {
		t.Error("Err is empty, want the first recorded failure")
	}
}

func TestRunner_ProbeReportsReachability(t *testing.T) {
	a := &mockStrategy{name: "a", fn: failing("no data")}

	r := NewRunnerWith([]Strategy{a}, time.Second, 0)
	out := r.Run(context.Background(), liveTarget(t), "ShowServerInfo")

	if out.OK {
		t.Error("OK = true, want false")
	}
	if !out.Reachable {
		t.Error("Reachable = false, want true — the port accepts connections")
	}
}

// emptyOK simulates a transport that authenticated fine but carried no
// text, the trigger condition for the listing heuristics.
func emptyOK() func(string) rcon.Result {
	return func(string) rcon.Result {
		return rcon.Result{Meta: rcon.Meta{AuthSuccess: true, CommandSent: true}}
	}
}

func TestRunCommand_ListingRetry(t *testing.T) {
	s := &mockStrategy{name: "s", fn: emptyOK()}
	r := NewRunnerWith([]Strategy{s}, 500*time.Millisecond, 0)

	r.RunCommand(context.Background(), deadTarget(t), "ListPlayers")

	// plain run, one unmodified retry, then the trailing-newline attempt
	want := []string{"ListPlayers", "ListPlayers", "ListPlayers\n"}
	got := s.seen()
	if len(got) != len(want) {
		t.Fatalf("commands = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("command[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRunCommand_SquadsFallsBackToPlayers(t *testing.T) {
	s := &mockStrategy{name: "s", fn: func(command string) rcon.Result {
		if command == "ListPlayers" {
			return rcon.Result{OK: true, Output: "1. Soldier", Meta: rcon.Meta{AuthSuccess: true}}
		}
		return rcon.Result{Meta: rcon.Meta{AuthSuccess: true, CommandSent: true}}
	}}
	r := NewRunnerWith([]Strategy{s}, 500*time.Millisecond, 0)

	out := r.RunCommand(context.Background(), deadTarget(t), "ListSquads")

	if !out.OK || out.Output != "1. Soldier" {
		t.Fatalf("outcome = %+v, want ListPlayers output", out.Result)
	}
	got := s.seen()
	if got[len(got)-1] != "ListPlayers" {
		t.Errorf("last command = %q, want ListPlayers", got[len(got)-1])
	}
}

func TestRunCommand_NonListingNoRetry(t *testing.T) {
	s := &mockStrategy{name: "s", fn: emptyOK()}
	r := NewRunnerWith([]Strategy{s}, 500*time.Millisecond, 0)

	r.RunCommand(context.Background(), deadTarget(t), "AdminBroadcast hello")

	if got := s.seen(); len(got) != 1 {
		t.Errorf("commands = %v, want a single attempt", got)
	}
}

func TestRawTCP_BalancedJSONEarlyExit(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 256)
		conn.Read(buf)
		conn.Write([]byte(`{"ServerName_s":"Alpha"}`))
		// hold the connection open; the client must finish on its own
		time.Sleep(2 * time.Second)
	}()

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)

	s := rawTCP{name: "raw-quick", timeout: 1500 * time.Millisecond}
	start := time.Now()
	res := s.Try(context.Background(), rcon.Target{Host: host, Port: port}, "ShowServerInfo")

	if !res.OK || res.Output != `{"ServerName_s":"Alpha"}` {
		t.Fatalf("result = %+v, want the JSON blob", res)
	}
	if time.Since(start) > time.Second {
		t.Error("did not exit early on balanced JSON")
	}
}

func TestProbe(t *testing.T) {
	live := liveTarget(t)
	res := Probe(context.Background(), live, time.Second)
	if !res.Reachable {
		t.Errorf("probe of live port: reachable = false, err = %q", res.Err)
	}

	dead := deadTarget(t)
	res = Probe(context.Background(), dead, time.Second)
	if res.Reachable {
		t.Error("probe of dead port: reachable = true")
	}
	if res.Err == "" {
		t.Error("probe of dead port: err is empty")
	}
}

func TestDiagnose_RecordsLifecycle(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		conn.Write([]byte("unsolicited banner"))
		conn.Close()
	}()

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)

	events := Diagnose(context.Background(), rcon.Target{Host: host, Port: port}, time.Second)

	var seen []string
	for _, ev := range events {
		seen = append(seen, ev.Event)
	}
	if len(seen) < 3 || seen[0] != "dial" || seen[1] != "connect" {
		t.Fatalf("events = %v, want dial, connect, ...", seen)
	}
	last := events[len(events)-1]
	if last.Event != "close" && last.Event != "timeout" {
		t.Errorf("final event = %q, want close or timeout", last.Event)
	}
}
