package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/squadops/squadmin/internal/bot"
	"github.com/squadops/squadmin/internal/config"
	"github.com/squadops/squadmin/internal/fallback"
	"github.com/squadops/squadmin/internal/rcon"
	"github.com/squadops/squadmin/internal/secret"
	"github.com/squadops/squadmin/internal/status"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	call := flag.String("call", "", "execute one RCON call described by a JSON object and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("squadmin %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	if *call != "" {
		if err := runCall(*call); err != nil {
			log.Fatalf("Call failed: %v", err)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	b, err := bot.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	if err := b.Start(); err != nil {
		log.Fatalf("Failed to start bot: %v", err)
	}

	log.Printf("Squadmin %s is running. Press Ctrl+C to stop.", version)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down...")
	if err := b.Stop(); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
}

// runCall executes one call described by a loosely-typed JSON payload:
//
//	{"host": "...", "port": 27165, "password": "...",
//	 "command": "ShowServerInfo", "timeoutMs": 2500}
//
// The password may instead live under any of the historical auth field
// names, as a ciphertext under auth.cipher, or as a debug-only
// testPassword. Missing host or a non-positive port is the one error
// class surfaced to the caller; everything transport-level degrades into
// the printed status object.
func runCall(payload string) error {
	var m map[string]any
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return fmt.Errorf("parsing call payload: %w", err)
	}

	host, _ := m["host"].(string)
	port := intField(m, "port")
	if host == "" {
		return fmt.Errorf("host is required")
	}
	if port <= 0 {
		return fmt.Errorf("port must be positive, got %d", port)
	}

	command, _ := m["command"].(string)
	if command == "" {
		command = fallback.StatusCommand
	}
	timeout := rcon.DefaultTimeout
	if ms := intField(m, "timeoutMs"); ms > 0 {
		timeout = time.Duration(ms) * time.Millisecond
	}

	rawKey := os.Getenv("SQUADMIN_SECRET_KEY")
	if rawKey == "" {
		rawKey = os.Getenv("SECRET_KEY")
	}
	resolver := secret.NewResolver(rawKey)

	rec := secret.Record{Candidates: secret.Gather(m)}
	if auth, ok := m["auth"].(map[string]any); ok {
		if c, ok := auth["cipher"].(string); ok {
			rec.Cipher = c
		}
	}
	if tp, ok := m["testPassword"].(string); ok {
		rec.TestPassword = tp
	}
	password, sdbg := resolver.Resolve(rec)

	target := rcon.Target{Host: host, Port: port, Password: password}
	runner := fallback.NewRunner(timeout)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	out := runner.RunCommand(ctx, target, command)

	debug := map[string]any{
		"secret":   sdbg,
		"trace":    out.Trace,
		"strategy": out.Strategy,
	}
	if out.Err != "" {
		debug["rconError"] = out.Err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if command == fallback.StatusCommand {
		st := status.Normalize(status.Parse(out.Output), out.Reachable, out.Latency.Milliseconds(), debug)
		return enc.Encode(map[string]any{"ok": true, "status": st})
	}

	return enc.Encode(map[string]any{
		"ok":        out.OK,
		"output":    out.Output,
		"error":     nullable(out.Err),
		"latencyMs": out.Latency.Milliseconds(),
		"meta": map[string]any{
			"authSuccess": out.Meta.AuthSuccess,
			"packetCount": out.Meta.PacketCount,
			"rawHex":      out.Meta.RawHex,
			"debug":       debug,
		},
	})
}

// intField reads a numeric payload field that may arrive as a JSON number
// or a string.
func intField(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(v))
		return n
	}
	return 0
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
