package rcon

import (
	"context"
	"time"

	gorcon "github.com/gorcon/rcon"
)

// LibraryExecute runs the same auth-then-command exchange through
// github.com/gorcon/rcon. It is a deliberately redundant second
// implementation of the wire protocol with independent internal plumbing,
// used by the fallback chain when the native client yields nothing.
//
// Each call creates a fresh connection — RCON connections are cheap and
// game servers have limited connection slots.
func LibraryExecute(ctx context.Context, target Target, command string, timeout time.Duration) Result {
	start := time.Now()
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	type outcome struct {
		text string
		err  error
	}
	ch := make(chan outcome, 1)
	go func() {
		conn, err := gorcon.Dial(target.Addr(), target.Password, gorcon.SetDeadline(timeout))
		if err != nil {
			ch <- outcome{err: err}
			return
		}
		defer conn.Close()
		text, err := conn.Execute(command)
		ch <- outcome{text: text, err: err}
	}()

	var res outcome
	select {
	case <-ctx.Done():
		res = outcome{err: ctx.Err()}
	case res = <-ch:
	}

	r := Result{Latency: time.Since(start)}
	if res.err != nil {
		r.Err = res.err.Error()
		return r
	}
	r.Meta.AuthSuccess = true
	r.Meta.CommandSent = true
	r.Output = res.text
	r.OK = len(res.text) > 0
	return r
}
