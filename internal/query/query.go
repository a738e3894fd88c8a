// Package query reads server state over the A2S query port. Squad exposes
// A2S alongside RCON; it needs no password, so it is the cheap path for
// player counts when no admin command is involved.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/rumblefrog/go-a2s"
)

// Info is the queried state of a game server.
type Info struct {
	Online     bool
	Name       string
	Map        string
	Players    int
	MaxPlayers int
	Bots       int
	Latency    time.Duration
}

// Player is a single connected player.
type Player struct {
	Name     string
	Score    int
	Duration time.Duration
}

// Querier reads game server state over A2S.
type Querier interface {
	Info(ctx context.Context, address string) (*Info, error)
	Players(ctx context.Context, address string) ([]Player, error)
}

// A2SQuerier implements Querier using the A2S protocol.
type A2SQuerier struct {
	timeout time.Duration
}

// NewA2SQuerier creates a querier with the specified per-request timeout.
func NewA2SQuerier(timeout time.Duration) *A2SQuerier {
	return &A2SQuerier{timeout: timeout}
}

func (q *A2SQuerier) Info(ctx context.Context, address string) (*Info, error) {
	client, err := a2s.NewClient(address, a2s.TimeoutOption(q.timeout))
	if err != nil {
		return &Info{}, fmt.Errorf("creating A2S client: %w", err)
	}
	defer client.Close()

	start := time.Now()
	info, err := client.QueryInfo()
	latency := time.Since(start)

	if err != nil {
		// An unanswered query is an offline server, not an error.
		return &Info{}, nil
	}

	return &Info{
		Online:     true,
		Name:       info.Name,
		Map:        info.Map,
		Players:    int(info.Players),
		MaxPlayers: int(info.MaxPlayers),
		Bots:       int(info.Bots),
		Latency:    latency,
	}, nil
}

func (q *A2SQuerier) Players(ctx context.Context, address string) ([]Player, error) {
	client, err := a2s.NewClient(address, a2s.TimeoutOption(q.timeout))
	if err != nil {
		return nil, fmt.Errorf("creating A2S client: %w", err)
	}
	defer client.Close()

	players, err := client.QueryPlayer()
	if err != nil {
		return nil, fmt.Errorf("querying players: %w", err)
	}

	result := make([]Player, 0, len(players.Players))
	for _, p := range players.Players {
		result = append(result, Player{
			Name:     p.Name,
			Score:    int(p.Score),
			Duration: time.Duration(p.Duration) * time.Second,
		})
	}
	return result, nil
}
