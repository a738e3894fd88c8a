package command

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/squadops/squadmin/internal/config"
	"github.com/squadops/squadmin/internal/fallback"
	"github.com/squadops/squadmin/internal/secret"
	"github.com/squadops/squadmin/internal/status"
)

// cacheMaxAge is how long a previously fetched status is served without a
// fresh probe.
const cacheMaxAge = 10 * time.Second

// StatusHandler handles /squad status: the full fallback chain followed by
// payload normalization.
type StatusHandler struct {
	cfg      *config.Config
	runner   *fallback.Runner
	resolver *secret.Resolver

	mu    sync.Mutex
	cache map[string]status.Status
}

func NewStatusHandler(cfg *config.Config, runner *fallback.Runner, resolver *secret.Resolver) *StatusHandler {
	return &StatusHandler{
		cfg:      cfg,
		runner:   runner,
		resolver: resolver,
		cache:    make(map[string]status.Status),
	}
}

// Subcommand returns the "status" subcommand option for the /squad command.
func (h *StatusHandler) Subcommand() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionSubCommand,
		Name:        "status",
		Description: "Query live server status over RCON",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "server",
				Description: "Target server",
				Required:    true,
				Choices:     serverChoices(h.cfg),
			},
		},
	}
}

// Check runs the chain for one server key and normalizes the outcome. It
// never returns an error; unreachable servers come back with
// reachable:false and the debug trace filled in.
func (h *StatusHandler) Check(ctx context.Context, key string) status.Status {
	h.mu.Lock()
	cached, ok := h.cache[key]
	h.mu.Unlock()
	if ok && cached.Fresh(cacheMaxAge) {
		return cached
	}

	target, sdbg, err := resolveTarget(h.cfg, h.resolver, key)
	if err != nil {
		return status.Normalize(status.Parsed{}, false, 0, map[string]any{"error": err.Error()})
	}

	out := h.runner.Run(ctx, target, fallback.StatusCommand)

	debug := map[string]any{
		"secret":   sdbg,
		"trace":    out.Trace,
		"strategy": out.Strategy,
	}
	if out.Err != "" {
		debug["rconError"] = out.Err
	}

	parsed := status.Parse(out.Output)
	st := status.Normalize(parsed, out.Reachable, out.Latency.Milliseconds(), debug)
	h.mu.Lock()
	h.cache[key] = st
	h.mu.Unlock()
	return st
}

// Handle executes /squad status.
func (h *StatusHandler) Handle(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	respondDeferred(s, i, false)

	key := sub.Options[0].StringValue()
	name := h.cfg.DisplayName(key)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	st := h.Check(ctx, key)

	color := 0x00ff00
	if !st.Reachable {
		color = 0xff0000
	}
	embed := &discordgo.MessageEmbed{
		Title: name,
		Color: color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Server", Value: st.ServerName, Inline: true},
			{Name: "Players", Value: st.PlayersDisplay, Inline: true},
			{Name: "Map", Value: st.MapName, Inline: true},
			{Name: "Factions", Value: fmt.Sprintf("%s vs %s", st.Faction1, st.Faction2), Inline: true},
			{Name: "Match time", Value: st.DurationDisplay, Inline: true},
			{Name: "Latency", Value: fmt.Sprintf("%dms", st.LatencyMs), Inline: true},
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if !st.Reachable {
		embed.Description = "Server unreachable — every strategy failed, including the TCP probe."
	}
	followUpEmbed(s, i, []*discordgo.MessageEmbed{embed})
}
