package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/squadops/squadmin/internal/config"
	"github.com/squadops/squadmin/internal/fallback"
	"github.com/squadops/squadmin/internal/rcon"
)

// DiagHandler handles /squad diag: a raw connect-and-observe lifecycle
// trace for servers that keep coming up empty through the chain.
type DiagHandler struct {
	cfg *config.Config
}

func NewDiagHandler(cfg *config.Config) *DiagHandler {
	return &DiagHandler{cfg: cfg}
}

// Subcommand returns the "diag" subcommand option for the /squad command.
func (h *DiagHandler) Subcommand() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionSubCommand,
		Name:        "diag",
		Description: "Trace raw TCP behavior of a server's RCON port",
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

// Handle executes /squad diag.
func (h *DiagHandler) Handle(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	respondDeferred(s, i, true)

	key := sub.Options[0].StringValue()
	srv, ok := h.cfg.Servers[key]
	if !ok {
		followUpError(s, i, fmt.Sprintf("unknown server: %s", key), nil)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	target := rcon.Target{Host: srv.Host, Port: srv.Port()}
	events := fallback.Diagnose(ctx, target, 5*time.Second)

	var sb strings.Builder
	start := events[0].At
	for _, ev := range events {
		sb.WriteString(fmt.Sprintf("+%-6s %s", ev.At.Sub(start).Round(time.Millisecond), ev.Event))
		if ev.Len > 0 {
			sb.WriteString(fmt.Sprintf(" (%d bytes)", ev.Len))
		}
		if ev.Note != "" {
			sb.WriteString(" " + ev.Note)
		}
		sb.WriteString("\n")
	}

	followUp(s, i, fmt.Sprintf("**Diagnostic** %s\n```\n%s\n```",
		h.cfg.DisplayName(key), truncate(sb.String(), maxMessageLen)))
}
