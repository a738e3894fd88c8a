package command

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/squadops/squadmin/internal/audit"
	"github.com/squadops/squadmin/internal/config"
	"github.com/squadops/squadmin/internal/fallback"
	"github.com/squadops/squadmin/internal/secret"
)

// RCONHandler handles /squad rcon: arbitrary commands through the fallback
// chain, with admin verbs parsed into audit records.
type RCONHandler struct {
	cfg      *config.Config
	runner   *fallback.Runner
	resolver *secret.Resolver
	sink     audit.Sink
}

func NewRCONHandler(cfg *config.Config, runner *fallback.Runner, resolver *secret.Resolver, sink audit.Sink) *RCONHandler {
	if sink == nil {
		sink = audit.Discard{}
	}
	return &RCONHandler{cfg: cfg, runner: runner, resolver: resolver, sink: sink}
}

// Subcommand returns the "rcon" subcommand option for the /squad command.
func (h *RCONHandler) Subcommand() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionSubCommand,
		Name:        "rcon",
		Description: "Send an RCON command to a game server",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "server",
				Description: "Target server",
				Required:    true,
				Choices:     serverChoices(h.cfg),
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "command",
				Description: "RCON command to execute",
				Required:    true,
			},
		},
	}
}

// Handle executes /squad rcon.
func (h *RCONHandler) Handle(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	respondDeferred(s, i, true) // ephemeral — RCON output may be sensitive

	serverKey := sub.Options[0].StringValue()
	command := sub.Options[1].StringValue()

	target, _, err := resolveTarget(h.cfg, h.resolver, serverKey)
	if err != nil {
		followUpError(s, i, err.Error(), nil)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	out := h.runner.RunCommand(ctx, target, command)

	if act, ok := audit.ParseCommand(command); ok {
		rec := audit.Record{
			Action:    act,
			ServerKey: serverKey,
			Host:      target.Host,
			Port:      target.Port,
			Timestamp: time.Now(),
			ResultOK:  out.OK,
		}
		if i.Member != nil && i.Member.User != nil {
			rec.Operator = i.Member.User.Username
			rec.OperatorID = i.Member.User.ID
		}
		if rec.OperatorSteam64 == "" {
			rec.OperatorSteam64 = act.Target64
		}
		if err := h.sink.Write(ctx, rec); err != nil {
			log.Printf("[rcon] failed to record admin action: %v", err)
		}
	}

	name := h.cfg.DisplayName(serverKey)
	msg := fmt.Sprintf("**RCON** `%s` → %s", command, name)
	switch {
	case out.OK:
		msg += fmt.Sprintf("\n```\n%s\n```", truncate(out.Output, maxMessageLen))
	case out.Reachable:
		msg += "\n*No response*"
	default:
		msg += fmt.Sprintf("\n*Unreachable* (`%s`)", out.Err)
	}
	followUp(s, i, msg)
}
