// Package bot wires the Discord surface: one /squad command whose
// subcommands front the RCON fallback chain, the A2S querier, and the
// diagnostics.
package bot

import (
	"log"

	"github.com/bwmarrin/discordgo"

	"github.com/squadops/squadmin/internal/audit"
	"github.com/squadops/squadmin/internal/command"
	"github.com/squadops/squadmin/internal/config"
	"github.com/squadops/squadmin/internal/fallback"
	"github.com/squadops/squadmin/internal/query"
	"github.com/squadops/squadmin/internal/secret"
)

// Bot is the top-level Discord bot that owns the session and command
// handlers.
type Bot struct {
	cfg     *config.Config
	session *discordgo.Session

	statusHandler  *command.StatusHandler
	rconHandler    *command.RCONHandler
	playersHandler *command.PlayersHandler
	diagHandler    *command.DiagHandler

	registeredCommand *discordgo.ApplicationCommand
}

// New creates a new Bot instance with all dependencies wired up.
func New(cfg *config.Config) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return nil, err
	}

	runner := fallback.NewRunner(cfg.RCONTimeout())
	resolver := secret.NewResolver(cfg.SecretKey)
	querier := query.NewA2SQuerier(cfg.QueryTimeout())

	var sink audit.Sink = audit.Discard{}
	if cfg.AuditLog != "" {
		sink = audit.NewFileSink(cfg.AuditLog)
	}

	return &Bot{
		cfg:            cfg,
		session:        session,
		statusHandler:  command.NewStatusHandler(cfg, runner, resolver),
		rconHandler:    command.NewRCONHandler(cfg, runner, resolver, sink),
		playersHandler: command.NewPlayersHandler(cfg, querier),
		diagHandler:    command.NewDiagHandler(cfg),
	}, nil
}

// Start opens the Discord websocket connection and registers the /squad
// command.
func (b *Bot) Start() error {
	b.session.AddHandler(b.handleInteraction)

	if err := b.session.Open(); err != nil {
		return err
	}

	cmd := b.buildCommand()
	registered, err := b.session.ApplicationCommandCreate(
		b.session.State.User.ID,
		b.cfg.Discord.GuildID,
		cmd,
	)
	if err != nil {
		return err
	}
	b.registeredCommand = registered
	log.Printf("Registered command: /%s", cmd.Name)

	return nil
}

// Stop deregisters the slash command and closes the Discord session.
func (b *Bot) Stop() error {
	if b.registeredCommand != nil {
		if err := b.session.ApplicationCommandDelete(
			b.session.State.User.ID,
			b.cfg.Discord.GuildID,
			b.registeredCommand.ID,
		); err != nil {
			log.Printf("Failed to deregister command: %v", err)
		}
	}
	return b.session.Close()
}

// buildCommand constructs the single /squad command with all subcommands.
func (b *Bot) buildCommand() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "squad",
		Description: "Squad server administration over RCON",
		Options: []*discordgo.ApplicationCommandOption{
			b.statusHandler.Subcommand(),
			b.rconHandler.Subcommand(),
			b.playersHandler.Subcommand(),
			b.diagHandler.Subcommand(),
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "ping",
				Description: "Check if the bot is alive",
			},
		},
	}
}

func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	if i.ApplicationCommandData().Name != "squad" {
		return
	}

	sub := i.ApplicationCommandData().Options[0]

	switch sub.Name {
	case "status":
		b.statusHandler.Handle(s, i, sub)
	case "rcon":
		b.rconHandler.Handle(s, i, sub)
	case "players":
		b.playersHandler.Handle(s, i, sub)
	case "diag":
		b.diagHandler.Handle(s, i, sub)
	case "ping":
		s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{Content: "Pong!"},
		})
	}
}
