package command

import (
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"

	"github.com/squadops/squadmin/internal/config"
	"github.com/squadops/squadmin/internal/rcon"
	"github.com/squadops/squadmin/internal/secret"
)

const maxMessageLen = 1500

// resolveTarget builds the connection target for a configured server key,
// resolving the RCON password through the secret resolver.
func resolveTarget(cfg *config.Config, resolver *secret.Resolver, key string) (rcon.Target, secret.Debug, error) {
	srv, ok := cfg.Servers[key]
	if !ok {
		return rcon.Target{}, secret.Debug{}, fmt.Errorf("unknown server: %s", key)
	}
	password, dbg := resolver.Resolve(secret.Record{
		Cipher:     srv.RCONCipher,
		Candidates: []string{srv.RCONPassword},
	})
	return rcon.Target{Host: srv.Host, Port: srv.Port(), Password: password}, dbg, nil
}

// serverChoices builds the Discord option choices over the configured
// servers.
func serverChoices(cfg *config.Config) []*discordgo.ApplicationCommandOptionChoice {
	keys := cfg.ServerKeys()
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(keys))
	for _, key := range keys {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  cfg.DisplayName(key),
			Value: key,
		})
	}
	return choices
}

// respondDeferred sends a "thinking..." response that gives us up to 15
// minutes to reply.
func respondDeferred(s *discordgo.Session, i *discordgo.InteractionCreate, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: flags},
	}); err != nil {
		log.Printf("Error deferring response: %v", err)
	}
}

// followUp edits the deferred response with a text message.
func followUp(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content: &content,
	}); err != nil {
		log.Printf("Error editing response: %v", err)
	}
}

// followUpEmbed edits the deferred response with a rich embed.
func followUpEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embeds []*discordgo.MessageEmbed) {
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Embeds: &embeds,
	}); err != nil {
		log.Printf("Error editing response with embed: %v", err)
	}
}

// followUpError edits the deferred response with an error message.
func followUpError(s *discordgo.Session, i *discordgo.InteractionCreate, msg string, err error) {
	content := fmt.Sprintf("**Error:** %s", msg)
	if err != nil {
		content += fmt.Sprintf("\n```\n%s\n```", truncate(err.Error(), 500))
	}
	followUp(s, i, content)
}

// truncate shortens a string to maxLen, appending "... (truncated)" if needed.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "\n... (truncated)"
}
