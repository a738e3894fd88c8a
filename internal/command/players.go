package command

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/squadops/squadmin/internal/config"
	"github.com/squadops/squadmin/internal/query"
)

// PlayersHandler handles /squad players over the passwordless A2S port.
type PlayersHandler struct {
	cfg     *config.Config
	querier query.Querier
}

func NewPlayersHandler(cfg *config.Config, querier query.Querier) *PlayersHandler {
	return &PlayersHandler{cfg: cfg, querier: querier}
}

// Subcommand returns the "players" subcommand option for the /squad command.
func (h *PlayersHandler) Subcommand() *discordgo.ApplicationCommandOption {
	queryable := h.cfg.QueryableServers()
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(queryable))
	for key := range queryable {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  h.cfg.DisplayName(key),
			Value: key,
		})
	}
	sort.Slice(choices, func(i, j int) bool { return choices[i].Name < choices[j].Name })

	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionSubCommand,
		Name:        "players",
		Description: "Show player counts and connected players",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "server",
				Description: "Server to query",
				Required:    true,
				Choices:     choices,
			},
		},
	}
}

// Handle executes /squad players.
func (h *PlayersHandler) Handle(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	respondDeferred(s, i, false)

	key := sub.Options[0].StringValue()
	srv, ok := h.cfg.Servers[key]
	if !ok || srv.QueryAddr() == "" {
		followUpError(s, i, fmt.Sprintf("Server %s is not queryable", key), nil)
		return
	}

	name := h.cfg.DisplayName(key)

	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.QueryTimeout())
	defer cancel()

	info, err := h.querier.Info(ctx, srv.QueryAddr())
	if err != nil || !info.Online {
		followUpError(s, i, fmt.Sprintf("%s is offline or unreachable", name), err)
		return
	}

	players, _ := h.querier.Players(ctx, srv.QueryAddr())

	embed := &discordgo.MessageEmbed{
		Title: name,
		Color: 0x00ff00,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Map", Value: info.Map, Inline: true},
			{Name: "Players", Value: fmt.Sprintf("%d/%d", info.Players, info.MaxPlayers), Inline: true},
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if info.Bots > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Bots", Value: fmt.Sprintf("%d", info.Bots), Inline: true,
		})
	}

	if len(players) > 0 {
		sort.Slice(players, func(i, j int) bool { return players[i].Score > players[j].Score })
		var sb strings.Builder
		for idx, p := range players {
			if idx >= 25 {
				sb.WriteString(fmt.Sprintf("… and %d more\n", len(players)-idx))
				break
			}
			pname := p.Name
			if pname == "" {
				pname = "(connecting)"
			}
			sb.WriteString(fmt.Sprintf("%s — %d pts, %s\n", pname, p.Score, p.Duration.Round(time.Second)))
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Connected",
			Value: truncate(sb.String(), 1000),
		})
	}

	followUpEmbed(s, i, []*discordgo.MessageEmbed{embed})
}
