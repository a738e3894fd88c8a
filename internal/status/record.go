package status

import (
	"time"
)

// Placeholder values. Downstream consumers render these directly and never
// branch on missing fields.
const (
	Unknown     = "未知"
	Placeholder = "-"
)

// Status is the canonical normalized server state handed to callers.
type Status struct {
	ServerName      string         `json:"serverName"`
	PlayersDisplay  string         `json:"playersDisplay"`
	MaxPlayers      int            `json:"maxPlayers"`
	MapName         string         `json:"mapName"`
	Faction1        string         `json:"faction1"`
	Faction2        string         `json:"faction2"`
	DurationDisplay string         `json:"durationDisplay"`
	Reachable       bool           `json:"reachable"`
	LatencyMs       int64          `json:"latencyMs"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	Raw             string         `json:"raw"`
	Debug           map[string]any `json:"debug,omitempty"`
}

// Normalize merges a parse result with transport facts into the canonical
// record, filling every gap with its placeholder.
func Normalize(p Parsed, reachable bool, latencyMs int64, debug map[string]any) Status {
	s := Status{
		ServerName:      Unknown,
		PlayersDisplay:  Placeholder,
		MapName:         Unknown,
		Faction1:        Unknown,
		Faction2:        Unknown,
		DurationDisplay: Placeholder,
		Reachable:       reachable,
		LatencyMs:       latencyMs,
		UpdatedAt:       time.Now(),
		Raw:             p.Raw,
		Debug:           debug,
	}
	if p.ServerName != "" {
		s.ServerName = p.ServerName
	}
	if p.PlayersDisplay != "" {
		s.PlayersDisplay = p.PlayersDisplay
	}
	if p.MaxPlayers != nil {
		s.MaxPlayers = *p.MaxPlayers
	}
	if p.Map != "" {
		s.MapName = p.Map
	}
	if p.Faction1 != "" {
		s.Faction1 = p.Faction1
	}
	if p.Faction2 != "" {
		s.Faction2 = p.Faction2
	}
	if p.DurationDisplay != "" {
		s.DurationDisplay = p.DurationDisplay
	}
	// A latency parsed out of the payload is more honest than the
	// transport round trip when the server reports one.
	if p.LatencyMs != nil {
		s.LatencyMs = int64(*p.LatencyMs)
	}
	return s
}

// Fresh reports whether a previously stored status is recent enough to
// serve without a live probe.
func (s Status) Fresh(maxAge time.Duration) bool {
	return !s.UpdatedAt.IsZero() && time.Since(s.UpdatedAt) < maxAge
}
