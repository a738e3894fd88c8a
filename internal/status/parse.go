// Package status turns raw RCON payloads — a JSON blob from
// ShowServerInfo or free-form bilingual console text — into a canonical
// server status record. Parsing is pure and table-driven so it stays
// testable without a socket anywhere near it.
package status

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Parsed holds whatever fields one parse pass could extract. Nil pointers
// mean the payload never mentioned the value.
type Parsed struct {
	ServerName      string
	Players         *int
	PlayersExtra    *int
	MaxPlayers      *int
	MaxPlayersExtra *int
	PlayersDisplay  string
	Map             string
	Faction1        string
	Faction2        string
	DurationSec     *int
	DurationDisplay string
	LatencyMs       *int
	Raw             string
}

// synonyms maps each canonical field to the key spellings seen across
// server builds. First present key wins.
var synonyms = map[string][]string{
	"serverName": {"ServerName_s", "ServerName", "SERVERNAME_s"},
	"players":    {"PlayerCount_I", "PlayerCount", "PlayerCount_i"},
	"maxPlayers": {"MaxPlayers", "MaxPlayers_i", "MaxPlayers_I"},
	"reserve":    {"PlayerReserveCount_I", "PlayerReserveCount", "PlayerReserveCount_i"},
	"map":        {"MapName_s", "MapName"},
	"team1":      {"TeamOne_s", "TeamOne"},
	"team2":      {"TeamTwo_s", "TeamTwo"},
	"playtime":   {"PLAYTIME_I", "PlayTime_I", "PLAYTIME", "PlayTime"},
}

// Parse runs the JSON path when the payload looks like JSON, falling back
// to the regex text path otherwise. It never fails; an unrecognizable
// payload simply yields an empty Parsed with Raw set.
func Parse(response string) Parsed {
	p := Parsed{Raw: response}
	trimmed := strings.TrimSpace(response)
	if trimmed == "" {
		return p
	}
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		if parseJSON(trimmed, &p) {
			p.Raw = trimmed
			return p
		}
	}
	parseText(trimmed, &p)
	return p
}

func parseJSON(trimmed string, p *Parsed) bool {
	var decoded any
	if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
		return false
	}
	if arr, ok := decoded.([]any); ok {
		if len(arr) == 0 {
			return true
		}
		decoded = arr[0]
	}
	obj, ok := decoded.(map[string]any)
	if !ok {
		return true
	}

	get := func(field string) (any, bool) {
		for _, k := range synonyms[field] {
			if v, ok := obj[k]; ok && v != nil {
				return v, true
			}
		}
		return nil, false
	}
	getInt := func(field string) *int {
		v, ok := get(field)
		if !ok {
			return nil
		}
		switch t := v.(type) {
		case float64:
			n := int(t)
			return &n
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
				return &n
			}
		}
		return nil
	}
	getStr := func(field string) string {
		v, ok := get(field)
		if !ok {
			return ""
		}
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
		return ""
	}

	p.ServerName = getStr("serverName")
	p.Players = getInt("players")
	p.MaxPlayers = getInt("maxPlayers")
	p.PlayersExtra = getInt("reserve")
	if m := getStr("map"); m != "" {
		p.Map = strings.ReplaceAll(m, "_", " ")
	}
	if t1 := getStr("team1"); t1 != "" {
		p.Faction1 = strings.ReplaceAll(t1, "_", " ")
	}
	if t2 := getStr("team2"); t2 != "" {
		p.Faction2 = strings.ReplaceAll(t2, "_", " ")
	}
	if sec := getInt("playtime"); sec != nil {
		p.DurationSec = sec
		p.DurationDisplay = formatDuration(*sec)
	}
	p.PlayersDisplay = composePlayers(p)
	return true
}

// Text-path patterns. Bilingual: servers in the wild label fields in
// English or Chinese, with half- or full-width separators.
var (
	nameRe       = regexp.MustCompile(`(?i)(?:Server Name|Hostname|Name|名称|服务器名|主机名)\s*[:\-：]\s*([^|,\n]+)`)
	playersRe    = regexp.MustCompile(`(?i)(?:Players|Current Players|Online|Online Players|Players online|玩家|在线人数)\D*?(\d+)\s*(?:\(\s*(\d+)\s*\))?\s*(?:/|of)\s*(\d+)\s*(?:\(\s*(\d+)\s*\))?`)
	anyPairRe    = regexp.MustCompile(`(\d+)\s*(?:/|of)\s*(\d+)`)
	mapRe        = regexp.MustCompile(`(?i)(?:Map Name|Current Map|Map|地图)\s*[:\-：]\s*([^|;,]+)`)
	mapLooseRe   = regexp.MustCompile(`(?i)Map\s*[:\-：]?\s*([A-Za-z0-9_\-\x{4e00}-\x{9fff}]+)`)
	factionRe    = regexp.MustCompile(`(?i)(?:Factions|Teams|Sides)\s*[:\-：]\s*([^\r\n|]+?)\s*(?:vs|v|VS)\s*([^\r\n|]+)`)
	team1Re      = regexp.MustCompile(`(?i)Team1\s*[:\-：]\s*([^|,]+)`)
	team2Re      = regexp.MustCompile(`(?i)Team2\s*[:\-：]\s*([^|,]+)`)
	anyVsRe      = regexp.MustCompile(`(?i)([A-Za-z0-9_\- \x{4e00}-\x{9fff}]{2,60})\s+(?:vs|v|VS)\s+([A-Za-z0-9_\- \x{4e00}-\x{9fff}]{2,60})`)
	latencyRe    = regexp.MustCompile(`(?i)(?:Latency|Ping|延迟|区域延迟)\s*[:：\-]?\s*(\d+)\s*(?:ms|毫秒)?`)
	durHMSRe     = regexp.MustCompile(`(\d+):(\d+):(\d+)`)
	durMSRe      = regexp.MustCompile(`(\d+):(\d+)`)
	durUnitsRe   = regexp.MustCompile(`(?i)(\d+)\s*m(?:in(?:utes)?)?\s*(\d+)\s*s(?:ec(?:onds)?)?`)
	durChineseRe = regexp.MustCompile(`(\d+)\s*分\s*(\d+)\s*秒`)
)

func parseText(trimmed string, p *Parsed) {
	// Collapse to a single line so patterns survive arbitrary wrapping.
	txt := strings.Join(strings.Fields(strings.ReplaceAll(trimmed, "\r", " ")), " ")

	if m := nameRe.FindStringSubmatch(txt); m != nil {
		p.ServerName = strings.TrimSpace(m[1])
	}

	if m := playersRe.FindStringSubmatch(txt); m != nil {
		p.Players = atoiPtr(m[1])
		if m[2] != "" {
			p.PlayersExtra = atoiPtr(m[2])
		}
		p.MaxPlayers = atoiPtr(m[3])
		if m[4] != "" {
			p.MaxPlayersExtra = atoiPtr(m[4])
		}
	} else if m := anyPairRe.FindStringSubmatch(txt); m != nil {
		p.Players = atoiPtr(m[1])
		p.MaxPlayers = atoiPtr(m[2])
	}

	if m := mapRe.FindStringSubmatch(txt); m != nil {
		p.Map = strings.ReplaceAll(strings.TrimSpace(m[1]), "_", " ")
	} else if m := mapLooseRe.FindStringSubmatch(txt); m != nil {
		p.Map = strings.ReplaceAll(m[1], "_", " ")
	}

	if m := factionRe.FindStringSubmatch(txt); m != nil {
		p.Faction1 = cleanFaction(m[1])
		p.Faction2 = cleanFaction(m[2])
	} else if m1, m2 := team1Re.FindStringSubmatch(txt), team2Re.FindStringSubmatch(txt); m1 != nil && m2 != nil {
		p.Faction1 = strings.TrimSpace(m1[1])
		p.Faction2 = strings.TrimSpace(m2[1])
	} else if m := anyVsRe.FindStringSubmatch(txt); m != nil {
		p.Faction1 = cleanFaction(m[1])
		p.Faction2 = cleanFaction(m[2])
	}

	if m := latencyRe.FindStringSubmatch(txt); m != nil {
		p.LatencyMs = atoiPtr(m[1])
	}

	if m := durHMSRe.FindStringSubmatch(txt); m != nil {
		h, mm, s := atoi(m[1]), atoi(m[2]), atoi(m[3])
		sec := h*3600 + mm*60 + s
		p.DurationSec = &sec
		p.DurationDisplay = formatDuration(sec)
	} else if m := durMSRe.FindStringSubmatch(txt); m != nil {
		setMinSec(p, atoi(m[1]), atoi(m[2]))
	} else if m := durUnitsRe.FindStringSubmatch(txt); m != nil {
		setMinSec(p, atoi(m[1]), atoi(m[2]))
	} else if m := durChineseRe.FindStringSubmatch(txt); m != nil {
		setMinSec(p, atoi(m[1]), atoi(m[2]))
	}

	p.PlayersDisplay = composePlayers(p)
}

func setMinSec(p *Parsed, m, s int) {
	sec := m*60 + s
	p.DurationSec = &sec
	p.DurationDisplay = formatDuration(sec)
}

func cleanFaction(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), "_", " ")
	return strings.Join(strings.Fields(s), " ")
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func atoiPtr(s string) *int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

// composePlayers builds "count/max" with optional parenthesized reserve
// counts on either side, e.g. "99(3)/100(1)".
func composePlayers(p *Parsed) string {
	if p.Players == nil {
		return ""
	}
	left := strconv.Itoa(*p.Players)
	if p.PlayersExtra != nil {
		left += "(" + strconv.Itoa(*p.PlayersExtra) + ")"
	}
	right := "-"
	if p.MaxPlayers != nil {
		right = strconv.Itoa(*p.MaxPlayers)
	}
	if p.MaxPlayersExtra != nil {
		right += "(" + strconv.Itoa(*p.MaxPlayersExtra) + ")"
	}
	return left + "/" + right
}

// formatDuration renders seconds as 分/秒, adding an hour component when
// the match has run over an hour.
func formatDuration(sec int) string {
	if sec < 0 {
		sec = 0
	}
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	if h > 0 {
		return strconv.Itoa(h) + "时" + strconv.Itoa(m) + "分" + strconv.Itoa(s) + "秒"
	}
	return strconv.Itoa(m) + "分" + strconv.Itoa(s) + "秒"
}
