package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Action
	}{
		{
			"ban with duration and reason",
			"AdminBan 76561198012345678 1d Teamkilling",
			Action{Action: "Ban", Target: "76561198012345678", Target64: "76561198012345678", Duration: "1d", Reason: "Teamkilling"},
		},
		{
			"ban without duration",
			"AdminBan Griefer",
			Action{Action: "Ban", Target: "Griefer", Duration: "0"},
		},
		{
			"kick by id",
			"AdminKickById 76561198000000001 being rude",
			Action{Action: "Kick", ByID: true, Target: "76561198000000001", Target64: "76561198000000001", Reason: "being rude"},
		},
		{
			"warn by name",
			"AdminWarn PlayerName watch your fire",
			Action{Action: "Warn", Target: "PlayerName", Reason: "watch your fire"},
		},
		{
			"force team change",
			"AdminForceTeamChange Bob",
			Action{Action: "ForceTeamChange", Target: "Bob"},
		},
		{
			"demote commander by id",
			"AdminDemoteCommanderById 76561198099999999",
			Action{Action: "DemoteCommander", ByID: true, Target: "76561198099999999", Target64: "76561198099999999"},
		},
		{
			"case insensitive verb",
			"adminban Bob 2d tk",
			Action{Action: "Ban", Target: "Bob", Duration: "2d", Reason: "tk"},
		},
		{
			"steam id found in payload not target",
			"AdminKick SomeName steamid 76561198012345678 in reason",
			Action{Action: "Kick", Target: "SomeName", Target64: "76561198012345678", Reason: "steamid 76561198012345678 in reason"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseCommand(tt.in)
			if !ok {
				t.Fatalf("ParseCommand(%q) not recognized", tt.in)
			}
			got.Command = ""
			if got != tt.want {
				t.Errorf("action = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseCommand_KeepsRawCommand(t *testing.T) {
	in := "AdminWarn Bob hello"
	got, ok := ParseCommand(in)
	if !ok || got.Command != in {
		t.Errorf("command = %q, want the raw string preserved", got.Command)
	}
}

func TestParseCommand_NonAdmin(t *testing.T) {
	for _, in := range []string{"", "ShowServerInfo", "ListPlayers", "AdminBroadcast hello", "BanAdmin x"} {
		if _, ok := ParseCommand(in); ok {
			t.Errorf("ParseCommand(%q) = true, want false", in)
		}
	}
}

func TestExtractSteam64(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   string
	}{
		{"plain id", []string{"76561198012345678"}, "76561198012345678"},
		{"embedded", []string{"name", "kick 76561198012345678 now"}, "76561198012345678"},
		{"first value wins", []string{"76561198000000001", "76561198000000002"}, "76561198000000001"},
		{"too short", []string{"1234567890123456"}, ""},
		{"none", []string{"no digits here"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractSteam64(tt.values...); got != tt.want {
				t.Errorf("ExtractSteam64(%v) = %q, want %q", tt.values, got, tt.want)
			}
		})
	}
}

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	sink := NewFileSink(path)

	act, _ := ParseCommand("AdminBan 76561198012345678 1d Teamkilling")
	recs := []Record{
		{Action: act, ServerKey: "squad-1", Operator: "admin#1", Timestamp: time.Now(), ResultOK: true},
		{Action: act, ServerKey: "squad-2", Operator: "admin#2", Timestamp: time.Now(), ResultOK: false},
	}
	for _, rec := range recs {
		if err := sink.Write(context.Background(), rec); err != nil {
			t.Fatal(err)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var lines []Record
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("line %d: %v", len(lines), err)
		}
		lines = append(lines, rec)
	}
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	if lines[0].ServerKey != "squad-1" || lines[0].Action.Action != "Ban" || !lines[0].ResultOK {
		t.Errorf("line 0 = %+v", lines[0])
	}
	if lines[1].ServerKey != "squad-2" || lines[1].ResultOK {
		t.Errorf("line 1 = %+v", lines[1])
	}
}

func TestDiscard(t *testing.T) {
	if err := (Discard{}).Write(context.Background(), Record{}); err != nil {
		t.Errorf("Discard.Write = %v, want nil", err)
	}
}
