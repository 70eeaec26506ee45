package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/friendsincode/radiofrance_bridge/internal/station"
)

func TestPrintState(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.Local)
	tests := []struct {
		name  string
		state station.NowPlaying
		want  []string
	}{
		{
			name:  "nothing airing",
			state: station.NowPlaying{Name: "FIP"},
			want:  []string{"FIP: nothing airing"},
		},
		{
			name: "track with next",
			state: station.NowPlaying{
				Name:    "FIP",
				Airing:  true,
				Title:   "So What",
				Start:   start,
				End:     start.Add(9 * time.Minute),
				Artists: []string{"Miles Davis", "John Coltrane"},
				Next:    &station.Upcoming{Title: "Club Jazzafip", Start: start.Add(time.Hour)},
			},
			want: []string{"FIP: So What (10:00 to 10:09)", "by Miles Davis, John Coltrane", "next: Club Jazzafip at 11:00"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printState(&buf, tt.state)
			for _, w := range tt.want {
				if !strings.Contains(buf.String(), w) {
					t.Fatalf("output %q missing %q", buf.String(), w)
				}
			}
		})
	}
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	versionCmd.Run(versionCmd, nil)
	if !strings.HasPrefix(buf.String(), "radiofrance ") {
		t.Fatalf("output = %q", buf.String())
	}
}
