package logbuffer

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestBufferEvictsOldest(t *testing.T) {
	b := New(3)
	for _, msg := range []string{"a", "b", "c", "d"} {
		b.Add(Entry{Message: msg})
	}
	if b.Len() != 3 {
		t.Fatalf("Len = %d", b.Len())
	}
	got := b.Query(Query{})
	if len(got) != 3 || got[0].Message != "d" || got[2].Message != "b" {
		t.Fatalf("unexpected entries: %+v", got)
	}
}

func TestQueryFilters(t *testing.T) {
	b := New(10)
	b.Add(Entry{Level: "info", Component: "coordinator", Station: "FIP", Message: "grid updated"})
	b.Add(Entry{Level: "warn", Component: "coordinator", Station: "MOUV", Message: "grid update failed"})
	b.Add(Entry{Level: "info", Component: "mqtt", Message: "mqtt connected"})
	b.Add(Entry{Level: "info", Component: "coordinator", Station: "FIP", Message: "grid updated"})

	tests := []struct {
		name string
		q    Query
		want int
	}{
		{"all", Query{}, 4},
		{"level", Query{Level: "warn"}, 1},
		{"component", Query{Component: "coordinator"}, 3},
		{"station", Query{Station: "FIP"}, 2},
		{"limit", Query{Component: "coordinator", Limit: 2}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.Query(tt.q); len(got) != tt.want {
				t.Fatalf("got %d entries, want %d", len(got), tt.want)
			}
		})
	}
}

func TestWriterDecodesZerologEvents(t *testing.T) {
	b := New(10)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(NewWriter(b)).With().Timestamp().Logger()

	logger.Warn().Str("component", "coordinator").Str("station", "FIP").Int("steps", 12).Msg("grid update failed")

	got := b.Query(Query{})
	if len(got) != 1 {
		t.Fatalf("got %d entries", len(got))
	}
	e := got[0]
	if e.Level != "warn" || e.Component != "coordinator" || e.Station != "FIP" || e.Message != "grid update failed" {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if e.Fields["steps"] != float64(12) {
		t.Fatalf("fields = %v", e.Fields)
	}
	if time.Since(e.Time) > time.Minute {
		t.Fatalf("time = %v", e.Time)
	}
}

func TestWriterIgnoresNonJSON(t *testing.T) {
	b := New(10)
	n, err := NewWriter(b).Write([]byte("plain text\n"))
	if err != nil || n != len("plain text\n") {
		t.Fatalf("Write = %d, %v", n, err)
	}
	if b.Len() != 0 {
		t.Fatalf("Len = %d", b.Len())
	}
}
