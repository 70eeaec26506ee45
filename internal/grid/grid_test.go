package grid

import (
	"testing"
	"time"
)

var base = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func at(minutes int) time.Time {
	return base.Add(time.Duration(minutes) * time.Minute)
}

func testGrid() *Grid {
	return &Grid{
		Station: "FRANCEINTER",
		Start:   at(-120),
		End:     at(360),
		Steps: []Step{
			NewDiffusionStep("d1", at(-60), at(0), Diffusion{Title: "Le 7/9", StandFirst: "Morning news", URL: "https://example.test/79"}),
			NewDiffusionStep("d2", at(0), at(60), Diffusion{Title: "La Terre au carré", StandFirst: "Science"}),
			NewTrackStep("t1", at(20), at(24), Track{Title: "Aline", AlbumTitle: "Christophe", MainArtists: []string{"Christophe"}}),
			NewBlankStep("b1", at(90), at(120), "Journal"),
			NewBlankStep("b2", at(120), at(150), ""),
		},
	}
}

func TestCurrent(t *testing.T) {
	g := testGrid()

	tests := []struct {
		name   string
		now    time.Time
		wantID string
		wantOK bool
	}{
		{name: "inside first program", now: at(-30), wantID: "d1", wantOK: true},
		{name: "boundary belongs to later step", now: at(0), wantID: "d2", wantOK: true},
		{name: "nested track wins", now: at(21), wantID: "t1", wantOK: true},
		{name: "track end returns to program", now: at(24), wantID: "d2", wantOK: true},
		{name: "gap between programs", now: at(75), wantOK: false},
		{name: "untitled blank still matches", now: at(130), wantID: "b2", wantOK: true},
		{name: "after the last step", now: at(200), wantOK: false},
		{name: "before the first step", now: at(-90), wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := g.Current(tt.now)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got.ID != tt.wantID {
				t.Fatalf("current = %q, want %q", got.ID, tt.wantID)
			}
		})
	}
}

func TestCurrentTiesKeepListOrder(t *testing.T) {
	g := &Grid{Steps: []Step{
		NewDiffusionStep("d1", at(0), at(60), Diffusion{Title: "Program"}),
		NewTrackStep("t1", at(10), at(14), Track{Title: "First"}),
		NewTrackStep("t2", at(10), at(16), Track{Title: "Second"}),
	}}
	if got, ok := g.Current(at(12)); !ok || got.ID != "t1" {
		t.Fatalf("current = %q (%v), want the first of the tied steps", got.ID, ok)
	}

	g.Steps[1], g.Steps[2] = g.Steps[2], g.Steps[1]
	if got, ok := g.Current(at(12)); !ok || got.ID != "t2" {
		t.Fatalf("current = %q (%v), want the first of the tied steps after reordering", got.ID, ok)
	}
}

func TestCurrentIgnoresInvalidSteps(t *testing.T) {
	g := &Grid{Steps: []Step{
		NewDiffusionStep("empty", at(0), at(0), Diffusion{Title: "zero length"}),
		NewDiffusionStep("reversed", at(10), at(5), Diffusion{Title: "reversed"}),
	}}
	if _, ok := g.Current(at(0)); ok {
		t.Fatal("zero length step must not match")
	}
	if _, ok := g.Current(at(7)); ok {
		t.Fatal("reversed step must not match")
	}
	if _, ok := g.Next(at(-1)); ok {
		t.Fatal("invalid steps must not be next")
	}
}

func TestNilAndEmptyGrid(t *testing.T) {
	var g *Grid
	if _, ok := g.Current(base); ok {
		t.Fatal("nil grid has no current step")
	}
	if !g.Stale(base) {
		t.Fatal("nil grid is stale")
	}
	empty := &Grid{}
	if _, ok := empty.Next(base); ok {
		t.Fatal("empty grid has no next step")
	}
	if got := empty.Events(at(-60), at(60), true); len(got) != 0 {
		t.Fatalf("expected no events, got %d", len(got))
	}
}

func TestNext(t *testing.T) {
	g := testGrid()

	next, ok := g.Next(at(10))
	if !ok || next.ID != "t1" {
		t.Fatalf("next = %q (%v), want t1", next.ID, ok)
	}
	next, ok = g.Next(at(60))
	if !ok || next.ID != "b1" {
		t.Fatalf("next = %q (%v), want b1", next.ID, ok)
	}
	if _, ok := g.Next(at(150)); ok {
		t.Fatal("no step after the grid end")
	}
}

func TestCoversAndStale(t *testing.T) {
	g := testGrid()
	if !g.Covers(at(0)) || g.Covers(at(360)) || g.Covers(at(-121)) {
		t.Fatal("unexpected window coverage")
	}
	if g.Stale(at(149)) {
		t.Fatal("grid still has a running step")
	}
	if !g.Stale(at(150)) {
		t.Fatal("grid is exhausted once the last step ends")
	}
}

func TestTrackNormalization(t *testing.T) {
	s := NewTrackStep("t", at(0), at(3), Track{Title: "Song", AlbumTitle: "Record"})
	if s.Title != "Song" || s.Description != "From the album Record" {
		t.Fatalf("unexpected normalization: %+v", s)
	}
	if s.Album() != "Record" {
		t.Fatalf("album = %q", s.Album())
	}

	noAlbum := NewTrackStep("t", at(0), at(3), Track{Title: "Song"})
	if noAlbum.Description != "" {
		t.Fatalf("expected empty description, got %q", noAlbum.Description)
	}
}
