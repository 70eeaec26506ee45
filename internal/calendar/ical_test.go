package calendar

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/friendsincode/radiofrance_bridge/internal/grid"
)

var start = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func TestRenderEvents(t *testing.T) {
	events := []grid.Event{{
		UID:         "abc",
		Station:     "FRANCEINTER",
		Kind:        grid.KindDiffusion,
		Summary:     "Le 7/9, l'info",
		Description: "Politique; culture\nsociété",
		URL:         "https://example.test/79",
		Start:       start,
		End:         start.Add(time.Hour),
	}}

	out := string(Render("France Inter", events, start))

	for _, want := range []string{
		"BEGIN:VCALENDAR\r\n",
		"X-WR-CALNAME:France Inter\r\n",
		"UID:abc@radiofrance\r\n",
		"DTSTART:20260302T090000Z\r\n",
		"DTEND:20260302T100000Z\r\n",
		"SUMMARY:Le 7/9\\, l'info\r\n",
		"DESCRIPTION:Politique\\; culture\\nsociété\r\n",
		"URL:https://example.test/79\r\n",
		"CATEGORIES:DIFFUSION\r\n",
		"END:VCALENDAR\r\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Count(out, "BEGIN:VEVENT") != 1 {
		t.Fatalf("expected one event:\n%s", out)
	}
}

func TestRenderEmptyCalendar(t *testing.T) {
	out := string(Render("FIP", nil, start))
	if strings.Contains(out, "VEVENT") {
		t.Fatalf("unexpected event in empty calendar:\n%s", out)
	}
	if !strings.HasSuffix(out, "END:VCALENDAR\r\n") {
		t.Fatalf("calendar not terminated:\n%s", out)
	}
}

func TestRenderFoldsLongLines(t *testing.T) {
	long := strings.Repeat("é", 100)
	out := string(Render("FIP", []grid.Event{{UID: "x", Summary: long, Start: start, End: start.Add(time.Minute)}}, start))
	for _, line := range strings.Split(out, "\r\n") {
		if len(line) > 75 {
			t.Fatalf("line exceeds 75 octets (%d): %q", len(line), line)
		}
	}
	unfolded := strings.ReplaceAll(out, "\r\n ", "")
	if !strings.Contains(unfolded, "SUMMARY:"+long) {
		t.Fatal("folded summary does not unfold to the original text")
	}
}

func TestWriteLineWithoutRuneBoundary(t *testing.T) {
	var buf bytes.Buffer
	line := strings.Repeat("\x80", 200)
	writeLine(&buf, line)

	out := buf.String()
	for _, l := range strings.Split(strings.TrimSuffix(out, "\r\n"), "\r\n") {
		if len(l) == 0 || len(l) > 75 {
			t.Fatalf("bad folded line of %d octets", len(l))
		}
	}
	if got := strings.ReplaceAll(strings.TrimSuffix(out, "\r\n"), "\r\n ", ""); got != line {
		t.Fatalf("unfolded %d octets, want %d", len(got), len(line))
	}
}

func TestEscapeText(t *testing.T) {
	got := escapeText("a,b;c\\d\r\ne\nf\rg")
	want := `a\,b\;c\\d\ne\nf\ng`
	if got != want {
		t.Fatalf("escapeText = %q, want %q", got, want)
	}
}

func TestFilename(t *testing.T) {
	got := Filename("FIP", start, start.Add(8*time.Hour))
	if got != "fip-20260302T0900-20260302T1700.ics" {
		t.Fatalf("filename = %q", got)
	}
}
