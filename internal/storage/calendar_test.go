package storage

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/radiofrance_bridge/internal/events"
	"github.com/friendsincode/radiofrance_bridge/internal/grid"
	"github.com/friendsincode/radiofrance_bridge/internal/station"
)

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (m *memoryStore) Put(_ context.Context, key, contentType string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.types[key] = contentType
	return nil
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

type nopSource struct{}

func (nopSource) Data() *grid.Grid          { return nil }
func (nopSource) LastUpdateSuccess() bool   { return false }
func (nopSource) RequestRefresh() bool      { return false }
func (nopSource) AddListener(func()) func() { return func() {} }

var base = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func testGrid() *grid.Grid {
	return &grid.Grid{
		Station: "FRANCEINTER",
		Start:   base.Add(-2 * time.Hour),
		End:     base.Add(6 * time.Hour),
		Steps: []grid.Step{
			grid.NewDiffusionStep("d1", base, base.Add(time.Hour), grid.Diffusion{Title: "La Terre au carré"}),
			grid.NewTrackStep("t1", base.Add(10*time.Minute), base.Add(14*time.Minute), grid.Track{Title: "Aline"}),
		},
	}
}

func newPublisher(store ObjectStore) *CalendarPublisher {
	registry := station.NewRegistry()
	registry.Add(station.NewTracker(nopSource{}, nil, station.Options{Code: "FRANCEINTER", Name: "France Inter"}, zerolog.Nop()))
	return NewCalendarPublisher(store, "calendars", registry, zerolog.Nop())
}

func TestPublishUploadsFeed(t *testing.T) {
	store := newMemoryStore()
	p := newPublisher(store)

	if err := p.Publish(context.Background(), testGrid()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	data, err := store.Get(context.Background(), "calendars/FRANCEINTER.ics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body := string(data)
	if !strings.Contains(body, "X-WR-CALNAME:France Inter") || !strings.Contains(body, "SUMMARY:La Terre au carré") {
		t.Fatalf("unexpected feed:\n%s", body)
	}
	if strings.Contains(body, "Aline") {
		t.Fatal("tracks are excluded unless enabled for the station")
	}
	if !strings.HasPrefix(store.types["calendars/FRANCEINTER.ics"], "text/calendar") {
		t.Fatalf("content type = %q", store.types["calendars/FRANCEINTER.ics"])
	}
}

func TestPublishUnknownStation(t *testing.T) {
	p := newPublisher(newMemoryStore())
	g := testGrid()
	g.Station = "MOUV"
	if err := p.Publish(context.Background(), g); !errors.Is(err, station.ErrUnknownStation) {
		t.Fatalf("expected ErrUnknownStation, got %v", err)
	}
}

func TestRunUploadsOnGridUpdate(t *testing.T) {
	store := newMemoryStore()
	p := newPublisher(store)
	bus := events.NewBus()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx, bus)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		bus.Publish(events.EventGridUpdated, events.Payload{
			events.KeyStation: "FRANCEINTER",
			events.KeyGrid:    testGrid(),
		})
		time.Sleep(10 * time.Millisecond)
		if _, err := store.Get(context.Background(), p.Key("FRANCEINTER")); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("snapshot was not uploaded")
		}
	}
	cancel()
	<-done
}
