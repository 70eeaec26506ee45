package homeassistant

import (
	"context"
	"encoding/json"
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

type message struct {
	payload  string
	retained bool
}

type fakeBroker struct {
	mu       sync.Mutex
	messages map[string]message
	handlers map[string]func([]byte)
	fail     error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{messages: make(map[string]message), handlers: make(map[string]func([]byte))}
}

func (b *fakeBroker) Publish(topic string, payload []byte, retained bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail != nil {
		return b.fail
	}
	b.messages[topic] = message{payload: string(payload), retained: retained}
	return nil
}

func (b *fakeBroker) Subscribe(topic string, handler func([]byte)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = handler
	return nil
}

func (b *fakeBroker) get(topic string) (message, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.messages[topic]
	return m, ok
}

func (b *fakeBroker) reset() {
	b.mu.Lock()
	b.messages = make(map[string]message)
	b.mu.Unlock()
}

var topics = Topics{DiscoveryPrefix: "homeassistant", TopicPrefix: "radiofrance", NodeID: "bridge"}

type staticSource struct{}

func (staticSource) Data() *grid.Grid          { return nil }
func (staticSource) LastUpdateSuccess() bool   { return false }
func (staticSource) RequestRefresh() bool      { return false }
func (staticSource) AddListener(func()) func() { return func() {} }

func newRegistry() *station.Registry {
	r := station.NewRegistry()
	r.Add(station.NewTracker(staticSource{}, nil, station.Options{Code: "FIP", Name: "FIP"}, zerolog.Nop()))
	return r
}

func TestTopics(t *testing.T) {
	if got := topics.Discovery("FIP", ObjectAiringNow); got != "homeassistant/sensor/bridge/fip_airing_now/config" {
		t.Fatalf("discovery topic = %q", got)
	}
	if got := topics.State("FIP", ObjectAiringNext); got != "radiofrance/fip/airing_next/state" {
		t.Fatalf("state topic = %q", got)
	}
	if topics.Availability() != "radiofrance/status" || topics.Birth() != "homeassistant/status" {
		t.Fatal("unexpected availability or birth topic")
	}
}

func TestOnConnectAnnounces(t *testing.T) {
	broker := newFakeBroker()
	p := NewPublisher(topics, broker, newRegistry(), events.NewBus(), zerolog.Nop())
	p.OnConnect()

	if m, ok := broker.get("radiofrance/status"); !ok || m.payload != PayloadOnline || !m.retained {
		t.Fatalf("availability = %+v (%v)", m, ok)
	}

	m, ok := broker.get("homeassistant/sensor/bridge/fip_airing_now/config")
	if !ok || !m.retained {
		t.Fatal("expected retained discovery config")
	}
	var cfg DiscoveryConfig
	if err := json.Unmarshal([]byte(m.payload), &cfg); err != nil {
		t.Fatalf("decode discovery: %v", err)
	}
	if cfg.Name != "Airing now on FIP" || cfg.Device.Name != "Radio France FIP" || cfg.Device.EntryType != "service" {
		t.Fatalf("unexpected discovery config: %+v", cfg)
	}
	if cfg.Device.Manufacturer != Manufacturer || cfg.StateTopic != "radiofrance/fip/airing_now/state" {
		t.Fatalf("unexpected discovery config: %+v", cfg)
	}

	if m, _ := broker.get("radiofrance/fip/airing_now/state"); m.payload != StateNone {
		t.Fatalf("initial state = %q, want None", m.payload)
	}
}

func TestBirthMessageRepublishesDiscovery(t *testing.T) {
	broker := newFakeBroker()
	p := NewPublisher(topics, broker, newRegistry(), events.NewBus(), zerolog.Nop())
	p.OnConnect()
	broker.reset()

	handler := broker.handlers["homeassistant/status"]
	if handler == nil {
		t.Fatal("expected subscription to the birth topic")
	}
	handler([]byte("offline"))
	if _, ok := broker.get("homeassistant/sensor/bridge/fip_airing_now/config"); ok {
		t.Fatal("offline birth payload must not republish")
	}
	handler([]byte("online"))
	if _, ok := broker.get("homeassistant/sensor/bridge/fip_airing_now/config"); !ok {
		t.Fatal("online birth payload must republish discovery")
	}
}

func TestPublishState(t *testing.T) {
	broker := newFakeBroker()
	p := NewPublisher(topics, broker, newRegistry(), events.NewBus(), zerolog.Nop())

	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	err := p.PublishState(station.NowPlaying{
		Station:     "FIP",
		Airing:      true,
		Kind:        grid.KindTrack,
		Title:       "So What",
		Description: "From the album Kind of Blue",
		Start:       start,
		End:         start.Add(9 * time.Minute),
		Album:       "Kind of Blue",
		Artists:     []string{"Miles Davis"},
		Next:        &station.Upcoming{Title: "Club Jazzafip", Kind: grid.KindDiffusion, Start: start.Add(time.Hour)},
	})
	if err != nil {
		t.Fatalf("publish state: %v", err)
	}

	if m, _ := broker.get("radiofrance/fip/airing_now/state"); m.payload != "So What" {
		t.Fatalf("now state = %q", m.payload)
	}
	if m, _ := broker.get("radiofrance/fip/airing_next/state"); m.payload != "Club Jazzafip" {
		t.Fatalf("next state = %q", m.payload)
	}

	m, _ := broker.get("radiofrance/fip/airing_now/attributes")
	var attrs map[string]any
	if err := json.Unmarshal([]byte(m.payload), &attrs); err != nil {
		t.Fatalf("decode attributes: %v", err)
	}
	if attrs["album"] != "Kind of Blue" || attrs["start"] != "2026-03-02T10:00:00Z" || attrs["kind"] != "track" {
		t.Fatalf("unexpected attributes: %v", attrs)
	}
}

func TestPublishStateNothingAiring(t *testing.T) {
	broker := newFakeBroker()
	p := NewPublisher(topics, broker, newRegistry(), events.NewBus(), zerolog.Nop())

	if err := p.PublishState(station.NowPlaying{Station: "FIP", Title: "stale"}); err != nil {
		t.Fatalf("publish state: %v", err)
	}
	if m, _ := broker.get("radiofrance/fip/airing_now/state"); m.payload != StateNone {
		t.Fatalf("state = %q, want None", m.payload)
	}
	if m, _ := broker.get("radiofrance/fip/airing_now/attributes"); m.payload != "{}" {
		t.Fatalf("attributes = %q, want {}", m.payload)
	}
}

func TestPublishErrorsAreReturned(t *testing.T) {
	broker := newFakeBroker()
	broker.fail = errors.New("broker down")
	p := NewPublisher(topics, broker, newRegistry(), events.NewBus(), zerolog.Nop())

	if err := p.Announce(); err == nil || !strings.Contains(err.Error(), "broker down") {
		t.Fatalf("expected broker error, got %v", err)
	}
}

func TestRunPublishesNowPlayingEvents(t *testing.T) {
	broker := newFakeBroker()
	bus := events.NewBus()
	p := NewPublisher(topics, broker, newRegistry(), bus, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		bus.Publish(events.EventNowPlaying, events.Payload{
			events.KeyStation: "FIP",
			events.KeyState:   station.NowPlaying{Station: "FIP", Airing: true, Title: "Live"},
		})
		if m, ok := broker.get("radiofrance/fip/airing_now/state"); ok && m.payload == "Live" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("state was not published")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done
}

func TestStateValueTruncates(t *testing.T) {
	long := strings.Repeat("a", 300)
	got := stateValue(long)
	if len([]rune(got)) != maxStateLength {
		t.Fatalf("length = %d", len([]rune(got)))
	}
}
