package eventbus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/radiofrance_bridge/internal/events"
	"github.com/friendsincode/radiofrance_bridge/internal/station"
)

type fakeSink struct {
	mu       sync.Mutex
	name     string
	err      error
	stations []string
	payloads [][]byte
	closed   bool
}

func (s *fakeSink) Name() string { return s.name }

func (s *fakeSink) Publish(_ context.Context, station string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stations = append(s.stations, station)
	s.payloads = append(s.payloads, data)
	return s.err
}

func (s *fakeSink) Close() error {
	s.closed = true
	return nil
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payloads)
}

func TestForwardPublishesToEverySink(t *testing.T) {
	good := &fakeSink{name: "good"}
	bad := &fakeSink{name: "bad", err: errors.New("down")}
	f := NewForwarder([]Sink{good, bad}, "node-1", zerolog.Nop())

	err := f.Forward(context.Background(), station.NowPlaying{Station: "FIP", Airing: true, Title: "So What"})
	if err == nil {
		t.Fatal("expected the failing sink error")
	}
	if good.count() != 1 || bad.count() != 1 {
		t.Fatal("every sink must be attempted")
	}

	msg, err := UnmarshalMessage(good.payloads[0])
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Station != "FIP" || msg.State.Title != "So What" || msg.NodeID != "node-1" || msg.EventType != events.EventNowPlaying {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if msg.MessageID == "" {
		t.Fatal("message id must be set")
	}

	if err := f.Close(); err != nil || !good.closed || !bad.closed {
		t.Fatal("close must reach every sink")
	}
}

func TestRunForwardsBusEvents(t *testing.T) {
	sink := &fakeSink{name: "fake"}
	f := NewForwarder([]Sink{sink}, "node-1", zerolog.Nop())
	bus := events.NewBus()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.Run(ctx, bus)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for sink.count() == 0 {
		bus.Publish(events.EventNowPlaying, events.Payload{
			events.KeyStation: "MOUV",
			events.KeyState:   station.NowPlaying{Station: "MOUV"},
		})
		if time.Now().After(deadline) {
			t.Fatal("event was not forwarded")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done
}

func TestSubjectsAndChannels(t *testing.T) {
	if got := natsSubject(DefaultNATSConfig().SubjectPrefix, "FIP"); got != "radiofrance.now_playing.FIP" {
		t.Fatalf("subject = %q", got)
	}
	if got := redisChannel(DefaultRedisConfig().ChannelPrefix, "FIP"); got != "radiofrance:now_playing:FIP" {
		t.Fatalf("channel = %q", got)
	}
}

func TestRedisCircuitBreaker(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	s := &RedisSink{
		cfg:    RedisConfig{MaxFailures: 2, CheckInterval: 30 * time.Second},
		logger: zerolog.Nop(),
		now:    func() time.Time { return now },
	}

	s.recordFailure()
	if !s.allow() {
		t.Fatal("circuit must stay closed below the threshold")
	}
	s.recordFailure()
	if s.allow() {
		t.Fatal("circuit must open at the threshold")
	}

	now = now.Add(31 * time.Second)
	if !s.allow() {
		t.Fatal("one attempt must be let through after the check interval")
	}
	if s.allow() {
		t.Fatal("only one probe per interval")
	}

	s.recordSuccess()
	if !s.allow() || s.failCount != 0 {
		t.Fatal("success must close the circuit")
	}
}
