/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package homeassistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/radiofrance_bridge/internal/events"
	"github.com/friendsincode/radiofrance_bridge/internal/grid"
	"github.com/friendsincode/radiofrance_bridge/internal/station"
	"github.com/friendsincode/radiofrance_bridge/internal/telemetry"
)

// Broker is the part of an MQTT client the publisher needs.
type Broker interface {
	Publish(topic string, payload []byte, retained bool) error
	Subscribe(topic string, handler func(payload []byte)) error
}

type airingAttributes struct {
	Description string    `json:"description,omitempty"`
	URL         string    `json:"url,omitempty"`
	Kind        grid.Kind `json:"kind,omitempty"`
	Start       string    `json:"start,omitempty"`
	End         string    `json:"end,omitempty"`
	Album       string    `json:"album,omitempty"`
	Artists     []string  `json:"artists,omitempty"`
}

// Publisher mirrors tracker states to Home Assistant.
type Publisher struct {
	topics   Topics
	broker   Broker
	registry *station.Registry
	bus      *events.Bus
	logger   zerolog.Logger
}

// NewPublisher creates a publisher.
func NewPublisher(topics Topics, broker Broker, registry *station.Registry, bus *events.Bus, logger zerolog.Logger) *Publisher {
	return &Publisher{
		topics:   topics,
		broker:   broker,
		registry: registry,
		bus:      bus,
		logger:   logger.With().Str("component", "homeassistant").Logger(),
	}
}

// Topics returns the topic layout in use.
func (p *Publisher) Topics() Topics {
	return p.topics
}

// OnConnect announces the bridge after every (re)connection: it listens for Home
// Assistant's birth message, then publishes availability, discovery and states.
func (p *Publisher) OnConnect() {
	if err := p.broker.Subscribe(p.topics.Birth(), p.handleBirth); err != nil {
		p.logger.Error().Err(err).Msg("subscribe to home assistant status failed")
	}
	if err := p.Announce(); err != nil {
		p.logger.Error().Err(err).Msg("announce failed")
	}
}

func (p *Publisher) handleBirth(payload []byte) {
	if string(payload) != PayloadOnline {
		return
	}
	p.logger.Info().Msg("home assistant came online, republishing discovery")
	if err := p.Announce(); err != nil {
		p.logger.Error().Err(err).Msg("announce failed")
	}
}

// Announce publishes availability, the discovery configs and the current states.
func (p *Publisher) Announce() error {
	errs := []error{p.publish(p.topics.Availability(), []byte(PayloadOnline), true)}
	for _, t := range p.registry.All() {
		errs = append(errs, p.PublishDiscovery(t.Code(), t.Name()))
		errs = append(errs, p.PublishState(t.State()))
	}
	return errors.Join(errs...)
}

// PublishDiscovery publishes the retained discovery configs of a station.
func (p *Publisher) PublishDiscovery(code, name string) error {
	var errs []error
	for _, object := range []string{ObjectAiringNow, ObjectAiringNext} {
		payload, err := json.Marshal(p.topics.discoveryConfig(code, name, object))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		errs = append(errs, p.publish(p.topics.Discovery(code, object), payload, true))
	}
	return errors.Join(errs...)
}

// PublishState publishes the retained states and attributes of both sensors.
func (p *Publisher) PublishState(state station.NowPlaying) error {
	code := state.Station

	nowAttrs := airingAttributes{}
	if state.Airing {
		nowAttrs = airingAttributes{
			Description: state.Description,
			URL:         state.URL,
			Kind:        state.Kind,
			Start:       formatTime(state.Start),
			End:         formatTime(state.End),
			Album:       state.Album,
			Artists:     state.Artists,
		}
	}

	nextTitle := ""
	nextAttrs := airingAttributes{}
	if state.Next != nil {
		nextTitle = state.Next.Title
		nextAttrs = airingAttributes{
			Kind:  state.Next.Kind,
			Start: formatTime(state.Next.Start),
			End:   formatTime(state.Next.End),
		}
	}

	title := ""
	if state.Airing {
		title = state.Title
	}

	return errors.Join(
		p.publishSensor(code, ObjectAiringNow, title, nowAttrs),
		p.publishSensor(code, ObjectAiringNext, nextTitle, nextAttrs),
	)
}

func (p *Publisher) publishSensor(code, object, title string, attrs airingAttributes) error {
	payload, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("marshal %s attributes: %w", object, err)
	}
	return errors.Join(
		p.publish(p.topics.Attributes(code, object), payload, true),
		p.publish(p.topics.State(code, object), []byte(stateValue(title)), true),
	)
}

func (p *Publisher) publish(topic string, payload []byte, retained bool) error {
	p.logger.Debug().Str("topic", topic).Int("bytes", len(payload)).Msg("publishing")
	if err := p.broker.Publish(topic, payload, retained); err != nil {
		telemetry.MQTTPublishErrors.Inc()
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Run publishes every now_playing event until ctx is done.
func (p *Publisher) Run(ctx context.Context) {
	sub := p.bus.Subscribe(events.EventNowPlaying)
	defer p.bus.Unsubscribe(events.EventNowPlaying, sub)

	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-sub:
			if !ok {
				return
			}
			state, ok := payload[events.KeyState].(station.NowPlaying)
			if !ok {
				continue
			}
			if err := p.PublishState(state); err != nil {
				p.logger.Error().Err(err).Str("station", state.Station).Msg("publish state failed")
			}
		}
	}
}

// Shutdown marks the bridge offline.
func (p *Publisher) Shutdown() error {
	return p.publish(p.topics.Availability(), []byte(PayloadOffline), true)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
