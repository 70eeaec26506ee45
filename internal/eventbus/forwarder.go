/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/radiofrance_bridge/internal/events"
	"github.com/friendsincode/radiofrance_bridge/internal/station"
)

// Sink delivers encoded messages for a station to an external broker.
type Sink interface {
	Name() string
	Publish(ctx context.Context, station string, data []byte) error
	Close() error
}

// Forwarder relays now_playing events from the in-process bus to the sinks.
type Forwarder struct {
	sinks  []Sink
	nodeID string
	logger zerolog.Logger
}

// NewForwarder creates a forwarder over sinks.
func NewForwarder(sinks []Sink, nodeID string, logger zerolog.Logger) *Forwarder {
	return &Forwarder{
		sinks:  sinks,
		nodeID: nodeID,
		logger: logger.With().Str("component", "eventbus").Logger(),
	}
}

// Forward publishes one state to every sink.
func (f *Forwarder) Forward(ctx context.Context, state station.NowPlaying) error {
	data, err := marshalMessage(state, f.nodeID, time.Now().UTC())
	if err != nil {
		return err
	}
	var errs []error
	for _, s := range f.sinks {
		if err := s.Publish(ctx, state.Station, data); err != nil {
			f.logger.Warn().Err(err).Str("sink", s.Name()).Str("station", state.Station).Msg("forward failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run forwards every now_playing event until ctx is done.
func (f *Forwarder) Run(ctx context.Context, bus *events.Bus) {
	sub := bus.Subscribe(events.EventNowPlaying)
	defer bus.Unsubscribe(events.EventNowPlaying, sub)

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
			_ = f.Forward(ctx, state)
		}
	}
}

// Close closes every sink.
func (f *Forwarder) Close() error {
	var errs []error
	for _, s := range f.sinks {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
