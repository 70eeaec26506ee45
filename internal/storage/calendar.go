/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package storage

import (
	"context"
	"path"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/radiofrance_bridge/internal/calendar"
	"github.com/friendsincode/radiofrance_bridge/internal/events"
	"github.com/friendsincode/radiofrance_bridge/internal/grid"
	"github.com/friendsincode/radiofrance_bridge/internal/station"
)

// CalendarPublisher uploads a station's iCalendar feed after each grid update.
type CalendarPublisher struct {
	store    ObjectStore
	prefix   string
	registry *station.Registry
	logger   zerolog.Logger
	now      func() time.Time
}

// NewCalendarPublisher creates a publisher writing <prefix>/<station>.ics.
func NewCalendarPublisher(store ObjectStore, prefix string, registry *station.Registry, logger zerolog.Logger) *CalendarPublisher {
	return &CalendarPublisher{
		store:    store,
		prefix:   prefix,
		registry: registry,
		logger:   logger.With().Str("component", "calendar_snapshots").Logger(),
		now:      time.Now,
	}
}

// Key returns the object key of a station's feed.
func (p *CalendarPublisher) Key(code string) string {
	return path.Join(p.prefix, code+".ics")
}

// Publish renders and uploads the feed of g.
func (p *CalendarPublisher) Publish(ctx context.Context, g *grid.Grid) error {
	t, err := p.registry.Get(g.Station)
	if err != nil {
		return err
	}
	body := calendar.Render(t.Name(), g.Events(g.Start, g.End, t.CalendarTracks()), p.now())
	return p.store.Put(ctx, p.Key(g.Station), calendar.ContentType, body)
}

// Run uploads a snapshot for every grid.updated event until ctx is done.
func (p *CalendarPublisher) Run(ctx context.Context, bus *events.Bus) {
	sub := bus.Subscribe(events.EventGridUpdated)
	defer bus.Unsubscribe(events.EventGridUpdated, sub)

	// Grids fetched before the subscription.
	for _, t := range p.registry.All() {
		if g := t.Grid(); g != nil {
			p.upload(ctx, g)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-sub:
			if !ok {
				return
			}
			g, ok := payload[events.KeyGrid].(*grid.Grid)
			if !ok || g == nil {
				continue
			}
			p.upload(ctx, g)
		}
	}
}

func (p *CalendarPublisher) upload(ctx context.Context, g *grid.Grid) {
	if err := p.Publish(ctx, g); err != nil {
		p.logger.Error().Err(err).Str("station", g.Station).Msg("calendar snapshot upload failed")
		return
	}
	p.logger.Debug().Str("station", g.Station).Str("key", p.Key(g.Station)).Msg("calendar snapshot uploaded")
}
