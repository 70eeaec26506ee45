/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package station

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/radiofrance_bridge/internal/events"
	"github.com/friendsincode/radiofrance_bridge/internal/grid"
	"github.com/friendsincode/radiofrance_bridge/internal/telemetry"
)

// Source is the data a tracker evaluates; *coordinator.Coordinator implements it.
type Source interface {
	Data() *grid.Grid
	LastUpdateSuccess() bool
	RequestRefresh() bool
	AddListener(fn func()) func()
}

// Options tunes a tracker.
type Options struct {
	Code             string
	Name             string
	CalendarTracks   bool
	EvaluateInterval time.Duration
	Now              func() time.Time
}

// Tracker re-evaluates the airing step of one station whenever its source updates
// and on a short tick, so transitions between polls are not missed.
type Tracker struct {
	opts   Options
	src    Source
	bus    *events.Bus
	logger zerolog.Logger

	mu       sync.RWMutex
	state    NowPlaying
	hasState bool
	// set once a refresh was accepted for an exhausted grid, cleared when the grid
	// covers the clock again
	staleRequested bool
}

// NewTracker creates a tracker. bus may be nil.
func NewTracker(src Source, bus *events.Bus, opts Options, logger zerolog.Logger) *Tracker {
	if opts.EvaluateInterval <= 0 {
		opts.EvaluateInterval = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Name == "" {
		opts.Name = opts.Code
	}
	return &Tracker{
		opts:   opts,
		src:    src,
		bus:    bus,
		logger: logger.With().Str("component", "tracker").Str("station", opts.Code).Logger(),
		state:  NowPlaying{Station: opts.Code, Name: opts.Name},
	}
}

// Code returns the station code.
func (t *Tracker) Code() string { return t.opts.Code }

// Name returns the station display name.
func (t *Tracker) Name() string { return t.opts.Name }

// CalendarTracks reports whether track steps appear in the station calendar.
func (t *Tracker) CalendarTracks() bool { return t.opts.CalendarTracks }

// Run evaluates on every source update and every tick until ctx is done.
func (t *Tracker) Run(ctx context.Context) {
	remove := t.src.AddListener(func() { t.Evaluate() })
	defer remove()
	t.Evaluate()

	ticker := time.NewTicker(t.opts.EvaluateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Evaluate()
		}
	}
}

// Evaluate matches the clock against the grid. The returned flag reports whether the
// airing step changed. When the last update failed the state is left untouched.
func (t *Tracker) Evaluate() (NowPlaying, bool) {
	if !t.src.LastUpdateSuccess() {
		t.logger.Debug().Msg("last grid update failed, assuming state has not changed")
		return t.State(), false
	}

	now := t.opts.Now()
	g := t.src.Data()
	t.refreshIfStale(g, now)

	next := nowPlayingFrom(t.opts.Code, t.opts.Name, g, now)

	t.mu.Lock()
	changed := !t.hasState || !t.state.SameAiring(next)
	t.state = next
	t.hasState = true
	t.mu.Unlock()

	if changed {
		if next.Airing {
			t.logger.Info().Str("step", next.StepID).Str("title", next.Title).Msg("now airing")
		} else {
			t.logger.Info().Msg("nothing airing")
		}
		telemetry.AiringChanges.WithLabelValues(t.opts.Code).Inc()
		if t.bus != nil {
			t.bus.Publish(events.EventNowPlaying, events.Payload{
				events.KeyStation: t.opts.Code,
				events.KeyState:   next,
			})
		}
	}
	return next, changed
}

// refreshIfStale asks for one out-of-band update per exhausted grid. A refetch that
// is still empty waits for the regular update interval.
func (t *Tracker) refreshIfStale(g *grid.Grid, now time.Time) {
	stale := g.Stale(now)

	t.mu.Lock()
	ask := stale && !t.staleRequested
	if !stale {
		t.staleRequested = false
	}
	t.mu.Unlock()

	if !ask {
		return
	}
	t.logger.Debug().Msg("grid exhausted, requesting refresh")
	if t.src.RequestRefresh() {
		t.mu.Lock()
		t.staleRequested = true
		t.mu.Unlock()
	}
}

// Restore seeds the tracker with a persisted state. It is ignored once a state has
// been evaluated from live data.
func (t *Tracker) Restore(state NowPlaying) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.hasState {
		return
	}
	state.Station = t.opts.Code
	state.Name = t.opts.Name
	t.state = state
	t.hasState = true
	t.logger.Debug().Str("step", state.StepID).Msg("restored state")
}

// State returns the current airing state.
func (t *Tracker) State() NowPlaying {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Grid returns the last fetched grid, nil before the first successful update.
func (t *Tracker) Grid() *grid.Grid {
	return t.src.Data()
}

// LastUpdateSuccess reports the health of the underlying source.
func (t *Tracker) LastUpdateSuccess() bool {
	return t.src.LastUpdateSuccess()
}

// RequestRefresh asks the source for an out-of-band update.
func (t *Tracker) RequestRefresh() bool {
	return t.src.RequestRefresh()
}

// Event returns the calendar entity's event: the program in progress, else the next one.
func (t *Tracker) Event() (grid.Event, bool) {
	return t.src.Data().EventAt(t.opts.Now(), t.opts.CalendarTracks)
}

// Events returns the calendar events overlapping [start, end).
func (t *Tracker) Events(start, end time.Time) []grid.Event {
	return t.src.Data().Events(start, end, t.opts.CalendarTracks)
}
