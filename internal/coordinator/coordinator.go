/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package coordinator polls the Radio France grid for one station and fans the
// result out to its listeners.
package coordinator

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/friendsincode/radiofrance_bridge/internal/events"
	"github.com/friendsincode/radiofrance_bridge/internal/grid"
	"github.com/friendsincode/radiofrance_bridge/internal/telemetry"
)

// ErrForcedFailure is returned by every update when failures are forced on purpose.
var ErrForcedFailure = errors.New("failing update on purpose to test state restoration")

// Fetcher retrieves the steps airing on a station.
type Fetcher interface {
	GetGrid(ctx context.Context, station string, start, end time.Time) ([]grid.Step, error)
}

// Options tunes a coordinator. Zero values take the defaults.
type Options struct {
	Station         string
	UpdateInterval  time.Duration
	Lookbehind      time.Duration
	Lookahead       time.Duration
	RetryInterval   time.Duration
	RefreshCooldown time.Duration
	ForceFailure    bool
	Now             func() time.Time
}

func (o *Options) setDefaults() {
	if o.UpdateInterval <= 0 {
		o.UpdateInterval = 60 * time.Minute
	}
	if o.Lookbehind <= 0 {
		o.Lookbehind = 2 * time.Hour
	}
	if o.Lookahead <= 0 {
		o.Lookahead = 6 * time.Hour
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = time.Minute
	}
	if o.RetryInterval > o.UpdateInterval {
		o.RetryInterval = o.UpdateInterval
	}
	if o.RefreshCooldown <= 0 {
		o.RefreshCooldown = 10 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

type listener struct {
	id uint64
	fn func()
}

// Coordinator fetches the grid of one station on an interval.
type Coordinator struct {
	opts    Options
	fetcher Fetcher
	bus     *events.Bus
	logger  zerolog.Logger

	mu          sync.RWMutex
	data        *grid.Grid
	lastSuccess bool
	lastErr     error
	lastAttempt time.Time
	lastRequest time.Time
	listeners   map[uint64]func()
	nextID      uint64

	refreshCh chan struct{}
	retry     *backoff.ExponentialBackOff
}

// New creates a coordinator. bus may be nil.
func New(fetcher Fetcher, bus *events.Bus, opts Options, logger zerolog.Logger) *Coordinator {
	opts.setDefaults()

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = opts.RetryInterval
	retry.Multiplier = 2
	retry.RandomizationFactor = 0
	retry.MaxInterval = opts.UpdateInterval
	retry.MaxElapsedTime = 0
	retry.Reset()

	return &Coordinator{
		opts:      opts,
		fetcher:   fetcher,
		bus:       bus,
		logger:    logger.With().Str("component", "coordinator").Str("station", opts.Station).Logger(),
		listeners: make(map[uint64]func()),
		refreshCh: make(chan struct{}, 1),
		retry:     retry,
	}
}

// Station returns the station code this coordinator polls.
func (c *Coordinator) Station() string {
	return c.opts.Station
}

// Run refreshes immediately, then on every update interval until ctx is done.
// Failed updates are retried with an exponential backoff capped at the interval.
func (c *Coordinator) Run(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-c.refreshCh:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		next := c.opts.UpdateInterval
		if err := c.Refresh(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			next = c.retry.NextBackOff()
		} else {
			c.retry.Reset()
		}
		c.logger.Debug().Dur("next", next).Msg("next grid update scheduled")
		timer.Reset(next)
	}
}

// Refresh runs one update attempt. On failure the previous grid is kept.
func (c *Coordinator) Refresh(ctx context.Context) error {
	now := c.opts.Now()
	start, end := now.Add(-c.opts.Lookbehind), now.Add(c.opts.Lookahead)

	c.mu.RLock()
	n := len(c.listeners)
	c.mu.RUnlock()
	c.logger.Debug().Int("listeners", n).Msg("updating grid")

	var (
		steps []grid.Step
		err   error
	)
	if c.opts.ForceFailure {
		err = ErrForcedFailure
	} else {
		steps, err = c.fetcher.GetGrid(ctx, c.opts.Station, start, end)
	}

	c.mu.Lock()
	c.lastAttempt = now
	if err != nil {
		c.lastSuccess = false
		c.lastErr = err
	} else {
		c.lastSuccess = true
		c.lastErr = nil
		c.data = &grid.Grid{
			Station:   c.opts.Station,
			Steps:     steps,
			Start:     start,
			End:       end,
			FetchedAt: now,
		}
	}
	data := c.data
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn().Err(err).Msg("grid update failed, keeping previous data")
		telemetry.LastUpdateSuccess.WithLabelValues(c.opts.Station).Set(0)
		c.publish(events.EventGridUpdateFailed, events.Payload{
			events.KeyStation: c.opts.Station,
			events.KeyError:   err.Error(),
		})
	} else {
		c.logger.Debug().Int("steps", len(steps)).Msg("grid updated")
		telemetry.LastUpdateSuccess.WithLabelValues(c.opts.Station).Set(1)
		telemetry.LastUpdateTimestamp.WithLabelValues(c.opts.Station).Set(float64(now.Unix()))
		telemetry.GridSteps.WithLabelValues(c.opts.Station).Set(float64(len(steps)))
		c.publish(events.EventGridUpdated, events.Payload{
			events.KeyStation: c.opts.Station,
			events.KeyGrid:    data,
		})
	}

	c.notify()
	return err
}

func (c *Coordinator) publish(t events.EventType, p events.Payload) {
	if c.bus != nil {
		c.bus.Publish(t, p)
	}
}

// RequestRefresh schedules an out-of-band update. Requests arriving within the
// cooldown of the previous accepted one are dropped; the result reports acceptance.
func (c *Coordinator) RequestRefresh() bool {
	now := c.opts.Now()

	c.mu.Lock()
	if !c.lastRequest.IsZero() && now.Sub(c.lastRequest) < c.opts.RefreshCooldown {
		c.mu.Unlock()
		return false
	}
	c.lastRequest = now
	c.mu.Unlock()

	select {
	case c.refreshCh <- struct{}{}:
	default:
	}
	return true
}

// AddListener registers fn to run after every update attempt and returns a function
// removing it.
func (c *Coordinator) AddListener(fn func()) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Coordinator) notify() {
	c.mu.RLock()
	ls := make([]listener, 0, len(c.listeners))
	for id, fn := range c.listeners {
		ls = append(ls, listener{id: id, fn: fn})
	}
	c.mu.RUnlock()

	sort.Slice(ls, func(i, j int) bool { return ls[i].id < ls[j].id })
	for _, l := range ls {
		l.fn()
	}
}

// Data returns the last successfully fetched grid, nil before the first success.
func (c *Coordinator) Data() *grid.Grid {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data
}

// LastUpdateSuccess reports whether the most recent update attempt succeeded.
func (c *Coordinator) LastUpdateSuccess() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSuccess
}

// LastError returns the error of the most recent failed update, if any.
func (c *Coordinator) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// LastAttempt returns when the last update was attempted.
func (c *Coordinator) LastAttempt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastAttempt
}
