/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package station tracks what airs on each configured station.
package station

import (
	"time"

	"github.com/friendsincode/radiofrance_bridge/internal/grid"
)

// NowPlaying is the airing state of a station: the value of the "airing now"
// sensor plus its attributes.
type NowPlaying struct {
	Station     string    `json:"station"`
	Name        string    `json:"name"`
	Airing      bool      `json:"airing"`
	StepID      string    `json:"step_id,omitempty"`
	Kind        grid.Kind `json:"kind,omitempty"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	URL         string    `json:"url,omitempty"`
	Start       time.Time `json:"start,omitempty"`
	End         time.Time `json:"end,omitempty"`
	Album       string    `json:"album,omitempty"`
	Artists     []string  `json:"artists,omitempty"`
	Next        *Upcoming `json:"next,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Upcoming summarises the step airing after the current one.
type Upcoming struct {
	StepID string    `json:"step_id"`
	Kind   grid.Kind `json:"kind"`
	Title  string    `json:"title"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

// SameAiring reports whether both states describe the same airing and upcoming
// steps.
func (n NowPlaying) SameAiring(other NowPlaying) bool {
	if n.Airing != other.Airing || !n.Next.same(other.Next) {
		return false
	}
	if !n.Airing {
		return true
	}
	return n.StepID == other.StepID && n.Start.Equal(other.Start) && n.Title == other.Title
}

func (u *Upcoming) same(other *Upcoming) bool {
	if u == nil || other == nil {
		return u == other
	}
	return u.StepID == other.StepID && u.Start.Equal(other.Start) && u.Title == other.Title
}

func nowPlayingFrom(code, name string, g *grid.Grid, now time.Time) NowPlaying {
	state := NowPlaying{Station: code, Name: name, UpdatedAt: now}

	if cur, ok := g.Current(now); ok {
		state.Airing = true
		state.StepID = cur.ID
		state.Kind = cur.Kind
		state.Title = cur.Title
		state.Description = cur.Description
		state.URL = cur.URL
		state.Start = cur.Start
		state.End = cur.End
		state.Album = cur.Album()
		state.Artists = cur.Artists()
	}
	if next, ok := g.Next(now); ok {
		state.Next = &Upcoming{
			StepID: next.ID,
			Kind:   next.Kind,
			Title:  next.Title,
			Start:  next.Start,
			End:    next.End,
		}
	}
	return state
}
