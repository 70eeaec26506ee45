/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package grid

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// eventNamespace seeds deterministic event UIDs so calendar clients keep
// recognising the same program across refetches.
var eventNamespace = uuid.MustParse("5b0a8f63-2a8e-4f43-9c55-4a5f0e7b1d21")

// Event is a calendar entry derived from a step.
type Event struct {
	UID         string    `json:"uid"`
	Station     string    `json:"station"`
	Kind        Kind      `json:"kind"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	URL         string    `json:"url,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

// EventFromStep converts a step into a calendar event.
func EventFromStep(station string, s Step) Event {
	key := fmt.Sprintf("%s/%s/%d", station, s.ID, s.Start.Unix())
	return Event{
		UID:         uuid.NewSHA1(eventNamespace, []byte(key)).String(),
		Station:     station,
		Kind:        s.Kind,
		Summary:     s.Title,
		Description: s.Description,
		URL:         s.URL,
		Start:       s.Start,
		End:         s.End,
	}
}

func calendarWorthy(s Step, includeTracks bool) bool {
	switch s.Kind {
	case KindTrack:
		return includeTracks
	case KindBlank:
		return s.Title != ""
	default:
		return true
	}
}

// Events returns the events overlapping [start, end) ordered by start time.
func (g *Grid) Events(start, end time.Time, includeTracks bool) []Event {
	if g == nil {
		return nil
	}
	out := make([]Event, 0, len(g.Steps))
	for _, s := range g.Steps {
		if !calendarWorthy(s, includeTracks) || !s.Overlaps(start, end) {
			continue
		}
		out = append(out, EventFromStep(g.Station, s))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

// EventAt returns the event in progress at now, or the next upcoming one.
func (g *Grid) EventAt(now time.Time, includeTracks bool) (Event, bool) {
	if g == nil {
		return Event{}, false
	}
	var (
		current, next Step
		haveCurrent   bool
		haveNext      bool
	)
	for _, s := range g.Steps {
		if !calendarWorthy(s, includeTracks) || !s.Valid() {
			continue
		}
		if s.Contains(now) {
			if !haveCurrent || s.Start.After(current.Start) {
				current, haveCurrent = s, true
			}
			continue
		}
		if s.Start.After(now) && (!haveNext || s.Start.Before(next.Start)) {
			next, haveNext = s, true
		}
	}
	switch {
	case haveCurrent:
		return EventFromStep(g.Station, current), true
	case haveNext:
		return EventFromStep(g.Station, next), true
	default:
		return Event{}, false
	}
}
