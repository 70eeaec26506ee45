/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package grid

import "time"

// Grid holds the steps returned for one station over the window [Start, End).
type Grid struct {
	Station   string    `json:"station"`
	Steps     []Step    `json:"steps"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Current returns the step airing at now. Nested steps (a track inside a program)
// resolve to the one that started last; ties keep grid order.
func (g *Grid) Current(now time.Time) (Step, bool) {
	if g == nil {
		return Step{}, false
	}
	var (
		current Step
		found   bool
	)
	for _, s := range g.Steps {
		if !s.Contains(now) {
			continue
		}
		if !found || s.Start.After(current.Start) {
			current = s
			found = true
		}
	}
	return current, found
}

// Next returns the earliest step starting strictly after now.
func (g *Grid) Next(now time.Time) (Step, bool) {
	if g == nil {
		return Step{}, false
	}
	var (
		next  Step
		found bool
	)
	for _, s := range g.Steps {
		if !s.Valid() || !s.Start.After(now) {
			continue
		}
		if !found || s.Start.Before(next.Start) {
			next = s
			found = true
		}
	}
	return next, found
}

// Covers reports whether now lies inside the fetched window.
func (g *Grid) Covers(now time.Time) bool {
	if g == nil {
		return false
	}
	return !now.Before(g.Start) && now.Before(g.End)
}

// Stale reports whether no step ends after now, meaning a refetch is needed.
func (g *Grid) Stale(now time.Time) bool {
	if g == nil {
		return true
	}
	for _, s := range g.Steps {
		if s.Valid() && s.End.After(now) {
			return false
		}
	}
	return true
}

// Len returns the number of steps.
func (g *Grid) Len() int {
	if g == nil {
		return 0
	}
	return len(g.Steps)
}
