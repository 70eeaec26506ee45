/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package grid models the Radio France program grid and matches it against the clock.
package grid

import (
	"fmt"
	"time"
)

// Kind enumerates the step shapes returned by the grid query.
type Kind string

const (
	KindDiffusion Kind = "diffusion"
	KindTrack     Kind = "track"
	KindBlank     Kind = "blank"
)

// Diffusion is a scheduled talk or program segment.
type Diffusion struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	StandFirst    string    `json:"stand_first,omitempty"`
	URL           string    `json:"url,omitempty"`
	PublishedDate time.Time `json:"published_date,omitempty"`
}

// Track is a scheduled music segment.
type Track struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	AlbumTitle  string   `json:"album_title,omitempty"`
	MainArtists []string `json:"main_artists,omitempty"`
}

// Step is one time-bounded entry of the grid. Title, Description and URL are the
// display fields every kind is normalized to.
type Step struct {
	ID          string     `json:"id"`
	Kind        Kind       `json:"kind"`
	Start       time.Time  `json:"start"`
	End         time.Time  `json:"end"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	URL         string     `json:"url,omitempty"`
	Diffusion   *Diffusion `json:"diffusion,omitempty"`
	Track       *Track     `json:"track,omitempty"`
}

// NewDiffusionStep builds a step airing a diffusion.
func NewDiffusionStep(id string, start, end time.Time, d Diffusion) Step {
	return Step{
		ID:          id,
		Kind:        KindDiffusion,
		Start:       start,
		End:         end,
		Title:       d.Title,
		Description: d.StandFirst,
		URL:         d.URL,
		Diffusion:   &d,
	}
}

// NewTrackStep builds a step airing a track, converted to the diffusion display format.
func NewTrackStep(id string, start, end time.Time, t Track) Step {
	s := Step{
		ID:    id,
		Kind:  KindTrack,
		Start: start,
		End:   end,
		Title: t.Title,
		Track: &t,
	}
	if t.AlbumTitle != "" {
		s.Description = fmt.Sprintf("From the album %s", t.AlbumTitle)
	}
	return s
}

// NewBlankStep builds a step with no content. The title may be empty.
func NewBlankStep(id string, start, end time.Time, title string) Step {
	return Step{
		ID:    id,
		Kind:  KindBlank,
		Start: start,
		End:   end,
		Title: title,
	}
}

// Valid reports whether the step spans a non-empty interval.
func (s Step) Valid() bool {
	return s.End.After(s.Start)
}

// Contains reports whether t falls in [Start, End).
func (s Step) Contains(t time.Time) bool {
	return s.Valid() && !t.Before(s.Start) && t.Before(s.End)
}

// Overlaps reports whether the step intersects [start, end).
func (s Step) Overlaps(start, end time.Time) bool {
	return s.Valid() && s.Start.Before(end) && s.End.After(start)
}

// Album returns the album title of a track step.
func (s Step) Album() string {
	if s.Track == nil {
		return ""
	}
	return s.Track.AlbumTitle
}

// Artists returns the main artists of a track step.
func (s Step) Artists() []string {
	if s.Track == nil {
		return nil
	}
	return s.Track.MainArtists
}
