/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package store

import (
	"time"

	"github.com/friendsincode/radiofrance_bridge/internal/grid"
	"github.com/friendsincode/radiofrance_bridge/internal/station"
)

// AiringState is the last known state of a station, restored at startup.
type AiringState struct {
	Station     string            `gorm:"primaryKey;size:64" json:"station"`
	Airing      bool              `json:"airing"`
	StepID      string            `gorm:"size:128" json:"step_id"`
	Kind        string            `gorm:"size:16" json:"kind"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	URL         string            `json:"url"`
	StartsAt    time.Time         `json:"starts_at"`
	EndsAt      time.Time         `json:"ends_at"`
	Album       string            `json:"album"`
	Artists     []string          `gorm:"serializer:json" json:"artists"`
	Next        *station.Upcoming `gorm:"serializer:json" json:"next,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func (AiringState) TableName() string { return "airing_states" }

// AiringHistory records each observed airing step once.
type AiringHistory struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Station     string    `gorm:"size:64;uniqueIndex:idx_airing_history_step;index:idx_airing_history_station" json:"station"`
	StepID      string    `gorm:"size:128;uniqueIndex:idx_airing_history_step" json:"step_id"`
	StartsAt    time.Time `gorm:"uniqueIndex:idx_airing_history_step;index:idx_airing_history_station" json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
	Kind        string    `gorm:"size:16" json:"kind"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	Album       string    `json:"album,omitempty"`
	Artists     []string  `gorm:"serializer:json" json:"artists,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (AiringHistory) TableName() string { return "airing_history" }

func stateRow(s station.NowPlaying) AiringState {
	return AiringState{
		Station:     s.Station,
		Airing:      s.Airing,
		StepID:      s.StepID,
		Kind:        string(s.Kind),
		Title:       s.Title,
		Description: s.Description,
		URL:         s.URL,
		StartsAt:    s.Start.UTC(),
		EndsAt:      s.End.UTC(),
		Album:       s.Album,
		Artists:     s.Artists,
		Next:        s.Next,
		UpdatedAt:   s.UpdatedAt.UTC(),
	}
}

func (r AiringState) nowPlaying() station.NowPlaying {
	return station.NowPlaying{
		Station:     r.Station,
		Airing:      r.Airing,
		StepID:      r.StepID,
		Kind:        grid.Kind(r.Kind),
		Title:       r.Title,
		Description: r.Description,
		URL:         r.URL,
		Start:       r.StartsAt,
		End:         r.EndsAt,
		Album:       r.Album,
		Artists:     r.Artists,
		Next:        r.Next,
		UpdatedAt:   r.UpdatedAt,
	}
}

func historyRow(s station.NowPlaying) AiringHistory {
	return AiringHistory{
		Station:     s.Station,
		StepID:      s.StepID,
		StartsAt:    s.Start.UTC(),
		EndsAt:      s.End.UTC(),
		Kind:        string(s.Kind),
		Title:       s.Title,
		Description: s.Description,
		URL:         s.URL,
		Album:       s.Album,
		Artists:     s.Artists,
	}
}
