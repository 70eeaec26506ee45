/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package radiofrance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/friendsincode/radiofrance_bridge/internal/grid"
)

// unixTime decodes timestamps the API sends either as numbers or numeric strings.
type unixTime int64

func (u *unixTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*u = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*u = 0
			return nil
		}
		b = []byte(s)
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", string(b), err)
	}
	*u = unixTime(f)
	return nil
}

func (u unixTime) Time() time.Time {
	if u == 0 {
		return time.Time{}
	}
	return time.Unix(int64(u), 0)
}

type gridResponse struct {
	Grid []rawStep `json:"grid"`
}

// rawStep is the union of DiffusionStep, TrackStep and BlankStep.
type rawStep struct {
	Typename  string        `json:"__typename"`
	ID        string        `json:"id"`
	Start     unixTime      `json:"start"`
	End       unixTime      `json:"end"`
	Title     string        `json:"title"`
	Diffusion *rawDiffusion `json:"diffusion"`
	Track     *rawTrack     `json:"track"`
}

type rawDiffusion struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	StandFirst    string   `json:"standFirst"`
	PublishedDate unixTime `json:"published_date"`
	URL           string   `json:"url"`
}

type rawTrack struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	AlbumTitle  string   `json:"albumTitle"`
	MainArtists []string `json:"mainArtists"`
}

// step runs the conformity check: every shape becomes a normalized grid.Step.
// The second result is false when the payload was not recognised.
func (r rawStep) step() (grid.Step, bool) {
	start, end := r.Start.Time(), r.End.Time()
	switch {
	case r.Track != nil:
		return grid.NewTrackStep(r.ID, start, end, grid.Track{
			ID:          r.Track.ID,
			Title:       r.Track.Title,
			AlbumTitle:  r.Track.AlbumTitle,
			MainArtists: r.Track.MainArtists,
		}), true
	case r.Diffusion != nil:
		return grid.NewDiffusionStep(r.ID, start, end, grid.Diffusion{
			ID:            r.Diffusion.ID,
			Title:         r.Diffusion.Title,
			StandFirst:    r.Diffusion.StandFirst,
			URL:           r.Diffusion.URL,
			PublishedDate: r.Diffusion.PublishedDate.Time(),
		}), true
	default:
		return grid.NewBlankStep(r.ID, start, end, r.Title), r.Typename == "BlankStep"
	}
}

type brandsResponse struct {
	Brands []Brand `json:"brands"`
}

// Brand is a Radio France station family with its local and web radios.
type Brand struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Baseline    string  `json:"baseline,omitempty"`
	Description string  `json:"description,omitempty"`
	WebsiteURL  string  `json:"websiteUrl,omitempty"`
	PlayerURL   string  `json:"playerUrl,omitempty"`
	LiveStream  string  `json:"liveStream,omitempty"`
	LocalRadios []Radio `json:"localRadios,omitempty"`
	WebRadios   []Radio `json:"webRadios,omitempty"`
}

// Radio is a local or web radio attached to a brand.
type Radio struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	LiveStream  string `json:"liveStream,omitempty"`
	PlayerURL   string `json:"playerUrl,omitempty"`
}

// StationIndex maps every selectable station code to its title.
func StationIndex(brands []Brand) map[string]string {
	out := make(map[string]string)
	for _, b := range brands {
		out[b.ID] = b.Title
		for _, r := range b.LocalRadios {
			out[r.ID] = r.Title
		}
		for _, r := range b.WebRadios {
			out[r.ID] = r.Title
		}
	}
	return out
}
