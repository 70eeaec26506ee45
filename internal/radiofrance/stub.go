/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package radiofrance

import (
	"context"
	"fmt"
	"time"

	"github.com/friendsincode/radiofrance_bridge/internal/grid"
)

// Stub serves canned data without touching the network.
type Stub struct{}

var stubPrograms = []grid.Diffusion{
	{Title: "Le 6/9", StandFirst: "L'actualité du matin", URL: "https://www.radiofrance.fr/franceinter/podcasts/le-6-9"},
	{Title: "La Terre au carré", StandFirst: "Le magazine de l'environnement", URL: "https://www.radiofrance.fr/franceinter/podcasts/la-terre-au-carre"},
	{Title: "Le Journal de 13h", StandFirst: "Le journal de la mi-journée", URL: "https://www.radiofrance.fr/franceinter/podcasts/journal-de-13h"},
}

var stubTracks = []grid.Track{
	{Title: "La Javanaise", AlbumTitle: "Gainsbourg Percussions", MainArtists: []string{"Serge Gainsbourg"}},
	{Title: "Aline", AlbumTitle: "Les Paradis perdus", MainArtists: []string{"Christophe"}},
}

// GetGrid returns hourly programs over [start, end), a track nested in each program
// and a one hour gap every fourth hour.
func (s Stub) GetGrid(_ context.Context, station string, start, end time.Time) ([]grid.Step, error) {
	if !ValidStationCode(station) {
		return nil, &APIError{Op: "grid", Station: station, Err: ErrInvalidStation}
	}
	var steps []grid.Step
	slot := start.Truncate(time.Hour)
	for i := 0; slot.Before(end); i++ {
		next := slot.Add(time.Hour)
		switch {
		case i%4 == 3:
			// gap: nothing airs
		case i%4 == 2:
			steps = append(steps, grid.NewBlankStep(fmt.Sprintf("%s-blank-%d", station, slot.Unix()), slot, next, "Programme musical"))
		default:
			d := stubPrograms[i%len(stubPrograms)]
			d.ID = fmt.Sprintf("%s-diffusion-%d", station, slot.Unix())
			d.PublishedDate = slot
			steps = append(steps, grid.NewDiffusionStep(d.ID, slot, next, d))

			t := stubTracks[i%len(stubTracks)]
			t.ID = fmt.Sprintf("%s-track-%d", station, slot.Unix())
			trackStart := slot.Add(40 * time.Minute)
			steps = append(steps, grid.NewTrackStep(t.ID, trackStart, trackStart.Add(4*time.Minute), t))
		}
		slot = next
	}
	return steps, nil
}

// GetStations returns a fixed brand list.
func (Stub) GetStations(context.Context) ([]Brand, error) {
	return []Brand{
		{ID: "FRANCEINTER", Title: "France Inter"},
		{ID: "FRANCEINFO", Title: "franceinfo"},
		{ID: "FRANCECULTURE", Title: "France Culture"},
		{ID: "FRANCEMUSIQUE", Title: "France Musique"},
		{ID: "FIP", Title: "FIP", WebRadios: []Radio{
			{ID: "FIP_ROCK", Title: "FIP Rock"},
			{ID: "FIP_JAZZ", Title: "FIP Jazz"},
		}},
		{ID: "MOUV", Title: "Mouv'"},
		{ID: "FRANCEBLEU", Title: "France Bleu", LocalRadios: []Radio{
			{ID: "FRANCEBLEU_PARIS", Title: "France Bleu Paris"},
		}},
	}, nil
}
