/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/friendsincode/radiofrance_bridge/internal/calendar"
)

type stationSummary struct {
	Code              string `json:"code"`
	Name              string `json:"name"`
	Airing            bool   `json:"airing"`
	Title             string `json:"title,omitempty"`
	LastUpdateSuccess bool   `json:"last_update_success"`
}

func (a *API) handleStationsList(w http.ResponseWriter, r *http.Request) {
	trackers := a.registry.All()
	out := make([]stationSummary, 0, len(trackers))
	for _, t := range trackers {
		state := t.State()
		out = append(out, stationSummary{
			Code:              t.Code(),
			Name:              t.Name(),
			Airing:            state.Airing,
			Title:             state.Title,
			LastUpdateSuccess: t.LastUpdateSuccess(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleNow(w http.ResponseWriter, r *http.Request) {
	t, ok := a.tracker(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, t.State())
}

func (a *API) handleGrid(w http.ResponseWriter, r *http.Request) {
	t, ok := a.tracker(w, r)
	if !ok {
		return
	}
	g := t.Grid()
	if g == nil {
		writeError(w, http.StatusServiceUnavailable, "grid_not_loaded")
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (a *API) handleEvent(w http.ResponseWriter, r *http.Request) {
	t, ok := a.tracker(w, r)
	if !ok {
		return
	}
	e, found := t.Event()
	if !found {
		writeError(w, http.StatusNotFound, "no_event")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// eventWindow parses start, end and tracks, defaulting to the fetched window and
// the station's calendar setting.
func eventWindow(r *http.Request, defStart, defEnd time.Time, defTracks bool) (time.Time, time.Time, bool, error) {
	q := r.URL.Query()
	start, end, tracks := defStart, defEnd, defTracks
	if v := q.Get("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return start, end, tracks, fmt.Errorf("invalid start: %w", err)
		}
		start = t
	}
	if v := q.Get("end"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return start, end, tracks, fmt.Errorf("invalid end: %w", err)
		}
		end = t
	}
	if v := q.Get("tracks"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return start, end, tracks, fmt.Errorf("invalid tracks: %w", err)
		}
		tracks = b
	}
	if !end.After(start) {
		return start, end, tracks, fmt.Errorf("end must be after start")
	}
	return start, end, tracks, nil
}

func (a *API) handleStationEvents(w http.ResponseWriter, r *http.Request) {
	t, ok := a.tracker(w, r)
	if !ok {
		return
	}
	g := t.Grid()
	if g == nil {
		writeError(w, http.StatusServiceUnavailable, "grid_not_loaded")
		return
	}
	start, end, tracks, err := eventWindow(r, g.Start, g.End, t.CalendarTracks())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, g.Events(start, end, tracks))
}

func (a *API) handleCalendar(w http.ResponseWriter, r *http.Request) {
	t, ok := a.tracker(w, r)
	if !ok {
		return
	}
	g := t.Grid()
	if g == nil {
		writeError(w, http.StatusServiceUnavailable, "grid_not_loaded")
		return
	}
	start, end, tracks, err := eventWindow(r, g.Start, g.End, t.CalendarTracks())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	body := calendar.Render(t.Name(), g.Events(start, end, tracks), a.now())
	w.Header().Set("Content-Type", calendar.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", calendar.Filename(t.Code(), start, end)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	t, ok := a.tracker(w, r)
	if !ok {
		return
	}
	if a.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history_disabled")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	rows, err := a.history.History(r.Context(), t.Code(), limit)
	if err != nil {
		a.logger.Error().Err(err).Str("station", t.Code()).Msg("history query failed")
		writeError(w, http.StatusInternalServerError, "history_failed")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	t, ok := a.tracker(w, r)
	if !ok {
		return
	}
	accepted := t.RequestRefresh()
	writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": accepted})
}
