/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package api serves the station trackers over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/friendsincode/radiofrance_bridge/internal/events"
	"github.com/friendsincode/radiofrance_bridge/internal/logbuffer"
	"github.com/friendsincode/radiofrance_bridge/internal/station"
	"github.com/friendsincode/radiofrance_bridge/internal/store"
)

// HistoryStore returns past airings; *store.Store implements it.
type HistoryStore interface {
	History(ctx context.Context, code string, limit int) ([]store.AiringHistory, error)
}

// API bundles the HTTP handlers.
type API struct {
	registry *station.Registry
	history  HistoryStore
	bus      *events.Bus
	logs     *logbuffer.Buffer
	logger   zerolog.Logger
	now      func() time.Time
}

// New creates the API. history may be nil when persistence is disabled.
func New(registry *station.Registry, history HistoryStore, bus *events.Bus, logger zerolog.Logger) *API {
	return &API{
		registry: registry,
		history:  history,
		bus:      bus,
		logger:   logger.With().Str("component", "api").Logger(),
		now:      time.Now,
	}
}

// SetLogBuffer enables the diagnostics log endpoint.
func (a *API) SetLogBuffer(buf *logbuffer.Buffer) {
	a.logs = buf
}

// Routes mounts the API under /api/v1.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ws", a.handleStream)
		r.Get("/logs", a.handleLogs)
		r.Route("/stations", func(r chi.Router) {
			r.Get("/", a.handleStationsList)
			r.Route("/{station}", func(r chi.Router) {
				r.Get("/now", a.handleNow)
				r.Get("/grid", a.handleGrid)
				r.Get("/event", a.handleEvent)
				r.Get("/events", a.handleStationEvents)
				r.Get("/calendar.ics", a.handleCalendar)
				r.Get("/history", a.handleHistory)
				r.Post("/refresh", a.handleRefresh)
			})
		})
	})
}

// tracker resolves the {station} URL parameter, writing a 404 when unknown.
func (a *API) tracker(w http.ResponseWriter, r *http.Request) (*station.Tracker, bool) {
	t, err := a.registry.Get(chi.URLParam(r, "station"))
	if errors.Is(err, station.ErrUnknownStation) {
		writeError(w, http.StatusNotFound, "unknown_station")
		return nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup_failed")
		return nil, false
	}
	return t, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
