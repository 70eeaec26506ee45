/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/friendsincode/radiofrance_bridge/internal/logbuffer"
)

const defaultLogLimit = 200

// handleLogs returns recent log entries, newest first, filtered by level,
// component and station.
func (a *API) handleLogs(w http.ResponseWriter, r *http.Request) {
	if a.logs == nil {
		writeError(w, http.StatusServiceUnavailable, "logs_disabled")
		return
	}
	q := r.URL.Query()
	query := logbuffer.Query{
		Level:     strings.ToLower(q.Get("level")),
		Component: q.Get("component"),
		Station:   strings.ToUpper(q.Get("station")),
		Limit:     defaultLogLimit,
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		query.Limit = n
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   a.logs.Len(),
		"entries": a.logs.Query(query),
	})
}
