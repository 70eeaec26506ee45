/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	ws "nhooyr.io/websocket"

	"github.com/friendsincode/radiofrance_bridge/internal/events"
	"github.com/friendsincode/radiofrance_bridge/internal/telemetry"
)

const pingInterval = 15 * time.Second

// handleStream streams now_playing events over a WebSocket. The optional
// ?stations=FIP,MOUV query restricts the stream to those stations.
func (a *API) handleStream(w http.ResponseWriter, r *http.Request) {
	filter := parseStations(r.URL.Query().Get("stations"))

	conn, err := ws.Accept(w, r, &ws.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		a.logger.Error().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(ws.StatusInternalError, "server error")

	telemetry.WebSocketConnections.Inc()
	defer telemetry.WebSocketConnections.Dec()

	// Reads are only needed to observe the client closing.
	ctx := conn.CloseRead(r.Context())

	sub := a.bus.Subscribe(events.EventNowPlaying)
	defer a.bus.Unsubscribe(events.EventNowPlaying, sub)

	// Current states first, so clients do not wait for the next transition.
	for _, t := range a.registry.All() {
		if len(filter) > 0 && !filter[t.Code()] {
			continue
		}
		payload := events.Payload{events.KeyStation: t.Code(), events.KeyState: t.State()}
		if err := writeEvent(ctx, conn, events.EventNowPlaying, payload); err != nil {
			return
		}
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(ws.StatusNormalClosure, "context cancelled")
			return
		case <-ticker.C:
			if err := conn.Write(ctx, ws.MessageText, []byte(`{"type":"ping"}`)); err != nil {
				a.logger.Debug().Err(err).Msg("websocket ping failed")
				return
			}
		case payload, ok := <-sub:
			if !ok {
				return
			}
			if len(filter) > 0 && !filter[payload.Station()] {
				continue
			}
			if err := writeEvent(ctx, conn, events.EventNowPlaying, payload); err != nil {
				a.logger.Debug().Err(err).Msg("websocket write failed")
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *ws.Conn, eventType events.EventType, payload events.Payload) error {
	data, err := json.Marshal(map[string]any{
		"type":    eventType,
		"payload": payload,
	})
	if err != nil {
		return err
	}
	return conn.Write(ctx, ws.MessageText, data)
}

func parseStations(v string) map[string]bool {
	out := make(map[string]bool)
	for _, part := range strings.Split(v, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part != "" {
			out[part] = true
		}
	}
	return out
}
