/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus forwards airing changes to external brokers.
package eventbus

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/friendsincode/radiofrance_bridge/internal/events"
	"github.com/friendsincode/radiofrance_bridge/internal/station"
)

// Message is the envelope published to every sink.
type Message struct {
	EventType events.EventType   `json:"event_type"`
	Station   string             `json:"station"`
	State     station.NowPlaying `json:"state"`
	Timestamp time.Time          `json:"timestamp"`
	NodeID    string             `json:"node_id"`
	MessageID string             `json:"message_id"` // For deduplication
}

func marshalMessage(state station.NowPlaying, nodeID string, now time.Time) ([]byte, error) {
	return json.Marshal(Message{
		EventType: events.EventNowPlaying,
		Station:   state.Station,
		State:     state,
		Timestamp: now,
		NodeID:    nodeID,
		MessageID: uuid.NewString(),
	})
}

// UnmarshalMessage parses a forwarded message.
func UnmarshalMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal message: %w", err)
	}
	return &msg, nil
}

// NodeID identifies this bridge instance as <hostname>-<short uuid>.
func NodeID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "radiofrance-bridge"
	}
	return fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
}
