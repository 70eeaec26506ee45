/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package homeassistant exposes station trackers as Home Assistant sensors through
// MQTT discovery.
package homeassistant

import (
	"fmt"
	"strings"

	"github.com/friendsincode/radiofrance_bridge/internal/version"
)

// Manufacturer is reported on every station device.
const Manufacturer = "Radio France"

// Sensor objects published per station.
const (
	ObjectAiringNow  = "airing_now"
	ObjectAiringNext = "airing_next"
)

// Availability payloads.
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// StateNone is the sensor state when nothing airs.
const StateNone = "None"

// maxStateLength is the longest state Home Assistant accepts.
const maxStateLength = 255

// DiscoveryConfig is the retained payload announcing a sensor.
type DiscoveryConfig struct {
	Name                string `json:"name"`
	UniqueID            string `json:"unique_id"`
	ObjectID            string `json:"object_id,omitempty"`
	Icon                string `json:"icon,omitempty"`
	StateTopic          string `json:"state_topic"`
	JSONAttributesTopic string `json:"json_attributes_topic,omitempty"`
	AvailabilityTopic   string `json:"availability_topic"`
	PayloadAvailable    string `json:"payload_available"`
	PayloadNotAvailable string `json:"payload_not_available"`
	Device              Device `json:"device"`
}

// Device groups the sensors of one station, as a service entry.
type Device struct {
	Name         string   `json:"name"`
	Identifiers  []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model,omitempty"`
	EntryType    string   `json:"entry_type"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

// Topics derives every topic from the configured prefixes.
type Topics struct {
	DiscoveryPrefix string
	TopicPrefix     string
	NodeID          string
}

// Availability is the bridge-wide availability topic, also used as last will.
func (t Topics) Availability() string {
	return t.TopicPrefix + "/status"
}

// Birth is the topic Home Assistant announces itself on.
func (t Topics) Birth() string {
	return t.DiscoveryPrefix + "/status"
}

// Discovery is the config topic of a station sensor.
func (t Topics) Discovery(station, object string) string {
	return fmt.Sprintf("%s/sensor/%s/%s_%s/config", t.DiscoveryPrefix, t.NodeID, strings.ToLower(station), object)
}

// State is the state topic of a station sensor.
func (t Topics) State(station, object string) string {
	return fmt.Sprintf("%s/%s/%s/state", t.TopicPrefix, strings.ToLower(station), object)
}

// Attributes is the JSON attributes topic of a station sensor.
func (t Topics) Attributes(station, object string) string {
	return fmt.Sprintf("%s/%s/%s/attributes", t.TopicPrefix, strings.ToLower(station), object)
}

func (t Topics) discoveryConfig(station, name, object string) DiscoveryConfig {
	label := "Airing now on "
	icon := "mdi:radio"
	if object == ObjectAiringNext {
		label = "Airing next on "
		icon = "mdi:radio-tower"
	}
	return DiscoveryConfig{
		Name:                label + name,
		UniqueID:            fmt.Sprintf("radio_france_%s_%s", strings.ToLower(station), object),
		ObjectID:            fmt.Sprintf("radio_france_%s_%s", strings.ToLower(station), object),
		Icon:                icon,
		StateTopic:          t.State(station, object),
		JSONAttributesTopic: t.Attributes(station, object),
		AvailabilityTopic:   t.Availability(),
		PayloadAvailable:    PayloadOnline,
		PayloadNotAvailable: PayloadOffline,
		Device: Device{
			Name:         fmt.Sprintf("%s %s", Manufacturer, station),
			Identifiers:  []string{"radio_france_" + strings.ToLower(station)},
			Manufacturer: Manufacturer,
			Model:        name,
			EntryType:    "service",
			SWVersion:    version.Version,
		},
	}
}

func stateValue(title string) string {
	if title == "" {
		return StateNone
	}
	runes := []rune(title)
	if len(runes) > maxStateLength {
		return string(runes[:maxStateLength-1]) + "…"
	}
	return title
}
