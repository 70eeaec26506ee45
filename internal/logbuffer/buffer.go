/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package logbuffer keeps the most recent log events in memory for the
// diagnostics endpoint.
package logbuffer

import (
	"encoding/json"
	"sync"
	"time"
)

// DefaultCapacity is the number of entries kept when New is given no capacity.
const DefaultCapacity = 2000

// Entry is one decoded log event.
type Entry struct {
	Time      time.Time      `json:"time"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Component string         `json:"component,omitempty"`
	Station   string         `json:"station,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Buffer is a fixed size ring of entries, safe for concurrent use.
type Buffer struct {
	mu      sync.RWMutex
	entries []Entry
	head    int
	count   int
}

// New creates a buffer holding up to capacity entries.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{entries: make([]Entry, capacity)}
}

// Add appends an entry, evicting the oldest when full.
func (b *Buffer) Add(e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[b.head] = e
	b.head = (b.head + 1) % len(b.entries)
	if b.count < len(b.entries) {
		b.count++
	}
}

// Len returns the number of buffered entries.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Query filters entries. Empty fields match everything.
type Query struct {
	Level     string
	Component string
	Station   string
	Limit     int
}

func (q Query) match(e Entry) bool {
	return (q.Level == "" || e.Level == q.Level) &&
		(q.Component == "" || e.Component == q.Component) &&
		(q.Station == "" || e.Station == q.Station)
}

// Query returns the matching entries, newest first.
func (b *Buffer) Query(q Query) []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Entry, 0)
	for i := 1; i <= b.count; i++ {
		e := b.entries[(b.head-i+len(b.entries))%len(b.entries)]
		if !q.match(e) {
			continue
		}
		out = append(out, e)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out
}

// Writer decodes zerolog JSON events into the buffer. Lines that are not JSON
// objects are ignored.
type Writer struct {
	buffer *Buffer
	now    func() time.Time
}

// NewWriter returns an io.Writer feeding buf.
func NewWriter(buf *Buffer) *Writer {
	return &Writer{buffer: buf, now: time.Now}
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	var raw map[string]any
	if err := json.Unmarshal(p, &raw); err != nil {
		return len(p), nil
	}

	e := Entry{Time: w.now()}
	e.Level, _ = raw["level"].(string)
	e.Message, _ = raw["message"].(string)
	e.Component, _ = raw["component"].(string)
	e.Station, _ = raw["station"].(string)
	switch ts := raw["time"].(type) {
	case float64:
		e.Time = time.Unix(int64(ts), 0)
	case string:
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			e.Time = t
		}
	}
	for _, k := range []string{"level", "message", "component", "station", "time"} {
		delete(raw, k)
	}
	if len(raw) > 0 {
		e.Fields = raw
	}

	w.buffer.Add(e)
	return len(p), nil
}
