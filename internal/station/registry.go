/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package station

import (
	"errors"
	"sync"
)

// ErrUnknownStation is returned for codes no tracker is registered under.
var ErrUnknownStation = errors.New("unknown station")

// Registry maps station codes to trackers, keeping registration order.
type Registry struct {
	mu       sync.RWMutex
	order    []string
	trackers map[string]*Tracker
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{trackers: make(map[string]*Tracker)}
}

// Add registers t, replacing any tracker with the same code.
func (r *Registry) Add(t *Tracker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.trackers[t.Code()]; !ok {
		r.order = append(r.order, t.Code())
	}
	r.trackers[t.Code()] = t
}

// Get returns the tracker of code.
func (r *Registry) Get(code string) (*Tracker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.trackers[code]
	if !ok {
		return nil, ErrUnknownStation
	}
	return t, nil
}

// All returns the trackers in registration order.
func (r *Registry) All() []*Tracker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Tracker, 0, len(r.order))
	for _, code := range r.order {
		out = append(out, r.trackers[code])
	}
	return out
}
