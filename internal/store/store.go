/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package store persists airing states and history.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/friendsincode/radiofrance_bridge/internal/events"
	"github.com/friendsincode/radiofrance_bridge/internal/station"
)

// DefaultHistoryLimit bounds history queries without an explicit limit.
const DefaultHistoryLimit = 50

// Store reads and writes airing data.
type Store struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// New wraps an open database. The schema must already be migrated.
func New(db *gorm.DB, logger zerolog.Logger) *Store {
	return &Store{db: db, logger: logger.With().Str("component", "store").Logger()}
}

// SaveState upserts the last known state of a station.
func (s *Store) SaveState(ctx context.Context, state station.NowPlaying) error {
	row := stateRow(state)
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "station"}},
			UpdateAll: true,
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("save state %s: %w", state.Station, err)
	}
	return nil
}

// LoadState returns the persisted state of a station.
func (s *Store) LoadState(ctx context.Context, code string) (station.NowPlaying, bool, error) {
	var row AiringState
	err := s.db.WithContext(ctx).First(&row, "station = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return station.NowPlaying{}, false, nil
	}
	if err != nil {
		return station.NowPlaying{}, false, fmt.Errorf("load state %s: %w", code, err)
	}
	return row.nowPlaying(), true, nil
}

// RecordAiring appends an airing step to the history. Repeated observations of the
// same step are ignored; idle states are not recorded.
func (s *Store) RecordAiring(ctx context.Context, state station.NowPlaying) error {
	if !state.Airing {
		return nil
	}
	row := historyRow(state)
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("record airing %s/%s: %w", state.Station, state.StepID, err)
	}
	return nil
}

// History returns the most recent airings of a station, newest first.
func (s *Store) History(ctx context.Context, code string, limit int) ([]AiringHistory, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	var rows []AiringHistory
	err := s.db.WithContext(ctx).
		Where("station = ?", code).
		Order("starts_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", code, err)
	}
	return rows, nil
}

// RestoreAll seeds every tracker with its persisted state.
func (s *Store) RestoreAll(ctx context.Context, registry *station.Registry) {
	for _, t := range registry.All() {
		state, ok, err := s.LoadState(ctx, t.Code())
		if err != nil {
			s.logger.Warn().Err(err).Str("station", t.Code()).Msg("restore state failed")
			continue
		}
		if ok {
			t.Restore(state)
		}
	}
}

// Run persists every now_playing event until ctx is done. States the trackers of
// registry evaluated before the subscription was in place are persisted first.
func (s *Store) Run(ctx context.Context, bus *events.Bus, registry *station.Registry) {
	sub := bus.Subscribe(events.EventNowPlaying)
	defer bus.Unsubscribe(events.EventNowPlaying, sub)

	if registry != nil {
		for _, t := range registry.All() {
			if state := t.State(); !state.UpdatedAt.IsZero() {
				s.persist(ctx, state)
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-sub:
			if !ok {
				return
			}
			state, ok := payload[events.KeyState].(station.NowPlaying)
			if !ok {
				continue
			}
			s.persist(ctx, state)
		}
	}
}

func (s *Store) persist(ctx context.Context, state station.NowPlaying) {
	if err := s.SaveState(ctx, state); err != nil {
		s.logger.Error().Err(err).Str("station", state.Station).Msg("persist state failed")
	}
	if err := s.RecordAiring(ctx, state); err != nil {
		s.logger.Error().Err(err).Str("station", state.Station).Msg("record history failed")
	}
}
