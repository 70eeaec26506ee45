/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrCircuitOpen is returned while the Redis sink backs off after repeated failures.
var ErrCircuitOpen = errors.New("redis circuit open")

// RedisConfig contains Redis connection configuration.
type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	ChannelPrefix string

	// Timeouts
	DialTimeout  time.Duration
	WriteTimeout time.Duration

	// Circuit breaker
	MaxFailures   int
	CheckInterval time.Duration
}

// DefaultRedisConfig returns default Redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:          "localhost:6379",
		ChannelPrefix: "radiofrance:now_playing",
		DialTimeout:   5 * time.Second,
		WriteTimeout:  3 * time.Second,
		MaxFailures:   5,
		CheckInterval: 30 * time.Second,
	}
}

// RedisSink publishes to the radiofrance:now_playing:<station> channel. After
// MaxFailures consecutive errors it stops trying until CheckInterval has passed.
type RedisSink struct {
	client *redis.Client
	cfg    RedisConfig
	logger zerolog.Logger
	now    func() time.Time

	mu        sync.Mutex
	failCount int
	open      bool
	openedAt  time.Time
}

// NewRedisSink creates a Redis sink. An unreachable server is logged, not fatal:
// the circuit starts open and is retried later.
func NewRedisSink(cfg RedisConfig, logger zerolog.Logger) *RedisSink {
	logger = logger.With().Str("component", "redis").Logger()
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	s := &RedisSink{client: client, cfg: cfg, logger: logger, now: time.Now}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Addr).Msg("Redis unavailable, will retry")
		s.open = true
		s.openedAt = s.now()
	} else {
		logger.Info().Str("addr", cfg.Addr).Msg("Redis sink initialized")
	}
	return s
}

// Name implements Sink.
func (s *RedisSink) Name() string { return "redis" }

// Channel returns the pub/sub channel messages for station are published on.
func (s *RedisSink) Channel(station string) string {
	return redisChannel(s.cfg.ChannelPrefix, station)
}

func redisChannel(prefix, station string) string {
	return prefix + ":" + station
}

// Publish implements Sink.
func (s *RedisSink) Publish(ctx context.Context, station string, data []byte) error {
	if !s.allow() {
		return ErrCircuitOpen
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()

	if err := s.client.Publish(ctx, s.Channel(station), data).Err(); err != nil {
		s.recordFailure()
		return fmt.Errorf("redis publish: %w", err)
	}
	s.recordSuccess()
	return nil
}

// allow reports whether a publish may be attempted. An open circuit lets one
// attempt through once CheckInterval has elapsed.
func (s *RedisSink) allow() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return true
	}
	if s.now().Sub(s.openedAt) < s.cfg.CheckInterval {
		return false
	}
	s.openedAt = s.now()
	return true
}

func (s *RedisSink) recordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCount++
	if s.failCount >= s.cfg.MaxFailures && !s.open {
		s.logger.Warn().Int("fail_count", s.failCount).Msg("Redis failure threshold reached, pausing publication")
		s.open = true
		s.openedAt = s.now()
	}
}

func (s *RedisSink) recordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		s.logger.Info().Msg("Redis reachable again")
	}
	s.failCount = 0
	s.open = false
}

// Close closes the Redis client.
func (s *RedisSink) Close() error {
	return s.client.Close()
}
