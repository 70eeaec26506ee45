/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package radiofrance talks to the Radio France open API over GraphQL.
package radiofrance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/machinebox/graphql"
	"github.com/rs/zerolog"

	"github.com/friendsincode/radiofrance_bridge/internal/grid"
	"github.com/friendsincode/radiofrance_bridge/internal/telemetry"
	"github.com/friendsincode/radiofrance_bridge/internal/version"
)

// DefaultEndpoint is the public GraphQL endpoint.
const DefaultEndpoint = "https://openapi.radiofrance.fr/v1/graphql"

// ErrInvalidStation is returned for codes that are not GraphQL enum values.
var ErrInvalidStation = errors.New("invalid station code")

var stationCodePattern = regexp.MustCompile(`^[A-Z0-9_]+$`)

// ValidStationCode reports whether code can be sent as a StationsEnum value.
func ValidStationCode(code string) bool {
	return stationCodePattern.MatchString(code)
}

// APIError wraps a failed API operation.
type APIError struct {
	Op      string
	Station string
	Err     error
}

func (e *APIError) Error() string {
	if e.Station != "" {
		return fmt.Sprintf("radiofrance %s %s: %v", e.Op, e.Station, e.Err)
	}
	return fmt.Sprintf("radiofrance %s: %v", e.Op, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Config configures the API client.
type Config struct {
	Endpoint   string
	Token      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client runs the grid and brands queries.
type Client struct {
	gql    *graphql.Client
	token  string
	logger zerolog.Logger
}

// New creates a client. Outbound requests are traced.
func New(cfg Config, logger zerolog.Logger) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: telemetry.Transport(nil),
		}
	}

	c := &Client{
		gql:    graphql.NewClient(cfg.Endpoint, graphql.WithHTTPClient(hc)),
		token:  cfg.Token,
		logger: logger.With().Str("component", "radiofrance_api").Logger(),
	}
	c.gql.Log = func(s string) {
		c.logger.Trace().Msg(s)
	}
	return c
}

func (c *Client) newRequest(query string) *graphql.Request {
	req := graphql.NewRequest(query)
	req.Header.Set("x-token", c.token)
	req.Header.Set("User-Agent", "radiofrance-bridge/"+version.Version)
	return req
}

func (c *Client) run(ctx context.Context, op, station string, req *graphql.Request, resp any) error {
	ctx, span := telemetry.StartSpan(ctx, "radiofrance."+op, station)
	start := time.Now()

	err := c.gql.Run(ctx, req, resp)

	telemetry.APIRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	status := "ok"
	if err != nil {
		status = "error"
	}
	telemetry.APIRequestsTotal.WithLabelValues(op, status).Inc()
	telemetry.EndSpan(span, err)

	if err != nil {
		return &APIError{Op: op, Station: station, Err: err}
	}
	return nil
}

// GetGrid returns the normalized steps airing on station between start and end.
func (c *Client) GetGrid(ctx context.Context, station string, start, end time.Time) ([]grid.Step, error) {
	if !ValidStationCode(station) {
		return nil, &APIError{Op: "grid", Station: station, Err: ErrInvalidStation}
	}

	req := c.newRequest(gridQuery)
	req.Var("start", start.Unix())
	req.Var("end", end.Unix())
	req.Var("station", station)

	c.logger.Debug().
		Str("station", station).
		Time("start", start).
		Time("end", end).
		Msg("fetching grid")

	var resp gridResponse
	if err := c.run(ctx, "grid", station, req, &resp); err != nil {
		return nil, err
	}

	steps := make([]grid.Step, 0, len(resp.Grid))
	for _, raw := range resp.Grid {
		s, ok := raw.step()
		if !ok {
			c.logger.Warn().
				Str("station", station).
				Str("step", raw.ID).
				Str("typename", raw.Typename).
				Msg("grid step has neither diffusion nor track content, keeping it as blank")
		}
		steps = append(steps, s)
	}
	return steps, nil
}

// GetStations returns the brands with their local and web radios.
func (c *Client) GetStations(ctx context.Context) ([]Brand, error) {
	var resp brandsResponse
	if err := c.run(ctx, "brands", "", c.newRequest(brandsQuery), &resp); err != nil {
		return nil, err
	}
	return resp.Brands, nil
}
