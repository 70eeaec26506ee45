/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/friendsincode/radiofrance_bridge/internal/api"
	"github.com/friendsincode/radiofrance_bridge/internal/config"
	"github.com/friendsincode/radiofrance_bridge/internal/coordinator"
	"github.com/friendsincode/radiofrance_bridge/internal/eventbus"
	"github.com/friendsincode/radiofrance_bridge/internal/events"
	"github.com/friendsincode/radiofrance_bridge/internal/homeassistant"
	"github.com/friendsincode/radiofrance_bridge/internal/logbuffer"
	"github.com/friendsincode/radiofrance_bridge/internal/radiofrance"
	"github.com/friendsincode/radiofrance_bridge/internal/station"
	"github.com/friendsincode/radiofrance_bridge/internal/storage"
	"github.com/friendsincode/radiofrance_bridge/internal/store"
	"github.com/friendsincode/radiofrance_bridge/internal/telemetry"
	"github.com/friendsincode/radiofrance_bridge/internal/version"
)

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	fetcher      coordinator.Fetcher
	logBuffer    *logbuffer.Buffer
	bus          *events.Bus
	registry     *station.Registry
	coordinators []*coordinator.Coordinator
	store        *store.Store
	mqtt         *homeassistant.Client
	publisher    *homeassistant.Publisher
	forwarder    *eventbus.Forwarder
	calendars    *storage.CalendarPublisher
	api          *api.API

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies. A nil fetcher selects the
// Radio France client, or the canned stub when cfg.Stub is set. logBuf may be nil.
func New(cfg *config.Config, fetcher coordinator.Fetcher, logBuf *logbuffer.Buffer, logger zerolog.Logger) (*Server, error) {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware("radiofrance-bridge"))
	router.Use(telemetry.MetricsMiddleware)
	router.Use(func(next http.Handler) http.Handler {
		timeout := middleware.Timeout(60 * time.Second)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// WebSocket streams are long lived.
			if r.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, r)
				return
			}
			timeout(next).ServeHTTP(w, r)
		})
	})

	srv := &Server{
		cfg:       cfg,
		logger:    logger,
		router:    router,
		fetcher:   fetcher,
		logBuffer: logBuf,
		bus:       events.NewBus(),
		registry:  station.NewRegistry(),
	}

	if err := srv.initDependencies(); err != nil {
		srv.Close()
		return nil, err
	}

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	addr := fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort)
	srv.httpServer = &http.Server{
		Addr:              addr,
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		// WriteTimeout stays 0 for WebSocket streams; the middleware timeout covers the rest.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	return srv, nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) initDependencies() error {
	if s.fetcher == nil {
		s.fetcher = NewFetcher(s.cfg, s.logger)
	}

	if s.cfg.APIFail {
		s.logger.Warn().Msg("RADIOFRANCE_APIFAIL is set, every grid update will fail")
	}
	for _, st := range s.cfg.Stations {
		c := coordinator.New(s.fetcher, s.bus, coordinator.Options{
			Station:        st.Code,
			UpdateInterval: st.UpdateInterval,
			Lookbehind:     s.cfg.Lookbehind,
			Lookahead:      s.cfg.Lookahead,
			ForceFailure:   s.cfg.APIFail,
		}, s.logger)
		s.coordinators = append(s.coordinators, c)

		s.registry.Add(station.NewTracker(c, s.bus, station.Options{
			Code:             st.Code,
			Name:             st.DisplayName(),
			CalendarTracks:   st.CalendarTracks,
			EvaluateInterval: s.cfg.EvaluateInterval,
		}, s.logger))
	}
	s.logger.Info().Int("stations", len(s.cfg.Stations)).Msg("station trackers ready")

	if s.cfg.DBDSN != "" {
		database, err := store.Connect(s.cfg.DBBackend, s.cfg.DBDSN)
		if err != nil {
			return err
		}
		s.DeferClose(func() error { return store.Close(database) })
		if err := store.Migrate(database); err != nil {
			return err
		}
		s.store = store.New(database, s.logger)
		s.store.RestoreAll(context.Background(), s.registry)
		s.logger.Info().Str("backend", string(s.cfg.DBBackend)).Msg("airing history enabled")
	}

	if err := s.initFanOut(); err != nil {
		return err
	}

	if s.cfg.S3Bucket != "" {
		objects, err := storage.NewS3Store(context.Background(), storage.S3Config{
			Bucket:          s.cfg.S3Bucket,
			Region:          s.cfg.S3Region,
			Endpoint:        s.cfg.S3Endpoint,
			AccessKeyID:     s.cfg.S3AccessKeyID,
			SecretAccessKey: s.cfg.S3SecretAccessKey,
			UsePathStyle:    s.cfg.S3UsePathStyle,
		}, s.logger)
		if err != nil {
			return fmt.Errorf("init calendar storage: %w", err)
		}
		s.calendars = storage.NewCalendarPublisher(objects, s.cfg.S3Prefix, s.registry, s.logger)
		s.logger.Info().Str("bucket", s.cfg.S3Bucket).Str("prefix", s.cfg.S3Prefix).Msg("calendar snapshots enabled")
	}

	if s.cfg.MQTTEnabled() {
		if err := s.initMQTT(); err != nil {
			return err
		}
	}

	// A nil *store.Store must not reach the API as a non-nil interface.
	var history api.HistoryStore
	if s.store != nil {
		history = s.store
	}
	s.api = api.New(s.registry, history, s.bus, s.logger)
	if s.logBuffer != nil {
		s.api.SetLogBuffer(s.logBuffer)
	}
	return nil
}

// NewFetcher returns the grid source selected by cfg.
func NewFetcher(cfg *config.Config, logger zerolog.Logger) coordinator.Fetcher {
	if cfg.Stub {
		logger.Warn().Msg("RADIOFRANCE_STUB is set, serving canned grids")
		return radiofrance.Stub{}
	}
	return radiofrance.New(radiofrance.Config{
		Endpoint: cfg.APIURL,
		Token:    cfg.APIKey,
	}, logger)
}

func (s *Server) initFanOut() error {
	var sinks []eventbus.Sink
	if s.cfg.NATSURL != "" {
		natsCfg := eventbus.DefaultNATSConfig()
		natsCfg.URL = s.cfg.NATSURL
		sink, err := eventbus.NewNATSSink(natsCfg, s.logger)
		if err != nil {
			return err
		}
		sinks = append(sinks, sink)
	}
	if s.cfg.RedisAddr != "" {
		redisCfg := eventbus.DefaultRedisConfig()
		redisCfg.Addr = s.cfg.RedisAddr
		redisCfg.Password = s.cfg.RedisPassword
		redisCfg.DB = s.cfg.RedisDB
		sinks = append(sinks, eventbus.NewRedisSink(redisCfg, s.logger))
	}
	if len(sinks) == 0 {
		return nil
	}
	s.forwarder = eventbus.NewForwarder(sinks, eventbus.NodeID(), s.logger)
	s.DeferClose(s.forwarder.Close)
	return nil
}

func (s *Server) initMQTT() error {
	topics := homeassistant.Topics{
		DiscoveryPrefix: s.cfg.MQTTDiscoveryPrefix,
		TopicPrefix:     s.cfg.MQTTTopicPrefix,
		NodeID:          s.cfg.MQTTClientID,
	}

	// paho may report the first connection before Dial returns; that one is
	// announced explicitly below.
	var current atomic.Pointer[homeassistant.Publisher]
	client, err := homeassistant.Dial(homeassistant.ClientConfig{
		BrokerURL: s.cfg.MQTTBrokerURL(),
		ClientID:  s.cfg.MQTTClientID,
		Username:  s.cfg.MQTTUser,
		Password:  s.cfg.MQTTPassword,
		WillTopic: topics.Availability(),
	}, func() {
		if p := current.Load(); p != nil {
			p.OnConnect()
		}
	}, s.logger)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	s.mqtt = client
	s.publisher = homeassistant.NewPublisher(topics, client, s.registry, s.bus, s.logger)
	current.Store(s.publisher)
	s.publisher.OnConnect()

	s.DeferClose(func() error {
		err := s.publisher.Shutdown()
		client.Close()
		return err
	})
	return nil
}

// HTTPServer returns the HTTP server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Registry returns the station trackers.
func (s *Server) Registry() *station.Registry {
	return s.registry
}

// Close stops background workers and releases resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}

// DeferClose registers a cleanup function run by Close.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	if s.store != nil {
		s.goRun(func() { s.store.Run(ctx, s.bus, s.registry) })
	}
	if s.publisher != nil {
		s.goRun(func() { s.publisher.Run(ctx) })
	}
	if s.forwarder != nil {
		s.goRun(func() { s.forwarder.Run(ctx, s.bus) })
	}
	if s.calendars != nil {
		s.goRun(func() { s.calendars.Run(ctx, s.bus) })
	}

	for _, t := range s.registry.All() {
		s.goRun(func() { t.Run(ctx) })
	}
	for _, c := range s.coordinators {
		s.goRun(func() { c.Run(ctx) })
	}
}

func (s *Server) goRun(fn func()) {
	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		fn()
	}()
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}

type healthResponse struct {
	Status   string          `json:"status"`
	Version  string          `json:"version"`
	Stations map[string]bool `json:"stations"`
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", telemetry.Handler())
	s.api.Routes(s.router)
}

// handleHealth reports per-station update health. The process is healthy as long
// as it serves; a failed update is visible in the station map.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:   "ok",
		Version:  version.Version,
		Stations: make(map[string]bool),
	}
	for _, t := range s.registry.All() {
		resp.Stations[t.Code()] = t.LastUpdateSuccess()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}
