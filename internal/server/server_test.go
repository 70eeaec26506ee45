package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/radiofrance_bridge/internal/config"
	"github.com/friendsincode/radiofrance_bridge/internal/grid"
	"github.com/friendsincode/radiofrance_bridge/internal/station"
)

type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeFetcher) GetGrid(_ context.Context, code string, start, end time.Time) ([]grid.Step, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	now := time.Now()
	return []grid.Step{
		grid.NewDiffusionStep(code+"-live", now.Add(-10*time.Minute), now.Add(50*time.Minute), grid.Diffusion{Title: "Club Jazzafip"}),
	}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Environment:      "test",
		HTTPBind:         "127.0.0.1",
		HTTPPort:         0,
		Stations:         []config.Station{{Code: "FIP", Name: "FIP", UpdateInterval: time.Hour}},
		UpdateInterval:   time.Hour,
		EvaluateInterval: time.Hour,
		Lookbehind:       2 * time.Hour,
		Lookahead:        6 * time.Hour,
	}
}

func newTestServer(t *testing.T, cfg *config.Config, fetcher *fakeFetcher) *Server {
	t.Helper()
	srv, err := New(cfg, fetcher, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func waitForState(t *testing.T, tr *station.Tracker) station.NowPlaying {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if s := tr.State(); s.Airing {
			return s
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("tracker never reported an airing step")
	return station.NowPlaying{}
}

func TestServerServesNowPlaying(t *testing.T) {
	srv := newTestServer(t, testConfig(), &fakeFetcher{})
	tr, err := srv.Registry().Get("FIP")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	waitForState(t, tr)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stations/FIP/now", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var state station.NowPlaying
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if state.Title != "Club Jazzafip" {
		t.Fatalf("title = %q", state.Title)
	}
}

func TestHealthReportsStations(t *testing.T) {
	srv := newTestServer(t, testConfig(), &fakeFetcher{err: errors.New("api down")})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" {
		t.Fatalf("status = %q", resp.Status)
	}
	if ok, present := resp.Stations["FIP"]; !present || ok {
		t.Fatalf("stations = %v", resp.Stations)
	}
}

func TestHistoryWithSQLite(t *testing.T) {
	cfg := testConfig()
	cfg.DBBackend = config.DatabaseSQLite
	cfg.DBDSN = ":memory:"
	srv := newTestServer(t, cfg, &fakeFetcher{})
	tr, _ := srv.Registry().Get("FIP")
	waitForState(t, tr)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stations/FIP/history", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var rows []map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(rows) == 1 && rows[0]["step_id"] == "FIP-live" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("airing never recorded")
}

func TestHistoryDisabledWithoutDSN(t *testing.T) {
	srv := newTestServer(t, testConfig(), &fakeFetcher{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stations/FIP/history", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	h := securityHeadersMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stations/", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("X-Content-Type-Options=%q, want nosniff", got)
	}
	if got := rr.Header().Get("Strict-Transport-Security"); got != "" {
		t.Fatalf("expected no HSTS on non-HTTPS request, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Fatalf("Strict-Transport-Security=%q", got)
	}
}
