/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/friendsincode/radiofrance_bridge/internal/radiofrance"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Station is the per-station configuration, the equivalent of one config entry.
type Station struct {
	Code           string        `yaml:"code"`
	Name           string        `yaml:"name"`
	UpdateInterval time.Duration `yaml:"-"`
	CalendarTracks bool          `yaml:"calendar_tracks"`

	UpdateIntervalMinutes int `yaml:"update_interval_minutes"`
}

// DisplayName returns the configured name or the station code.
func (s Station) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Code
}

type stationsFile struct {
	Stations []Station `yaml:"stations"`
}

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int

	// Radio France API
	APIKey       string
	APIURL       string
	Stub         bool // RADIOFRANCE_STUB: serve canned grids, no network
	APIFail      bool // RADIOFRANCE_APIFAIL: fail every update on purpose
	Stations     []Station
	StationsFile string

	// Coordinator
	UpdateInterval   time.Duration
	EvaluateInterval time.Duration
	Lookbehind       time.Duration
	Lookahead        time.Duration
	CalendarTracks   bool

	// MQTT / Home Assistant discovery
	MQTTBroker          string
	MQTTPort            int
	MQTTUser            string
	MQTTPassword        string
	MQTTClientID        string
	MQTTDiscoveryPrefix string
	MQTTTopicPrefix     string

	// Persistence
	DBBackend DatabaseBackend
	DBDSN     string

	// Fan-out
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	NATSURL       string

	// S3 calendar snapshots
	S3Bucket          string
	S3Region          string
	S3Endpoint        string // For S3-compatible services (MinIO, Spaces, etc.)
	S3Prefix          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3UsePathStyle    bool // Required for MinIO

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("RADIOFRANCE_ENV", "production"),
		HTTPBind:    getEnv("RADIOFRANCE_HTTP_BIND", "0.0.0.0"),
		HTTPPort:    getEnvInt("RADIOFRANCE_HTTP_PORT", 8080),

		APIKey:       getEnv("RADIOFRANCE_API_KEY", ""),
		APIURL:       getEnv("RADIOFRANCE_API_URL", radiofrance.DefaultEndpoint),
		Stub:         getEnvBool("RADIOFRANCE_STUB", false),
		APIFail:      os.Getenv("RADIOFRANCE_APIFAIL") != "",
		StationsFile: getEnv("RADIOFRANCE_STATIONS_FILE", ""),

		UpdateInterval:   time.Duration(getEnvInt("RADIOFRANCE_UPDATE_INTERVAL_MINUTES", 60)) * time.Minute,
		EvaluateInterval: time.Duration(getEnvInt("RADIOFRANCE_EVALUATE_INTERVAL_SECONDS", 30)) * time.Second,
		Lookbehind:       time.Duration(getEnvInt("RADIOFRANCE_LOOKBEHIND_HOURS", 2)) * time.Hour,
		Lookahead:        time.Duration(getEnvInt("RADIOFRANCE_LOOKAHEAD_HOURS", 6)) * time.Hour,
		CalendarTracks:   getEnvBool("RADIOFRANCE_CALENDAR_TRACKS", false),

		MQTTBroker:          getEnv("RADIOFRANCE_MQTT_BROKER", ""),
		MQTTPort:            getEnvInt("RADIOFRANCE_MQTT_PORT", 1883),
		MQTTUser:            getEnv("RADIOFRANCE_MQTT_USER", ""),
		MQTTPassword:        getEnv("RADIOFRANCE_MQTT_PASSWORD", ""),
		MQTTClientID:        getEnv("RADIOFRANCE_MQTT_CLIENT_ID", "radiofrance-bridge"),
		MQTTDiscoveryPrefix: getEnv("RADIOFRANCE_MQTT_DISCOVERY_PREFIX", "homeassistant"),
		MQTTTopicPrefix:     getEnv("RADIOFRANCE_MQTT_TOPIC_PREFIX", "radiofrance"),

		DBBackend: DatabaseBackend(getEnv("RADIOFRANCE_DB_BACKEND", string(DatabaseSQLite))),
		DBDSN:     getEnv("RADIOFRANCE_DB_DSN", ""),

		RedisAddr:     getEnv("RADIOFRANCE_REDIS_ADDR", ""),
		RedisPassword: getEnv("RADIOFRANCE_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("RADIOFRANCE_REDIS_DB", 0),
		NATSURL:       getEnv("RADIOFRANCE_NATS_URL", ""),

		S3Bucket:          getEnv("RADIOFRANCE_S3_BUCKET", ""),
		S3Region:          getEnvAny([]string{"RADIOFRANCE_S3_REGION", "AWS_REGION"}, "us-east-1"),
		S3Endpoint:        getEnv("RADIOFRANCE_S3_ENDPOINT", ""),
		S3Prefix:          getEnv("RADIOFRANCE_S3_PREFIX", "calendars"),
		S3AccessKeyID:     getEnvAny([]string{"RADIOFRANCE_S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"}, ""),
		S3SecretAccessKey: getEnvAny([]string{"RADIOFRANCE_S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"}, ""),
		S3UsePathStyle:    getEnvBool("RADIOFRANCE_S3_USE_PATH_STYLE", false),

		TracingEnabled:    getEnvBool("RADIOFRANCE_TRACING_ENABLED", false),
		OTLPEndpoint:      getEnv("RADIOFRANCE_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloat("RADIOFRANCE_TRACING_SAMPLE_RATE", 1.0),
	}

	for _, code := range splitList(getEnv("RADIOFRANCE_STATIONS", "")) {
		cfg.Stations = append(cfg.Stations, Station{Code: code})
	}
	if cfg.StationsFile != "" {
		if err := cfg.loadStationsFile(cfg.StationsFile); err != nil {
			return nil, err
		}
	}
	for i := range cfg.Stations {
		if cfg.Stations[i].UpdateIntervalMinutes > 0 {
			cfg.Stations[i].UpdateInterval = time.Duration(cfg.Stations[i].UpdateIntervalMinutes) * time.Minute
		} else {
			cfg.Stations[i].UpdateInterval = cfg.UpdateInterval
		}
		if cfg.CalendarTracks {
			cfg.Stations[i].CalendarTracks = true
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadStationsFile merges the YAML station list into cfg. File entries override
// stations of the same code declared in RADIOFRANCE_STATIONS.
func (c *Config) loadStationsFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read stations file: %w", err)
	}
	var file stationsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse stations file %s: %w", path, err)
	}
	for _, st := range file.Stations {
		st.Code = strings.ToUpper(strings.TrimSpace(st.Code))
		replaced := false
		for i := range c.Stations {
			if c.Stations[i].Code == st.Code {
				c.Stations[i] = st
				replaced = true
				break
			}
		}
		if !replaced {
			c.Stations = append(c.Stations, st)
		}
	}
	return nil
}

// ValidateAPI checks the settings needed to reach the Radio France API.
func (c *Config) ValidateAPI() error {
	if !c.Stub && c.APIKey == "" {
		return fmt.Errorf("RADIOFRANCE_API_KEY must be provided (or set RADIOFRANCE_STUB)")
	}
	return nil
}

func (c *Config) validate() error {
	if err := c.ValidateAPI(); err != nil {
		return err
	}
	if c.UpdateInterval <= 0 {
		return fmt.Errorf("RADIOFRANCE_UPDATE_INTERVAL_MINUTES must be positive")
	}
	if c.EvaluateInterval <= 0 {
		return fmt.Errorf("RADIOFRANCE_EVALUATE_INTERVAL_SECONDS must be positive")
	}
	if c.Lookbehind < 0 || c.Lookahead <= 0 {
		return fmt.Errorf("invalid grid window: lookbehind %s, lookahead %s", c.Lookbehind, c.Lookahead)
	}
	seen := make(map[string]struct{}, len(c.Stations))
	for _, st := range c.Stations {
		if !radiofrance.ValidStationCode(st.Code) {
			return fmt.Errorf("invalid station code %q", st.Code)
		}
		if _, dup := seen[st.Code]; dup {
			return fmt.Errorf("station %s configured twice", st.Code)
		}
		seen[st.Code] = struct{}{}
	}
	if c.DBDSN != "" && c.DBBackend != DatabasePostgres && c.DBBackend != DatabaseMySQL && c.DBBackend != DatabaseSQLite {
		return fmt.Errorf("unsupported database backend %q", c.DBBackend)
	}
	if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
		return fmt.Errorf("RADIOFRANCE_TRACING_SAMPLE_RATE must be between 0 and 1")
	}
	return nil
}

// MQTTEnabled reports whether a broker is configured.
func (c *Config) MQTTEnabled() bool {
	return c.MQTTBroker != ""
}

// MQTTBrokerURL returns the broker URL paho expects.
func (c *Config) MQTTBrokerURL() string {
	if strings.Contains(c.MQTTBroker, "://") {
		return c.MQTTBroker
	}
	return fmt.Sprintf("tcp://%s:%d", c.MQTTBroker, c.MQTTPort)
}

// Station returns the configuration of code.
func (c *Config) Station(code string) (Station, bool) {
	for _, st := range c.Stations {
		if st.Code == code {
			return st, true
		}
	}
	return Station{}, false
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "true" || v == "1" || v == "yes" {
			return true
		}
		if v == "false" || v == "0" || v == "no" {
			return false
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return def
}
