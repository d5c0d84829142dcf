package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Store      StoreConfig      `yaml:"store"`
	CheckIn    CheckInConfig    `yaml:"checkin"`
	Roster     RosterConfig     `yaml:"roster"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Projection ProjectionConfig `yaml:"projection"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	Enabled    bool   `yaml:"enabled"`
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	StationHeader   string  `yaml:"station_header"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // postgres, sqlite or memory
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogSQL                 bool   `yaml:"log_sql"`
}

// StoreConfig controls the shared check-in store.
type StoreConfig struct {
	PollIntervalSeconds int           `yaml:"poll_interval_seconds"`
	PollInterval        time.Duration `yaml:"-"`
}

// CheckInConfig holds the per-station reconciliation settings.
type CheckInConfig struct {
	StationID              string        `yaml:"station_id"`
	SelfScanGraceMillis    int           `yaml:"self_scan_grace_ms"`
	SelfScanGrace          time.Duration `yaml:"-"`
	NotificationTTLSeconds int           `yaml:"notification_ttl_seconds"`
	NotificationTTL        time.Duration `yaml:"-"`
	WriteTimeoutSeconds    int           `yaml:"write_timeout_seconds"`
	WriteTimeout           time.Duration `yaml:"-"`
}

// RosterConfig describes where the attendee roster comes from.
type RosterConfig struct {
	Path                  string              `yaml:"path"`
	ReloadIntervalSeconds int                 `yaml:"reload_interval_seconds"`
	ReloadInterval        time.Duration       `yaml:"-"`
	Aliases               map[string][]string `yaml:"aliases"`
}

// ProjectionConfig controls seat map and group statistics rendering.
type ProjectionConfig struct {
	GroupOrder        []string `yaml:"group_order"`
	UnknownGroupLabel string   `yaml:"unknown_group_label"`
	Locale            string   `yaml:"locale"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	applyEnv(&cfg)
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// ApplyDefaults fills in zero values and derives the duration fields.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.StationHeader == "" {
		cfg.Server.StationHeader = "X-Station-ID"
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}

	if cfg.Store.PollIntervalSeconds <= 0 {
		cfg.Store.PollIntervalSeconds = 2
	}
	cfg.Store.PollInterval = time.Duration(cfg.Store.PollIntervalSeconds) * time.Second

	if cfg.CheckIn.StationID == "" {
		cfg.CheckIn.StationID = uuid.NewString()
		log.Printf("checkin.station_id is not set; using generated id %s", cfg.CheckIn.StationID)
	}
	if cfg.CheckIn.SelfScanGraceMillis <= 0 {
		cfg.CheckIn.SelfScanGraceMillis = 2000
	}
	cfg.CheckIn.SelfScanGrace = time.Duration(cfg.CheckIn.SelfScanGraceMillis) * time.Millisecond
	if cfg.CheckIn.NotificationTTLSeconds <= 0 {
		cfg.CheckIn.NotificationTTLSeconds = 5
	}
	cfg.CheckIn.NotificationTTL = time.Duration(cfg.CheckIn.NotificationTTLSeconds) * time.Second
	if cfg.CheckIn.WriteTimeoutSeconds <= 0 {
		cfg.CheckIn.WriteTimeoutSeconds = 10
	}
	cfg.CheckIn.WriteTimeout = time.Duration(cfg.CheckIn.WriteTimeoutSeconds) * time.Second

	if cfg.Roster.ReloadIntervalSeconds <= 0 {
		cfg.Roster.ReloadIntervalSeconds = 30
	}
	cfg.Roster.ReloadInterval = time.Duration(cfg.Roster.ReloadIntervalSeconds) * time.Second

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	if cfg.Projection.UnknownGroupLabel == "" {
		cfg.Projection.UnknownGroupLabel = "Unassigned"
	}
	if cfg.Projection.Locale == "" {
		cfg.Projection.Locale = "vi"
	}
}

// applyEnv lets deployment environments override secrets and connection settings.
func applyEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		} else {
			log.Printf("ignoring invalid SERVER_PORT %q: %v", v, err)
		}
	}
	if v := os.Getenv("VAPID_PUBLIC_KEY"); v != "" {
		cfg.Push.PublicKey = v
	}
	if v := os.Getenv("VAPID_PRIVATE_KEY"); v != "" {
		cfg.Push.PrivateKey = v
	}
	if v := os.Getenv("STATION_ID"); v != "" {
		cfg.CheckIn.StationID = v
	}
}
