package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Relay      RelayConfig      `yaml:"relay"`
	Engine     EngineConfig     `yaml:"engine"`
	Machines   []MachineSeed    `yaml:"machines"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// RelayConfig holds the connection settings for the hardware relay bridge.
// An empty base URL disables physical door control entirely.
type RelayConfig struct {
	BaseURL        string        `yaml:"base_url"`
	TimeoutSeconds int           `yaml:"timeout_seconds"`
	Timeout        time.Duration `yaml:"-"` // Ignored by YAML parser
}

// EngineConfig tunes the allocation engine.
type EngineConfig struct {
	LockWaitMillis int           `yaml:"lock_wait_millis"`
	LockWait       time.Duration `yaml:"-"` // Ignored by YAML parser
}

// MachineSeed describes one locker machine provisioned at startup.
// The highest compartment number of each machine is reserved and is
// never handed out by allocation.
type MachineSeed struct {
	ID           int64  `yaml:"id"`
	Name         string `yaml:"name"`
	Location     string `yaml:"location"`
	Compartments int    `yaml:"compartments"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
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

	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 5000
	}

	if cfg.Relay.TimeoutSeconds <= 0 {
		cfg.Relay.TimeoutSeconds = 5
	}
	cfg.Relay.Timeout = time.Duration(cfg.Relay.TimeoutSeconds) * time.Second

	if cfg.Engine.LockWaitMillis <= 0 {
		cfg.Engine.LockWaitMillis = 500
	}
	cfg.Engine.LockWait = time.Duration(cfg.Engine.LockWaitMillis) * time.Millisecond

	for i := range cfg.Machines {
		if cfg.Machines[i].Compartments <= 0 {
			cfg.Machines[i].Compartments = 16
		}
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	return &cfg, nil
}
