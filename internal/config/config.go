package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Backend types.
const (
	BackendRedis = "redis"
	BackendBleve = "bleve"
	BackendSonic = "sonic"
)

// Config holds the searchsync configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Search   SearchConfig   `yaml:"search"`
	Ops      OpsConfig      `yaml:"ops"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// DatabaseConfig holds the host database connection.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, postgres (default: sqlite)
	DSN    string `yaml:"dsn"`
}

// SearchConfig lists the search backends in dispatch order.
type SearchConfig struct {
	Backends  []BackendConfig `yaml:"backends"`
	ChunkSize int             `yaml:"chunk_size"` // reindex batch size
}

// BackendConfig holds one search backend.
type BackendConfig struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`   // redis, bleve, sonic
	Manual      bool   `yaml:"manual"` // excluded from automatic dispatch, reindex only
	IndexPrefix string `yaml:"index_prefix"`

	Redis RedisConfig `yaml:"redis"`
	Bleve BleveConfig `yaml:"bleve"`
	Sonic SonicConfig `yaml:"sonic"`
}

// RedisConfig holds Redis Stack connection settings.
type RedisConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ClientName       string   `yaml:"client_name"`
	DialTimeout      int      `yaml:"dial_timeout_sec"` // 0 keeps the client default
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// BleveConfig holds embedded index settings.
type BleveConfig struct {
	Dir string `yaml:"dir"` // empty keeps indexes in memory
}

// SonicConfig holds sonic server settings.
type SonicConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
}

// OpsConfig holds the health and metrics server settings.
type OpsConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`

	// APIKeys guard /search; empty disables auth.
	APIKeys []string `yaml:"api_keys"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from path.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Search.ChunkSize <= 0 {
		c.Search.ChunkSize = 1000
	}
	for i := range c.Search.Backends {
		b := &c.Search.Backends[i]
		if b.Name == "" {
			b.Name = b.Type
		}
		switch b.Type {
		case BackendRedis:
			if b.IndexPrefix == "" {
				b.IndexPrefix = "search:"
			}
			if b.Redis.ReadinessTimeout <= 0 {
				b.Redis.ReadinessTimeout = 10
			}
		case BackendSonic:
			if b.IndexPrefix == "" {
				b.IndexPrefix = "search_"
			}
			if b.Sonic.Port <= 0 {
				b.Sonic.Port = 1491
			}
		}
	}
	if c.Ops.ReadTimeoutSec <= 0 {
		c.Ops.ReadTimeoutSec = 10
	}
	if c.Ops.WriteTimeoutSec <= 0 {
		c.Ops.WriteTimeoutSec = 10
	}
	if c.Ops.ShutdownSec <= 0 {
		c.Ops.ShutdownSec = 10
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver must be \"sqlite\" or \"postgres\", got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Ops.Port < 0 || c.Ops.Port > 65535 {
		return fmt.Errorf("ops.port must be between 0 and 65535, got %d", c.Ops.Port)
	}

	seen := make(map[string]bool, len(c.Search.Backends))
	for i, b := range c.Search.Backends {
		if b.Name == "" {
			return fmt.Errorf("search.backends[%d].name is required", i)
		}
		if seen[b.Name] {
			return fmt.Errorf("search.backends[%d]: duplicate name %q", i, b.Name)
		}
		seen[b.Name] = true

		switch b.Type {
		case BackendRedis:
			if len(b.Redis.Addrs) == 0 {
				return fmt.Errorf("search.backends.%s.redis.addrs is required", b.Name)
			}
			if b.Redis.DialTimeout < 0 {
				return fmt.Errorf("search.backends.%s.redis.dial_timeout_sec must not be negative", b.Name)
			}
		case BackendBleve:
		case BackendSonic:
			if b.Sonic.Host == "" {
				return fmt.Errorf("search.backends.%s.sonic.host is required", b.Name)
			}
		default:
			return fmt.Errorf(
				"search.backends.%s.type must be \"redis\", \"bleve\" or \"sonic\", got %q",
				b.Name, b.Type,
			)
		}
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
