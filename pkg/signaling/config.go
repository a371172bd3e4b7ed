package signaling

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// RelayConfig is the relay's file and environment configuration.
type RelayConfig struct {
	Listen           string        `yaml:"listen"`
	MetricsNamespace string        `yaml:"metrics_namespace"`
	MailboxTTL       time.Duration `yaml:"mailbox_ttl"`
	MailboxLimit     int           `yaml:"mailbox_limit"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Environment variables that override RelayConfig fields.
const (
	EnvListen        = "QUANTUM_CALL_LISTEN"
	EnvRedisAddr     = "QUANTUM_CALL_REDIS_ADDR"
	EnvRedisPassword = "QUANTUM_CALL_REDIS_PASSWORD"
	EnvRedisDB       = "QUANTUM_CALL_REDIS_DB"
	EnvLogLevel      = "QUANTUM_CALL_LOG_LEVEL"
)

// DefaultRelayConfig returns the configuration used when no file is given.
func DefaultRelayConfig() RelayConfig {
	var c RelayConfig
	c.Listen = ":8443"
	c.MetricsNamespace = "quantum_call"
	c.MailboxTTL = DefaultMailboxTTL
	c.MailboxLimit = DefaultMailboxLimit
	c.Log.Level = "info"
	c.Log.Format = "text"
	return c
}

// LoadRelayConfig reads a YAML file over the defaults and then applies
// environment overrides. An empty path skips the file.
func LoadRelayConfig(path string) (RelayConfig, error) {
	cfg := DefaultRelayConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *RelayConfig) applyEnv() error {
	if v := os.Getenv(EnvListen); v != "" {
		c.Listen = v
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv(EnvRedisPassword); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv(EnvRedisDB); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRedisDB, err)
		}
		c.Redis.DB = db
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate checks field ranges.
func (c RelayConfig) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.MailboxTTL < 0 {
		return fmt.Errorf("mailbox_ttl must not be negative")
	}
	if c.MailboxLimit < 0 {
		return fmt.Errorf("mailbox_limit must not be negative")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("redis db must not be negative")
	}
	return nil
}

// NewMailbox returns a RedisMailbox when a Redis address is configured and a
// MemoryMailbox otherwise.
func (c RelayConfig) NewMailbox() Mailbox {
	if c.Redis.Addr != "" {
		return NewRedisMailbox(RedisMailboxConfig{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
			TTL:      c.MailboxTTL,
			Limit:    c.MailboxLimit,
		})
	}
	return NewMemoryMailbox(c.MailboxTTL, c.MailboxLimit)
}
