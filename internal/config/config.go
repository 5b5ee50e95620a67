// Package config loads the triage service configuration from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aretw0/triage/internal/workflow"
	"github.com/aretw0/triage/pkg/fusion"
	"github.com/aretw0/triage/pkg/policy"
	"gopkg.in/yaml.v3"
)

// Backend names shared by the audit and checkpoint sections.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// Predictor modes.
const (
	PredictorsHTTP    = "http"
	PredictorsProcess = "process"
	PredictorsNone    = "none"
)

// Config is the full service configuration.
type Config struct {
	Policy     policy.Thresholds         `yaml:"policy" json:"policy"`
	Retries    map[string]workflow.Retry `yaml:"retries" json:"retries"`
	Fusion     FusionConfig              `yaml:"fusion" json:"fusion"`
	Logging    LoggingConfig             `yaml:"logging" json:"logging"`
	Audit      AuditConfig               `yaml:"audit" json:"audit"`
	Checkpoint CheckpointConfig          `yaml:"checkpoint" json:"checkpoint"`
	Records    RecordsConfig             `yaml:"records" json:"records"`
	Predictors PredictorsConfig          `yaml:"predictors" json:"predictors"`
	Redis      RedisConfig               `yaml:"redis" json:"redis"`
	Lock       LockConfig                `yaml:"lock" json:"lock"`
	Server     ServerConfig              `yaml:"server" json:"server"`
}

// FusionConfig tunes the generative fusion agent.
type FusionConfig struct {
	// Attempts is how many extra generator calls the agent may make after a parse failure.
	Attempts int `yaml:"attempts" json:"attempts"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// AuditConfig selects where trace and error records go.
type AuditConfig struct {
	Backend string `yaml:"backend" json:"backend"`
	Dir     string `yaml:"dir" json:"dir"`
	// MaxLen caps each Redis stream (approximate trimming). Zero keeps everything.
	MaxLen int64 `yaml:"max_len" json:"max_len"`
}

// CheckpointConfig selects where final states are stored.
type CheckpointConfig struct {
	Backend string        `yaml:"backend" json:"backend"`
	Dir     string        `yaml:"dir" json:"dir"`
	TTL     time.Duration `yaml:"ttl" json:"ttl"`
	// MaskPII masks identifiers in free-text fields before they are stored.
	MaskPII bool `yaml:"mask_pii" json:"mask_pii"`
	// EncryptionKey enables AES-256-GCM sealing. 32 bytes as hex or base64.
	EncryptionKey string `yaml:"encryption_key" json:"-"`
}

// RecordsConfig points at the visit database. An empty path serves the built-in sample visits.
type RecordsConfig struct {
	Path string `yaml:"path" json:"path"`
}

// PredictorsConfig selects how the models are reached.
type PredictorsConfig struct {
	Mode      string        `yaml:"mode" json:"mode"`
	BaseURL   string        `yaml:"base_url" json:"base_url"`
	Token     string        `yaml:"token" json:"-"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
	ToolsFile string        `yaml:"tools_file" json:"tools_file"`
}

// RedisConfig is shared by every Redis-backed component.
type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"-"`
	DB       int    `yaml:"db" json:"db"`
	Prefix   string `yaml:"prefix" json:"prefix"`
}

// LockConfig enables the per-visit run lock. The memory backend only serializes runs
// within one process; use redis when several replicas share the visit database.
type LockConfig struct {
	Enabled bool          `yaml:"enabled" json:"enabled"`
	Backend string        `yaml:"backend" json:"backend"`
	TTL     time.Duration `yaml:"ttl" json:"ttl"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Policy:  policy.DefaultThresholds(),
		Retries: workflow.DefaultRetries(),
		Fusion:  FusionConfig{Attempts: fusion.DefaultMaxRetries},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Audit:   AuditConfig{Backend: BackendFile, Dir: "logs"},
		Checkpoint: CheckpointConfig{
			Backend: BackendMemory,
			Dir:     ".triage/checkpoints",
			TTL:     24 * time.Hour,
		},
		Predictors: PredictorsConfig{
			Mode:      PredictorsNone,
			Timeout:   30 * time.Second,
			ToolsFile: "tools.yaml",
		},
		Redis:  RedisConfig{Addr: "localhost:6379", Prefix: "triage:"},
		Lock:   LockConfig{Backend: BackendMemory, TTL: 2 * time.Minute},
		Server: ServerConfig{Addr: ":8080"},
	}
}

// Load reads path over the defaults, applies TRIAGE_* environment overrides and validates
// the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		// Nodes absent from the file keep their default budget.
		for node, r := range workflow.DefaultRetries() {
			if _, ok := cfg.Retries[node]; !ok {
				cfg.Retries[node] = r
			}
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	if err := c.Policy.Validate(); err != nil {
		errs = append(errs, err)
	}
	for node, r := range c.Retries {
		if r.MaxRetries < 0 {
			errs = append(errs, fmt.Errorf("retries.%s.max_retries must be >= 0", node))
		}
		if r.Delay < 0 {
			errs = append(errs, fmt.Errorf("retries.%s.delay must be >= 0", node))
		}
	}
	if c.Fusion.Attempts < 0 {
		errs = append(errs, errors.New("fusion.attempts must be >= 0"))
	}
	if !oneOf(c.Audit.Backend, BackendMemory, BackendFile, BackendRedis) {
		errs = append(errs, fmt.Errorf("audit.backend %q must be memory, file or redis", c.Audit.Backend))
	}
	if !oneOf(c.Checkpoint.Backend, BackendMemory, BackendFile, BackendRedis) {
		errs = append(errs, fmt.Errorf("checkpoint.backend %q must be memory, file or redis", c.Checkpoint.Backend))
	}
	if !oneOf(c.Predictors.Mode, PredictorsHTTP, PredictorsProcess, PredictorsNone) {
		errs = append(errs, fmt.Errorf("predictors.mode %q must be http, process or none", c.Predictors.Mode))
	}
	if c.Predictors.Mode == PredictorsHTTP && c.Predictors.BaseURL == "" {
		errs = append(errs, errors.New("predictors.base_url is required in http mode"))
	}
	if !oneOf(c.Logging.Format, "text", "json") {
		errs = append(errs, fmt.Errorf("logging.format %q must be text or json", c.Logging.Format))
	}
	if !oneOf(c.Lock.Backend, BackendMemory, BackendRedis) {
		errs = append(errs, fmt.Errorf("lock.backend %q must be memory or redis", c.Lock.Backend))
	}
	if c.Lock.Enabled && c.Lock.TTL <= 0 {
		errs = append(errs, errors.New("lock.ttl must be positive when the lock is enabled"))
	}
	if c.UsesRedis() && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required by the selected backends"))
	}

	return errors.Join(errs...)
}

// UsesRedis reports whether any component needs a Redis connection.
func (c Config) UsesRedis() bool {
	return c.Audit.Backend == BackendRedis || c.Checkpoint.Backend == BackendRedis ||
		(c.Lock.Enabled && c.Lock.Backend == BackendRedis)
}

// YAML renders the configuration, secrets excluded.
func (c Config) YAML() ([]byte, error) {
	c.Checkpoint.EncryptionKey = redact(c.Checkpoint.EncryptionKey)
	c.Predictors.Token = redact(c.Predictors.Token)
	c.Redis.Password = redact(c.Redis.Password)
	return yaml.Marshal(c)
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}
