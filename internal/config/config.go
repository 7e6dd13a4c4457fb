package config

// #region imports
import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/hybrid-exec/internal/engine"
	"github.com/danielpatrickdp/hybrid-exec/internal/gate"
	"github.com/danielpatrickdp/hybrid-exec/internal/risk"
	"github.com/danielpatrickdp/hybrid-exec/internal/switcher"
)

// #endregion

// #region config

// Config is the full orchestrator configuration. Defaults apply field by
// field; a config file only needs the values it overrides.
type Config struct {
	Risk     risk.Config     `yaml:"risk"`
	Gate     gate.Config     `yaml:"gate"`
	Switcher switcher.Config `yaml:"switcher"`

	Store StoreConfig `yaml:"store"`

	InitialMode engine.Mode `yaml:"initial_mode"`
	AuditDB     string      `yaml:"audit_db"` // empty disables the decision log
}

// StoreConfig selects and tunes the checkpoint backend.
type StoreConfig struct {
	Backend       string        `yaml:"backend"` // "memory" | "sqlite"
	Path          string        `yaml:"path"`
	CheckpointTTL time.Duration `yaml:"-"`
}

// UnmarshalYAML accepts a Go duration string for checkpoint_ttl.
func (s *StoreConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Backend       string `yaml:"backend"`
		Path          string `yaml:"path"`
		CheckpointTTL string `yaml:"checkpoint_ttl"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.Backend != "" {
		s.Backend = raw.Backend
	}
	if raw.Path != "" {
		s.Path = raw.Path
	}
	if raw.CheckpointTTL != "" {
		d, err := time.ParseDuration(raw.CheckpointTTL)
		if err != nil {
			return fmt.Errorf("checkpoint_ttl: %w", err)
		}
		s.CheckpointTTL = d
	}
	return nil
}

// Default returns the configuration used when no file or env overrides it.
func Default() Config {
	cfg := Config{
		Risk:        risk.DefaultConfig(),
		Gate:        gate.DefaultConfig(),
		Switcher:    switcher.DefaultConfig(),
		InitialMode: engine.ModeConversational,
	}
	cfg.Store.Backend = "memory"
	return cfg
}

// #endregion config

// #region load

// Load reads path as YAML over the defaults, then applies env overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	return cfg, cfg.validate()
}

// applyEnv layers HYBRID_* environment variables over the file values.
func applyEnv(cfg *Config) {
	if v := os.Getenv("HYBRID_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("HYBRID_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("HYBRID_AUDIT_DB"); v != "" {
		cfg.AuditDB = v
	}
	if v := os.Getenv("HYBRID_INITIAL_MODE"); v != "" {
		cfg.InitialMode = engine.Mode(v)
	}
	if v := os.Getenv("HYBRID_FAILURE_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Switcher.FailureThreshold = n
		}
	}
	if v := os.Getenv("HYBRID_APPROVAL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Gate.ApprovalTimeout = d
		}
	}
}

func (c Config) validate() error {
	switch c.InitialMode {
	case engine.ModeStructured, engine.ModeConversational:
	default:
		return fmt.Errorf("initial_mode must be structured or conversational, got %q", c.InitialMode)
	}
	switch c.Store.Backend {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Store.Backend == "sqlite" && c.Store.Path == "" {
		return fmt.Errorf("sqlite backend requires store.path")
	}
	if c.Switcher.FailureThreshold <= 0 {
		return fmt.Errorf("failure_threshold must be positive")
	}
	return nil
}

// #endregion load
