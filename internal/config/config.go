// Package config loads Smart Repeat settings from defaults, an optional YAML
// file and SMARTREPEAT_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/abhisek/smartrepeat/internal/generation"
	"github.com/abhisek/smartrepeat/internal/llm"
	"github.com/abhisek/smartrepeat/internal/session"
	"github.com/abhisek/smartrepeat/internal/smartrepeat"
	"github.com/abhisek/smartrepeat/internal/words"
	"gopkg.in/yaml.v3"
)

const envPrefix = "SMARTREPEAT_"

// Config holds all Smart Repeat configuration.
type Config struct {
	// DBPath overrides the default database location. The --db flag and
	// SMARTREPEAT_DB still take precedence.
	DBPath string `yaml:"db_path"`

	// Timezone is the IANA zone completion dates are computed in. Empty
	// means the local zone.
	Timezone string `yaml:"timezone"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"` // empty logs to stderr

	Session    SessionConfig    `yaml:"session"`
	Drill      DrillConfig      `yaml:"drill"`
	Generation GenerationConfig `yaml:"generation"`
	Cache      CacheConfig      `yaml:"cache"`

	// LLM picks the generation service. Keys come from the environment.
	LLM llm.Config `yaml:"llm"`

	resolved resolved
}

// SessionConfig configures session expiry. Durations use time.ParseDuration
// syntax.
type SessionConfig struct {
	IdleTimeout     string `yaml:"idle_timeout"`
	CriticalTimeout string `yaml:"critical_timeout"`
	SweepInterval   string `yaml:"sweep_interval"`
}

// DrillConfig sizes the stages and tunes word priority.
type DrillConfig struct {
	QuizSize         int `yaml:"quiz_size"`
	KnowSize         int `yaml:"know_size"`
	WritingWords     int `yaml:"writing_words"`
	TextDrillFloor   int `yaml:"text_drill_floor"`
	ConsolidationMax int `yaml:"consolidation_max"`
	QuizOptions      int `yaml:"quiz_options"`
	MaxCorrect       int `yaml:"max_correct"`
	PriorityWeight   int `yaml:"priority_weight"`
}

// GenerationConfig bounds each generation call.
type GenerationConfig struct {
	Timeout     string  `yaml:"timeout"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// CacheConfig sizes in-memory caches.
type CacheConfig struct {
	VocabularySize int `yaml:"vocabulary_size"` // profiles kept
}

// resolved holds the parsed forms of the string settings.
type resolved struct {
	ok              bool
	idleTimeout     time.Duration
	criticalTimeout time.Duration
	sweepInterval   time.Duration
	genTimeout      time.Duration
	location        *time.Location
}

// Default returns the standard configuration.
func Default() *Config {
	cfg := &Config{
		LogLevel: "info",
		Session: SessionConfig{
			IdleTimeout:     "30m",
			CriticalTimeout: "2h",
			SweepInterval:   "1m",
		},
		Drill: DrillConfig{
			QuizSize:         10,
			KnowSize:         10,
			WritingWords:     5,
			TextDrillFloor:   10,
			ConsolidationMax: 8,
			QuizOptions:      4,
			MaxCorrect:       5,
			PriorityWeight:   10,
		},
		Generation: GenerationConfig{
			Timeout:     "45s",
			MaxTokens:   1500,
			Temperature: 0.7,
		},
		Cache: CacheConfig{VocabularySize: 256},
	}
	_ = cfg.Validate()
	return cfg
}

// DefaultPath returns $XDG_CONFIG_HOME/smartrepeat/config.yaml, falling back
// to ~/.config.
func DefaultPath() (string, error) {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "smartrepeat", "config.yaml"), nil
}

// Load reads the file at path over the defaults and applies environment
// overrides. A missing file is not an error; an empty path uses DefaultPath.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration as YAML, creating the directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

func (c *Config) applyEnvOverrides() error {
	str := func(name string, dst *string) {
		if v := os.Getenv(envPrefix + name); v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(name string, dst *int) {
		v := os.Getenv(envPrefix + name)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
			return
		}
		*dst = n
	}

	str("TIMEZONE", &c.Timezone)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FILE", &c.LogFile)
	str("IDLE_TIMEOUT", &c.Session.IdleTimeout)
	str("CRITICAL_TIMEOUT", &c.Session.CriticalTimeout)
	str("SWEEP_INTERVAL", &c.Session.SweepInterval)
	str("GENERATION_TIMEOUT", &c.Generation.Timeout)
	num("QUIZ_SIZE", &c.Drill.QuizSize)
	num("KNOW_SIZE", &c.Drill.KnowSize)
	num("TEXT_DRILL_FLOOR", &c.Drill.TextDrillFloor)
	num("MAX_TOKENS", &c.Generation.MaxTokens)
	num("CACHE_SIZE", &c.Cache.VocabularySize)
	return errors.Join(errs...)
}

// Validate checks every setting and resolves durations and the timezone.
func (c *Config) Validate() error {
	var errs []error
	dur := func(name, v string) time.Duration {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return 0
		}
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s: must be positive, got %s", name, v))
		}
		return d
	}
	positive := func(name string, v int) {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s: must be positive, got %d", name, v))
		}
	}

	r := resolved{
		idleTimeout:     dur("session.idle_timeout", c.Session.IdleTimeout),
		criticalTimeout: dur("session.critical_timeout", c.Session.CriticalTimeout),
		sweepInterval:   dur("session.sweep_interval", c.Session.SweepInterval),
		genTimeout:      dur("generation.timeout", c.Generation.Timeout),
		location:        time.Local,
	}
	if c.Timezone != "" {
		loc, err := time.LoadLocation(c.Timezone)
		if err != nil {
			errs = append(errs, fmt.Errorf("timezone: %w", err))
		} else {
			r.location = loc
		}
	}

	positive("drill.quiz_size", c.Drill.QuizSize)
	positive("drill.know_size", c.Drill.KnowSize)
	positive("drill.writing_words", c.Drill.WritingWords)
	positive("drill.text_drill_floor", c.Drill.TextDrillFloor)
	positive("drill.consolidation_max", c.Drill.ConsolidationMax)
	positive("drill.max_correct", c.Drill.MaxCorrect)
	positive("drill.priority_weight", c.Drill.PriorityWeight)
	if c.Drill.QuizOptions < 2 {
		errs = append(errs, fmt.Errorf("drill.quiz_options: need at least 2, got %d", c.Drill.QuizOptions))
	}
	positive("generation.max_tokens", c.Generation.MaxTokens)
	if c.Generation.Temperature < 0 || c.Generation.Temperature > 1 {
		errs = append(errs, fmt.Errorf("generation.temperature: out of range, got %v", c.Generation.Temperature))
	}
	positive("cache.vocabulary_size", c.Cache.VocabularySize)

	if err := errors.Join(errs...); err != nil {
		return err
	}
	r.ok = true
	c.resolved = r
	return nil
}

// Location is the zone completion dates are computed in.
func (c *Config) Location() *time.Location {
	if !c.resolved.ok {
		return time.Local
	}
	return c.resolved.location
}

// SessionPolicy returns the expiry timeouts.
func (c *Config) SessionPolicy() session.Policy {
	if !c.resolved.ok {
		return session.DefaultPolicy()
	}
	return session.Policy{
		IdleTimeout:     c.resolved.idleTimeout,
		CriticalTimeout: c.resolved.criticalTimeout,
	}
}

// SweepInterval is how often expired sessions are collected.
func (c *Config) SweepInterval() time.Duration {
	if !c.resolved.ok {
		return time.Minute
	}
	return c.resolved.sweepInterval
}

// Engine returns the stage sizes for the smartrepeat engine.
func (c *Config) Engine() smartrepeat.Config {
	return smartrepeat.Config{
		QuizSize:         c.Drill.QuizSize,
		KnowSize:         c.Drill.KnowSize,
		WritingWords:     c.Drill.WritingWords,
		TextDrillFloor:   c.Drill.TextDrillFloor,
		ConsolidationMax: c.Drill.ConsolidationMax,
		QuizOptions:      c.Drill.QuizOptions,
		Selector: words.SelectorConfig{
			MaxCorrect: c.Drill.MaxCorrect,
			Weight:     c.Drill.PriorityWeight,
		},
		Location: c.Location(),
	}
}

// GenerationGateway returns the generation call bounds.
func (c *Config) GenerationGateway() generation.Config {
	cfg := generation.DefaultConfig()
	if c.resolved.ok {
		cfg.Timeout = c.resolved.genTimeout
	}
	if c.Generation.MaxTokens > 0 {
		cfg.MaxTokens = c.Generation.MaxTokens
	}
	cfg.Temperature = c.Generation.Temperature
	return cfg
}
