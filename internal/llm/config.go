package llm

import (
	"fmt"
	"os"
	"slices"
	"strings"
)

// Config selects a backend and model.
type Config struct {
	Provider string `yaml:"provider"` // anthropic, openai, gemini, openrouter or mock
	Model    string `yaml:"model"`    // model ID or alias; empty uses the backend default
	BaseURL  string `yaml:"base_url"`

	// APIKey is read from the environment only.
	APIKey string `yaml:"-"`
}

type backend struct {
	keyEnv  string // vendor variable read when no key is configured
	model   string
	aliases map[string]string
}

var backends = map[string]backend{
	"anthropic": {
		keyEnv: "ANTHROPIC_API_KEY",
		model:  "claude-haiku",
		aliases: map[string]string{
			"claude-sonnet": "claude-sonnet-4-20250514",
			"claude-haiku":  "claude-haiku-4-5-20251001",
		},
	},
	"openai": {
		keyEnv: "OPENAI_API_KEY",
		model:  "gpt-4o-mini",
	},
	"gemini": {
		keyEnv: "GEMINI_API_KEY",
		model:  "gemini-flash",
		aliases: map[string]string{
			"gemini-flash": "gemini-2.0-flash",
			"gemini-pro":   "gemini-2.5-pro",
		},
	},
	"openrouter": {
		keyEnv: "OPENROUTER_API_KEY",
		model:  "google/gemini-2.0-flash-exp",
	},
	"mock": {},
}

// discoveryOrder is the order vendor keys are checked in when no provider
// is named.
var discoveryOrder = []string{"gemini", "openai", "anthropic", "openrouter"}

// Resolve fills cfg from SMARTREPEAT_LLM_* variables and the vendor key
// variables, then applies the backend's default model and aliases.
//
// SMARTREPEAT_LLM_PROVIDER, _MODEL and _BASE_URL override cfg. The key comes
// from SMARTREPEAT_LLM_API_KEY, else the backend's own variable such as
// OPENAI_API_KEY. With no provider named, the first backend whose vendor key
// is set wins.
func Resolve(cfg Config) (Config, error) {
	override := func(dst *string, name string) {
		if v := os.Getenv("SMARTREPEAT_LLM_" + name); v != "" {
			*dst = v
		}
	}
	override(&cfg.Provider, "PROVIDER")
	override(&cfg.Model, "MODEL")
	override(&cfg.BaseURL, "BASE_URL")
	override(&cfg.APIKey, "API_KEY")
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))

	if cfg.Provider == "" {
		for _, name := range discoveryOrder {
			if os.Getenv(backends[name].keyEnv) != "" {
				cfg.Provider = name
				break
			}
		}
		if cfg.Provider == "" {
			return cfg, fmt.Errorf("no generation service configured: set SMARTREPEAT_LLM_PROVIDER or one of %s", vendorKeys())
		}
	}

	b, ok := backends[cfg.Provider]
	if !ok {
		return cfg, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}
	if cfg.APIKey == "" && b.keyEnv != "" {
		cfg.APIKey = os.Getenv(b.keyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = b.model
	}
	if id, ok := b.aliases[cfg.Model]; ok {
		cfg.Model = id
	}
	return cfg, cfg.Validate()
}

// Validate checks that the provider is known and has a key.
func (c Config) Validate() error {
	b, ok := backends[c.Provider]
	if !ok {
		return fmt.Errorf("unknown generation provider %q", c.Provider)
	}
	if b.keyEnv != "" && c.APIKey == "" {
		return fmt.Errorf("%s: no API key; set SMARTREPEAT_LLM_API_KEY or %s", c.Provider, b.keyEnv)
	}
	return nil
}

func vendorKeys() string {
	keys := make([]string, 0, len(discoveryOrder))
	for _, name := range discoveryOrder {
		keys = append(keys, backends[name].keyEnv)
	}
	slices.Sort(keys)
	return strings.Join(keys, ", ")
}
