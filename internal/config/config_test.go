package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/abhisek/smartrepeat/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, session.DefaultPolicy(), cfg.SessionPolicy())
	assert.Equal(t, time.Minute, cfg.SweepInterval())

	eng := cfg.Engine()
	assert.Equal(t, 10, eng.QuizSize)
	assert.Equal(t, 10, eng.TextDrillFloor)
	assert.Equal(t, 5, eng.Selector.MaxCorrect)
	assert.Equal(t, 10, eng.Selector.Weight)

	gen := cfg.GenerationGateway()
	assert.Equal(t, 45*time.Second, gen.Timeout)
	assert.Equal(t, 1500, gen.MaxTokens)
	assert.InDelta(t, 0.7, gen.Temperature, 1e-9)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Drill, cfg.Drill)
	assert.Equal(t, Default().Session, cfg.Session)
}

func TestLoad_EmptyPathUsesXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "smartrepeat"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "smartrepeat", "config.yaml"), []byte("drill:\n  know_size: 4\n"), 0o644))

	p, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "smartrepeat", "config.yaml"), p)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Drill.KnowSize)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
timezone: UTC
log_level: debug
session:
  idle_timeout: 10m
drill:
  quiz_size: 5
  text_drill_floor: 12
generation:
  temperature: 0.2
cache:
  vocabulary_size: 16
llm:
  provider: gemini
  model: gemini-pro
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, time.UTC, cfg.Location())
	assert.Equal(t, session.Policy{IdleTimeout: 10 * time.Minute, CriticalTimeout: 2 * time.Hour}, cfg.SessionPolicy())
	assert.Equal(t, 5, cfg.Engine().QuizSize)
	assert.Equal(t, 10, cfg.Engine().KnowSize, "unset keys keep their defaults")
	assert.Equal(t, 12, cfg.Engine().TextDrillFloor)
	assert.Equal(t, time.UTC, cfg.Engine().Location)
	assert.InDelta(t, 0.2, cfg.GenerationGateway().Temperature, 1e-9)
	assert.Equal(t, 16, cfg.Cache.VocabularySize)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "gemini-pro", cfg.LLM.Model)
	assert.Empty(t, cfg.LLM.APIKey)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "session:\n  idle_timeout: 10m\n")
	t.Setenv("SMARTREPEAT_IDLE_TIMEOUT", "5m")
	t.Setenv("SMARTREPEAT_QUIZ_SIZE", "7")
	t.Setenv("SMARTREPEAT_GENERATION_TIMEOUT", "3s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.SessionPolicy().IdleTimeout)
	assert.Equal(t, 7, cfg.Drill.QuizSize)
	assert.Equal(t, 3*time.Second, cfg.GenerationGateway().Timeout)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
		want string
	}{
		{name: "bad yaml", body: "session: [", want: "parse config"},
		{name: "bad duration", body: "session:\n  idle_timeout: soon\n", want: "session.idle_timeout"},
		{name: "negative duration", body: "session:\n  critical_timeout: -1h\n", want: "session.critical_timeout"},
		{name: "one option", body: "drill:\n  quiz_options: 1\n", want: "drill.quiz_options"},
		{name: "zero floor", body: "drill:\n  text_drill_floor: 0\n", want: "drill.text_drill_floor"},
		{name: "hot", body: "generation:\n  temperature: 1.5\n", want: "generation.temperature"},
		{name: "unknown zone", body: "timezone: Mars/Olympus\n", want: "timezone"},
		{name: "bad env int", env: map[string]string{"SMARTREPEAT_QUIZ_SIZE": "ten"}, want: "SMARTREPEAT_QUIZ_SIZE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSave(t *testing.T) {
	cfg := Default()
	cfg.Drill.QuizSize = 3
	cfg.LLM.APIKey = "sk-secret"
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "quiz_size: 3"))
	assert.NotContains(t, string(data), "resolved")
	assert.NotContains(t, string(data), "sk-secret")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Drill.QuizSize)
}

func TestUnvalidatedConfigFallsBack(t *testing.T) {
	var cfg Config
	assert.Equal(t, session.DefaultPolicy(), cfg.SessionPolicy())
	assert.Equal(t, time.Minute, cfg.SweepInterval())
	assert.Equal(t, time.Local, cfg.Location())
}
