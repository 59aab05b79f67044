package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"wrestlenews/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validJSON = `{
  "engine": {"corroboration_window": "4h", "max_concurrent_fetches": 3},
  "sources": [
    {"name": "WWE", "url": "https://www.wwe.com", "tier": "tier1", "feed_url": "https://www.wwe.com/feeds/news"},
    {"name": "Fightful", "url": "https://www.fightful.com", "tier": "tier2", "kind": "html",
     "selectors": {"item": "article", "title": "h2", "link": "a"}}
  ]
}`

func TestParse_JSON(t *testing.T) {
	cfg, err := Parse([]byte(validJSON), ".json")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 4*time.Hour, cfg.Engine.CorroborationWindow.Duration)
	assert.Equal(t, 2*time.Hour, cfg.Engine.BreakingWindow.Duration, "defaults are kept")
	assert.Equal(t, 3, cfg.Engine.MaxConcurrentFetches)
	require.Len(t, cfg.Sources, 2)

	d, err := cfg.Sources[1].Descriptor()
	require.NoError(t, err)
	assert.Equal(t, domain.KindHTML, d.Kind)
	assert.Equal(t, "https://www.fightful.com", d.FeedURL)
	assert.Equal(t, domain.TierTwo, d.Source.Tier)
}

func TestParse_YAML(t *testing.T) {
	data := `
engine:
  breaking_window: 90m
  schedule: "*/5 * * * *"
sources:
  - name: NJPW
    url: https://www.njpw1972.com
    tier: tier1
    promotions: [NJPW]
promotions:
  GCW: [game changer wrestling]
`
	cfg, err := Parse([]byte(data), ".yaml")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 90*time.Minute, cfg.Engine.BreakingWindow.Duration)
	assert.Equal(t, []string{"game changer wrestling"}, cfg.Promotions["GCW"])
	assert.Equal(t, []string{"NJPW"}, cfg.Sources[0].Promotions)
}

func TestParse_UnknownKeysRejected(t *testing.T) {
	_, err := Parse([]byte(`{"engine": {"retention": "1h"}}`), ".json")
	assert.Error(t, err)

	_, err = Parse([]byte("engine:\n  retention: 1h\n"), ".yml")
	assert.Error(t, err)
}

func TestParse_BadDuration(t *testing.T) {
	_, err := Parse([]byte(`{"engine": {"breaking_window": "two hours"}}`), ".json")
	assert.Error(t, err)
	_, err = Parse([]byte(`{"engine": {"breaking_window": 7200}}`), ".json")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"no sources", func(c *Config) { c.Sources = nil }, "sources must not be empty"},
		{"bad tier", func(c *Config) { c.Sources[0].Tier = "gold" }, "unknown reliability tier"},
		{"duplicate", func(c *Config) { c.Sources[1].URL = "https://WWW.wwe.com/" }, "duplicate source"},
		{"zero window", func(c *Config) { c.Engine.BreakingWindow = D(0) }, "engine.breaking_window must be positive"},
		{"bad schedule", func(c *Config) { c.Engine.Schedule = "sometimes" }, "invalid engine.schedule"},
		{"postgres without user", func(c *Config) { c.Database.Driver = "postgres" }, "database username is not set"},
		{"kafka without brokers", func(c *Config) { c.Notifier.Driver = "kafka" }, "notifier.brokers"},
		{"html without selectors", func(c *Config) { c.Sources[1].Selectors = nil }, "selectors.item"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(validJSON), ".json")
			require.NoError(t, err)
			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(validJSON), 0o600))
	t.Setenv("DATABASE_PASSWORD", "s3cret")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Database.Password)
	assert.Equal(t, "debug", cfg.Logger.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: 5432, Username: "news", Password: "p@ss", DBName: "wrestling", SSLMode: "disable"}
	assert.Equal(t, "postgres://news:p%40ss@db:5432/wrestling?sslmode=disable", db.DSN())
}

func TestLoad_ExampleConfig(t *testing.T) {
	t.Setenv("DATABASE_PASSWORD", "s3cret")

	cfg, err := Load(filepath.Join("..", "..", "config.example.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "nats", cfg.Notifier.Driver)
	assert.Len(t, cfg.Sources, 5)
	d, err := cfg.Sources[4].Descriptor()
	require.NoError(t, err)
	assert.Equal(t, domain.KindHTML, d.Kind)
	assert.Equal(t, domain.TierSpeculation, d.Source.Tier)
	assert.Equal(t, []string{"game changer wrestling", "gcw"}, cfg.Promotions["GCW"])
}
