package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "data/craft-cans.zip", cfg.Data.Archive)
	assert.Equal(t, filepath.Join("data", "beers.csv"), cfg.BeersPath())
	assert.Equal(t, filepath.Join("data", "breweries.csv"), cfg.BreweriesPath())
	assert.Equal(t, "Unnamed: 0", cfg.Clean.IndexColumn)
	assert.Equal(t, []string{"abv", "ibu"}, cfg.Clean.MedianColumns)
	assert.Equal(t, []string{"id", "name", "brewery_id"}, cfg.Clean.DropColumns)
	assert.Equal(t, "abv", cfg.Model.Target)
	assert.Equal(t, 0.25, cfg.Model.TestSize)
	assert.Equal(t, int64(42), cfg.Model.RandomState)
	assert.Equal(t, []int{10, 15, 20}, cfg.Model.NEstimatorsGrid)
	assert.Equal(t, 5, cfg.Model.CV)
	assert.Equal(t, -1, cfg.Model.NJobs)
	assert.Equal(t, 10, cfg.Report.TopK)
}

func TestLoad_FileEnvFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "craftcans.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data:
  archive: /tmp/cans.zip
model:
  cv: 3
  n_estimators_grid: [5, 50]
log:
  level: debug
`), 0o644))

	t.Setenv("CRAFTCANS_MODEL_CV", "4")
	t.Setenv("CRAFTCANS_STORE_PATH", filepath.Join(dir, "runs.db"))

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("log-level", "info", "")
	fs.Int("top-k", 10, "")
	require.NoError(t, fs.Parse([]string{"--top-k", "3"}))

	cfg, err := Load(path, fs)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/cans.zip", cfg.Data.Archive, "file value")
	assert.Equal(t, []int{5, 50}, cfg.Model.NEstimatorsGrid, "file value")
	assert.Equal(t, 4, cfg.Model.CV, "env beats file")
	assert.Equal(t, filepath.Join(dir, "runs.db"), cfg.Store.Path)
	assert.Equal(t, 3, cfg.Report.TopK, "explicit flag")
	assert.Equal(t, "debug", cfg.Log.Level, "unset flag does not override the file")
	assert.Equal(t, 0.25, cfg.Model.TestSize, "default")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"test size zero", func(c *Config) { c.Model.TestSize = 0 }},
		{"test size one", func(c *Config) { c.Model.TestSize = 1 }},
		{"single fold", func(c *Config) { c.Model.CV = 1 }},
		{"empty grid", func(c *Config) { c.Model.NEstimatorsGrid = nil }},
		{"zero trees", func(c *Config) { c.Model.NEstimatorsGrid = []int{0} }},
		{"no target", func(c *Config) { c.Model.Target = "" }},
		{"negative top k", func(c *Config) { c.Report.TopK = -1 }},
		{"bad level", func(c *Config) { c.Log.Level = "verbose" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
