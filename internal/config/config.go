// Package config loads walkthrough settings from defaults, an optional
// config file, CRAFTCANS_* environment variables and command-line flags,
// in increasing order of precedence.
package config

import (
	"path/filepath"
	"slices"

	"github.com/YuminosukeSato/craftcans/pkg/errors"
	"github.com/YuminosukeSato/craftcans/pkg/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DataConfig locates the input files.
type DataConfig struct {
	Archive   string `mapstructure:"archive" yaml:"archive"`     // zip holding both CSV files
	Dir       string `mapstructure:"dir" yaml:"dir"`             // extraction directory
	Beers     string `mapstructure:"beers" yaml:"beers"`         // beers file, relative to Dir
	Breweries string `mapstructure:"breweries" yaml:"breweries"` // breweries file, relative to Dir
}

// CleanConfig lists the cleaning steps applied to the beers table.
type CleanConfig struct {
	IndexColumn   string   `mapstructure:"index_column" yaml:"index_column"`
	MedianColumns []string `mapstructure:"median_columns" yaml:"median_columns"`
	DropColumns   []string `mapstructure:"drop_columns" yaml:"drop_columns"`
	Categorical   []string `mapstructure:"categorical" yaml:"categorical"`
	TopStyles     int      `mapstructure:"top_styles" yaml:"top_styles"`
}

// ModelConfig drives the split, pipeline and grid search.
type ModelConfig struct {
	Target          string  `mapstructure:"target" yaml:"target"`
	TestSize        float64 `mapstructure:"test_size" yaml:"test_size"`
	RandomState     int64   `mapstructure:"random_state" yaml:"random_state"`
	NEstimatorsGrid []int   `mapstructure:"n_estimators_grid" yaml:"n_estimators_grid"`
	CV              int     `mapstructure:"cv" yaml:"cv"`
	NJobs           int     `mapstructure:"n_jobs" yaml:"n_jobs"`
}

// ReportConfig controls the printed report and optional artifacts.
type ReportConfig struct {
	TopK     int    `mapstructure:"top_k" yaml:"top_k"`
	Plot     string `mapstructure:"plot" yaml:"plot"`           // PNG path for the importance chart, empty to skip
	ModelOut string `mapstructure:"model_out" yaml:"model_out"` // gob path for the best estimator, empty to skip
}

// StoreConfig locates the sqlite run history. An empty path disables it.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig sets the slog level.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// Config wraps the entire configuration.
type Config struct {
	Data   DataConfig   `mapstructure:"data" yaml:"data"`
	Clean  CleanConfig  `mapstructure:"clean" yaml:"clean"`
	Model  ModelConfig  `mapstructure:"model" yaml:"model"`
	Report ReportConfig `mapstructure:"report" yaml:"report"`
	Store  StoreConfig  `mapstructure:"store" yaml:"store"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
}

var defaults = map[string]interface{}{
	"data.archive":            "data/craft-cans.zip",
	"data.dir":                "data",
	"data.beers":              "beers.csv",
	"data.breweries":          "breweries.csv",
	"clean.index_column":      "Unnamed: 0",
	"clean.median_columns":    []string{"abv", "ibu"},
	"clean.drop_columns":      []string{"id", "name", "brewery_id"},
	"clean.categorical":       []string{"style"},
	"clean.top_styles":        10,
	"model.target":            "abv",
	"model.test_size":         0.25,
	"model.random_state":      42,
	"model.n_estimators_grid": []int{10, 15, 20},
	"model.cv":                5,
	"model.n_jobs":            -1,
	"report.top_k":            10,
	"report.plot":             "",
	"report.model_out":        "",
	"store.path":              "",
	"log.level":               "info",
}

// envBindings maps config keys to the environment variables that can set them.
var envBindings = map[string][]string{
	"data.archive":            {"CRAFTCANS_DATA_ARCHIVE"},
	"data.dir":                {"CRAFTCANS_DATA_DIR"},
	"data.beers":              {"CRAFTCANS_DATA_BEERS"},
	"data.breweries":          {"CRAFTCANS_DATA_BREWERIES"},
	"clean.median_columns":    {"CRAFTCANS_CLEAN_MEDIAN_COLUMNS"},
	"clean.drop_columns":      {"CRAFTCANS_CLEAN_DROP_COLUMNS"},
	"clean.categorical":       {"CRAFTCANS_CLEAN_CATEGORICAL"},
	"model.target":            {"CRAFTCANS_MODEL_TARGET"},
	"model.test_size":         {"CRAFTCANS_MODEL_TEST_SIZE"},
	"model.random_state":      {"CRAFTCANS_MODEL_RANDOM_STATE"},
	"model.n_estimators_grid": {"CRAFTCANS_MODEL_N_ESTIMATORS_GRID"},
	"model.cv":                {"CRAFTCANS_MODEL_CV"},
	"model.n_jobs":            {"CRAFTCANS_MODEL_N_JOBS"},
	"report.top_k":            {"CRAFTCANS_REPORT_TOP_K"},
	"report.plot":             {"CRAFTCANS_REPORT_PLOT"},
	"report.model_out":        {"CRAFTCANS_REPORT_MODEL_OUT"},
	"store.path":              {"CRAFTCANS_STORE_PATH", "CRAFTCANS_DB"},
	"log.level":               {"CRAFTCANS_LOG_LEVEL", "LOG_LEVEL"},
}

// FlagBindings maps command-line flag names to config keys.
var FlagBindings = map[string]string{
	"archive":      "data.archive",
	"data-dir":     "data.dir",
	"test-size":    "model.test_size",
	"random-state": "model.random_state",
	"grid":         "model.n_estimators_grid",
	"cv":           "model.cv",
	"n-jobs":       "model.n_jobs",
	"top-k":        "report.top_k",
	"plot":         "report.plot",
	"model-out":    "report.model_out",
	"store":        "store.path",
	"log-level":    "log.level",
}

// Load reads the config file at filePath (skipped when empty), then applies
// environment variables and any flags in fs that appear in FlagBindings.
// A flag overrides the other sources only when it was set explicitly.
func Load(filePath string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if err := bindEnvs(v); err != nil {
		return nil, err
	}

	if filePath != "" {
		v.SetConfigFile(filePath)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", filePath)
		}
	}

	if fs != nil {
		for name, key := range FlagBindings {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, errors.Wrapf(err, "bind flag %s", name)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := Load("", nil)
	if err != nil {
		// defaults are static
		panic(err)
	}
	return cfg
}

// bindEnvs binds the environment variables to the viper instance.
func bindEnvs(v *viper.Viper) error {
	for key, envs := range envBindings {
		inputs := slices.Insert(slices.Clone(envs), 0, key)
		if err := v.BindEnv(inputs...); err != nil {
			return err
		}
	}
	return nil
}

// Validate rejects settings the walkthrough cannot run with.
func (c *Config) Validate() error {
	if c.Model.TestSize <= 0 || c.Model.TestSize >= 1 {
		return errors.NewValidationError("model.test_size", "must be in (0, 1)", c.Model.TestSize)
	}
	if c.Model.CV < 2 {
		return errors.NewValidationError("model.cv", "must be at least 2", c.Model.CV)
	}
	if len(c.Model.NEstimatorsGrid) == 0 {
		return errors.NewValidationError("model.n_estimators_grid", "must list at least one value", c.Model.NEstimatorsGrid)
	}
	for _, n := range c.Model.NEstimatorsGrid {
		if n < 1 {
			return errors.NewValidationError("model.n_estimators_grid", "values must be >= 1", n)
		}
	}
	if c.Model.Target == "" {
		return errors.NewValidationError("model.target", "must not be empty", c.Model.Target)
	}
	if c.Report.TopK < 0 {
		return errors.NewValidationError("report.top_k", "must be >= 0", c.Report.TopK)
	}
	if _, err := log.ToLogLevel(c.Log.Level); err != nil {
		return errors.NewValidationError("log.level", "must be debug, info, warn or error", c.Log.Level)
	}
	return nil
}

// BeersPath returns the beers file inside the extraction directory.
func (c *Config) BeersPath() string { return joinPath(c.Data.Dir, c.Data.Beers) }

// BreweriesPath returns the breweries file inside the extraction directory.
func (c *Config) BreweriesPath() string { return joinPath(c.Data.Dir, c.Data.Breweries) }

func joinPath(dir, name string) string {
	if filepath.IsAbs(name) || dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}
