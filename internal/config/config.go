// Package config loads the intelicar configuration from defaults, an optional
// YAML file, a .env file and INTELICAR_* environment variables, in that order
// of increasing precedence.
package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	scigoErrors "github.com/ezoic/intelicar/pkg/errors"
)

// Environment variables.
const (
	EnvDataDir      = "INTELICAR_DATA_DIR"
	EnvAddr         = "INTELICAR_ADDR"
	EnvLogLevel     = "INTELICAR_LOG_LEVEL"
	EnvTimeLimit    = "INTELICAR_TIME_LIMIT"
	EnvEnableImages = "INTELICAR_ENABLE_IMAGES"
)

// DefaultEnvFile is loaded when present.
const DefaultEnvFile = ".env"

// Config is the application configuration.
type Config struct {
	DataDir   string          `yaml:"data_dir"`
	LogLevel  string          `yaml:"log_level"`
	Server    ServerConfig    `yaml:"server"`
	Training  TrainingConfig  `yaml:"training"`
	Reporting ReportingConfig `yaml:"reporting"`
}

// ServerConfig configures the web UI.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	EnableImages    bool          `yaml:"enable_images"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TrainingConfig configures the data science pipeline.
type TrainingConfig struct {
	Label       string        `yaml:"label"`
	TimeLimit   time.Duration `yaml:"time_limit"`
	Presets     []string      `yaml:"presets"`
	TestSize    float64       `yaml:"test_size"`
	HoldoutFrac float64       `yaml:"holdout_frac"`
	Seed        uint64        `yaml:"seed"`
	MaxWorkers  int           `yaml:"max_workers"`
}

// ReportingConfig configures the reporting pipeline.
type ReportingConfig struct {
	ImportanceSampleSize int `yaml:"importance_sample_size"`
	ImportanceShuffles   int `yaml:"importance_shuffles"`
}

// MarshalYAML writes durations in time.Duration string form, which is what
// the decoder accepts.
func (s ServerConfig) MarshalYAML() (interface{}, error) {
	return struct {
		Addr            string `yaml:"addr"`
		EnableImages    bool   `yaml:"enable_images"`
		ReadTimeout     string `yaml:"read_timeout"`
		WriteTimeout    string `yaml:"write_timeout"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	}{s.Addr, s.EnableImages, s.ReadTimeout.String(), s.WriteTimeout.String(), s.ShutdownTimeout.String()}, nil
}

// MarshalYAML writes the time limit in time.Duration string form.
func (t TrainingConfig) MarshalYAML() (interface{}, error) {
	return struct {
		Label       string   `yaml:"label"`
		TimeLimit   string   `yaml:"time_limit"`
		Presets     []string `yaml:"presets"`
		TestSize    float64  `yaml:"test_size"`
		HoldoutFrac float64  `yaml:"holdout_frac"`
		Seed        uint64   `yaml:"seed"`
		MaxWorkers  int      `yaml:"max_workers"`
	}{t.Label, t.TimeLimit.String(), t.Presets, t.TestSize, t.HoldoutFrac, t.Seed, t.MaxWorkers}, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir:  "data",
		LogLevel: "info",
		Server: ServerConfig{
			Addr:            "127.0.0.1:8501",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Training: TrainingConfig{
			Label:       "sellingprice",
			TimeLimit:   60 * time.Second,
			Presets:     []string{"high_quality", "optimize_for_deployment"},
			TestSize:    0.2,
			HoldoutFrac: 0.2,
			Seed:        42,
		},
		Reporting: ReportingConfig{
			ImportanceSampleSize: 5000,
			ImportanceShuffles:   3,
		},
	}
}

// Load builds the configuration. path may be empty to skip the YAML file.
// The .env file in the working directory is loaded if it exists; variables
// already set in the environment win over it.
func Load(path string) (*Config, error) {
	return LoadWithEnvFile(path, DefaultEnvFile)
}

// LoadWithEnvFile is Load with an explicit .env path.
func LoadWithEnvFile(path, envFile string) (*Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, scigoErrors.Wrapf(err, "load %s", envFile)
			}
		}
	}

	cfg := Default()
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, scigoErrors.Wrapf(err, "open config %s", path)
		}
		defer func() { _ = file.Close() }()
		if err := cfg.decode(file); err != nil {
			return nil, scigoErrors.Wrapf(err, "parse config %s", path)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !scigoErrors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvDataDir); ok && v != "" {
		c.DataDir = v
	}
	if v, ok := lookup(EnvAddr); ok && v != "" {
		c.Server.Addr = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup(EnvTimeLimit); ok && v != "" {
		d, err := ParseDuration(v)
		if err != nil {
			return scigoErrors.Wrapf(err, "%s", EnvTimeLimit)
		}
		c.Training.TimeLimit = d
	}
	if v, ok := lookup(EnvEnableImages); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return scigoErrors.Wrapf(scigoErrors.ErrInvalidValue, "%s=%q", EnvEnableImages, v)
		}
		c.Server.EnableImages = b
	}
	return nil
}

// ParseDuration accepts Go durations ("90s", "2m") and plain seconds ("60").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, scigoErrors.Wrapf(scigoErrors.ErrInvalidValue, "duration %q", s)
	}
	return d, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.DataDir == "":
		return scigoErrors.NewValidationError("data_dir", "must not be empty", c.DataDir)
	case c.Server.Addr == "":
		return scigoErrors.NewValidationError("server.addr", "must not be empty", c.Server.Addr)
	case c.Training.Label == "":
		return scigoErrors.NewValidationError("training.label", "must not be empty", c.Training.Label)
	case c.Training.TimeLimit < 0:
		return scigoErrors.NewValidationError("training.time_limit", "must not be negative", c.Training.TimeLimit)
	case c.Training.TestSize <= 0 || c.Training.TestSize >= 1:
		return scigoErrors.NewValidationError("training.test_size", "must be in (0, 1)", c.Training.TestSize)
	case c.Training.HoldoutFrac <= 0 || c.Training.HoldoutFrac >= 1:
		return scigoErrors.NewValidationError("training.holdout_frac", "must be in (0, 1)", c.Training.HoldoutFrac)
	case c.Training.MaxWorkers < 0:
		return scigoErrors.NewValidationError("training.max_workers", "must not be negative", c.Training.MaxWorkers)
	case c.Reporting.ImportanceSampleSize < 0:
		return scigoErrors.NewValidationError("reporting.importance_sample_size", "must not be negative", c.Reporting.ImportanceSampleSize)
	}
	return nil
}

// Save writes c as YAML to path.
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return scigoErrors.Wrap(err, "marshal config")
	}
	if err := enc.Close(); err != nil {
		return scigoErrors.Wrap(err, "marshal config")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return scigoErrors.Wrapf(err, "create %s", filepath.Dir(path))
	}
	return scigoErrors.Wrapf(os.WriteFile(path, buf.Bytes(), 0o644), "write config %s", path)
}

// Path joins elem onto the data directory.
func (c *Config) Path(elem ...string) string {
	return filepath.Join(append([]string{c.DataDir}, elem...)...)
}

// ModelsDir is the root of the model directories.
func (c *Config) ModelsDir() string {
	return c.Path("06_models")
}

// CatalogPaths maps every file artifact to its path under DataDir.
func (c *Config) CatalogPaths() map[string]string {
	return map[string]string{
		"car_prices":              c.Path("01_raw", "car_prices.csv"),
		"processed_car_prices":    c.Path("02_intermediate", "processed_car_prices.csv"),
		"car_mapping":             c.Path("03_primary", "car_mapping.json"),
		"colors":                  c.Path("03_primary", "colors.csv"),
		"interior":                c.Path("03_primary", "interior.csv"),
		"transmission":            c.Path("03_primary", "transmission.csv"),
		"train_df":                c.Path("05_model_input", "train.csv"),
		"test_df":                 c.Path("05_model_input", "test.csv"),
		"performance_report":      c.Path("08_reporting", "performance_report.json"),
		"feature_importance":      c.Path("08_reporting", "feature_importance.json"),
		"feature_importance_plot": c.Path("08_reporting", "feature_importance_plot.png"),
	}
}
