// Package config holds the auditor's runtime settings. Values come from an
// optional YAML or JSON file, then environment overrides, then defaults.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"auditor/internal/oracle"
	"auditor/internal/store"
)

// ErrMissingCredentials is returned when the selected oracle backend needs a
// key or directory that is not configured.
var ErrMissingCredentials = errors.New("config: missing oracle credentials")

// Duration is a time.Duration that reads "90s" style strings from YAML and
// JSON.
type Duration struct{ time.Duration }

func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return d.set(s)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return d.set(s)
}

func (d Duration) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

func (d *Duration) set(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	d.Duration = v
	return nil
}

// Config is the full runtime configuration.
type Config struct {
	Oracle      string   `yaml:"oracle" json:"oracle"`
	Model       string   `yaml:"model" json:"model"`
	VisionModel string   `yaml:"vision_model" json:"vision_model"`
	APIKey      string   `yaml:"-" json:"-"`
	Temperature float32  `yaml:"temperature" json:"temperature"`
	MaxAttempts int      `yaml:"max_attempts" json:"max_attempts"`
	Parallel    int      `yaml:"parallel" json:"parallel"`
	FileDir     string   `yaml:"file_dir" json:"file_dir"`
	FileTimeout Duration `yaml:"file_timeout" json:"file_timeout"`

	CloneTimeout Duration `yaml:"clone_timeout" json:"clone_timeout"`
	QueryTimeout Duration `yaml:"query_timeout" json:"query_timeout"`
	CloneDepth   int      `yaml:"clone_depth" json:"clone_depth"`

	Rubric    string `yaml:"rubric" json:"rubric"`
	OutputDir string `yaml:"output_dir" json:"output_dir"`
	DBPath    string `yaml:"db_path" json:"db_path"`
	NoHistory bool   `yaml:"no_history" json:"no_history"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Oracle:       oracle.BackendBasic,
		Model:        oracle.DefaultModel,
		VisionModel:  oracle.DefaultVisionModel,
		Temperature:  0.2,
		MaxAttempts:  3,
		FileTimeout:  Duration{oracle.DefaultFileTimeout},
		CloneTimeout: Duration{120 * time.Second},
		QueryTimeout: Duration{60 * time.Second},
		OutputDir:    "audit",
		DBPath:       store.DefaultDBPath,
	}
}

// LoadFromPath reads a config file (YAML or JSON) over the defaults.
// Format is detected by extension (.yaml/.yml, .json) or by content.
func LoadFromPath(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Load(data, filepath.Ext(path))
}

// Load parses config bytes over the defaults. ext is the file extension
// used as a format hint; empty means detect from content.
func Load(data []byte, ext string) (Config, error) {
	c := Default()
	ext = strings.ToLower(ext)
	if ext == ".yml" {
		ext = ".yaml"
	}
	if ext == "" && strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
		ext = ".json"
	}
	if ext == ".json" {
		if err := json.Unmarshal(data, &c); err != nil {
			return Config{}, fmt.Errorf("parse config json: %w", err)
		}
		return c, nil
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("parse config yaml: %w", err)
	}
	return c, nil
}

// Resolve loads path when given, otherwise the defaults, then applies the
// environment.
func Resolve(path string) (Config, error) {
	c := Default()
	if path != "" {
		var err error
		if c, err = LoadFromPath(path); err != nil {
			return Config{}, err
		}
	}
	if err := c.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return c, nil
}

// ApplyEnv overlays environment variables read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("AUDITOR_ORACLE", &c.Oracle)
	str("AUDITOR_MODEL", &c.Model)
	str("AUDITOR_VISION_MODEL", &c.VisionModel)
	str("AUDITOR_DB", &c.DBPath)
	str("AUDITOR_OUTPUT_DIR", &c.OutputDir)
	str("AUDITOR_RUBRIC", &c.Rubric)
	str("AUDITOR_FILE_DIR", &c.FileDir)
	str("GOOGLE_API_KEY", &c.APIKey)
	str("GEMINI_API_KEY", &c.APIKey)
	if v, ok := lookup("AUDITOR_PARALLEL"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("AUDITOR_PARALLEL: %w", err)
		}
		c.Parallel = n
	}
	return nil
}

// Validate fails fast on settings that would break a run before it starts.
func (c Config) Validate() error {
	switch c.Oracle {
	case oracle.BackendBasic:
	case oracle.BackendGenAI:
		if c.APIKey == "" {
			return fmt.Errorf("%w: genai backend needs GEMINI_API_KEY or GOOGLE_API_KEY", ErrMissingCredentials)
		}
	case oracle.BackendFile:
		if c.FileDir == "" {
			return fmt.Errorf("%w: file backend needs file_dir or AUDITOR_FILE_DIR", ErrMissingCredentials)
		}
	default:
		return fmt.Errorf("%w: %q", oracle.ErrUnknownBackend, c.Oracle)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.CloneDepth < 0 {
		return fmt.Errorf("clone_depth must not be negative, got %d", c.CloneDepth)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature %.2f out of [0,2]", c.Temperature)
	}
	return nil
}

// OracleOptions converts c into oracle construction options.
func (c Config) OracleOptions() oracle.Options {
	return oracle.Options{
		Backend:     c.Oracle,
		APIKey:      c.APIKey,
		Model:       c.Model,
		VisionModel: c.VisionModel,
		Temperature: c.Temperature,
		FileDir:     c.FileDir,
		FileTimeout: c.FileTimeout.Duration,
	}
}
