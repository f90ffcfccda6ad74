package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"auditor/internal/oracle"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoad_YAMLOverDefaults(t *testing.T) {
	data := []byte(`
oracle: file
file_dir: /tmp/court
file_timeout: 2m
clone_depth: 1
parallel: 4
`)
	c, err := Load(data, ".yml")
	if err != nil {
		t.Fatal(err)
	}
	if c.Oracle != oracle.BackendFile || c.FileDir != "/tmp/court" || c.FileTimeout.Duration != 2*time.Minute {
		t.Errorf("file settings = %+v", c)
	}
	if c.CloneDepth != 1 || c.Parallel != 4 {
		t.Errorf("depth/parallel = %d/%d", c.CloneDepth, c.Parallel)
	}
	if c.MaxAttempts != 3 || c.CloneTimeout.Duration != 120*time.Second || c.OutputDir != "audit" {
		t.Errorf("defaults lost: %+v", c)
	}
}

func TestLoad_JSONDetectedByContent(t *testing.T) {
	c, err := Load([]byte(`{"oracle": "genai", "model": "gemini-x", "clone_timeout": "30s"}`), "")
	if err != nil {
		t.Fatal(err)
	}
	if c.Oracle != oracle.BackendGenAI || c.Model != "gemini-x" || c.CloneTimeout.Duration != 30*time.Second {
		t.Errorf("config = %+v", c)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load([]byte(`clone_timeout: soon`), ".yaml"); err == nil {
		t.Error("bad duration accepted")
	}
	if _, err := Load([]byte(`{"oracle": `), ".json"); err == nil {
		t.Error("bad json accepted")
	}
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file accepted")
	}
}

func TestApplyEnv(t *testing.T) {
	c := Default()
	err := c.ApplyEnv(env(map[string]string{
		"AUDITOR_ORACLE":   "genai",
		"GOOGLE_API_KEY":   "google",
		"GEMINI_API_KEY":   "gemini",
		"AUDITOR_DB":       "/var/lib/auditor.db",
		"AUDITOR_PARALLEL": "2",
		"AUDITOR_MODEL":    "",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if c.Oracle != "genai" || c.APIKey != "gemini" || c.DBPath != "/var/lib/auditor.db" || c.Parallel != 2 {
		t.Errorf("config = %+v", c)
	}
	if c.Model != oracle.DefaultModel {
		t.Errorf("empty env overrode model: %q", c.Model)
	}
	if err := c.ApplyEnv(env(map[string]string{"AUDITOR_PARALLEL": "many"})); err == nil {
		t.Error("bad AUDITOR_PARALLEL accepted")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		target error
		ok     bool
	}{
		{"defaults", func(*Config) {}, nil, true},
		{"genai without key", func(c *Config) { c.Oracle = "genai" }, ErrMissingCredentials, false},
		{"genai with key", func(c *Config) { c.Oracle, c.APIKey = "genai", "k" }, nil, true},
		{"file without dir", func(c *Config) { c.Oracle = "file" }, ErrMissingCredentials, false},
		{"unknown backend", func(c *Config) { c.Oracle = "tarot" }, oracle.ErrUnknownBackend, false},
		{"zero attempts", func(c *Config) { c.MaxAttempts = 0 }, nil, false},
		{"negative depth", func(c *Config) { c.CloneDepth = -1 }, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			err := c.Validate()
			if (err == nil) != tt.ok {
				t.Fatalf("Validate() = %v, ok=%v", err, tt.ok)
			}
			if tt.target != nil && !errors.Is(err, tt.target) {
				t.Errorf("err = %v, want %v", err, tt.target)
			}
		})
	}
}

func TestResolve_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auditor.yaml")
	if err := os.WriteFile(path, []byte("oracle: basic\noutput_dir: out\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AUDITOR_OUTPUT_DIR", "env-out")
	c, err := Resolve(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.OutputDir != "env-out" {
		t.Errorf("OutputDir = %q, want env override", c.OutputDir)
	}
	if o := c.OracleOptions(); o.Backend != "basic" || o.FileTimeout != oracle.DefaultFileTimeout {
		t.Errorf("oracle options = %+v", o)
	}
}
