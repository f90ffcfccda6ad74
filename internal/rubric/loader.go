package rubric

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the rubric file looked up when none is given.
const DefaultPath = "rubric.json"

//go:embed default.yaml
var defaultRubric []byte

// Default returns the built-in rubric.
func Default() (*Rubric, error) {
	return Load(defaultRubric, ".yaml")
}

// LoadFromPath reads a rubric file (YAML or JSON). Format is detected by
// extension (.yaml/.yml or .json) or, failing that, by content.
func LoadFromPath(path string) (*Rubric, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rubric: %w", err)
	}
	return Load(data, filepath.Ext(path))
}

// Resolve loads the rubric at path. With an empty path it tries DefaultPath
// in the working directory and falls back to the built-in rubric.
func Resolve(path string) (*Rubric, string, error) {
	if path != "" {
		r, err := LoadFromPath(path)
		return r, path, err
	}
	if _, err := os.Stat(DefaultPath); err == nil {
		r, err := LoadFromPath(DefaultPath)
		return r, DefaultPath, err
	}
	r, err := Default()
	return r, "(built-in)", err
}

// Load parses a rubric from bytes. ext is a format hint; empty means detect.
func Load(data []byte, ext string) (*Rubric, error) {
	ext = strings.ToLower(ext)
	if ext == ".yml" {
		ext = ".yaml"
	}
	if ext == "" {
		if strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
			ext = ".json"
		} else {
			ext = ".yaml"
		}
	}

	var r Rubric
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("parse rubric json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("parse rubric yaml: %w", err)
		}
	}
	if err := r.normalize(); err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rubric: %w", err)
	}
	return &r, nil
}
