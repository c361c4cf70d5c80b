package task

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Manifest is the structured alternative to a markdown tracking document.
type Manifest struct {
	Title string     `json:"title" yaml:"title" toml:"title"`
	Items []WorkItem `json:"items" yaml:"items" toml:"items" validate:"required,min=1,dive"`
}

// IsManifestPath reports whether path has a manifest extension.
func IsManifestPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".toml", ".json":
		return true
	}
	return false
}

// LoadManifest reads a YAML, TOML or JSON manifest from disk.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(data, filepath.Ext(path))
}

// ParseManifest decodes data according to ext (".yaml", ".yml", ".toml" or
// ".json") and validates the result. Items without a priority default to Medium.
func ParseManifest(data []byte, ext string) (*Manifest, error) {
	var m Manifest
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parse yaml manifest: %w", err)
		}
	case ".toml":
		if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&m); err != nil {
			return nil, fmt.Errorf("parse toml manifest: %w", err)
		}
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&m); err != nil {
			return nil, fmt.Errorf("parse json manifest: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported manifest format %q", ext)
	}

	for i := range m.Items {
		if m.Items[i].Priority == 0 {
			m.Items[i].Priority = PriorityMedium
		}
	}

	if err := validator.New().Struct(&m); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return &m, nil
}
