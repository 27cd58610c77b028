// Package config loads the optional project configuration for the chime CLI
// and embedders: storage locations, the source node name, score weights, and
// the index cache toggle.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/davidahmann/chime/core/descriptor"
)

const DefaultPath = ".chime/config.yaml"

type Config struct {
	Storage StorageDefaults `yaml:"storage"`
	Pulse   PulseDefaults   `yaml:"pulse"`
	Score   ScoreDefaults   `yaml:"score"`
}

type StorageDefaults struct {
	// Dir holds the chain logs and index snapshots. Defaults to .chime.
	Dir string `yaml:"dir"`
	// IndexCache toggles the persisted descriptor index snapshot.
	IndexCache bool `yaml:"index_cache"`
}

type PulseDefaults struct {
	SourceNode string `yaml:"source_node"`
}

type ScoreDefaults struct {
	Evidence    *float64 `yaml:"evidence"`
	Capability  *float64 `yaml:"capability"`
	Constraints *float64 `yaml:"constraints"`
}

func Load(path string, allowMissing bool) (Config, error) {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return Config{}, fmt.Errorf("config path is required")
	}

	// #nosec G304 -- config path is explicit local user input.
	content, err := os.ReadFile(trimmedPath)
	if err != nil {
		if os.IsNotExist(err) && allowMissing {
			return defaults(), nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(strings.TrimSpace(string(content))) == 0 {
		return defaults(), nil
	}

	var configuration Config
	if err := yaml.Unmarshal(content, &configuration); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	configuration.normalize()
	if err := configuration.validate(); err != nil {
		return Config{}, err
	}
	return configuration, nil
}

func defaults() Config {
	configuration := Config{}
	configuration.normalize()
	return configuration
}

// Weights resolves the score weights, falling back to the standard blend for
// any field the config leaves unset.
func (configuration *Config) Weights() descriptor.ScoreWeights {
	weights := descriptor.DefaultScoreWeights()
	if configuration.Score.Evidence != nil {
		weights.Evidence = *configuration.Score.Evidence
	}
	if configuration.Score.Capability != nil {
		weights.Capability = *configuration.Score.Capability
	}
	if configuration.Score.Constraints != nil {
		weights.Constraints = *configuration.Score.Constraints
	}
	return weights
}

// PulseLogPath, DescriptorLogPath and IndexCachePath locate the storage files
// under the configured directory.
func (configuration *Config) PulseLogPath() string {
	return filepath.Join(configuration.Storage.Dir, "pulses.jsonl")
}

func (configuration *Config) DescriptorLogPath() string {
	return filepath.Join(configuration.Storage.Dir, "descriptors.jsonl")
}

func (configuration *Config) IndexCachePath() string {
	if !configuration.Storage.IndexCache {
		return ""
	}
	return filepath.Join(configuration.Storage.Dir, "descriptors.index.json")
}

func (configuration *Config) normalize() {
	configuration.Storage.Dir = strings.TrimSpace(configuration.Storage.Dir)
	if configuration.Storage.Dir == "" {
		configuration.Storage.Dir = ".chime"
	}
	configuration.Pulse.SourceNode = strings.TrimSpace(configuration.Pulse.SourceNode)
}

func (configuration *Config) validate() error {
	if !configuration.Weights().Valid() {
		return fmt.Errorf("score weights must be non-negative and sum to 1")
	}
	return nil
}
