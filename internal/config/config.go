// Package config loads project settings from lineage.yml.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Gateway kinds.
const (
	GatewayOllama = "ollama"
	GatewayA2A    = "a2a"
	GatewayNone   = "none"
)

// FileNames are the config file names probed by Load, in order.
var FileNames = []string{"lineage.yml", "lineage.yaml"}

// Config holds project-level settings. It is passed explicitly to the
// components that need it.
type Config struct {
	Gateway      GatewayConfig   `yaml:"gateway"`
	Collector    CollectorConfig `yaml:"collector"`
	Index        IndexConfig     `yaml:"index"`
	TemplatePath string          `yaml:"templatePath,omitempty"`
	Tests        TestSettings    `yaml:"tests"`
	Verbose      bool            `yaml:"verbose,omitempty"`
}

// GatewayConfig selects and tunes the model backend.
type GatewayConfig struct {
	Kind              string        `yaml:"kind"`
	Endpoint          string        `yaml:"endpoint"`
	Model             string        `yaml:"model"`
	Temperature       float64       `yaml:"temperature"`
	NumPredict        int           `yaml:"numPredict"`
	TopK              int           `yaml:"topK"`
	TopP              float64       `yaml:"topP"`
	RepeatPenalty     float64       `yaml:"repeatPenalty"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond,omitempty"`
}

// CollectorConfig tunes context collection.
type CollectorConfig struct {
	MaxDepth int `yaml:"maxDepth,omitempty"`
}

// IndexConfig controls repository indexing.
type IndexConfig struct {
	Languages   []string `yaml:"languages,omitempty"`
	ExcludeDirs []string `yaml:"excludeDirs,omitempty"`
	// GraphDir is where the persisted graph lives, relative to the project.
	GraphDir string `yaml:"graphDir,omitempty"`
}

// TestSettings parameterise unit test generation.
type TestSettings struct {
	Language       string `yaml:"language"`
	Framework      string `yaml:"framework"`
	JavaVersion    string `yaml:"javaVersion"`
	SparkVersion   string `yaml:"sparkVersion"`
	MockitoVersion string `yaml:"mockitoVersion"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Kind:          GatewayOllama,
			Endpoint:      "http://localhost:11434",
			Model:         "gemma3:4b",
			Temperature:   0.1,
			NumPredict:    2048,
			TopK:          50,
			TopP:          0.95,
			RepeatPenalty: 1.0,
			Timeout:       1000 * time.Second,
		},
		Index: IndexConfig{
			GraphDir: filepath.Join(".lineage", "graph"),
		},
		Tests: TestSettings{
			Language:       "Java",
			Framework:      "JUnit",
			JavaVersion:    "11",
			SparkVersion:   "3.3.2",
			MockitoVersion: "4.11.0",
		},
	}
}

// Load reads lineage.yml or lineage.yaml from dir on top of Default.
// A missing file is not an error.
func Load(dir string) (*Config, error) {
	cfg := Default()
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
		return cfg, nil
	}
	return cfg, nil
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	switch c.Gateway.Kind {
	case GatewayOllama, GatewayA2A:
		if c.Gateway.Endpoint == "" {
			return fmt.Errorf("gateway %s needs an endpoint", c.Gateway.Kind)
		}
	case GatewayNone:
	default:
		return fmt.Errorf("unknown gateway kind %q", c.Gateway.Kind)
	}
	if c.Collector.MaxDepth < 0 {
		return fmt.Errorf("collector.maxDepth must not be negative")
	}
	if c.Gateway.RequestsPerSecond < 0 {
		return fmt.Errorf("gateway.requestsPerSecond must not be negative")
	}
	return nil
}
