package orchestrator

import "github.com/dusk-indust/lineage/internal/config"

// CapabilityLevel describes what the pipeline can reach at runtime.
type CapabilityLevel int

const (
	// CapOffline has no model. Diagrams are rendered from the call graph.
	CapOffline CapabilityLevel = iota

	// CapModel has a reachable model gateway.
	CapModel
)

func (c CapabilityLevel) String() string {
	switch c {
	case CapOffline:
		return "offline"
	case CapModel:
		return "model"
	default:
		return "unknown"
	}
}

// Config holds runtime configuration for a pipeline.
type Config struct {
	// Capability selects between model and offline execution.
	Capability CapabilityLevel

	// MaxDepth bounds the context walk. Zero means unlimited.
	MaxDepth int

	// Concurrency caps the analyses AnalyzeAll runs at once. Zero means
	// DefaultConcurrency.
	Concurrency int

	// FallbackOnError renders the offline diagram when the model call
	// fails instead of failing the analysis.
	FallbackOnError bool

	// Tests parameterise GenerateTests.
	Tests config.TestSettings
}

// DefaultConcurrency is used when Config.Concurrency is zero.
const DefaultConcurrency = 4

// FromProject derives a pipeline Config from project settings.
func FromProject(cfg *config.Config, capability CapabilityLevel) Config {
	return Config{
		Capability: capability,
		MaxDepth:   cfg.Collector.MaxDepth,
		Tests:      cfg.Tests,
	}
}
