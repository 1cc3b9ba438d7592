package capabilities

import (
	"fmt"
	"log/slog"
	"strings"
)

// AutoCapabilityDetector derives capabilities from the loaded model
type AutoCapabilityDetector struct{}

// NewAutoCapabilityDetector creates a new auto-capability detector
func NewAutoCapabilityDetector() *AutoCapabilityDetector {
	return &AutoCapabilityDetector{}
}

// DetectCapabilities inspects the model and lists everything it can serve
func (d *AutoCapabilityDetector) DetectCapabilities(model ModelInterface) []Capability {
	var caps []Capability

	if model.NumTrees() > 0 {
		caps = append(caps, Capability{
			Type:    CapabilityRiskScoring,
			Version: "1.0",
			Parameters: map[string]interface{}{
				"num_features": model.NumFeatures(),
				"num_trees":    model.NumTrees(),
			},
			Description: "Score one input record to a positive-class probability",
		})
	}

	if len(model.FeatureNames()) > 0 {
		caps = append(caps, Capability{
			Type:        CapabilitySchemaIntrospection,
			Version:     "1.0",
			Description: "Expose the ordered feature schema the model expects",
		})
	}

	// Attribution needs the per-node cover statistics retained at export
	if model.HasCoverStats() {
		caps = append(caps, Capability{
			Type:        CapabilityAttribution,
			Version:     "1.0",
			Description: "Per-feature contribution explanation for one prediction",
		})
		slog.Debug("Detected attribution capability", "architecture", model.Architecture())
	}

	return caps
}

// SupportsCapability checks a single capability
func (d *AutoCapabilityDetector) SupportsCapability(model ModelInterface, capability CapabilityType) bool {
	for _, c := range d.DetectCapabilities(model) {
		if c.Type == capability {
			return true
		}
	}
	return false
}

// GetCapabilityStrings converts capabilities to a plain string list
func (d *AutoCapabilityDetector) GetCapabilityStrings(caps []Capability) []string {
	out := make([]string, len(caps))
	for i, c := range caps {
		out[i] = string(c.Type)
	}
	return out
}

// GetCapabilitiesSummary renders a one-line summary for logging
func (d *AutoCapabilityDetector) GetCapabilitiesSummary(caps []Capability) string {
	parts := make([]string, len(caps))
	for i, c := range caps {
		parts[i] = fmt.Sprintf("%s/v%s", c.Type, c.Version)
	}
	return strings.Join(parts, ", ")
}
