package capabilities

// CapabilityType represents an operation the loaded model can serve
type CapabilityType string

const (
	CapabilityRiskScoring         CapabilityType = "risk-scoring"
	CapabilityAttribution         CapabilityType = "attribution"
	CapabilitySchemaIntrospection CapabilityType = "schema-introspection"
)

// Capability represents a specific capability with metadata
type Capability struct {
	Type        CapabilityType         `json:"type"`
	Version     string                 `json:"version"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
	Description string                 `json:"description,omitempty"`
}

// ModelInterface defines the introspection surface the detector needs
type ModelInterface interface {
	Architecture() string
	NumFeatures() int
	NumTrees() int
	FeatureNames() []string
	HasCoverStats() bool
}
