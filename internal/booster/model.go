package booster

import (
	"github.com/clinflow/risk-inference-service/internal/gbtree"
)

// Metadata carries the wrapper-level attributes recorded at training time.
// FormatVersion and Objective are the internal markers the general
// attribution path keys on; artifacts loaded through degraded paths may
// leave them empty.
type Metadata struct {
	ModelName     string `json:"model_name" yaml:"model_name"`
	FormatVersion string `json:"format_version" yaml:"format_version"`
	Objective     string `json:"objective" yaml:"objective"`
	TrainedAt     string `json:"trained_at,omitempty" yaml:"trained_at,omitempty"`
}

// Model is the loaded classifier plus its input contract. It is built once
// by Load, never mutated afterwards, and safe for concurrent readers.
type Model struct {
	ensemble     *gbtree.Ensemble
	meta         Metadata
	featureNames []string
}

// FeatureNames returns the ordered feature schema. Callers must treat the
// slice as read-only.
func (m *Model) FeatureNames() []string { return m.featureNames }

// NumFeatures returns the input dimensionality.
func (m *Model) NumFeatures() int { return m.ensemble.NumFeatures() }

// Metadata returns the wrapper metadata recorded with the artifact.
func (m *Model) Metadata() Metadata { return m.meta }

// NumTrees returns the ensemble size.
func (m *Model) NumTrees() int { return m.ensemble.NumTrees() }

// PredictProba scores one schema-ordered vector, returning the
// positive-class probability.
func (m *Model) PredictProba(x []float64) (float64, error) {
	return m.ensemble.PredictProba(x)
}

// Margin returns the raw margin-space score for one vector.
func (m *Model) Margin(x []float64) (float64, error) {
	return m.ensemble.Margin(x)
}

// Booster returns a detached copy of the lower-level tree-ensemble
// representation. The copy may lack feature names; callers re-attach them
// with SetFeatureNames before tree-level attribution.
func (m *Model) Booster() *gbtree.Ensemble {
	return m.ensemble.Clone()
}

// HasCoverStats reports whether the ensemble retains the per-node cover
// statistics attribution needs.
func (m *Model) HasCoverStats() bool { return m.ensemble.HasCovers() }

// Architecture identifies the model family.
func (m *Model) Architecture() string { return "gbtree" }
