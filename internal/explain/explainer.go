package explain

import (
	"errors"
	"fmt"

	"github.com/clinflow/risk-inference-service/internal/booster"
)

// ErrIncompatibleModel is the recognized failure signal of the general
// explainer: the serialized model state lacks an internal parameter or
// version marker the format sniffing expects. Callers dispatch to the
// tree-level fallback on this error and on nothing broader.
var ErrIncompatibleModel = errors.New("model state incompatible with general explainer")

// supportedObjectives are the learner objectives the general path knows
// how to attribute.
var supportedObjectives = map[string]struct{}{
	"binary:logistic": {},
	"binary:logitraw": {},
}

// Explainer is the general-purpose, architecture-agnostic attribution
// entry point. It sniffs the model family and wrapper state itself and
// dispatches internally; some serialized-model provenances fail this
// sniffing even though the tree-level path can still serve them.
type Explainer struct {
	inner *TreeExplainer
}

// NewExplainer inspects the wrapper and constructs the attribution
// pipeline, or reports ErrIncompatibleModel when the wrapper's recorded
// state is insufficient.
func NewExplainer(m *booster.Model) (*Explainer, error) {
	meta := m.Metadata()
	if meta.FormatVersion == "" {
		return nil, fmt.Errorf("%w: wrapper records no format version", ErrIncompatibleModel)
	}
	if _, ok := supportedObjectives[meta.Objective]; !ok {
		return nil, fmt.Errorf("%w: unrecognized objective %q", ErrIncompatibleModel, meta.Objective)
	}

	raw := m.Booster()
	if len(raw.FeatureNames()) == 0 {
		// The wrapper's schema is authoritative when the raw
		// representation dropped its names.
		if err := raw.SetFeatureNames(m.FeatureNames()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIncompatibleModel, err)
		}
	}

	inner, err := NewTreeExplainer(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIncompatibleModel, err)
	}
	return &Explainer{inner: inner}, nil
}

// SetMaxDisplay caps the chart rows for rendered artifacts.
func (e *Explainer) SetMaxDisplay(n int) { e.inner.MaxDisplay = n }

// Explain attributes one schema-ordered vector, rendered as a
// single-record waterfall.
func (e *Explainer) Explain(x []float64) (*Attribution, error) {
	return e.inner.explain(x, "explainer", ChartWaterfall)
}
