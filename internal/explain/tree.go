package explain

import (
	"fmt"

	"github.com/clinflow/risk-inference-service/internal/gbtree"
)

// TreeExplainer attributes predictions directly on the lower-level
// tree-ensemble representation. It tolerates artifacts the general
// explainer rejects, but the representation does not always retain feature
// names: callers must re-attach the schema with SetFeatureNames before
// constructing one.
type TreeExplainer struct {
	ensemble *gbtree.Ensemble
	names    []string
	base     float64

	// MaxDisplay caps chart rows; zero means DefaultMaxDisplay.
	MaxDisplay int
}

// NewTreeExplainer validates that the ensemble carries what tree-level
// attribution needs: an attached feature schema and cover statistics.
func NewTreeExplainer(ensemble *gbtree.Ensemble) (*TreeExplainer, error) {
	names := ensemble.FeatureNames()
	if len(names) == 0 {
		return nil, fmt.Errorf("ensemble carries no feature names; attach the schema first")
	}
	if !ensemble.HasCovers() {
		return nil, fmt.Errorf("ensemble lacks cover statistics required for attribution")
	}
	return &TreeExplainer{
		ensemble: ensemble,
		names:    names,
		base:     ensemble.ExpectedValue(),
	}, nil
}

// Explain computes per-feature contributions for one schema-ordered
// vector, rendered as a bar chart.
func (t *TreeExplainer) Explain(x []float64) (*Attribution, error) {
	return t.explain(x, "tree", ChartBar)
}

func (t *TreeExplainer) explain(x []float64, method string, kind ChartKind) (*Attribution, error) {
	if len(x) != t.ensemble.NumFeatures() {
		return nil, fmt.Errorf("got %d values, ensemble expects %d", len(x), t.ensemble.NumFeatures())
	}
	margin, err := t.ensemble.Margin(x)
	if err != nil {
		return nil, err
	}

	phi := shapValues(t.ensemble, x)
	contribs := make([]Contribution, len(phi))
	for i, p := range phi {
		contribs[i] = Contribution{
			Feature:      t.names[i],
			Value:        x[i],
			Contribution: p,
		}
	}

	return &Attribution{
		Method:        method,
		BaseValue:     t.base,
		Margin:        margin,
		Contributions: contribs,
		Chart:         buildChart(kind, t.base, margin, contribs, t.MaxDisplay),
	}, nil
}
