package gbtree

import (
	"fmt"
	"math"
)

// Ensemble is an additive ensemble of regression trees producing a
// margin-space score. It is immutable after construction; Clone makes a
// detached copy when a caller needs to attach feature names to the raw
// representation without touching the loaded model.
type Ensemble struct {
	trees        []Tree
	baseMargin   float64
	numFeatures  int
	featureNames []string
}

// NewEnsemble builds and validates an ensemble from decoded trees.
func NewEnsemble(trees []Tree, baseMargin float64, numFeatures int, featureNames []string) (*Ensemble, error) {
	if numFeatures <= 0 {
		return nil, fmt.Errorf("ensemble declares %d features", numFeatures)
	}
	if len(trees) == 0 {
		return nil, fmt.Errorf("ensemble has no trees")
	}
	for i := range trees {
		if err := trees[i].validate(numFeatures); err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
	}
	if len(featureNames) != 0 && len(featureNames) != numFeatures {
		return nil, fmt.Errorf("%d feature names for %d features", len(featureNames), numFeatures)
	}
	e := &Ensemble{
		trees:       trees,
		baseMargin:  baseMargin,
		numFeatures: numFeatures,
	}
	if len(featureNames) != 0 {
		e.featureNames = append([]string(nil), featureNames...)
	}
	return e, nil
}

// NumTrees returns the number of trees in the ensemble.
func (e *Ensemble) NumTrees() int { return len(e.trees) }

// NumFeatures returns the declared input dimensionality.
func (e *Ensemble) NumFeatures() int { return e.numFeatures }

// BaseMargin returns the margin-space intercept.
func (e *Ensemble) BaseMargin() float64 { return e.baseMargin }

// Trees exposes the underlying trees for attribution. Callers must not
// mutate the returned slice.
func (e *Ensemble) Trees() []Tree { return e.trees }

// FeatureNames returns the names recorded in the weight document, or nil
// when the serialized representation did not retain them.
func (e *Ensemble) FeatureNames() []string { return e.featureNames }

// Margin sums the base margin and all tree outputs for one vector.
func (e *Ensemble) Margin(x []float64) (float64, error) {
	if len(x) != e.numFeatures {
		return 0, fmt.Errorf("got %d values, model expects %d", len(x), e.numFeatures)
	}
	margin := e.baseMargin
	for i := range e.trees {
		margin += e.trees[i].Walk(x)
	}
	return margin, nil
}

// PredictProba returns the positive-class probability for one vector.
func (e *Ensemble) PredictProba(x []float64) (float64, error) {
	margin, err := e.Margin(x)
	if err != nil {
		return 0, err
	}
	return sigmoid(margin), nil
}

// ExpectedValue is the cover-weighted mean margin over the training
// distribution, used as the attribution base value.
func (e *Ensemble) ExpectedValue() float64 {
	v := e.baseMargin
	for i := range e.trees {
		v += e.trees[i].expectedValue()
	}
	return v
}

// HasCovers reports whether every tree carries usable cover statistics.
func (e *Ensemble) HasCovers() bool {
	for i := range e.trees {
		for _, node := range e.trees[i].Nodes {
			if node.Cover <= 0 {
				return false
			}
		}
	}
	return true
}

// MaxDepth returns the deepest tree depth, counting the root as 1.
func (e *Ensemble) MaxDepth() int {
	depth := 0
	for i := range e.trees {
		if d := e.trees[i].maxDepth(); d > depth {
			depth = d
		}
	}
	return depth
}

// Clone returns a detached copy sharing the (immutable) tree data but with
// its own feature-name slice, so SetFeatureNames cannot reach back into
// the loaded model.
func (e *Ensemble) Clone() *Ensemble {
	clone := &Ensemble{
		trees:       e.trees,
		baseMargin:  e.baseMargin,
		numFeatures: e.numFeatures,
	}
	if e.featureNames != nil {
		clone.featureNames = append([]string(nil), e.featureNames...)
	}
	return clone
}

// SetFeatureNames attaches names to the raw representation. The serialized
// form does not always retain them, and attribution needs them for labels.
func (e *Ensemble) SetFeatureNames(names []string) error {
	if len(names) != e.numFeatures {
		return fmt.Errorf("%d names for %d features", len(names), e.numFeatures)
	}
	e.featureNames = append([]string(nil), names...)
	return nil
}

func sigmoid(margin float64) float64 {
	return 1.0 / (1.0 + math.Exp(-margin))
}
