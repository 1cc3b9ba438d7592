package gbtree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validWeightDoc = `{
  "format": "gbtree",
  "version": 1,
  "num_features": 2,
  "base_margin": 0.1,
  "feature_names": ["age", "bmi"],
  "trees": [
    {"nodes": [
      {"feature": 0, "threshold": 0.5, "left": 1, "right": 2, "missing": 1, "cover": 10},
      {"feature": -1, "value": -1.0, "cover": 4},
      {"feature": -1, "value": 2.0, "cover": 6}
    ]}
  ]
}`

func TestDecodeWeights(t *testing.T) {
	e, err := DecodeWeights([]byte(validWeightDoc))
	require.NoError(t, err)

	assert.Equal(t, 1, e.NumTrees())
	assert.Equal(t, 2, e.NumFeatures())
	assert.Equal(t, []string{"age", "bmi"}, e.FeatureNames())
	assert.InDelta(t, 0.1, e.BaseMargin(), 1e-12)
}

func TestDecodeWeightsRejectsInvalidJSON(t *testing.T) {
	_, err := DecodeWeights([]byte(`{"format": "gbtree",`))
	assert.Error(t, err)
}

func TestDecodeWeightsSchemaViolations(t *testing.T) {
	cases := map[string]string{
		"wrong format":       `{"format":"linear","version":1,"num_features":2,"trees":[{"nodes":[{"feature":-1}]}]}`,
		"missing version":    `{"format":"gbtree","num_features":2,"trees":[{"nodes":[{"feature":-1}]}]}`,
		"zero features":      `{"format":"gbtree","version":1,"num_features":0,"trees":[{"nodes":[{"feature":-1}]}]}`,
		"no trees":           `{"format":"gbtree","version":1,"num_features":2,"trees":[]}`,
		"empty node list":    `{"format":"gbtree","version":1,"num_features":2,"trees":[{"nodes":[]}]}`,
		"duplicate names":    `{"format":"gbtree","version":1,"num_features":2,"feature_names":["a","a"],"trees":[{"nodes":[{"feature":-1}]}]}`,
		"empty feature name": `{"format":"gbtree","version":1,"num_features":2,"feature_names":["a",""],"trees":[{"nodes":[{"feature":-1}]}]}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeWeights([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestWeightDocBuildRejectsForeignFormat(t *testing.T) {
	doc := WeightDoc{Format: "linear", NumFeatures: 1, Trees: []Tree{{Nodes: []Node{{Feature: -1, Cover: 1}}}}}
	_, err := doc.Build()
	assert.ErrorContains(t, err, "unsupported weight format")
}
