package capabilities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeModel struct {
	trees  int
	names  []string
	covers bool
}

func (m fakeModel) Architecture() string   { return "gbtree" }
func (m fakeModel) NumFeatures() int       { return len(m.names) }
func (m fakeModel) NumTrees() int          { return m.trees }
func (m fakeModel) FeatureNames() []string { return m.names }
func (m fakeModel) HasCoverStats() bool    { return m.covers }

func TestDetectCapabilitiesFullModel(t *testing.T) {
	d := NewAutoCapabilityDetector()
	caps := d.DetectCapabilities(fakeModel{trees: 3, names: []string{"age", "bmi"}, covers: true})

	assert.Equal(t, []string{"risk-scoring", "schema-introspection", "attribution"},
		d.GetCapabilityStrings(caps))
	assert.True(t, d.SupportsCapability(fakeModel{trees: 3, names: []string{"age"}, covers: true}, CapabilityAttribution))
}

func TestDetectCapabilitiesWithoutCovers(t *testing.T) {
	d := NewAutoCapabilityDetector()
	m := fakeModel{trees: 3, names: []string{"age"}, covers: false}

	assert.True(t, d.SupportsCapability(m, CapabilityRiskScoring))
	assert.False(t, d.SupportsCapability(m, CapabilityAttribution))
}

func TestCapabilitiesSummary(t *testing.T) {
	d := NewAutoCapabilityDetector()
	caps := d.DetectCapabilities(fakeModel{trees: 1, names: []string{"age"}, covers: true})

	assert.Equal(t, "risk-scoring/v1.0, schema-introspection/v1.0, attribution/v1.0",
		d.GetCapabilitiesSummary(caps))
}
