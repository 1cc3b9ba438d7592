package gbtree

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// WeightDoc is the on-disk JSON representation of a tree ensemble. The
// feature_names field is optional: weight files exported from the raw
// booster do not retain names.
type WeightDoc struct {
	Format       string   `json:"format"`
	Version      int      `json:"version"`
	NumFeatures  int      `json:"num_features"`
	BaseMargin   float64  `json:"base_margin"`
	FeatureNames []string `json:"feature_names,omitempty"`
	Trees        []Tree   `json:"trees"`
}

const weightSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["format", "version", "num_features", "trees"],
  "properties": {
    "format": {"const": "gbtree"},
    "version": {"type": "integer", "minimum": 1},
    "num_features": {"type": "integer", "minimum": 1},
    "base_margin": {"type": "number"},
    "feature_names": {
      "type": "array",
      "items": {"type": "string", "minLength": 1},
      "uniqueItems": true
    },
    "trees": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["nodes"],
        "properties": {
          "nodes": {
            "type": "array",
            "minItems": 1,
            "items": {
              "type": "object",
              "required": ["feature"],
              "properties": {
                "feature": {"type": "integer"},
                "threshold": {"type": "number"},
                "left": {"type": "integer"},
                "right": {"type": "integer"},
                "missing": {"type": "integer"},
                "value": {"type": "number"},
                "cover": {"type": "number"}
              }
            }
          }
        }
      }
    }
  }
}`

var compiledWeightSchema = jsonschema.MustCompileString("gbtree-weights.schema.json", weightSchema)

// DecodeWeights validates a weight document against the embedded schema
// and decodes it into an Ensemble.
func DecodeWeights(data []byte) (*Ensemble, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := compiledWeightSchema.Validate(raw); err != nil {
		return nil, fmt.Errorf("weight document rejected by schema: %w", err)
	}

	var doc WeightDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding weight document: %w", err)
	}
	return doc.Build()
}

// Build constructs a validated Ensemble from an already-decoded document.
func (d *WeightDoc) Build() (*Ensemble, error) {
	if d.Format != "gbtree" {
		return nil, fmt.Errorf("unsupported weight format %q", d.Format)
	}
	return NewEnsemble(d.Trees, d.BaseMargin, d.NumFeatures, d.FeatureNames)
}
