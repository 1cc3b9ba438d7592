package booster

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/clinflow/risk-inference-service/internal/gbtree"
)

// Format selects which on-disk representation a deployment uses. Exactly
// one is active per deployment.
type Format string

const (
	// FormatBundle is a single JSON file holding either an envelope with
	// model and feature list, or a bare model document.
	FormatBundle Format = "bundle"

	// FormatSplit keeps the feature schema in a YAML metadata file and the
	// tree weights in a separate JSON file.
	FormatSplit Format = "split"
)

// Source names the artifact files for one deployment.
type Source struct {
	Format      Format
	BundlePath  string
	MetaPath    string
	WeightsPath string
}

// Load resolves a serialized classifier and its feature schema from local
// storage. It returns a fully-initialized model or an error wrapping one of
// the sentinel conditions; never a partial model.
func Load(src Source) (*Model, error) {
	switch src.Format {
	case FormatBundle:
		return loadBundle(src.BundlePath)
	case FormatSplit:
		return loadSplit(src.MetaPath, src.WeightsPath)
	default:
		return nil, fmt.Errorf("unsupported model format %q", src.Format)
	}
}

// bundleEnvelope is the preferred bundle layout: feature list and wrapper
// metadata alongside the model document.
type bundleEnvelope struct {
	FeatureNames []string        `json:"feature_names"`
	Metadata     Metadata        `json:"metadata"`
	Model        json.RawMessage `json:"model"`
}

func loadBundle(path string) (*Model, error) {
	data, err := readArtifact(path)
	if err != nil {
		return nil, err
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrArtifactCorrupt, path, err)
	}

	if _, ok := probe["model"]; ok {
		var env bundleEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrArtifactCorrupt, path, err)
		}
		ensemble, err := gbtree.DecodeWeights(env.Model)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrArtifactCorrupt, path, err)
		}
		names := env.FeatureNames
		if len(names) == 0 {
			names = ensemble.FeatureNames()
		}
		if len(names) == 0 {
			return nil, fmt.Errorf("%w: bundle %s has neither a feature list nor recorded names", ErrSchemaRecovery, path)
		}
		if err := validateSchema(names, ensemble.NumFeatures()); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrArtifactCorrupt, path, err)
		}
		return &Model{ensemble: ensemble, meta: env.Metadata, featureNames: names}, nil
	}

	// Bare model document: recover the feature list from the model's own
	// recorded attribute. No wrapper metadata survives this path.
	ensemble, err := gbtree.DecodeWeights(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrArtifactCorrupt, path, err)
	}
	names := ensemble.FeatureNames()
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: bare model in %s recorded no feature names", ErrSchemaRecovery, path)
	}
	return &Model{ensemble: ensemble, featureNames: names}, nil
}

// splitMetadata is the YAML metadata file of the split representation.
type splitMetadata struct {
	Metadata     `yaml:",inline"`
	FeatureNames []string `yaml:"feature_names"`
}

func loadSplit(metaPath, weightsPath string) (*Model, error) {
	metaData, err := readArtifact(metaPath)
	if err != nil {
		return nil, err
	}
	var meta splitMetadata
	if err := yaml.Unmarshal(metaData, &meta); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrArtifactCorrupt, metaPath, err)
	}
	if len(meta.FeatureNames) == 0 {
		return nil, fmt.Errorf("%w: %s declares no feature schema", ErrArtifactCorrupt, metaPath)
	}

	weightsData, err := readArtifact(weightsPath)
	if err != nil {
		return nil, err
	}
	ensemble, err := gbtree.DecodeWeights(weightsData)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrArtifactCorrupt, weightsPath, err)
	}
	if err := validateSchema(meta.FeatureNames, ensemble.NumFeatures()); err != nil {
		return nil, fmt.Errorf("%w: %s vs %s: %v", ErrArtifactCorrupt, metaPath, weightsPath, err)
	}

	// Fresh wrapper around the reconstructed ensemble; the metadata file is
	// authoritative for the schema and wrapper markers.
	return &Model{ensemble: ensemble, meta: meta.Metadata, featureNames: meta.FeatureNames}, nil
}

func readArtifact(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactMissing, path)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrArtifactCorrupt, path, err)
	}
	return data, nil
}

func validateSchema(names []string, numFeatures int) error {
	if len(names) != numFeatures {
		return fmt.Errorf("schema lists %d features, model expects %d", len(names), numFeatures)
	}
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if name == "" {
			return fmt.Errorf("schema contains an empty feature name")
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("schema repeats feature %q", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}
