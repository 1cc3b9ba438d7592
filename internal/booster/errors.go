package booster

import "errors"

// Loader failures collapse to a single "model unavailable" outcome for the
// caller; the sentinels only differentiate the diagnostic.
var (
	// ErrArtifactMissing marks an expected file that is not on disk.
	ErrArtifactMissing = errors.New("model artifact missing")

	// ErrArtifactCorrupt marks a file that exists but cannot be decoded
	// into a consistent model.
	ErrArtifactCorrupt = errors.New("model artifact corrupt")

	// ErrSchemaRecovery marks a bare bundle whose feature list cannot be
	// recovered from the model's own recorded attributes.
	ErrSchemaRecovery = errors.New("feature schema unrecoverable")
)
