package store

import "github.com/pkg/errors"

// Sentinel errors corresponding to the error taxonomy of spec §7. The
// protection service maps these onto NotSafe outcomes; it never surfaces a
// bare store error to the signer.
var (
	// ErrStoreInit is returned by Open when the path is unreadable or the
	// on-disk schema is incompatible. Only this error aborts the caller at
	// startup; every other store error becomes a refusal to sign.
	ErrStoreInit = errors.New("store: could not open or schema incompatible")

	// ErrConflict is returned by AppendAttestation/AppendBlock when the
	// record would violate the strictly-increasing-key invariant.
	ErrConflict = errors.New("store: conflicting append")

	// ErrStoreFull is returned when an epoch or slot exceeds the
	// configured maximum, guarding against unsigned wraparound.
	ErrStoreFull = errors.New("store: epoch or slot beyond configured bound")
)
