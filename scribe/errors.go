package scribe

import "errors"

// Error taxonomy for the history cache. Callers match with errors.Is; most
// sites wrap these with fmt.Errorf("%w: ...") to add detail.
var (
	// ErrStoreOpen reports that the storage engine could not be opened.
	ErrStoreOpen = errors.New("history store open failed")

	// ErrTransaction reports that a read or write against an open store failed.
	ErrTransaction = errors.New("history store operation failed")

	// ErrEntryNotFound reports that no entry exists for a fingerprint.
	ErrEntryNotFound = errors.New("history entry not found")

	// ErrNormalization reports a record that is nil or malformed beyond repair.
	ErrNormalization = errors.New("history entry normalization failed")
)
