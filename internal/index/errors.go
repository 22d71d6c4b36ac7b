package index

import "errors"

// Sentinel errors surfaced by the index.
var (
	// ErrCellNotFound is returned when a referenced cell is not in the
	// live set.
	ErrCellNotFound = errors.New("cell not found")

	// ErrRollbackUnavailable is returned when a rollback target is older
	// than the retained delta window. The caller must fall back to a
	// full rescan.
	ErrRollbackUnavailable = errors.New("rollback unavailable: height outside retained window")

	// ErrDiscontinuity is returned when an applied block does not extend
	// the cursor (height gap or parent-hash mismatch).
	ErrDiscontinuity = errors.New("block does not extend current cursor")

	// ErrNotTracked is returned when an operation references a lock hash
	// the index is not tracking.
	ErrNotTracked = errors.New("lock hash not tracked")
)
