package index

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cellchain/cellwallet/internal/storage"
	"github.com/cellchain/cellwallet/pkg/types"
)

// Cursor is the persisted position of the last fully applied block.
// It is written in the same storage batch as the cell deltas of that
// block, so cursor and cell state can never disagree after a crash.
type Cursor struct {
	Height     uint64     `json:"height"`
	Hash       types.Hash `json:"hash"`
	ParentHash types.Hash `json:"parent_hash"`
}

// Continuity is the result of checking a candidate block against the cursor.
type Continuity int

const (
	// Continuous means the candidate's parent hash matches the cursor.
	Continuous Continuity = iota
	// Diverged means the remote chain no longer contains the cursor
	// block; the sync engine must search backward for the fork point.
	Diverged
)

// CheckContinuity compares a candidate block's parent hash against the
// cursor position.
func (c Cursor) CheckContinuity(parentHash types.Hash) Continuity {
	if c.Hash == parentHash {
		return Continuous
	}
	return Diverged
}

// Cursor returns the current sync position. ok is false when no block
// has been applied yet.
func (s *Store) Cursor() (Cursor, bool, error) {
	data, err := s.db.Get(keyCursor)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return Cursor{}, false, nil
	}
	if err != nil {
		return Cursor{}, false, fmt.Errorf("cursor get: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return Cursor{}, false, fmt.Errorf("cursor unmarshal: %w", err)
	}
	return c, true, nil
}

// putCursor writes the cursor into an open batch.
func putCursor(batch storage.Batch, c Cursor) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("cursor marshal: %w", err)
	}
	return batch.Put(keyCursor, data)
}

// HeaderAt returns the locally retained header record for a height
// within the rollback window.
func (s *Store) HeaderAt(height uint64) (HeaderRec, error) {
	data, err := s.db.Get(headerKey(height))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return HeaderRec{}, fmt.Errorf("%w: no header at height %d", ErrRollbackUnavailable, height)
	}
	if err != nil {
		return HeaderRec{}, fmt.Errorf("header get: %w", err)
	}
	var h HeaderRec
	if err := json.Unmarshal(data, &h); err != nil {
		return HeaderRec{}, fmt.Errorf("header unmarshal: %w", err)
	}
	return h, nil
}
