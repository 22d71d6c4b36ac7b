package index

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cellchain/cellwallet/internal/storage"
	"github.com/cellchain/cellwallet/pkg/types"
)

// Track registers a lock script for mirroring. Idempotent: tracking an
// already-tracked lock hash is a no-op that preserves the original
// AddedHeight (so a completed backfill is not forgotten).
func (s *Store) Track(t TrackedLock) error {
	existing, err := s.db.Get(trackedKey(t.LockHash))
	if err == nil && len(existing) > 0 {
		return nil
	}
	if err != nil && !errors.Is(err, storage.ErrKeyNotFound) {
		return fmt.Errorf("tracked get: %w", err)
	}
	data, err := json.Marshal(&t)
	if err != nil {
		return fmt.Errorf("tracked marshal: %w", err)
	}
	if err := s.db.Put(trackedKey(t.LockHash), data); err != nil {
		return fmt.Errorf("tracked put: %w", err)
	}
	return nil
}

// Untrack removes a lock script and everything the index holds for it:
// its cells, lock index entries, maturity markers, running total, and
// its occurrences in retained deltas (so a later rollback cannot
// resurrect cells for a lock the user removed). Other tracked locks
// are untouched. The whole removal commits as one batch.
func (s *Store) Untrack(lockHash types.Hash) error {
	has, err := s.db.Has(trackedKey(lockHash))
	if err != nil {
		return fmt.Errorf("tracked has: %w", err)
	}
	if !has {
		return ErrNotTracked
	}

	cells, err := s.CellsByLock(lockHash)
	if err != nil {
		return err
	}

	batch := s.batcher.NewBatch()
	for _, c := range cells {
		if err := s.deleteCell(batch, c); err != nil {
			return err
		}
	}
	if err := batch.Delete(totalKey(lockHash)); err != nil {
		return err
	}
	if err := batch.Delete(trackedKey(lockHash)); err != nil {
		return err
	}

	// Scrub the lock from retained deltas.
	err = s.db.ForEach(prefixDelta, func(key, value []byte) error {
		var d BlockDelta
		if err := json.Unmarshal(value, &d); err != nil {
			return fmt.Errorf("delta unmarshal: %w", err)
		}
		created := filterCells(d.Created, lockHash)
		consumed := filterCells(d.Consumed, lockHash)
		if len(created) == len(d.Created) && len(consumed) == len(d.Consumed) {
			return nil
		}
		d.Created, d.Consumed = created, consumed
		data, err := json.Marshal(&d)
		if err != nil {
			return fmt.Errorf("delta marshal: %w", err)
		}
		k := make([]byte, len(key))
		copy(k, key)
		return batch.Put(k, data)
	})
	if err != nil {
		return fmt.Errorf("scrub deltas: %w", err)
	}

	if err := batch.Commit(); err != nil {
		return fmt.Errorf("untrack %s: %w", lockHash.Short(), err)
	}
	return nil
}

// filterCells returns cells not owned by lockHash, preserving order.
func filterCells(cells []Cell, lockHash types.Hash) []Cell {
	out := cells[:0:0]
	for _, c := range cells {
		if c.LockHash != lockHash {
			out = append(out, c)
		}
	}
	return out
}

// IsTracked reports whether the index mirrors cells for lockHash.
func (s *Store) IsTracked(lockHash types.Hash) (bool, error) {
	return s.db.Has(trackedKey(lockHash))
}

// TrackedLocks returns all tracked lock records, ordered by lock hash.
func (s *Store) TrackedLocks() ([]TrackedLock, error) {
	var locks []TrackedLock
	err := s.db.ForEach(prefixTracked, func(_, value []byte) error {
		var t TrackedLock
		if err := json.Unmarshal(value, &t); err != nil {
			return fmt.Errorf("tracked unmarshal: %w", err)
		}
		locks = append(locks, t)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan tracked locks: %w", err)
	}
	return locks, nil
}

// MarkBackfilled records that a tracked lock's history below its
// AddedHeight has been scanned, by zeroing AddedHeight.
func (s *Store) MarkBackfilled(lockHash types.Hash) error {
	data, err := s.db.Get(trackedKey(lockHash))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return ErrNotTracked
	}
	if err != nil {
		return fmt.Errorf("tracked get: %w", err)
	}
	var t TrackedLock
	if err := json.Unmarshal(data, &t); err != nil {
		return fmt.Errorf("tracked unmarshal: %w", err)
	}
	t.AddedHeight = 0
	updated, err := json.Marshal(&t)
	if err != nil {
		return fmt.Errorf("tracked marshal: %w", err)
	}
	return s.db.Put(trackedKey(lockHash), updated)
}
