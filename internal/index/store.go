package index

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cellchain/cellwallet/internal/storage"
	"github.com/cellchain/cellwallet/pkg/types"
)

// Store is the persistent cell index: the live-cell set restricted to
// tracked lock scripts, with a per-lock secondary index and running
// capacity totals, a bounded inverse-delta log, and the chain cursor.
//
// Single-writer: only the sync engine mutates the store. Readers go
// through snapshot scans (one storage read transaction per scan) and
// may run concurrently with a writer because every mutation commits as
// one atomic batch.
type Store struct {
	db      storage.DB
	batcher storage.Batcher
	window  uint64
}

// NewStore creates a cell store backed by db, retaining inverse deltas
// for the most recent window blocks. db must support atomic batches.
func NewStore(db storage.DB, window uint64) (*Store, error) {
	batcher, ok := db.(storage.Batcher)
	if !ok {
		return nil, fmt.Errorf("cell store requires a batching database")
	}
	if window == 0 {
		return nil, fmt.Errorf("rollback window must be positive")
	}
	return &Store{db: db, batcher: batcher, window: window}, nil
}

// Window returns the rollback window in blocks.
func (s *Store) Window() uint64 {
	return s.window
}

// GetCell retrieves a live cell by its outpoint.
func (s *Store) GetCell(op types.OutPoint) (*Cell, error) {
	data, err := s.db.Get(cellKey(op))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, ErrCellNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cell get: %w", err)
	}
	var c Cell
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("cell unmarshal: %w", err)
	}
	return &c, nil
}

// HasCell checks whether an outpoint is in the live set.
func (s *Store) HasCell(op types.OutPoint) (bool, error) {
	return s.db.Has(cellKey(op))
}

// ApplyBlock applies one block's deltas: inserts created cells, removes
// consumed cells, adjusts lock totals and maturity markers, appends the
// inverse delta, records the header, advances the cursor, and prunes
// entries that fall out of the rollback window — all in one atomic
// batch commit.
//
// Re-applying a height at or below the cursor is a no-op. A cell
// created and consumed within the same block must not appear in either
// list; the sync engine cancels those out before calling.
func (s *Store) ApplyBlock(height uint64, blockHash, parentHash types.Hash, created []Cell, consumed []types.OutPoint) error {
	cursor, haveCursor, err := s.Cursor()
	if err != nil {
		return err
	}
	if haveCursor {
		if height <= cursor.Height {
			return nil // Duplicate tick, already applied.
		}
		if height != cursor.Height+1 {
			return fmt.Errorf("%w: height %d after cursor %d", ErrDiscontinuity, height, cursor.Height)
		}
		if cursor.CheckContinuity(parentHash) == Diverged {
			return fmt.Errorf("%w: parent %s != cursor %s at height %d",
				ErrDiscontinuity, parentHash.Short(), cursor.Hash.Short(), height)
		}
	}

	// Load consumed cells up front: they feed the inverse delta and the
	// total adjustments.
	consumedCells := make([]Cell, 0, len(consumed))
	for _, op := range consumed {
		c, err := s.GetCell(op)
		if err != nil {
			return fmt.Errorf("consumed %s: %w", op, err)
		}
		consumedCells = append(consumedCells, *c)
	}

	batch := s.batcher.NewBatch()

	for i := range consumedCells {
		c := &consumedCells[i]
		if err := s.deleteCell(batch, c); err != nil {
			return err
		}
	}
	for i := range created {
		c := &created[i]
		if err := s.putCell(batch, c); err != nil {
			return err
		}
	}

	if err := s.adjustTotals(batch, created, consumedCells); err != nil {
		return err
	}

	delta := BlockDelta{
		Height:     height,
		BlockHash:  blockHash,
		ParentHash: parentHash,
		Created:    created,
		Consumed:   consumedCells,
	}
	deltaData, err := json.Marshal(&delta)
	if err != nil {
		return fmt.Errorf("delta marshal: %w", err)
	}
	if err := batch.Put(deltaKey(height), deltaData); err != nil {
		return err
	}

	rec := HeaderRec{Height: height, Hash: blockHash, ParentHash: parentHash}
	recData, err := json.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("header marshal: %w", err)
	}
	if err := batch.Put(headerKey(height), recData); err != nil {
		return err
	}

	// Prune the entry falling out of the window. Deltas older than the
	// window are gone for good: a reorg past them needs a full rescan.
	if height > s.window {
		old := height - s.window
		if err := batch.Delete(deltaKey(old)); err != nil {
			return err
		}
		if err := batch.Delete(headerKey(old)); err != nil {
			return err
		}
	}

	if err := putCursor(batch, Cursor{Height: height, Hash: blockHash, ParentHash: parentHash}); err != nil {
		return err
	}

	if err := batch.Commit(); err != nil {
		return fmt.Errorf("apply block %d: %w", height, err)
	}
	return nil
}

// RollbackTo reverses all deltas above target, one atomic batch per
// height from the tip down, so an interruption leaves a consistent
// state at some intermediate height. Returns ErrRollbackUnavailable if
// target is older than the retained window.
func (s *Store) RollbackTo(target uint64) error {
	cursor, haveCursor, err := s.Cursor()
	if err != nil {
		return err
	}
	if !haveCursor || target >= cursor.Height {
		return nil
	}

	// Availability check before mutating anything: the oldest delta we
	// need is target+1.
	if _, err := s.deltaAt(target + 1); err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return fmt.Errorf("%w: target %d, window %d", ErrRollbackUnavailable, target, s.window)
		}
		return err
	}

	for h := cursor.Height; h > target; h-- {
		delta, err := s.deltaAt(h)
		if err != nil {
			return fmt.Errorf("rollback at height %d: %w", h, err)
		}

		batch := s.batcher.NewBatch()

		// Remove created cells, restore consumed cells.
		for i := range delta.Created {
			if err := s.deleteCell(batch, &delta.Created[i]); err != nil {
				return err
			}
		}
		for i := range delta.Consumed {
			if err := s.putCell(batch, &delta.Consumed[i]); err != nil {
				return err
			}
		}
		// The inverse adjustment: consumed cells come back, created go away.
		if err := s.adjustTotals(batch, delta.Consumed, delta.Created); err != nil {
			return err
		}

		if err := batch.Delete(deltaKey(h)); err != nil {
			return err
		}
		if err := batch.Delete(headerKey(h)); err != nil {
			return err
		}

		newCursor := Cursor{Height: h - 1, Hash: delta.ParentHash}
		if rec, err := s.HeaderAt(h - 1); err == nil {
			newCursor.ParentHash = rec.ParentHash
		}
		if err := putCursor(batch, newCursor); err != nil {
			return err
		}

		if err := batch.Commit(); err != nil {
			return fmt.Errorf("rollback commit at height %d: %w", h, err)
		}
	}
	return nil
}

// deltaAt loads the inverse delta recorded for a height.
// The raw storage.ErrKeyNotFound is preserved so callers can
// distinguish "outside window" from I/O failure.
func (s *Store) deltaAt(height uint64) (*BlockDelta, error) {
	data, err := s.db.Get(deltaKey(height))
	if err != nil {
		return nil, err
	}
	var d BlockDelta
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("delta unmarshal: %w", err)
	}
	return &d, nil
}

// putCell writes a cell and its secondary entries into an open batch.
func (s *Store) putCell(batch storage.Batch, c *Cell) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("cell marshal: %w", err)
	}
	if err := batch.Put(cellKey(c.OutPoint), data); err != nil {
		return err
	}
	if err := batch.Put(lockKey(c.LockHash, c.Height, c.OutPoint), []byte{}); err != nil {
		return err
	}
	if c.MaturesAt > 0 {
		var capBuf [8]byte
		binary.BigEndian.PutUint64(capBuf[:], c.Capacity)
		if err := batch.Put(matureKey(c.LockHash, c.MaturesAt, c.OutPoint), capBuf[:]); err != nil {
			return err
		}
	}
	return nil
}

// deleteCell removes a cell and its secondary entries in an open batch.
func (s *Store) deleteCell(batch storage.Batch, c *Cell) error {
	if err := batch.Delete(cellKey(c.OutPoint)); err != nil {
		return err
	}
	if err := batch.Delete(lockKey(c.LockHash, c.Height, c.OutPoint)); err != nil {
		return err
	}
	if c.MaturesAt > 0 {
		if err := batch.Delete(matureKey(c.LockHash, c.MaturesAt, c.OutPoint)); err != nil {
			return err
		}
	}
	return nil
}

// adjustTotals applies the net capacity change per lock hash for a set
// of added and removed cells, writing updated totals into the batch.
// The invariant: a lock's total always equals the sum of its live
// cells' capacities.
func (s *Store) adjustTotals(batch storage.Batch, added, removed []Cell) error {
	type change struct{ add, sub uint64 }
	changes := make(map[types.Hash]*change)
	get := func(h types.Hash) *change {
		ch, ok := changes[h]
		if !ok {
			ch = &change{}
			changes[h] = ch
		}
		return ch
	}
	for i := range added {
		get(added[i].LockHash).add += added[i].Capacity
	}
	for i := range removed {
		get(removed[i].LockHash).sub += removed[i].Capacity
	}

	for lockHash, ch := range changes {
		current, err := s.TotalCapacity(lockHash)
		if err != nil {
			return err
		}
		if current+ch.add < ch.sub {
			return fmt.Errorf("capacity underflow for lock %s: total %d, sub %d, add %d",
				lockHash.Short(), current, ch.sub, ch.add)
		}
		next := current + ch.add - ch.sub
		if next == 0 {
			if err := batch.Delete(totalKey(lockHash)); err != nil {
				return err
			}
			continue
		}
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], next)
		if err := batch.Put(totalKey(lockHash), buf[:]); err != nil {
			return err
		}
	}
	return nil
}

// TotalCapacity returns the maintained running total for a lock hash.
// Missing key means zero — O(1), never recomputed on the query path.
func (s *Store) TotalCapacity(lockHash types.Hash) (uint64, error) {
	data, err := s.db.Get(totalKey(lockHash))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("total get: %w", err)
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("corrupt total for lock %s: %d bytes", lockHash.Short(), len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

// ImmatureCapacity sums the capacity of cells owned by lockHash that
// are not yet spendable at the given height, using the maturity markers.
func (s *Store) ImmatureCapacity(lockHash types.Hash, height uint64) (uint64, error) {
	var total uint64
	err := s.db.ForEach(maturePrefix(lockHash), func(key, value []byte) error {
		maturesAt, _, ok := parseMatureKey(key)
		if !ok || len(value) != 8 {
			return fmt.Errorf("corrupt maturity marker")
		}
		if maturesAt > height {
			total += binary.BigEndian.Uint64(value)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan maturity markers: %w", err)
	}
	return total, nil
}

// ForEachCellByLock streams a lock's cells in creation-height order
// (outpoint bytes break ties), from a single read snapshot. Return a
// non-nil error from fn to stop early.
func (s *Store) ForEachCellByLock(lockHash types.Hash, fn func(*Cell) error) error {
	return s.db.ForEach(lockPrefix(lockHash), func(key, _ []byte) error {
		_, op, ok := parseLockKey(key)
		if !ok {
			return fmt.Errorf("corrupt lock index key")
		}
		c, err := s.GetCell(op)
		if err != nil {
			return fmt.Errorf("lock index references %s: %w", op, err)
		}
		return fn(c)
	})
}

// CellsByLock returns all of a lock's cells in the stable enumeration
// order.
func (s *Store) CellsByLock(lockHash types.Hash) ([]*Cell, error) {
	var cells []*Cell
	err := s.ForEachCellByLock(lockHash, func(c *Cell) error {
		cells = append(cells, c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cells, nil
}
