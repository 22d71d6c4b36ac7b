package index

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/cellchain/cellwallet/internal/log"
	"github.com/cellchain/cellwallet/internal/storage"
	"github.com/cellchain/cellwallet/pkg/types"
)

// RebuildIndex recomputes the lock index, maturity markers, and running
// totals from the raw cell table. Corruption recovery only — the hot
// path maintains these incrementally.
func (s *Store) RebuildIndex() error {
	log.Index.Warn().Msg("rebuilding lock index from cell table")

	batch := s.batcher.NewBatch()

	// Drop all derived entries.
	for _, prefix := range [][]byte{prefixLock, prefixTotal, prefixMature} {
		err := s.db.ForEach(prefix, func(key, _ []byte) error {
			k := make([]byte, len(key))
			copy(k, key)
			return batch.Delete(k)
		})
		if err != nil {
			return fmt.Errorf("scan prefix %s: %w", prefix, err)
		}
	}

	// Recompute from the cell table.
	var cells []Cell
	err := s.db.ForEach(prefixCell, func(_, value []byte) error {
		var c Cell
		if err := json.Unmarshal(value, &c); err != nil {
			return fmt.Errorf("cell unmarshal: %w", err)
		}
		cells = append(cells, c)
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan cells: %w", err)
	}

	for i := range cells {
		c := &cells[i]
		if err := s.putCell(batch, c); err != nil {
			return err
		}
	}
	if err := s.adjustTotalsFresh(batch, cells); err != nil {
		return err
	}

	if err := batch.Commit(); err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}
	log.Index.Info().Int("cells", len(cells)).Msg("lock index rebuilt")
	return nil
}

// adjustTotalsFresh writes totals assuming the batch already deletes
// every existing total key.
func (s *Store) adjustTotalsFresh(batch storage.Batch, cells []Cell) error {
	totals := make(map[types.Hash]uint64)
	for i := range cells {
		totals[cells[i].LockHash] += cells[i].Capacity
	}
	for lockHash, total := range totals {
		if total == 0 {
			continue
		}
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], total)
		if err := batch.Put(totalKey(lockHash), buf[:]); err != nil {
			return err
		}
	}
	return nil
}

// Reset clears all synced state — cells, lock index, totals, markers,
// deltas, headers, and the cursor — while keeping the tracked-lock set.
// Used to prepare a full rescan after ReorgTooDeep or corruption.
func (s *Store) Reset() error {
	log.Index.Warn().Msg("resetting cell index for full rescan")

	batch := s.batcher.NewBatch()
	prefixes := [][]byte{prefixCell, prefixLock, prefixTotal, prefixMature, prefixDelta, prefixHeader}
	for _, prefix := range prefixes {
		err := s.db.ForEach(prefix, func(key, _ []byte) error {
			k := make([]byte, len(key))
			copy(k, key)
			return batch.Delete(k)
		})
		if err != nil {
			return fmt.Errorf("scan prefix %s: %w", prefix, err)
		}
	}
	if err := batch.Delete(keyCursor); err != nil {
		return err
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("reset index: %w", err)
	}
	return nil
}
