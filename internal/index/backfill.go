package index

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cellchain/cellwallet/internal/storage"
	"github.com/cellchain/cellwallet/pkg/types"
)

// MergeBackfill installs the result of a scoped backfill scan for a
// newly tracked lock, without disturbing other locks or moving the
// cursor. live holds the lock's cells still unspent at the current
// cursor height; fragments hold the lock's per-block created/consumed
// sets for heights inside the rollback window, which are merged into
// the retained deltas so a later rollback also reverses the backfilled
// history.
//
// The merge tolerates overlap with the forward sync path: cells the
// store already holds are skipped (not double-counted in totals), and
// fragment entries already present in the stored delta are dropped. A
// fragment whose block hash disagrees with the stored delta's is a
// cross-chain mix and fails with ErrDiscontinuity. Everything commits
// in one batch.
func (s *Store) MergeBackfill(live []Cell, fragments []BlockDelta) error {
	batch := s.batcher.NewBatch()

	added := make([]Cell, 0, len(live))
	for i := range live {
		have, err := s.HasCell(live[i].OutPoint)
		if err != nil {
			return err
		}
		if have {
			continue
		}
		if err := s.putCell(batch, &live[i]); err != nil {
			return err
		}
		added = append(added, live[i])
	}
	if err := s.adjustTotals(batch, added, nil); err != nil {
		return err
	}

	for _, frag := range fragments {
		data, err := s.db.Get(deltaKey(frag.Height))
		if errors.Is(err, storage.ErrKeyNotFound) {
			// Height fell out of the window since the scan started.
			continue
		}
		if err != nil {
			return fmt.Errorf("delta get at height %d: %w", frag.Height, err)
		}
		var d BlockDelta
		if err := json.Unmarshal(data, &d); err != nil {
			return fmt.Errorf("delta unmarshal at height %d: %w", frag.Height, err)
		}
		if d.BlockHash != frag.BlockHash {
			// The fragment was scanned from a different chain than the
			// one the retained delta belongs to.
			return fmt.Errorf("%w: backfill fragment at height %d is for block %s, index has %s",
				ErrDiscontinuity, frag.Height, frag.BlockHash.Short(), d.BlockHash.Short())
		}

		created := dropKnownCells(frag.Created, d.Created)
		consumed := dropKnownCells(frag.Consumed, d.Consumed)
		if len(created) == 0 && len(consumed) == 0 {
			continue
		}
		d.Created = append(d.Created, created...)
		d.Consumed = append(d.Consumed, consumed...)
		merged, err := json.Marshal(&d)
		if err != nil {
			return fmt.Errorf("delta marshal at height %d: %w", frag.Height, err)
		}
		if err := batch.Put(deltaKey(frag.Height), merged); err != nil {
			return err
		}
	}

	if err := batch.Commit(); err != nil {
		return fmt.Errorf("merge backfill: %w", err)
	}
	return nil
}

// dropKnownCells filters cells whose outpoint already appears in
// existing, preserving order.
func dropKnownCells(cells, existing []Cell) []Cell {
	if len(cells) == 0 || len(existing) == 0 {
		return cells
	}
	known := make(map[types.OutPoint]struct{}, len(existing))
	for i := range existing {
		known[existing[i].OutPoint] = struct{}{}
	}
	out := cells[:0:0]
	for _, c := range cells {
		if _, ok := known[c.OutPoint]; !ok {
			out = append(out, c)
		}
	}
	return out
}
