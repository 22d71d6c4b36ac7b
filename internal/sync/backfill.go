package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/cellchain/cellwallet/internal/index"
	"github.com/cellchain/cellwallet/pkg/crypto"
	"github.com/cellchain/cellwallet/pkg/types"
)

// backfillPending scans history for every tracked lock whose AddedHeight
// is still set, building the lock's surviving cells plus per-block
// fragments for heights inside the rollback window, and merges the
// result into the index in one commit per lock. Locks tracked before
// any block was applied need no scan.
func (e *Engine) backfillPending(ctx context.Context) error {
	locks, err := e.store.TrackedLocks()
	if err != nil {
		return err
	}

	cursor, ok, err := e.store.Cursor()
	if err != nil {
		return err
	}

	for _, l := range locks {
		if l.AddedHeight == 0 {
			continue
		}
		if !ok {
			// Nothing applied yet; the normal forward sync covers it.
			if err := e.store.MarkBackfilled(l.LockHash); err != nil {
				return err
			}
			continue
		}
		err := e.backfillLock(ctx, l, cursor.Height)
		if errors.Is(err, errBackfillDiverged) {
			// The remote chain no longer matches the local one; let the
			// forward pass resolve the reorg first. The lock stays
			// pending and is retried on the next tick.
			e.logger.Warn().
				Str("lock", l.LockHash.Short()).
				Msg("Backfill deferred, remote chain diverged from local index")
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// errBackfillDiverged signals that a backfill scan hit a block that
// disagrees with the locally stored header at the same height.
var errBackfillDiverged = errors.New("backfill scan diverged from local chain")

func (e *Engine) backfillLock(ctx context.Context, l index.TrackedLock, tip uint64) error {
	e.logger.Info().
		Str("lock", l.LockHash.Short()).
		Uint64("from", e.cfg.StartHeight).
		Uint64("to", tip).
		Msg("Backfilling tracked lock")

	windowFloor := e.cfg.StartHeight
	if w := e.store.Window(); tip >= w && tip-w+1 > windowFloor {
		windowFloor = tip - w + 1
	}

	live := make(map[types.OutPoint]index.Cell)
	order := make([]types.OutPoint, 0)
	var fragments []index.BlockDelta

	for h := e.cfg.StartHeight; h <= tip; h++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		blk, err := e.node.GetBlock(ctx, h)
		if err != nil {
			return fmt.Errorf("backfill fetch at height %d: %w", h, err)
		}

		// Inside the window the local header table is authoritative: a
		// mismatch means the remote reorged since the cursor was
		// written, and merging this scan would mix two chains' deltas.
		if h >= windowFloor {
			local, herr := e.store.HeaderAt(h)
			if herr == nil && local.Hash != blk.Header.Hash() {
				return errBackfillDiverged
			}
		}

		frag := index.BlockDelta{
			Height:     h,
			BlockHash:  blk.Header.Hash(),
			ParentHash: blk.Header.ParentHash,
		}
		inBlock := make(map[types.OutPoint]struct{})
		canceled := make(map[types.OutPoint]struct{})

		for txIdx, t := range blk.Transactions {
			for _, in := range t.Inputs {
				if _, ok := inBlock[in.Previous]; ok {
					// Created and spent within this block: cancel, same
					// as the forward filter.
					canceled[in.Previous] = struct{}{}
					delete(inBlock, in.Previous)
					delete(live, in.Previous)
					continue
				}
				cell, found := live[in.Previous]
				if !found {
					continue
				}
				delete(live, in.Previous)
				frag.Consumed = append(frag.Consumed, cell)
			}

			txHash := t.Hash()
			reward := txIdx == 0 && len(t.Inputs) == 0
			for outIdx, out := range t.Outputs {
				if crypto.ScriptHash(out.Lock) != l.LockHash {
					continue
				}
				cell := index.Cell{
					OutPoint: types.OutPoint{TxHash: txHash, Index: uint32(outIdx)},
					Capacity: out.Capacity,
					Lock:     out.Lock,
					LockHash: l.LockHash,
					TypeHash: out.TypeHash,
					DataHash: out.DataHash,
					Height:   h,
				}
				if reward && e.cfg.MaturityWindow > 0 {
					cell.MaturesAt = h + e.cfg.MaturityWindow
				}
				live[cell.OutPoint] = cell
				inBlock[cell.OutPoint] = struct{}{}
				order = append(order, cell.OutPoint)
				frag.Created = append(frag.Created, cell)
			}
		}

		if len(canceled) > 0 {
			kept := frag.Created[:0]
			for _, c := range frag.Created {
				if _, ok := canceled[c.OutPoint]; !ok {
					kept = append(kept, c)
				}
			}
			frag.Created = kept
		}

		// Fragments inside the rollback window merge into the retained
		// deltas so a later reorg also reverses the backfilled history.
		if h >= windowFloor && (len(frag.Created) > 0 || len(frag.Consumed) > 0) {
			fragments = append(fragments, frag)
		}
	}

	cells := make([]index.Cell, 0, len(live))
	for _, op := range order {
		if cell, found := live[op]; found {
			cells = append(cells, cell)
		}
	}

	if err := e.store.MergeBackfill(cells, fragments); err != nil {
		return err
	}
	return e.store.MarkBackfilled(l.LockHash)
}
