// Package index maintains the wallet's local mirror of the chain's
// live-cell set for tracked lock scripts, together with the chain
// cursor and the bounded inverse-delta log that makes reorg rollback
// possible. All mutation goes through atomic storage batches, so a
// reader never observes a partially applied block and a crash never
// splits the cursor from the cell state.
package index

import (
	"github.com/cellchain/cellwallet/pkg/types"
)

// Cell is a live chain-state record owned by a lock script.
type Cell struct {
	OutPoint types.OutPoint `json:"out_point"`
	Capacity uint64         `json:"capacity"`
	Lock     types.Script   `json:"lock"`
	LockHash types.Hash     `json:"lock_hash"`
	TypeHash *types.Hash    `json:"type_hash,omitempty"`
	DataHash *types.Hash    `json:"data_hash,omitempty"`
	// Height is the block height the cell was created at.
	Height uint64 `json:"height"`
	// MaturesAt is the first height at which the cell is spendable.
	// Zero means spendable immediately.
	MaturesAt uint64 `json:"matures_at,omitempty"`
}

// Mature reports whether the cell is spendable at the given chain height.
func (c *Cell) Mature(height uint64) bool {
	return c.MaturesAt == 0 || c.MaturesAt <= height
}

// BlockDelta is the per-block change set applied to the cell store,
// restricted to tracked lock scripts. The persisted form doubles as the
// inverse delta: Consumed holds the full cells so rollback can restore
// them.
type BlockDelta struct {
	Height     uint64     `json:"height"`
	BlockHash  types.Hash `json:"block_hash"`
	ParentHash types.Hash `json:"parent_hash"`
	Created    []Cell     `json:"created,omitempty"`
	Consumed   []Cell     `json:"consumed,omitempty"`
}

// HeaderRec is the locally retained header summary for one applied
// height, used by the sync engine's backward search during reorgs.
type HeaderRec struct {
	Height     uint64     `json:"height"`
	Hash       types.Hash `json:"hash"`
	ParentHash types.Hash `json:"parent_hash"`
}

// TrackedLock records one lock script the index mirrors cells for.
type TrackedLock struct {
	LockHash types.Hash   `json:"lock_hash"`
	Script   types.Script `json:"script"`
	Label    string       `json:"label,omitempty"`
	// AddedHeight is the sync height when tracking began; backfill
	// covers heights at or below it.
	AddedHeight uint64 `json:"added_height"`
}
