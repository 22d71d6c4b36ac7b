// Package query answers read-only questions against the local index:
// balances, cell enumeration, and deterministic cell selection for
// transaction funding.
package query

import (
	"errors"
	"fmt"
	"sort"

	"github.com/cellchain/cellwallet/internal/index"
	"github.com/cellchain/cellwallet/pkg/types"
)

// ErrInsufficientCapacity indicates the lock's spendable cells cannot
// cover the requested amount.
var ErrInsufficientCapacity = errors.New("insufficient spendable capacity")

// Policy chooses the order cells are consumed in during selection.
type Policy int

const (
	// SmallestFirst consumes low-capacity cells first, keeping the cell
	// set compact.
	SmallestFirst Policy = iota
	// LargestFirst consumes high-capacity cells first, minimizing input
	// count.
	LargestFirst
	// OldestFirst consumes cells in creation order.
	OldestFirst
)

func (p Policy) String() string {
	switch p {
	case SmallestFirst:
		return "smallest-first"
	case LargestFirst:
		return "largest-first"
	case OldestFirst:
		return "oldest-first"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy converts a config/CLI string into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "smallest-first", "":
		return SmallestFirst, nil
	case "largest-first":
		return LargestFirst, nil
	case "oldest-first":
		return OldestFirst, nil
	default:
		return 0, fmt.Errorf("unknown selection policy %q", s)
	}
}

// Balance is a per-lock capacity summary at a sync height.
type Balance struct {
	// Total is the capacity of every live cell, mature or not.
	Total uint64 `json:"total"`
	// Immature is the portion not yet spendable at Height.
	Immature uint64 `json:"immature"`
	// Spendable is Total minus Immature.
	Spendable uint64 `json:"spendable"`
	// Height is the local sync height the answer is valid at.
	Height uint64 `json:"height"`
}

// Engine serves queries over an index store. It holds no state of its
// own; every answer reflects the store's last committed batch.
type Engine struct {
	store *index.Store
}

// NewEngine creates a query engine over the given store.
func NewEngine(store *index.Store) *Engine {
	return &Engine{store: store}
}

// SyncHeight returns the local cursor height, and false if no block has
// been applied yet.
func (e *Engine) SyncHeight() (uint64, bool, error) {
	cursor, ok, err := e.store.Cursor()
	if err != nil || !ok {
		return 0, false, err
	}
	return cursor.Height, true, nil
}

// Balance returns the capacity summary for one lock hash. Totals come
// from the store's running counters, so the call does not scan cells.
func (e *Engine) Balance(lockHash types.Hash) (Balance, error) {
	height, _, err := e.SyncHeight()
	if err != nil {
		return Balance{}, err
	}
	total, err := e.store.TotalCapacity(lockHash)
	if err != nil {
		return Balance{}, err
	}
	immature, err := e.store.ImmatureCapacity(lockHash, height)
	if err != nil {
		return Balance{}, err
	}
	return Balance{
		Total:     total,
		Immature:  immature,
		Spendable: total - immature,
		Height:    height,
	}, nil
}

// Cells returns every live cell owned by the lock hash, ordered by
// creation height then out point.
func (e *Engine) Cells(lockHash types.Hash) ([]*index.Cell, error) {
	return e.store.CellsByLock(lockHash)
}

// Selection is the result of SelectCells.
type Selection struct {
	Cells []*index.Cell
	// Total is the summed capacity of Cells; at least the requested
	// target, the excess becomes change.
	Total uint64
}

// SelectCells picks mature cells for the lock hash until their combined
// capacity reaches target, consuming them in policy order. Selection is
// deterministic: equal-capacity ties break by creation height then out
// point, so the same index state always yields the same cells.
func (e *Engine) SelectCells(lockHash types.Hash, target uint64, policy Policy) (Selection, error) {
	height, _, err := e.SyncHeight()
	if err != nil {
		return Selection{}, err
	}

	all, err := e.store.CellsByLock(lockHash)
	if err != nil {
		return Selection{}, err
	}

	// CellsByLock already yields height-then-outpoint order, so a
	// stable sort by capacity keeps ties deterministic.
	mature := make([]*index.Cell, 0, len(all))
	for _, c := range all {
		if c.Mature(height) {
			mature = append(mature, c)
		}
	}
	switch policy {
	case SmallestFirst:
		sort.SliceStable(mature, func(i, j int) bool {
			return mature[i].Capacity < mature[j].Capacity
		})
	case LargestFirst:
		sort.SliceStable(mature, func(i, j int) bool {
			return mature[i].Capacity > mature[j].Capacity
		})
	case OldestFirst:
		// Already in creation order.
	default:
		return Selection{}, fmt.Errorf("unknown selection policy %d", policy)
	}

	var sel Selection
	for _, c := range mature {
		if sel.Total >= target {
			break
		}
		sel.Cells = append(sel.Cells, c)
		sel.Total += c.Capacity
	}
	if sel.Total < target {
		return Selection{}, fmt.Errorf("%w: need %d, have %d mature", ErrInsufficientCapacity, target, sel.Total)
	}
	return sel, nil
}
