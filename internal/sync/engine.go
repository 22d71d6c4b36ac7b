package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cellchain/cellwallet/internal/index"
	"github.com/cellchain/cellwallet/internal/log"
	"github.com/cellchain/cellwallet/pkg/block"
	"github.com/cellchain/cellwallet/pkg/crypto"
	"github.com/cellchain/cellwallet/pkg/types"
)

// State is the engine's coarse lifecycle phase, exported for status
// reporting.
type State int

const (
	// StateIdle means the engine is caught up with the remote tip (or
	// has not started).
	StateIdle State = iota
	// StateFetching means the engine is retrieving headers or blocks.
	StateFetching
	// StateApplying means a fetched block is being written to the index.
	StateApplying
	// StateReverting means a reorg is being unwound.
	StateReverting
	// StateFaulted means the engine hit an unrecoverable divergence and
	// needs a Rescan before it will make progress again.
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateApplying:
		return "applying"
	case StateReverting:
		return "reverting"
	case StateFaulted:
		return "faulted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config holds the engine's tunables.
type Config struct {
	// StartHeight is the first height the index covers. Blocks below it
	// are never fetched.
	StartHeight uint64

	// MaturityWindow is the number of blocks a reward cell stays
	// unspendable after creation.
	MaturityWindow uint64

	// PollInterval is how often Run polls the remote tip when caught up.
	PollInterval time.Duration

	// MaxBackoff caps the retry delay after transient node failures.
	MaxBackoff time.Duration
}

const (
	defaultPollInterval = 10 * time.Second
	defaultMaxBackoff   = time.Minute
	initialBackoff      = time.Second
)

// Engine drives the local index forward against a remote node: it
// fetches blocks one height at a time, filters them down to tracked
// lock scripts, detects reorgs by parent-hash continuity, and unwinds
// the index through the retained delta log when the remote chain
// diverges.
type Engine struct {
	store *index.Store
	node  NodeClient
	cfg   Config

	// tickMu serializes sync passes. Tick uses TryLock so overlapping
	// triggers coalesce instead of queueing.
	tickMu gosync.Mutex

	mu       gosync.RWMutex
	state    State
	faultErr error

	logger zerolog.Logger
}

// NewEngine creates a sync engine over the given store and node client.
func NewEngine(store *index.Store, node NodeClient, cfg Config) *Engine {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	return &Engine{
		store:  store,
		node:   node,
		cfg:    cfg,
		logger: log.Sync,
	}
}

// State returns the engine's current phase.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// FaultErr returns the error that faulted the engine, or nil.
func (e *Engine) FaultErr() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.faultErr
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

func (e *Engine) fault(err error) {
	e.mu.Lock()
	e.state = StateFaulted
	e.faultErr = err
	e.mu.Unlock()
	e.logger.Error().Err(err).Msg("Sync engine faulted")
}

// Run polls the remote node until ctx is canceled, backing off on
// transient failures. A faulted engine stays parked until Rescan.
func (e *Engine) Run(ctx context.Context) error {
	backoff := initialBackoff
	for {
		err := e.Tick(ctx)
		switch {
		case err == nil:
			backoff = initialBackoff
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		case errors.Is(err, ErrNodeUnavailable):
			e.logger.Warn().Err(err).Dur("retry_in", backoff).Msg("Node unavailable, backing off")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > e.cfg.MaxBackoff {
				backoff = e.cfg.MaxBackoff
			}
			continue
		case errors.Is(err, ErrReorgTooDeep):
			// Parked until a rescan; keep polling so Run returns on
			// ctx cancellation.
		default:
			e.logger.Error().Err(err).Msg("Sync pass failed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.cfg.PollInterval):
		}
	}
}

// Tick runs one sync pass: backfill any newly tracked locks, then fetch
// and apply blocks until the index is caught up with the remote tip. If
// a pass is already in flight the call returns immediately.
func (e *Engine) Tick(ctx context.Context) error {
	if !e.tickMu.TryLock() {
		return nil
	}
	defer e.tickMu.Unlock()

	e.mu.RLock()
	faulted := e.state == StateFaulted
	ferr := e.faultErr
	e.mu.RUnlock()
	if faulted {
		return ferr
	}

	if err := e.backfillPending(ctx); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		e.setState(StateFetching)
		tip, err := e.node.GetTipHeader(ctx)
		if err != nil {
			e.setState(StateIdle)
			return fmt.Errorf("fetching tip header: %w", err)
		}

		cursor, ok, err := e.store.Cursor()
		if err != nil {
			e.setState(StateIdle)
			return err
		}

		next := e.cfg.StartHeight
		if ok {
			if cursor.Height >= tip.Height {
				e.setState(StateIdle)
				return nil
			}
			next = cursor.Height + 1
		}
		if next > tip.Height {
			e.setState(StateIdle)
			return nil
		}

		blk, err := e.node.GetBlock(ctx, next)
		if errors.Is(err, ErrNotFound) {
			// Tip raced backward between calls; treat as caught up.
			e.setState(StateIdle)
			return nil
		}
		if err != nil {
			e.setState(StateIdle)
			return fmt.Errorf("fetching block %d: %w", next, err)
		}

		if ok && blk.Header.ParentHash != cursor.Hash {
			if err := e.revert(ctx, cursor); err != nil {
				if errors.Is(err, ErrReorgTooDeep) {
					e.fault(err)
				} else {
					e.setState(StateIdle)
				}
				return err
			}
			continue
		}

		e.setState(StateApplying)
		created, consumed, err := e.filterBlock(blk)
		if err != nil {
			e.setState(StateIdle)
			return err
		}
		if err := e.store.ApplyBlock(next, blk.Header.Hash(), blk.Header.ParentHash, created, consumed); err != nil {
			e.setState(StateIdle)
			return fmt.Errorf("applying block %d: %w", next, err)
		}
		e.logger.Debug().
			Uint64("height", next).
			Int("created", len(created)).
			Int("consumed", len(consumed)).
			Msg("Applied block")
	}
}

// revert walks backward from the local cursor looking for the highest
// height where the local and remote headers agree, then rolls the index
// back to it. The search is bounded by the retained delta window; if no
// common ancestor is found inside it the reorg is unrecoverable.
func (e *Engine) revert(ctx context.Context, cursor index.Cursor) error {
	e.setState(StateReverting)
	e.logger.Warn().
		Uint64("height", cursor.Height).
		Str("local_hash", cursor.Hash.Short()).
		Msg("Chain divergence detected, searching for common ancestor")

	lowest := e.cfg.StartHeight
	if w := e.store.Window(); cursor.Height >= w && cursor.Height-w+1 > lowest {
		lowest = cursor.Height - w + 1
	}

	for h := cursor.Height; h >= lowest; h-- {
		if err := ctx.Err(); err != nil {
			return err
		}

		local, err := e.store.HeaderAt(h)
		if errors.Is(err, index.ErrRollbackUnavailable) {
			break
		}
		if err != nil {
			return err
		}

		remote, err := e.node.GetHeader(ctx, h)
		if errors.Is(err, ErrNotFound) {
			// Remote chain is shorter here; keep descending.
			if h == 0 {
				break
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("fetching header %d: %w", h, err)
		}

		if remote.Hash() == local.Hash {
			e.logger.Info().
				Uint64("ancestor", h).
				Uint64("unwound", cursor.Height-h).
				Msg("Rolling back to common ancestor")
			if err := e.store.RollbackTo(h); err != nil {
				if errors.Is(err, index.ErrRollbackUnavailable) {
					return fmt.Errorf("%w: ancestor at height %d", ErrReorgTooDeep, h)
				}
				return err
			}
			return nil
		}

		if h == 0 {
			break
		}
	}
	return fmt.Errorf("%w: no common ancestor above height %d", ErrReorgTooDeep, lowest)
}

// filterBlock reduces a block to the tracked-lock change set. Cells
// created and consumed inside the same block cancel out and never reach
// the store. Reward cells (the leading input-less transaction) carry a
// maturity height.
func (e *Engine) filterBlock(blk *block.Block) (created []index.Cell, consumed []types.OutPoint, err error) {
	tracked, err := e.trackedSet()
	if err != nil {
		return nil, nil, err
	}
	if len(tracked) == 0 {
		return nil, nil, nil
	}

	height := blk.Header.Height
	inBlock := make(map[types.OutPoint]struct{})
	canceled := make(map[types.OutPoint]struct{})

	for txIdx, t := range blk.Transactions {
		for _, in := range t.Inputs {
			op := in.Previous
			if _, ok := inBlock[op]; ok {
				// Created and spent within this block: cancel.
				canceled[op] = struct{}{}
				delete(inBlock, op)
				continue
			}
			have, herr := e.store.HasCell(op)
			if herr != nil {
				return nil, nil, herr
			}
			if have {
				consumed = append(consumed, op)
			}
		}

		txHash := t.Hash()
		reward := txIdx == 0 && len(t.Inputs) == 0
		for outIdx, out := range t.Outputs {
			lockHash := crypto.ScriptHash(out.Lock)
			if _, ok := tracked[lockHash]; !ok {
				continue
			}
			cell := index.Cell{
				OutPoint: types.OutPoint{TxHash: txHash, Index: uint32(outIdx)},
				Capacity: out.Capacity,
				Lock:     out.Lock,
				LockHash: lockHash,
				TypeHash: out.TypeHash,
				DataHash: out.DataHash,
				Height:   height,
			}
			if reward && e.cfg.MaturityWindow > 0 {
				cell.MaturesAt = height + e.cfg.MaturityWindow
			}
			inBlock[cell.OutPoint] = struct{}{}
			created = append(created, cell)
		}
	}

	// Drop canceled entries while preserving creation order.
	kept := created[:0]
	for _, c := range created {
		if _, ok := canceled[c.OutPoint]; !ok {
			kept = append(kept, c)
		}
	}
	return kept, consumed, nil
}

func (e *Engine) trackedSet() (map[types.Hash]index.TrackedLock, error) {
	locks, err := e.store.TrackedLocks()
	if err != nil {
		return nil, err
	}
	set := make(map[types.Hash]index.TrackedLock, len(locks))
	for _, l := range locks {
		set[l.LockHash] = l
	}
	return set, nil
}

// Rescan clears the index (keeping the tracked set) and clears any
// fault so the next pass rebuilds from StartHeight.
func (e *Engine) Rescan(ctx context.Context) error {
	e.tickMu.Lock()
	if err := e.store.Reset(); err != nil {
		e.tickMu.Unlock()
		return err
	}
	e.mu.Lock()
	e.state = StateIdle
	e.faultErr = nil
	e.mu.Unlock()
	e.tickMu.Unlock()

	e.logger.Info().Uint64("from", e.cfg.StartHeight).Msg("Index cleared, rescanning")
	return e.Tick(ctx)
}
