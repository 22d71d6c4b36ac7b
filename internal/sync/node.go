package sync

import (
	"context"
	"errors"

	"github.com/cellchain/cellwallet/pkg/block"
)

// Sentinel errors surfaced by node clients and the sync engine.
var (
	// ErrNodeUnavailable indicates the remote node could not be reached
	// or failed to answer. The condition is transient; the engine retries
	// with backoff.
	ErrNodeUnavailable = errors.New("node unavailable")

	// ErrNotFound indicates the requested block or header does not exist
	// on the remote chain (e.g. a height past the tip).
	ErrNotFound = errors.New("not found")

	// ErrReorgTooDeep indicates the remote chain diverged below the
	// retained rollback window. The local index cannot be repaired
	// incrementally; a full rescan is required.
	ErrReorgTooDeep = errors.New("reorg deeper than retained rollback window")
)

// NodeClient fetches chain data from a remote full node. Implementations
// must map transport failures to ErrNodeUnavailable and missing heights
// to ErrNotFound so the engine can distinguish transient faults from
// chain state.
type NodeClient interface {
	// GetTipHeader returns the header of the remote chain tip.
	GetTipHeader(ctx context.Context) (*block.Header, error)

	// GetHeader returns the header at the given height.
	GetHeader(ctx context.Context, height uint64) (*block.Header, error)

	// GetBlock returns the full block at the given height.
	GetBlock(ctx context.Context, height uint64) (*block.Block, error)
}
