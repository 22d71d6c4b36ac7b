package index

import (
	"encoding/binary"

	"github.com/cellchain/cellwallet/pkg/types"
)

// Key prefixes for the index tables. Everything lives in one storage
// namespace so a single batch can update cells, lock index, totals,
// delta log, headers, and cursor coherently.
var (
	prefixCell    = []byte("c/") // c/<outpoint(36)> -> Cell JSON
	prefixLock    = []byte("l/") // l/<lockhash(32)><height(8)><outpoint(36)> -> empty
	prefixTotal   = []byte("t/") // t/<lockhash(32)> -> capacity(8 BE)
	prefixMature  = []byte("m/") // m/<lockhash(32)><maturesAt(8)><outpoint(36)> -> capacity(8 BE)
	prefixDelta   = []byte("d/") // d/<height(8 BE)> -> BlockDelta JSON
	prefixHeader  = []byte("h/") // h/<height(8 BE)> -> HeaderRec JSON
	prefixTracked = []byte("w/") // w/<lockhash(32)> -> TrackedLock JSON
	keyCursor     = []byte("s/cursor")
)

// cellKey builds the live-cell key: "c/" + outpoint(36).
func cellKey(op types.OutPoint) []byte {
	key := make([]byte, len(prefixCell)+types.OutPointSize)
	copy(key, prefixCell)
	copy(key[len(prefixCell):], op.Bytes())
	return key
}

// lockKey builds a lock index key: "l/" + lockhash(32) + height(8) + outpoint(36).
// The big-endian height segment makes iteration order creation-height
// ascending, with the outpoint bytes as tie-break.
func lockKey(lockHash types.Hash, height uint64, op types.OutPoint) []byte {
	key := make([]byte, len(prefixLock)+types.HashSize+8+types.OutPointSize)
	copy(key, prefixLock)
	off := len(prefixLock)
	copy(key[off:], lockHash[:])
	off += types.HashSize
	binary.BigEndian.PutUint64(key[off:], height)
	off += 8
	copy(key[off:], op.Bytes())
	return key
}

// lockPrefix returns the scan prefix for all of a lock's index entries.
func lockPrefix(lockHash types.Hash) []byte {
	key := make([]byte, len(prefixLock)+types.HashSize)
	copy(key, prefixLock)
	copy(key[len(prefixLock):], lockHash[:])
	return key
}

// parseLockKey extracts (height, outpoint) from an unprefixed lock key.
func parseLockKey(key []byte) (uint64, types.OutPoint, bool) {
	want := len(prefixLock) + types.HashSize + 8 + types.OutPointSize
	if len(key) != want {
		return 0, types.OutPoint{}, false
	}
	off := len(prefixLock) + types.HashSize
	height := binary.BigEndian.Uint64(key[off:])
	op, err := types.OutPointFromBytes(key[off+8:])
	if err != nil {
		return 0, types.OutPoint{}, false
	}
	return height, op, true
}

// totalKey builds the running-total key: "t/" + lockhash(32).
func totalKey(lockHash types.Hash) []byte {
	key := make([]byte, len(prefixTotal)+types.HashSize)
	copy(key, prefixTotal)
	copy(key[len(prefixTotal):], lockHash[:])
	return key
}

// matureKey builds an immature-cell marker key:
// "m/" + lockhash(32) + maturesAt(8) + outpoint(36).
func matureKey(lockHash types.Hash, maturesAt uint64, op types.OutPoint) []byte {
	key := make([]byte, len(prefixMature)+types.HashSize+8+types.OutPointSize)
	copy(key, prefixMature)
	off := len(prefixMature)
	copy(key[off:], lockHash[:])
	off += types.HashSize
	binary.BigEndian.PutUint64(key[off:], maturesAt)
	off += 8
	copy(key[off:], op.Bytes())
	return key
}

// maturePrefix returns the scan prefix for a lock's immature markers.
func maturePrefix(lockHash types.Hash) []byte {
	key := make([]byte, len(prefixMature)+types.HashSize)
	copy(key, prefixMature)
	copy(key[len(prefixMature):], lockHash[:])
	return key
}

// parseMatureKey extracts (maturesAt, outpoint) from an unprefixed marker key.
func parseMatureKey(key []byte) (uint64, types.OutPoint, bool) {
	want := len(prefixMature) + types.HashSize + 8 + types.OutPointSize
	if len(key) != want {
		return 0, types.OutPoint{}, false
	}
	off := len(prefixMature) + types.HashSize
	maturesAt := binary.BigEndian.Uint64(key[off:])
	op, err := types.OutPointFromBytes(key[off+8:])
	if err != nil {
		return 0, types.OutPoint{}, false
	}
	return maturesAt, op, true
}

// deltaKey builds the delta-log key: "d/" + height(8 BE).
func deltaKey(height uint64) []byte {
	key := make([]byte, len(prefixDelta)+8)
	copy(key, prefixDelta)
	binary.BigEndian.PutUint64(key[len(prefixDelta):], height)
	return key
}

// headerKey builds the header key: "h/" + height(8 BE).
func headerKey(height uint64) []byte {
	key := make([]byte, len(prefixHeader)+8)
	copy(key, prefixHeader)
	binary.BigEndian.PutUint64(key[len(prefixHeader):], height)
	return key
}

// trackedKey builds the tracked-lock key: "w/" + lockhash(32).
func trackedKey(lockHash types.Hash) []byte {
	key := make([]byte, len(prefixTracked)+types.HashSize)
	copy(key, prefixTracked)
	copy(key[len(prefixTracked):], lockHash[:])
	return key
}
