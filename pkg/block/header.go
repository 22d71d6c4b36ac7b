// Package block defines block and header types as served by the remote node.
package block

import (
	"encoding/binary"

	"github.com/cellchain/cellwallet/pkg/crypto"
	"github.com/cellchain/cellwallet/pkg/types"
)

// Header contains block metadata. The wallet does not validate
// consensus fields; it only needs height, hash, and parent linkage to
// keep its index consistent.
type Header struct {
	Version    uint32     `json:"version"`
	Height     uint64     `json:"height"`
	ParentHash types.Hash `json:"parent_hash"`
	TxRoot     types.Hash `json:"tx_root"`
	Timestamp  uint64     `json:"timestamp"`
}

// Hash computes the block header hash.
func (h *Header) Hash() types.Hash {
	return crypto.Hash(h.signingBytes())
}

// signingBytes returns the canonical bytes for hashing.
// Format: version(4) | height(8) | parent_hash(32) | tx_root(32) | timestamp(8)
func (h *Header) signingBytes() []byte {
	buf := make([]byte, 0, 84)
	buf = binary.LittleEndian.AppendUint32(buf, h.Version)
	buf = binary.LittleEndian.AppendUint64(buf, h.Height)
	buf = append(buf, h.ParentHash[:]...)
	buf = append(buf, h.TxRoot[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, h.Timestamp)
	return buf
}
