package types

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// OutPointSize is the length of a serialized outpoint: txhash(32) + index(4).
const OutPointSize = HashSize + 4

// OutPoint is the unique identity of a cell: the hash of the transaction
// that produced it plus the output index within that transaction.
type OutPoint struct {
	TxHash Hash   `json:"tx_hash"`
	Index  uint32 `json:"index"`
}

// IsZero returns true if the outpoint has a zero tx hash and zero index.
func (o OutPoint) IsZero() bool {
	return o.TxHash.IsZero() && o.Index == 0
}

// Bytes returns the canonical 36-byte encoding: txhash(32) + index(4 BE).
// This encoding sorts by tx hash then index, which is the tie-break order
// used by the lock index.
func (o OutPoint) Bytes() []byte {
	b := make([]byte, OutPointSize)
	copy(b, o.TxHash[:])
	binary.BigEndian.PutUint32(b[HashSize:], o.Index)
	return b
}

// OutPointFromBytes decodes the canonical 36-byte encoding.
func OutPointFromBytes(b []byte) (OutPoint, error) {
	if len(b) != OutPointSize {
		return OutPoint{}, fmt.Errorf("outpoint must be %d bytes, got %d", OutPointSize, len(b))
	}
	var o OutPoint
	copy(o.TxHash[:], b[:HashSize])
	o.Index = binary.BigEndian.Uint32(b[HashSize:])
	return o, nil
}

// Compare orders outpoints by their canonical encoding.
func (o OutPoint) Compare(other OutPoint) int {
	if c := bytes.Compare(o.TxHash[:], other.TxHash[:]); c != 0 {
		return c
	}
	switch {
	case o.Index < other.Index:
		return -1
	case o.Index > other.Index:
		return 1
	}
	return 0
}

// String returns "txhash:index" in hex.
func (o OutPoint) String() string {
	return fmt.Sprintf("%s:%d", o.TxHash.String(), o.Index)
}
