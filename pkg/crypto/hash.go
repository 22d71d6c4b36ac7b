// Package crypto provides cryptographic primitives for the cell chain.
package crypto

import (
	"github.com/zeebo/blake3"

	"github.com/cellchain/cellwallet/pkg/types"
)

// Hash computes a BLAKE3-256 hash of the input data.
func Hash(data []byte) types.Hash {
	return blake3.Sum256(data)
}

// ScriptHash computes the lock-script hash: BLAKE3(code_hash || args).
// This is the key under which the index groups a script's cells.
func ScriptHash(s types.Script) types.Hash {
	buf := make([]byte, 0, types.HashSize+len(s.Args))
	buf = append(buf, s.CodeHash[:]...)
	buf = append(buf, s.Args...)
	return Hash(buf)
}

// AddressFromPubKey derives an address from a compressed public key.
// Address = BLAKE3(compressed_pubkey)[:20].
func AddressFromPubKey(pubKey []byte) types.Address {
	h := Hash(pubKey)
	var addr types.Address
	copy(addr[:], h[:types.AddressSize])
	return addr
}

// LockHashForAddress computes the script hash of the standard signature
// lock parameterized by addr.
func LockHashForAddress(addr types.Address) types.Hash {
	return ScriptHash(addr.Script())
}
