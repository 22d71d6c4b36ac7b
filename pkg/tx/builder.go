package tx

import (
	"fmt"

	"github.com/cellchain/cellwallet/pkg/crypto"
	"github.com/cellchain/cellwallet/pkg/types"
)

// Builder constructs transactions incrementally.
type Builder struct {
	tx *Transaction
	// inputLocks remembers the lock hash each input spends from, for
	// per-input signer lookup in SignMulti.
	inputLocks map[types.OutPoint]types.Hash
}

// NewBuilder creates a new transaction builder.
func NewBuilder() *Builder {
	return &Builder{
		tx:         &Transaction{Version: 1},
		inputLocks: make(map[types.OutPoint]types.Hash),
	}
}

// AddInput adds an input consuming the cell at prevOut. lockHash is the
// hash of the lock script owning the cell; it selects the signing key.
func (b *Builder) AddInput(prevOut types.OutPoint, lockHash types.Hash) *Builder {
	b.tx.Inputs = append(b.tx.Inputs, Input{Previous: prevOut})
	b.inputLocks[prevOut] = lockHash
	return b
}

// AddOutput adds an output creating a cell with the given capacity and
// lock script.
func (b *Builder) AddOutput(capacity uint64, lock types.Script) *Builder {
	b.tx.Outputs = append(b.tx.Outputs, Output{Capacity: capacity, Lock: lock})
	return b
}

// AddDataOutput adds an output carrying type-script and data
// commitments alongside its capacity.
func (b *Builder) AddDataOutput(capacity uint64, lock types.Script, typeHash, dataHash *types.Hash) *Builder {
	b.tx.Outputs = append(b.tx.Outputs, Output{
		Capacity: capacity,
		Lock:     lock,
		TypeHash: typeHash,
		DataHash: dataHash,
	})
	return b
}

// Sign signs every input with the provided private key (single-key
// spending).
func (b *Builder) Sign(key *crypto.PrivateKey) error {
	hash := b.tx.Hash()
	sig, err := key.Sign(hash[:])
	if err != nil {
		return fmt.Errorf("sign tx: %w", err)
	}
	pubKey := key.PublicKey()
	for i := range b.tx.Inputs {
		b.tx.Inputs[i].Signature = sig
		b.tx.Inputs[i].PubKey = pubKey
	}
	return nil
}

// SignMulti signs each input with the key owning its lock script.
// signers maps lock hashes to private keys; every input's lock hash
// (recorded by AddInput) must be present.
func (b *Builder) SignMulti(signers map[types.Hash]*crypto.PrivateKey) error {
	hash := b.tx.Hash()

	// Same key over the same hash yields one signature; cache it.
	type sigPub struct {
		sig    []byte
		pubKey []byte
	}
	cache := make(map[types.Hash]*sigPub)

	for i := range b.tx.Inputs {
		lockHash, ok := b.inputLocks[b.tx.Inputs[i].Previous]
		if !ok {
			return fmt.Errorf("no lock hash recorded for input %d", i)
		}
		key, ok := signers[lockHash]
		if !ok {
			return fmt.Errorf("no signer for lock %s (input %d)", lockHash.Short(), i)
		}

		sp, cached := cache[lockHash]
		if !cached {
			sig, err := key.Sign(hash[:])
			if err != nil {
				return fmt.Errorf("sign input %d: %w", i, err)
			}
			sp = &sigPub{sig: sig, pubKey: key.PublicKey()}
			cache[lockHash] = sp
		}
		b.tx.Inputs[i].Signature = sp.sig
		b.tx.Inputs[i].PubKey = sp.pubKey
	}
	return nil
}

// Build returns the constructed transaction.
// Does NOT validate; call ValidateStructure separately.
func (b *Builder) Build() *Transaction {
	return b.tx
}
