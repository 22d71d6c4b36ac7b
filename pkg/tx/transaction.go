// Package tx defines cell-chain transactions and their construction.
package tx

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"

	"github.com/cellchain/cellwallet/pkg/crypto"
	"github.com/cellchain/cellwallet/pkg/types"
)

// Transaction consumes cells (inputs) and creates cells (outputs).
type Transaction struct {
	Version uint32   `json:"version"`
	Inputs  []Input  `json:"inputs"`
	Outputs []Output `json:"outputs"`
}

// Input references a live cell being consumed.
type Input struct {
	Previous  types.OutPoint `json:"previous"`
	Signature []byte         `json:"signature"`
	PubKey    []byte         `json:"pubkey"`
}

// inputJSON is the JSON representation of Input with hex-encoded byte fields.
type inputJSON struct {
	Previous  types.OutPoint `json:"previous"`
	Signature *string        `json:"signature"`
	PubKey    *string        `json:"pubkey"`
}

// MarshalJSON encodes the input with hex-encoded signature and pubkey.
func (in Input) MarshalJSON() ([]byte, error) {
	j := inputJSON{Previous: in.Previous}
	if in.Signature != nil {
		s := hex.EncodeToString(in.Signature)
		j.Signature = &s
	}
	if in.PubKey != nil {
		p := hex.EncodeToString(in.PubKey)
		j.PubKey = &p
	}
	return json.Marshal(j)
}

// UnmarshalJSON decodes an input with hex-encoded signature and pubkey.
func (in *Input) UnmarshalJSON(data []byte) error {
	var j inputJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	in.Previous = j.Previous
	if j.Signature != nil {
		b, err := hex.DecodeString(*j.Signature)
		if err != nil {
			return err
		}
		in.Signature = b
	}
	if j.PubKey != nil {
		b, err := hex.DecodeString(*j.PubKey)
		if err != nil {
			return err
		}
		in.PubKey = b
	}
	return nil
}

// Output defines a new cell: its capacity, owning lock script, and
// optional type-script and data commitments.
type Output struct {
	Capacity uint64       `json:"capacity"`
	Lock     types.Script `json:"lock"`
	TypeHash *types.Hash  `json:"type_hash,omitempty"`
	DataHash *types.Hash  `json:"data_hash,omitempty"`
}

// Hash computes the transaction ID: BLAKE3 of the canonical signing bytes.
// Signatures are excluded so the ID is stable across signing.
func (t *Transaction) Hash() types.Hash {
	return crypto.Hash(t.SigningBytes())
}

// SigningBytes returns the canonical byte representation used for
// signing and hashing.
//
// Format: version(4) | input_count(4) | [outpoint(36)]... |
// output_count(4) | [capacity(8) + code_hash(32) + args_len(4) + args +
// type_flag(1) [+ type_hash(32)] + data_flag(1) [+ data_hash(32)]]...
func (t *Transaction) SigningBytes() []byte {
	var buf []byte

	buf = binary.LittleEndian.AppendUint32(buf, t.Version)

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(t.Inputs)))
	for _, in := range t.Inputs {
		buf = append(buf, in.Previous.TxHash[:]...)
		buf = binary.LittleEndian.AppendUint32(buf, in.Previous.Index)
	}

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(t.Outputs)))
	for _, out := range t.Outputs {
		buf = binary.LittleEndian.AppendUint64(buf, out.Capacity)
		buf = append(buf, out.Lock.CodeHash[:]...)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(out.Lock.Args)))
		buf = append(buf, out.Lock.Args...)
		if out.TypeHash != nil {
			buf = append(buf, 1)
			buf = append(buf, out.TypeHash[:]...)
		} else {
			buf = append(buf, 0)
		}
		if out.DataHash != nil {
			buf = append(buf, 1)
			buf = append(buf, out.DataHash[:]...)
		} else {
			buf = append(buf, 0)
		}
	}

	return buf
}

// TotalCapacity returns the sum of all output capacities.
// Returns an error if the sum overflows uint64.
func (t *Transaction) TotalCapacity() (uint64, error) {
	var total uint64
	for _, out := range t.Outputs {
		if total > math.MaxUint64-out.Capacity {
			return 0, fmt.Errorf("output capacity overflow")
		}
		total += out.Capacity
	}
	return total, nil
}
