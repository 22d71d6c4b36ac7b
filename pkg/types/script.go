package types

import (
	"encoding/hex"
	"encoding/json"
)

// Script is a lock script: the spending condition that owns a cell.
// CodeHash identifies the spending logic; Args parameterize it (for the
// default signature lock, Args is the 20-byte public key hash).
// The script hash (pkg/crypto.ScriptHash) is the key the index tracks.
type Script struct {
	CodeHash Hash   `json:"code_hash"`
	Args     []byte `json:"args"`
}

// SigLockCodeHash returns the code hash of the chain's standard signature
// lock (spendable with a Schnorr signature over the tx hash by the key
// whose address equals Args). The value is a protocol constant.
func SigLockCodeHash() Hash {
	return sigLockCodeHash
}

var sigLockCodeHash = Hash{
	0x9c, 0x2f, 0x1a, 0x64, 0x7b, 0x05, 0xe3, 0xd8,
	0x41, 0xaa, 0x30, 0x96, 0xcf, 0x18, 0x5d, 0x22,
	0x6e, 0xb4, 0x07, 0xf9, 0x83, 0x5a, 0xc1, 0x4d,
	0x10, 0xde, 0x69, 0x2b, 0xf4, 0x8c, 0x37, 0xe5,
}

// scriptJSON is the JSON representation of a Script with hex-encoded args.
type scriptJSON struct {
	CodeHash Hash   `json:"code_hash"`
	Args     string `json:"args"`
}

// MarshalJSON encodes the script with hex-encoded args.
func (s Script) MarshalJSON() ([]byte, error) {
	return json.Marshal(scriptJSON{
		CodeHash: s.CodeHash,
		Args:     hex.EncodeToString(s.Args),
	})
}

// UnmarshalJSON decodes a script with hex-encoded args.
func (s *Script) UnmarshalJSON(data []byte) error {
	var j scriptJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	s.CodeHash = j.CodeHash
	s.Args = nil
	if j.Args != "" {
		b, err := hex.DecodeString(j.Args)
		if err != nil {
			return err
		}
		s.Args = b
	}
	return nil
}
