package tx

import (
	"fmt"

	"github.com/cellchain/cellwallet/pkg/types"
)

// MaxLockArgsSize bounds lock script args to keep transactions within
// relay limits.
const MaxLockArgsSize = 256

// ValidateStructure checks a transaction's shape before submission.
// It does not run lock scripts or consensus rules — the remote node is
// the authority on those.
func ValidateStructure(t *Transaction) error {
	if len(t.Outputs) == 0 {
		return fmt.Errorf("transaction has no outputs")
	}
	if _, err := t.TotalCapacity(); err != nil {
		return err
	}

	seen := make(map[types.OutPoint]struct{}, len(t.Inputs))
	for _, in := range t.Inputs {
		if in.Previous.IsZero() {
			return fmt.Errorf("input references zero outpoint")
		}
		if _, ok := seen[in.Previous]; ok {
			return fmt.Errorf("duplicate input %s", in.Previous)
		}
		seen[in.Previous] = struct{}{}
	}

	for i, out := range t.Outputs {
		if out.Lock.CodeHash.IsZero() {
			return fmt.Errorf("output %d has zero lock code hash", i)
		}
		if len(out.Lock.Args) > MaxLockArgsSize {
			return fmt.Errorf("output %d lock args too long: %d bytes", i, len(out.Lock.Args))
		}
	}
	return nil
}
