package wallet

import (
	"fmt"

	"github.com/cellchain/cellwallet/pkg/crypto"
	"github.com/cellchain/cellwallet/pkg/types"
)

// Account is a derived wallet account with its chain identity resolved.
type Account struct {
	Index   uint32
	Change  uint32
	Label   string
	Address types.Address
}

// LockScript returns the signature-lock script paying to this account.
func (a Account) LockScript() types.Script {
	return a.Address.Script()
}

// LockHash returns the hash of the account's lock script, the identity
// the index tracks cells under.
func (a Account) LockHash() types.Hash {
	return crypto.ScriptHash(a.LockScript())
}

// AccountFromEntry resolves a keystore entry into an Account.
func AccountFromEntry(e AccountEntry) (Account, error) {
	addr, err := types.ParseAddress(e.Address)
	if err != nil {
		return Account{}, fmt.Errorf("account %d/%d: %w", e.Change, e.Index, err)
	}
	return Account{
		Index:   e.Index,
		Change:  e.Change,
		Label:   e.Label,
		Address: addr,
	}, nil
}
