package block

import (
	"github.com/cellchain/cellwallet/pkg/tx"
)

// Block is a full block: header plus transactions.
type Block struct {
	Header       Header            `json:"header"`
	Transactions []*tx.Transaction `json:"transactions"`
}
