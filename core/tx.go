package core

import "github.com/ethereum/go-ethereum/common"

// TxHandle identifies a submitted ledger call.
type TxHandle struct {
	Hash     common.Hash
	Function string
}

// Receipt is the mined outcome of a ledger call.
type Receipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	Success     bool
	GasUsed     uint64
}
