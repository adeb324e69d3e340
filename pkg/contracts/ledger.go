package contracts

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// RegistrationEvent is one ProjectRegistered event as read from the ledger.
// Addresses are carried in their checksummed on-chain form; consumers that
// key on them are expected to lowercase-normalize first.
type RegistrationEvent struct {
	Instance        common.Address
	Factory         common.Address
	Creator         common.Address
	Name            string
	BlockNumber     uint64
	TransactionHash common.Hash
}

// LedgerSource provides read access to registration events on the chain.
// Implementations wrap whatever RPC transport the deployment uses; the core
// only depends on this narrow surface.
type LedgerSource interface {
	// CurrentHeight returns the latest block number the source knows about.
	CurrentHeight(ctx context.Context) (uint64, error)

	// QueryRegistrations returns every registration event in the inclusive
	// block range [fromBlock, toBlock], in chain order.
	QueryRegistrations(ctx context.Context, fromBlock, toBlock uint64) ([]RegistrationEvent, error)
}
