// Package ledger binds the LedgerSource contract to an Ethereum JSON-RPC
// node. Registration events are read from the launchpad registry contract's
// ProjectRegistered logs.
package ledger

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/mintlaunch/launchindex/pkg/contracts"
	"github.com/mintlaunch/launchindex/pkg/logging"
)

// registryABI declares the single event the source decodes.
const registryABI = `[{"anonymous":false,"inputs":[{"indexed":true,"internalType":"address","name":"instance","type":"address"},{"indexed":true,"internalType":"address","name":"factory","type":"address"},{"indexed":true,"internalType":"address","name":"creator","type":"address"},{"indexed":false,"internalType":"string","name":"name","type":"string"}],"name":"ProjectRegistered","type":"event"}]`

const eventName = "ProjectRegistered"

// Backend is the narrow chain surface the source needs. *ethclient.Client
// satisfies it.
type Backend interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// EthSource implements contracts.LedgerSource over an Ethereum backend.
type EthSource struct {
	backend  Backend
	registry common.Address
	abi      abi.ABI
	eventID  common.Hash
	log      *logging.ColoredLogger
}

// NewEthSource wraps an existing backend.
func NewEthSource(backend Backend, registry common.Address, log *logging.ColoredLogger) (*EthSource, error) {
	parsed, err := abi.JSON(strings.NewReader(registryABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse registry ABI: %w", err)
	}
	return &EthSource{
		backend:  backend,
		registry: registry,
		abi:      parsed,
		eventID:  parsed.Events[eventName].ID,
		log:      log,
	}, nil
}

// Dial connects to a JSON-RPC endpoint and wraps it as a source.
func Dial(ctx context.Context, rpcURL string, registry common.Address, log *logging.ColoredLogger) (*EthSource, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial ledger rpc %s: %w", rpcURL, err)
	}
	return NewEthSource(client, registry, log)
}

// CurrentHeight returns the latest block number.
func (s *EthSource) CurrentHeight(ctx context.Context) (uint64, error) {
	height, err := s.backend.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get chain height: %w", err)
	}
	return height, nil
}

// QueryRegistrations returns every ProjectRegistered event in the inclusive
// range [fromBlock, toBlock], in chain order.
func (s *EthSource) QueryRegistrations(ctx context.Context, fromBlock, toBlock uint64) ([]contracts.RegistrationEvent, error) {
	logs, err := s.backend.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{s.registry},
		Topics:    [][]common.Hash{{s.eventID}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query registration logs: %w", err)
	}

	events := make([]contracts.RegistrationEvent, 0, len(logs))
	for _, lg := range logs {
		ev, err := s.decode(lg)
		if err != nil {
			s.log.ComponentWarn(logging.ComponentLedger, "skipping undecodable registration log",
				zap.String("tx", lg.TxHash.Hex()), zap.Uint64("block", lg.BlockNumber), zap.Error(err))
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func (s *EthSource) decode(lg types.Log) (contracts.RegistrationEvent, error) {
	if len(lg.Topics) != 4 {
		return contracts.RegistrationEvent{}, fmt.Errorf("expected 4 topics, got %d", len(lg.Topics))
	}

	vals, err := s.abi.Unpack(eventName, lg.Data)
	if err != nil {
		return contracts.RegistrationEvent{}, fmt.Errorf("failed to unpack event data: %w", err)
	}
	name, ok := vals[0].(string)
	if !ok {
		return contracts.RegistrationEvent{}, fmt.Errorf("event name field is not a string")
	}

	return contracts.RegistrationEvent{
		Instance:        common.BytesToAddress(lg.Topics[1].Bytes()),
		Factory:         common.BytesToAddress(lg.Topics[2].Bytes()),
		Creator:         common.BytesToAddress(lg.Topics[3].Bytes()),
		Name:            name,
		BlockNumber:     lg.BlockNumber,
		TransactionHash: lg.TxHash,
	}, nil
}
