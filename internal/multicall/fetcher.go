package multicall

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"bloomCache/internal/model"
)

// DefaultAddress is the canonical Multicall3 deployment, identical on most EVM chains.
var DefaultAddress = common.HexToAddress("0xcA11bde05977b3631167028862bE2a173976CA11")

// ContractCaller performs eth_call.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

type call3 struct {
	Target       common.Address
	AllowFailure bool
	CallData     []byte
}

type result struct {
	Success    bool
	ReturnData []byte
}

// Fetcher reads getReserves() for many pairs through Multicall3.
type Fetcher struct {
	caller    ContractCaller
	address   common.Address
	batchSize int
	logger    *zap.Logger
}

// NewFetcher builds a Fetcher. batchSize caps sub-calls per eth_call.
func NewFetcher(caller ContractCaller, address common.Address, batchSize int, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	if address == (common.Address{}) {
		address = DefaultAddress
	}
	return &Fetcher{
		caller:    caller,
		address:   address,
		batchSize: batchSize,
		logger:    logger,
	}
}

// FetchReserves returns reserves for pairs at the latest block.
func (f *Fetcher) FetchReserves(ctx context.Context, pairs []common.Address) ([]*model.Reserves, error) {
	return f.FetchReservesAt(ctx, pairs, nil)
}

// FetchReservesAt returns one entry per pair, in order. An entry is nil when
// that pair's call reverted or returned something undecodable. An error means
// the batch as a whole failed and no entry can be trusted.
func (f *Fetcher) FetchReservesAt(ctx context.Context, pairs []common.Address, block *big.Int) ([]*model.Reserves, error) {
	if f.caller == nil {
		return nil, fmt.Errorf("contract caller is nil")
	}
	if len(pairs) == 0 {
		return nil, nil
	}

	mcABI, err := Multicall3ABI()
	if err != nil {
		return nil, fmt.Errorf("parse multicall abi: %w", err)
	}
	pABI, err := PairABI()
	if err != nil {
		return nil, fmt.Errorf("parse pair abi: %w", err)
	}
	getReserves, err := pABI.Pack("getReserves")
	if err != nil {
		return nil, fmt.Errorf("pack getReserves: %w", err)
	}

	chunks, err := splitRange(len(pairs), f.batchSize)
	if err != nil {
		return nil, err
	}

	out := make([]*model.Reserves, len(pairs))
	for _, chunk := range chunks {
		calls := make([]call3, 0, chunk.To-chunk.From+1)
		for i := chunk.From; i <= chunk.To; i++ {
			calls = append(calls, call3{Target: pairs[i], AllowFailure: true, CallData: getReserves})
		}

		results, err := f.aggregate3(ctx, mcABI, calls, block)
		if err != nil {
			return nil, err
		}
		if len(results) != len(calls) {
			return nil, fmt.Errorf("multicall returned %d results for %d calls", len(results), len(calls))
		}

		for j, res := range results {
			idx := chunk.From + j
			if !res.Success {
				f.logger.Debug("getReserves reverted", zap.String("pair", pairs[idx].Hex()))
				continue
			}
			reserves, err := decodeReserves(pABI, res.ReturnData)
			if err != nil {
				f.logger.Debug("getReserves decode failed", zap.String("pair", pairs[idx].Hex()), zap.Error(err))
				continue
			}
			out[idx] = reserves
		}
	}

	return out, nil
}

func (f *Fetcher) aggregate3(ctx context.Context, mcABI abi.ABI, calls []call3, block *big.Int) ([]result, error) {
	data, err := mcABI.Pack("aggregate3", calls)
	if err != nil {
		return nil, fmt.Errorf("pack aggregate3: %w", err)
	}

	to := f.address
	resp, err := f.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, block)
	if err != nil {
		return nil, fmt.Errorf("call aggregate3: %w", err)
	}

	values, err := mcABI.Unpack("aggregate3", resp)
	if err != nil {
		return nil, fmt.Errorf("unpack aggregate3: %w", err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unpack aggregate3: unexpected output count %d", len(values))
	}
	return convertResults(values[0])
}

func convertResults(value interface{}) (results []result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("convert aggregate3 results: %v", r)
		}
	}()
	converted := *abi.ConvertType(value, new([]result)).(*[]result)
	return converted, nil
}

func decodeReserves(pABI abi.ABI, data []byte) (*model.Reserves, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty return data")
	}
	values, err := pABI.Unpack("getReserves", data)
	if err != nil {
		return nil, err
	}
	if len(values) < 2 {
		return nil, fmt.Errorf("unexpected output count %d", len(values))
	}
	r0, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("reserve0 has type %T", values[0])
	}
	r1, ok := values[1].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("reserve1 has type %T", values[1])
	}
	return &model.Reserves{Reserve0: r0, Reserve1: r1}, nil
}
