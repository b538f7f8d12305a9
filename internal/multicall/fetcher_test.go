package multicall

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMulticall decodes aggregate3 requests and answers each sub-call from a
// per-pair table. Pairs missing from the table revert.
type fakeMulticall struct {
	t        *testing.T
	mu       sync.Mutex
	reserves map[common.Address][2]*big.Int
	garbage  map[common.Address]bool
	calls    int
	blocks   []*big.Int
	err      error
}

func (f *fakeMulticall) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.blocks = append(f.blocks, blockNumber)
	if f.err != nil {
		return nil, f.err
	}

	mcABI, err := Multicall3ABI()
	require.NoError(f.t, err)
	pABI, err := PairABI()
	require.NoError(f.t, err)

	method := mcABI.Methods["aggregate3"]
	require.Equal(f.t, method.ID, msg.Data[:4])
	require.Equal(f.t, DefaultAddress, *msg.To)

	args, err := method.Inputs.Unpack(msg.Data[4:])
	require.NoError(f.t, err)
	calls := *abi.ConvertType(args[0], new([]call3)).(*[]call3)

	results := make([]result, len(calls))
	for i, c := range calls {
		require.True(f.t, c.AllowFailure)
		require.Equal(f.t, pABI.Methods["getReserves"].ID, c.CallData)
		if f.garbage[c.Target] {
			results[i] = result{Success: true, ReturnData: []byte{1, 2, 3}}
			continue
		}
		r, ok := f.reserves[c.Target]
		if !ok {
			results[i] = result{Success: false}
			continue
		}
		data, err := pABI.Methods["getReserves"].Outputs.Pack(r[0], r[1], uint32(1700000000))
		require.NoError(f.t, err)
		results[i] = result{Success: true, ReturnData: data}
	}

	return method.Outputs.Pack(results)
}

func addr(n int64) common.Address {
	return common.BigToAddress(big.NewInt(n))
}

func TestFetchReserves(t *testing.T) {
	big0, _ := new(big.Int).SetString("5192296858534827628530496329220095", 10)
	fake := &fakeMulticall{
		t: t,
		reserves: map[common.Address][2]*big.Int{
			addr(1): {big.NewInt(1000), big.NewInt(2000)},
			addr(2): {big0, big.NewInt(1)},
		},
		garbage: map[common.Address]bool{addr(4): true},
	}
	f := NewFetcher(fake, common.Address{}, 0, nil)

	got, err := f.FetchReserves(context.Background(), []common.Address{addr(1), addr(3), addr(2), addr(4)})
	require.NoError(t, err)
	require.Len(t, got, 4)

	require.NotNil(t, got[0])
	assert.Equal(t, int64(1000), got[0].Reserve0.Int64())
	assert.Equal(t, int64(2000), got[0].Reserve1.Int64())
	assert.Nil(t, got[1], "reverted call must be absent")
	require.NotNil(t, got[2])
	assert.Equal(t, 0, big0.Cmp(got[2].Reserve0))
	assert.Nil(t, got[3], "undecodable reply must be absent")

	assert.Equal(t, 1, fake.calls)
	assert.Nil(t, fake.blocks[0])
}

func TestFetchReservesChunks(t *testing.T) {
	fake := &fakeMulticall{t: t, reserves: map[common.Address][2]*big.Int{}}
	pairs := make([]common.Address, 0, 7)
	for i := int64(1); i <= 7; i++ {
		fake.reserves[addr(i)] = [2]*big.Int{big.NewInt(i), big.NewInt(i * 10)}
		pairs = append(pairs, addr(i))
	}
	f := NewFetcher(fake, DefaultAddress, 3, nil)

	got, err := f.FetchReservesAt(context.Background(), pairs, big.NewInt(123))
	require.NoError(t, err)
	require.Len(t, got, 7)
	for i, r := range got {
		require.NotNil(t, r)
		assert.Equal(t, int64(i+1), r.Reserve0.Int64())
		assert.Equal(t, int64((i+1)*10), r.Reserve1.Int64())
	}
	assert.Equal(t, 3, fake.calls)
	for _, b := range fake.blocks {
		assert.Equal(t, int64(123), b.Int64())
	}
}

func TestFetchReservesBatchFailure(t *testing.T) {
	fake := &fakeMulticall{t: t, err: errors.New("connection reset")}
	f := NewFetcher(fake, DefaultAddress, 10, nil)

	got, err := f.FetchReserves(context.Background(), []common.Address{addr(1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Nil(t, got)
}

func TestFetchReservesEmptyInput(t *testing.T) {
	fake := &fakeMulticall{t: t}
	f := NewFetcher(fake, DefaultAddress, 10, nil)

	got, err := f.FetchReserves(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 0, fake.calls)
}

func TestFetchReservesUndecodableBatch(t *testing.T) {
	f := NewFetcher(callerFunc(func(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
		return []byte{0xde, 0xad}, nil
	}), DefaultAddress, 10, nil)

	_, err := f.FetchReserves(context.Background(), []common.Address{addr(1)})
	require.Error(t, err)
}

type callerFunc func(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error)

func (f callerFunc) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	return f(ctx, msg, block)
}
