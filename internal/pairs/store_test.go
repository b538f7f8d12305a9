package pairs

import (
	"math/big"
	"math/rand"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloomCache/internal/model"
)

var (
	pairA = common.HexToAddress("0x0d4a11d5EEaaC28EC3F61d100daF4d40471f1852")
	pairB = common.HexToAddress("0xB4e16d0168e52d35CaCD2c6185b44281EC28c9Dc")
	other = common.HexToAddress("0x00000000000000000000000000000000000000ff")
)

func res(r0, r1 int64) model.Reserves {
	return model.Reserves{Reserve0: big.NewInt(r0), Reserve1: big.NewInt(r1)}
}

func TestNewStoreStartsEmpty(t *testing.T) {
	s := NewStore([]common.Address{pairA, pairB, pairA})

	require.Equal(t, 2, s.Len())
	assert.Equal(t, []common.Address{pairA, pairB}, s.Addresses())

	p, ok := s.Get(pairA)
	require.True(t, ok)
	assert.Equal(t, uint64(0), p.UpdatedAtBlock)
	assert.Equal(t, 0, p.Reserve0.Sign())
	assert.Equal(t, 0, p.Reserve1.Sign())

	_, ok = s.Get(other)
	assert.False(t, ok)
}

func TestSeed(t *testing.T) {
	s := NewStore([]common.Address{pairA})

	require.NoError(t, s.Seed(pairA, res(10, 20), 500))
	assert.ErrorIs(t, s.Seed(other, res(1, 1), 500), ErrUnknownPair)

	p, _ := s.Get(pairA)
	assert.Equal(t, uint64(500), p.UpdatedAtBlock)
	assert.Equal(t, int64(10), p.Reserve0.Int64())
	assert.Equal(t, int64(20), p.Reserve1.Int64())
}

func TestApply(t *testing.T) {
	testCases := []struct {
		name       string
		height     uint64
		reserves   model.Reserves
		addr       common.Address
		wantResult ApplyResult
		wantHeight uint64
		wantR0     int64
	}{
		{name: "newer value applied", addr: pairA, height: 101, reserves: res(11, 21), wantResult: Applied, wantHeight: 101, wantR0: 11},
		{name: "same height different value applied", addr: pairA, height: 100, reserves: res(12, 22), wantResult: Applied, wantHeight: 100, wantR0: 12},
		{name: "identical value skipped", addr: pairA, height: 150, reserves: res(10, 20), wantResult: Unchanged, wantHeight: 100, wantR0: 10},
		{name: "older height discarded", addr: pairA, height: 99, reserves: res(13, 23), wantResult: Stale, wantHeight: 100, wantR0: 10},
		{name: "untracked address", addr: other, height: 200, reserves: res(1, 1), wantResult: Unknown},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewStore([]common.Address{pairA})
			require.NoError(t, s.Seed(pairA, res(10, 20), 100))

			got, prev := s.Apply(tc.addr, tc.height, tc.reserves)
			assert.Equal(t, tc.wantResult, got)
			if tc.wantResult == Unknown {
				return
			}
			assert.Equal(t, uint64(100), prev.UpdatedAtBlock)

			p, _ := s.Get(tc.addr)
			assert.Equal(t, tc.wantHeight, p.UpdatedAtBlock)
			assert.Equal(t, tc.wantR0, p.Reserve0.Int64())
		})
	}
}

func TestApplyDoesNotAliasInput(t *testing.T) {
	s := NewStore([]common.Address{pairA})
	in := res(5, 6)
	_, _ = s.Apply(pairA, 1, in)
	in.Reserve0.SetInt64(999)

	p, _ := s.Get(pairA)
	assert.Equal(t, int64(5), p.Reserve0.Int64())

	p.Reserve1.SetInt64(777)
	again, _ := s.Get(pairA)
	assert.Equal(t, int64(6), again.Reserve1.Int64())
}

// UpdatedAtBlock must never go down, whatever order results arrive in.
func TestApplyMonotonicUnderRandomOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	s := NewStore([]common.Address{pairA})

	var last uint64
	for i := 0; i < 5000; i++ {
		h := uint64(rng.Intn(1000))
		s.Apply(pairA, h, res(int64(rng.Intn(50)), int64(rng.Intn(50))))
		p, _ := s.Get(pairA)
		require.GreaterOrEqual(t, p.UpdatedAtBlock, last)
		last = p.UpdatedAtBlock
	}
}

func TestApplyConcurrentHeights(t *testing.T) {
	s := NewStore([]common.Address{pairA, pairB})

	var wg sync.WaitGroup
	for h := uint64(1); h <= 200; h++ {
		wg.Add(2)
		go func(h uint64) {
			defer wg.Done()
			s.Apply(pairA, h, res(int64(h), int64(h)))
		}(h)
		go func(h uint64) {
			defer wg.Done()
			s.Apply(pairB, h, res(int64(h), 1))
		}(h)
	}
	wg.Wait()

	for _, addr := range []common.Address{pairA, pairB} {
		p, _ := s.Get(addr)
		assert.Equal(t, uint64(200), p.UpdatedAtBlock, "pair %s", addr.Hex())
		assert.Equal(t, int64(200), p.Reserve0.Int64(), "pair %s", addr.Hex())
	}
}

func TestSnapshotOrder(t *testing.T) {
	s := NewStore([]common.Address{pairB, pairA})
	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, pairB, snap[0].Address)
	assert.Equal(t, pairA, snap[1].Address)
}
