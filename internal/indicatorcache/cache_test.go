package indicatorcache_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/haldorsen/fstratbt/internal/indicatorcache"
)

func TestGetComputesAtMostOncePerFingerprint(t *testing.T) {
	require := require.New(t)
	c := indicatorcache.New(4, 2)

	var calls atomic.Int64
	compute := func(periodIdx int) (long, short []bool, err error) {
		calls.Add(1)
		return []bool{true, false}, []bool{false, true}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sig, ok, err := c.Get("SMA_With,{}", 0, compute)
			require.NoError(err)
			require.True(ok)
			require.Equal([]bool{true, false}, sig.Long)
		}()
	}
	wg.Wait()

	// compute is invoked once per period (2 periods), regardless of how many
	// goroutines raced to request the same fingerprint.
	require.Equal(int64(2), calls.Load())
}

func TestGetRefusesBeyondCapacity(t *testing.T) {
	require := require.New(t)
	c := indicatorcache.New(1, 1)
	compute := func(periodIdx int) (long, short []bool, err error) {
		return []bool{true}, []bool{false}, nil
	}

	_, ok, err := c.Get("fp-a", 0, compute)
	require.NoError(err)
	require.True(ok)

	_, ok, err = c.Get("fp-b", 0, compute)
	require.NoError(err)
	require.False(ok, "second fingerprint should be refused a slot once capacity is exhausted")

	stats := c.Stats()
	require.Equal(1, stats.InUse)
	require.Equal(int64(1), stats.Evicted)
}

func TestGetReusesSameFingerprintSlot(t *testing.T) {
	require := require.New(t)
	c := indicatorcache.New(2, 1)
	compute := func(periodIdx int) (long, short []bool, err error) {
		return []bool{true}, []bool{false}, nil
	}

	_, ok, _ := c.Get("fp-a", 0, compute)
	require.True(ok)
	_, ok, _ = c.Get("fp-a", 0, compute)
	require.True(ok)

	require.Equal(1, c.Len())
}
