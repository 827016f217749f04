package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hanpama/rsgate/internal/language"
)

func TestSerialRunsInOrder(t *testing.T) {
	var got []int
	Serial().Run(context.Background(), 4, func(_ context.Context, i int) {
		got = append(got, i)
	})
	require.Equal(t, []int{0, 1, 2, 3}, got)
}

func TestConcurrentRespectsLimit(t *testing.T) {
	var (
		running atomic.Int32
		peak    atomic.Int32
		mu      sync.Mutex
		seen    = map[int]bool{}
	)
	Concurrent(2).Run(context.Background(), 6, func(_ context.Context, i int) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		mu.Lock()
		seen[i] = true
		mu.Unlock()
	})
	require.Len(t, seen, 6)
	require.LessOrEqual(t, peak.Load(), int32(2))
}

func TestStrategyFor(t *testing.T) {
	require.IsType(t, concurrentStrategy{}, strategyFor(language.Query, 0))
	require.IsType(t, serialStrategy{}, strategyFor(language.Mutation, 0))
	require.IsType(t, serialStrategy{}, strategyFor(language.Subscription, 0))
}
