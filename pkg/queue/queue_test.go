package queue

import (
	"sync"
	"testing"

	"github.com/Borislavv/fd-metrics/pkg/peer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_StatTracksDepthHighestAndTotal(t *testing.T) {
	q := New(8)

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Post(uint64(i)))
	}
	for i := 0; i < 3; i++ {
		id, ok := q.Take()
		require.True(t, ok)
		assert.Equal(t, uint64(i), id)
	}

	assert.Equal(t, peer.QueueStat{Current: 2, Limit: 8, Highest: 5, Total: 3}, q.Stat())
}

func TestQueue_LimitRejects(t *testing.T) {
	q := New(2)

	require.NoError(t, q.Post(1))
	require.NoError(t, q.Post(2))
	assert.ErrorIs(t, q.Post(3), ErrFull)
	assert.Equal(t, int64(2), q.Stat().Current)
}

func TestQueue_UnboundedGrowsInOrder(t *testing.T) {
	q := New(0)

	const n = unboundedInitialSize*4 + 3
	for i := 0; i < n; i++ {
		require.NoError(t, q.Post(uint64(i)))
	}

	st := q.Stat()
	assert.Equal(t, peer.NoLimit, st.Limit)
	assert.Equal(t, int64(n), st.Current)
	assert.Equal(t, int64(n), st.Highest)

	ids := q.Drain(n)
	require.Len(t, ids, n)
	for i, id := range ids {
		assert.Equal(t, uint64(i), id)
	}
	assert.Equal(t, int64(n), q.Stat().Total)
}

func TestQueue_InvariantsUnderConcurrency(t *testing.T) {
	q := New(0)

	wg := sync.WaitGroup{}
	for w := 0; w < 4; w++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				_ = q.Post(uint64(i))
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				q.Take()
				st := q.Stat()
				assert.LessOrEqual(t, st.Current, st.Highest)
				assert.GreaterOrEqual(t, st.Current, int64(0))
			}
		}()
	}
	wg.Wait()

	st := q.Stat()
	assert.Equal(t, int64(4000), st.Current+st.Total)
}
