package engine

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClockMonotonic(t *testing.T) {
	c := NewClock()

	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())
}

func TestClockConcurrentUniqueness(t *testing.T) {
	c := NewClock()

	const workers = 8
	const perWorker = 200

	var mu sync.Mutex
	seen := make([]int64, 0, workers*perWorker)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				seq := c.Next()
				mu.Lock()
				seen = append(seen, seq)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	sort.Slice(seen, func(i, j int) bool { return seen[i] < seen[j] })
	for i, seq := range seen {
		assert.Equal(t, int64(i+1), seq, "seq values must be dense and unique")
	}
}
