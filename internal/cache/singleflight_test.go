package cache

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSingleFlightDedupesConcurrentCalls(t *testing.T) {
	g := NewSingleFlight()
	var calls int64
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := g.Do("refresh", func() (interface{}, error) {
				atomic.AddInt64(&calls, 1)
				return 42, nil
			})
			assert.NoError(t, err)
			assert.Equal(t, 42, v)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt64(&calls), int64(20))
}

func TestSingleFlightSequentialCallsBothExecute(t *testing.T) {
	g := NewSingleFlight()
	var calls int64

	g.Do("k", func() (interface{}, error) {
		atomic.AddInt64(&calls, 1)
		return nil, nil
	})
	g.Do("k", func() (interface{}, error) {
		atomic.AddInt64(&calls, 1)
		return nil, nil
	})

	assert.Equal(t, int64(2), calls)
}
