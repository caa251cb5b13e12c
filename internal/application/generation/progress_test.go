package generation

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracker_AdvanceClampsAtTotal(t *testing.T) {
	tr := NewTracker(100)
	assert.Equal(t, 0, tr.Current())
	assert.Equal(t, 30, tr.Advance(30))
	assert.Equal(t, 100, tr.Advance(90))
	assert.Equal(t, 100, tr.Current())
}

func TestTracker_AdvanceIgnoresNonPositive(t *testing.T) {
	tr := NewTracker(100)
	tr.Advance(10)
	assert.Equal(t, 10, tr.Advance(0))
	assert.Equal(t, 10, tr.Advance(-5))
}

func TestTracker_AdvanceToOnlyRaises(t *testing.T) {
	tr := NewTracker(100)
	assert.Equal(t, 40, tr.AdvanceTo(40))
	// 回退目标被忽略
	assert.Equal(t, 40, tr.AdvanceTo(20))
	assert.Equal(t, 40, tr.Current())
	// 超出总量被截断
	assert.Equal(t, 100, tr.AdvanceTo(250))
}

func TestTracker_ConcurrentMonotonic(t *testing.T) {
	tr := NewTracker(100)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Advance(1)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, tr.Current())
}

func TestTracker_DefaultTotal(t *testing.T) {
	tr := NewTracker(0)
	assert.Equal(t, 100, tr.Total())
}
