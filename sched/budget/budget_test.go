package budget

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBudget_ChargeSucceedsWhileSolvent(t *testing.T) {
	b := New(100)
	assert.True(t, b.Charge(OpNodeVisit))
	assert.Equal(t, int64(99), b.Remaining())
}

func TestBudget_ChargeFailsOnExhaustion(t *testing.T) {
	b := New(5)
	assert.False(t, b.Charge(OpIRGeneration)) // costs 500
	assert.Equal(t, int64(5), b.Remaining(), "a failed charge must leave the balance unchanged")
}

func TestBudget_ZeroIsExhausted(t *testing.T) {
	b := New(Zero)
	assert.True(t, b.Exhausted())
	assert.False(t, b.Charge(OpSpawn))
}

func TestBudget_ConcurrentChargesNeverOverspend(t *testing.T) {
	b := New(1000)
	var wg sync.WaitGroup
	successes := make(chan bool, 2000)
	for i := 0; i < 2000; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			successes <- b.Charge(OpNodeVisit)
		}()
	}
	wg.Wait()
	close(successes)

	ok := 0
	for s := range successes {
		if s {
			ok++
		}
	}
	assert.Equal(t, 1000, ok)
	assert.Equal(t, int64(0), b.Remaining())
}
