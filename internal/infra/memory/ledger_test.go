package memory

import (
	"sync"
	"sync/atomic"
	"testing"

	repo "rentalengine/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_ConcurrentReserveNeverOversells(t *testing.T) {
	l := NewLedger()
	l.Set("p1", 10)

	var wg sync.WaitGroup
	var success int64
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := l.Reserve("p1", 3)
			if err == nil && ok {
				atomic.AddInt64(&success, 1)
			}
		}()
	}
	wg.Wait()

	//10個から3個ずつなら3回だけ成功
	assert.Equal(t, int64(3), success)
	n, err := l.Get("p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestLedger_ReserveReleaseRoundTrip(t *testing.T) {
	l := NewLedger()
	l.Set("p1", 5)

	ok, err := l.Reserve("p1", 2)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, l.Release("p1", 2))

	n, err := l.Get("p1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestLedger_ReserveInsufficientLeavesStock(t *testing.T) {
	l := NewLedger()
	l.Set("p1", 1)

	ok, err := l.Reserve("p1", 2)
	require.NoError(t, err)
	assert.False(t, ok)

	n, _ := l.Get("p1")
	assert.Equal(t, int64(1), n)
}

func TestLedger_UnknownProduct(t *testing.T) {
	l := NewLedger()

	_, err := l.Reserve("nope", 1)
	assert.ErrorIs(t, err, repo.ErrNotFound)
	assert.ErrorIs(t, l.Release("nope", 1), repo.ErrNotFound)
}

func TestLedger_RejectsNonPositiveQuantity(t *testing.T) {
	l := NewLedger()
	l.Set("p1", 1)

	_, err := l.Reserve("p1", 0)
	assert.Error(t, err)
	assert.Error(t, l.Release("p1", -1))
}
