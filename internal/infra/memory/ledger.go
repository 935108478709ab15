package memory

import (
	"fmt"
	"sync"

	repo "rentalengine/internal/repository"
)

// Ledger は商品ごとの在庫数。引当は商品単位のロックで直列化する
type Ledger struct {
	mu     sync.RWMutex
	counts map[string]*counter
}

type counter struct {
	mu sync.Mutex
	n  int64
}

func NewLedger() *Ledger {
	return &Ledger{counts: map[string]*counter{}}
}

// Set は在庫数を上書きする（投入用）
func (l *Ledger) Set(productID string, n int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if c, ok := l.counts[productID]; ok {
		c.mu.Lock()
		c.n = n
		c.mu.Unlock()
		return
	}
	l.counts[productID] = &counter{n: n}
}

func (l *Ledger) Get(productID string) (int64, error) {
	c, ok := l.counter(productID)
	if !ok {
		return 0, repo.ErrNotFound
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n, nil
}

// Reserve は在庫がqty以上あるときだけ減らす
func (l *Ledger) Reserve(productID string, qty int64) (bool, error) {
	if qty <= 0 {
		return false, fmt.Errorf("invalid quantity %d", qty)
	}
	c, ok := l.counter(productID)
	if !ok {
		return false, repo.ErrNotFound
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.n < qty {
		return false, nil
	}
	c.n -= qty
	return true, nil
}

func (l *Ledger) Release(productID string, qty int64) error {
	if qty <= 0 {
		return fmt.Errorf("invalid quantity %d", qty)
	}
	c, ok := l.counter(productID)
	if !ok {
		return repo.ErrNotFound
	}

	c.mu.Lock()
	c.n += qty
	c.mu.Unlock()
	return nil
}

func (l *Ledger) counter(productID string) (*counter, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c, ok := l.counts[productID]
	return c, ok
}
