// Package quotes keeps the most recent trade price per symbol, fed by
// streaming sources, and serves it as a repository.QuoteSource.
package quotes

import (
	"context"
	"sync"
	"time"

	domrepo "RSIBoard/internal/domain/repository"

	"github.com/shopspring/decimal"
)

// Tick is one observed trade.
type Tick struct {
	Symbol string
	Price  decimal.Decimal
	Time   time.Time
}

// Sink accepts ticks from a stream.
type Sink interface {
	Update(t Tick)
}

// Book is a concurrency-safe last-trade table.
type Book struct {
	mu     sync.RWMutex
	last   map[string]Tick
	maxAge time.Duration
	now    func() time.Time
}

// NewBook creates a book whose prices expire after maxAge (0 = never).
func NewBook(maxAge time.Duration) *Book {
	return &Book{last: make(map[string]Tick), maxAge: maxAge, now: time.Now}
}

// Update stores t unless a newer tick for the symbol is already known.
func (b *Book) Update(t Tick) {
	if t.Symbol == "" || !t.Price.IsPositive() {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if cur, ok := b.last[t.Symbol]; ok && cur.Time.After(t.Time) {
		return
	}
	b.last[t.Symbol] = t
}

// Get returns the last tick regardless of age.
func (b *Book) Get(symbol string) (Tick, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.last[symbol]
	return t, ok
}

// LastPrice implements repository.QuoteSource.
func (b *Book) LastPrice(_ context.Context, id string) (decimal.Decimal, error) {
	t, ok := b.Get(id)
	if !ok {
		return decimal.Zero, domrepo.ErrNoQuote
	}
	if b.maxAge > 0 && b.now().Sub(t.Time) > b.maxAge {
		return decimal.Zero, domrepo.ErrNoQuote
	}
	return t.Price, nil
}

// Len is the number of symbols seen.
func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.last)
}

var _ domrepo.QuoteSource = (*Book)(nil)
