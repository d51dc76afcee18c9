package tracker

import (
	"sync"

	"github.com/pscheid92/screentime/internal/domain"
)

// Buffer is an unbounded FIFO of finished sessions, safe for concurrent use.
type Buffer struct {
	mu    sync.Mutex
	items []domain.SessionInput
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

func (b *Buffer) Push(in domain.SessionInput) {
	b.mu.Lock()
	b.items = append(b.items, in)
	b.mu.Unlock()
}

// Drain removes and returns up to limit records from the front.
func (b *Buffer) Drain(limit int) []domain.SessionInput {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := min(limit, len(b.items))
	if n <= 0 {
		return nil
	}
	batch := make([]domain.SessionInput, n)
	copy(batch, b.items[:n])
	b.items = b.items[n:]
	return batch
}

// DrainAll empties the buffer.
func (b *Buffer) DrainAll() []domain.SessionInput {
	b.mu.Lock()
	defer b.mu.Unlock()

	batch := b.items
	b.items = nil
	return batch
}

// Requeue puts a batch back at the front, ahead of records pushed since it was drained.
func (b *Buffer) Requeue(batch []domain.SessionInput) {
	if len(batch) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	items := make([]domain.SessionInput, 0, len(batch)+len(b.items))
	items = append(items, batch...)
	b.items = append(items, b.items...)
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}
