package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pscheid92/screentime/internal/domain"
)

func input(id string) domain.SessionInput {
	return domain.SessionInput{SessionID: id}
}

func ids(batch []domain.SessionInput) []string {
	out := make([]string, len(batch))
	for i, in := range batch {
		out[i] = in.SessionID
	}
	return out
}

func TestBuffer_DrainIsFIFO(t *testing.T) {
	b := NewBuffer()
	for _, id := range []string{"a", "b", "c"} {
		b.Push(input(id))
	}

	assert.Equal(t, []string{"a", "b"}, ids(b.Drain(2)))
	assert.Equal(t, 1, b.Len())
	assert.Equal(t, []string{"c"}, ids(b.Drain(20)))
	assert.Nil(t, b.Drain(20))
}

func TestBuffer_RequeueGoesToFront(t *testing.T) {
	b := NewBuffer()
	b.Push(input("a"))
	b.Push(input("b"))

	batch := b.Drain(2)
	b.Push(input("c"))
	b.Requeue(batch)

	assert.Equal(t, []string{"a", "b", "c"}, ids(b.DrainAll()))
	assert.Zero(t, b.Len())
}

func TestBuffer_DrainNonPositiveLimit(t *testing.T) {
	b := NewBuffer()
	b.Push(input("a"))

	assert.Nil(t, b.Drain(0))
	assert.Equal(t, 1, b.Len())
}
