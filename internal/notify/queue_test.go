package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue(4)

	first := testNote()
	second := testNote()
	third := testNote()
	require.NoError(t, q.Enqueue(first))
	require.NoError(t, q.Enqueue(second))
	require.NoError(t, q.Enqueue(third))
	assert.Equal(t, 3, q.Len())

	for _, want := range []*Notification{first, second, third} {
		got, ok := q.DequeueOne(0)
		require.True(t, ok)
		assert.Equal(t, want.ID, got.ID)
	}
	assert.Equal(t, 0, q.Len())
}

func TestQueueFull(t *testing.T) {
	q := NewQueue(2)

	require.NoError(t, q.Enqueue(testNote()))
	require.NoError(t, q.Enqueue(testNote()))

	err := q.Enqueue(testNote())
	require.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 2, q.Len())
}

func TestQueueDequeueEmptyPolls(t *testing.T) {
	q := NewQueue(1)

	note, ok := q.DequeueOne(0)
	assert.False(t, ok)
	assert.Nil(t, note)

	note, ok = q.DequeueOne(20 * time.Millisecond)
	assert.False(t, ok)
	assert.Nil(t, note)
}

func TestQueueDequeueWakesOnEnqueue(t *testing.T) {
	q := NewQueue(1)
	want := testNote()

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = q.Enqueue(want)
	}()

	got, ok := q.DequeueOne(2 * time.Second)
	require.True(t, ok)
	assert.Equal(t, want.ID, got.ID)
}

func TestQueueDefaultCapacity(t *testing.T) {
	q := NewQueue(0)
	assert.Equal(t, DefaultQueueCapacity, q.Cap())
}
