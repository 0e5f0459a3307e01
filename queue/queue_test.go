package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := New[int](0)
	for i := 1; i <= 3; i++ {
		require.True(t, q.Push(i))
	}
	assert.Equal(t, 3, q.Len())

	for want := 1; want <= 3; want++ {
		got, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, 0, q.Len())
}

func TestQueueCloseEmptyDoesNotBlock(t *testing.T) {
	q := New[string](0)
	q.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, ok := q.Pop()
		assert.False(t, ok)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Pop blocked on a closed, empty queue")
	}
}

func TestQueuePushAfterCloseRejected(t *testing.T) {
	q := New[int](0)
	q.Close()
	q.Close()

	assert.False(t, q.Push(7))
	assert.Equal(t, 0, q.Len())
	assert.True(t, q.Closed())
}

func TestQueueCloseDrainsRemainingItems(t *testing.T) {
	q := New[int](0)
	require.True(t, q.Push(1))
	require.True(t, q.Push(2))
	q.Close()

	v, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, 1, v)
	v, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, 2, v)
	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestQueueCloseWakesWaiters(t *testing.T) {
	q := New[int](0)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := q.Pop()
			assert.False(t, ok)
		}()
	}

	// Give the consumers a chance to park in Wait.
	time.Sleep(20 * time.Millisecond)
	q.Close()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiters not released by Close")
	}
}

func TestQueuePushWakesConsumer(t *testing.T) {
	q := New[int](0)
	got := make(chan int, 1)
	go func() {
		v, ok := q.Pop()
		if ok {
			got <- v
		}
	}()

	time.Sleep(10 * time.Millisecond)
	require.True(t, q.Push(42))

	select {
	case v := <-got:
		assert.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("consumer not woken by Push")
	}
}

func TestQueueBoundedEvictsOldest(t *testing.T) {
	var evicted []int
	q := New[int](2, WithEvict(func(v int) { evicted = append(evicted, v) }))

	for i := 1; i <= 4; i++ {
		require.True(t, q.Push(i))
	}

	assert.Equal(t, []int{1, 2}, evicted)
	assert.Equal(t, []int{3, 4}, q.Drain())
}

func TestQueueTryPop(t *testing.T) {
	q := New[int](0)
	_, ok := q.TryPop()
	assert.False(t, ok)

	q.Push(5)
	v, ok := q.TryPop()
	require.True(t, ok)
	assert.Equal(t, 5, v)
}

func TestQueueConcurrentProducers(t *testing.T) {
	q := New[int](0)
	const producers, perProducer = 4, 250

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(i)
			}
		}()
	}

	received := make(chan int, producers*perProducer)
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		for {
			v, ok := q.Pop()
			if !ok {
				return
			}
			received <- v
		}
	}()

	wg.Wait()
	q.Close()
	<-consumerDone
	assert.Len(t, received, producers*perProducer)
}
