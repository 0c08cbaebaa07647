// Package watch provides a minimal observable value: multiple subscribers,
// replay of the latest value on subscribe, and latest-wins delivery so a
// slow subscriber never blocks a writer.
package watch

import (
	"context"
	"sync"
)

type Value[T any] struct {
	mu   sync.Mutex
	val  T
	subs map[int]chan T
	next int
}

func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{val: initial, subs: make(map[int]chan T)}
}

// Get returns the current value. Never blocks.
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.val
}

// Set replaces the value and notifies all subscribers. Delivery is
// conflated: a subscriber that has not drained its channel sees only the
// most recent value.
func (v *Value[T]) Set(val T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.val = val
	for _, ch := range v.subs {
		send(ch, val)
	}
}

// Update applies fn to the current value under the lock and publishes the
// result.
func (v *Value[T]) Update(fn func(T) T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.val = fn(v.val)
	for _, ch := range v.subs {
		send(ch, v.val)
	}
}

// Subscribe registers a new subscriber. The channel immediately carries the
// current value and is closed when ctx is done.
func (v *Value[T]) Subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, 1)

	v.mu.Lock()
	id := v.next
	v.next++
	v.subs[id] = ch
	ch <- v.val
	v.mu.Unlock()

	go func() {
		<-ctx.Done()
		v.mu.Lock()
		delete(v.subs, id)
		v.mu.Unlock()
		close(ch)
	}()

	return ch
}

func send[T any](ch chan T, val T) {
	for {
		select {
		case ch <- val:
			return
		default:
		}
		select {
		case <-ch: // evict the stale value
		default:
		}
	}
}
