// Package bus implements the per-room broadcast fabric: a bounded, ordered,
// multi-producer multi-consumer channel. Every active receiver observes every
// published message exactly once, in publish order. Receivers can be muted
// (deactivated) without losing their subscription slot, which the timeout
// supervisor relies on to republish messages without feeding itself.
package bus

import (
	"context"
	"errors"
	"sync"
)

// DefaultCapacity bounds the per-receiver queue. Sized so a slow client
// socket tolerates the burst emitted after a trick resolves.
const DefaultCapacity = 1024

// ErrClosed is returned by Publish and Recv once the bus has been closed.
var ErrClosed = errors.New("bus: closed")

// Bus is a bounded ordered multicast channel.
type Bus[T any] struct {
	// pubMu serialises publishers for the full duration of a delivery,
	// which is what makes the per-receiver order a total publish order.
	pubMu sync.Mutex

	mu        sync.Mutex
	capacity  int
	closed    bool
	closedCh  chan struct{}
	receivers map[*Receiver[T]]struct{}
}

// Receiver is a single subscription slot. Not safe for concurrent Recv
// from multiple goroutines; one owner per receiver.
type Receiver[T any] struct {
	bus    *Bus[T]
	ch     chan T
	done   chan struct{}
	active bool
}

func New[T any](capacity int) *Bus[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus[T]{
		capacity:  capacity,
		closedCh:  make(chan struct{}),
		receivers: make(map[*Receiver[T]]struct{}),
	}
}

// Subscribe returns a new active receiver positioned after the current
// publish cursor: it will only observe messages published from now on.
func (b *Bus[T]) Subscribe() *Receiver[T] {
	r := &Receiver[T]{
		bus:    b,
		ch:     make(chan T, b.capacity),
		done:   make(chan struct{}),
		active: true,
	}
	b.mu.Lock()
	if !b.closed {
		b.receivers[r] = struct{}{}
	} else {
		close(r.done)
	}
	b.mu.Unlock()
	return r
}

// Publish delivers msg to every active receiver, blocking on backpressure
// when a receiver's queue is full. Returns ErrClosed once the bus is closed
// and ctx.Err() if the context expires mid-delivery.
func (b *Bus[T]) Publish(ctx context.Context, msg T) error {
	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	targets := make([]*Receiver[T], 0, len(b.receivers))
	for r := range b.receivers {
		if r.active {
			targets = append(targets, r)
		}
	}
	b.mu.Unlock()

	for _, r := range targets {
		select {
		case r.ch <- msg:
		case <-r.done:
			// receiver dropped mid-delivery, skip it
		case <-b.closedCh:
			return ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Close ends delivery. Receivers drain whatever is already queued, then
// Recv returns ErrClosed. Idempotent.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.closedCh)
	b.mu.Unlock()
}

// Closed reports whether Close has been called.
func (b *Bus[T]) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *Bus[T]) receiverCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.receivers)
}

// Recv blocks until a message is available, the receiver or bus is closed,
// or ctx expires. Messages queued before a close are still delivered.
func (r *Receiver[T]) Recv(ctx context.Context) (T, error) {
	var zero T
	select {
	case msg := <-r.ch:
		return msg, nil
	default:
	}
	select {
	case msg := <-r.ch:
		return msg, nil
	case <-r.done:
		return zero, ErrClosed
	case <-r.bus.closedCh:
		// lost race with a final publish, drain once more
		select {
		case msg := <-r.ch:
			return msg, nil
		default:
			return zero, ErrClosed
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Deactivate mutes the receiver: it keeps its slot but publishes are no
// longer delivered to it. Messages already queued stay queued.
func (r *Receiver[T]) Deactivate() {
	r.bus.mu.Lock()
	r.active = false
	r.bus.mu.Unlock()
}

// Activate resumes delivery from the current publish cursor onwards.
func (r *Receiver[T]) Activate() {
	r.bus.mu.Lock()
	r.active = true
	r.bus.mu.Unlock()
}

// Close drops the subscription slot. Publishers blocked on this receiver
// are released. Idempotent.
func (r *Receiver[T]) Close() {
	r.bus.mu.Lock()
	if _, ok := r.bus.receivers[r]; ok {
		delete(r.bus.receivers, r)
		close(r.done)
	}
	r.bus.mu.Unlock()
}
