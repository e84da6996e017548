// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package mfifo provides a fixed-capacity single-producer single-consumer
// ring with a split reserve/publish step.
//
// A producer reserves a slot, fills it in place, then publishes it. If
// filling fails (a companion pool is empty, say) the producer calls Abort
// and the committed state is exactly as it was before the reservation:
//
//	idx, err := f.Reserve()
//	if err != nil {
//	    return // full
//	}
//	node := pool.Acquire()
//	if node == nil {
//	    f.Abort()
//	    return
//	}
//	*f.Slot(idx) = node
//	f.Publish(idx)
//
// Consumers can look ahead without consuming through a cursor:
//
//	c := f.First()
//	for e, ok := f.Iter(&c); ok; e, ok = f.Iter(&c) {
//	    inspect(e)
//	}
//
// A ring of capacity n is backed by n+1 cells; one cell always stays free
// to tell full from empty.
package mfifo

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
)

// ErrWouldBlock is returned by Reserve and Enqueue when the ring is full.
// Alias of [iox.ErrWouldBlock].
var ErrWouldBlock = iox.ErrWouldBlock

// Fifo is a bounded SPSC ring of T.
//
// Based on Lamport's ring buffer with cached index optimization: the
// producer caches the consumer's first index and vice versa.
type Fifo[T any] struct {
	_           pad
	first       atomix.Uint32 // Consumer commits here
	_           pad
	cachedLast  uint32 // Consumer's cached view of last
	_           pad
	last        atomix.Uint32 // Producer publishes here
	_           pad
	reserve     uint32 // Producer's reservation cursor
	cachedFirst uint32 // Producer's cached view of first
	_           pad
	slots       []T
	size        uint32
}

// New creates a ring holding up to capacity elements.
// Panics if capacity < 1.
func New[T any](capacity int) *Fifo[T] {
	f := &Fifo[T]{}
	f.Init(capacity)
	return f
}

// Init (re)initialises f in place. Not safe while in use.
// Panics if capacity < 1.
func (f *Fifo[T]) Init(capacity int) {
	if capacity < 1 || capacity >= 1<<31 {
		panic("mfifo: capacity out of range")
	}
	f.size = uint32(capacity) + 1
	f.slots = make([]T, f.size)
	f.first.StoreRelaxed(0)
	f.last.StoreRelaxed(0)
	f.cachedLast = 0
	f.cachedFirst = 0
	f.reserve = 0
}

func (f *Fifo[T]) next(i uint32) uint32 {
	i++
	if i == f.size {
		return 0
	}
	return i
}

// Reserve claims the next free slot (producer only).
// Returns ErrWouldBlock when published plus reserved slots fill the ring.
func (f *Fifo[T]) Reserve() (uint32, error) {
	idx := f.reserve
	nxt := f.next(idx)
	if nxt == f.cachedFirst {
		f.cachedFirst = f.first.LoadAcquire()
		if nxt == f.cachedFirst {
			return 0, ErrWouldBlock
		}
	}
	f.reserve = nxt
	return idx, nil
}

// Slot returns the storage for a reserved or committed index.
func (f *Fifo[T]) Slot(idx uint32) *T {
	return &f.slots[idx]
}

// Publish commits the oldest outstanding reservation (producer only).
// Reservations are published in the order they were made.
//
// Panics if idx is not the oldest outstanding reservation.
func (f *Fifo[T]) Publish(idx uint32) {
	last := f.last.LoadRelaxed()
	if idx != last || idx == f.reserve {
		panic("mfifo: publish out of order or unreserved")
	}
	f.last.StoreRelease(f.next(idx))
}

// Abort drops every unpublished reservation (producer only).
// Committed elements are not affected.
func (f *Fifo[T]) Abort() {
	last := f.last.LoadRelaxed()
	for i := last; i != f.reserve; i = f.next(i) {
		var zero T
		f.slots[i] = zero
	}
	f.reserve = last
}

// Enqueue reserves, stores and publishes elem in one step (producer only).
// Returns ErrWouldBlock if the ring is full.
func (f *Fifo[T]) Enqueue(elem T) error {
	idx, err := f.Reserve()
	if err != nil {
		return err
	}
	f.slots[idx] = elem
	f.Publish(idx)
	return nil
}

// Peek returns the oldest committed element without consuming it
// (consumer only).
func (f *Fifo[T]) Peek() (*T, bool) {
	first := f.first.LoadRelaxed()
	if first == f.cachedLast {
		f.cachedLast = f.last.LoadAcquire()
		if first == f.cachedLast {
			return nil, false
		}
	}
	return &f.slots[first], true
}

// Take removes and returns the oldest committed element (consumer only).
func (f *Fifo[T]) Take() (T, bool) {
	p, ok := f.Peek()
	if !ok {
		var zero T
		return zero, false
	}
	elem := *p
	var zero T
	*p = zero
	f.first.StoreRelease(f.next(f.first.LoadRelaxed()))
	return elem, true
}

// First returns the consumer's committed read index, the starting cursor
// for Iter.
func (f *Fifo[T]) First() uint32 {
	return f.first.LoadAcquire()
}

// Last returns the producer's committed write index. Elements published
// later sit at or after this index; it is the value to record when later
// consumers must stop at "everything published so far".
func (f *Fifo[T]) Last() uint32 {
	return f.last.LoadAcquire()
}

// Iter returns the committed element at *cursor and advances the cursor
// (not the ring). Returns false once the cursor reaches the last committed
// element.
func (f *Fifo[T]) Iter(cursor *uint32) (*T, bool) {
	return f.IterTo(cursor, f.last.LoadAcquire())
}

// IterTo is Iter bounded by end instead of the current last index.
func (f *Fifo[T]) IterTo(cursor *uint32, end uint32) (*T, bool) {
	c := *cursor
	if c == end {
		return nil, false
	}
	*cursor = f.next(c)
	return &f.slots[c], true
}

// AdvanceTo consumes every element before cursor (consumer only).
// cursor must come from Iter or IterTo over the committed range.
func (f *Fifo[T]) AdvanceTo(cursor uint32) {
	first := f.first.LoadRelaxed()
	for first != cursor {
		var zero T
		f.slots[first] = zero
		first = f.next(first)
	}
	f.first.StoreRelease(cursor)
}

// Len returns the number of committed, unconsumed elements.
func (f *Fifo[T]) Len() int {
	last := f.last.LoadAcquire()
	first := f.first.LoadAcquire()
	return int((last + f.size - first) % f.size)
}

// Reserved returns the number of reserved but unpublished slots
// (producer only).
func (f *Fifo[T]) Reserved() int {
	last := f.last.LoadRelaxed()
	return int((f.reserve + f.size - last) % f.size)
}

// Cap returns the ring capacity.
func (f *Fifo[T]) Cap() int {
	return int(f.size - 1)
}

// pad is cache line padding to prevent false sharing.
type pad [64]byte
