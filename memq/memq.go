// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package memq provides an intrusive single-producer single-consumer
// linked queue.
//
// A queue is a chain of caller-owned links ending in a sentinel. Enqueue
// stores the element in the current sentinel and appends the supplied
// link as the new sentinel, so the queue never allocates. Dequeue hands
// the consumed link back to the caller, who owns it from then on
// (typically returning it to a pool or reusing it for the next enqueue).
//
// The producer owns the tail, the consumer owns the head. The tail is
// published with release ordering and observed with acquire ordering;
// there are no locks.
//
// Typical round trip:
//
//	var q memq.Queue[Node]
//	q.Init(links.Acquire())
//
//	// producer
//	q.Enqueue(links.Acquire(), node)
//
//	// consumer
//	if link, n := q.Peek(); link != nil {
//	    if accept(n) {
//	        link, _ = q.Dequeue()
//	        links.Release(link)
//	    }
//	}
package memq

import "sync/atomic"

// Link is a queue node. A link is referenced by at most one queue at a
// time; while free it belongs to whoever released it from a queue.
type Link[T any] struct {
	next *Link[T]
	mem  *T
}

// Mem returns the element carried by the link, if any.
func (l *Link[T]) Mem() *T {
	return l.mem
}

// Queue is an intrusive SPSC FIFO.
//
// The zero value is not usable; call Init with a sentinel link first.
type Queue[T any] struct {
	_    pad
	head *Link[T] // Consumer side
	_    pad
	tail atomic.Pointer[Link[T]] // Producer side
	_    pad
}

// New returns a queue initialised with link as its sentinel.
func New[T any](link *Link[T]) *Queue[T] {
	q := &Queue[T]{}
	q.Init(link)
	return q
}

// Init resets the queue to empty, using link as the sentinel.
// Panics if link is nil.
func (q *Queue[T]) Init(link *Link[T]) {
	if link == nil {
		panic("memq: nil sentinel link")
	}
	link.next = nil
	link.mem = nil
	q.head = link
	q.tail.Store(link)
}

// Deinit tears down an empty queue and returns its sentinel link.
// Returns nil, leaving the queue untouched, if the queue is not empty.
func (q *Queue[T]) Deinit() *Link[T] {
	head := q.head
	if head != q.tail.Load() {
		return nil
	}
	q.head = nil
	q.tail.Store(nil)
	return head
}

// Enqueue appends mem to the queue (producer only).
// link becomes the new sentinel and must not be referenced elsewhere.
// Returns link.
func (q *Queue[T]) Enqueue(link *Link[T], mem *T) *Link[T] {
	link.next = nil
	link.mem = nil

	tail := q.tail.Load()
	tail.mem = mem
	tail.next = link
	q.tail.Store(link)
	return link
}

// Peek returns the head link and its element without removing it
// (consumer only). Returns (nil, nil) if the queue is empty.
func (q *Queue[T]) Peek() (*Link[T], *T) {
	head := q.head
	if head == q.tail.Load() {
		return nil, nil
	}
	return head, head.mem
}

// Dequeue removes the head element and returns the link that carried it
// (consumer only). The returned link is owned by the caller.
//
// Panics if the queue is empty; callers Peek first.
func (q *Queue[T]) Dequeue() (*Link[T], *T) {
	head := q.head
	if head == q.tail.Load() {
		panic("memq: dequeue from empty queue")
	}
	mem := head.mem
	q.head = head.next
	head.next = nil
	head.mem = nil
	return head, mem
}

// Empty reports whether the queue holds no elements.
func (q *Queue[T]) Empty() bool {
	return q.head == q.tail.Load()
}

// pad is cache line padding to prevent false sharing.
type pad [64]byte
