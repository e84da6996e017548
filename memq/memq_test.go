// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package memq_test

import (
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/ull/memq"
)

// TestQueueFIFO enqueues N elements and dequeues them in the same order.
func TestQueueFIFO(t *testing.T) {
	const n = 64

	q := memq.New(&memq.Link[int]{})
	vals := make([]int, n)
	for i := range n {
		vals[i] = i * 3
		q.Enqueue(&memq.Link[int]{}, &vals[i])
	}

	for i := range n {
		link, v := q.Dequeue()
		if link == nil {
			t.Fatalf("Dequeue(%d): nil link", i)
		}
		if *v != i*3 {
			t.Fatalf("Dequeue(%d): got %d, want %d", i, *v, i*3)
		}
	}

	if !q.Empty() {
		t.Fatalf("Empty: got false after draining")
	}
}

// TestQueuePeekDoesNotMutate checks that repeated Peek calls return the
// same head and leave the queue intact.
func TestQueuePeekDoesNotMutate(t *testing.T) {
	q := memq.New(&memq.Link[string]{})

	if link, mem := q.Peek(); link != nil || mem != nil {
		t.Fatalf("Peek on empty: got (%p, %v), want (nil, nil)", link, mem)
	}

	a, b := "a", "b"
	q.Enqueue(&memq.Link[string]{}, &a)
	q.Enqueue(&memq.Link[string]{}, &b)

	l1, m1 := q.Peek()
	l2, m2 := q.Peek()
	if l1 != l2 || m1 != m2 {
		t.Fatalf("Peek: not stable across calls")
	}
	if *m1 != "a" {
		t.Fatalf("Peek: got %q, want %q", *m1, "a")
	}

	link, mem := q.Dequeue()
	if link != l1 || *mem != "a" {
		t.Fatalf("Dequeue: got (%p, %q), want (%p, %q)", link, *mem, l1, "a")
	}
	if _, mem := q.Peek(); *mem != "b" {
		t.Fatalf("Peek after Dequeue: got %q, want %q", *mem, "b")
	}
}

// TestQueueLinkRecycling reuses the link returned by Dequeue for the next
// Enqueue, the way pool-less callers (mayfly) rotate links.
func TestQueueLinkRecycling(t *testing.T) {
	q := memq.New(&memq.Link[int]{})
	spare := &memq.Link[int]{}

	for i := range 100 {
		v := i
		q.Enqueue(spare, &v)
		var got *int
		spare, got = q.Dequeue()
		if *got != i {
			t.Fatalf("round %d: got %d", i, *got)
		}
	}
	if !q.Empty() {
		t.Fatalf("Empty: got false")
	}
}

// TestQueueDeinit returns the sentinel only for an empty queue.
func TestQueueDeinit(t *testing.T) {
	sentinel := &memq.Link[int]{}
	q := memq.New(sentinel)

	v := 1
	q.Enqueue(&memq.Link[int]{}, &v)
	if got := q.Deinit(); got != nil {
		t.Fatalf("Deinit on non-empty: got %p, want nil", got)
	}

	q.Dequeue()
	last, _ := q.Peek()
	if last != nil {
		t.Fatalf("Peek: expected empty queue")
	}
	if got := q.Deinit(); got == nil {
		t.Fatalf("Deinit on empty: got nil, want sentinel")
	}
}

// TestQueueDequeueEmptyPanics verifies the empty-dequeue invariant.
func TestQueueDequeueEmptyPanics(t *testing.T) {
	q := memq.New(&memq.Link[int]{})
	defer func() {
		if recover() == nil {
			t.Fatalf("Dequeue on empty: expected panic")
		}
	}()
	q.Dequeue()
}

// TestQueueInitNilPanics verifies Init rejects a nil sentinel.
func TestQueueInitNilPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("Init(nil): expected panic")
		}
	}()
	var q memq.Queue[int]
	q.Init(nil)
}

// TestQueueSPSCConcurrent runs one producer and one consumer goroutine and
// checks ordering end to end.
func TestQueueSPSCConcurrent(t *testing.T) {
	const n = 20000

	q := memq.New(&memq.Link[int]{})
	links := make([]memq.Link[int], n)
	vals := make([]int, n)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range n {
			vals[i] = i
			q.Enqueue(&links[i], &vals[i])
		}
	}()

	deadline := time.Now().Add(10 * time.Second)
	backoff := iox.Backoff{}
	for want := 0; want < n; {
		link, _ := q.Peek()
		if link == nil {
			if time.Now().After(deadline) {
				t.Fatalf("timeout at %d/%d", want, n)
			}
			backoff.Wait()
			continue
		}
		backoff.Reset()
		_, v := q.Dequeue()
		if *v != want {
			t.Fatalf("Dequeue: got %d, want %d", *v, want)
		}
		want++
	}
	wg.Wait()
}
