// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mfifo_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/ull/mfifo"
)

// TestFifoCapacityBound reserves every slot without consuming and expects
// the next reservation to fail.
func TestFifoCapacityBound(t *testing.T) {
	for _, n := range []int{1, 2, 4, 7, 16} {
		f := mfifo.New[int](n)
		if f.Cap() != n {
			t.Fatalf("Cap: got %d, want %d", f.Cap(), n)
		}
		for i := range n {
			if _, err := f.Reserve(); err != nil {
				t.Fatalf("n=%d Reserve(%d): %v", n, i, err)
			}
		}
		if _, err := f.Reserve(); !errors.Is(err, mfifo.ErrWouldBlock) {
			t.Fatalf("n=%d Reserve on full: got %v, want ErrWouldBlock", n, err)
		}
	}
}

// TestFifoReservePublishTake covers three reservations, two publishes and
// one take on a ring of four.
func TestFifoReservePublishTake(t *testing.T) {
	f := mfifo.New[string](4)

	var idx [3]uint32
	for i := range idx {
		var err error
		if idx[i], err = f.Reserve(); err != nil {
			t.Fatalf("Reserve(%d): %v", i, err)
		}
	}
	*f.Slot(idx[0]) = "first"
	*f.Slot(idx[1]) = "second"
	f.Publish(idx[0])
	f.Publish(idx[1])

	got, ok := f.Take()
	if !ok || got != "first" {
		t.Fatalf("Take: got (%q, %v), want (%q, true)", got, ok, "first")
	}
	if f.Len() != 1 {
		t.Fatalf("Len: got %d, want 1", f.Len())
	}
	if f.Reserved() != 1 {
		t.Fatalf("Reserved: got %d, want 1", f.Reserved())
	}

	// Two cells remain for new reservations: 4 - 1 committed - 1 reserved.
	for i := range 2 {
		if _, err := f.Reserve(); err != nil {
			t.Fatalf("Reserve extra(%d): %v", i, err)
		}
	}
	if _, err := f.Reserve(); !errors.Is(err, mfifo.ErrWouldBlock) {
		t.Fatalf("Reserve on full: got %v, want ErrWouldBlock", err)
	}
}

// TestFifoAbortRollsBack verifies that Abort leaves committed state as it
// was and frees the reserved cells.
func TestFifoAbortRollsBack(t *testing.T) {
	f := mfifo.New[int](2)

	if err := f.Enqueue(7); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	idx, err := f.Reserve()
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	*f.Slot(idx) = 99
	f.Abort()

	if f.Len() != 1 || f.Reserved() != 0 {
		t.Fatalf("after Abort: Len=%d Reserved=%d, want 1 and 0", f.Len(), f.Reserved())
	}
	idx2, err := f.Reserve()
	if err != nil {
		t.Fatalf("Reserve after Abort: %v", err)
	}
	if idx2 != idx {
		t.Fatalf("Reserve after Abort: got slot %d, want %d", idx2, idx)
	}
	if *f.Slot(idx2) != 0 {
		t.Fatalf("aborted slot not cleared: %d", *f.Slot(idx2))
	}
}

// TestFifoPublishOutOfOrderPanics rejects publishing a later reservation
// before an earlier one.
func TestFifoPublishOutOfOrderPanics(t *testing.T) {
	f := mfifo.New[int](4)
	f.Reserve()
	second, _ := f.Reserve()

	defer func() {
		if recover() == nil {
			t.Fatalf("Publish out of order: expected panic")
		}
	}()
	f.Publish(second)
}

// TestFifoPublishUnreservedPanics rejects publishing without a reservation.
func TestFifoPublishUnreservedPanics(t *testing.T) {
	f := mfifo.New[int](4)
	defer func() {
		if recover() == nil {
			t.Fatalf("Publish unreserved: expected panic")
		}
	}()
	f.Publish(0)
}

// TestFifoIterDoesNotConsume walks the committed range twice.
func TestFifoIterDoesNotConsume(t *testing.T) {
	f := mfifo.New[int](8)
	for i := range 5 {
		if err := f.Enqueue(i + 10); err != nil {
			t.Fatalf("Enqueue(%d): %v", i, err)
		}
	}

	for pass := range 2 {
		c := f.First()
		n := 0
		for e, ok := f.Iter(&c); ok; e, ok = f.Iter(&c) {
			if *e != n+10 {
				t.Fatalf("pass %d Iter(%d): got %d, want %d", pass, n, *e, n+10)
			}
			n++
		}
		if n != 5 {
			t.Fatalf("pass %d: iterated %d, want 5", pass, n)
		}
	}
	if f.Len() != 5 {
		t.Fatalf("Len: got %d, want 5", f.Len())
	}
}

// TestFifoIterToAndAdvance consumes a prefix bounded by a recorded index.
func TestFifoIterToAndAdvance(t *testing.T) {
	f := mfifo.New[int](8)
	f.Enqueue(1)
	f.Enqueue(2)
	mark := f.Last()
	f.Enqueue(3)

	c := f.First()
	sum := 0
	for e, ok := f.IterTo(&c, mark); ok; e, ok = f.IterTo(&c, mark) {
		sum += *e
	}
	if sum != 3 {
		t.Fatalf("IterTo sum: got %d, want 3", sum)
	}
	f.AdvanceTo(c)
	if f.Len() != 1 {
		t.Fatalf("Len after AdvanceTo: got %d, want 1", f.Len())
	}
	if v, _ := f.Take(); v != 3 {
		t.Fatalf("Take: got %d, want 3", v)
	}
}

// TestFifoWrapAround cycles through the ring many times.
func TestFifoWrapAround(t *testing.T) {
	f := mfifo.New[int](3)
	for i := range 100 {
		if err := f.Enqueue(i); err != nil {
			t.Fatalf("Enqueue(%d): %v", i, err)
		}
		v, ok := f.Take()
		if !ok || v != i {
			t.Fatalf("Take(%d): got (%d, %v)", i, v, ok)
		}
	}
	if _, ok := f.Take(); ok {
		t.Fatalf("Take on empty: got ok")
	}
}

// TestFifoNewInvalidCapacity rejects non-positive capacities.
func TestFifoNewInvalidCapacity(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("New(0): expected panic")
		}
	}()
	mfifo.New[int](0)
}

// TestFifoSPSCConcurrent moves values between two goroutines.
func TestFifoSPSCConcurrent(t *testing.T) {
	const n = 50000
	f := mfifo.New[int](16)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		backoff := iox.Backoff{}
		for i := 0; i < n; {
			if err := f.Enqueue(i); err != nil {
				backoff.Wait()
				continue
			}
			backoff.Reset()
			i++
		}
	}()

	deadline := time.Now().Add(10 * time.Second)
	backoff := iox.Backoff{}
	for want := 0; want < n; {
		v, ok := f.Take()
		if !ok {
			if time.Now().After(deadline) {
				t.Fatalf("timeout at %d/%d", want, n)
			}
			backoff.Wait()
			continue
		}
		backoff.Reset()
		if v != want {
			t.Fatalf("Take: got %d, want %d", v, want)
		}
		want++
	}
	wg.Wait()
}
