// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ull_test

import (
	"math/bits"
	"testing"

	"code.hybscloud.com/ull"
)

type ev struct{ name string }

func nopPrepare(*ull.PrepareParam) error { return nil }

func enqueue(t *testing.T, p *ull.Pipeline, param any, resume bool) *ull.Event {
	t.Helper()
	e, err := p.Enqueue(ull.PrepareParam{Param: param}, nopPrepare, nil, func(*ull.PrepareParam, any) {}, resume)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	return e
}

func TestPipelineFull(t *testing.T) {
	p := ull.NewPipeline(3, 3)
	for i := range 3 {
		enqueue(t, p, &ev{}, i == 2)
	}
	if _, err := p.Enqueue(ull.PrepareParam{}, nopPrepare, nil, nil, false); !ull.IsWouldBlock(err) {
		t.Fatalf("Enqueue on full: got %v, want ErrWouldBlock", err)
	}
	if p.Len() != 3 {
		t.Fatalf("Len: got %d, want 3", p.Len())
	}
	if p.Bound() != 6 {
		t.Fatalf("Bound: got %d, want 6", p.Bound())
	}
}

func TestPipelineIterDoesNotConsume(t *testing.T) {
	p := ull.NewPipeline(4, 3)
	a, b := &ev{"a"}, &ev{"b"}
	enqueue(t, p, a, false)
	enqueue(t, p, b, true)

	cur := p.Begin()
	var seen []any
	for e := p.Iter(&cur); e != nil; e = p.Iter(&cur) {
		seen = append(seen, e.Param.Param)
	}
	if len(seen) != 2 || seen[0] != a || seen[1] != b {
		t.Fatalf("Iter: got %v, want [a b]", seen)
	}
	if p.Len() != 2 {
		t.Fatalf("Len after Iter: got %d, want 2", p.Len())
	}
	if got := p.DequeueGet(); got == nil || got.Param.Param != a {
		t.Fatalf("DequeueGet: got %v, want a", got)
	}
	p.Dequeue()
	if got := p.DequeueGet(); got == nil || got.Param.Param != b {
		t.Fatalf("DequeueGet after Dequeue: got %v, want b", got)
	}
}

func TestPipelineDrainDropsAborted(t *testing.T) {
	p := ull.NewPipeline(4, 3)
	a, b, c := &ev{"a"}, &ev{"b"}, &ev{"c"}
	enqueue(t, p, a, false)
	enqueue(t, p, b, false).IsAborted = true
	enqueue(t, p, c, false)

	var got []any
	n := p.Drain(func(e *ull.Event) { got = append(got, e.Param.Param) })
	if n != 3 {
		t.Fatalf("Drain iterations: got %d, want 3", n)
	}
	if len(got) != 2 || got[0] != a || got[1] != c {
		t.Fatalf("dispatched: got %v, want [a c]", got)
	}
	if p.Len() != 0 {
		t.Fatalf("Len: got %d, want 0", p.Len())
	}
}

// A busy radio sends every drained entry straight back. The drain must
// stop once it meets an entry it already handled.
func TestPipelineDrainStopsOnReenqueue(t *testing.T) {
	p := ull.NewPipeline(4, 3)
	a, b := &ev{"a"}, &ev{"b"}
	enqueue(t, p, a, false)
	enqueue(t, p, b, false)

	requeue := func(e *ull.Event) {
		if _, err := p.Enqueue(e.Param, e.Prepare, e.IsAbort, e.Abort, e.IsResume); err != nil {
			t.Fatalf("re-enqueue: %v", err)
		}
	}
	n := p.Drain(requeue)
	if n != 2 {
		t.Fatalf("Drain iterations: got %d, want 2", n)
	}
	if p.Len() != 2 {
		t.Fatalf("Len: got %d, want 2", p.Len())
	}
	if p.DequeueGet().Param.Param != a {
		t.Fatalf("head after drain: want a")
	}
}

func TestPipelineDrainStopsOnResumeWrap(t *testing.T) {
	p := ull.NewPipeline(4, 3)
	r := &ev{"r"}
	enqueue(t, p, r, true)

	n := p.Drain(func(e *ull.Event) {
		if _, err := p.Enqueue(e.Param, e.Prepare, e.IsAbort, e.Abort, true); err != nil {
			t.Fatalf("re-enqueue: %v", err)
		}
	})
	if n != 1 {
		t.Fatalf("Drain iterations: got %d, want 1", n)
	}
	if p.Len() != 1 {
		t.Fatalf("Len: got %d, want 1", p.Len())
	}
}

// Any order of normal and resume entries, all sent straight back, stays
// within the bound as long as no more than slack of them are resumes.
func TestPipelineDrainBounded(t *testing.T) {
	const max, slack = 6, 3
	for mask := range 1 << max {
		if bits.OnesCount(uint(mask)) > slack {
			continue
		}
		p := ull.NewPipeline(max, slack)
		for i := range max {
			enqueue(t, p, &ev{}, mask&(1<<i) != 0)
		}
		n := p.Drain(func(e *ull.Event) {
			if _, err := p.Enqueue(e.Param, e.Prepare, e.IsAbort, e.Abort, e.IsResume); err != nil {
				t.Fatalf("mask %b: re-enqueue: %v", mask, err)
			}
		})
		if n > max+slack {
			t.Fatalf("mask %b: iterations got %d, want <= %d", mask, n, max+slack)
		}
	}
}

func TestPipelineDrainBoundPanics(t *testing.T) {
	p := ull.NewPipeline(2, 0)
	enqueue(t, p, &ev{"first"}, false)

	defer func() {
		if r := recover(); r != "ull: prepare pipeline drain exceeded bound" {
			t.Fatalf("recover: got %v, want bound panic", r)
		}
	}()
	// a fresh parameter every time defeats the wrap detection
	p.Drain(func(e *ull.Event) {
		enqueue(t, p, &ev{}, false)
	})
	t.Fatalf("Drain returned, want panic")
}
