// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package mem provides fixed-block pools and quota counters.
//
// A [Pool] owns a statically sized slice of blocks. Free blocks are chained
// by index through a lock-free stack; acquiring pops the head, releasing
// pushes it back. Every block carries a generation so that a [Handle] kept
// past a release is detected as stale rather than silently aliasing the
// next owner.
//
// A [Quota] bounds how many blocks a producer may hold outstanding. The
// counter is refused rather than driven below zero, and never exceeds its
// static capacity.
//
// Example (rx nodes for an ISR producer):
//
//	nodes := mem.NewPool[Node](8)
//	quota := mem.NewQuota(8)
//
//	if quota.TryDec() {
//	    if n := nodes.Acquire(); n != nil {
//	        hand(n)
//	    } else {
//	        quota.Inc(1)
//	    }
//	}
package mem

import (
	"unsafe"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// Handle identifies an allocated block together with the generation it
// was acquired in.
type Handle struct {
	Index uint32
	Gen   uint32
}

// Pool is a fixed-capacity block allocator.
//
// Acquire and Release are safe to call from multiple goroutines.
type Pool[T any] struct {
	_      pad
	head   atomix.Uint64 // tag<<32 | (index+1), 0 when empty
	_      pad
	free   atomix.Int64
	_      pad
	blocks []T
	next   []atomix.Uint32 // index+1 of the next free block
	gen    []atomix.Uint32 // odd while allocated
	size   uintptr
}

// NewPool creates a pool of count blocks.
// Panics if count < 1 or T has zero size.
func NewPool[T any](count int) *Pool[T] {
	p := &Pool[T]{}
	p.Init(count)
	return p
}

// Init (re)initialises p with count free blocks. Not safe while in use.
// Panics if count < 1 or T has zero size.
func (p *Pool[T]) Init(count int) {
	if count < 1 || count >= 1<<31 {
		panic("mem: pool count out of range")
	}
	var zero T
	p.size = unsafe.Sizeof(zero)
	if p.size == 0 {
		panic("mem: zero-size block type")
	}

	p.blocks = make([]T, count)
	p.next = make([]atomix.Uint32, count)
	p.gen = make([]atomix.Uint32, count)
	for i := range count - 1 {
		p.next[i].StoreRelaxed(uint32(i) + 2)
	}
	p.next[count-1].StoreRelaxed(0)
	p.free.StoreRelaxed(int64(count))
	p.head.StoreRelease(1)
}

// Acquire pops a free block. Returns nil when the pool is exhausted.
func (p *Pool[T]) Acquire() *T {
	sw := spin.Wait{}
	for {
		h := p.head.LoadAcquire()
		top := uint32(h)
		if top == 0 {
			return nil
		}
		idx := top - 1
		nxt := p.next[idx].LoadAcquire()
		tag := h>>32 + 1
		if p.head.CompareAndSwapAcqRel(h, tag<<32|uint64(nxt)) {
			p.gen[idx].Add(1)
			p.free.Add(-1)
			return &p.blocks[idx]
		}
		sw.Once()
	}
}

// Release returns blk to the pool.
//
// Panics if blk does not belong to the pool or is already free.
func (p *Pool[T]) Release(blk *T) {
	idx := p.Index(blk)
	g := p.gen[idx].LoadAcquire()
	if g&1 == 0 {
		panic("mem: release of a free block")
	}
	p.gen[idx].StoreRelease(g + 1)

	sw := spin.Wait{}
	for {
		h := p.head.LoadAcquire()
		p.next[idx].StoreRelease(uint32(h))
		tag := h>>32 + 1
		if p.head.CompareAndSwapAcqRel(h, tag<<32|uint64(idx+1)) {
			p.free.Add(1)
			return
		}
		sw.Once()
	}
}

// Index returns the block index of blk.
//
// Panics if blk does not point at a block of this pool.
func (p *Pool[T]) Index(blk *T) uint32 {
	base := uintptr(unsafe.Pointer(unsafe.SliceData(p.blocks)))
	off := uintptr(unsafe.Pointer(blk)) - base
	if uintptr(unsafe.Pointer(blk)) < base || off%p.size != 0 || off/p.size >= uintptr(len(p.blocks)) {
		panic("mem: block does not belong to pool")
	}
	return uint32(off / p.size)
}

// Get returns the block at idx regardless of its state.
func (p *Pool[T]) Get(idx uint32) *T {
	return &p.blocks[idx]
}

// Handle returns the generation-tagged handle of an allocated block.
func (p *Pool[T]) Handle(blk *T) Handle {
	idx := p.Index(blk)
	return Handle{Index: idx, Gen: p.gen[idx].LoadAcquire()}
}

// Resolve returns the block named by h if it is still allocated in the
// generation h was taken in.
func (p *Pool[T]) Resolve(h Handle) (*T, bool) {
	if h.Index >= uint32(len(p.blocks)) || h.Gen&1 == 0 {
		return nil, false
	}
	if p.gen[h.Index].LoadAcquire() != h.Gen {
		return nil, false
	}
	return &p.blocks[h.Index], true
}

// Allocated reports whether blk is currently acquired.
func (p *Pool[T]) Allocated(blk *T) bool {
	return p.gen[p.Index(blk)].LoadAcquire()&1 == 1
}

// Free returns the number of free blocks.
func (p *Pool[T]) Free() int {
	return int(p.free.LoadAcquire())
}

// Cap returns the number of blocks.
func (p *Pool[T]) Cap() int {
	return len(p.blocks)
}

// pad is cache line padding to prevent false sharing.
type pad [64]byte
