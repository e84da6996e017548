// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mem

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// Quota counts how many resources of one class a producer may still
// borrow. It never goes below zero and never exceeds its capacity.
type Quota struct {
	_     pad
	avail atomix.Int64
	_     pad
	max   int64
}

// NewQuota creates a quota of capacity max, initially fully available.
func NewQuota(max int) *Quota {
	q := &Quota{}
	q.Init(max, max)
	return q
}

// Init sets the capacity and the available count. Not safe while in use.
// Panics if avail is outside [0, max].
func (q *Quota) Init(max, avail int) {
	if max < 0 || avail < 0 || avail > max {
		panic("mem: quota out of range")
	}
	q.max = int64(max)
	q.avail.StoreRelease(int64(avail))
}

// TryDec borrows one unit. Returns false, leaving the quota unchanged, if
// none is available.
func (q *Quota) TryDec() bool {
	sw := spin.Wait{}
	for {
		v := q.avail.LoadAcquire()
		if v <= 0 {
			return false
		}
		if q.avail.CompareAndSwapAcqRel(v, v-1) {
			return true
		}
		sw.Once()
	}
}

// Dec borrows one unit.
//
// Panics if none is available; callers that cannot guarantee availability
// use TryDec.
func (q *Quota) Dec() {
	if !q.TryDec() {
		panic("mem: quota underflow")
	}
}

// Inc returns delta units.
//
// Panics if delta is negative or the quota would exceed its capacity.
func (q *Quota) Inc(delta int) {
	if delta < 0 {
		panic("mem: negative quota increment")
	}
	sw := spin.Wait{}
	for {
		v := q.avail.LoadAcquire()
		n := v + int64(delta)
		if n > q.max {
			panic("mem: quota overflow")
		}
		if q.avail.CompareAndSwapAcqRel(v, n) {
			return
		}
		sw.Once()
	}
}

// Available returns the number of units that can still be borrowed.
func (q *Quota) Available() int {
	return int(q.avail.LoadAcquire())
}

// Cap returns the static capacity.
func (q *Quota) Cap() int {
	return int(q.max)
}
