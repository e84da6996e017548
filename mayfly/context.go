// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mayfly

import "strconv"

// Context names a priority tier. Lower values are higher priority.
//
// Code that touches a structure owned by one tier runs in that tier; the
// value is carried through entry points so the executor can check it.
type Context uint8

const (
	// LLL is the radio ISR tier (lower link layer).
	LLL Context = iota
	// ULLHigh is the upper link layer high-priority tier.
	ULLHigh
	// ULLLow is the upper link layer low-priority tier.
	ULLLow
	// Thread is the application/host thread.
	Thread
)

// NumContexts is the number of priority tiers.
const NumContexts = 4

// String returns the tier name.
func (c Context) String() string {
	switch c {
	case LLL:
		return "lll"
	case ULLHigh:
		return "ull_high"
	case ULLLow:
		return "ull_low"
	case Thread:
		return "thread"
	default:
		return "context(" + strconv.Itoa(int(c)) + ")"
	}
}

// Valid reports whether c names a tier.
func (c Context) Valid() bool {
	return c < NumContexts
}

// Priorities maps each tier to a scheduling priority (lower runs first).
// Tiers sharing a priority never preempt each other and may call each
// other inline.
type Priorities [NumContexts]uint8

// DefaultPriorities keeps every tier distinct.
var DefaultPriorities = Priorities{LLL: 0, ULLHigh: 1, ULLLow: 2, Thread: 3}

// Equal reports whether a and b share a priority.
func (p *Priorities) Equal(a, b Context) bool {
	return a == b || p[a] == p[b]
}
