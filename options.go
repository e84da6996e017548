// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ull

import (
	"time"

	"code.hybscloud.com/ull/internal/logger"
	"code.hybscloud.com/ull/mayfly"
)

// Defaults used by New.
const (
	DefaultRxCount        = 8
	DefaultTxCount        = 8
	DefaultLinkExtra      = 2
	DefaultDoneCount      = 4
	DefaultPipelineMax    = 6
	DefaultDrainSlack     = 3
	DefaultDisableTimeout = time.Second
)

// Options holds the static capacities and runtime settings of a
// Controller.
type Options struct {
	// Pool and ring capacities
	rxCount     int // rx nodes, also the rx quota
	txCount     int // tx nodes
	linkExtra   int // links beyond one per node, for radio-side use
	doneCount   int // event-done nodes
	pipelineMax int // prepare pipeline entries
	drainSlack  int // extra drain iterations beyond pipelineMax
	txCmpltMax  int // thread-facing tx-complete ring
	connAckMax  int // radio-facing tx ack ring

	disableTimeout time.Duration

	// Executor
	prio mayfly.Priorities
	pin  bool
	cpu  int
	spin int

	log *logger.Logger
}

// Builder creates a Controller with fluent configuration.
//
// Every capacity is fixed at Build; nothing on the rx, done, mayfly or
// pipeline paths allocates afterwards.
//
// Example:
//
//	c := ull.New().
//	    RxCount(16).
//	    PipelineMax(8).
//	    DisableTimeout(500 * time.Millisecond).
//	    Build()
type Builder struct {
	opts Options
}

// New creates a controller builder with default capacities.
func New() *Builder {
	return &Builder{opts: Options{
		rxCount:        DefaultRxCount,
		txCount:        DefaultTxCount,
		linkExtra:      DefaultLinkExtra,
		doneCount:      DefaultDoneCount,
		pipelineMax:    DefaultPipelineMax,
		drainSlack:     DefaultDrainSlack,
		disableTimeout: DefaultDisableTimeout,
		prio:           mayfly.DefaultPriorities,
	}}
}

// RxCount sets the number of rx nodes and the rx quota.
// Panics if n < 1.
func (b *Builder) RxCount(n int) *Builder {
	if n < 1 {
		panic("ull: rx count must be >= 1")
	}
	b.opts.rxCount = n
	return b
}

// TxCount sets the number of tx nodes.
// Panics if n < 1.
func (b *Builder) TxCount(n int) *Builder {
	if n < 1 {
		panic("ull: tx count must be >= 1")
	}
	b.opts.txCount = n
	return b
}

// LinkExtra sets how many links exist beyond those carried by nodes.
// Panics if n < 0.
func (b *Builder) LinkExtra(n int) *Builder {
	if n < 0 {
		panic("ull: link extra must be >= 0")
	}
	b.opts.linkExtra = n
	return b
}

// DoneCount sets the number of event-done nodes, which bounds how many
// radio events may end before ULL catches up.
// Panics if n < 1.
func (b *Builder) DoneCount(n int) *Builder {
	if n < 1 {
		panic("ull: done count must be >= 1")
	}
	b.opts.doneCount = n
	return b
}

// PipelineMax sets the prepare pipeline capacity.
// Panics if n < 1.
func (b *Builder) PipelineMax(n int) *Builder {
	if n < 1 {
		panic("ull: pipeline max must be >= 1")
	}
	b.opts.pipelineMax = n
	return b
}

// DrainSlack sets how many iterations beyond PipelineMax a pipeline drain
// may take before it is considered a livelock.
// Panics if n < 0.
func (b *Builder) DrainSlack(n int) *Builder {
	if n < 0 {
		panic("ull: drain slack must be >= 0")
	}
	b.opts.drainSlack = n
	return b
}

// TxCmpltMax sets the capacity of the thread-facing tx-complete ring.
// Zero sizes it to TxCount.
func (b *Builder) TxCmpltMax(n int) *Builder {
	b.opts.txCmpltMax = n
	return b
}

// ConnAckMax sets the capacity of the radio-facing tx ack ring.
// Zero sizes it to TxCount.
func (b *Builder) ConnAckMax(n int) *Builder {
	b.opts.connAckMax = n
	return b
}

// DisableTimeout bounds how long Disable waits for a role to quiesce.
// Panics if d <= 0.
func (b *Builder) DisableTimeout(d time.Duration) *Builder {
	if d <= 0 {
		panic("ull: disable timeout must be > 0")
	}
	b.opts.disableTimeout = d
	return b
}

// Priorities sets the tier priorities. Tiers sharing a priority call each
// other inline.
func (b *Builder) Priorities(p mayfly.Priorities) *Builder {
	b.opts.prio = p
	return b
}

// PinCPU locks the executor goroutine to an OS thread bound to cpu.
func (b *Builder) PinCPU(cpu int) *Builder {
	b.opts.pin = true
	b.opts.cpu = cpu
	return b
}

// Spin sets the executor's idle poll budget before it parks.
func (b *Builder) Spin(n int) *Builder {
	b.opts.spin = n
	return b
}

// Logger sets the structured logger. The default drops everything.
func (b *Builder) Logger(l *logger.Logger) *Builder {
	b.opts.log = l
	return b
}

// Build creates the Controller and fills the radio-facing rx ring.
func (b *Builder) Build() *Controller {
	o := b.opts
	if o.txCmpltMax <= 0 {
		o.txCmpltMax = o.txCount
	}
	if o.connAckMax <= 0 {
		o.connAckMax = o.txCount
	}
	return newController(o)
}

// pad is cache line padding to prevent false sharing.
type pad [64]byte
