// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package cpu runs the interrupt-like priority tiers on one goroutine.
//
// [mayfly.LLL], [mayfly.ULLHigh] and [mayfly.ULLLow] share a single
// executor goroutine, optionally locked to an OS thread pinned to one CPU.
// Each pended tier is run to completion; when several are pended the one
// with the highest priority goes first. A tier never interrupts another
// mid-handler: mayfly runs return between jobs when more work is queued,
// which is where a higher tier gets in.
//
// [mayfly.Thread] is not run here. Pending it calls the thread hook, which
// the host side uses to wake its own goroutine.
package cpu

import (
	"context"
	"runtime"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"

	"code.hybscloud.com/ull/internal/logger"
	"code.hybscloud.com/ull/mayfly"
)

// NoContext is reported by Current while no tier is running.
const NoContext mayfly.Context = 0xff

// DefaultSpin is the number of idle polls before the executor parks.
const DefaultSpin = 256

// Options configures an Executor.
type Options struct {
	// Priorities orders the tiers; zero value means mayfly.DefaultPriorities.
	Priorities *mayfly.Priorities
	// Pin locks the executor to an OS thread bound to CPU (Linux only).
	Pin bool
	CPU int
	// Spin is the idle poll budget before parking; 0 means DefaultSpin.
	Spin int
	// Logger receives lifecycle records; nil drops them.
	Logger *logger.Logger
}

// Executor drives the core tiers.
type Executor struct {
	_       pad
	pending atomix.Uint32 // bit per context
	_       pad
	current atomix.Uint32
	_       pad
	runs    [mayfly.NumContexts]atomix.Uint64
	wake    chan struct{}
	sched   *mayfly.Scheduler
	prio    mayfly.Priorities
	order   [mayfly.NumContexts]mayfly.Context
	thread  func()
	pin     bool
	cpu     int
	spin    int
	log     *logger.Logger
	running atomix.Bool
}

// New creates an executor and its mayfly scheduler.
func New(opts Options) *Executor {
	e := &Executor{
		wake: make(chan struct{}, 1),
		prio: mayfly.DefaultPriorities,
		pin:  opts.Pin,
		cpu:  opts.CPU,
		spin: opts.Spin,
		log:  opts.Logger,
	}
	if opts.Priorities != nil {
		e.prio = *opts.Priorities
	}
	if e.spin <= 0 {
		e.spin = DefaultSpin
	}
	e.current.StoreRelaxed(uint32(NoContext))

	// tiers by priority, ties by index
	for i := range e.order {
		e.order[i] = mayfly.Context(i)
	}
	for i := 1; i < len(e.order); i++ {
		for j := i; j > 0 && e.prio[e.order[j]] < e.prio[e.order[j-1]]; j-- {
			e.order[j], e.order[j-1] = e.order[j-1], e.order[j]
		}
	}

	e.sched = mayfly.New(e, e.prio)
	return e
}

// Scheduler returns the mayfly scheduler bound to this executor.
func (e *Executor) Scheduler() *mayfly.Scheduler {
	return e.sched
}

// Priorities returns the tier priorities.
func (e *Executor) Priorities() mayfly.Priorities {
	return e.prio
}

// OnThreadPend installs the hook called when the thread tier is pended.
// Must be set before Run.
func (e *Executor) OnThreadPend(fn func()) {
	e.thread = fn
}

// Pend marks callee runnable. Safe from any goroutine.
func (e *Executor) Pend(_, callee mayfly.Context) {
	if callee == mayfly.Thread {
		if e.thread != nil {
			e.thread()
		}
		return
	}
	bit := uint32(1) << callee
	sw := spin.Wait{}
	for {
		v := e.pending.LoadAcquire()
		if v&bit != 0 || e.pending.CompareAndSwapAcqRel(v, v|bit) {
			break
		}
		sw.Once()
	}
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Current returns the tier the executor is running, or NoContext.
// Only meaningful when called from the executor goroutine.
func (e *Executor) Current() mayfly.Context {
	return mayfly.Context(e.current.LoadAcquire())
}

// InContext reports whether the executor is running c, or a tier sharing
// c's priority.
func (e *Executor) InContext(c mayfly.Context) bool {
	cur := e.Current()
	return cur != NoContext && e.prio.Equal(cur, c)
}

// Runs returns how many times tier c has been dispatched.
func (e *Executor) Runs(c mayfly.Context) uint64 {
	return e.runs[c].LoadAcquire()
}

// Running reports whether Run is active.
func (e *Executor) Running() bool {
	return e.running.LoadAcquire()
}

// Run dispatches pended tiers until ctx is done. Only one Run may be
// active per executor.
func (e *Executor) Run(ctx context.Context) error {
	if e.running.LoadAcquire() {
		panic("cpu: executor already running")
	}
	e.running.StoreRelease(true)
	defer e.running.StoreRelease(false)

	if e.pin {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		if err := setAffinity(e.cpu); err != nil {
			e.log.Warning().Int("cpu", e.cpu).Err(err).Log("cpu: affinity not applied")
		}
	}
	e.log.Debug().Bool("pin", e.pin).Int("cpu", e.cpu).Int("spin", e.spin).Log("cpu: executor started")
	defer func() { e.log.Debug().Log("cpu: executor stopped") }()

	for {
		if e.Step() {
			continue
		}
		if e.idle(ctx) {
			return ctx.Err()
		}
	}
}

// Step dispatches the highest-priority pended tier once. Returns false if
// nothing was pended. Tests drive the executor with Step instead of Run.
func (e *Executor) Step() bool {
	c, ok := e.take()
	if !ok {
		return false
	}
	e.dispatch(c)
	return true
}

// Drain steps until nothing is pended.
func (e *Executor) Drain() {
	for e.Step() {
	}
}

func (e *Executor) take() (mayfly.Context, bool) {
	sw := spin.Wait{}
	for {
		v := e.pending.LoadAcquire()
		if v == 0 {
			return NoContext, false
		}
		for _, c := range e.order {
			bit := uint32(1) << c
			if v&bit == 0 {
				continue
			}
			if e.pending.CompareAndSwapAcqRel(v, v&^bit) {
				return c, true
			}
			break
		}
		sw.Once()
	}
}

func (e *Executor) dispatch(c mayfly.Context) {
	prev := e.current.LoadRelaxed()
	e.current.StoreRelease(uint32(c))
	e.runs[c].Add(1)
	e.sched.Run(c)
	e.current.StoreRelease(prev)
}

// idle spins for a while, then parks until woken. Reports whether ctx is
// done.
func (e *Executor) idle(ctx context.Context) bool {
	sw := spin.Wait{}
	for range e.spin {
		if e.pending.LoadAcquire() != 0 {
			return false
		}
		sw.Once()
	}
	select {
	case <-e.wake:
		return false
	case <-ctx.Done():
		return true
	}
}

// pad is cache line padding to prevent false sharing.
type pad [64]byte
