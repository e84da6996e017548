// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package mayfly provides deferred calls across priority tiers.
//
// A caller in one [Context] asks another context to run a function by
// enqueueing a [Job]. Jobs are statically allocated by their call site and
// carry their own queue link, so enqueueing never allocates. Each
// (callee, caller) pair has its own single-producer single-consumer queue;
// jobs from one caller to one callee run in enqueue order.
//
// When caller and callee share a priority and the caller does not ask to
// chain, the job runs inline. Otherwise it is queued and the callee is
// pended through the [Pender], whose job is to arrange for [Scheduler.Run]
// to be called in the callee's context.
//
// Job state is a req/ack pair: the caller writes req, the callee writes
// ack. (req-ack)&3 is 0 when idle, 1 when queued and ready, 2 when it has
// run but is still linked in a queue. Leaving state 2 is decided by a CAS
// on ack: the caller marks the job ready again, or the callee unlinks it.
package mayfly

import (
	"errors"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/ull/memq"
)

// ErrBusy is returned by Enqueue when the job is already queued and ready.
//
// Doorbell-style call sites may ignore it: the pending run will observe
// whatever state triggered the second enqueue. Call sites that rely on the
// job's parameter treat it as a contract violation.
var ErrBusy = errors.New("mayfly: job already pending")

// Job is a deferred call descriptor.
type Job struct {
	req  atomix.Uint32
	ack  atomix.Uint32
	link *memq.Link[Job]

	// Fn runs in the callee context with Param.
	Fn    func(param any)
	Param any
}

// NewJob returns a job calling fn(param).
func NewJob(fn func(param any), param any) *Job {
	m := &Job{}
	m.Init(fn, param)
	return m
}

// Init prepares a statically allocated job. Not safe while the job is
// queued.
func (m *Job) Init(fn func(param any), param any) {
	m.req.StoreRelaxed(0)
	m.ack.StoreRelaxed(0)
	m.link = &memq.Link[Job]{}
	m.Fn = fn
	m.Param = param
}

// Pending reports whether the job is queued (ready or already run but not
// yet unlinked).
func (m *Job) Pending() bool {
	return (m.req.LoadAcquire()-m.ack.LoadAcquire())&3 != 0
}

// Pender arranges for the callee context to call Run.
type Pender interface {
	Pend(caller, callee Context)
}

// PenderFunc adapts a function to Pender.
type PenderFunc func(caller, callee Context)

// Pend calls f(caller, callee).
func (f PenderFunc) Pend(caller, callee Context) { f(caller, callee) }

// Scheduler owns the per-pair job queues.
type Scheduler struct {
	queues  [NumContexts][NumContexts]memq.Queue[Job] // [callee][caller]
	pending [NumContexts]atomix.Uint32
	enabled [NumContexts]atomix.Bool
	prio    Priorities
	pender  Pender
}

// New creates a scheduler using p to pend callees.
func New(p Pender, prio Priorities) *Scheduler {
	s := &Scheduler{}
	s.Init(p, prio)
	return s
}

// Init (re)initialises s. Not safe while in use.
func (s *Scheduler) Init(p Pender, prio Priorities) {
	if p == nil {
		panic("mayfly: nil pender")
	}
	s.pender = p
	s.prio = prio
	for callee := range NumContexts {
		for caller := range NumContexts {
			s.queues[callee][caller].Init(&memq.Link[Job]{})
		}
		s.pending[callee].StoreRelaxed(0)
		s.enabled[callee].StoreRelease(true)
	}
}

// Priorities returns the configured tier priorities.
func (s *Scheduler) Priorities() Priorities {
	return s.prio
}

// Enqueue asks callee to run m. See the package documentation for the
// inline rule. Returns ErrBusy if m is already queued and ready.
//
// Must be called from the caller context; a job is owned by one caller
// at a time.
func (s *Scheduler) Enqueue(caller, callee Context, chain bool, m *Job) error {
	chain = chain || !s.prio.Equal(caller, callee) || !s.enabled[callee].LoadAcquire()

	ack := m.ack.LoadAcquire()
	state := (m.req.LoadRelaxed() - ack) & 3
	if state != 0 && chain {
		if state == 1 {
			return ErrBusy
		}
		// ran but still linked: mark ready again in place. The callee
		// unlinks with a CAS on ack too; losing means the job went idle.
		if m.ack.CompareAndSwapAcqRel(ack, ack+1) {
			s.pend(caller, callee)
			return nil
		}
		ack = m.ack.LoadAcquire()
		state = 0
	}
	if state != 0 {
		// mark as done in queue and run inline below
		m.req.StoreRelease(ack + 2)
	}

	if !chain {
		m.Fn(m.Param)
		return nil
	}

	m.req.StoreRelease(ack + 1)
	s.queues[callee][caller].Enqueue(m.link, m)
	s.pend(caller, callee)
	return nil
}

func (s *Scheduler) pend(caller, callee Context) {
	s.pending[callee].StoreRelease(1)
	s.pender.Pend(caller, callee)
}

// Run executes ready jobs queued for callee (callee context only).
//
// Run returns after the first job it executes if more work remains,
// re-pending callee, so that higher priority tiers get a chance to run in
// between jobs.
func (s *Scheduler) Run(callee Context) {
	if !s.enabled[callee].LoadAcquire() {
		return
	}
	if !s.pending[callee].CompareAndSwapAcqRel(1, 0) {
		return
	}

	for caller := NumContexts - 1; caller >= 0; caller-- {
		q := &s.queues[callee][caller]
		link, m := q.Peek()
		for link != nil {
			ran := false
			if (m.req.LoadAcquire()-m.ack.LoadRelaxed())&3 == 1 {
				m.ack.StoreRelease(m.ack.LoadRelaxed() - 1)
				m.Fn(m.Param)
				ran = true
			}

			s.dequeue(callee, Context(caller), m)

			link, m = q.Peek()
			if ran && (caller > 0 || link != nil) {
				s.pend(callee, callee)
				return
			}
		}
	}
}

// dequeue unlinks m unless it was re-readied while running.
func (s *Scheduler) dequeue(callee, caller Context, m *Job) {
	ack := m.ack.LoadAcquire()
	req := m.req.LoadAcquire()
	if (req-ack)&3 == 1 {
		return
	}

	freed, _ := s.queues[callee][caller].Dequeue()
	m.link = freed
	if m.ack.CompareAndSwapAcqRel(ack, req) {
		return
	}

	// re-readied by the caller after the state check
	s.queues[callee][callee].Enqueue(m.link, m)
	s.pending[callee].StoreRelease(1)
}

// Enable gates whether callee runs queued jobs. Disabling also forces
// every enqueue towards callee to queue instead of running inline.
// Re-enabling pends callee so queued work is picked up.
func (s *Scheduler) Enable(caller, callee Context, enable bool) {
	s.enabled[callee].StoreRelease(enable)
	if enable {
		s.pend(caller, callee)
	}
}

// IsEnabled reports whether callee runs queued jobs.
func (s *Scheduler) IsEnabled(callee Context) bool {
	return s.enabled[callee].LoadAcquire()
}

// IsPending reports whether callee has been pended and not yet run.
func (s *Scheduler) IsPending(callee Context) bool {
	return s.pending[callee].LoadAcquire() != 0
}
