// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ull

import (
	"code.hybscloud.com/ull/internal/logger"
	"code.hybscloud.com/ull/mfifo"
)

// PrepareParam describes one scheduled radio event.
type PrepareParam struct {
	TicksAtExpire uint32
	Remainder     uint32
	Lazy          uint16
	Defer         bool
	// Param is the radio-side role object. It identifies the event in the
	// pipeline and must be comparable (a pointer in practice).
	Param any
}

// PrepareFunc sets up the radio for an event (LLL context).
type PrepareFunc func(p *PrepareParam) error

// AbortFunc aborts an event (LLL context). p is nil when the running
// event is aborted; otherwise p is a pipeline entry that never started.
// Either way the role must eventually report Done for it.
type AbortFunc func(p *PrepareParam, param any)

// AbortVerdict is the running event's answer to a preemption request.
type AbortVerdict uint8

const (
	// CancelNext keeps the running event and cancels the requester.
	CancelNext AbortVerdict = iota
	// AbortResume aborts the running event and re-queues it as a resume.
	AbortResume
	// AbortCurrent aborts the running event for good.
	AbortCurrent
)

// IsAbortFunc asks the running event (curr) whether it yields to next.
// With AbortResume it also returns the function that resumes it.
type IsAbortFunc func(next, curr any) (AbortVerdict, PrepareFunc)

// Event is a prepare pipeline entry.
type Event struct {
	Param     PrepareParam
	Prepare   PrepareFunc
	IsAbort   IsAbortFunc
	Abort     AbortFunc
	IsResume  bool
	IsAborted bool
}

// Pipeline holds prepare and resume requests that could not start
// because the radio was busy.
//
// All access happens in the core tiers, which share the executor
// goroutine. Entries are marked aborted in place and only removed by
// Drain or Dequeue.
type Pipeline struct {
	fifo  mfifo.Fifo[Event]
	bound int
	log   *logger.Logger
}

// NewPipeline creates a pipeline of max entries whose Drain may iterate at
// most max+slack times.
func NewPipeline(max, slack int) *Pipeline {
	p := &Pipeline{}
	p.init(max, slack, nil)
	return p
}

func (p *Pipeline) init(max, slack int, log *logger.Logger) {
	if max < 1 || slack < 0 {
		panic("ull: pipeline bounds out of range")
	}
	p.fifo.Init(max)
	p.bound = max + slack
	p.log = log
}

// Enqueue appends a request. Returns ErrWouldBlock when full.
func (p *Pipeline) Enqueue(param PrepareParam, prepare PrepareFunc, isAbort IsAbortFunc, abort AbortFunc, isResume bool) (*Event, error) {
	idx, err := p.fifo.Reserve()
	if err != nil {
		return nil, err
	}
	e := p.fifo.Slot(idx)
	*e = Event{
		Param:    param,
		Prepare:  prepare,
		IsAbort:  isAbort,
		Abort:    abort,
		IsResume: isResume,
	}
	p.fifo.Publish(idx)
	return e, nil
}

// DequeueGet returns the oldest entry without removing it, or nil.
func (p *Pipeline) DequeueGet() *Event {
	e, ok := p.fifo.Peek()
	if !ok {
		return nil
	}
	return e
}

// Dequeue removes the oldest entry.
func (p *Pipeline) Dequeue() {
	p.fifo.Take()
}

// Begin returns a cursor at the oldest entry.
func (p *Pipeline) Begin() uint32 {
	return p.fifo.First()
}

// Iter returns the entry at *cursor and advances the cursor, or nil at the
// end.
func (p *Pipeline) Iter(cursor *uint32) *Event {
	e, ok := p.fifo.Iter(cursor)
	if !ok {
		return nil
	}
	return e
}

// Len returns the number of entries.
func (p *Pipeline) Len() int {
	return p.fifo.Len()
}

// Cap returns the capacity.
func (p *Pipeline) Cap() int {
	return p.fifo.Cap()
}

// Bound returns the maximum number of Drain iterations.
func (p *Pipeline) Bound() int {
	return p.bound
}

// Drain walks the pipeline from the oldest entry. Each entry is removed;
// live entries are passed to dispatch, aborted ones are dropped. dispatch
// may enqueue again (a busy radio defers the request back).
//
// Drain stops at the first entry that is the first or second normal
// request it already dispatched, or, while at most one normal request was
// seen, the first or second resume. It returns the iteration count.
// When every entry comes straight back, the walk ends within Bound as
// long as no more than slack of them are resumes.
//
// Panics if the walk exceeds Bound iterations.
func (p *Pipeline) Drain(dispatch func(e *Event)) int {
	var (
		normalHead, normalNext, resumeHead, resumeNext any
		haveNH, haveNN, haveRH, haveRN                 bool
	)

	n := 0
	next := p.DequeueGet()
	for next != nil {
		if n == p.bound {
			p.log.Crit().Int("bound", p.bound).Int("len", p.Len()).Log("ull: prepare pipeline drain exceeded bound")
			panic("ull: prepare pipeline drain exceeded bound")
		}
		n++

		e := *next
		p.fifo.Take()
		if !e.IsAborted {
			dispatch(&e)
		}

		next = p.DequeueGet()
		if next == nil {
			break
		}
		if e.IsAborted {
			continue
		}

		param := e.Param.Param
		switch {
		case !e.IsResume && !haveNH:
			normalHead, haveNH = param, true
		case !e.IsResume && !haveNN:
			normalNext, haveNN = param, true
		case e.IsResume && !haveRH:
			resumeHead, haveRH = param, true
		case e.IsResume && !haveRN:
			resumeNext, haveRN = param, true
		}

		if next.IsAborted {
			continue
		}
		np := next.Param.Param
		if !next.IsResume {
			if (haveNH && np == normalHead) || (haveNN && np == normalNext) {
				break
			}
		} else if !haveNN {
			if (haveRH && np == resumeHead) || (haveRN && np == resumeNext) {
				break
			}
		}
	}
	return n
}
