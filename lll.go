// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ull

import (
	"errors"

	"code.hybscloud.com/ull/mayfly"
)

// Prepare starts a radio event, or defers it into the pipeline when the
// radio is busy, ULL has not caught up with reported dones, or an older
// request is still waiting (LLL). Returns ErrInProgress when deferred,
// otherwise the result of prepare.
//
// Panics if the pipeline is full.
func (c *Controller) Prepare(isAbort IsAbortFunc, abort AbortFunc, prepare PrepareFunc, p *PrepareParam) error {
	c.assertContext(mayfly.LLL)
	return c.resolve(isAbort, abort, prepare, p, false, false)
}

func (c *Controller) resolve(isAbort IsAbortFunc, abort AbortFunc, prepare PrepareFunc, p *PrepareParam, isResume, isDequeue bool) error {
	// first entry that is neither aborted nor a resume
	cur := c.pipeline.Begin()
	ready := c.pipeline.Iter(&cur)
	for ready != nil && (ready.IsAborted || ready.IsResume) {
		ready = c.pipeline.Iter(&cur)
	}

	if (!isDequeue && (!c.DoneSynced() || ready != nil)) || c.curr.abort != nil || (ready != nil && isResume) {
		if _, err := c.pipeline.Enqueue(*p, prepare, isAbort, abort, isResume); err != nil {
			c.log.Crit().Int("len", c.pipeline.Len()).Log("ull: prepare pipeline full")
			panic("ull: prepare pipeline full")
		}
		c.stats.deferred.Add(1)
		return ErrInProgress
	}

	c.curr = current{param: p.Param, isAbort: isAbort, abort: abort}
	c.stats.prepared.Add(1)
	return prepare(p)
}

// Preempt offers the radio to the oldest ready pipeline entry (LLL),
// typically from the preempt timeout of that entry. The running event's
// IsAbortFunc decides: CancelNext aborts the entry; AbortCurrent aborts
// the running event; AbortResume aborts it, drops duplicates of it still
// queued and queues it again as a resume.
//
// Panics if a resume cannot be queued.
func (c *Controller) Preempt() {
	c.assertContext(mayfly.LLL)
	if c.curr.abort == nil || c.curr.param == nil {
		return
	}

	cur := c.pipeline.Begin()
	next := c.pipeline.Iter(&cur)
	for next != nil && (next.IsAborted || next.IsResume) {
		next = c.pipeline.Iter(&cur)
	}
	if next == nil {
		return
	}

	c.stats.preempts.Add(1)
	verdict, resume := c.curr.isAbort(next.Param.Param, c.curr.param)
	if verdict == CancelNext {
		next.IsAborted = true
		next.Abort(&next.Param, next.Param.Param)
		return
	}

	param, isAbort, abort := c.curr.param, c.curr.isAbort, c.curr.abort
	if verdict == AbortResume {
		// the resumed event keeps its reference; the abort's done carries none
		c.curr.param = nil
	}
	abort(nil, param)
	if verdict != AbortResume {
		return
	}

	cur = c.pipeline.Begin()
	for e := c.pipeline.Iter(&cur); e != nil; e = c.pipeline.Iter(&cur) {
		if !e.IsAborted && e.Param.Param == param {
			e.IsAborted = true
			e.Abort(&e.Param, e.Param.Param)
		}
	}

	if _, err := c.pipeline.Enqueue(PrepareParam{Param: param}, resume, isAbort, abort, true); err != nil {
		c.log.Crit().Int("len", c.pipeline.Len()).Log("ull: resume enqueue failed")
		panic("ull: resume enqueue failed")
	}
}

// Done reports the end of an event (LLL). A nil param ends the running
// event; otherwise param is a pipeline entry that ended without running.
// An event-done node is emitted for the param's header.
//
// Panics if no event is running for a nil param, or no done node is free.
func (c *Controller) Done(param any) {
	c.assertContext(mayfly.LLL)
	if param == nil {
		if c.curr.abort == nil {
			c.fatal("ull: done without a running event")
		}
		param = c.curr.param
		c.curr = current{}
	}
	if c.EventDone(headerOf(param)) == nil {
		c.fatal("ull: out of event-done nodes")
	}
}

// IsDone reports whether the radio is idle, and whether param differs
// from the running event's parameter (a resume would be needed) (LLL).
func (c *Controller) IsDone(param any) (done, isResume bool) {
	return c.curr.abort == nil, param != c.curr.param
}

// DisableLLL aborts the running event and every queued entry whose
// parameter is param, or all of them when param is nil (LLL). The role's
// abort functions report Done for each.
func (c *Controller) DisableLLL(param any) {
	c.assertContext(mayfly.LLL)
	if param == nil || param == c.curr.param {
		if c.curr.abort != nil && c.curr.param != nil {
			c.curr.abort(nil, c.curr.param)
		}
	}

	cur := c.pipeline.Begin()
	e := c.pipeline.Iter(&cur)
	for e != nil {
		if !e.IsAborted && (param == nil || e.Param.Param == param) {
			e.IsAborted = true
			e.Abort(&e.Param, e.Param.Param)
			// abort may queue more work; rescan from the start
			cur = c.pipeline.Begin()
		}
		e = c.pipeline.Iter(&cur)
	}
	c.log.Debug().Log("ull: lll disabled")
}

// DrainPipeline hands queued pipeline entries back to LLL (caller's
// tier). Sharing LLL's priority, they are resolved inline; otherwise they
// are copied to the resume ring and LLL is rung.
//
// Panics if the resume ring is full or the drain exceeds its bound.
func (c *Controller) DrainPipeline(caller mayfly.Context) {
	inline := c.prio.Equal(caller, mayfly.LLL)
	n := c.pipeline.Drain(func(e *Event) {
		if inline {
			c.resume(e)
			return
		}
		if err := c.resumeQ.Enqueue(*e); err != nil {
			c.fatal("ull: resume ring full")
		}
	})
	if n == 0 {
		return
	}
	c.stats.drains.Add(1)
	if m := c.stats.drainIterMax.LoadAcquire(); uint64(n) > m {
		c.stats.drainIterMax.StoreRelease(uint64(n))
	}
	if !inline && c.resumeQ.Len() > 0 {
		c.kick(caller, mayfly.LLL, &c.resumeJob)
	}
	c.log.Debug().Int("iterations", n).Str("caller", caller.String()).Log("ull: pipeline drained")
}

func (c *Controller) resumeAll(any) {
	for {
		e, ok := c.resumeQ.Take()
		if !ok {
			return
		}
		c.resume(&e)
	}
}

// resume re-resolves a drained entry in LLL.
func (c *Controller) resume(e *Event) {
	c.stats.resumes.Add(1)
	err := c.resolve(e.IsAbort, e.Abort, e.Prepare, &e.Param, e.IsResume, true)
	if err != nil && !errors.Is(err, ErrInProgress) {
		c.log.Err().Err(err).Bool("resume", e.IsResume).Log("ull: prepare failed")
	}
}
