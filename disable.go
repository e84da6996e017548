// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ull

import (
	"context"
	"errors"

	"golang.org/x/sync/semaphore"

	"code.hybscloud.com/ull/mayfly"
)

// Disable stops the radio activity of a role and waits until every event
// holding a reference on hdr has been retired (host thread). lllParam is
// passed to DisableLLL to select the role's radio events.
//
// Returns ErrAlreadyDisabled if hdr holds no reference, or ctx's error if
// ctx ends first. After a cancelled Disable the LLL job may still be
// queued; calling Disable again before it ran is a fatal reuse.
//
// Panics if the role does not quiesce within the disable timeout.
func (c *Controller) Disable(ctx context.Context, hdr *Header, lllParam any) error {
	if hdr.Refs() == 0 {
		return ErrAlreadyDisabled
	}

	sem := semaphore.NewWeighted(1)
	if !sem.TryAcquire(1) {
		panic("ull: fresh semaphore unavailable")
	}
	hdr.SetDisabledCallback(func(p any) { p.(*semaphore.Weighted).Release(1) }, sem)

	// the last done may have been retired before the callback was visible
	if hdr.Refs() == 0 {
		hdr.clearDisabled()
		return ErrAlreadyDisabled
	}

	if c.disableJob.Pending() {
		c.fatal("ull: disable job still pending")
	}
	c.disableJob.Param = lllParam
	if err := c.sched.Enqueue(mayfly.Thread, mayfly.LLL, false, &c.disableJob); err != nil {
		c.fatal("ull: disable job busy")
	}
	c.log.Debug().Int("refs", int(hdr.Refs())).Log("ull: disable requested")

	wctx, cancel := context.WithTimeout(ctx, c.opts.disableTimeout)
	defer cancel()
	if err := sem.Acquire(wctx, 1); err != nil {
		if ctx.Err() != nil {
			hdr.clearDisabled()
			return ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			c.log.Crit().Dur("timeout", c.opts.disableTimeout).Int("refs", int(hdr.Refs())).Log("ull: disable timed out")
			panic("ull: disable timed out")
		}
		c.fatal("ull: disable wait failed")
	}
	return nil
}
