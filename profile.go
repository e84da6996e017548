// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ull

import "code.hybscloud.com/ull/mayfly"

// profileReserve is how many rx nodes must be free before telemetry may
// take one.
const profileReserve = 3

// ProfileSend queues a profiling record for the host (LLL). The record is
// dropped, and false returned, when fewer than three rx nodes are free so
// telemetry never starves protocol traffic.
func (c *Controller) ProfileSend(rec ProfileRecord) bool {
	c.assertContext(mayfly.LLL)
	if c.RxAllocPeek(profileReserve) == nil {
		c.stats.profileDropped.Add(1)
		if !c.profileDropping {
			c.profileDropping = true
			c.log.Warning().Int("free", c.rxFree.Len()).Log("ull: dropping profile records")
		}
		return false
	}
	c.profileDropping = false

	n := c.RxAlloc()
	n.Type = NodeProfile
	n.Profile = rec
	c.RxPut(n)
	c.RxSched()
	c.stats.profileSent.Add(1)
	return true
}
