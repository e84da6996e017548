// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ull

import (
	"code.hybscloud.com/ull/mayfly"
	"code.hybscloud.com/ull/memq"
)

// EventDoneExtra returns the role data of the done node the next
// EventDone will emit, or nil if none is free (LLL).
func (c *Controller) EventDoneExtra() *DoneExtra {
	c.assertContext(mayfly.LLL)
	p, ok := c.doneFree.Peek()
	if !ok {
		return nil
	}
	return &(*p).Extra
}

// EventDone emits an event-done node for hdr (nil for an event that holds
// no reference) and rings the demux (LLL). Returns nil if no done node is
// free.
func (c *Controller) EventDone(hdr *Header) *Node {
	c.assertContext(mayfly.LLL)
	n, ok := c.doneFree.Take()
	if !ok {
		return nil
	}
	c.lllDone.Add(1)
	link := n.link
	n.link = nil
	n.Type = NodeEventDone
	if hdr != nil {
		n.Param = hdr
	}
	c.rxPut(link, n)
	c.kick(mayfly.LLL, mayfly.ULLHigh, &c.demuxJob)
	return n
}

// eventDone retires one event-done node in ULL-high.
func (c *Controller) eventDone(link *memq.Link[Node], n *Node) {
	hdr, _ := n.Param.(*Header)
	if hdr != nil {
		hdr.RefDec()
	}

	if t := n.Extra.Type; t != DoneExtraNone {
		h := c.doneHandlers[t]
		if h == nil {
			c.log.Crit().Int("extra", int(t)).Log("ull: unknown done extra type")
			panic("ull: unknown done extra type")
		}
		h(n)
	}

	c.doneRelease(link, n)
	c.stats.eventsDone.Add(1)

	c.DrainPipeline(mayfly.ULLHigh)
	c.ullDone.Add(1)

	if hdr != nil && hdr.Refs() == 0 {
		if cb := hdr.clearDisabled(); cb != nil {
			c.log.Debug().Log("ull: role quiesced")
			cb.fn(cb.param)
		}
	}
}

// doneRelease recycles a done node with link back to the radio side.
func (c *Controller) doneRelease(link *memq.Link[Node], n *Node) {
	n.reset()
	n.link = link
	if err := c.doneFree.Enqueue(n); err != nil {
		c.fatal("ull: done ring full")
	}
}
