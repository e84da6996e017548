// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ull

import (
	"code.hybscloud.com/ull/mayfly"
	"code.hybscloud.com/ull/memq"
)

// RxAllocPeek returns the next free rx node without taking it, provided at
// least count nodes are ready. Returns nil otherwise (LLL).
func (c *Controller) RxAllocPeek(count int) *Node {
	c.assertContext(mayfly.LLL)
	if count > c.rxFree.Len() {
		return nil
	}
	p, ok := c.rxFree.Peek()
	if !ok {
		return nil
	}
	return *p
}

// RxAlloc takes a free rx node, or returns nil if none is ready (LLL).
// The node carries the link RxPut will use.
func (c *Controller) RxAlloc() *Node {
	c.assertContext(mayfly.LLL)
	n, ok := c.rxFree.Take()
	if !ok {
		return nil
	}
	return n
}

// RxPut queues a filled node for the demux, using the link the node
// carries (LLL or ULL). The demux does not run until RxSched.
func (c *Controller) RxPut(n *Node) {
	link := n.link
	if link == nil {
		c.fatal("ull: rx put of a node without a link")
	}
	n.link = nil
	c.rxPut(link, n)
}

// rxPut records the conn-ack position so the demux delivers acks queued
// before n ahead of it.
func (c *Controller) rxPut(link *memq.Link[Node], n *Node) {
	n.ackLast = c.connAck.Last()
	c.ullRx.Enqueue(link, n)
}

// RxSched rings the demux from LLL.
func (c *Controller) RxSched() {
	c.assertContext(mayfly.LLL)
	c.kick(mayfly.LLL, mayfly.ULLHigh, &c.demuxJob)
}

// LinkAlloc takes a spare link, or returns nil (LLL or ULL).
func (c *Controller) LinkAlloc() *memq.Link[Node] {
	return c.links.Acquire()
}

// LinkRelease returns a link taken with LinkAlloc or handed out by a
// dequeue.
func (c *Controller) LinkRelease(link *memq.Link[Node]) {
	c.links.Release(link)
}

// TxAckPut queues a radio tx acknowledgement for the demux (LLL). A nil
// tx marks a flushed entry. The demux picks it up on its next run.
//
// Panics if the ack ring is full.
func (c *Controller) TxAckPut(handle uint16, tx *TxNode) {
	c.assertContext(mayfly.LLL)
	if err := c.connAck.Enqueue(txAck{handle: handle, node: tx}); err != nil {
		c.fatal("ull: conn ack ring full")
	}
}

// RxRelease returns an rx node a handler retained and refills the radio
// ring (ULL-high).
func (c *Controller) RxRelease(n *Node) {
	c.assertContext(mayfly.ULLHigh)
	c.rxRelease(n)
	c.rxReplenish(1)
}

// rxRelease puts n back in the rx pool and returns its quota. Safe from
// any tier.
func (c *Controller) rxRelease(n *Node) {
	if n.class != classRx {
		c.fatal("ull: release of a non-rx node")
	}
	n.reset()
	n.link = nil
	c.rxPool.Release(n)
	c.rxQuota.Inc(1)
	c.stats.rxReleased.Add(1)
}

// rxReplenish moves up to max nodes from the pool into the radio ring,
// each with a link, bounded by the quota (ULL-high). A reservation whose
// link or node cannot be had is rolled back. Returns the count moved.
func (c *Controller) rxReplenish(max int) int {
	if q := c.rxQuota.Available(); max > q {
		max = q
	}
	n := 0
	for ; n < max; n++ {
		idx, err := c.rxFree.Reserve()
		if err != nil {
			break
		}
		link := c.links.Acquire()
		if link == nil {
			c.rxFree.Abort()
			break
		}
		node := c.rxPool.Acquire()
		if node == nil {
			c.links.Release(link)
			c.rxFree.Abort()
			break
		}
		node.reset()
		node.class = classRx
		node.link = link
		*c.rxFree.Slot(idx) = node
		c.rxFree.Publish(idx)
		c.rxQuota.Dec()
	}
	if n > 0 {
		c.stats.replenished.Add(uint64(n))
	}
	return n
}

func (c *Controller) replenishAll(any) {
	c.rxReplenish(c.opts.rxCount)
}
