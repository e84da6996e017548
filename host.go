// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ull

import (
	"context"

	"code.hybscloud.com/iox"

	"code.hybscloud.com/ull/mayfly"
)

// rxWaitPolls is how many backoff polls RxWait makes before parking.
const rxWaitPolls = 4

// RxGet returns the next host rx node, or the tx completions that precede
// it (host thread).
//
// Completions are grouped by connection handle. When completions queued
// before the next rx node remain, RxGet returns them for one handle with a
// nil node; call it again until cmplt is zero. Control PDU completions are
// consumed without being counted. Release nodes are recycled here and
// never returned.
//
// The returned node stays queued; RxDequeue removes it.
func (c *Controller) RxGet() (n *Node, handle, cmplt uint16) {
	for {
		link, rx := c.llRx.Peek()
		if link == nil {
			first := c.txCmplt.First()
			handle, cmplt = c.txCmpltGet(&first, c.txCmplt.Last())
			c.txCmplt.AdvanceTo(first)
			c.stats.txCompleted.Add(uint64(cmplt))
			return nil, handle, cmplt
		}

		first := c.txCmplt.First()
		handle, cmplt = c.txCmpltGet(&first, rx.ackLast)
		c.txCmplt.AdvanceTo(first)
		if cmplt != 0 {
			c.stats.txCompleted.Add(uint64(cmplt))
			return nil, handle, cmplt
		}

		// count later completions now so the next call after this node
		// does not release their tx nodes twice
		last := c.txCmplt.Last()
		for first != last {
			c.txCmpltGet(&first, last)
		}

		if rx.Type == NodeRelease {
			link, _ = c.llRx.Dequeue()
			c.links.Release(link)
			c.rxRelease(rx)
			c.kick(mayfly.Thread, mayfly.ULLHigh, &c.replenishJob)
			continue
		}
		return rx, 0, 0
	}
}

// txCmpltGet counts the completions of the handle at *first, walking up to
// last and stopping at the first entry of another handle. Tx nodes are
// returned to the pool the first time an entry is seen. *first ends past
// the counted group.
func (c *Controller) txCmpltGet(first *uint32, last uint32) (handle, cmplt uint16) {
	cur := *first
	e, ok := c.txCmplt.IterTo(&cur, last)
	if !ok {
		return 0, 0
	}
	handle = e.handle
	for {
		switch e.mark {
		case ackPending:
			if e.node == nil || !e.node.Ctrl {
				e.mark = ackCounted
				cmplt++
			} else {
				e.mark = ackUncounted
			}
			if e.node != nil {
				c.txPool.Release(e.node)
				e.node = nil
			}
		case ackCounted:
			cmplt++
		}

		save := cur
		e, ok = c.txCmplt.IterTo(&cur, last)
		if !ok {
			break
		}
		if e.handle != handle {
			cur = save
			break
		}
	}
	*first = cur
	return handle, cmplt
}

// RxDequeue removes the node RxGet returned (host thread).
//
// Panics if the host queue is empty.
func (c *Controller) RxDequeue() *Node {
	link, n := c.llRx.Dequeue()
	c.links.Release(link)
	return n
}

// RxMemRelease returns a chain of host rx nodes linked through Next and
// refills the radio ring (host thread).
func (c *Controller) RxMemRelease(head *Node) {
	for n := head; n != nil; {
		next := n.Next
		c.rxRelease(n)
		n = next
	}
	c.kick(mayfly.Thread, mayfly.ULLHigh, &c.replenishJob)
}

// RxWait blocks the host until rx nodes or tx completions are queued, or
// ctx is done (host thread).
func (c *Controller) RxWait(ctx context.Context) error {
	var bo iox.Backoff
	for range rxWaitPolls {
		if c.rxReady() {
			return nil
		}
		bo.Wait()
	}
	for {
		if c.rxReady() {
			return nil
		}
		select {
		case <-c.rxSig:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Controller) rxReady() bool {
	return !c.llRx.Empty() || c.txCmplt.Len() > 0
}

// TxMemAcquire takes a tx node, or returns nil if none is free (host
// thread).
func (c *Controller) TxMemAcquire() *TxNode {
	return c.txPool.Acquire()
}

// TxMemRelease returns a tx node the host did not queue, and rings the
// demux so a handler waiting for tx memory can retry.
func (c *Controller) TxMemRelease(tx *TxNode) {
	*tx = TxNode{}
	c.txPool.Release(tx)
	c.kick(mayfly.Thread, mayfly.ULLHigh, &c.demuxJob)
}
