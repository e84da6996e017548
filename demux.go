// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ull

import (
	"code.hybscloud.com/ull/mayfly"
	"code.hybscloud.com/ull/memq"
)

// rxDemux drains the ULL rx queue in ULL-high. Tx acks queued by the
// radio before an rx node are processed before that node; with no rx node
// pending, every queued ack is processed.
func (c *Controller) rxDemux(any) {
	c.stats.demuxRuns.Add(1)
	for {
		link, n := c.ullRx.Peek()
		if link != nil {
			if c.connAck.First() != n.ackLast {
				c.txAckDemux(n.ackLast)
				continue
			}
			if !c.rxDemuxRx(n) {
				return
			}
			continue
		}
		if c.connAck.Len() == 0 {
			return
		}
		c.txAckDemux(c.connAck.Last())
	}
}

// txAckDemux hands acks up to last to the tx ack handler and wakes the
// host.
func (c *Controller) txAckDemux(last uint32) {
	for c.connAck.First() != last {
		a, ok := c.connAck.Take()
		if !ok {
			break
		}
		c.txAckHandler(a.handle, a.node)
		c.stats.txAcks.Add(1)
	}
	c.llRxSched()
}

// rxDemuxRx dispatches the node at the head of the queue. Reports false
// when a handler refused it.
func (c *Controller) rxDemuxRx(n *Node) bool {
	switch n.Type {
	case NodeEventDone:
		link, _ := c.ullRx.Dequeue()
		c.eventDone(link, n)
		return true
	case NodeRelease, NodeTerminate, NodeProfile:
		c.forward()
		return true
	}

	h := c.rxHandlers[n.Type]
	if h == nil {
		if n.Type == NodeDCPDU {
			c.forward()
			return true
		}
		h = c.userHandler
	}
	if h == nil {
		c.log.Crit().Str("type", n.Type.String()).Int("handle", int(n.Handle)).Log("ull: unknown rx node type")
		panic("ull: unknown rx node type " + n.Type.String())
	}

	switch h(n) {
	case Forward:
		c.forward()
	case Retain:
		link, _ := c.ullRx.Dequeue()
		c.links.Release(link)
	case Nack:
		return false
	default:
		c.fatal("ull: invalid rx verdict")
	}
	return true
}

// forward moves the head node to the host queue.
func (c *Controller) forward() {
	link, n := c.ullRx.Dequeue()
	c.LLRxPut(link, n)
	c.llRxSched()
}

// LLRxPut queues n for the host with link (ULL-high). The node records
// the tx-complete position so completions queued before it are reported
// first.
func (c *Controller) LLRxPut(link *memq.Link[Node], n *Node) {
	n.ackLast = c.txCmplt.Last()
	c.llRx.Enqueue(link, n)
}

// LLTxAckPut queues a tx completion for the host (ULL-high). This is the
// default tx ack handler.
//
// Panics if the tx-complete ring is full.
func (c *Controller) LLTxAckPut(handle uint16, tx *TxNode) {
	if err := c.txCmplt.Enqueue(txAck{handle: handle, node: tx}); err != nil {
		c.fatal("ull: tx complete ring full")
	}
}

// llRxSched wakes the host.
func (c *Controller) llRxSched() {
	c.exec.Pend(mayfly.ULLHigh, mayfly.Thread)
}
