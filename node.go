// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ull

import (
	"strconv"
	"sync/atomic"
	"time"

	"code.hybscloud.com/atomix"

	"code.hybscloud.com/ull/memq"
)

// PDUSize is the payload capacity of rx and tx nodes.
const PDUSize = 258

// NodeType classifies an rx node.
type NodeType uint8

const (
	// NodeNone marks a node that has not been filled.
	NodeNone NodeType = iota
	// NodeEventDone carries the end of a radio event.
	NodeEventDone
	// NodeDCPDU is a received data channel PDU.
	NodeDCPDU
	// NodeRelease asks the host side to recycle the node unseen.
	NodeRelease
	// NodeTerminate reports the end of a link to the host.
	NodeTerminate
	// NodeProfile carries a profiling record.
	NodeProfile

	// NodeUserStart is the first type left to applications.
	NodeUserStart NodeType = 0x80
)

func (t NodeType) String() string {
	switch t {
	case NodeNone:
		return "none"
	case NodeEventDone:
		return "event_done"
	case NodeDCPDU:
		return "dc_pdu"
	case NodeRelease:
		return "release"
	case NodeTerminate:
		return "terminate"
	case NodeProfile:
		return "profile"
	}
	if t >= NodeUserStart {
		return "user(" + strconv.Itoa(int(t-NodeUserStart)) + ")"
	}
	return "type(" + strconv.Itoa(int(t)) + ")"
}

// DoneExtraType selects the role done handler for an event-done node.
// DoneExtraNone runs no handler.
type DoneExtraType uint8

// DoneExtraNone is the extra type of an event with no role data.
const DoneExtraNone DoneExtraType = 0

// DoneExtra is role data the radio side attaches to an event-done node
// before emitting it.
type DoneExtra struct {
	Type DoneExtraType
	// Trx counts exchanges in the event.
	Trx uint16
	// CRCOK is set when at least one packet was received intact.
	CRCOK bool
	// Param is role-defined.
	Param any
}

// ProfileRecord is the optional timing telemetry emitted by the radio
// side.
type ProfileRecord struct {
	Latency    time.Duration
	LatencyMin time.Duration
	LatencyMax time.Duration
	CPU        time.Duration
	CPUMin     time.Duration
	CPUMax     time.Duration
}

type nodeClass uint8

const (
	classRx nodeClass = iota + 1
	classDone
)

// Node is an rx object. Nodes are pool-allocated and move between the
// radio, the ULL and the host through memq queues.
type Node struct {
	Type   NodeType
	Handle uint16
	// Next chains nodes handed back through RxMemRelease.
	Next *Node
	// Param is the owning *Header for event-done nodes, role-defined
	// otherwise.
	Param   any
	Extra   DoneExtra
	Profile ProfileRecord
	Len     uint16
	PDU     [PDUSize]byte

	link    *memq.Link[Node]
	ackLast uint32
	class   nodeClass
}

// Link returns the queue link a freshly allocated rx node carries.
func (n *Node) Link() *memq.Link[Node] {
	return n.link
}

func (n *Node) reset() {
	n.Type = NodeNone
	n.Handle = 0
	n.Next = nil
	n.Param = nil
	n.Extra = DoneExtra{}
	n.Profile = ProfileRecord{}
	n.Len = 0
	n.ackLast = 0
}

// TxNode is a transmit buffer owned by the host until it is queued for
// transmission, and returned through the tx-complete path.
type TxNode struct {
	Handle uint16
	// Ctrl marks a control PDU; control PDUs are not counted as completed
	// host data.
	Ctrl bool
	Len  uint16
	PDU  [PDUSize]byte
	Next *TxNode
}

// txAck is one acknowledged (or flushed) tx entry.
type txAck struct {
	handle uint16
	node   *TxNode
	mark   ackMark
}

type ackMark uint8

const (
	ackPending ackMark = iota
	ackCounted
	ackUncounted
)

// Header is the ULL half of a role object. Its reference count is held
// while radio events of the role are prepared or running.
type Header struct {
	ref      atomix.Uint32
	disabled atomic.Pointer[disabledCb]
}

type disabledCb struct {
	fn    func(param any)
	param any
}

// RefInc takes a reference (ULL context, before preparing an event).
func (h *Header) RefInc() uint32 {
	return h.ref.AddAcqRel(1)
}

// RefDec drops a reference.
//
// Panics on underflow.
func (h *Header) RefDec() uint32 {
	for {
		v := h.ref.LoadAcquire()
		if v == 0 {
			panic("ull: header reference underflow")
		}
		if h.ref.CompareAndSwapAcqRel(v, v-1) {
			return v - 1
		}
	}
}

// Refs returns the current reference count.
func (h *Header) Refs() uint32 {
	return h.ref.LoadAcquire()
}

// SetDisabledCallback installs a one-shot callback run in ULL-high when
// the reference count drops to zero.
func (h *Header) SetDisabledCallback(fn func(param any), param any) {
	h.disabled.Store(&disabledCb{fn: fn, param: param})
}

// clearDisabled removes and returns the pending callback.
func (h *Header) clearDisabled() *disabledCb {
	return h.disabled.Swap(nil)
}

// HeaderHolder is implemented by radio-side role objects that know their
// ULL header.
type HeaderHolder interface {
	ULLHeader() *Header
}

// headerOf maps an event parameter to its header, or nil.
func headerOf(param any) *Header {
	switch p := param.(type) {
	case *Header:
		return p
	case HeaderHolder:
		return p.ULLHeader()
	}
	return nil
}
