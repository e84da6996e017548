// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ull

import (
	"context"

	"code.hybscloud.com/atomix"

	"code.hybscloud.com/ull/cpu"
	"code.hybscloud.com/ull/internal/logger"
	"code.hybscloud.com/ull/mayfly"
	"code.hybscloud.com/ull/mem"
	"code.hybscloud.com/ull/memq"
	"code.hybscloud.com/ull/mfifo"
)

// RxVerdict tells the demux what a role handler did with an rx node.
type RxVerdict uint8

const (
	// Forward hands the node to the host queue.
	Forward RxVerdict = iota
	// Retain removes the node from the demux queue and leaves it with the
	// handler, which later returns it with RxRelease or forwards it with
	// LLRxPut. The node's link goes back to the link pool.
	Retain
	// Nack leaves the node at the head of the demux queue and stops the
	// demux until it is rung again (TxMemRelease rings it).
	Nack
)

// RxHandler processes one rx node in ULL-high. The node is still at the
// head of the demux queue while the handler runs.
type RxHandler func(n *Node) RxVerdict

// DoneHandler runs role bookkeeping for an event-done node in ULL-high.
type DoneHandler func(n *Node)

// TxAckHandler receives radio tx acknowledgements in ULL-high.
type TxAckHandler func(handle uint16, tx *TxNode)

// current is the event the radio is running.
type current struct {
	param   any
	isAbort IsAbortFunc
	abort   AbortFunc
}

// Controller is the ULL core: pools, rings and queues between the radio
// tier (LLL), the ULL tiers and the host thread, plus the prepare
// pipeline and its arbiter.
//
// Entry points belong to a tier and must be called from it. LLL and ULL
// entry points run on the executor goroutine (from mayfly jobs or role
// callbacks); host entry points run on one host goroutine.
type Controller struct {
	opts  Options
	log   *logger.Logger
	exec  *cpu.Executor
	sched *mayfly.Scheduler
	prio  mayfly.Priorities

	links    mem.Pool[memq.Link[Node]]
	rxPool   mem.Pool[Node]
	rxQuota  mem.Quota
	donePool mem.Pool[Node]
	txPool   mem.Pool[TxNode]

	rxFree   mfifo.Fifo[*Node] // ULL-high -> LLL
	doneFree mfifo.Fifo[*Node] // ULL-high -> LLL
	connAck  mfifo.Fifo[txAck] // LLL -> ULL-high
	txCmplt  mfifo.Fifo[txAck] // ULL-high -> thread

	ullRx memq.Queue[Node] // LLL/ULL -> ULL-high
	llRx  memq.Queue[Node] // ULL-high -> thread

	pipeline Pipeline
	resumeQ  mfifo.Fifo[Event]
	curr     current

	demuxJob     [mayfly.NumContexts]mayfly.Job
	replenishJob [mayfly.NumContexts]mayfly.Job
	resumeJob    [mayfly.NumContexts]mayfly.Job
	disableJob   mayfly.Job

	rxHandlers   [256]RxHandler
	userHandler  RxHandler
	doneHandlers [256]DoneHandler
	txAckHandler TxAckHandler

	profileDropping bool

	rxSig chan struct{}

	_       pad
	lllDone atomix.Uint64
	_       pad
	ullDone atomix.Uint64
	_       pad
	stats   counters
}

func newController(o Options) *Controller {
	c := &Controller{
		opts:  o,
		log:   o.log,
		rxSig: make(chan struct{}, 1),
	}
	prio := o.prio
	c.exec = cpu.New(cpu.Options{
		Priorities: &prio,
		Pin:        o.pin,
		CPU:        o.cpu,
		Spin:       o.spin,
		Logger:     o.log,
	})
	c.sched = c.exec.Scheduler()
	c.prio = prio
	c.exec.OnThreadPend(c.wakeThread)

	// one link per rx and done node, two queue sentinels, and the extra
	c.links.Init(o.rxCount + o.doneCount + 2 + o.linkExtra)
	c.rxPool.Init(o.rxCount)
	c.rxQuota.Init(o.rxCount, o.rxCount)
	c.donePool.Init(o.doneCount)
	c.txPool.Init(o.txCount)

	c.rxFree.Init(o.rxCount)
	c.doneFree.Init(o.doneCount)
	c.connAck.Init(o.connAckMax)
	c.txCmplt.Init(o.txCmpltMax)

	c.ullRx.Init(c.links.Acquire())
	c.llRx.Init(c.links.Acquire())

	c.pipeline.init(o.pipelineMax, o.drainSlack, o.log)
	c.resumeQ.Init(o.pipelineMax + o.drainSlack)

	for i := range mayfly.NumContexts {
		c.demuxJob[i].Init(c.rxDemux, nil)
		c.replenishJob[i].Init(c.replenishAll, nil)
		c.resumeJob[i].Init(c.resumeAll, nil)
	}
	c.disableJob.Init(func(param any) { c.DisableLLL(param) }, nil)

	c.txAckHandler = c.LLTxAckPut

	for range o.doneCount {
		n := c.donePool.Acquire()
		n.class = classDone
		n.link = c.links.Acquire()
		if err := c.doneFree.Enqueue(n); err != nil {
			panic("ull: done ring smaller than done pool")
		}
	}
	c.rxReplenish(o.rxCount)

	return c
}

// Run drives the core tiers until ctx is done. See [cpu.Executor.Run].
func (c *Controller) Run(ctx context.Context) error {
	c.log.Notice().
		Int("rx", c.opts.rxCount).
		Int("tx", c.opts.txCount).
		Int("done", c.opts.doneCount).
		Int("pipeline", c.opts.pipelineMax).
		Log("ull: controller started")
	err := c.exec.Run(ctx)
	c.log.Notice().Err(err).Log("ull: controller stopped")
	return err
}

// Executor returns the executor driving the core tiers. Tests step it
// directly instead of calling Run.
func (c *Controller) Executor() *cpu.Executor {
	return c.exec
}

// Scheduler returns the mayfly scheduler the tiers share.
func (c *Controller) Scheduler() *mayfly.Scheduler {
	return c.sched
}

// Pipeline returns the prepare pipeline for inspection.
func (c *Controller) Pipeline() *Pipeline {
	return &c.pipeline
}

// RegisterRx installs the ULL-high handler for rx nodes of type t.
// Must be called before Run.
//
// Panics for the types the demux handles itself.
func (c *Controller) RegisterRx(t NodeType, h RxHandler) {
	switch t {
	case NodeNone, NodeEventDone, NodeRelease, NodeTerminate, NodeProfile:
		panic("ull: rx type " + t.String() + " is reserved")
	}
	c.rxHandlers[t] = h
}

// RegisterDone installs the role done handler for extra type t.
// Must be called before Run.
//
// Panics for DoneExtraNone.
func (c *Controller) RegisterDone(t DoneExtraType, h DoneHandler) {
	if t == DoneExtraNone {
		panic("ull: done extra type none is reserved")
	}
	c.doneHandlers[t] = h
}

// SetTxAckHandler replaces the radio tx ack handler. The default passes
// every ack straight to LLTxAckPut. Must be called before Run.
func (c *Controller) SetTxAckHandler(h TxAckHandler) {
	if h == nil {
		h = c.LLTxAckPut
	}
	c.txAckHandler = h
}

// SetUserHandler installs the handler for rx types without a registered
// handler. Without one such a node is fatal. Must be called before Run.
func (c *Controller) SetUserHandler(h RxHandler) {
	c.userHandler = h
}

// DoneSynced reports whether ULL has processed every event done the radio
// reported.
func (c *Controller) DoneSynced() bool {
	return c.lllDone.LoadAcquire() == c.ullDone.LoadAcquire()
}

// kick rings the per-caller doorbell job jobs[caller] towards callee.
// A busy doorbell is already queued and its run covers this request.
func (c *Controller) kick(caller, callee mayfly.Context, jobs *[mayfly.NumContexts]mayfly.Job) {
	_ = c.sched.Enqueue(caller, callee, true, &jobs[caller])
}

func (c *Controller) wakeThread() {
	select {
	case c.rxSig <- struct{}{}:
	default:
	}
}

// counters are monotonic event counts read by Stats.
type counters struct {
	demuxRuns      atomix.Uint64
	eventsDone     atomix.Uint64
	txAcks         atomix.Uint64
	txCompleted    atomix.Uint64
	replenished    atomix.Uint64
	rxReleased     atomix.Uint64
	prepared       atomix.Uint64
	deferred       atomix.Uint64
	preempts       atomix.Uint64
	resumes        atomix.Uint64
	drains         atomix.Uint64
	drainIterMax   atomix.Uint64
	profileSent    atomix.Uint64
	profileDropped atomix.Uint64
}

// Stats is a point-in-time snapshot of controller counters and gauges.
type Stats struct {
	DemuxRuns      uint64
	EventsDone     uint64
	TxAcks         uint64
	TxCompleted    uint64
	Replenished    uint64
	RxReleased     uint64
	Prepared       uint64
	Deferred       uint64
	Preempts       uint64
	Resumes        uint64
	Drains         uint64
	DrainIterMax   uint64
	ProfileSent    uint64
	ProfileDropped uint64
	LLLDone        uint64
	ULLDone        uint64

	RxQuota     int // rx nodes not yet handed to the radio side
	RxFree      int // rx nodes ready for the radio side
	LinksFree   int
	TxFree      int
	PipelineLen int
}

// Stats returns a snapshot. Safe from any goroutine; fields are read
// individually, not as one atomic unit.
func (c *Controller) Stats() Stats {
	s := &c.stats
	return Stats{
		DemuxRuns:      s.demuxRuns.LoadAcquire(),
		EventsDone:     s.eventsDone.LoadAcquire(),
		TxAcks:         s.txAcks.LoadAcquire(),
		TxCompleted:    s.txCompleted.LoadAcquire(),
		Replenished:    s.replenished.LoadAcquire(),
		RxReleased:     s.rxReleased.LoadAcquire(),
		Prepared:       s.prepared.LoadAcquire(),
		Deferred:       s.deferred.LoadAcquire(),
		Preempts:       s.preempts.LoadAcquire(),
		Resumes:        s.resumes.LoadAcquire(),
		Drains:         s.drains.LoadAcquire(),
		DrainIterMax:   s.drainIterMax.LoadAcquire(),
		ProfileSent:    s.profileSent.LoadAcquire(),
		ProfileDropped: s.profileDropped.LoadAcquire(),
		LLLDone:        c.lllDone.LoadAcquire(),
		ULLDone:        c.ullDone.LoadAcquire(),
		RxQuota:        c.rxQuota.Available(),
		RxFree:         c.rxFree.Len(),
		LinksFree:      c.links.Free(),
		TxFree:         c.txPool.Free(),
		PipelineLen:    c.pipeline.Len(),
	}
}
