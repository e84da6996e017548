// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ull provides the upper link layer core of a BLE link-layer
// controller: the plumbing between the radio tier, the ULL tiers and the
// host thread.
//
// Four tiers take part, from highest priority to lowest:
//
//   - LLL: the radio tier (lower link layer)
//   - ULL-high and ULL-low: deferred protocol processing
//   - Thread: the host
//
// LLL and the ULL tiers run on one executor goroutine ([cpu.Executor]),
// which always runs the highest pended tier to completion. The host runs
// on its own goroutine. Tiers talk through single-producer single-consumer
// queues ([memq]) and rings ([mfifo]), lock-free pools ([mem]) and deferred
// calls ([mayfly]); no mutex guards any of it. The only blocking call is
// Disable.
//
// # Quick Start
//
//	c := ull.New().
//	    RxCount(16).
//	    TxCount(16).
//	    Build()
//
//	go c.Run(ctx) // core tiers
//
//	for { // host
//	    if err := c.RxWait(ctx); err != nil {
//	        return err
//	    }
//	    n, handle, cmplt := c.RxGet()
//	    if n == nil {
//	        if cmplt > 0 {
//	            completed(handle, cmplt)
//	        }
//	        continue
//	    }
//	    c.RxDequeue()
//	    deliver(n)
//	    c.RxMemRelease(n)
//	}
//
// # Rx Path
//
// ULL-high keeps the radio-facing ring of free rx nodes full, bounded by
// the rx quota. The radio takes a node with RxAlloc, fills it and queues
// it with RxPut; RxSched rings the demux. The demux (ULL-high) interleaves
// radio tx acks with rx nodes in the order the radio produced them and
// dispatches each node:
//
//   - event-done nodes retire a radio event (see below)
//   - release, terminate and profile nodes go to the host queue
//   - other types go to the handler registered with RegisterRx, whose
//     verdict forwards, retains or refuses the node
//
// The host reads the host queue with RxGet, which also reports tx
// completions queued before each node. Nodes come back through
// RxMemRelease, returning quota and triggering a refill.
//
// # Radio Events
//
// A role prepares a radio event with Prepare, from LLL. If the radio is
// idle the event starts; otherwise it waits in the prepare pipeline.
// Preempt lets the oldest waiting event ask the running one to yield.
// Done ends an event and emits an event-done node. Retiring that node in
// ULL-high drops the role header's reference, runs the role done handler,
// and drains the pipeline back to LLL.
//
// Disable blocks the host until a role's events have all been retired.
//
// # Error Handling
//
// Exhausted resources are reported as nil results or [ErrWouldBlock] and
// are handled locally. Broken invariants (quota underflow, dequeue from an
// empty queue, a full event ring, an unknown rx type, a disable timeout)
// log at critical level and panic.
//
// # Configuration
//
// Capacities are fixed at Build. They can also come from a TOML file:
//
//	cfg, err := ull.LoadConfig("ull.toml")
//	if err != nil {
//	    return err
//	}
//	b, err := cfg.Builder(os.Stderr)
//	if err != nil {
//	    return err
//	}
//	c := b.Build()
//
// # Debug Builds
//
// With the ulldebug build tag, LLL and ULL entry points check that the
// executor is running their tier.
package ull
