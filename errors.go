// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ull

import (
	"errors"

	"code.hybscloud.com/iox"

	"code.hybscloud.com/ull/mayfly"
)

// ErrWouldBlock indicates a bounded resource is exhausted right now.
//
// Returned when a ring is full or a pool or quota is empty. It is a control
// flow signal: the caller skips or defers the optional work locally and
// never propagates it as a failure.
//
// This is an alias for [iox.ErrWouldBlock] for ecosystem consistency.
var ErrWouldBlock = iox.ErrWouldBlock

// ErrBusy is returned by mayfly enqueue for a job that is still pending.
// Alias of [mayfly.ErrBusy].
var ErrBusy = mayfly.ErrBusy

// ErrAlreadyDisabled is returned by Disable when the role has no radio
// events in flight.
var ErrAlreadyDisabled = errors.New("ull: already disabled")

// ErrInProgress is returned by Prepare when the event was deferred into
// the prepare pipeline instead of started.
var ErrInProgress = errors.New("ull: prepare deferred")

// IsWouldBlock reports whether err indicates the operation would block.
// Delegates to [iox.IsWouldBlock] for wrapped error support.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// IsSemantic reports whether err is a control flow signal (not a failure).
// Delegates to [iox.IsSemantic].
func IsSemantic(err error) bool {
	return iox.IsSemantic(err)
}

// IsNonFailure reports whether err represents a non-failure condition.
// Delegates to [iox.IsNonFailure].
func IsNonFailure(err error) bool {
	return iox.IsNonFailure(err)
}

// fatal logs at critical level and panics. Invariant violations are never
// returned as errors.
func (c *Controller) fatal(msg string) {
	c.log.Crit().Log(msg)
	panic(msg)
}
