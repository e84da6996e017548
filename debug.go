// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build ulldebug

package ull

import "code.hybscloud.com/ull/mayfly"

// DebugEnabled is true in builds tagged ulldebug. Core-tier entry points
// then check that the executor is running the tier they belong to.
const DebugEnabled = true

func (c *Controller) assertContext(want mayfly.Context) {
	// the thread tier has no executor record to check against
	if want == mayfly.Thread {
		return
	}
	if !c.exec.InContext(want) {
		c.fatal("ull: called outside " + want.String() + " (running " + c.exec.Current().String() + ")")
	}
}
