// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !ulldebug

package ull

import "code.hybscloud.com/ull/mayfly"

// DebugEnabled is false unless built with the ulldebug tag.
const DebugEnabled = false

func (c *Controller) assertContext(mayfly.Context) {}
