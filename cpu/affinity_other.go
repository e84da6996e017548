// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !linux

package cpu

import "errors"

var errAffinityUnsupported = errors.New("cpu: affinity not supported on this platform")

func setAffinity(int) error {
	return errAffinityUnsupported
}
