// Copyright 2020 Zuo Xiang.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vnf

import (
	"context"
	"time"
)

// withRecvTimeout derives a child context bounded by d from parent,
// unless d <= 0, in which case the receive has no deadline of its own
// beyond parent's (spec §9.4/9.5 decision: the receive timeout is a
// configurable parameter, not an always-on one).
func withRecvTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, d)
}
