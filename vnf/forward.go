// Copyright 2020 Zuo Xiang.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vnf

import (
	"context"
	"time"

	"github.com/xianglinks/meica-vnf/assembler"
	"github.com/xianglinks/meica-vnf/netutil"
)

// microsleep is the pause between empty RX bursts in RunOnce below
// (spec §4.3/§4.5: "sleep ~1 ms and retry"); assembler.RecvChunks and
// assembler.RecvSendChunks keep their own copy of the same constant to
// avoid an import cycle back into this package.
const microsleep = time.Millisecond

// StoreForwardMachine is the state-free variant from spec §4.5: every
// burst it receives is filtered down to valid chunks, has its UDP
// checksum disabled, and is retransmitted, with no reassembly and no
// compute bridge call (original_source run_store_forward_loop, shared
// almost verbatim between cnn_vnf.cpp and meica_vnf.cpp).
type StoreForwardMachine struct {
	Port assembler.Port

	// ForwardedCount is the running total of chunks retransmitted,
	// mirroring original_source's fw_num debug counter.
	ForwardedCount uint64
}

// Run polls Port in bursts until ctx is cancelled.
func (m *StoreForwardMachine) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := m.RunOnce(); err != nil {
			return err
		}
	}
}

// RunOnce executes one receive-burst/forward-burst cycle. An empty
// burst sleeps briefly rather than busy-spinning the poll loop.
func (m *StoreForwardMachine) RunOnce() error {
	bufs, err := m.Port.RecvBurst()
	if err != nil {
		return err
	}
	if len(bufs) == 0 {
		time.Sleep(microsleep)
		return nil
	}

	toSend := bufs[:0]
	for _, b := range bufs {
		if !netutil.IsValidChunk(b) {
			continue
		}
		netutil.DisableUDPChecksum(b)
		toSend = append(toSend, b)
	}
	if len(toSend) == 0 {
		return nil
	}
	n, err := m.Port.SendBurst(toSend)
	m.ForwardedCount += uint64(n)
	return err
}
