// Copyright 2020 Zuo Xiang.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package assembler

import (
	"context"
	"time"

	"github.com/xianglinks/meica-vnf/common"
	"github.com/xianglinks/meica-vnf/header"
	"github.com/xianglinks/meica-vnf/mbuf"
	"github.com/xianglinks/meica-vnf/netutil"
)

// microsleep is the pause after an empty RX burst (spec §4.3/§4.5:
// "If a burst yields zero, sleep ~1 ms and retry"), the same value
// vnf.StoreForwardMachine.RunOnce uses for its own poll loop.
const microsleep = time.Millisecond

// Port is the subset of device.Port the assembler needs: one burst
// read, one burst write. Defined here, rather than imported from
// device, so tests can supply a fake without touching a real NIC.
type Port interface {
	RecvBurst() ([][]byte, error)
	SendBurst(bufs [][]byte) (int, error)
}

// newRecvTimeout builds the error RecvChunks/RecvSendChunks return when
// ctx is done before a message finishes arriving: a VNFError with code
// common.RecvTimeout, whether ctx hit its deadline or was cancelled. The original implementation
// left this unhandled ("TODO: Add a timeout during receiving chunks
// for potential chunk losses"); this module closes that gap by taking
// a context.Context and treating its deadline as the VNF-level receive
// timeout (spec §9 decision on the open question).
func newRecvTimeout() error {
	return common.WrapWithVNFError(context.DeadlineExceeded,
		"assembler: timed out waiting for the rest of a message", common.RecvTimeout)
}

// RecvChunks polls port until set holds a complete message (spec §4.3,
// original_source recv_chunks): every valid chunk read is pulled from
// pool, unpacked and added to set; invalid or duplicate chunks are
// dropped and their buffer freed immediately. Returns when the last
// chunk of the message has arrived, ctx is done, or pool is exhausted.
func RecvChunks(ctx context.Context, pool *mbuf.Pool, port Port, set *ChunkSet) error {
	for {
		select {
		case <-ctx.Done():
			return newRecvTimeout()
		default:
		}

		bufs, err := port.RecvBurst()
		if err != nil {
			return err
		}
		if len(bufs) == 0 {
			time.Sleep(microsleep)
			continue
		}
		for _, raw := range bufs {
			if err := absorb(pool, set, raw); err != nil {
				return err
			}
		}
		if set.Complete() {
			return nil
		}
	}
}

// RecvSendChunks is RecvChunks plus the store-and-forward fast path
// used by every MEICA node, leader or follower (spec §4.5, original_source
// recv_send_chunks): every X-type chunk seen, regardless of whether
// the set being filled is for X or uW chunks, is deep-copied into
// fwdPool and retransmitted immediately, in addition to being kept for
// local reassembly.
func RecvSendChunks(ctx context.Context, pool, fwdPool *mbuf.Pool, port Port, set *ChunkSet) error {
	for {
		select {
		case <-ctx.Done():
			return newRecvTimeout()
		default:
		}

		bufs, err := port.RecvBurst()
		if err != nil {
			return err
		}
		if len(bufs) == 0 {
			time.Sleep(microsleep)
			continue
		}
		var fwdBufs []*mbuf.Mbuf
		var toForward [][]byte
		for _, raw := range bufs {
			m, kept, err := absorbKeep(pool, set, raw)
			if err != nil {
				return err
			}
			if kept && header.Unpack(m.Data()).MsgType == header.MsgTypeX {
				fwd, err := fwdPool.Get()
				if err != nil {
					return err
				}
				if err := netutil.DeepCopyChunk(fwd, m); err != nil {
					return err
				}
				netutil.DisableUDPChecksum(fwd.Data())
				fwdBufs = append(fwdBufs, fwd)
				toForward = append(toForward, fwd.Data())
			}
		}
		if len(toForward) > 0 {
			_, sendErr := port.SendBurst(toForward)
			// The fast-forward copies are only ever retained long enough
			// to reach the wire (spec §3 "Fast-forward"); SendBurst is
			// synchronous here, so they return to fwdPool immediately
			// instead of waiting on a TX-ring completion callback.
			for _, fwd := range fwdBufs {
				fwd.Free()
			}
			if sendErr != nil {
				return sendErr
			}
		}
		if set.Complete() {
			return nil
		}
	}
}

// absorb validates raw, adds it to set if valid and not a duplicate,
// and frees the pool buffer it used otherwise.
func absorb(pool *mbuf.Pool, set *ChunkSet, raw []byte) error {
	_, _, err := absorbKeep(pool, set, raw)
	return err
}

// absorbKeep is absorb but also reports the buffer it populated and
// whether the set kept it, for RecvSendChunks's forwarding decision.
func absorbKeep(pool *mbuf.Pool, set *ChunkSet, raw []byte) (*mbuf.Mbuf, bool, error) {
	if !netutil.IsValidChunk(raw) {
		return nil, false, nil
	}
	m, err := pool.Get()
	if err != nil {
		return nil, false, err
	}
	if err := m.SetData(raw); err != nil {
		m.Free()
		return nil, false, err
	}
	h := header.Unpack(m.Data())
	if !set.Add(m, h) {
		m.Free()
		return nil, false, nil
	}
	return m, true, nil
}
