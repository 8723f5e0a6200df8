// Copyright 2020 Zuo Xiang.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vnf

import (
	"context"
	"time"

	"github.com/xianglinks/meica-vnf/assembler"
	"github.com/xianglinks/meica-vnf/bridge"
	"github.com/xianglinks/meica-vnf/common"
	"github.com/xianglinks/meica-vnf/header"
	"github.com/xianglinks/meica-vnf/mbuf"
)

// MEICAMachine drives one peer's poll loop in the cooperative MEICA
// pipeline (spec §4.5): RESET -> FORWARD_X_CHUNKS -> {leader:
// PROCESS_CHUNKS, follower: RECV_UW_CHUNKS -> TRY_FORWARD_UW_CHUNKS ->
// [PROCESS_CHUNKS]} -> SEND_UW_CHUNKS -> FORWARD_X_CHUNKS, repeated
// until its Run context is cancelled.
type MEICAMachine struct {
	Port      assembler.Port
	Pool      *mbuf.Pool
	FwdPool   *mbuf.Pool
	Bridge    bridge.Bridge
	Leader    bool
	MaxRounds uint32

	// RecvTimeout bounds FORWARD_X_CHUNKS and RECV_UW_CHUNKS (spec
	// §9.4/9.5): zero means no deadline beyond Run's own context.
	RecvTimeout time.Duration

	Info Info

	xSet  *assembler.ChunkSet
	uwSet *assembler.ChunkSet
}

// NewMEICAMachine returns a machine in state RESET, with both chunk
// sets pre-sized to burstSize chunks (header.BurstSize unless an
// operator's config.Config.BurstSize overrides it, spec SPEC_FULL.md
// §6).
func NewMEICAMachine(port assembler.Port, pool, fwdPool *mbuf.Pool, br bridge.Bridge, leader bool, maxRounds uint32, recvTimeout time.Duration, burstSize int) *MEICAMachine {
	if burstSize <= 0 {
		burstSize = header.BurstSize
	}
	return &MEICAMachine{
		Port:        port,
		Pool:        pool,
		FwdPool:     fwdPool,
		Bridge:      br,
		Leader:      leader,
		MaxRounds:   maxRounds,
		RecvTimeout: recvTimeout,
		Info:        Info{State: StateReset},
		xSet:        assembler.NewChunkSet(burstSize),
		uwSet:       assembler.NewChunkSet(burstSize),
	}
}

// Run repeats RunOnce until ctx is cancelled.
func (m *MEICAMachine) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := m.RunOnce(ctx); err != nil {
			return err
		}
	}
}

// RunOnce executes one RESET..SEND_UW_CHUNKS cycle (original_source
// meica_vnf.cpp's VNF_STATE switch, transliterated to Go, §4.5).
func (m *MEICAMachine) RunOnce(ctx context.Context) error {
	m.reset()

	m.Info.State = StateForwardXChunks
	recvCtx, cancel := withRecvTimeout(ctx, m.RecvTimeout)
	err := assembler.RecvSendChunks(recvCtx, m.Pool, m.FwdPool, m.Port, m.xSet)
	cancel()
	if err != nil {
		if common.GetVNFErrorCode(err) == common.RecvTimeout {
			m.Info.LostMessageCount++
			m.reset()
			return nil
		}
		return err
	}

	if m.Leader {
		return m.processAndSend(ctx)
	}

	m.Info.State = StateRecvUWChunks
	recvCtx, cancel = withRecvTimeout(ctx, m.RecvTimeout)
	err = assembler.RecvSendChunks(recvCtx, m.Pool, m.FwdPool, m.Port, m.uwSet)
	cancel()
	if err != nil {
		if common.GetVNFErrorCode(err) == common.RecvTimeout {
			m.Info.LostMessageCount++
			m.reset()
			return nil
		}
		return err
	}

	m.Info.State = StateTryForwardUWChunks
	if m.uwSet.Headers()[0].IsFinal() {
		// The first uW chunk already carries the final result: pass the
		// received chunks through unchanged rather than calling the
		// bridge (spec §4.5 TRY_FORWARD_UW_CHUNKS, §8 testable property
		// 7; original_source checks uW_service_hdr_buf.front().msg_flags).
		return m.sendUW()
	}
	return m.processAndSend(ctx)
}

// processAndSend implements PROCESS_CHUNKS -> SEND_UW_CHUNKS (spec
// §4.5): repair/defragment X, defragment uW if present (otherwise
// treat it as empty with iter_num 0), call the bridge, synthesize a
// new uW chunk series, free the X chunks, and emit the result.
func (m *MEICAMachine) processAndSend(ctx context.Context) error {
	m.Info.State = StateProcessChunks
	if err := checkAndRecover(m.xSet); err != nil {
		return err
	}
	xBytes := m.xSet.Defragment()

	var uwBytes []byte
	var iterNum uint16
	if m.uwSet.Len() != 0 {
		uwBytes = m.uwSet.Defragment()
		iterNum = m.uwSet.LastHeader().IterNum
	}

	final, nextIterNum, newUW, err := m.Bridge.MEICA(ctx, xBytes, uwBytes, iterNum, m.MaxRounds)
	if err != nil {
		return common.WrapWithVNFError(err, "vnf: MEICA bridge call failed", common.BridgeFailure)
	}

	// original_source always clones X_chunk_buf.front() as the
	// outgoing uW chunks' Ethernet/IPv4/UDP skeleton (process_chunks'
	// "ugly workaround for poor default packet generation support").
	template := m.xSet.Chunk(0)
	hdrTemplate := m.xSet.Headers()[0]
	newChunks, err := assembler.BuildResultChunks(m.Pool, template, hdrTemplate, final, nextIterNum, newUW)
	if err != nil {
		return err
	}

	// The X chunks are useless now; only the freshly built uW chunks
	// get sent (original_source: "ONLY the uW_chunk_buf needs to be
	// sent").
	m.xSet.Reset()
	m.uwSet.Reset()
	for _, c := range newChunks {
		m.uwSet.Add(c, header.Unpack(c.Data()))
	}
	return m.sendUW()
}

// sendUW implements SEND_UW_CHUNKS: recompute every outgoing chunk's
// IPv4 checksum (original_source pre_send_chunks, run identically
// whether uwSet holds a freshly synthesized series or a final uW
// passed straight through — spec S4 preserves msg_flags as received),
// emit, then clear every buffer and return to FORWARD_X_CHUNKS.
func (m *MEICAMachine) sendUW() error {
	m.Info.State = StateSendUWChunks
	m.uwSet.RecalcChecksums()
	if _, err := m.Port.SendBurst(m.uwSet.Buffers()); err != nil {
		return err
	}
	m.Info.MessageCount++
	m.reset()
	return nil
}

func (m *MEICAMachine) reset() {
	m.Info.State = StateReset
	m.xSet.Reset()
	m.uwSet.Reset()
}
