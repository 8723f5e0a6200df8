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

// CNNMachine drives the CNN role's poll loop (spec §4.5): RESET ->
// RECV_X_CHUNKS -> PROCESS_CHUNKS -> SEND_RESULT_CHUNKS -> RECV_X_CHUNKS,
// repeated until its Run context is cancelled (spec §4.6 shutdown).
type CNNMachine struct {
	Port   assembler.Port
	Pool   *mbuf.Pool
	Bridge bridge.Bridge

	// RecvTimeout bounds RECV_X_CHUNKS (spec §9.4/9.5): zero means no
	// deadline beyond Run's own context.
	RecvTimeout time.Duration

	Info Info

	// LastBridgeResult is the bytes cnn() returned on the most recent
	// PROCESS_CHUNKS step. The original design never substitutes them
	// into the outgoing chunks (spec §9.1, preserved here rather than
	// fixed per SPEC_FULL.md §9 decision 1); exposing them lets a
	// caller or test observe the discrepancy without reaching into
	// private state.
	LastBridgeResult []byte

	set *assembler.ChunkSet
}

// NewCNNMachine returns a machine in state RESET, with its chunk set
// pre-sized to burstSize chunks (header.BurstSize unless an operator's
// config.Config.BurstSize overrides it, spec SPEC_FULL.md §6).
func NewCNNMachine(port assembler.Port, pool *mbuf.Pool, br bridge.Bridge, recvTimeout time.Duration, burstSize int) *CNNMachine {
	if burstSize <= 0 {
		burstSize = header.BurstSize
	}
	return &CNNMachine{
		Port:        port,
		Pool:        pool,
		Bridge:      br,
		RecvTimeout: recvTimeout,
		Info:        Info{State: StateReset},
		set:         assembler.NewChunkSet(burstSize),
	}
}

// Run repeats RunOnce until ctx is cancelled, returning nil on clean
// shutdown and any error RunOnce returns otherwise (spec §7: anything
// beyond a dropped/reordered/timed-out chunk is fatal-class).
func (m *CNNMachine) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := m.RunOnce(ctx); err != nil {
			return err
		}
	}
}

// RunOnce executes one RESET..SEND_RESULT_CHUNKS cycle. A receive
// timeout is not an error from Run's point of view: it counts a lost
// message and returns to RESET (spec §9.4/9.5 decision).
func (m *CNNMachine) RunOnce(ctx context.Context) error {
	m.reset()

	m.Info.State = StateRecvXChunks
	recvCtx, cancel := withRecvTimeout(ctx, m.RecvTimeout)
	err := assembler.RecvChunks(recvCtx, m.Pool, m.Port, m.set)
	cancel()
	if err != nil {
		if common.GetVNFErrorCode(err) == common.RecvTimeout {
			m.Info.LostMessageCount++
			m.reset()
			return nil
		}
		return err
	}

	m.Info.State = StateProcessChunks
	if err := checkAndRecover(m.set); err != nil {
		return err
	}
	xBytes := m.set.Defragment()
	resultBytes, err := m.Bridge.CNN(ctx, xBytes)
	if err != nil {
		return common.WrapWithVNFError(err, "vnf: CNN bridge call failed", common.BridgeFailure)
	}
	m.LastBridgeResult = resultBytes

	m.Info.State = StateSendResultChunks
	m.set.RecalcChecksums()
	if _, err := m.Port.SendBurst(m.set.Buffers()); err != nil {
		return err
	}
	m.Info.MessageCount++
	m.reset()
	return nil
}

func (m *CNNMachine) reset() {
	m.Info.State = StateReset
	m.set.Reset()
}

// checkAndRecover runs the Check/Recover sequence shared by both
// roles' PROCESS_CHUNKS step (spec §4.5): reorder first if the set is
// merely out of order, then fail fatally if chunks are actually
// missing (spec §7: lost chunk is fatal-class in the current design).
func checkAndRecover(set *assembler.ChunkSet) error {
	if set.Check() {
		return nil
	}
	if err := set.Recover(); err != nil {
		return err
	}
	if !set.Check() {
		return common.WrapWithVNFError(nil,
			"vnf: message incomplete after reorder recovery", common.LostChunk)
	}
	return nil
}
