// Copyright 2020 Zuo Xiang.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vnf

import (
	"bytes"
	"context"
	"testing"

	"github.com/xianglinks/meica-vnf/bridge"
	"github.com/xianglinks/meica-vnf/header"
	"github.com/xianglinks/meica-vnf/mbuf"
)

// buildXChunks builds a realistic 2-chunk X message: the first chunk
// is a full header.MaxChunkSize payload (the shape BuildResultChunks'
// template clone requires, spec §4.3/§9 "m_data_full" workaround), the
// second is a short tail chunk.
func buildXChunks(t *testing.T) [][]byte {
	t.Helper()
	first := bytes.Repeat([]byte{0xAB}, header.MaxChunkSize)
	second := []byte("tail")
	return [][]byte{
		buildChunk(t, header.MsgTypeX, 2, 0, 0, 0, first),
		buildChunk(t, header.MsgTypeX, 2, 1, 0, 0, second),
	}
}

func TestMEICALeaderProducesUWChunk(t *testing.T) {
	pool := mbuf.NewPool("main", 32)
	fwdPool := mbuf.NewPool("fwd", 32)
	port := &fakePort{bursts: [][][]byte{buildXChunks(t)}}

	br := &bridge.StubBridge{
		MEICAFunc: func(ctx context.Context, x, uw []byte, iter uint16, maxRounds uint32) (bool, uint16, []byte, error) {
			return false, 1, []byte("UW1"), nil
		},
	}

	m := NewMEICAMachine(port, pool, fwdPool, br, true, 4, 0, 0)
	if err := m.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	// The 2 X chunks were fast-forwarded during receive.
	if len(port.sent) != 3 {
		t.Fatalf("want 2 forwarded X chunks + 1 uW chunk = 3 sent buffers, got %d", len(port.sent))
	}
	uwBuf := port.sent[2]
	h := header.Unpack(uwBuf)
	if h.MsgType != header.MsgTypeUW {
		t.Fatalf("MsgType = %d, want MsgTypeUW", h.MsgType)
	}
	if h.IsFinal() {
		t.Fatal("want msg_flags final bit clear")
	}
	if h.IterNum != 1 {
		t.Fatalf("IterNum = %d, want 1", h.IterNum)
	}
	if h.TotalChunkNum != 1 || h.ChunkNum != 0 {
		t.Fatalf("want a single zero-indexed chunk, got total=%d chunk_num=%d", h.TotalChunkNum, h.ChunkNum)
	}
	if got := string(uwBuf[header.AllHeadersLen : header.AllHeadersLen+3]); got != "UW1" {
		t.Fatalf("payload = %q, want %q", got, "UW1")
	}
	if m.Info.MessageCount != 1 {
		t.Fatalf("MessageCount = %d, want 1", m.Info.MessageCount)
	}
}

func TestMEICAFollowerNonFinalUWAdvancesIteration(t *testing.T) {
	pool := mbuf.NewPool("main", 32)
	fwdPool := mbuf.NewPool("fwd", 32)
	uwChunk := buildChunk(t, header.MsgTypeUW, 1, 0, 0, 1, []byte("UW1"))
	port := &fakePort{bursts: [][][]byte{
		buildXChunks(t),
		{uwChunk},
	}}

	var gotUW []byte
	var gotIter uint16
	br := &bridge.StubBridge{
		MEICAFunc: func(ctx context.Context, x, uw []byte, iter uint16, maxRounds uint32) (bool, uint16, []byte, error) {
			gotUW = append([]byte(nil), uw...)
			gotIter = iter
			return true, 2, []byte("UW2"), nil
		},
	}

	m := NewMEICAMachine(port, pool, fwdPool, br, false, 4, 0, 0)
	if err := m.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if string(gotUW) != "UW1" {
		t.Fatalf("bridge received uW = %q, want %q", gotUW, "UW1")
	}
	if gotIter != 1 {
		t.Fatalf("bridge received iter_num = %d, want 1", gotIter)
	}

	// 2 forwarded X chunks + 1 synthesized result uW chunk; the received
	// uW chunk is not forwarded (RecvSendChunks only forwards msg_type==0).
	if len(port.sent) != 3 {
		t.Fatalf("want 3 sent buffers (2 X forwards + 1 result uW), got %d", len(port.sent))
	}
	result := port.sent[2]
	h := header.Unpack(result)
	if !h.IsFinal() {
		t.Fatal("want final flag set on the synthesized result")
	}
	if h.IterNum != 2 {
		t.Fatalf("IterNum = %d, want 2", h.IterNum)
	}
}

func TestMEICAFollowerFinalUWSkipsBridge(t *testing.T) {
	pool := mbuf.NewPool("main", 32)
	fwdPool := mbuf.NewPool("fwd", 32)
	finalChunk := buildChunk(t, header.MsgTypeUW, 1, 0, header.MsgFlagFinal, 5, []byte("RESULT"))
	port := &fakePort{bursts: [][][]byte{
		buildXChunks(t),
		{finalChunk},
	}}

	called := false
	br := &bridge.StubBridge{
		MEICAFunc: func(ctx context.Context, x, uw []byte, iter uint16, maxRounds uint32) (bool, uint16, []byte, error) {
			called = true
			return true, iter, uw, nil
		},
	}

	m := NewMEICAMachine(port, pool, fwdPool, br, false, 4, 0, 0)
	if err := m.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if called {
		t.Fatal("want bridge not called when the first uW chunk is already final")
	}

	if len(port.sent) != 3 {
		t.Fatalf("want 3 sent buffers (2 X forwards + 1 passthrough uW), got %d", len(port.sent))
	}
	passthrough := port.sent[2]
	h := header.Unpack(passthrough)
	if !h.IsFinal() {
		t.Fatal("want msg_flags preserved as final on passthrough")
	}
	if got := string(passthrough[header.AllHeadersLen : header.AllHeadersLen+6]); got != "RESULT" {
		t.Fatalf("payload = %q, want %q", got, "RESULT")
	}
}

func TestMEICABufferAccountingReturnsToBaseline(t *testing.T) {
	pool := mbuf.NewPool("main", 32)
	fwdPool := mbuf.NewPool("fwd", 32)
	port := &fakePort{bursts: [][][]byte{buildXChunks(t)}}

	br := &bridge.StubBridge{
		MEICAFunc: func(ctx context.Context, x, uw []byte, iter uint16, maxRounds uint32) (bool, uint16, []byte, error) {
			return false, 1, []byte("UW1"), nil
		},
	}

	m := NewMEICAMachine(port, pool, fwdPool, br, true, 4, 0, 0)
	if err := m.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if pool.Len() != pool.Cap() {
		t.Fatalf("main pool occupancy = %d, want baseline %d", pool.Len(), pool.Cap())
	}
	if fwdPool.Len() != fwdPool.Cap() {
		t.Fatalf("fwd pool occupancy = %d, want baseline %d", fwdPool.Len(), fwdPool.Cap())
	}
}
