// Copyright 2017 Intel Corporation.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package netutil

import (
	"testing"

	"github.com/xianglinks/meica-vnf/header"
	"github.com/xianglinks/meica-vnf/mbuf"
)

func buildValidChunk(t *testing.T, payloadLen int) []byte {
	t.Helper()
	buf := make([]byte, header.AllHeadersLen+payloadLen)
	p := Parse(buf)
	p.Ether.EtherType = SwapBytesUint16(IPv4EtherType)
	p.IPv4.VersionIhl = 0x45
	p.IPv4.NextProtoID = UDPProtoID
	p.IPv4.SrcAddr = 0x0a000001
	p.IPv4.DstAddr = 0x0a000002
	UpdateL3L4Header(buf, header.Len+payloadLen)
	DisableUDPChecksum(buf)
	return buf
}

func TestIsValidChunkAcceptsWellFormedChunk(t *testing.T) {
	buf := buildValidChunk(t, 100)
	if !IsValidChunk(buf) {
		t.Fatal("want well-formed Ethernet/IPv4/UDP chunk to be valid")
	}
}

func TestIsValidChunkRejectsTruncatedBuffer(t *testing.T) {
	buf := buildValidChunk(t, 100)
	if IsValidChunk(buf[:header.AllHeadersLen-1]) {
		t.Fatal("want buffer shorter than AllHeadersLen to be invalid")
	}
}

func TestIsValidChunkRejectsWrongEtherType(t *testing.T) {
	buf := buildValidChunk(t, 100)
	Parse(buf).Ether.EtherType = 0x1234
	if IsValidChunk(buf) {
		t.Fatal("want non-IPv4 EtherType to be invalid")
	}
}

func TestIsValidChunkRejectsWrongNextProto(t *testing.T) {
	buf := buildValidChunk(t, 100)
	Parse(buf).IPv4.NextProtoID = 0x06 // TCP
	if IsValidChunk(buf) {
		t.Fatal("want non-UDP IPv4 next-proto to be invalid")
	}
}

// TestIsValidChunkAcceptsPaddedFrame pins down the spec's literal
// two-condition contract (EtherType is IPv4, IPv4 next-proto is UDP):
// a short trailing chunk padded out to the Ethernet minimum frame size
// carries a UDP.DgramLen smaller than the wire length between the UDP
// header and the end of buf, and must still classify as valid.
func TestIsValidChunkAcceptsPaddedFrame(t *testing.T) {
	buf := buildValidChunk(t, 4)
	buf = append(buf, make([]byte, 32)...) // trailing Ethernet padding
	if !IsValidChunk(buf) {
		t.Fatal("want a chunk padded past its UDP.DgramLen to still be valid")
	}
}

func TestUpdateL3L4HeaderRecomputesChecksum(t *testing.T) {
	buf := buildValidChunk(t, 50)
	before := Parse(buf).IPv4.HdrChecksum

	Parse(buf).IPv4.DstAddr = 0x0a0000ff
	UpdateL3L4Header(buf, header.Len+50)

	after := Parse(buf).IPv4.HdrChecksum
	if before == after {
		t.Fatal("want IPv4 checksum to change after destination address mutation")
	}
}

func TestDisableUDPChecksumZeroesField(t *testing.T) {
	buf := buildValidChunk(t, 10)
	Parse(buf).UDP.DgramCksum = 0xbeef
	DisableUDPChecksum(buf)
	if got := Parse(buf).UDP.DgramCksum; got != 0 {
		t.Fatalf("DgramCksum = %#x, want 0", got)
	}
}

func TestDeepCopyChunkCopiesDataBetweenPoolBuffers(t *testing.T) {
	pool := mbuf.NewPool("main", 2)
	src, err := pool.Get()
	if err != nil {
		t.Fatalf("Get src: %v", err)
	}
	dst, err := pool.Get()
	if err != nil {
		t.Fatalf("Get dst: %v", err)
	}

	chunk := buildValidChunk(t, 64)
	if err := src.SetData(chunk); err != nil {
		t.Fatalf("SetData: %v", err)
	}

	if err := DeepCopyChunk(dst, src); err != nil {
		t.Fatalf("DeepCopyChunk: %v", err)
	}
	if dst.DataLen() != src.DataLen() {
		t.Fatalf("dst.DataLen() = %d, want %d", dst.DataLen(), src.DataLen())
	}

	// Mutating src afterwards must not affect dst: DeepCopyChunk copies bytes,
	// it does not alias the source buffer.
	Parse(src.Data()).UDP.DgramCksum = 0x4242
	if Parse(dst.Data()).UDP.DgramCksum == 0x4242 {
		t.Fatal("DeepCopyChunk must not alias src's backing array")
	}
}

func TestDeepCopyChunkAllowsSelfCopy(t *testing.T) {
	pool := mbuf.NewPool("main", 1)
	src, _ := pool.Get()
	src.SetData(buildValidChunk(t, 10))

	if err := DeepCopyChunk(src, src); err != nil {
		t.Fatalf("copying a valid single-segment buffer onto itself should not error: %v", err)
	}
}
