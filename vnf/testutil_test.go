// Copyright 2020 Zuo Xiang.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vnf

import (
	"testing"

	"github.com/xianglinks/meica-vnf/header"
	"github.com/xianglinks/meica-vnf/netutil"
)

// fakePort is an assembler.Port double that replays pre-scripted
// bursts and records every buffer handed to SendBurst, used by every
// state machine test in this package instead of a real device.Port.
type fakePort struct {
	bursts [][][]byte
	sent   [][]byte
}

func (p *fakePort) RecvBurst() ([][]byte, error) {
	if len(p.bursts) == 0 {
		return nil, nil
	}
	b := p.bursts[0]
	p.bursts = p.bursts[1:]
	return b, nil
}

func (p *fakePort) SendBurst(bufs [][]byte) (int, error) {
	p.sent = append(p.sent, bufs...)
	return len(bufs), nil
}

// buildChunk constructs one well-formed chunk carrying payload, with
// its Ethernet/IPv4/UDP headers and the service header fields a test
// cares about, mirroring assembler_test.go's helper of the same shape.
func buildChunk(t *testing.T, msgType uint8, totalChunkNum, chunkNum uint16, msgFlags uint8, iterNum uint16, payload []byte) []byte {
	t.Helper()
	buf := make([]byte, header.AllHeadersLen+len(payload))
	p := netutil.Parse(buf)
	p.Ether.EtherType = netutil.SwapBytesUint16(netutil.IPv4EtherType)
	p.IPv4.VersionIhl = 0x45
	p.IPv4.NextProtoID = netutil.UDPProtoID
	header.Pack(buf, header.Header{
		MsgType:       msgType,
		MsgFlags:      msgFlags,
		TotalChunkNum: totalChunkNum,
		ChunkNum:      chunkNum,
		ChunkLen:      uint16(header.Len + len(payload)),
		IterNum:       iterNum,
	})
	copy(buf[header.AllHeadersLen:], payload)
	netutil.UpdateL3L4Header(buf, header.Len+len(payload))
	netutil.DisableUDPChecksum(buf)
	return buf
}
