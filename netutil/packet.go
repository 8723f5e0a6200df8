// Copyright 2017 Intel Corporation.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package netutil implements the Packet Utilities component (spec
// §4.2): fast, unsafe.Pointer-based overlay parsing of the
// Ethernet/IPv4/UDP headers that precede the service header on every
// chunk, plus the checksum and header-rewrite helpers the state
// machine needs when it turns a received X chunk's buffer into an
// outgoing uW chunk.
//
// IPv6, ARP, VLAN, MPLS, GRE, GTP and TCP are out of scope (spec §1
// Non-goals: only UDP/IPv4 chunk traffic is handled), so only the
// Ethernet/IPv4/UDP quarter of the teacher's packet package survives
// here, generalized from its mbuf-backed Packet type to operate
// directly on an mbuf.Mbuf's byte slice.
package netutil

import (
	"unsafe"

	"github.com/xianglinks/meica-vnf/common"
	"github.com/xianglinks/meica-vnf/header"
	"github.com/xianglinks/meica-vnf/mbuf"
)

// EtherType values this module cares about.
const (
	IPv4EtherType = 0x0800
)

// IPv4 protocol numbers this module cares about.
const (
	UDPProtoID = 0x11
)

// EtherHdr is the Ethernet II header, laid out to match the wire
// format exactly so it can be overlaid directly onto a chunk buffer.
type EtherHdr struct {
	DAddr     [6]uint8
	SAddr     [6]uint8
	EtherType uint16
}

// IPv4Hdr is a minimal (no options) IPv4 header.
type IPv4Hdr struct {
	VersionIhl     uint8
	TypeOfService  uint8
	TotalLength    uint16
	PacketID       uint16
	FragmentOffset uint16
	TimeToLive     uint8
	NextProtoID    uint8
	HdrChecksum    uint16
	SrcAddr        uint32
	DstAddr        uint32
}

// UDPHdr is the UDP header.
type UDPHdr struct {
	SrcPort    uint16
	DstPort    uint16
	DgramLen   uint16
	DgramCksum uint16
}

// Packet overlays the Ethernet/IPv4/UDP headers of one chunk buffer.
// Ether, IPv4 and UDP alias the buffer passed to Parse; mutating
// through them mutates the buffer.
type Packet struct {
	Ether *EtherHdr
	IPv4  *IPv4Hdr
	UDP   *UDPHdr
}

// Parse overlays the Ethernet, IPv4 and UDP headers onto buf. buf must
// be at least header.AllHeadersLen bytes, and buf's IPv4 header is
// assumed to carry no options (a fixed 20-byte header, matching
// original_source's own rte_ipv4_hdr overlay): every chunk this module
// generates satisfies that, and nothing on the wire is expected to
// carry IPv4 options either, so IsValidChunk does not check for them
// (original_source's is_valid_chunk doesn't check for them either).
func Parse(buf []byte) *Packet {
	base := uintptr(unsafe.Pointer(&buf[0]))
	return &Packet{
		Ether: (*EtherHdr)(unsafe.Pointer(base)),
		IPv4:  (*IPv4Hdr)(unsafe.Pointer(base + header.EtherLen)),
		UDP:   (*UDPHdr)(unsafe.Pointer(base + header.EtherLen + header.IPv4Len)),
	}
}

// IsValidChunk reports whether buf looks like a chunk this module
// should act on (spec §4.2, and §8 testable property 2): EtherType is
// IPv4 and the IPv4 next-proto is UDP, exactly original_source's
// is_valid_chunk (meica_vnf_utils.hpp) and nothing more — it does not
// reject IPv4 options or check UDP.DgramLen against the buffer length,
// since a short trailing chunk padded to the Ethernet minimum frame
// size is still a valid chunk by that same two-condition contract. The
// length check below only guards the unsafe.Pointer overlay in Parse;
// it is not itself part of the chunk-classification contract.
func IsValidChunk(buf []byte) bool {
	if len(buf) < header.AllHeadersLen {
		return false
	}
	p := Parse(buf)
	if SwapBytesUint16(p.Ether.EtherType) != IPv4EtherType {
		return false
	}
	if p.IPv4.NextProtoID != UDPProtoID {
		return false
	}
	return true
}

// DisableUDPChecksum zeroes the UDP checksum field. The data path
// always disables UDP checksums (spec §4.2 design note: chunk
// integrity is the assembler's job via total/received-byte counts,
// not the NIC's); every chunk this module transmits has the field
// zeroed, either here or by RecalcIPv4UDPChecksum.
func DisableUDPChecksum(buf []byte) {
	Parse(buf).UDP.DgramCksum = 0
}

// RecalcIPv4UDPChecksum zeroes the UDP checksum (disabling it) and
// recomputes the IPv4 header checksum of buf in place. Must be called
// after any mutation of the IPv4 header (TTL, addresses, TotalLength,
// ...).
func RecalcIPv4UDPChecksum(buf []byte) {
	p := Parse(buf)
	p.UDP.DgramCksum = 0
	p.IPv4.HdrChecksum = 0
	p.IPv4.HdrChecksum = CalculateIPv4Checksum(p.IPv4)
}

// UpdateL3L4Header rewrites IPv4.TotalLength and UDP.DgramLen to match
// payloadLen bytes of application payload (service header + chunk
// data) following the UDP header, then recomputes the IPv4 checksum.
// Called whenever the state machine changes how much payload a
// buffer carries, e.g. building a uW chunk from a recycled X chunk
// buffer (spec §4.5).
func UpdateL3L4Header(buf []byte, payloadLen int) {
	p := Parse(buf)
	p.UDP.DgramLen = SwapBytesUint16(uint16(header.UDPLen + payloadLen))
	p.IPv4.TotalLength = SwapBytesUint16(uint16(header.IPv4Len + header.UDPLen + payloadLen))
	RecalcIPv4UDPChecksum(buf)
}

// DeepCopyChunk copies src's Ethernet/IPv4/UDP/service header and
// payload into dst, a buffer freshly obtained from a pool. It refuses
// to operate on a dst whose headroom differs from
// mbuf.StandardHeadroom or whose Segments() isn't 1 (spec §4.2: this
// module never deals with scattered multi-segment buffers).
func DeepCopyChunk(dst, src *mbuf.Mbuf) error {
	if dst.Headroom() != mbuf.StandardHeadroom {
		return common.WrapWithVNFError(nil,
			"DeepCopyChunk: destination headroom mismatch", common.HeadroomMismatch)
	}
	if dst.Segments() != 1 || src.Segments() != 1 {
		return common.WrapWithVNFError(nil,
			"DeepCopyChunk: multi-segment buffer", common.MultiSegmentBuffer)
	}
	return dst.SetData(src.Data())
}

// SwapBytesUint16 swaps the byte order of a 16-bit value, used to move
// multi-byte header fields between host and network order.
func SwapBytesUint16(x uint16) uint16 {
	return x<<8 | x>>8
}
