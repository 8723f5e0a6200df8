// Copyright 2020 Zuo Xiang.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package assembler implements the Message Assembler component (spec
// §4.3): accumulating a message's chunks as they arrive, detecting and
// recovering out-of-order delivery, reassembling the message bytes,
// and slicing an outgoing payload back into chunks.
package assembler

import (
	"sort"

	"github.com/golang-collections/go-datastructures/bitarray"
	"github.com/xianglinks/meica-vnf/common"
	"github.com/xianglinks/meica-vnf/header"
	"github.com/xianglinks/meica-vnf/mbuf"
	"github.com/xianglinks/meica-vnf/netutil"
)

// ChunkSet accumulates the chunks of one in-flight message. It owns
// every *mbuf.Mbuf it holds until Reset or Defragment's caller frees
// them explicitly.
type ChunkSet struct {
	chunks  []*mbuf.Mbuf
	headers []header.Header
	seen    bitarray.BitArray
	seenCap uint64
	dups    int
}

// NewChunkSet returns an empty set with room pre-reserved for
// capacityHint chunks.
func NewChunkSet(capacityHint int) *ChunkSet {
	return &ChunkSet{
		chunks:  make([]*mbuf.Mbuf, 0, capacityHint),
		headers: make([]header.Header, 0, capacityHint),
	}
}

// Len returns the number of distinct chunks accumulated so far.
func (s *ChunkSet) Len() int { return len(s.chunks) }

// DuplicateCount returns how many chunks Add rejected as repeats of an
// already-seen chunk_num. Duplicate detection is a supplement beyond
// the original implementation, which silently double-counted repeats
// (spec §9 enrichment).
func (s *ChunkSet) DuplicateCount() int { return s.dups }

// Headers returns the headers accumulated so far, in arrival order.
func (s *ChunkSet) Headers() []header.Header { return s.headers }

// LastHeader returns the most recently accumulated header. Callers
// only call this once Len() > 0.
func (s *ChunkSet) LastHeader() header.Header {
	return s.headers[len(s.headers)-1]
}

// Chunk returns the i'th chunk's buffer, in current order. Used to
// pick the template buffer BuildResultChunks clones when synthesizing
// an outgoing uW message (spec §4.5, original_source's data_full
// workaround).
func (s *ChunkSet) Chunk(i int) *mbuf.Mbuf { return s.chunks[i] }

// Buffers returns the raw bytes of every chunk, in current order,
// ready to hand to a Port's SendBurst.
func (s *ChunkSet) Buffers() [][]byte {
	out := make([][]byte, len(s.chunks))
	for i, m := range s.chunks {
		out[i] = m.Data()
	}
	return out
}

// RecalcChecksums recomputes the IPv4 checksum of every chunk in the
// set, mirroring original_source's pre_send_chunks step run right
// before transmitting a buffered chunk set.
func (s *ChunkSet) RecalcChecksums() {
	for _, m := range s.chunks {
		netutil.RecalcIPv4UDPChecksum(m.Data())
	}
}

// Add records m (already validated and unpacked to h by the caller) in
// the set. It reports whether m was kept: a chunk_num seen before is
// rejected as a duplicate, and the caller must free m itself in that
// case, since the set does not take ownership of rejected buffers.
func (s *ChunkSet) Add(m *mbuf.Mbuf, h header.Header) bool {
	if s.seen == nil {
		s.seenCap = uint64(h.TotalChunkNum)
		if s.seenCap == 0 {
			s.seenCap = 1
		}
		s.seen = bitarray.NewBitArray(s.seenCap)
	}
	if uint64(h.ChunkNum) < s.seenCap {
		if wasSet, _ := s.seen.GetBit(uint64(h.ChunkNum)); wasSet {
			s.dups++
			return false
		}
		_ = s.seen.SetBit(uint64(h.ChunkNum))
	}
	s.chunks = append(s.chunks, m)
	s.headers = append(s.headers, h)
	return true
}

// Complete reports whether the most recently added chunk is the last
// chunk of its message (chunk_num == total_chunk_num-1), the signal
// the receive loop uses to stop polling for more (spec §4.3,
// original_source recv_chunks/recv_send_chunks).
func (s *ChunkSet) Complete() bool {
	if len(s.headers) == 0 {
		return false
	}
	last := s.LastHeader()
	return last.ChunkNum == last.TotalChunkNum-1
}

// Check reports whether every chunk of the message has arrived, in
// order: the set holds exactly total_chunk_num chunks and their
// chunk_num fields run 0..total_chunk_num-1 without gaps (spec §4.3
// testable property 3/4).
func (s *ChunkSet) Check() bool {
	if len(s.headers) == 0 {
		return false
	}
	total := s.LastHeader().TotalChunkNum
	if uint16(len(s.headers)) != total {
		return false
	}
	var expected uint16
	for _, h := range s.headers {
		if h.ChunkNum != expected {
			return false
		}
		expected++
	}
	return true
}

// Recover sorts chunks and headers into chunk_num order in place,
// using the same swap-based permutation the original implementation
// uses (original_source's reorder<T>), rather than allocating a second
// slice. order[i] must hold the current index of the chunk that
// belongs at position i, exactly what original_source's recover_chunks
// builds by std::sort-ing an array of identity indices by chunk_num
// before calling reorder<T> — so order is built the same way here:
// sort identity indices by the chunk_num of the header they point to.
// It returns a LostChunk VNFError if the set does not hold exactly
// total_chunk_num chunks — out-of-order delivery can be fixed by
// sorting, but a dropped chunk cannot (spec §4.3 edge case,
// original_source recover_chunks: "Fixing lost chunks is currently not
// implemented").
func (s *ChunkSet) Recover() error {
	if len(s.headers) == 0 {
		return nil
	}
	total := s.LastHeader().TotalChunkNum
	if uint16(len(s.headers)) != total {
		return common.WrapWithVNFError(nil,
			"assembler: cannot recover a chunk set with missing chunks", common.LostChunk)
	}

	order := make([]int, len(s.headers))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return s.headers[order[a]].ChunkNum < s.headers[order[b]].ChunkNum
	})
	reorder(s.chunks, order)
	reorderHeaders(s.headers, append([]int(nil), order...))
	return nil
}

// reorder permutes vec in place so that vec[i] ends up holding the
// element whose original index was order[i], mirroring
// original_source's in-place swap-based reorder<T> rather than
// allocating a second slice per field.
func reorder(vec []*mbuf.Mbuf, order []int) {
	order = append([]int(nil), order...)
	for v := 0; v < len(vec)-1; v++ {
		if order[v] == v {
			continue
		}
		o := v + 1
		for ; o < len(order); o++ {
			if order[o] == v {
				break
			}
		}
		vec[v], vec[order[v]] = vec[order[v]], vec[v]
		order[v], order[o] = order[o], order[v]
	}
}

func reorderHeaders(vec []header.Header, order []int) {
	for v := 0; v < len(vec)-1; v++ {
		if order[v] == v {
			continue
		}
		o := v + 1
		for ; o < len(order); o++ {
			if order[o] == v {
				break
			}
		}
		vec[v], vec[order[v]] = vec[order[v]], vec[v]
		order[v], order[o] = order[o], order[v]
	}
}

// Defragment concatenates every chunk's payload, in current order, and
// returns the reassembled message bytes. Callers call Check or Recover
// first to ensure the set is actually in order (spec §4.3: "ASSUME
// result chunks are always in order", preserved from
// original_source).
func (s *ChunkSet) Defragment() []byte {
	var out []byte
	for i, m := range s.chunks {
		h := s.headers[i]
		out = append(out, m.Data()[header.AllHeadersLen:header.AllHeadersLen+h.PayloadLen()]...)
	}
	return out
}

// Reset returns every chunk buffer in the set to its pool and clears
// the set for reuse.
func (s *ChunkSet) Reset() {
	for _, m := range s.chunks {
		m.Free()
	}
	s.chunks = s.chunks[:0]
	s.headers = s.headers[:0]
	s.seen = nil
	s.seenCap = 0
	s.dups = 0
}
