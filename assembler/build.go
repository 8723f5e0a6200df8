// Copyright 2020 Zuo Xiang.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package assembler

import (
	"github.com/pkg/errors"
	"github.com/xianglinks/meica-vnf/header"
	"github.com/xianglinks/meica-vnf/mbuf"
	"github.com/xianglinks/meica-vnf/netutil"
)

// BuildResultChunks slices payload into header.MaxChunkSize pieces and
// wraps each in a chunk built from template's Ethernet/IPv4/UDP
// headers (spec §4.5, original_source create_uW_chunk /
// update_uW_chunk_buf). template must hold a full chunk, i.e.
// exactly header.FullChunkSize bytes — original_source always passes
// X_chunk_buf.front(), the first X chunk of the message, as this
// workaround for DPDK's lack of a from-scratch packet builder; the
// state machine below does the same.
//
// Unlike original_source, ChunkNum is set to the chunk's zero-based
// index rather than its byte offset into payload (spec §9 decision:
// the original's `new_hdr.chunk_num = i` leaves chunk_num equal to a
// multiple of MaxChunkSize instead of 0,1,2,..., which would break
// Check/Recover on the receiving end).
func BuildResultChunks(pool *mbuf.Pool, template *mbuf.Mbuf, hdrTemplate header.Header, isFinal bool, newIterNum uint16, payload []byte) ([]*mbuf.Mbuf, error) {
	if template.DataLen() != header.FullChunkSize {
		return nil, errors.Errorf("assembler: BuildResultChunks template is %d bytes, want %d",
			template.DataLen(), header.FullChunkSize)
	}

	totalChunkNum := (len(payload) + header.MaxChunkSize - 1) / header.MaxChunkSize
	if totalChunkNum == 0 {
		totalChunkNum = 1
	}

	newHdr := hdrTemplate
	newHdr.MsgType = header.MsgTypeUW
	newHdr.MsgFlags = 0
	if isFinal {
		newHdr.MsgFlags = header.MsgFlagFinal
	}
	newHdr.IterNum = newIterNum
	newHdr.DataChunkNum = 0
	newHdr.TotalChunkNum = uint16(totalChunkNum)

	result := make([]*mbuf.Mbuf, 0, totalChunkNum)
	for i := 0; i < totalChunkNum; i++ {
		start := i * header.MaxChunkSize
		end := start + header.MaxChunkSize
		if end > len(payload) {
			end = len(payload)
		}
		chunkPayload := payload[start:end]

		m, err := pool.Get()
		if err != nil {
			freeAll(result)
			return nil, err
		}
		if err := netutil.DeepCopyChunk(m, template); err != nil {
			m.Free()
			freeAll(result)
			return nil, err
		}
		if err := m.Trim(header.MaxChunkSize); err != nil {
			m.Free()
			freeAll(result)
			return nil, err
		}

		hdr := newHdr
		hdr.ChunkNum = uint16(i)
		hdr.ChunkLen = uint16(header.Len + len(chunkPayload))
		header.Pack(m.Data(), hdr)

		if err := m.Append(chunkPayload); err != nil {
			m.Free()
			freeAll(result)
			return nil, err
		}
		netutil.UpdateL3L4Header(m.Data(), header.Len+len(chunkPayload))

		result = append(result, m)
	}
	return result, nil
}

func freeAll(bufs []*mbuf.Mbuf) {
	for _, m := range bufs {
		m.Free()
	}
}
