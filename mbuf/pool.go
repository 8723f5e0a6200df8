// Copyright 2019 Intel Corporation.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mbuf implements the allocator-backed buffer and the two
// buffer pools from the data model (spec §3): a fixed-capacity free
// list of pre-allocated chunk buffers, the same shape as a DPDK
// rte_mempool, but built on a pure-Go ring so this module does not
// need a cgo/DPDK dependency to express "allocator-backed, fixed
// capacity, ownership moves explicitly" semantics.
package mbuf

import (
	"fmt"

	"github.com/golang-collections/go-datastructures/queue"
	"github.com/pkg/errors"
	"github.com/xianglinks/meica-vnf/common"
	"github.com/xianglinks/meica-vnf/header"
)

// StandardHeadroom is the space reserved before the packet data in
// every buffer, mirroring RTE_PKTMBUF_HEADROOM. DeepCopyChunk refuses
// to operate on a destination buffer whose headroom differs from this
// (spec §4.2).
const StandardHeadroom = 128

// Mbuf is one network buffer: exactly one UDP datagram's worth of
// Ethernet+IPv4+UDP+service header+payload (spec §3), or, before it is
// filled in, room for one. At any time it is owned by exactly one of:
// the RX ring, a pending-message buffer, the TX ring, or its pool
// (spec §3's ownership invariant). This package does not enforce that
// invariant dynamically — callers transfer ownership explicitly, as
// the spec requires (§5 "Memory discipline").
type Mbuf struct {
	backing  []byte
	headroom int
	dataLen  int
	segments int
	pool     *Pool
}

func newMbuf(pool *Pool) *Mbuf {
	m := &Mbuf{
		backing:  make([]byte, StandardHeadroom+header.FullChunkSize),
		headroom: StandardHeadroom,
		pool:     pool,
	}
	m.segments = 1
	return m
}

// Headroom returns the number of bytes reserved before the packet data.
func (m *Mbuf) Headroom() int { return m.headroom }

// Segments returns the number of buffer segments backing this chunk.
// This module never chains mbufs (spec §1 Non-goals: no scattered
// multi-segment buffers), so it is always 1 for a buffer this package
// handed out; DeepCopyChunk checks it anyway because a caller could in
// principle construct a multi-segment source some other way.
func (m *Mbuf) Segments() int { return m.segments }

// DataLen returns the number of valid payload bytes currently stored.
func (m *Mbuf) DataLen() int { return m.dataLen }

// Data returns the valid packet bytes: Ethernet header through the end
// of whatever was last appended. The returned slice aliases the
// buffer's backing array; callers must not retain it past the next
// mutation of m.
func (m *Mbuf) Data() []byte {
	return m.backing[m.headroom : m.headroom+m.dataLen]
}

// Cap returns the maximum number of payload bytes this buffer can hold
// without reallocating, i.e. a full chunk's worth.
func (m *Mbuf) Cap() int {
	return len(m.backing) - m.headroom
}

// SetData overwrites the buffer's data region with b, growing dataLen
// to len(b). b must fit within Cap().
func (m *Mbuf) SetData(b []byte) error {
	if len(b) > m.Cap() {
		return errors.Errorf("mbuf: data of %d bytes exceeds capacity %d", len(b), m.Cap())
	}
	n := copy(m.backing[m.headroom:], b)
	m.dataLen = n
	return nil
}

// Append grows the data region by len(b), copying b to the new tail.
// Mirrors rte_pktmbuf_append, used when synthesizing a chunk's payload
// after its headers have been written (spec §4.3).
func (m *Mbuf) Append(b []byte) error {
	if m.dataLen+len(b) > m.Cap() {
		return errors.Errorf("mbuf: append of %d bytes exceeds capacity %d", len(b), m.Cap())
	}
	copy(m.backing[m.headroom+m.dataLen:], b)
	m.dataLen += len(b)
	return nil
}

// Trim shrinks the data region by n bytes from the tail. Mirrors
// rte_pktmbuf_trim, used to cut a cloned full chunk down to its header
// prefix before a new payload is appended (spec §4.3).
func (m *Mbuf) Trim(n int) error {
	if n > m.dataLen {
		return errors.Errorf("mbuf: trim of %d bytes exceeds data length %d", n, m.dataLen)
	}
	m.dataLen -= n
	return nil
}

// Free returns m to its owning pool. Calling Free on a buffer not
// obtained from a Pool (e.g. a zero Mbuf{}) panics; every buffer that
// flows through this module's state machine comes from a Pool.
func (m *Mbuf) Free() {
	m.dataLen = 0
	m.segments = 1
	m.pool.put(m)
}

// Pool is a fixed-capacity, allocator-backed buffer pool (spec §3):
// either the main RX/TX pool or the fast-forward pool. Only ever
// touched from the single polling goroutine that owns it (spec §5).
type Pool struct {
	name string
	cap  int
	free *queue.Queue
}

// NewPool pre-allocates capacity buffers and returns a pool owning them.
func NewPool(name string, capacity int) *Pool {
	p := &Pool{name: name, cap: capacity, free: queue.New(int64(capacity))}
	for i := 0; i < capacity; i++ {
		if err := p.free.Put(newMbuf(p)); err != nil {
			// Put on a freshly created, unbounded-hint queue before any
			// Dispose() call cannot fail; a failure here means the
			// go-datastructures queue implementation changed underneath us.
			panic(err)
		}
	}
	return p
}

// Get removes one buffer from the pool. Returns a common.VNFError with
// code common.AllocatorExhausted if the pool is empty (spec §7:
// allocator exhaustion is fatal-class).
func (p *Pool) Get() (*Mbuf, error) {
	if p.free.Len() == 0 {
		return nil, common.WrapWithVNFError(nil,
			fmt.Sprintf("buffer pool %q exhausted", p.name), common.AllocatorExhausted)
	}
	items, err := p.free.Get(1)
	if err != nil {
		return nil, errors.Wrapf(err, "buffer pool %q: get", p.name)
	}
	m := items[0].(*Mbuf)
	m.dataLen = 0
	m.segments = 1
	return m, nil
}

func (p *Pool) put(m *Mbuf) {
	if err := p.free.Put(m); err != nil {
		// The pool was built with capacity hint == capacity; returning
		// more buffers than were ever handed out is a caller bug.
		panic(errors.Wrapf(err, "buffer pool %q: put", p.name))
	}
}

// Len returns the number of buffers currently free in the pool. Used
// by tests to check the "occupancy returns to baseline" property
// (spec §8.5).
func (p *Pool) Len() int {
	return int(p.free.Len())
}

// Cap returns the pool's fixed total capacity.
func (p *Pool) Cap() int {
	return p.cap
}

// Name returns the pool's diagnostic name.
func (p *Pool) Name() string {
	return p.name
}
