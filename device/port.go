// Copyright 2019 Intel Corporation.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package device implements the NIC port abstraction the poll loop
// reads bursts from and writes bursts to. The teacher talks to ports
// through DPDK's PMDs, including a net_af_packet vdev backend for
// environments without real DPDK-capable hardware; this module always
// runs on that backend, implemented directly against
// google/gopacket's afpacket.TPacket so the module needs no DPDK
// install to run (spec §1 Non-goals: no hardware offload). The
// afpacket package itself is built with cgo.
package device

import (
	"os"
	"time"

	"github.com/google/gopacket/afpacket"
	"github.com/pkg/errors"
	"github.com/vishvananda/netlink"
	"github.com/xianglinks/meica-vnf/header"
)

const (
	defaultBlockSize = 1 << 17
	defaultNumBlocks = 8
	pollTimeout      = 100 * time.Millisecond
)

// Port is one network interface the VNF polls. Only the goroutine
// that owns a Port may call RecvBurst/SendBurst on it (spec §5).
type Port struct {
	name      string
	mac       MACAddress
	handle    *afpacket.TPacket
	burstSize int
}

// Open binds iface as a Port: resolves its MAC via netlink, then opens
// a raw AF_PACKET socket on it in TPACKET_V3 mode with a short poll
// timeout so RecvBurst never blocks the state machine indefinitely.
func Open(iface string) (*Port, error) {
	link, err := netlink.LinkByName(iface)
	if err != nil {
		return nil, errors.Wrapf(err, "device: resolve iface %q", iface)
	}

	frameSize := header.FullChunkSize + 64
	tp, err := afpacket.NewTPacket(
		afpacket.OptInterface(iface),
		afpacket.OptFrameSize(frameSize),
		afpacket.OptBlockSize(defaultBlockSize),
		afpacket.OptNumBlocks(defaultNumBlocks),
		afpacket.OptPollTimeout(pollTimeout),
		afpacket.SocketRaw,
		afpacket.TPacketVersion3,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "device: open af_packet socket on %q", iface)
	}

	return &Port{
		name:      iface,
		mac:       NetHWAddressToMAC(link.Attrs().HardwareAddr),
		handle:    tp,
		burstSize: header.BurstSize,
	}, nil
}

// Name returns the interface name this port is bound to.
func (p *Port) Name() string { return p.name }

// MAC returns the port's own hardware address.
func (p *Port) MAC() MACAddress { return p.mac }

// SetBurstSize overrides the per-poll burst cap RecvBurst uses, letting
// an operator's config.Config.BurstSize (SPEC_FULL.md §6 "Config file")
// take effect instead of the header.BurstSize default. n <= 0 is a
// no-op, so an unset config value leaves the default in place.
func (p *Port) SetBurstSize(n int) {
	if n > 0 {
		p.burstSize = n
	}
}

// RecvBurst reads up to the port's burst size (header.BurstSize unless
// overridden by SetBurstSize) packets without blocking past the port's
// poll timeout, mirroring the teacher's single rx_burst call per poll
// iteration. An empty slice with a nil error means nothing arrived this
// poll; that is not an error.
func (p *Port) RecvBurst() ([][]byte, error) {
	bufs := make([][]byte, 0, p.burstSize)
	for i := 0; i < p.burstSize; i++ {
		data, _, err := p.handle.ZeroCopyReadPacketData()
		if err != nil {
			if isTimeout(err) {
				break
			}
			return bufs, errors.Wrapf(err, "device: recv on %q", p.name)
		}
		cp := make([]byte, len(data))
		copy(cp, data)
		bufs = append(bufs, cp)
	}
	return bufs, nil
}

// SendBurst writes every buffer in bufs out this port, in order,
// mirroring the teacher's single tx_burst call per poll iteration.
// Returns the number of buffers actually sent before the first error.
func (p *Port) SendBurst(bufs [][]byte) (int, error) {
	for i, b := range bufs {
		if err := p.handle.WritePacketData(b); err != nil {
			return i, errors.Wrapf(err, "device: send on %q", p.name)
		}
	}
	return len(bufs), nil
}

// Close releases the port's socket.
func (p *Port) Close() {
	p.handle.Close()
}

func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	if te, ok := err.(timeouter); ok {
		return te.Timeout()
	}
	return os.IsTimeout(err)
}
