// Copyright 2019 Intel Corporation.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package device

import (
	"fmt"
	"net"
)

// MACAddress is a 6-byte Ethernet hardware address. Port records its
// interface's address as one (Port.MAC); outgoing chunks take their
// Ethernet headers from a cloned received chunk, not from it.
type MACAddress [6]uint8

func (mac MACAddress) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", mac[0], mac[1], mac[2], mac[3], mac[4], mac[5])
}

// NetHWAddressToMAC converts a net.HardwareAddr, as returned by
// vishvananda/netlink's link attributes, to a MACAddress.
func NetHWAddressToMAC(hw net.HardwareAddr) MACAddress {
	var out MACAddress
	copy(out[:], hw)
	return out
}
