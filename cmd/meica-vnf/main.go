// Copyright 2020 Zuo Xiang.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command meica-vnf is the operator-facing entrypoint: it parses the
// CLI surface named in spec.md §6, brings up one device.Port and its
// two mbuf.Pools, picks a Bridge, and drives the selected state
// machine until a shutdown signal arrives (spec §4.5 "Shutdown",
// SPEC_FULL.md §4.6).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/xianglinks/meica-vnf/bridge"
	"github.com/xianglinks/meica-vnf/common"
	"github.com/xianglinks/meica-vnf/config"
	"github.com/xianglinks/meica-vnf/device"
	"github.com/xianglinks/meica-vnf/header"
	"github.com/xianglinks/meica-vnf/mbuf"
	"github.com/xianglinks/meica-vnf/vnf"
	"golang.org/x/sys/unix"
)

// defaultFastForwardFactor sizes the fast-forward pool relative to the
// main pool (spec §3: "Capacity for the fast-forward pool is
// dimensioned larger than the main pool because messages can span
// thousands of chunks").
const defaultFastForwardFactor = 8

func main() {
	mode := flag.String("mode", "compute_forward", "store_forward or compute_forward")
	role := flag.String("role", "meica", "cnn or meica (compute_forward only; original_source ships these as separate binaries, cnn_vnf.cpp and meica_vnf.cpp)")
	leader := flag.Bool("leader", false, "run as the MEICA leader (meica role only)")
	iface := flag.String("iface", "", "interface name to bind the poll loop to")
	maxRounds := flag.Uint("max_rounds", 4, "maximum MEICA iteration rounds")
	core := flag.String("core", "", "CPU core list to pin the poll loop to, e.g. 0,2-4")
	mem := flag.Uint("mem", 64, "megabytes to preallocate for the main buffer pool")
	verbose := flag.Bool("verbose", false, "enable every log level, including Verbose; no per-chunk messages are logged")
	configPath := flag.String("config", "", "optional ini file with recv_timeout/pool-size overrides")
	backend := flag.String("backend", "", "path to an external compute worker; empty uses an identity stub")
	flag.Parse()

	if *verbose {
		common.SetLogType(common.No | common.Initialization | common.Debug | common.Verbose)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		common.LogFatalf(common.No, "load config: %v", err)
	}

	if *core != "" {
		if err := pinCPUs(*core); err != nil {
			common.LogFatalf(common.No, "pin cpus: %v", err)
		}
	}

	if *iface == "" {
		common.LogFatalf(common.No, "iface is required")
	}
	port, err := device.Open(*iface)
	if err != nil {
		common.LogFatalf(common.No, "open port %q: %v", *iface, err)
	}
	defer port.Close()
	port.SetBurstSize(cfg.BurstSize)

	mainPoolSize := poolSizeFromMem(*mem)
	if cfg.MainPoolSize > 0 {
		mainPoolSize = cfg.MainPoolSize
	}
	fwdPoolSize := mainPoolSize * defaultFastForwardFactor
	if cfg.FastForwardPoolSize > 0 {
		fwdPoolSize = cfg.FastForwardPoolSize
	}
	mainPool := mbuf.NewPool("main", mainPoolSize)
	fwdPool := mbuf.NewPool("fast-forward", fwdPoolSize)

	var br bridge.Bridge
	if *backend == "" {
		br = &bridge.StubBridge{}
	} else {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pb, err := bridge.NewProcessBridge(ctx, *backend)
		if err != nil {
			common.LogFatalf(common.No, "start compute backend %q: %v", *backend, err)
		}
		defer pb.Close()
		br = pb
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Marker line the integration package's containerized topology
	// scans for (integration/topology.go readyLineRegexp) instead of
	// polling a health endpoint, the same log-scraping approach the
	// teacher's test framework uses against TestPassedRegexp.
	fmt.Println("meica-vnf: ready")

	switch *mode {
	case "store_forward":
		m := &vnf.StoreForwardMachine{Port: port}
		if err := m.Run(ctx); err != nil {
			common.LogFatalf(common.No, "store-forward loop: %v", err)
		}
	case "compute_forward":
		switch *role {
		case "meica":
			m := vnf.NewMEICAMachine(port, mainPool, fwdPool, br, *leader, uint32(*maxRounds), cfg.RecvTimeout, cfg.BurstSize)
			if err := m.Run(ctx); err != nil {
				common.LogFatalf(common.No, "meica loop: %v", err)
			}
		case "cnn":
			m := vnf.NewCNNMachine(port, mainPool, br, cfg.RecvTimeout, cfg.BurstSize)
			if err := m.Run(ctx); err != nil {
				common.LogFatalf(common.No, "cnn loop: %v", err)
			}
		default:
			fmt.Fprintf(os.Stderr, "meica-vnf: unknown role %q\n", *role)
			os.Exit(1)
		}
	default:
		// spec §9.3: the original exits 0 on an unknown mode; that is
		// flagged a likely bug and fixed here (SPEC_FULL.md §9 decision 3).
		fmt.Fprintf(os.Stderr, "meica-vnf: unknown mode %q\n", *mode)
		os.Exit(1)
	}
}

// poolSizeFromMem converts the -mem flag (megabytes) to a buffer count,
// mirroring how the teacher's flow.Config.MemoryPerSocket budget turns
// into an mbuf pool size: each buffer is one full chunk.
func poolSizeFromMem(mem uint) int {
	n := int(mem) * 1024 * 1024 / header.FullChunkSize
	if n < header.BurstSize {
		n = header.BurstSize
	}
	return n
}

// pinCPUs parses -core and pins this OS thread to the named cores via
// golang.org/x/sys/unix.SchedSetaffinity, the pure-Go equivalent of the
// teacher's low.SetAffinity (internal/low/low.go), which raw-syscalls
// SYS_SCHED_SETAFFINITY from behind a cgo boundary this module doesn't
// carry.
func pinCPUs(core string) error {
	cpus, err := common.ParseCPUs(core)
	if err != nil {
		return common.WrapWithVNFError(err, "pinCPUs: parse -core", common.ParseCPUListErr)
	}
	if len(cpus) == 0 {
		return nil
	}

	runtime.LockOSThread()

	var set unix.CPUSet
	set.Zero()
	for _, c := range cpus {
		set.Set(int(c))
	}
	return unix.SchedSetaffinity(0, &set)
}
