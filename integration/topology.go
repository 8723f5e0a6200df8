// Copyright 2020 Zuo Xiang.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// +build integration

// Package integration spins up a two-peer MEICA topology — a leader
// and a follower container, each running cmd/meica-vnf — to exercise
// the wire protocol end to end against a real Docker daemon. It
// mirrors the teacher's test/framework/dockerlauncher.go (itself the
// Go stand-in for original_source/emulation/topology.py's Mininet/
// containernet two-host setup), trimmed to what this module needs:
// create two containers on one bridge network, wait for both to log
// readiness, tear down on completion. Gated behind the "integration"
// build tag because it requires a live Docker daemon; it is not part
// of the default "go test ./...".
package integration

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/pkg/errors"
)

// dockerAPIVersion is the API version negotiated with the daemon,
// mirroring the explicit version string the teacher's
// RunningApp.startTest passes to client.NewClient rather than letting
// the client auto-negotiate.
const dockerAPIVersion = "1.39"

// readyLineRegexp matches the line cmd/meica-vnf logs once its port is
// open and its poll loop is about to start, mirroring the teacher's
// TestPassedRegexp/TestCoresRegexp convention of scanning container
// logs for a fixed marker rather than polling a health endpoint. It is
// not anchored at the start: the containers run without a TTY, so the
// log stream prefixes each frame with an 8-byte stdout/stderr header.
var readyLineRegexp = regexp.MustCompile(`meica-vnf: ready$`)

// PeerConfig describes one side of the topology.
type PeerConfig struct {
	Name      string // container name and hostname
	Image     string // image built from this module's Dockerfile
	Iface     string // -iface value inside the container
	Leader    bool   // -leader value
	MaxRounds uint   // -max_rounds value
}

// Topology owns the Docker resources for one leader+follower run.
type Topology struct {
	cl          *client.Client
	networkName string
	containers  []string
}

// NewTopology connects to the Docker daemon named by DOCKER_HOST (the
// default unix socket if unset), the same client.NewClient(host,
// version, nil, headers) construction the teacher's
// RunningApp.startTest uses, but reading the host from the
// environment rather than a remote test config file.
func NewTopology() (*Topology, error) {
	host := os.Getenv("DOCKER_HOST")
	if host == "" {
		host = "unix:///var/run/docker.sock"
	}
	defaultHeaders := map[string]string{"User-Agent": "meica-vnf-integration-1.0"}
	cl, err := client.NewClient(host, dockerAPIVersion, nil, defaultHeaders)
	if err != nil {
		return nil, errors.Wrap(err, "integration: connect to docker daemon")
	}
	return &Topology{cl: cl}, nil
}

// Start creates a bridge network named netName and one container per
// entry in peers, each running cmd/meica-vnf with the flags PeerConfig
// describes, and waits up to readyTimeout for each to log its ready
// line.
func (top *Topology) Start(ctx context.Context, netName string, peers []PeerConfig, readyTimeout time.Duration) error {
	netResp, err := top.cl.NetworkCreate(ctx, netName, types.NetworkCreate{
		Driver: "bridge",
	})
	if err != nil {
		return errors.Wrapf(err, "integration: create network %q", netName)
	}
	top.networkName = netResp.ID

	for _, peer := range peers {
		if err := top.startPeer(ctx, peer, readyTimeout); err != nil {
			return err
		}
	}
	return nil
}

func (top *Topology) startPeer(ctx context.Context, peer PeerConfig, readyTimeout time.Duration) error {
	cmd := []string{
		"/meica-vnf",
		"-iface", peer.Iface,
		"-mode", "compute_forward",
		"-role", "meica",
		"-max_rounds", fmt.Sprint(peer.MaxRounds),
	}
	if peer.Leader {
		cmd = append(cmd, "-leader")
	}

	cfg := container.Config{
		Hostname: peer.Name,
		Image:    peer.Image,
		Cmd:      cmd,
		Tty:      false,
	}
	hostCfg := container.HostConfig{
		NetworkMode: container.NetworkMode(top.networkName),
		// Same as --cap-add NET_ADMIN: the poll loop binds a raw
		// af_packet socket (device.Open) inside the container.
		CapAdd: []string{"NET_ADMIN"},
	}

	resp, err := top.cl.ContainerCreate(ctx, &cfg, &hostCfg, nil, peer.Name)
	if err != nil {
		return errors.Wrapf(err, "integration: create container %q", peer.Name)
	}
	top.containers = append(top.containers, resp.ID)

	if err := top.cl.ContainerStart(ctx, resp.ID, types.ContainerStartOptions{}); err != nil {
		return errors.Wrapf(err, "integration: start container %q", peer.Name)
	}

	return top.waitReady(ctx, resp.ID, readyTimeout)
}

func (top *Topology) waitReady(ctx context.Context, containerID string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logs, err := top.cl.ContainerLogs(waitCtx, containerID, types.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err != nil {
		return errors.Wrapf(err, "integration: stream logs for %q", containerID)
	}
	defer logs.Close()

	scanner := bufio.NewScanner(logs)
	for scanner.Scan() {
		if readyLineRegexp.MatchString(scanner.Text()) {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "integration: read logs for %q", containerID)
	}
	return errors.Errorf("integration: container %q never logged a ready line within %s", containerID, timeout)
}

// Close stops and removes every container and the network Start
// created, best-effort, mirroring the teacher's own test teardown:
// collect errors but keep tearing down the rest of the topology.
func (top *Topology) Close(ctx context.Context) error {
	var firstErr error
	for _, id := range top.containers {
		if err := top.cl.ContainerRemove(ctx, id, types.ContainerRemoveOptions{Force: true}); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "integration: remove container %q", id)
		}
	}
	if top.networkName != "" {
		if err := top.cl.NetworkRemove(ctx, top.networkName); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "integration: remove network %q", top.networkName)
		}
	}
	return firstErr
}
