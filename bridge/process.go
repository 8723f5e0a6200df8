// Copyright 2020 Zuo Xiang.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bridge

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"os/exec"
	"sync"

	"github.com/pkg/errors"
	"github.com/xianglinks/meica-vnf/common"
)

// frame op codes exchanged with the worker process over stdin/stdout.
const (
	opCNN   uint8 = 0
	opMEICA uint8 = 1
)

// ProcessBridge runs the numerical backend as a long-lived external
// process (e.g. the CNN/MEICA Python from original_source's cnn_vnf.py
// / meica_vnf.py run standalone instead of embedded via pybind11) and
// talks to it over its stdin/stdout with a small length-prefixed
// framing. A request is a 1-byte opcode (for MEICA followed by a
// big-endian uint16 iterNum and uint32 maxRounds), then each byte
// argument as a big-endian uint32 length followed by its bytes. The
// worker replies with one such length-prefixed blob; for MEICA its
// bytes are a final-flag byte, a big-endian uint16 next iteration
// number, then the uW bytes. This replaces original_source's in-process Python
// interpreter per the design note in spec §9.
type ProcessBridge struct {
	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
}

// NewProcessBridge starts name with args and wires up its stdio for
// the framing protocol. The caller must call Close when done.
func NewProcessBridge(ctx context.Context, name string, args ...string) (*ProcessBridge, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "bridge: open stdin pipe")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "bridge: open stdout pipe")
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "bridge: start worker %q", name)
	}
	return &ProcessBridge{cmd: cmd, stdin: stdin, stdout: bufio.NewReader(stdout)}, nil
}

// Close terminates the worker process and releases its pipes.
func (b *ProcessBridge) Close() error {
	b.stdin.Close()
	return b.cmd.Wait()
}

func writeFrame(w io.Writer, fields ...[]byte) error {
	for _, f := range fields {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(f)))
		if _, err := w.Write(lenBuf[:]); err != nil {
			return err
		}
		if _, err := w.Write(f); err != nil {
			return err
		}
	}
	return nil
}

func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// CNN writes an opCNN request and reads back the result bytes.
func (b *ProcessBridge) CNN(ctx context.Context, xBytes []byte) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.stdin.Write([]byte{opCNN}); err != nil {
		return nil, wrapBridgeErr(err, "bridge: write CNN opcode")
	}
	if err := writeFrame(b.stdin, xBytes); err != nil {
		return nil, wrapBridgeErr(err, "bridge: write CNN request")
	}
	out, err := readFrame(b.stdout)
	if err != nil {
		return nil, wrapBridgeErr(err, "bridge: read CNN response")
	}
	return out, nil
}

// MEICA writes an opMEICA request and reads back
// (final, nextIterNum, uwOut).
func (b *ProcessBridge) MEICA(ctx context.Context, xBytes, uwBytes []byte, iterNum uint16, maxRounds uint32) (bool, uint16, []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var meta [7]byte
	meta[0] = opMEICA
	binary.BigEndian.PutUint16(meta[1:3], iterNum)
	binary.BigEndian.PutUint32(meta[3:7], maxRounds)
	if _, err := b.stdin.Write(meta[:]); err != nil {
		return false, 0, nil, wrapBridgeErr(err, "bridge: write MEICA request header")
	}
	if err := writeFrame(b.stdin, xBytes, uwBytes); err != nil {
		return false, 0, nil, wrapBridgeErr(err, "bridge: write MEICA request")
	}

	reply, err := readFrame(b.stdout)
	if err != nil {
		return false, 0, nil, wrapBridgeErr(err, "bridge: read MEICA response")
	}
	if len(reply) < 3 {
		return false, 0, nil, common.WrapWithVNFError(nil,
			"bridge: MEICA response shorter than its fixed header", common.BridgeFailure)
	}
	final := reply[0] != 0
	nextIterNum := binary.BigEndian.Uint16(reply[1:3])
	return final, nextIterNum, reply[3:], nil
}

func wrapBridgeErr(err error, msg string) error {
	return common.WrapWithVNFError(err, msg, common.BridgeFailure)
}
