// Copyright 2020 Zuo Xiang.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bridge implements the Compute Bridge component (spec §4.4):
// the seam between the Go VNF state machine and the numerical CNN/MEICA
// code. original_source embeds a Python interpreter in the VNF process
// itself (pybind11's py::scoped_interpreter) and calls into
// ./cnn_vnf.py / ./meica_vnf.py directly; spec §9 calls that out as an
// implementation detail worth revisiting and suggests an external
// worker process instead, which is what ProcessBridge below does.
package bridge

import "context"

// Bridge is the seam between the state machine and the numerical
// compute backend, in either of the two VNF roles.
type Bridge interface {
	// CNN runs the CNN inference pass on xBytes and returns its raw
	// result bytes (spec §4.4, original_source cnn_vnf.py run_cnn_dist).
	CNN(ctx context.Context, xBytes []byte) ([]byte, error)

	// MEICA runs up to maxRounds of distributed MEICA starting from
	// iterNum using uwBytes as the previous uW (empty on the first
	// call), and returns whether the result is final, the next
	// iteration number to resume from if not, and the new uW bytes
	// (spec §4.4, original_source meica_vnf.py run_meica_dist).
	MEICA(ctx context.Context, xBytes, uwBytes []byte, iterNum uint16, maxRounds uint32) (final bool, nextIterNum uint16, uwOut []byte, err error)
}
