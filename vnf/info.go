// Copyright 2020 Zuo Xiang.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vnf implements the VNF State Machine component (spec §4.5):
// the CNN role's RESET/RECV_X_CHUNKS/PROCESS_CHUNKS/SEND_RESULT_CHUNKS
// cycle, the MEICA role's RESET/FORWARD_X_CHUNKS/RECV_UW_CHUNKS/
// TRY_FORWARD_UW_CHUNKS/PROCESS_CHUNKS/SEND_UW_CHUNKS cycle, and the
// separate store-and-forward loop both roles can run instead.
package vnf

// State names one leg of either role's poll loop. CNN and MEICA use
// disjoint subsets of these names; see CNNMachine and MEICAMachine.
type State string

// CNN states (original_source cnn_vnf.cpp VNF_STATE).
const (
	StateReset            State = "RESET"
	StateRecvXChunks      State = "RECV_X_CHUNKS"
	StateProcessChunks    State = "PROCESS_CHUNKS"
	StateSendResultChunks State = "SEND_RESULT_CHUNKS"
)

// MEICA-only states (original_source meica_vnf.cpp VNF_STATE); RESET
// and PROCESS_CHUNKS are shared with CNN above.
const (
	StateForwardXChunks     State = "FORWARD_X_CHUNKS"
	StateRecvUWChunks       State = "RECV_UW_CHUNKS"
	StateTryForwardUWChunks State = "TRY_FORWARD_UW_CHUNKS"
	StateSendUWChunks       State = "SEND_UW_CHUNKS"
)

// Info reports a running machine's current state and message
// counters (spec §4.5, original_source vnf_info). LostMessageCount is
// a supplement beyond the original: it counts messages abandoned to a
// receive timeout (spec §9 decision on the missing-timeout open
// question), something original_source had no way to observe since it
// never timed out a receive.
type Info struct {
	State            State
	MessageCount     uint64
	LostMessageCount uint64
}
