// Copyright 2019 Intel Corporation.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package common

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// ErrorCode identifies one of the error kinds from the error handling
// design (malformed packets, lost chunks, bridge failures, ...).
type ErrorCode int

// constants with error codes, one per kind from the error handling design.
const (
	_ ErrorCode = iota
	Fail
	MalformedChunk
	LostChunk
	MultiSegmentBuffer
	AllocatorExhausted
	HeadroomMismatch
	BridgeFailure
	RecvTimeout
	UnknownMode
	BadArgument
	ParseCPUListErr
	FileErr
	BadSocket
)

// VNFError is the error type returned by this module's functions.
type VNFError struct {
	Code     ErrorCode
	Message  string
	CauseErr error
}

type causer interface {
	Cause() error
}

// Error method to implement error interface
func (err VNFError) Error() string {
	return fmt.Sprintf("%s (%d)", err.Message, err.Code)
}

// GetVNFErrorCode returns the Code field if err is a VNFError or a
// pointer to one, and -1 otherwise.
func GetVNFErrorCode(err error) ErrorCode {
	if verr := GetVNFError(err); verr != nil {
		return verr.Code
	}
	return -1
}

func checkAndGetVNFErrPointer(err error) *VNFError {
	if err != nil {
		if verr, ok := err.(VNFError); ok {
			return &verr
		} else if verr, ok := err.(*VNFError); ok {
			return verr
		}
	}
	return nil
}

// GetVNFError returns a pointer to the VNFError wrapped by err, or nil
// if err is not (and does not wrap) a VNFError.
func GetVNFError(err error) (verr *VNFError) {
	verr = checkAndGetVNFErrPointer(err)
	if verr == nil {
		if cause, ok := err.(causer); ok {
			verr = checkAndGetVNFErrPointer(cause.Cause())
		}
	}
	return verr
}

// Cause returns the underlying cause of error, if
// possible. If not, returns err itself.
func (err *VNFError) Cause() error {
	if err == nil {
		return nil
	}
	if err.CauseErr != nil {
		if cause, ok := err.CauseErr.(causer); ok {
			return cause.Cause()
		}
		return err.CauseErr
	}
	return err
}

// Format makes formatted printing of errors,
// the following verbs are supported:
// %s, %v print the error. If the error has a
// Cause it will be printed recursively
// %+v - extended format. Each Frame of the error's
// StackTrace will be printed in detail if possible.
func (err *VNFError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			if cause := err.Cause(); cause != err && cause != nil {
				fmt.Fprintf(s, "%+v\n", err.Cause())
				io.WriteString(s, err.Message)
				return
			}
		}
		fallthrough
	case 's', 'q':
		io.WriteString(s, err.Error())
	}
}

// WrapWithVNFError returns an error annotating err with a stack trace
// at the point WrapWithVNFError is called, wrapped in a VNFError.
// If err is nil, the result is still a non-nil VNFError with no cause.
func WrapWithVNFError(err error, message string, code ErrorCode) error {
	wrapped := &VNFError{
		CauseErr: err,
		Message:  message,
		Code:     code,
	}
	return errors.WithStack(wrapped)
}
