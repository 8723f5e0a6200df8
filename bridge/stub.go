// Copyright 2020 Zuo Xiang.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bridge

import "context"

// StubBridge is an in-process Bridge for tests and local development
// that never shells out: CNNFunc/MEICAFunc default to identity/no-op
// behavior, and can be overridden per test.
type StubBridge struct {
	CNNFunc   func(ctx context.Context, xBytes []byte) ([]byte, error)
	MEICAFunc func(ctx context.Context, xBytes, uwBytes []byte, iterNum uint16, maxRounds uint32) (bool, uint16, []byte, error)
}

// CNN calls CNNFunc if set, else returns xBytes unchanged.
func (s *StubBridge) CNN(ctx context.Context, xBytes []byte) ([]byte, error) {
	if s.CNNFunc != nil {
		return s.CNNFunc(ctx, xBytes)
	}
	return xBytes, nil
}

// MEICA calls MEICAFunc if set, else reports the result final on the
// first call with uW equal to xBytes, a trivial fixed point useful for
// exercising the state machine without a real solver.
func (s *StubBridge) MEICA(ctx context.Context, xBytes, uwBytes []byte, iterNum uint16, maxRounds uint32) (bool, uint16, []byte, error) {
	if s.MEICAFunc != nil {
		return s.MEICAFunc(ctx, xBytes, uwBytes, iterNum, maxRounds)
	}
	return true, iterNum, xBytes, nil
}
