// Copyright 2020 Zuo Xiang.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bridge

import (
	"bytes"
	"context"
	"testing"
)

func TestStubBridgeCNNDefaultsToIdentity(t *testing.T) {
	s := &StubBridge{}
	in := []byte{1, 2, 3}
	out, err := s.CNN(context.Background(), in)
	if err != nil {
		t.Fatalf("CNN: %v", err)
	}
	if !bytes.Equal(out, in) {
		t.Fatalf("CNN() = %v, want %v", out, in)
	}
}

func TestStubBridgeCNNUsesOverride(t *testing.T) {
	s := &StubBridge{
		CNNFunc: func(ctx context.Context, x []byte) ([]byte, error) {
			return append([]byte{0xff}, x...), nil
		},
	}
	out, err := s.CNN(context.Background(), []byte{1})
	if err != nil {
		t.Fatalf("CNN: %v", err)
	}
	if !bytes.Equal(out, []byte{0xff, 1}) {
		t.Fatalf("CNN() = %v, want [0xff 1]", out)
	}
}

func TestStubBridgeMEICADefaultsToFinalFixedPoint(t *testing.T) {
	s := &StubBridge{}
	final, iter, uw, err := s.MEICA(context.Background(), []byte("x"), nil, 0, 4)
	if err != nil {
		t.Fatalf("MEICA: %v", err)
	}
	if !final {
		t.Fatal("want default stub MEICA to report final=true")
	}
	if iter != 0 {
		t.Fatalf("iter = %d, want 0", iter)
	}
	if string(uw) != "x" {
		t.Fatalf("uw = %q, want %q", uw, "x")
	}
}

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	want := [][]byte{[]byte("hello"), []byte{}, []byte("world, with more bytes")}

	if err := writeFrame(&buf, want...); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}
	for _, w := range want {
		got, err := readFrame(&buf)
		if err != nil {
			t.Fatalf("readFrame: %v", err)
		}
		if !bytes.Equal(got, w) {
			t.Fatalf("readFrame() = %q, want %q", got, w)
		}
	}
}
