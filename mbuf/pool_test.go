// Copyright 2019 Intel Corporation.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mbuf

import (
	"testing"

	"github.com/xianglinks/meica-vnf/common"
)

func TestPoolAccountingReturnsToBaseline(t *testing.T) {
	pool := NewPool("main", 8)
	if pool.Len() != 8 {
		t.Fatalf("want baseline 8 free buffers, got %d", pool.Len())
	}

	var taken []*Mbuf
	for i := 0; i < 5; i++ {
		m, err := pool.Get()
		if err != nil {
			t.Fatalf("unexpected Get error: %v", err)
		}
		taken = append(taken, m)
	}
	if pool.Len() != 3 {
		t.Fatalf("want 3 free buffers after taking 5, got %d", pool.Len())
	}

	for _, m := range taken {
		m.Free()
	}
	if pool.Len() != 8 {
		t.Fatalf("want baseline 8 free buffers after returning all, got %d", pool.Len())
	}
}

func TestPoolExhaustionIsFatalClass(t *testing.T) {
	pool := NewPool("tiny", 1)
	if _, err := pool.Get(); err != nil {
		t.Fatalf("unexpected error on first Get: %v", err)
	}
	_, err := pool.Get()
	if err == nil {
		t.Fatal("want error when pool is exhausted")
	}
	if code := common.GetVNFErrorCode(err); code != common.AllocatorExhausted {
		t.Fatalf("want AllocatorExhausted error code, got %v", code)
	}
}

func TestMbufAppendTrimAndData(t *testing.T) {
	pool := NewPool("main", 1)
	m, err := pool.Get()
	if err != nil {
		t.Fatalf("unexpected Get error: %v", err)
	}

	if err := m.SetData(make([]byte, 58)); err != nil {
		t.Fatalf("SetData: %v", err)
	}
	if err := m.Append([]byte("hello")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if got, want := m.DataLen(), 63; got != want {
		t.Fatalf("DataLen = %d, want %d", got, want)
	}
	if got, want := string(m.Data()[58:]), "hello"; got != want {
		t.Fatalf("appended payload = %q, want %q", got, want)
	}

	if err := m.Trim(5); err != nil {
		t.Fatalf("Trim: %v", err)
	}
	if got, want := m.DataLen(), 58; got != want {
		t.Fatalf("DataLen after trim = %d, want %d", got, want)
	}
}
