// Copyright 2019 Intel Corporation.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package header

import (
	"encoding/binary"
	"fmt"
	"math/rand"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func randomHeader(r *rand.Rand) Header {
	return Header{
		MsgType:       uint8(r.Intn(2)),
		MsgFlags:      uint8(r.Intn(256)),
		TotalMsgNum:   uint16(r.Intn(65536)),
		MsgNum:        uint16(r.Intn(65536)),
		TotalChunkNum: uint16(r.Intn(65536)),
		ChunkNum:      uint16(r.Intn(65536)),
		ChunkLen:      uint16(r.Intn(65536)),
		DataChunkNum:  uint16(r.Intn(65536)),
		IterNum:       uint16(r.Intn(65536)),
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	Convey("Given random fills of all nine service header fields", t, func() {
		r := rand.New(rand.NewSource(1))
		buf := make([]byte, AllHeadersLen)

		for i := 0; i < 256; i++ {
			h := randomHeader(r)

			Convey(fmt.Sprintf("packing then unpacking returns the same header (case %d)", i), func() {
				Pack(buf, h)
				So(Unpack(buf), ShouldResemble, h)
			})
		}
	})
}

func TestPackIsNetworkByteOrder(t *testing.T) {
	Convey("Given a header with distinct multi-byte field values", t, func() {
		h := Header{
			MsgType:       1,
			MsgFlags:      MsgFlagFinal,
			TotalMsgNum:   0x0102,
			MsgNum:        0x0304,
			TotalChunkNum: 0x0506,
			ChunkNum:      0x0708,
			ChunkLen:      0x090a,
			DataChunkNum:  0x0b0c,
			IterNum:       0x0d0e,
		}
		buf := make([]byte, AllHeadersLen)
		Pack(buf, h)

		Convey("each u16 field lands big-endian on the wire", func() {
			body := buf[Offset:AllHeadersLen]
			So(body[0], ShouldEqual, 1)
			So(body[1], ShouldEqual, MsgFlagFinal)
			So(binary.BigEndian.Uint16(body[2:4]), ShouldEqual, 0x0102)
			So(binary.BigEndian.Uint16(body[14:16]), ShouldEqual, 0x0d0e)
		})
	})
}

func TestIsFinalAndPayloadLen(t *testing.T) {
	Convey("Given a header with the final flag set", t, func() {
		h := Header{MsgFlags: MsgFlagFinal, ChunkLen: Len + 42}

		Convey("IsFinal is true and PayloadLen excludes the header", func() {
			So(h.IsFinal(), ShouldBeTrue)
			So(h.PayloadLen(), ShouldEqual, 42)
		})
	})

	Convey("Given a header without the final flag", t, func() {
		h := Header{MsgFlags: 0}
		Convey("IsFinal is false", func() {
			So(h.IsFinal(), ShouldBeFalse)
		})
	})
}
