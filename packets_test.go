package mysql

import (
	"bytes"
	"testing"

	"github.com/smartystreets/goconvey/convey"
)

func Test_decodeOkPacket(t *testing.T) {
	convey.Convey("decodes affected rows, last insert id, status, and info under protocol41", t, func() {
		buf := &bytes.Buffer{}
		buf.WriteByte(markerOK)
		buf.Write(marshalLCB(7))
		buf.Write(marshalLCB(99))
		buf.Write(marshalUint16(uint16(ServerStatus(1) << ServerStatusAutocommit)))
		buf.Write(marshalUint16(0))
		buf.WriteString("Rows matched: 7")

		ok, err := decodeOkPacket(buf.Bytes(), newCapFlag(CapClientProtocol41))

		convey.So(err, convey.ShouldBeNil)
		convey.So(ok.AffectedRows, convey.ShouldEqual, uint64(7))
		convey.So(ok.LastInsertID, convey.ShouldEqual, uint64(99))
		convey.So(ok.Info, convey.ShouldEqual, "Rows matched: 7")
	})
}

func Test_decodeErrPacket(t *testing.T) {
	convey.Convey("decodes error code, sqlstate, and message under protocol41", t, func() {
		buf := &bytes.Buffer{}
		buf.WriteByte(markerErr)
		buf.Write(marshalUint16(1045))
		buf.WriteByte('#')
		buf.WriteString("28000")
		buf.WriteString("Access denied")

		ep, err := decodeErrPacket(buf.Bytes(), newCapFlag(CapClientProtocol41))

		convey.So(err, convey.ShouldBeNil)
		convey.So(ep.ErrCode, convey.ShouldEqual, uint16(1045))
		convey.So(ep.SQLState, convey.ShouldEqual, "28000")
		convey.So(ep.Message, convey.ShouldEqual, "Access denied")

		asErr := ep.asError()
		convey.So(asErr.Kind, convey.ShouldEqual, KindServer)
		convey.So(asErr.Number, convey.ShouldEqual, uint16(1045))
	})

	convey.Convey("without protocol41, no sqlstate is present", t, func() {
		buf := &bytes.Buffer{}
		buf.WriteByte(markerErr)
		buf.Write(marshalUint16(2013))
		buf.WriteString("Lost connection")

		ep, err := decodeErrPacket(buf.Bytes(), 0)
		convey.So(err, convey.ShouldBeNil)
		convey.So(ep.SQLState, convey.ShouldEqual, defaultSQLState)
		convey.So(ep.Message, convey.ShouldEqual, "Lost connection")
	})
}

func Test_decodeColumnDef41(t *testing.T) {
	convey.Convey("decodes a VARCHAR field descriptor", t, func() {
		buf := &bytes.Buffer{}
		buf.Write(marshalLengthEncodeString("def"))
		buf.Write(marshalLengthEncodeString("world"))
		buf.Write(marshalLengthEncodeString("City"))
		buf.Write(marshalLengthEncodeString("City"))
		buf.Write(marshalLengthEncodeString("Name"))
		buf.Write(marshalLengthEncodeString("Name"))
		buf.Write(marshalLCB(0x0c))
		buf.Write(marshalUint16(45))
		buf.Write(marshalUint32(120))
		buf.WriteByte(ColTypeVarString)
		buf.Write(marshalUint16(0))
		buf.WriteByte(0)
		buf.Write(make([]byte, 2))

		col, err := decodeColumnDef41(buf.Bytes(), false)

		convey.So(err, convey.ShouldBeNil)
		convey.So(col.Schema, convey.ShouldEqual, "world")
		convey.So(col.Name, convey.ShouldEqual, "Name")
		convey.So(col.Type, convey.ShouldEqual, ColTypeVarString)
		convey.So(col.CharSet8(), convey.ShouldEqual, uint8(45))
		convey.So(col.IsNum(), convey.ShouldBeFalse)
	})
}

func Test_decodeStmtPrepareOK(t *testing.T) {
	convey.Convey("decodes statement id, column count, and param count", t, func() {
		buf := &bytes.Buffer{}
		buf.WriteByte(0)
		buf.Write(marshalUint32(7))
		buf.Write(marshalUint16(2))
		buf.Write(marshalUint16(1))
		buf.WriteByte(0)
		buf.Write(marshalUint16(0))

		ok, err := decodeStmtPrepareOK(buf.Bytes())

		convey.So(err, convey.ShouldBeNil)
		convey.So(ok.StatementID, convey.ShouldEqual, uint32(7))
		convey.So(ok.NumCols, convey.ShouldEqual, uint16(2))
		convey.So(ok.NumParams, convey.ShouldEqual, uint16(1))
	})
}

func Test_isEOFPacket(t *testing.T) {
	convey.Convey("a short 0xFE packet is recognized as EOF without CapClientDeprecateEof", t, func() {
		convey.So(isEOFPacket([]byte{0xFE, 0, 0, 0, 0}, 0), convey.ShouldBeTrue)
	})

	convey.Convey("a long 0xFE-prefixed payload is not mistaken for EOF", t, func() {
		long := make([]byte, 12)
		long[0] = 0xFE
		convey.So(isEOFPacket(long, 0), convey.ShouldBeFalse)
	})
}
