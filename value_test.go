package mysql

import (
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/mysql-wire/mysql41/charset"
)

func Test_decodeBinaryValue(t *testing.T) {
	convey.Convey("TINY unsigned decodes to a uint64-backed Value", t, func() {
		data := []byte{200}
		v, err := decodeBinaryValue(ColTypeTiny, true, nil, nil, &data)
		convey.So(err, convey.ShouldBeNil)
		convey.So(v.Native(), convey.ShouldEqual, uint64(200))
	})

	convey.Convey("LONGLONG signed decodes to an int64-backed Value", t, func() {
		data := marshalInt64(-12345)
		v, err := decodeBinaryValue(ColTypeLongLong, false, nil, nil, &data)
		convey.So(err, convey.ShouldBeNil)
		convey.So(v.Native(), convey.ShouldEqual, int64(-12345))
	})

	convey.Convey("NEWDECIMAL decodes into an exact decimal.Decimal", t, func() {
		data := marshalLengthEncodeString("12345.6700")
		v, err := decodeBinaryValue(ColTypeNewDecimal, false, nil, nil, &data)
		convey.So(err, convey.ShouldBeNil)
		convey.So(v.Decimal().String(), convey.ShouldEqual, "12345.67")
	})

	convey.Convey("VARSTRING decodes through the connection's charset", t, func() {
		ascii, err := charset.ByName("ascii")
		convey.So(err, convey.ShouldBeNil)
		data := marshalLengthEncodeString("hello")
		v, err := decodeBinaryValue(ColTypeVarString, false, ascii, nil, &data)
		convey.So(err, convey.ShouldBeNil)
		convey.So(string(v.Native().([]byte)), convey.ShouldEqual, "hello")
	})

	convey.Convey("a NULL LCS marker produces a Null Value", t, func() {
		data := []byte{0xFB}
		v, err := decodeBinaryValue(ColTypeVarString, false, nil, nil, &data)
		convey.So(err, convey.ShouldBeNil)
		convey.So(v.Null, convey.ShouldBeTrue)
		convey.So(v.Native(), convey.ShouldBeNil)
	})
}

func Test_decodeBinaryDate(t *testing.T) {
	convey.Convey("a length-11 DATETIME carries microseconds", t, func() {
		data := []byte{11}
		data = append(data, marshalUint16(2024)...)
		data = append(data, 6, 15) // month, day
		data = append(data, 9, 30, 0)
		data = append(data, marshalUint32(500000)...)

		tv, err := decodeBinaryDate(&data)
		convey.So(err, convey.ShouldBeNil)
		convey.So(tv.Year, convey.ShouldEqual, uint16(2024))
		convey.So(tv.Hour, convey.ShouldEqual, uint16(9))
		convey.So(tv.Microsecond, convey.ShouldEqual, uint32(500000))
		convey.So(tv.String(), convey.ShouldEqual, "2024-06-15 09:30:00.500000")
	})

	convey.Convey("a zero-length DATE is the zero value", t, func() {
		data := []byte{0}
		tv, err := decodeBinaryDate(&data)
		convey.So(err, convey.ShouldBeNil)
		convey.So(tv.IsZeroDate(), convey.ShouldBeTrue)
	})
}

func Test_decodeBinaryTime(t *testing.T) {
	convey.Convey("a negative TIME renders as a signed duration", t, func() {
		data := []byte{8, 1}
		data = append(data, marshalUint32(2)...) // 2 days
		data = append(data, 3, 4, 5)

		tv, err := decodeBinaryTime(&data)
		convey.So(err, convey.ShouldBeNil)
		convey.So(tv.Neg, convey.ShouldBeTrue)
		convey.So(tv.Hour, convey.ShouldEqual, uint16(2*24+3))
		convey.So(tv.IsZeroDate(), convey.ShouldBeTrue)
		convey.So(tv.String(), convey.ShouldEqual, "-51:04:05")
	})
}

func Test_encodeBinaryParam(t *testing.T) {
	convey.Convey("maps Go driver.Value types to their wire type tag", t, func() {
		typ, unsignedFlag, data, err := encodeBinaryParam(uint64(7))
		convey.So(err, convey.ShouldBeNil)
		convey.So(typ, convey.ShouldEqual, ColTypeLongLong)
		convey.So(unsignedFlag, convey.ShouldEqual, byte(0x80))
		convey.So(data, convey.ShouldResemble, marshalUint64(7))

		typ, _, data, err = encodeBinaryParam("hi")
		convey.So(err, convey.ShouldBeNil)
		convey.So(typ, convey.ShouldEqual, ColTypeVarString)
		convey.So(data, convey.ShouldResemble, marshalLengthEncodeString("hi"))

		typ, _, _, err = encodeBinaryParam(nil)
		convey.So(err, convey.ShouldBeNil)
		convey.So(typ, convey.ShouldEqual, ColTypeNULL)

		_, _, _, err = encodeBinaryParam(42)
		convey.So(err, convey.ShouldNotBeNil)
	})

	convey.Convey("a zero TimeValue encodes as a length-0 DATETIME", t, func() {
		convey.So(encodeBinaryDateTime(TimeValue{}), convey.ShouldResemble, []byte{0})
	})

	convey.Convey("a date-only TimeValue encodes as length 4", t, func() {
		tv := TimeValue{Year: 2024, Month: 6, Day: 15}
		data := encodeBinaryDateTime(tv)
		convey.So(data[0], convey.ShouldEqual, byte(4))
		convey.So(len(data), convey.ShouldEqual, 5)
	})
}

func Test_decodeTextRow(t *testing.T) {
	convey.Convey("decodes two LCS-encoded text columns, one NULL", t, func() {
		cols := []*ColumnDef41{
			{Name: "id", Type: ColTypeLong, CharSet: 33},
			{Name: "name", Type: ColTypeVarString, CharSet: 33},
		}
		payload := append(marshalLengthEncodeString("42"), []byte{0xFB}...)

		values, err := decodeTextRow(cols, nil, payload)

		convey.So(err, convey.ShouldBeNil)
		convey.So(string(values[0].Native().([]byte)), convey.ShouldEqual, "42")
		convey.So(values[1].Null, convey.ShouldBeTrue)
	})
}
