package mysql

import (
	"bytes"
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mysql-wire/mysql41/charset"
)

// TimeValue is the host representation of DATE/DATETIME/TIMESTAMP/TIME
// columns (spec.md §3 "Time value"). Rendering depends on whether a
// calendar date is present: a pure year/month/day-zero value renders
// as a signed HH:MM:SS duration, otherwise as a full timestamp.
type TimeValue struct {
	Year, Month, Day uint16
	Hour             uint16 // days*24+hour for TIME can exceed 255
	Minute, Second   uint8
	Neg              bool
	Microsecond      uint32
}

// IsZeroDate reports whether the value carries no calendar date,
// spec.md §3's trigger for rendering as a duration.
func (t TimeValue) IsZeroDate() bool {
	return t.Year == 0 && t.Month == 0 && t.Day == 0
}

func (t TimeValue) String() string {
	if t.IsZeroDate() {
		sign := ""
		if t.Neg {
			sign = "-"
		}
		if t.Microsecond != 0 {
			return fmt.Sprintf("%s%02d:%02d:%02d.%06d", sign, t.Hour, t.Minute, t.Second, t.Microsecond)
		}
		return fmt.Sprintf("%s%02d:%02d:%02d", sign, t.Hour, t.Minute, t.Second)
	}
	if t.Microsecond != 0 {
		return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d.%06d", t.Year, t.Month, t.Day, t.Hour, t.Minute, t.Second, t.Microsecond)
	}
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d", t.Year, t.Month, t.Day, t.Hour, t.Minute, t.Second)
}

// GoTime converts to a time.Time in loc, for callers that requested
// parseTime in the DSN.
func (t TimeValue) GoTime(loc *time.Location) time.Time {
	if t.IsZeroDate() && t.Year == 0 {
		// pure duration: anchor at the zero date, the way the teacher's
		// doExtractMysqlTypeDate already treated hour-only TIME values.
		return time.Date(0, 1, 1, int(t.Hour), int(t.Minute), int(t.Second), int(t.Microsecond)*1000, loc)
	}
	return time.Date(int(t.Year), time.Month(t.Month), int(t.Day), int(t.Hour), int(t.Minute), int(t.Second), int(t.Microsecond)*1000, loc)
}

func timeValueFromGoTime(v time.Time) TimeValue {
	y, mo, d := v.Date()
	h, mi, s := v.Clock()
	return TimeValue{
		Year: uint16(y), Month: uint16(mo), Day: uint16(d),
		Hour: uint16(h), Minute: uint8(mi), Second: uint8(s),
		Microsecond: uint32(v.Nanosecond() / 1000),
	}
}

// Value is the tagged variant over the column-type set that
// spec.md §9's design notes call for: one representation shared by
// the binary and text row decoders, with a single dispatch point
// (Native) for callers that want a plain Go value.
type Value struct {
	Kind     byte
	Null     bool
	Unsigned bool

	// Text marks a value decoded off the text protocol (spec.md §4.6):
	// every column comes off the wire as an LCS, already sitting in b,
	// and Native returns that unparsed form rather than dispatching on
	// Kind the way the binary decoder's typed fields require.
	Text bool

	i   int64
	u   uint64
	f   float64
	b   []byte
	dec *decimal.Decimal
	t   *TimeValue
}

// Native renders v as one of the types database/sql/driver.Value
// accepts: int64, uint64, float64, bool, []byte, string, time.Time,
// or nil.
func (v Value) Native() driver.Value {
	if v.Null {
		return nil
	}
	if v.Text {
		return v.b
	}
	switch v.Kind {
	case ColTypeTiny, ColTypeShort, ColTypeLong, ColTypeInt24, ColTypeLongLong, ColTypeYear:
		if v.Unsigned {
			return v.u
		}
		return v.i
	case ColTypeFloat, ColTypeDouble:
		return v.f
	case ColTypeDecimal, ColTypeNewDecimal:
		return v.b
	case ColTypeDate, ColTypeDateTime, ColTypeTimestamp, ColTypeTime:
		return v.t.GoTime(time.Local)
	default:
		return v.b
	}
}

// Decimal returns the parsed exact decimal for DECIMAL/NEWDECIMAL
// columns, or nil for any other Kind.
func (v Value) Decimal() *decimal.Decimal { return v.dec }

// Time returns the parsed temporal value for DATE/DATETIME/TIMESTAMP/
// TIME columns, or nil for any other Kind.
func (v Value) Time() *TimeValue { return v.t }

// Len is the byte length fetch_lengths (spec.md §4.6) reports for
// this value: the length of its wire text/byte representation, 0 for
// NULL.
func (v Value) Len() int {
	if v.Null {
		return 0
	}
	if v.b != nil {
		return len(v.b)
	}
	return len(fmt.Sprint(v.Native()))
}

func nullValue(kind byte) Value { return Value{Kind: kind, Null: true} }

// ---- binary protocol decode (spec.md §4.4) ----

// decodeBinaryValue decodes one binary-protocol column value. connCS is
// the connection's negotiated charset (spec.md §4.4: string/blob
// columns "decode through the connection charset"); colCS is the
// column's own reported charset, consulted only to detect the binary
// collation BIT and *_bin columns carry (spec.md §4.4's "binary-flagged
// → binary" rule), since the wire protocol has no other way to tell a
// BLOB from a TEXT column of the same ColType.
func decodeBinaryValue(colType byte, unsigned bool, connCS, colCS *charset.Charset, dataPtr *[]byte) (Value, error) {
	switch colType {
	case ColTypeTiny:
		b, err := extractUint8(dataPtr)
		if err != nil {
			return Value{}, err
		}
		v := Value{Kind: colType, Unsigned: unsigned}
		if unsigned {
			v.u = uint64(b)
		} else {
			v.i = int64(int8(b))
		}
		return v, nil
	case ColTypeShort, ColTypeYear:
		b, err := extractUint16(dataPtr)
		if err != nil {
			return Value{}, err
		}
		v := Value{Kind: colType, Unsigned: unsigned}
		if unsigned {
			v.u = uint64(b)
		} else {
			v.i = int64(int16(b))
		}
		return v, nil
	case ColTypeLong, ColTypeInt24:
		b, err := extractUint32(dataPtr)
		if err != nil {
			return Value{}, err
		}
		v := Value{Kind: colType, Unsigned: unsigned}
		if unsigned {
			v.u = uint64(b)
		} else {
			v.i = int64(int32(b))
		}
		return v, nil
	case ColTypeLongLong:
		b, err := extractUint64(dataPtr)
		if err != nil {
			return Value{}, err
		}
		v := Value{Kind: colType, Unsigned: unsigned}
		if unsigned {
			v.u = b
		} else {
			v.i = int64(b)
		}
		return v, nil
	case ColTypeFloat:
		f, err := extractFloat32(dataPtr)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: colType, f: float64(f)}, nil
	case ColTypeDouble:
		f, err := extractFloat64(dataPtr)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: colType, f: f}, nil
	case ColTypeDecimal, ColTypeNewDecimal:
		raw, ok, err := extractLCS(dataPtr)
		if err != nil {
			return Value{}, err
		}
		if !ok {
			return nullValue(colType), nil
		}
		d, err := decimal.NewFromString(string(raw))
		if err != nil {
			return Value{}, protocolError(err, "decode decimal %q", raw)
		}
		return Value{Kind: colType, b: raw, dec: &d}, nil
	case ColTypeVarChar, ColTypeVarString, ColTypeString,
		ColTypeTinyBLOB, ColTypeMediumBLOB, ColTypeLongBLOB, ColTypeBLOB,
		ColTypeEnum, ColTypeSet, ColTypeGeometry, ColTypeJSON:
		raw, ok, err := extractLCS(dataPtr)
		if err != nil {
			return Value{}, err
		}
		if !ok {
			return nullValue(colType), nil
		}
		if colCS != nil && colCS.Binary {
			return Value{Kind: colType, b: raw}, nil
		}
		decoded, err := connCS.Decode(raw)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: colType, b: decoded}, nil
	case ColTypeBit:
		raw, ok, err := extractLCS(dataPtr)
		if err != nil {
			return Value{}, err
		}
		if !ok {
			return nullValue(colType), nil
		}
		return Value{Kind: colType, b: raw}, nil
	case ColTypeDate, ColTypeDateTime, ColTypeTimestamp:
		t, err := decodeBinaryDate(dataPtr)
		if err != nil {
			return Value{}, err
		}
		if t == nil {
			return nullValue(colType), nil
		}
		return Value{Kind: colType, t: t}, nil
	case ColTypeTime:
		t, err := decodeBinaryTime(dataPtr)
		if err != nil {
			return Value{}, err
		}
		if t == nil {
			return nullValue(colType), nil
		}
		return Value{Kind: colType, t: t}, nil
	case ColTypeNULL:
		return nullValue(colType), nil
	default:
		return Value{}, protocolErrorf("decode binary value: unknown column type %#x", colType)
	}
}

// decodeBinaryDate implements the DATE/DATETIME/TIMESTAMP wire form
// from spec.md §4.4's table: u8 length prefix selects how many
// further fields follow.
func decodeBinaryDate(dataPtr *[]byte) (*TimeValue, error) {
	length, err := extractUint8(dataPtr)
	if err != nil {
		return nil, err
	}
	if length == 0 {
		return &TimeValue{}, nil
	}

	year, err := extractUint16(dataPtr)
	if err != nil {
		return nil, err
	}
	month, err := extractUint8(dataPtr)
	if err != nil {
		return nil, err
	}
	day, err := extractUint8(dataPtr)
	if err != nil {
		return nil, err
	}
	t := &TimeValue{Year: year, Month: uint16(month), Day: uint16(day)}
	if length == 4 {
		return t, nil
	}

	h, err := extractUint8(dataPtr)
	if err != nil {
		return nil, err
	}
	mi, err := extractUint8(dataPtr)
	if err != nil {
		return nil, err
	}
	s, err := extractUint8(dataPtr)
	if err != nil {
		return nil, err
	}
	t.Hour, t.Minute, t.Second = uint16(h), mi, s
	if length == 7 {
		return t, nil
	}

	us, err := extractUint32(dataPtr)
	if err != nil {
		return nil, err
	}
	t.Microsecond = us
	return t, nil
}

// decodeBinaryTime implements the TIME wire form from spec.md §4.4:
// total hours are days*24 + hour, signed by the neg byte.
func decodeBinaryTime(dataPtr *[]byte) (*TimeValue, error) {
	length, err := extractUint8(dataPtr)
	if err != nil {
		return nil, err
	}
	if length == 0 {
		return &TimeValue{}, nil
	}

	neg, err := extractUint8(dataPtr)
	if err != nil {
		return nil, err
	}
	days, err := extractUint32(dataPtr)
	if err != nil {
		return nil, err
	}
	h, err := extractUint8(dataPtr)
	if err != nil {
		return nil, err
	}
	mi, err := extractUint8(dataPtr)
	if err != nil {
		return nil, err
	}
	s, err := extractUint8(dataPtr)
	if err != nil {
		return nil, err
	}
	t := &TimeValue{
		Neg:    neg != 0,
		Hour:   uint16(days)*24 + uint16(h),
		Minute: mi,
		Second: s,
	}
	if length == 8 {
		return t, nil
	}

	us, err := extractUint32(dataPtr)
	if err != nil {
		return nil, err
	}
	t.Microsecond = us
	return t, nil
}

// ---- binary protocol encode: stmt execute parameters (spec.md §4.4) ----

// encodeBinaryParam maps a driver.Value to its (type, unsigned-flag,
// wire bytes) per spec.md §4.4's inverted mapping: int64 and uint64
// always go out as 8-byte LONGLONG (uint64 with the 0x80 unsigned
// flag), whatever their magnitude; bools become TINY, floats become
// DOUBLE, strings become LCS, Time values become DATETIME form.
func encodeBinaryParam(v driver.Value) (typ byte, unsignedFlag byte, data []byte, err error) {
	switch val := v.(type) {
	case nil:
		return ColTypeNULL, 0, nil, nil
	case bool:
		b := byte(0)
		if val {
			b = 1
		}
		return ColTypeTiny, 0, []byte{b}, nil
	case int64:
		return ColTypeLongLong, 0, marshalInt64(val), nil
	case uint64:
		return ColTypeLongLong, 0x80, marshalUint64(val), nil
	case float64:
		return ColTypeDouble, 0, marshalFloat64(val), nil
	case []byte:
		return ColTypeVarString, 0, marshalLCS(val), nil
	case string:
		return ColTypeVarString, 0, marshalLengthEncodeString(val), nil
	case time.Time:
		return ColTypeDateTime, 0, encodeBinaryDateTime(timeValueFromGoTime(val)), nil
	default:
		return 0, 0, nil, clientError("unsupported parameter type %T; must be one of "+
			"int64/uint64/float64/bool/[]byte/string/time.Time", v)
	}
}

func encodeBinaryDateTime(t TimeValue) []byte {
	buf := &bytes.Buffer{}
	if t.Year == 0 && t.Month == 0 && t.Day == 0 && t.Hour == 0 && t.Minute == 0 && t.Second == 0 && t.Microsecond == 0 {
		buf.WriteByte(0)
		return buf.Bytes()
	}
	if t.Microsecond != 0 {
		buf.WriteByte(11)
	} else if t.Hour != 0 || t.Minute != 0 || t.Second != 0 {
		buf.WriteByte(7)
	} else {
		buf.WriteByte(4)
	}
	buf.Write(marshalUint16(t.Year))
	buf.WriteByte(byte(t.Month))
	buf.WriteByte(byte(t.Day))
	if buf.Bytes()[0] == 4 {
		return buf.Bytes()
	}
	buf.WriteByte(byte(t.Hour))
	buf.WriteByte(t.Minute)
	buf.WriteByte(t.Second)
	if buf.Bytes()[0] == 7 {
		return buf.Bytes()
	}
	buf.Write(marshalUint32(t.Microsecond))
	return buf.Bytes()
}

// ---- binary protocol row decode (spec.md §4.4 "Row (binary)") ----

// decodeBinaryRow decodes one COM_STMT_EXECUTE result row: a packet
// header byte, a null bitmap offset by 2 reserved bits, then the
// non-null column values packed back to back. connCS is the
// connection's negotiated charset, spec.md §4.4's decode target for
// non-binary string/blob columns.
func decodeBinaryRow(cols []*ColumnDef41, connCS *charset.Charset, payload []byte) ([]Value, error) {
	if _, err := extractUint8(&payload); err != nil { // 0x00 packet header
		return nil, protocolError(err, "decode binary row: header")
	}
	bitmapLen := (len(cols) + 7 + 2) / 8
	bitmap, err := extractFixedLengthBytes(&payload, bitmapLen)
	if err != nil {
		return nil, protocolError(err, "decode binary row: null bitmap")
	}
	nullBitmap := Bitmap(bitmap)

	values := make([]Value, len(cols))
	for idx, col := range cols {
		if nullBitmap.IsSet(idx + 2) {
			values[idx] = nullValue(col.Type)
			continue
		}
		unsigned := ColFlags(col.Flags).IsSet(ColFlagUnsigned)
		colCS, _ := charset.ByNum(col.CharSet8())
		v, err := decodeBinaryValue(col.Type, unsigned, connCS, colCS, &payload)
		if err != nil {
			return nil, protocolError(err, "decode binary row field %d", idx)
		}
		values[idx] = v
	}
	return values, nil
}

// ---- text protocol row decode (spec.md §4.6) ----

// decodeTextRow decodes one text-protocol row: each column is an LCS,
// NULL represented by the LCB NULL marker 0xFB (spec.md §3 "Row
// (text)"). connCS is the connection's negotiated charset, spec.md
// §4.4's decode target for non-binary columns.
func decodeTextRow(cols []*ColumnDef41, connCS *charset.Charset, payload []byte) (values []Value, err error) {
	values = make([]Value, len(cols))
	for idx, col := range cols {
		raw, ok, err := extractLCS(&payload)
		if err != nil {
			return nil, protocolError(err, "decode text row field %d", idx)
		}
		if !ok {
			values[idx] = nullValue(col.Type)
			continue
		}
		colCS, _ := charset.ByNum(col.CharSet8())
		decoded := raw
		if colCS == nil || !colCS.Binary {
			decoded, err = connCS.Decode(raw)
			if err != nil {
				return nil, err
			}
		}
		values[idx] = Value{Kind: col.Type, b: decoded, Text: true, Unsigned: ColFlags(col.Flags).IsSet(ColFlagUnsigned)}
	}
	return values, nil
}
