// Package charset is the Charset directory spec.md assumes available: a
// lookup table mapping the wire charset id negotiated during the
// handshake to its symbolic collation/charset name and to a host text
// encoding capable of decoding column bytes for that charset.
package charset

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
)

// Charset is one row of the Charset directory: a wire id, its MySQL
// collation name, the bare charset name, and the host encoding used to
// decode bytes stored under it.
type Charset struct {
	Num       uint8
	Name      string // charset name, e.g. "utf8mb4"
	Collation string // default collation for Num, e.g. "utf8mb4_general_ci"
	Encoding  encoding.Encoding
	Binary    bool // *_bin collations and the binary charset decode as raw bytes
}

// byNum and byName mirror the mysql client library's internal charset
// table, trimmed to the charsets this driver's pack of reference
// implementations actually exercises.
var byNum = map[uint8]*Charset{}
var byName = map[string]*Charset{}

func register(num uint8, name, collation string, enc encoding.Encoding) {
	cs := &Charset{Num: num, Name: name, Collation: collation, Encoding: enc,
		Binary: enc == nil || strings.HasSuffix(collation, "_bin")}
	byNum[num] = cs
	// First registration for a name wins as the default collation entry
	// used by charset.ByName; MySQL itself resolves "charset=x" the same
	// way (to the charset's default collation).
	if _, ok := byName[name]; !ok {
		byName[name] = cs
	}
}

func init() {
	register(8, "latin1", "latin1_swedish_ci", charmap.Windows1252)
	register(33, "utf8", "utf8_general_ci", unicode.UTF8)
	register(45, "utf8mb4", "utf8mb4_general_ci", unicode.UTF8)
	register(46, "utf8mb4", "utf8mb4_bin", unicode.UTF8)
	register(63, "binary", "binary", nil)
	register(28, "gbk", "gbk_chinese_ci", simplifiedchinese.GBK)
	register(24, "gb2312", "gb2312_chinese_ci", simplifiedchinese.HZGB2312)
	register(248, "gb18030", "gb18030_chinese_ci", simplifiedchinese.GB18030)
	register(13, "sjis", "sjis_japanese_ci", japanese.ShiftJIS)
	register(95, "cp932", "cp932_japanese_ci", japanese.ShiftJIS)
	register(51, "euckr", "euckr_korean_ci", korean.EUCKR)
	register(56, "cp1250", "cp1250_czech_cs", charmap.Windows1250)
	register(11, "ascii", "ascii_general_ci", unicode.UTF8)
	register(55, "utf16", "utf16_general_ci", unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM))
	register(54, "utf16le", "utf16le_general_ci", unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM))
	register(60, "utf32", "utf32_general_ci", unicode.UTF8) // approximate: utf32 has no x/text codec, fall back
}

// ByNum looks up the Charset directory entry for a wire charset id, as
// negotiated in the handshake (spec.md §4.3) or sent back in a
// ColumnDef41.CharSet field.
func ByNum(num uint8) (*Charset, error) {
	cs, ok := byNum[num]
	if !ok {
		return nil, fmt.Errorf("charset: unknown charset id %d", num)
	}
	return cs, nil
}

// ByName resolves a symbolic charset name (as configured via the
// `charset` DSN option) to its directory entry.
func ByName(name string) (*Charset, error) {
	cs, ok := byName[name]
	if !ok {
		return nil, fmt.Errorf("charset: unknown charset name %q", name)
	}
	return cs, nil
}

// Decode converts the wire bytes of a column value into host text
// according to cs. The binary charset and *_bin collations pass bytes
// through unchanged, matching spec.md §4.4's "BIT and binary-flagged →
// binary" rule.
func (cs *Charset) Decode(b []byte) ([]byte, error) {
	if cs == nil || cs.Binary || cs.Encoding == nil {
		return b, nil
	}
	out, err := cs.Encoding.NewDecoder().Bytes(b)
	if err != nil {
		return nil, fmt.Errorf("charset: decode under %s: %w", cs.Name, err)
	}
	return out, nil
}

// Encode converts host text into wire bytes under cs, for outbound
// query/parameter strings.
func (cs *Charset) Encode(s []byte) ([]byte, error) {
	if cs == nil || cs.Binary || cs.Encoding == nil {
		return s, nil
	}
	out, err := cs.Encoding.NewEncoder().Bytes(s)
	if err != nil {
		return nil, fmt.Errorf("charset: encode under %s: %w", cs.Name, err)
	}
	return out, nil
}
