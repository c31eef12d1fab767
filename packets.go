package mysql

import "bytes"

// ---- OK / ERR / EOF (spec.md §4.3) ----

// OkPacket is the spec.md §4.3 OK packet.
type OkPacket struct {
	AffectedRows uint64
	LastInsertID uint64
	StatusFlags  ServerStatus
	Warnings     uint16
	Info         string
}

func decodeOkPacket(data []byte, cf CapFlag) (*OkPacket, error) {
	if _, err := extractUint8(&data); err != nil { // 0x00 header
		return nil, protocolError(err, "OK packet: header")
	}
	ok := &OkPacket{}
	var err error
	ok.AffectedRows, err = extractLCB(&data)
	if err != nil {
		return nil, protocolError(err, "OK packet: affected rows")
	}
	ok.LastInsertID, err = extractLCB(&data)
	if err != nil {
		return nil, protocolError(err, "OK packet: last insert id")
	}
	if cf.IsSet(CapClientProtocol41) || cf.IsSet(CapClientTransactions) {
		status, err := extractUint16(&data)
		if err != nil {
			return nil, protocolError(err, "OK packet: status flags")
		}
		ok.StatusFlags = ServerStatus(status)
	}
	if cf.IsSet(CapClientProtocol41) {
		ok.Warnings, err = extractUint16(&data)
		if err != nil {
			return nil, protocolError(err, "OK packet: warning count")
		}
	}
	if len(data) > 0 {
		ok.Info, _ = extractRestOfPacketString(&data)
	}
	return ok, nil
}

// ErrPacket is the spec.md §4.3 ERR packet.
type ErrPacket struct {
	ErrCode  uint16
	SQLState string
	Message  string
}

func decodeErrPacket(data []byte, cf CapFlag) (*ErrPacket, error) {
	if _, err := extractUint8(&data); err != nil { // 0xFF header
		return nil, protocolError(err, "ERR packet: header")
	}
	ep := &ErrPacket{}
	var err error
	ep.ErrCode, err = extractUint16(&data)
	if err != nil {
		return nil, protocolError(err, "ERR packet: error code")
	}
	if cf.IsSet(CapClientProtocol41) && len(data) > 0 && data[0] == '#' {
		marker, err := extractFixedLengthBytes(&data, 1)
		if err != nil || marker[0] != '#' {
			return nil, protocolErrorf("ERR packet: bad sqlstate marker")
		}
		ep.SQLState, err = extractFixedLengthString(&data, 5)
		if err != nil {
			return nil, protocolError(err, "ERR packet: sqlstate")
		}
	} else {
		ep.SQLState = defaultSQLState
	}
	ep.Message, _ = extractRestOfPacketString(&data)
	return ep, nil
}

func (ep *ErrPacket) asError() *Error {
	return serverError(ep.ErrCode, ep.SQLState, ep.Message)
}

// EOFPacket is the spec.md §4.3/glossary EOF packet terminating field
// and row streams.
type EOFPacket struct {
	Warnings    uint16
	StatusFlags ServerStatus
}

func decodeEOFPacket(data []byte) (*EOFPacket, error) {
	if _, err := extractUint8(&data); err != nil { // 0xFE header
		return nil, protocolError(err, "EOF packet: header")
	}
	e := &EOFPacket{}
	if len(data) >= 4 {
		w, err := extractUint16(&data)
		if err != nil {
			return nil, protocolError(err, "EOF packet: warnings")
		}
		e.Warnings = w
		s, err := extractUint16(&data)
		if err != nil {
			return nil, protocolError(err, "EOF packet: status")
		}
		e.StatusFlags = ServerStatus(s)
	}
	return e, nil
}

// isEOFPacket reports whether data is the 0xFE terminator of a field
// or row stream. Without CapClientDeprecateEof only a payload shorter
// than 9 bytes counts, so a row whose first column starts with the
// 0xFE 8-byte length prefix is not mistaken for EOF. With
// CapClientDeprecateEof any 0xFE payload shorter than 0xFFFFFF bytes
// counts, since the terminator is then an OK packet carrying the 0xFE
// header.
func isEOFPacket(data []byte, cf CapFlag) bool {
	if len(data) == 0 || data[0] != markerEOF {
		return false
	}
	if cf.IsSet(CapClientDeprecateEof) {
		return len(data) < 0xFFFFFF
	}
	return len(data) < 9
}

// ---- field / column metadata (spec.md §4.3 "Field packet") ----

// ColumnDef41 is the spec.md §3 "Field descriptor".
type ColumnDef41 struct {
	Catalog  string
	Schema   string
	Table    string
	OrgTable string
	Name     string
	OrgName  string
	CharSet  uint16
	ColLen   uint32
	Type     byte
	Flags    uint16
	Decimals uint8
	Default  string // only populated by FIELD_LIST responses
}

// CharSet8 narrows the 16-bit wire charset number to the 8-bit id the
// charset directory is keyed by; real MySQL charset ids never exceed
// 255 as of this protocol version.
func (c *ColumnDef41) CharSet8() uint8 { return uint8(c.CharSet) }

// IsNum mirrors spec.md §3's derived "is_num" flag.
func (c *ColumnDef41) IsNum() bool { return isNumeric(c.Type, c.ColLen) }

func decodeColumnDef41(data []byte, withDefault bool) (*ColumnDef41, error) {
	c := &ColumnDef41{}
	var err error
	if c.Catalog, err = extractLengthEncodeString(&data); err != nil {
		return nil, protocolError(err, "column def: catalog")
	}
	if c.Schema, err = extractLengthEncodeString(&data); err != nil {
		return nil, protocolError(err, "column def: schema")
	}
	if c.Table, err = extractLengthEncodeString(&data); err != nil {
		return nil, protocolError(err, "column def: table")
	}
	if c.OrgTable, err = extractLengthEncodeString(&data); err != nil {
		return nil, protocolError(err, "column def: org_table")
	}
	if c.Name, err = extractLengthEncodeString(&data); err != nil {
		return nil, protocolError(err, "column def: name")
	}
	if c.OrgName, err = extractLengthEncodeString(&data); err != nil {
		return nil, protocolError(err, "column def: org_name")
	}
	if _, err = extractLCB(&data); err != nil { // 0x0C filler length
		return nil, protocolError(err, "column def: filler length")
	}
	if c.CharSet, err = extractUint16(&data); err != nil {
		return nil, protocolError(err, "column def: charset")
	}
	if c.ColLen, err = extractUint32(&data); err != nil {
		return nil, protocolError(err, "column def: length")
	}
	if c.Type, err = extractUint8(&data); err != nil {
		return nil, protocolError(err, "column def: type")
	}
	if c.Flags, err = extractUint16(&data); err != nil {
		return nil, protocolError(err, "column def: flags")
	}
	if c.Decimals, err = extractUint8(&data); err != nil {
		return nil, protocolError(err, "column def: decimals")
	}
	if _, err = extractFixedLengthBytes(&data, 2); err != nil { // filler
		return nil, protocolError(err, "column def: filler")
	}
	if withDefault && len(data) > 0 {
		if c.Default, err = extractLengthEncodeString(&data); err != nil {
			return nil, protocolError(err, "column def: default")
		}
	}
	return c, nil
}

// ---- prepared statement packets (spec.md §4.3/§4.7) ----

// StmtPrepareOK is the response to COM_STMT_PREPARE.
type StmtPrepareOK struct {
	StatementID uint32
	NumCols     uint16
	NumParams   uint16
	Warnings    uint16
}

func decodeStmtPrepareOK(data []byte) (*StmtPrepareOK, error) {
	if _, err := extractUint8(&data); err != nil { // 0x00 status
		return nil, protocolError(err, "prepare-ok: status")
	}
	ok := &StmtPrepareOK{}
	var err error
	if ok.StatementID, err = extractUint32(&data); err != nil {
		return nil, protocolError(err, "prepare-ok: statement id")
	}
	if ok.NumCols, err = extractUint16(&data); err != nil {
		return nil, protocolError(err, "prepare-ok: num cols")
	}
	if ok.NumParams, err = extractUint16(&data); err != nil {
		return nil, protocolError(err, "prepare-ok: num params")
	}
	if _, err = extractUint8(&data); err != nil { // filler
		return nil, protocolError(err, "prepare-ok: filler")
	}
	if len(data) >= 2 {
		if ok.Warnings, err = extractUint16(&data); err != nil {
			return nil, protocolError(err, "prepare-ok: warning count")
		}
	}
	return ok, nil
}

func encodeComStmtPrepare(query string) []byte {
	buf := &bytes.Buffer{}
	buf.WriteByte(ComStmtPrepare)
	buf.WriteString(query)
	return buf.Bytes()
}

func encodeComStmtClose(stmtID uint32) []byte {
	buf := &bytes.Buffer{}
	buf.WriteByte(ComStmtClose)
	buf.Write(marshalUint32(stmtID))
	return buf.Bytes()
}

// cursorType values for COM_STMT_EXECUTE's flags byte. This driver
// always sends CursorTypeNoCursor (spec.md §1 Non-goals: no
// server-side cursors).
const CursorTypeNoCursor = 0x00
