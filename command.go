package mysql

import "bytes"

// command.go implements spec.md §2's command façade: each exported
// operation resets the sequence counter, writes one command packet
// under the framer's critical section, and drains the matching
// response grammar before releasing it. Result sets are read eagerly
// and fully buffered (spec.md §4.6) so the lock never outlives a
// single request/response exchange.

// genericResponse is whichever of OK/ERR a command that doesn't
// return a result set may see.
type genericResponse struct {
	ok  *OkPacket
	err *ErrPacket
}

func (mc *mysqlConn) writeCommand(payload []byte) error {
	mc.fr.ResetSeq()
	if err := mc.fr.WritePacket(payload); err != nil {
		return err
	}
	return nil
}

// readGenericResponse reads exactly one packet and classifies it as OK
// or ERR. It does not handle column-count/result-set responses; use
// readResultChain for COM_QUERY/COM_STMT_EXECUTE.
func (mc *mysqlConn) readGenericResponse() (*genericResponse, error) {
	pkt, err := mc.fr.ReadPacket()
	if err != nil {
		return nil, err
	}
	switch {
	case len(pkt.Payload) > 0 && pkt.Payload[0] == markerOK:
		ok, err := decodeOkPacket(pkt.Payload, mc.capFlags)
		if err != nil {
			return nil, err
		}
		mc.status = ok.StatusFlags
		mc.lastInsertID = ok.LastInsertID
		mc.affectedRows = ok.AffectedRows
		mc.warnings = ok.Warnings
		return &genericResponse{ok: ok}, nil
	case len(pkt.Payload) > 0 && pkt.Payload[0] == markerErr:
		ep, err := decodeErrPacket(pkt.Payload, mc.capFlags)
		if err != nil {
			return nil, err
		}
		return &genericResponse{err: ep}, nil
	default:
		return nil, protocolErrorf("unexpected response packet, first byte %#x", pktFirstByte(pkt))
	}
}

func pktFirstByte(pkt *Packet) byte {
	if len(pkt.Payload) == 0 {
		return 0
	}
	return pkt.Payload[0]
}

// doSimpleCommand runs a command that never returns a result set and
// answers with a single OK/ERR: COM_PING, COM_INIT_DB, COM_REFRESH,
// COM_PROCESS_KILL, COM_SET_OPTION. COM_QUIT gets no reply and is
// sent by quit instead.
func (mc *mysqlConn) doSimpleCommand(payload []byte) error {
	mc.fr.Lock()
	defer mc.fr.Unlock()

	if err := mc.writeCommand(payload); err != nil {
		return err
	}
	resp, err := mc.readGenericResponse()
	if err != nil {
		return err
	}
	if resp.err != nil {
		return resp.err.asError()
	}
	return nil
}

// query runs text-protocol COM_QUERY and returns the resulting chain
// of result sets, fully drained under one framer lock (spec.md §2
// "query"). A statement with no SELECT result is still represented as
// a *resultSet, just one with no columns/rows, carrying the OK
// packet's affected-rows/last-insert-id pair instead.
func (mc *mysqlConn) query(query string) (*resultSet, error) {
	mc.fr.Lock()
	defer mc.fr.Unlock()

	buf := &bytes.Buffer{}
	buf.WriteByte(ComQuery)
	buf.WriteString(query)
	if err := mc.writeCommand(buf.Bytes()); err != nil {
		return nil, err
	}

	return mc.readResultChain(false, nil)
}

// readResultChain reads one result header and, per spec.md §4.5's
// next_result, keeps reading further result headers on the very same
// exchange - without ever resetting the sequence id in between - for
// as long as the previous header's status flags report
// SERVER_MORE_RESULTS_EXISTS. binary selects the COM_STMT_EXECUTE
// decode path, with cachedCols as that statement's column snapshot.
func (mc *mysqlConn) readResultChain(binary bool, cachedCols []*ColumnDef41) (*resultSet, error) {
	head, err := mc.readOneResult(binary, cachedCols)
	if err != nil {
		return nil, err
	}
	cur := head
	for cur.status.MoreResultsExists() {
		next, err := mc.readOneResult(binary, cachedCols)
		if err != nil {
			return nil, err
		}
		cur.next = next
		cur = next
	}
	return head, nil
}

// readOneResult reads a single result header - OK, ERR, a local-infile
// request, or a column-count announcing a result set - and wraps
// whichever it sees as one *resultSet chain link.
func (mc *mysqlConn) readOneResult(binary bool, cachedCols []*ColumnDef41) (*resultSet, error) {
	pkt, err := mc.fr.ReadPacket()
	if err != nil {
		return nil, err
	}

	switch pktFirstByte(pkt) {
	case markerOK:
		ok, err := decodeOkPacket(pkt.Payload, mc.capFlags)
		if err != nil {
			return nil, err
		}
		mc.status, mc.lastInsertID, mc.affectedRows, mc.warnings = ok.StatusFlags, ok.LastInsertID, ok.AffectedRows, ok.Warnings
		return okResultSet(ok), nil
	case markerErr:
		ep, err := decodeErrPacket(pkt.Payload, mc.capFlags)
		if err != nil {
			return nil, err
		}
		return nil, ep.asError()
	case markerLocalInfile:
		if err := mc.handleLoadDataLocalInfile(pkt.Payload); err != nil {
			return nil, err
		}
		resp, err := mc.readGenericResponse()
		if err != nil {
			return nil, err
		}
		if resp.err != nil {
			return nil, resp.err.asError()
		}
		return okResultSet(resp.ok), nil
	default:
		colCount, err := extractLCB(&pkt.Payload)
		if err != nil {
			return nil, protocolError(err, "result header: column count")
		}
		if !binary {
			return mc.readResultSet(int(colCount), nil)
		}
		cols := cachedCols
		if int(colCount) != len(cols) {
			// server sent fresh metadata (CapClientOptResultSetMetadata
			// resend, or a statement whose shape changed); read it instead
			// of trusting the cached snapshot.
			cols, err = mc.readColumnDefBlock(int(colCount))
			if err != nil {
				return nil, err
			}
		}
		return mc.readResultSet(int(colCount), cols)
	}
}

func okResultSet(ok *OkPacket) *resultSet {
	return &resultSet{
		status:       ok.StatusFlags,
		warnings:     ok.Warnings,
		affectedRows: ok.AffectedRows,
		lastInsertID: ok.LastInsertID,
	}
}

// readResultSet drains a column-definition block followed by a row
// stream, fully buffering both (spec.md §4.6). When cols is non-nil,
// rows decode via the binary protocol against that column set (a
// prepared-statement execute result); otherwise colCount column
// definitions (plus their EOF, unless CapClientDeprecateEof) are read
// first, followed by text rows.
func (mc *mysqlConn) readResultSet(colCount int, presetCols []*ColumnDef41) (*resultSet, error) {
	cols := presetCols
	if cols == nil {
		cols = make([]*ColumnDef41, 0, colCount)
		for i := 0; i < colCount; i++ {
			pkt, err := mc.fr.ReadPacket()
			if err != nil {
				return nil, err
			}
			col, err := decodeColumnDef41(pkt.Payload, false)
			if err != nil {
				return nil, err
			}
			cols = append(cols, col)
		}
		if !mc.capFlags.IsSet(CapClientDeprecateEof) {
			if _, err := mc.readEOF(); err != nil {
				return nil, err
			}
		}
	}

	rs := &resultSet{cols: cols}
	for {
		pkt, err := mc.fr.ReadPacket()
		if err != nil {
			return nil, err
		}
		if isEOFPacket(pkt.Payload, mc.capFlags) {
			eof, err := decodeEOFPacket(pkt.Payload)
			if err != nil {
				return nil, err
			}
			rs.warnings, rs.status = eof.Warnings, eof.StatusFlags
			mc.status = eof.StatusFlags
			break
		}
		if mc.capFlags.IsSet(CapClientDeprecateEof) && pktFirstByte(pkt) == markerOK {
			ok, err := decodeOkPacket(pkt.Payload, mc.capFlags)
			if err != nil {
				return nil, err
			}
			rs.warnings, rs.status = ok.Warnings, ok.StatusFlags
			mc.status = ok.StatusFlags
			break
		}
		if pktFirstByte(pkt) == markerErr {
			ep, err := decodeErrPacket(pkt.Payload, mc.capFlags)
			if err != nil {
				return nil, err
			}
			return nil, ep.asError()
		}

		var row []Value
		if presetCols != nil {
			row, err = decodeBinaryRow(cols, mc.charset, pkt.Payload)
		} else {
			row, err = decodeTextRow(cols, mc.charset, pkt.Payload)
		}
		if err != nil {
			return nil, err
		}
		rs.rows = append(rs.rows, row)
	}
	return rs, nil
}

func (mc *mysqlConn) readEOF() (*EOFPacket, error) {
	pkt, err := mc.fr.ReadPacket()
	if err != nil {
		return nil, err
	}
	if pktFirstByte(pkt) != markerEOF {
		return nil, protocolErrorf("expected EOF packet, got first byte %#x", pktFirstByte(pkt))
	}
	return decodeEOFPacket(pkt.Payload)
}

// execCmdQuery runs query purely for its side effect (COMMIT,
// ROLLBACK, SET TRANSACTION ISOLATION LEVEL ...), discarding any
// result set it might unexpectedly produce.
func (mc *mysqlConn) execCmdQuery(query string) error {
	_, err := mc.query(query)
	return err
}

// ping implements COM_PING (spec.md §2 "ping").
func (mc *mysqlConn) ping() error {
	return mc.doSimpleCommand([]byte{ComPing})
}

// selectDB implements COM_INIT_DB (spec.md §2 "select_db").
func (mc *mysqlConn) selectDB(name string) error {
	buf := &bytes.Buffer{}
	buf.WriteByte(ComInitDB)
	buf.WriteString(name)
	return mc.doSimpleCommand(buf.Bytes())
}

// refresh implements COM_REFRESH (spec.md §2 "refresh").
func (mc *mysqlConn) refresh(flags uint8) error {
	return mc.doSimpleCommand([]byte{ComRefresh, flags})
}

// kill implements COM_PROCESS_KILL (spec.md §2 "kill").
func (mc *mysqlConn) kill(connID uint32) error {
	buf := &bytes.Buffer{}
	buf.WriteByte(ComProcessKill)
	buf.Write(marshalUint32(connID))
	return mc.doSimpleCommand(buf.Bytes())
}

// stat implements COM_STATISTICS (spec.md §2 "stat"): the server's
// reply is a single EOF-less plain string packet, not an OK/ERR pair.
func (mc *mysqlConn) stat() (string, error) {
	mc.fr.Lock()
	defer mc.fr.Unlock()

	if err := mc.writeCommand([]byte{ComStatistics}); err != nil {
		return "", err
	}
	pkt, err := mc.fr.ReadPacket()
	if err != nil {
		return "", err
	}
	return string(pkt.Payload), nil
}

// quit implements COM_QUIT: a fire-and-forget notification that
// precedes closing the socket (spec.md §2 "close").
func (mc *mysqlConn) quit() {
	mc.fr.Lock()
	defer mc.fr.Unlock()
	_ = mc.writeCommand([]byte{ComQuit})
}
