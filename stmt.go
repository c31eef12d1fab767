package mysql

import (
	"bytes"
	"database/sql/driver"
	"runtime"
)

var _ driver.Stmt = (*stmt)(nil)

// stmt is a server-side prepared statement (spec.md §4.7): one
// STATEMENT_ID bound to the connection that prepared it, plus the
// parameter/column metadata returned with STMT_PREPARE_OK.
type stmt struct {
	mc        *mysqlConn
	id        uint32
	query     string
	numParams int
	numCols   int
	paramDefs []*ColumnDef41
	colDefs   []*ColumnDef41
	closed    bool
}

// prepare implements spec.md §2's "prepare": write COM_STMT_PREPARE,
// read STMT_PREPARE_OK, then drain the parameter and column
// definition blocks it announces.
func (mc *mysqlConn) prepare(query string) (*stmt, error) {
	mc.fr.Lock()
	defer mc.fr.Unlock()

	if err := mc.writeCommand(encodeComStmtPrepare(query)); err != nil {
		return nil, err
	}

	pkt, err := mc.fr.ReadPacket()
	if err != nil {
		return nil, err
	}
	if pktFirstByte(pkt) == markerErr {
		ep, err := decodeErrPacket(pkt.Payload, mc.capFlags)
		if err != nil {
			return nil, err
		}
		return nil, ep.asError()
	}

	ok, err := decodeStmtPrepareOK(pkt.Payload)
	if err != nil {
		return nil, err
	}

	s := &stmt{
		mc:        mc,
		id:        ok.StatementID,
		query:     query,
		numParams: int(ok.NumParams),
		numCols:   int(ok.NumCols),
	}

	if s.numParams > 0 {
		s.paramDefs, err = mc.readColumnDefBlock(s.numParams)
		if err != nil {
			return nil, err
		}
	}
	if s.numCols > 0 {
		s.colDefs, err = mc.readColumnDefBlock(s.numCols)
		if err != nil {
			return nil, err
		}
	}

	// STMT_CLOSE never gets a response, so there is nothing to wait
	// for here; the finalizer below is only a backstop for statements
	// a caller forgot to Close.
	runtime.SetFinalizer(s, (*stmt).finalizerClose)

	return s, nil
}

// readColumnDefBlock reads n field descriptors, followed by the
// trailing EOF when CapClientDeprecateEof was not negotiated.
func (mc *mysqlConn) readColumnDefBlock(n int) ([]*ColumnDef41, error) {
	defs := make([]*ColumnDef41, 0, n)
	for i := 0; i < n; i++ {
		pkt, err := mc.fr.ReadPacket()
		if err != nil {
			return nil, err
		}
		col, err := decodeColumnDef41(pkt.Payload, false)
		if err != nil {
			return nil, err
		}
		defs = append(defs, col)
	}
	if !mc.capFlags.IsSet(CapClientDeprecateEof) {
		if _, err := mc.readEOF(); err != nil {
			return nil, err
		}
	}
	return defs, nil
}

func (s *stmt) NumInput() int { return s.numParams }

func (s *stmt) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	runtime.SetFinalizer(s, nil)
	return s.sendClose()
}

// finalizerClose is the runtime.SetFinalizer backstop: a statement a
// caller never explicitly Closed still frees its server-side handle
// once garbage collected. It sends STMT_CLOSE itself through
// sendClose, on the finalizer goroutine, blocking on the framer lock
// until any in-flight exchange has finished; there is no separate
// close queue on the connection.
func (s *stmt) finalizerClose() {
	if s.closed {
		return
	}
	s.closed = true
	_ = s.sendClose()
}

func (s *stmt) sendClose() error {
	if s.mc.isClosed() {
		return nil
	}
	s.mc.fr.Lock()
	defer s.mc.fr.Unlock()
	// COM_STMT_CLOSE has no response packet.
	return s.mc.writeCommand(encodeComStmtClose(s.id))
}

func (s *stmt) buildExecutePayload(args []driver.Value) ([]byte, error) {
	if len(args) != s.numParams {
		return nil, clientError("stmt %q expects %d parameters, got %d", s.query, s.numParams, len(args))
	}

	buf := &bytes.Buffer{}
	buf.WriteByte(ComStmtExecute)
	buf.Write(marshalUint32(s.id))
	buf.WriteByte(CursorTypeNoCursor)
	buf.Write(marshalUint32(1)) // iteration count, always 1

	if len(args) == 0 {
		return buf.Bytes(), nil
	}

	nullBitmap := make(Bitmap, (len(args)+7)/8)
	types := make([]byte, 0, len(args)*2)
	values := &bytes.Buffer{}
	for i, a := range args {
		typ, unsignedFlag, data, err := encodeBinaryParam(a)
		if err != nil {
			return nil, err
		}
		if a == nil {
			nullBitmap.Set(i)
		}
		types = append(types, typ, unsignedFlag)
		values.Write(data)
	}

	buf.Write(nullBitmap)
	buf.WriteByte(1) // new-params-bound-flag
	buf.Write(types)
	buf.Write(values.Bytes())
	return buf.Bytes(), nil
}

// execute runs COM_STMT_EXECUTE and drains the resulting chain of
// result sets (spec.md §4.5 next_result), fully buffered under one
// framer lock the same way query does.
func (s *stmt) execute(args []driver.Value) (*resultSet, error) {
	if s.closed {
		return nil, clientError("stmt %q has been closed", s.query)
	}

	payload, err := s.buildExecutePayload(args)
	if err != nil {
		return nil, err
	}

	mc := s.mc
	mc.fr.Lock()
	defer mc.fr.Unlock()

	if err := mc.writeCommand(payload); err != nil {
		return nil, err
	}

	return mc.readResultChain(true, s.colDefs)
}

func (s *stmt) Exec(args []driver.Value) (driver.Result, error) {
	rs, err := s.execute(args)
	if err != nil {
		return nil, err
	}
	return &result{affectedRows: int64(rs.affectedRows), lastInsertID: int64(rs.lastInsertID)}, nil
}

func (s *stmt) Query(args []driver.Value) (driver.Rows, error) {
	rs, err := s.execute(args)
	if err != nil {
		return nil, err
	}
	return &rows{rs: rs}, nil
}
