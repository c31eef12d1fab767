package mysql

// resultSet is the eager-buffered result of a query or statement
// execute (spec.md §4.6): every row is decoded up front while the
// framer's lock is held, so the cursor operations below never touch
// the network.
type resultSet struct {
	cols []*ColumnDef41
	rows [][]Value

	cursor   int
	warnings uint16
	status   ServerStatus

	lastLengths []int

	affectedRows uint64
	lastInsertID uint64

	// next is the following result set in a multi-result exchange
	// (spec.md §4.5 next_result), already drained under the same
	// framer lock this one was read under.
	next *resultSet
}

// fetchRow returns the row at the cursor and advances it, or ok=false
// once every row has been consumed (spec.md glossary "fetch_row").
func (rs *resultSet) fetchRow() (row []Value, ok bool) {
	if rs.cursor >= len(rs.rows) {
		return nil, false
	}
	row = rs.rows[rs.cursor]
	rs.lastLengths = rowLengths(row)
	rs.cursor++
	return row, true
}

// dataSeek repositions the cursor to an absolute row offset
// ("data_seek").
func (rs *resultSet) dataSeek(pos int) {
	if pos < 0 {
		pos = 0
	}
	if pos > len(rs.rows) {
		pos = len(rs.rows)
	}
	rs.cursor = pos
}

// rowTell returns the current cursor position ("row_tell").
func (rs *resultSet) rowTell() int { return rs.cursor }

// rowSeek moves the cursor to pos and returns the position it was
// previously at, mirroring the C API's row_seek/row_tell pairing.
func (rs *resultSet) rowSeek(pos int) int {
	prev := rs.cursor
	rs.dataSeek(pos)
	return prev
}

// fieldSeek is field_seek, kept for API completeness. This driver
// always returns whole rows, so fieldSeek is a no-op: it records
// nothing and does not move the row cursor.
func (rs *resultSet) fieldSeek(int) {}

// fetchLengths reports the byte length of each field in the
// most-recently fetched row ("fetch_lengths").
func (rs *resultSet) fetchLengths() []int { return rs.lastLengths }

func rowLengths(row []Value) []int {
	lens := make([]int, len(row))
	for i, v := range row {
		lens[i] = v.Len()
	}
	return lens
}

// columnNames returns Name for every column, the identifier
// database/sql.Rows.Columns() needs.
func (rs *resultSet) columnNames() []string {
	names := make([]string, len(rs.cols))
	for i, c := range rs.cols {
		names[i] = c.Name
	}
	return names
}
