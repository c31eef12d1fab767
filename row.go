package mysql

import (
	"database/sql/driver"
	"io"
	"reflect"
)

var _ driver.Rows = (*rows)(nil)
var _ driver.RowsColumnTypeScanType = (*rows)(nil)
var _ driver.RowsNextResultSet = (*rows)(nil)

// rows adapts a buffered resultSet to database/sql/driver.Rows
// (spec.md §4.6).
type rows struct {
	rs *resultSet
}

func (r *rows) Columns() []string { return r.rs.columnNames() }

func (r *rows) Close() error { return nil }

func (r *rows) Next(dest []driver.Value) error {
	row, ok := r.rs.fetchRow()
	if !ok {
		return io.EOF
	}
	for i, v := range row {
		dest[i] = v.Native()
	}
	return nil
}

// ColumnTypeScanType lets database/sql pick Go's preferred scan
// destination per MySQL column type: int64 (uint64 when unsigned) for
// integer columns, float64 for FLOAT/DOUBLE, []byte for everything
// else. This is what Value.Native returns for integer and float
// columns of binary-protocol rows; text-protocol rows return []byte
// for every column, and binary DATE/DATETIME/TIMESTAMP/TIME columns
// return time.Time.
func (r *rows) ColumnTypeScanType(index int) reflect.Type {
	col := r.rs.cols[index]
	unsigned := ColFlags(col.Flags).IsSet(ColFlagUnsigned)
	switch col.Type {
	case ColTypeTiny, ColTypeShort, ColTypeLong, ColTypeInt24, ColTypeLongLong, ColTypeYear:
		if unsigned {
			return reflect.TypeOf(uint64(0))
		}
		return reflect.TypeOf(int64(0))
	case ColTypeFloat, ColTypeDouble:
		return reflect.TypeOf(float64(0))
	default:
		return reflect.TypeOf([]byte(nil))
	}
}

// HasNextResultSet reports whether a multi-statement/CALL exchange
// (spec.md §4.5 next_result) left another result set already buffered
// behind this one.
func (r *rows) HasNextResultSet() bool { return r.rs.next != nil }

// NextResultSet advances to the next result set in the chain. Every
// link was drained under the same framer lock the first one was read
// under, so this never touches the network.
func (r *rows) NextResultSet() error {
	if r.rs.next == nil {
		return io.EOF
	}
	r.rs = r.rs.next
	return nil
}

// ColumnTypeDatabaseTypeName reports the MySQL column type name, the
// other half of the driver.RowsColumnTypeDatabaseTypeName interface
// database/sql probes for.
func (r *rows) ColumnTypeDatabaseTypeName(index int) string {
	return colTypeName(r.rs.cols[index].Type)
}

func colTypeName(t byte) string {
	switch t {
	case ColTypeTiny:
		return "TINYINT"
	case ColTypeShort:
		return "SMALLINT"
	case ColTypeInt24:
		return "MEDIUMINT"
	case ColTypeLong:
		return "INT"
	case ColTypeLongLong:
		return "BIGINT"
	case ColTypeFloat:
		return "FLOAT"
	case ColTypeDouble:
		return "DOUBLE"
	case ColTypeDecimal, ColTypeNewDecimal:
		return "DECIMAL"
	case ColTypeYear:
		return "YEAR"
	case ColTypeDate, ColTypeNewDate:
		return "DATE"
	case ColTypeDateTime:
		return "DATETIME"
	case ColTypeTimestamp:
		return "TIMESTAMP"
	case ColTypeTime:
		return "TIME"
	case ColTypeVarChar, ColTypeVarString:
		return "VARCHAR"
	case ColTypeString:
		return "CHAR"
	case ColTypeTinyBLOB, ColTypeMediumBLOB, ColTypeLongBLOB, ColTypeBLOB:
		return "BLOB"
	case ColTypeEnum:
		return "ENUM"
	case ColTypeSet:
		return "SET"
	case ColTypeBit:
		return "BIT"
	case ColTypeJSON:
		return "JSON"
	case ColTypeGeometry:
		return "GEOMETRY"
	case ColTypeNULL:
		return "NULL"
	default:
		return "UNKNOWN"
	}
}

var _ driver.Result = (*result)(nil)

// result is the driver.Result returned from Exec (spec.md §2,
// "last OK"'s affected-rows/last-insert-id pair).
type result struct {
	affectedRows int64
	lastInsertID int64
}

func (r *result) LastInsertId() (int64, error) { return r.lastInsertID, nil }

func (r *result) RowsAffected() (int64, error) { return r.affectedRows, nil }
