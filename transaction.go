package mysql

import "database/sql/driver"

var _ driver.Tx = (*tx)(nil)

// tx is the driver.Tx handed back by BeginTx (spec.md §2
// "commit"/"rollback").
type tx struct {
	conn *mysqlConn
}

func (t *tx) Commit() error {
	if t.conn.isClosed() {
		return ErrConnHasBeenClosed
	}
	if err := t.conn.execCmdQuery("COMMIT"); err != nil {
		return t.conn.handleCommandError(err)
	}
	return nil
}

func (t *tx) Rollback() error {
	if t.conn.isClosed() {
		return ErrConnHasBeenClosed
	}
	if err := t.conn.execCmdQuery("ROLLBACK"); err != nil {
		return t.conn.handleCommandError(err)
	}
	return nil
}
