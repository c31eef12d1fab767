package mysql

import (
	"database/sql"
	"database/sql/driver"
)

func init() {
	sql.Register("mysql41", &mysqlDriver{})
}

var _ driver.Driver = (*mysqlDriver)(nil)

// mysqlDriver is the database/sql entry point; all connection state
// lives on mysqlConn (conn.go).
type mysqlDriver struct{}

func (m *mysqlDriver) Open(dsn string) (driver.Conn, error) {
	cfg, err := parseDsn(dsn)
	if err != nil {
		return nil, err
	}
	return newMysqlConn(cfg)
}
