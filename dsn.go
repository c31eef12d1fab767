package mysql

import (
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mysql-wire/mysql41/charset"
)

// dbCfg is the parsed form of a DSN: "user:password@protocol(ip:port)/dbName?key1=val1&key2=val2"
// (spec.md §6 "Connection string").
type dbCfg struct {
	*dbCfgPath
	*dbCfgQuery
}

type dbCfgPath struct {
	ip         net.IP
	port       uint16
	protocol   string
	unixSocket string
	user       string
	password   string
	dbName     string
}

type dbCfgQuery struct {
	loc                  *time.Location
	charset              string
	charsetNum           uint8
	charsetExplicit      bool
	collation            string
	timeout              time.Duration
	writeTimeout         time.Duration
	readTimeout          time.Duration
	connectTimeout       time.Duration
	allowNativePasswords bool
	allowLocalInfile     bool
	parseTime            bool
	reconnect            bool // advisory flag stored for higher layers (spec.md §6); this driver never auto-reconnects mid-transaction
	initCommands         []string
}

func parseDsn(dsn string) (*dbCfg, error) {
	var path, query string
	if idx := strings.LastIndex(dsn, "?"); idx != -1 {
		path, query = dsn[:idx], dsn[idx+1:]
	} else {
		path = dsn
	}

	pathCfg, err := parseDsnPath(path)
	if err != nil {
		return nil, err
	}
	queryCfg, err := parseDsnQuery(query)
	if err != nil {
		return nil, err
	}

	return &dbCfg{dbCfgPath: pathCfg, dbCfgQuery: queryCfg}, nil
}

// parseDsnPath parses "user:password@protocol(ip:port)/dbName" — a
// hand-rolled scan rather than net/url, because the bracketed
// protocol/address segment isn't valid URL syntax.
func parseDsnPath(path string) (*dbCfgPath, error) {
	ret := &dbCfgPath{}
	var left, right int
	for ; right < len(path); right++ {
		switch path[right] {
		case ':':
			part := path[left:right]
			if ret.user == "" {
				if part == "" {
					return nil, clientError("dsn: missing user field")
				}
				ret.user = part
			} else {
				if part == "" {
					return nil, clientError("dsn: missing host field")
				}
				if ret.ip = net.ParseIP(part); ret.ip == nil {
					ret.ip = resolveHost(part)
				}
			}
			left = right + 1
		case '@':
			part := path[left:right]
			if part == "" {
				return nil, clientError("dsn: missing password field")
			}
			ret.password = part
			left = right + 1
		case '(':
			part := path[left:right]
			if part == "" {
				return nil, clientError("dsn: missing protocol field")
			}
			switch part {
			case "tcp", "unix":
			default:
				return nil, clientError("dsn: unknown protocol %q, want tcp or unix", part)
			}
			ret.protocol = part
			left = right + 1
		case ')':
			part := path[left:right]
			if ret.protocol == "unix" {
				if part == "" {
					return nil, clientError("dsn: missing unix socket path")
				}
				ret.unixSocket = part
				left = right + 1
				continue
			}
			port, err := strconv.ParseUint(part, 10, 16)
			if err != nil {
				return nil, clientError("dsn: invalid port %q, must be in [0, 65535]", part)
			}
			ret.port = uint16(port)
			left = right + 1
		case '/':
			dbName := path[right+1:]
			if len(dbName) == 0 {
				return nil, clientError("dsn: missing database name")
			}
			ret.dbName = dbName
		}
	}

	if err := ret.validate(); err != nil {
		return nil, err
	}
	return ret, nil
}

// resolveHost accepts a bare hostname in the address slot; DNS
// resolution happens lazily at dial time in practice, but the DSN
// parser still wants *some* IP to populate dbCfgPath.ip with, so it
// resolves eagerly here and reports a client error if that fails.
func resolveHost(host string) net.IP {
	addrs, err := net.LookupIP(host)
	if err != nil || len(addrs) == 0 {
		return nil
	}
	return addrs[0]
}

func (d *dbCfgPath) validate() error {
	if d.protocol == "unix" {
		if d.user == "" || d.password == "" || d.dbName == "" || d.unixSocket == "" {
			return clientError("dsn: missing user, password, socket path, or database field")
		}
		return nil
	}
	if d.user == "" || d.password == "" || d.ip == nil || d.port == 0 || d.protocol == "" || d.dbName == "" {
		return clientError("dsn: missing one of user/password/host/port/protocol/database")
	}
	return nil
}

const (
	keyAllowNativePasswords = "allowNativePasswords"
	keyAllowLocalInfile     = "local_infile"
	keyCharset              = "charset"
	keyCollation            = "collation"
	keyLoc                  = "loc"
	keyParseTime            = "parseTime"
	keyTimeout              = "timeout"
	keyReadTimeout          = "read_timeout"
	keyReadTimeoutCamel     = "readTimeout"
	keyWriteTimeout         = "write_timeout"
	keyWriteTimeoutCamel    = "writeTimeout"
	keyConnectTimeout       = "connect_timeout"
	keyReconnect            = "reconnect"
	keyInitCommand          = "init_command"
)

// parseDsnQuery parses the DSN's "?key=val&..." suffix (spec.md §6's
// options table). Unknown keys are rejected outright rather than
// silently ignored.
func parseDsnQuery(query string) (*dbCfgQuery, error) {
	cfg := &dbCfgQuery{
		loc:                  time.Local,
		charset:              "utf8mb4",
		charsetNum:           45,
		collation:            "utf8mb4_general_ci",
		allowNativePasswords: true,
		parseTime:            true,
	}

	params, err := url.ParseQuery(query)
	if err != nil {
		return nil, clientError("dsn: %v", err)
	}

	for key, vals := range params {
		if len(vals) != 1 {
			return nil, clientError("dsn: option %s given %d times, want 1", key, len(vals))
		}
		val := vals[0]
		switch key {
		case keyAllowNativePasswords:
			if cfg.allowNativePasswords, err = strconv.ParseBool(val); err != nil {
				return nil, clientError("dsn: %s=%s: %v", key, val, err)
			}
		case keyAllowLocalInfile:
			if cfg.allowLocalInfile, err = strconv.ParseBool(val); err != nil {
				return nil, clientError("dsn: %s=%s: %v", key, val, err)
			}
		case keyCharset:
			cs, err := charset.ByName(val)
			if err != nil {
				return nil, clientError("dsn: charset %s is invalid", val)
			}
			cfg.charset, cfg.charsetNum = cs.Name, cs.Num
			cfg.charsetExplicit = true
		case keyCollation:
			cfg.collation = val
		case keyLoc:
			switch val {
			case "Local":
				cfg.loc = time.Local
			case "UTC":
				cfg.loc = time.UTC
			default:
				loc, err := time.LoadLocation(val)
				if err != nil {
					return nil, clientError("dsn: loc %q is not a known location", val)
				}
				cfg.loc = loc
			}
		case keyParseTime:
			if cfg.parseTime, err = strconv.ParseBool(val); err != nil {
				return nil, clientError("dsn: %s=%s: %v", key, val, err)
			}
		case keyTimeout:
			if cfg.timeout, err = time.ParseDuration(val); err != nil {
				return nil, clientError("dsn: %s=%s: %v", key, val, err)
			}
		case keyReadTimeout, keyReadTimeoutCamel:
			if cfg.readTimeout, err = time.ParseDuration(val); err != nil {
				return nil, clientError("dsn: %s=%s: %v", key, val, err)
			}
		case keyWriteTimeout, keyWriteTimeoutCamel:
			if cfg.writeTimeout, err = time.ParseDuration(val); err != nil {
				return nil, clientError("dsn: %s=%s: %v", key, val, err)
			}
		case keyConnectTimeout:
			if cfg.connectTimeout, err = time.ParseDuration(val); err != nil {
				return nil, clientError("dsn: %s=%s: %v", key, val, err)
			}
		case keyReconnect:
			if cfg.reconnect, err = strconv.ParseBool(val); err != nil {
				return nil, clientError("dsn: %s=%s: %v", key, val, err)
			}
		case keyInitCommand:
			cfg.initCommands = append(cfg.initCommands, val)
		default:
			return nil, clientError("dsn: unknown option %q", key)
		}
	}

	return cfg, nil
}
