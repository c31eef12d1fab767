package mysql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mysql-wire/mysql41/charset"
)

var _ driver.Conn = (*mysqlConn)(nil)
var _ driver.ConnPrepareContext = (*mysqlConn)(nil)
var _ driver.Pinger = (*mysqlConn)(nil)
var _ driver.ConnBeginTx = (*mysqlConn)(nil)
var _ driver.Validator = (*mysqlConn)(nil)
var _ driver.ExecerContext = (*mysqlConn)(nil)
var _ driver.QueryerContext = (*mysqlConn)(nil)

// mysqlConn is the connection state machine from spec.md §4.5: fresh →
// handshaking → authenticated → idle ↔ command_in_flight →
// reading_result → idle, until close().
type mysqlConn struct {
	cfg *dbCfg
	nc  net.Conn
	fr  *framer
	log logrus.FieldLogger

	capFlags CapFlag
	charset  *charset.Charset

	status       ServerStatus
	lastInsertID uint64
	affectedRows uint64
	warnings     uint16

	closed bool
}

var defaultDialTimeout = 1 * time.Second

// newMysqlConn dials, then runs the connection phase (capability
// negotiation + authentication). Every failure here is reported as
// driver.ErrBadConn so database/sql retries on a fresh connection,
// per spec.md §7's guidance that connection-phase failures are never
// worth retrying on the same socket.
func newMysqlConn(cfg *dbCfg) (*mysqlConn, error) {
	dialer := &net.Dialer{
		Timeout:   firstNonZero(firstNonZero(cfg.connectTimeout, cfg.timeout), defaultDialTimeout),
		KeepAlive: 30 * time.Minute,
	}
	addr := fmt.Sprintf("%s:%d", cfg.ip, cfg.port)
	if cfg.protocol == "unix" {
		addr = cfg.unixSocket
	}
	nc, err := dialer.Dial(cfg.protocol, addr)
	if err != nil {
		return nil, driver.ErrBadConn
	}

	log := logrus.WithFields(logrus.Fields{"component": "mysql41", "addr": addr})

	mc := &mysqlConn{
		cfg: cfg,
		nc:  nc,
		log: log,
	}
	mc.fr = newFramer(nc, log)
	mc.fr.readTimeout = cfg.readTimeout
	mc.fr.writeTimeout = cfg.writeTimeout

	if err := mc.handshakeLogin(); err != nil {
		_ = mc.Close()
		log.WithError(err).Error("mysql41: handshake failed")
		return nil, driver.ErrBadConn
	}

	for _, cmd := range cfg.initCommands {
		if err := mc.execCmdQuery(cmd); err != nil {
			_ = mc.Close()
			return nil, driver.ErrBadConn
		}
	}

	return mc, nil
}

func firstNonZero(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}

// desiredCapFlags is the client's wishlist; the negotiated set is
// this intersected with whatever the server actually advertised
// (spec.md §4.3 "Capability negotiation").
func (mc *mysqlConn) desiredCapFlags() CapFlag {
	caps := newCapFlag(
		CapClientLongPassword,
		CapClientProtocol41,
		CapClientTransactions,
		CapClientAuthentication41,
		CapClientPluginAuth,
		CapClientMultiResults,
		CapClientMultiStatements,
		CapClientSessionTrack,
		CapClientDeprecateEof,
		CapClientColumnLongFlag,
	)
	if mc.cfg.dbName != "" {
		caps.Set(CapClientConnectWithDB)
	}
	if mc.cfg.allowLocalInfile {
		caps.Set(CapClientLocalFiles)
	}
	return caps
}

// handshakeLogin runs spec.md §4.3's connection phase: read the
// server's HandshakeV10, answer with HandshakeResponse41, then follow
// at most one AuthSwitchRequest before the server settles on OK/ERR.
func (mc *mysqlConn) handshakeLogin() error {
	pkt, err := mc.fr.ReadPacket()
	if err != nil {
		return err
	}
	hs, err := decodeHandshakeV10(pkt.Payload)
	if err != nil {
		return err
	}

	mc.capFlags = mc.desiredCapFlags() & hs.CapFlags
	if !mc.capFlags.IsSet(CapClientProtocol41) {
		return protocolErrorf("server does not support protocol 4.1")
	}

	// spec.md §4.5: fall back to the server's default charset (the one
	// it just advertised in the handshake) when the DSN didn't ask for
	// one explicitly, rather than always forcing the utf8mb4 default.
	if mc.cfg.charsetExplicit {
		if cs, err := charset.ByName(mc.cfg.charset); err == nil {
			mc.charset = cs
		}
	} else if cs, err := charset.ByNum(hs.CharSet); err == nil {
		mc.charset = cs
		mc.cfg.charsetNum = cs.Num
	}

	authResp, err := mc.buildAuthResp(hs.AuthPluginData, hs.AuthPluginName)
	if err != nil {
		return err
	}

	resp := &HandshakeResponse41{
		CapFlags:       mc.capFlags,
		MaxPacketSize:  maxPayloadLen,
		CharSet:        mc.cfg.charsetNum,
		User:           mc.cfg.user,
		AuthResponse:   authResp,
		Database:       mc.cfg.dbName,
		AuthPluginName: hs.AuthPluginName,
	}
	// the server's handshake consumed sequence id 0; ReadPacket already
	// advanced the framer's counter to 1, exactly what our response
	// must carry.
	if err := mc.fr.WritePacket(resp.encode()); err != nil {
		return err
	}

	return mc.finishAuth()
}

// finishAuth reads the server's verdict on the handshake response,
// following a single AuthSwitchRequest round if the server asks for a
// different plugin than the one the initial handshake advertised.
func (mc *mysqlConn) finishAuth() error {
	pkt, err := mc.fr.ReadPacket()
	if err != nil {
		return err
	}

	switch pktFirstByte(pkt) {
	case markerOK:
		_, err := decodeOkPacket(pkt.Payload, mc.capFlags)
		return err
	case markerErr:
		ep, err := decodeErrPacket(pkt.Payload, mc.capFlags)
		if err != nil {
			return err
		}
		return ep.asError()
	case 0xFE:
		asr, err := decodeAuthSwitchRequest(pkt.Payload)
		if err != nil {
			return err
		}
		authResp, err := mc.buildAuthResp(asr.PluginData, asr.PluginName)
		if err != nil {
			return err
		}
		resp := &AuthSwitchResponse{AuthData: authResp}
		if err := mc.fr.WritePacket(resp.encode()); err != nil {
			return err
		}
		pkt, err = mc.fr.ReadPacket()
		if err != nil {
			return err
		}
		if pktFirstByte(pkt) == markerErr {
			ep, err := decodeErrPacket(pkt.Payload, mc.capFlags)
			if err != nil {
				return err
			}
			return ep.asError()
		}
		_, err = decodeOkPacket(pkt.Payload, mc.capFlags)
		return err
	default:
		return protocolErrorf("unexpected packet in auth phase, first byte %#x", pktFirstByte(pkt))
	}
}

func (mc *mysqlConn) buildAuthResp(scramble []byte, authMethod string) ([]byte, error) {
	switch authMethod {
	case "caching_sha2_password":
		return buildAuthRespWithCachingSha2Password(scramble, mc.cfg.password), nil
	case "mysql_native_password", "":
		return buildAuthRespWithMysqlNativePassword(scramble, mc.cfg.password), nil
	default:
		return nil, clientError("unsupported auth plugin %q", authMethod)
	}
}

func (mc *mysqlConn) Close() error {
	if mc.closed {
		return nil
	}
	mc.quit()
	mc.closed = true
	return mc.nc.Close()
}

func (mc *mysqlConn) isClosed() bool { return mc.closed }

// IsValid is database/sql's pre-checkout liveness probe.
func (mc *mysqlConn) IsValid() bool { return !mc.closed }

func (mc *mysqlConn) Ping(ctx context.Context) error {
	if mc.closed {
		return driver.ErrBadConn
	}
	if err := checkContext(ctx); err != nil {
		return err
	}
	if err := mc.ping(); err != nil {
		return mc.handleCommandError(err)
	}
	return nil
}

func (mc *mysqlConn) Prepare(query string) (driver.Stmt, error) {
	if mc.closed {
		return nil, driver.ErrBadConn
	}
	s, err := mc.prepare(query)
	if err != nil {
		return nil, mc.handleCommandError(err)
	}
	return s, nil
}

func (mc *mysqlConn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	return mc.Prepare(query)
}

func (mc *mysqlConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	if len(args) > 0 {
		return nil, driver.ErrSkip
	}
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	rs, err := mc.query(query)
	if err != nil {
		return nil, mc.handleCommandError(err)
	}
	return &result{affectedRows: int64(rs.affectedRows), lastInsertID: int64(rs.lastInsertID)}, nil
}

func (mc *mysqlConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	if len(args) > 0 {
		return nil, driver.ErrSkip
	}
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	rs, err := mc.query(query)
	if err != nil {
		return nil, mc.handleCommandError(err)
	}
	return &rows{rs: rs}, nil
}

// Begin exists only to satisfy driver.Conn; database/sql always
// prefers BeginTx.
func (mc *mysqlConn) Begin() (driver.Tx, error) {
	return mc.BeginTx(context.Background(), driver.TxOptions{})
}

func (mc *mysqlConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if err := mc.setIsolationLevel(sql.IsolationLevel(opts.Isolation)); err != nil {
		return nil, mc.handleCommandError(err)
	}

	query := "START TRANSACTION"
	if opts.ReadOnly {
		query += " READ ONLY"
	}
	if err := mc.execCmdQuery(query); err != nil {
		return nil, mc.handleCommandError(err)
	}

	return &tx{conn: mc}, nil
}

func (mc *mysqlConn) setIsolationLevel(level sql.IsolationLevel) error {
	if level == sql.LevelDefault {
		return nil
	}
	if _, ok := SupportedIsolationLevelSet[level]; !ok {
		return clientError("unsupported isolation level %s", level.String())
	}
	return mc.execCmdQuery(fmt.Sprintf("SET TRANSACTION ISOLATION LEVEL %s", level.String()))
}

// handleCommandError closes the connection on anything but a plain
// server error (spec.md §7): a protocol-layer or transport failure
// leaves the framer's sequence counter and buffered reader in an
// unknown state, so the connection can never be trusted again.
func (mc *mysqlConn) handleCommandError(err error) error {
	if IsProtocolFatal(err) {
		_ = mc.Close()
		return driver.ErrBadConn
	}
	return err
}

func checkContext(ctx context.Context) error {
	if ctx == nil || ctx.Done() == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
