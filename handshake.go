package mysql

import "bytes"

// HandshakeV10 is the server's initial handshake packet (spec.md §4.3).
type HandshakeV10 struct {
	ProtocolVersion uint8
	ServerVersion   string
	ThreadID        uint32
	AuthPluginData  []byte // 20-byte salt, parts one (8B) and two concatenated
	CapFlags        CapFlag
	CharSet         uint8
	StatusFlags     ServerStatus
	AuthPluginName  string
}

// PackedVersion renders ServerVersion as the standard
// major*10000+minor*100+patch integer spec.md §3's Connection data
// model tracks alongside the string form.
func (hs *HandshakeV10) PackedVersion() int {
	var major, minor, patch, field int
	for _, c := range hs.ServerVersion {
		if c >= '0' && c <= '9' {
			field = field*10 + int(c-'0')
			continue
		}
		if c == '.' {
			switch {
			case major == 0 && minor == 0 && patch == 0:
				major, field = field, 0
			default:
				minor, field = field, 0
			}
			continue
		}
		break
	}
	patch = field
	return major*10000 + minor*100 + patch
}

func decodeHandshakeV10(data []byte) (*HandshakeV10, error) {
	hs := &HandshakeV10{}

	v, err := extractUint8(&data)
	if err != nil {
		return nil, protocolError(err, "handshake: protocol version")
	}
	hs.ProtocolVersion = v
	if hs.ProtocolVersion != 10 {
		return nil, protocolErrorf("handshake: unsupported protocol version %d", hs.ProtocolVersion)
	}

	hs.ServerVersion, err = extractNullTerminatedString(&data)
	if err != nil {
		return nil, protocolError(err, "handshake: server version")
	}

	hs.ThreadID, err = extractUint32(&data)
	if err != nil {
		return nil, protocolError(err, "handshake: thread id")
	}

	authPart1, err := extractFixedLengthBytes(&data, 8)
	if err != nil {
		return nil, protocolError(err, "handshake: auth-plugin-data part 1")
	}

	if _, err = extractUint8(&data); err != nil { // filler
		return nil, protocolError(err, "handshake: filler")
	}

	capLower, err := extractUint16(&data)
	if err != nil {
		return nil, protocolError(err, "handshake: capability flags (lower)")
	}

	hs.CharSet, err = extractUint8(&data)
	if err != nil {
		return nil, protocolError(err, "handshake: charset")
	}

	status, err := extractUint16(&data)
	if err != nil {
		return nil, protocolError(err, "handshake: status flags")
	}
	hs.StatusFlags = ServerStatus(status)

	capUpper, err := extractUint16(&data)
	if err != nil {
		return nil, protocolError(err, "handshake: capability flags (upper)")
	}
	hs.CapFlags = combCapFlag(capLower, capUpper)

	authDataLen, err := extractUint8(&data)
	if err != nil {
		return nil, protocolError(err, "handshake: auth-plugin-data length")
	}

	if _, err = extractFixedLengthBytes(&data, 10); err != nil { // reserved
		return nil, protocolError(err, "handshake: reserved")
	}

	part2Len := 13
	if hs.CapFlags.IsSet(CapClientPluginAuth) {
		if l := int(authDataLen) - 8; l > 13 {
			part2Len = l
		}
	}
	authPart2, err := extractFixedLengthBytes(&data, part2Len)
	if err != nil {
		return nil, protocolError(err, "handshake: auth-plugin-data part 2")
	}
	// part 2 is NUL-terminated; trim the terminator if present.
	if n := len(authPart2); n > 0 && authPart2[n-1] == 0x00 {
		authPart2 = authPart2[:n-1]
	}

	hs.AuthPluginData = append(append([]byte{}, authPart1...), authPart2...)

	if hs.CapFlags.IsSet(CapClientPluginAuth) {
		hs.AuthPluginName, err = extractNullTerminatedString(&data)
		if err != nil {
			return nil, protocolError(err, "handshake: auth-plugin name")
		}
	}

	return hs, nil
}

// HandshakeResponse41 is the client's authentication packet
// (spec.md §4.3 "Client authentication").
type HandshakeResponse41 struct {
	CapFlags      CapFlag
	MaxPacketSize uint32
	CharSet       uint8
	User          string
	AuthResponse  []byte
	Database      string
	AuthPluginName string
}

func (r *HandshakeResponse41) encode() []byte {
	buf := &bytes.Buffer{}
	buf.Write(marshalUint32(uint32(r.CapFlags)))
	buf.Write(marshalUint32(r.MaxPacketSize))
	buf.Write(marshalUint8(r.CharSet))
	buf.Write(make([]byte, 23))
	buf.WriteString(r.User)
	buf.WriteByte(0x00)

	if r.CapFlags.IsSet(CapClientPluginAuth) {
		buf.Write(marshalLCS(r.AuthResponse))
	} else {
		buf.WriteByte(uint8(len(r.AuthResponse)))
		buf.Write(r.AuthResponse)
	}

	if r.CapFlags.IsSet(CapClientConnectWithDB) {
		buf.WriteString(r.Database)
		buf.WriteByte(0x00)
	}

	if r.CapFlags.IsSet(CapClientPluginAuth) {
		buf.WriteString(r.AuthPluginName)
		buf.WriteByte(0x00)
	}

	return buf.Bytes()
}

// AuthSwitchRequest asks the client to redo authentication with a
// different plugin and a fresh scramble.
type AuthSwitchRequest struct {
	PluginName string
	PluginData []byte
}

func decodeAuthSwitchRequest(data []byte) (*AuthSwitchRequest, error) {
	if _, err := extractUint8(&data); err != nil { // 0xFE marker, already dispatched on
		return nil, protocolError(err, "auth switch: marker")
	}
	name, err := extractNullTerminatedString(&data)
	if err != nil {
		return nil, protocolError(err, "auth switch: plugin name")
	}
	pluginData, err := extractRestOfPacketBytes(&data)
	if err != nil {
		return nil, protocolError(err, "auth switch: plugin data")
	}
	// The trailing NUL that terminates AuthPluginData in the initial
	// handshake is not re-sent here, but some servers still include one;
	// trim it defensively.
	if n := len(pluginData); n > 0 && pluginData[n-1] == 0x00 {
		pluginData = pluginData[:n-1]
	}
	return &AuthSwitchRequest{PluginName: name, PluginData: pluginData}, nil
}

// AuthSwitchResponse carries the new scramble computed for the
// plugin named by the preceding AuthSwitchRequest.
type AuthSwitchResponse struct {
	AuthData []byte
}

func (r *AuthSwitchResponse) encode() []byte {
	return r.AuthData
}
