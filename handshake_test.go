package mysql

import (
	"bytes"
	"testing"

	"github.com/smartystreets/goconvey/convey"
)

func buildHandshakeV10Payload(caps CapFlag, pluginName string) []byte {
	buf := &bytes.Buffer{}
	buf.WriteByte(10) // protocol version
	buf.WriteString("8.0.34")
	buf.WriteByte(0)
	buf.Write(marshalUint32(42)) // thread id
	buf.WriteString("AAAAAAAA")  // auth data part 1, 8 bytes
	buf.WriteByte(0)             // filler
	buf.Write(marshalUint16(uint16(caps)))
	buf.WriteByte(45) // charset
	buf.Write(marshalUint16(2))
	buf.Write(marshalUint16(uint16(caps >> 16)))
	buf.WriteByte(21) // auth data len (8 + 13)
	buf.Write(make([]byte, 10))
	buf.WriteString("BBBBBBBBBBBB")
	buf.WriteByte(0) // NUL terminator on auth data part 2
	if caps.IsSet(CapClientPluginAuth) {
		buf.WriteString(pluginName)
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

func Test_decodeHandshakeV10(t *testing.T) {
	convey.Convey("decodes server version, capabilities, and the concatenated auth data", t, func() {
		caps := newCapFlag(CapClientProtocol41, CapClientPluginAuth)
		payload := buildHandshakeV10Payload(caps, "mysql_native_password")

		hs, err := decodeHandshakeV10(payload)

		convey.So(err, convey.ShouldBeNil)
		convey.So(hs.ProtocolVersion, convey.ShouldEqual, uint8(10))
		convey.So(hs.ServerVersion, convey.ShouldEqual, "8.0.34")
		convey.So(hs.ThreadID, convey.ShouldEqual, uint32(42))
		convey.So(hs.CapFlags.IsSet(CapClientProtocol41), convey.ShouldBeTrue)
		convey.So(hs.CapFlags.IsSet(CapClientPluginAuth), convey.ShouldBeTrue)
		convey.So(string(hs.AuthPluginData), convey.ShouldEqual, "AAAAAAAABBBBBBBBBBBB")
		convey.So(hs.AuthPluginName, convey.ShouldEqual, "mysql_native_password")
		convey.So(hs.PackedVersion(), convey.ShouldEqual, 80034)
	})

	convey.Convey("rejects anything other than protocol version 10", t, func() {
		payload := append([]byte{9}, buildHandshakeV10Payload(0, "")[1:]...)
		_, err := decodeHandshakeV10(payload)
		convey.So(err, convey.ShouldNotBeNil)
	})
}

func Test_HandshakeResponse41_encode(t *testing.T) {
	convey.Convey("encodes a username and plugin-auth LCS-framed response", t, func() {
		resp := &HandshakeResponse41{
			CapFlags:       newCapFlag(CapClientPluginAuth, CapClientConnectWithDB),
			MaxPacketSize:  maxPayloadLen,
			CharSet:        45,
			User:           "root",
			AuthResponse:   []byte{1, 2, 3, 4},
			Database:       "world",
			AuthPluginName: "mysql_native_password",
		}
		encoded := resp.encode()

		data := encoded
		capFlags, err := extractUint32(&data)
		convey.So(err, convey.ShouldBeNil)
		convey.So(CapFlag(capFlags).IsSet(CapClientPluginAuth), convey.ShouldBeTrue)

		_, _ = extractUint32(&data) // max packet size
		_, _ = extractUint8(&data)  // charset
		_, _ = extractFixedLengthBytes(&data, 23)

		user, err := extractNullTerminatedString(&data)
		convey.So(err, convey.ShouldBeNil)
		convey.So(user, convey.ShouldEqual, "root")

		authResp, ok, err := extractLCS(&data)
		convey.So(err, convey.ShouldBeNil)
		convey.So(ok, convey.ShouldBeTrue)
		convey.So(authResp, convey.ShouldResemble, []byte{1, 2, 3, 4})

		db, err := extractNullTerminatedString(&data)
		convey.So(err, convey.ShouldBeNil)
		convey.So(db, convey.ShouldEqual, "world")
	})
}

func Test_decodeAuthSwitchRequest(t *testing.T) {
	convey.Convey("decodes plugin name and trims the trailing NUL from plugin data", t, func() {
		buf := &bytes.Buffer{}
		buf.WriteByte(0xFE)
		buf.WriteString("caching_sha2_password")
		buf.WriteByte(0)
		buf.WriteString("0123456789012345678901")
		buf.WriteByte(0)

		asr, err := decodeAuthSwitchRequest(buf.Bytes())
		convey.So(err, convey.ShouldBeNil)
		convey.So(asr.PluginName, convey.ShouldEqual, "caching_sha2_password")
		convey.So(string(asr.PluginData), convey.ShouldEqual, "0123456789012345678901")
	})
}
