package mysql

import (
	"os"
	"testing"

	"github.com/smartystreets/goconvey/convey"
)

func Test_handleLoadDataLocalInfile(t *testing.T) {
	convey.Convey("refuses the request with an empty packet when CLIENT_LOCAL_FILES was not negotiated", t, func() {
		mc, server := newPipeConn()
		sf := newFramer(server, mc.log)
		defer mc.nc.Close()
		defer server.Close()

		done := make(chan error, 1)
		go func() { done <- mc.handleLoadDataLocalInfile(append([]byte{markerLocalInfile}, "any.csv"...)) }()

		pkt, err := sf.ReadPacket()
		convey.So(err, convey.ShouldBeNil)
		convey.So(pkt.Payload, convey.ShouldBeEmpty)
		convey.So(<-done, convey.ShouldBeNil)
	})

	convey.Convey("streams an existing file's contents terminated by an empty packet", t, func() {
		mc, server := newPipeConn()
		mc.capFlags = newCapFlag(CapClientLocalFiles)
		sf := newFramer(server, mc.log)
		defer mc.nc.Close()
		defer server.Close()

		f, err := os.CreateTemp("", "loaddata_test_*.csv")
		convey.So(err, convey.ShouldBeNil)
		defer os.Remove(f.Name())
		_, _ = f.WriteString("1,alice\n2,bob\n")
		_ = f.Close()

		done := make(chan error, 1)
		go func() {
			done <- mc.handleLoadDataLocalInfile(append([]byte{markerLocalInfile}, f.Name()...))
		}()

		pkt, err := sf.ReadPacket()
		convey.So(err, convey.ShouldBeNil)
		convey.So(string(pkt.Payload), convey.ShouldEqual, "1,alice\n2,bob\n")

		pkt, err = sf.ReadPacket()
		convey.So(err, convey.ShouldBeNil)
		convey.So(pkt.Payload, convey.ShouldBeEmpty)

		convey.So(<-done, convey.ShouldBeNil)
	})

	convey.Convey("a missing file still answers with the empty terminator, not a hang", t, func() {
		mc, server := newPipeConn()
		mc.capFlags = newCapFlag(CapClientLocalFiles)
		sf := newFramer(server, mc.log)
		defer mc.nc.Close()
		defer server.Close()

		done := make(chan error, 1)
		go func() {
			done <- mc.handleLoadDataLocalInfile(append([]byte{markerLocalInfile}, "/no/such/file"...))
		}()

		pkt, err := sf.ReadPacket()
		convey.So(err, convey.ShouldBeNil)
		convey.So(pkt.Payload, convey.ShouldBeEmpty)
		convey.So(<-done, convey.ShouldBeNil)
	})

	convey.Convey("a payload missing the 0xFB marker is a protocol error", t, func() {
		mc, _ := newPipeConn()
		defer mc.nc.Close()

		err := mc.handleLoadDataLocalInfile([]byte("no marker"))
		convey.So(err, convey.ShouldNotBeNil)
		convey.So(IsProtocolFatal(err), convey.ShouldBeTrue)
	})
}
