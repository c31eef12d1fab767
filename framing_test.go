package mysql

import (
	"net"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/smartystreets/goconvey/convey"
)

func Test_framerPacketRoundTrip(t *testing.T) {
	convey.Convey("WritePacket/ReadPacket round trip a small payload", t, func() {
		client, server := net.Pipe()
		defer client.Close()
		defer server.Close()

		cf := newFramer(client, logrus.StandardLogger())
		sf := newFramer(server, logrus.StandardLogger())

		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = cf.WritePacket([]byte("hello"))
		}()

		pkt, err := sf.ReadPacket()
		<-done

		convey.So(err, convey.ShouldBeNil)
		convey.So(pkt.Payload, convey.ShouldResemble, []byte("hello"))
		convey.So(pkt.SeqID, convey.ShouldEqual, uint8(0))
	})

	convey.Convey("a sequence id mismatch is reported as a protocol error", t, func() {
		client, server := net.Pipe()
		defer client.Close()
		defer server.Close()

		cf := newFramer(client, logrus.StandardLogger())
		sf := newFramer(server, logrus.StandardLogger())
		sf.seq = 5 // force a mismatch against the client's seq-0 packet

		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = cf.WritePacket([]byte("x"))
		}()

		_, err := sf.ReadPacket()
		<-done

		convey.So(err, convey.ShouldNotBeNil)
		convey.So(IsProtocolFatal(err), convey.ShouldBeTrue)
	})

	convey.Convey("an exact-multiple-of-maxPayloadLen write emits a trailing zero-length packet", t, func() {
		client, server := net.Pipe()
		defer client.Close()
		defer server.Close()

		cf := newFramer(client, logrus.StandardLogger())
		sf := newFramer(server, logrus.StandardLogger())

		payload := make([]byte, maxPayloadLen)
		for i := range payload {
			payload[i] = byte(i)
		}

		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = cf.WritePacket(payload)
		}()

		pkt, err := sf.ReadPacket()
		<-done

		convey.So(err, convey.ShouldBeNil)
		convey.So(len(pkt.Payload), convey.ShouldEqual, maxPayloadLen)
	})
}
