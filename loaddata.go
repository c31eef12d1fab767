package mysql

import (
	"io"
	"os"
)

// handleLoadDataLocalInfile implements spec.md §4.8's LOAD DATA LOCAL
// INFILE sub-protocol: the server asks for a filename by sending a
// 0xFB-prefixed packet in place of the usual column-count response;
// the client streams the file back in ≤16 MiB packets terminated by
// an empty packet, then waits for the final OK/ERR the way any other
// COM_QUERY does.
//
// Refusing the request (capability not negotiated, or the file can't
// be opened/read) still answers with the empty terminator packet
// rather than returning early: the exchange is only half done from
// the server's point of view until it sees that packet and replies
// with its own ERR, which the caller reads next. Returning before
// that would leave the framer's sequence counter out of step with
// the server for the rest of the connection's life.
func (mc *mysqlConn) handleLoadDataLocalInfile(payload []byte) error {
	if len(payload) == 0 || payload[0] != markerLocalInfile {
		return protocolErrorf("load data: missing 0xFB marker")
	}
	filename := string(payload[1:])

	if !mc.capFlags.IsSet(CapClientLocalFiles) {
		return mc.fr.WritePacket(nil)
	}

	f, err := os.Open(filename)
	if err != nil {
		return mc.fr.WritePacket(nil)
	}
	defer f.Close()

	// one short of maxPayloadLen: a full-size read here would make
	// WritePacket split it into a payload packet plus a zero-length
	// continuation, which the server reads as the terminator mid-stream.
	buf := make([]byte, maxPayloadLen-1)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			if werr := mc.fr.WritePacket(buf[:n]); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			_ = mc.fr.WritePacket(nil)
			return nil
		}
	}
	return mc.fr.WritePacket(nil)
}
