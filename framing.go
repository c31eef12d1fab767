package mysql

import (
	"bufio"
	"io"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// maxPayloadLen is the largest payload a single physical packet can
// carry: the 3-byte length field tops out at 0xFFFFFF. spec.md §4.2
// calls this threshold "16 MiB"; the exact cutover value is
// 0xFFFFFF == 16*1024*1024 - 1.
const maxPayloadLen = 0xFFFFFF

// Packet is one physical frame on the wire: [u24 length][u8 seqID][payload].
type Packet struct {
	SeqID   uint8
	Payload []byte
}

// framer implements spec.md §4.2's framing layer: it reads and writes
// 4-byte-headered packets, reassembles payloads split across
// continuation packets, splits outbound payloads over maxPayloadLen,
// and enforces the per-exchange sequence-id invariant from §4.2/§3. It
// also doubles as the §5 critical-section guard: callers take guard
// for the full duration of a command exchange (write through final
// read), never per packet.
type framer struct {
	br  *bufio.Reader
	bw  *bufio.Writer
	nc  net.Conn
	log logrus.FieldLogger

	readTimeout  time.Duration
	writeTimeout time.Duration

	seq   uint8
	guard sync.Mutex
}

func newFramer(nc net.Conn, log logrus.FieldLogger) *framer {
	return &framer{
		br:  bufio.NewReader(nc),
		bw:  bufio.NewWriter(nc),
		nc:  nc,
		log: log,
	}
}

// Lock / Unlock expose the §5 critical section. The command façade
// takes the lock before the first packet of an exchange and releases
// it only once the exchange (including any LOAD DATA streaming or
// next_result continuation) has fully drained.
func (f *framer) Lock()   { f.guard.Lock() }
func (f *framer) Unlock() { f.guard.Unlock() }

// ResetSeq resets the sequence counter to 0, as required before the
// first packet of every new command (§4.2).
func (f *framer) ResetSeq() { f.seq = 0 }

// Seq returns the next sequence id to be used for a packet the client
// is about to write.
func (f *framer) Seq() uint8 { return f.seq }

func (f *framer) deadline(d time.Duration) {
	if d <= 0 {
		_ = f.nc.SetDeadline(time.Time{})
		return
	}
	_ = f.nc.SetDeadline(time.Now().Add(d))
}

// ReadPacket reads one logical packet, transparently reassembling any
// 0xFFFFFF-length continuation packets into a single payload. It
// enforces the sequence invariant: the packet's own seqID must equal
// the framer's expected counter, which it then ticks by one (mod 256).
func (f *framer) ReadPacket() (*Packet, error) {
	f.deadline(f.readTimeout)

	var payload []byte
	var firstSeq uint8
	for i := 0; ; i++ {
		hdr := make([]byte, 4)
		if _, err := io.ReadFull(f.br, hdr); err != nil {
			return nil, protocolError(err, "read packet header")
		}
		length := uint32(hdr[0]) | uint32(hdr[1])<<8 | uint32(hdr[2])<<16
		seqID := hdr[3]

		if i == 0 {
			firstSeq = seqID
		}
		if seqID != f.seq {
			return nil, protocolErrorf("sequence id mismatch: got %d, want %d", seqID, f.seq)
		}
		f.seq++

		body := make([]byte, length)
		if length > 0 {
			if _, err := io.ReadFull(f.br, body); err != nil {
				return nil, protocolError(err, "read packet body")
			}
		}
		payload = append(payload, body...)

		if length < maxPayloadLen {
			break
		}
	}

	return &Packet{SeqID: firstSeq, Payload: payload}, nil
}

// WritePacket splits payload into ≤maxPayloadLen chunks and writes
// each as its own physical packet, ticking the sequence counter for
// every chunk. If the final chunk is exactly maxPayloadLen bytes, a
// trailing zero-length packet is emitted so the reader's "length <
// maxPayloadLen ends the message" rule terminates correctly.
func (f *framer) WritePacket(payload []byte) error {
	f.deadline(f.writeTimeout)

	for {
		chunk := payload
		if len(chunk) > maxPayloadLen {
			chunk = chunk[:maxPayloadLen]
		}
		if err := f.writeOne(chunk); err != nil {
			return err
		}
		payload = payload[len(chunk):]
		if len(chunk) < maxPayloadLen {
			return nil
		}
		if len(payload) == 0 {
			// exact multiple: emit the zero-length terminator packet.
			return f.writeOne(nil)
		}
	}
}

func (f *framer) writeOne(chunk []byte) error {
	hdr := []byte{byte(len(chunk)), byte(len(chunk) >> 8), byte(len(chunk) >> 16), f.seq}
	f.seq++

	if _, err := f.bw.Write(hdr); err != nil {
		return &ErrorReadWritePkt{errType: WriteErrTypeWriteSocket, raw: err}
	}
	if len(chunk) > 0 {
		if _, err := f.bw.Write(chunk); err != nil {
			return &ErrorReadWritePkt{errType: WriteErrTypeWriteSocket, raw: err}
		}
	}
	if err := f.bw.Flush(); err != nil {
		return &ErrorReadWritePkt{errType: WriteErrTypeWriteSocket, raw: err}
	}
	return nil
}

// Close releases the underlying transport. Best effort per spec.md
// §4.5 close(): socket errors here are swallowed by the caller.
func (f *framer) Close() error {
	return f.nc.Close()
}
