// Package wire implements the stereolink device protocol: discovery
// datagrams over UDP and the handshake plus frame stream over TCP.
//
// All multi-byte integers are big-endian. Every message starts with a
// four-byte magic so a desynchronized stream reader can scan forward to the
// next frame boundary.
package wire

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ProtocolVersion is the only protocol revision this implementation speaks.
const ProtocolVersion byte = 1

// Default device ports.
const (
	DefaultStreamPort    = 7680
	DefaultDiscoveryPort = 7681
)

// Capability bits carried in discovery replies.
const (
	CapDisparity byte = 1 << iota
	CapColor
)

var (
	magicQuery  = [4]byte{'S', 'L', 'K', 'Q'}
	magicReply  = [4]byte{'S', 'L', 'K', 'R'}
	magicHello  = [4]byte{'S', 'L', 'K', 'H'}
	magicAccept = [4]byte{'S', 'L', 'K', 'A'}
	magicFrame  = [4]byte{'S', 'L', 'K', 'F'}
)

// Decode and validation errors.
var (
	ErrBadMagic   = errors.New("wire: bad magic")
	ErrBadVersion = errors.New("wire: unsupported protocol version")
	ErrMalformed  = errors.New("wire: malformed message")
)

// MaxPayloadLen bounds a single channel payload. Anything larger is treated
// as stream corruption rather than a real image.
const MaxPayloadLen = 64 << 20

// EncodeDiscoveryQuery builds the broadcast probe datagram.
func EncodeDiscoveryQuery() []byte {
	return append(magicQuery[:], ProtocolVersion)
}

// DecodeDiscoveryQuery validates a probe datagram received by a device.
func DecodeDiscoveryQuery(b []byte) error {
	if len(b) != 5 || !bytes.Equal(b[:4], magicQuery[:]) {
		return ErrBadMagic
	}
	if b[4] != ProtocolVersion {
		return ErrBadVersion
	}
	return nil
}

// DiscoveryReply is a device's answer to a discovery query.
type DiscoveryReply struct {
	Version      byte
	Capabilities byte
	StreamPort   uint16
	Model        string
	Serial       string
	Firmware     string
}

// Encode serializes the reply datagram.
func (r DiscoveryReply) Encode() []byte {
	buf := make([]byte, 0, 16+len(r.Model)+len(r.Serial)+len(r.Firmware))
	buf = append(buf, magicReply[:]...)
	buf = append(buf, r.Version, r.Capabilities)
	buf = binary.BigEndian.AppendUint16(buf, r.StreamPort)
	for _, s := range []string{r.Model, r.Serial, r.Firmware} {
		buf = append(buf, byte(len(s)))
		buf = append(buf, s...)
	}
	return buf
}

// DecodeDiscoveryReply parses a reply datagram.
func DecodeDiscoveryReply(b []byte) (DiscoveryReply, error) {
	var r DiscoveryReply
	if len(b) < 8 || !bytes.Equal(b[:4], magicReply[:]) {
		return r, ErrBadMagic
	}
	if b[4] != ProtocolVersion {
		return r, ErrBadVersion
	}
	r.Version = b[4]
	r.Capabilities = b[5]
	r.StreamPort = binary.BigEndian.Uint16(b[6:8])

	rest := b[8:]
	for _, dst := range []*string{&r.Model, &r.Serial, &r.Firmware} {
		if len(rest) < 1 {
			return r, ErrMalformed
		}
		n := int(rest[0])
		rest = rest[1:]
		if len(rest) < n {
			return r, ErrMalformed
		}
		*dst = string(rest[:n])
		rest = rest[n:]
	}
	return r, nil
}

// WriteHandshake sends the client hello on a fresh stream connection.
func WriteHandshake(w io.Writer) error {
	_, err := w.Write(append(magicHello[:], ProtocolVersion))
	return err
}

// ReadHandshake consumes and validates a client hello (device side).
func ReadHandshake(r io.Reader) error {
	var b [5]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return err
	}
	if !bytes.Equal(b[:4], magicHello[:]) {
		return ErrBadMagic
	}
	if b[4] != ProtocolVersion {
		return ErrBadVersion
	}
	return nil
}

// WriteHandshakeAccept sends the device's acceptance with the negotiated
// channel count.
func WriteHandshakeAccept(w io.Writer, channels byte) error {
	_, err := w.Write(append(magicAccept[:], ProtocolVersion, channels))
	return err
}

// ReadHandshakeAccept consumes the acceptance and returns the channel count.
func ReadHandshakeAccept(r io.Reader) (byte, error) {
	var b [6]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	if !bytes.Equal(b[:4], magicAccept[:]) {
		return 0, ErrBadMagic
	}
	if b[4] != ProtocolVersion {
		return 0, ErrBadVersion
	}
	if b[5] == 0 {
		return 0, ErrMalformed
	}
	return b[5], nil
}

// FrameHeader precedes the channel images of one capture event.
type FrameHeader struct {
	Seq       uint64
	Timestamp int64 // unix nanoseconds, device clock
	Channels  byte
}

// ChannelHeader precedes one channel payload. Seq and Timestamp repeat the
// frame header values; a mismatch marks the frame as corrupt.
type ChannelHeader struct {
	Seq        uint64
	Timestamp  int64
	Role       byte
	Format     byte
	Width      uint16
	Height     uint16
	Stride     uint32
	PayloadLen uint32
}

// WriteFrameHeader emits the frame magic followed by the header fields.
func WriteFrameHeader(w io.Writer, h FrameHeader) error {
	if _, err := w.Write(magicFrame[:]); err != nil {
		return err
	}
	return binary.Write(w, binary.BigEndian, h)
}

// WriteChannel emits one channel header and its payload.
// len(payload) must equal h.PayloadLen.
func WriteChannel(w io.Writer, h ChannelHeader, payload []byte) error {
	if int(h.PayloadLen) != len(payload) {
		return fmt.Errorf("%w: payload length %d != header %d", ErrMalformed, len(payload), h.PayloadLen)
	}
	if err := binary.Write(w, binary.BigEndian, h); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// SyncFrame consumes bytes until a complete frame magic has been read.
// In a healthy stream the magic is the next four bytes and no scanning
// happens; after a corrupt frame this skips garbage up to the next boundary.
func SyncFrame(r *bufio.Reader) error {
	matched := 0
	for matched < len(magicFrame) {
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		switch {
		case b == magicFrame[matched]:
			matched++
		case b == magicFrame[0]:
			matched = 1
		default:
			matched = 0
		}
	}
	return nil
}

// ReadFrameHeader reads the header fields following a frame magic.
func ReadFrameHeader(r io.Reader) (FrameHeader, error) {
	var h FrameHeader
	if err := binary.Read(r, binary.BigEndian, &h); err != nil {
		return h, err
	}
	if h.Channels == 0 {
		return h, ErrMalformed
	}
	return h, nil
}

// ReadChannelHeader reads one channel header and sanity-checks its sizes.
func ReadChannelHeader(r io.Reader) (ChannelHeader, error) {
	var h ChannelHeader
	if err := binary.Read(r, binary.BigEndian, &h); err != nil {
		return h, err
	}
	if h.PayloadLen > MaxPayloadLen {
		return h, fmt.Errorf("%w: payload length %d", ErrMalformed, h.PayloadLen)
	}
	if h.Width == 0 || h.Height == 0 {
		return h, fmt.Errorf("%w: zero image dimension", ErrMalformed)
	}
	if uint64(h.Stride)*uint64(h.Height) != uint64(h.PayloadLen) {
		return h, fmt.Errorf("%w: stride %d x height %d != payload %d", ErrMalformed, h.Stride, h.Height, h.PayloadLen)
	}
	return h, nil
}
