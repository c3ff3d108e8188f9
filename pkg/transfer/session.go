package transfer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kestrel-vision/stereolink/internal/wire"
	"github.com/kestrel-vision/stereolink/pkg/discovery"
	"github.com/kestrel-vision/stereolink/pkg/imageset"
	"github.com/kestrel-vision/stereolink/pkg/log"
)

// Session owns one logical connection to a capture device, from handshake to
// fault. It is driven by a single goroutine; only State, ID and Close are
// safe to call concurrently with ReceiveOne.
type Session struct {
	device discovery.DeviceInfo
	opts   options
	logger log.Logger
	id     string

	conn     net.Conn
	br       *bufio.Reader
	channels byte // negotiated during handshake

	mu    sync.Mutex
	state State

	integrityFaults atomic.Uint64
}

// NewSession constructs a session in the Disconnected state. No I/O happens
// until Connect. Returns ErrInvalidDevice for a descriptor that cannot be
// dialed.
func NewSession(device discovery.DeviceInfo, opts ...Option) (*Session, error) {
	if device.Address == "" || device.StreamPort == 0 {
		return nil, fmt.Errorf("%w: address=%q port=%d", ErrInvalidDevice, device.Address, device.StreamPort)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Session{
		device: device,
		opts:   o,
		logger: o.logger,
		id:     uuid.NewString(),
		state:  StateDisconnected,
	}, nil
}

// ID returns the session's unique identifier, used to correlate log lines.
func (s *Session) ID() string {
	return s.id
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IntegrityFaults returns how many malformed frames this session has
// discarded.
func (s *Session) IntegrityFaults() uint64 {
	return s.integrityFaults.Load()
}

func (s *Session) setState(next State, reason string) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	s.mu.Unlock()

	if prev != next {
		s.logger.Debug("session state transition",
			log.String("session", s.id),
			log.String("from", prev.String()),
			log.String("to", next.String()),
			log.String("reason", reason),
		)
	}
}

// Connect dials the device and performs the stream handshake. On success the
// session is Streaming; on failure it is Faulted and the error wraps
// ErrConnection.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateDisconnected {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: connect in state %s", ErrSessionFaulted, st)
	}
	s.state = StateHandshaking
	s.mu.Unlock()

	dialer := net.Dialer{Timeout: s.opts.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.device.StreamAddr())
	if err != nil {
		s.setState(StateFaulted, "dial failed")
		return fmt.Errorf("%w: dial %s: %v", ErrConnection, s.device.StreamAddr(), err)
	}

	// The handshake shares the dial timeout.
	_ = conn.SetDeadline(time.Now().Add(s.opts.dialTimeout))

	if err := wire.WriteHandshake(conn); err != nil {
		conn.Close()
		s.setState(StateFaulted, "handshake write failed")
		return fmt.Errorf("%w: handshake: %v", ErrConnection, err)
	}
	channels, err := wire.ReadHandshakeAccept(conn)
	if err != nil {
		conn.Close()
		s.setState(StateFaulted, "handshake rejected")
		return fmt.Errorf("%w: handshake: %v", ErrConnection, err)
	}

	_ = conn.SetDeadline(time.Time{})

	s.conn = conn
	s.br = bufio.NewReaderSize(conn, 64<<10)
	s.channels = channels
	s.setState(StateStreaming, "handshake accepted")

	s.logger.Info("session streaming",
		log.String("session", s.id),
		log.String("device", s.device.Serial),
		log.Int("channels", int(channels)),
	)
	return nil
}

// ReceiveOne blocks until the next complete, self-consistent image set
// arrives. Malformed frames are discarded and logged without terminating the
// session; the stream resynchronizes on the next frame boundary. A read
// error, protocol violation at the transport level, or silence beyond the
// liveness threshold faults the session and returns ErrSessionLost.
func (s *Session) ReceiveOne(ctx context.Context) (*imageset.ImageSet, error) {
	for {
		if s.State() != StateStreaming {
			return nil, ErrSessionFaulted
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// One liveness deadline covers the whole frame read.
		if err := s.conn.SetReadDeadline(time.Now().Add(s.opts.livenessTimeout)); err != nil {
			return nil, s.lost("set deadline", err)
		}
		if err := wire.SyncFrame(s.br); err != nil {
			return nil, s.lost("frame sync", err)
		}

		header, err := wire.ReadFrameHeader(s.br)
		if err != nil {
			if errors.Is(err, wire.ErrMalformed) {
				s.integrityFault(0, err)
				continue
			}
			return nil, s.lost("frame header", err)
		}

		set, err := s.readFrameBody(header)
		if err != nil {
			return nil, err
		}
		if set == nil {
			continue // frame discarded, wait for the next one
		}
		return set, nil
	}
}

// readFrameBody reads all channels declared by header. It returns (nil, nil)
// for a structurally readable frame that fails validation, leaving the
// stream aligned on the next frame boundary.
func (s *Session) readFrameBody(header wire.FrameHeader) (*imageset.ImageSet, error) {
	images := make([]imageset.Image, 0, header.Channels)
	consistent := header.Channels == s.channels
	if !consistent {
		s.integrityFault(header.Seq, fmt.Errorf("channel count %d, negotiated %d", header.Channels, s.channels))
	}

	for i := 0; i < int(header.Channels); i++ {
		ch, err := wire.ReadChannelHeader(s.br)
		if err != nil {
			if errors.Is(err, wire.ErrMalformed) {
				// Cannot trust the payload length; rescan for the
				// next frame magic instead.
				s.integrityFault(header.Seq, err)
				return nil, nil
			}
			return nil, s.lost("channel header", err)
		}

		if ch.Seq != header.Seq || ch.Timestamp != header.Timestamp {
			if consistent {
				s.integrityFault(header.Seq, fmt.Errorf("channel %d seq/timestamp mismatch", i))
				consistent = false
			}
			// Skip the payload to stay aligned on the stream.
			if _, err := io.CopyN(io.Discard, s.br, int64(ch.PayloadLen)); err != nil {
				return nil, s.lost("discard payload", err)
			}
			continue
		}

		payload := make([]byte, ch.PayloadLen)
		if _, err := io.ReadFull(s.br, payload); err != nil {
			return nil, s.lost("payload", err)
		}
		images = append(images, imageset.Image{
			Data:      payload,
			Width:     int(ch.Width),
			Height:    int(ch.Height),
			RowStride: int(ch.Stride),
			Format:    imageset.PixelFormat(ch.Format),
			Role:      imageset.ChannelRole(ch.Role),
		})
	}

	if !consistent {
		return nil, nil
	}
	set, err := imageset.New(header.Seq, time.Unix(0, header.Timestamp), images)
	if err != nil {
		s.integrityFault(header.Seq, err)
		return nil, nil
	}
	return set, nil
}

func (s *Session) integrityFault(seq uint64, err error) {
	s.integrityFaults.Add(1)
	s.logger.Warn("discarding malformed frame",
		log.String("session", s.id),
		log.Uint64("seq", seq),
		log.Err(err),
	)
}

// lost faults the session and closes the connection.
func (s *Session) lost(stage string, err error) error {
	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.state = StateFaulted
	s.mu.Unlock()

	s.logger.Warn("session lost",
		log.String("session", s.id),
		log.String("stage", stage),
		log.Err(err),
	)
	return fmt.Errorf("%w: %s: %v", ErrSessionLost, stage, err)
}

// Close aborts any in-flight read and moves the session to its terminal
// state. Safe to call from any goroutine and more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateFaulted {
		return nil
	}
	s.state = StateFaulted
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
