// Package simulator implements an in-process stand-in for a stereolink
// capture device. It answers discovery queries over UDP and serves the
// handshake plus frame stream over TCP, with knobs for injecting the fault
// modes a client has to survive: corrupt frames, mid-stream drops, and
// going silent.
package simulator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kestrel-vision/stereolink/internal/wire"
	"github.com/kestrel-vision/stereolink/pkg/imageset"
	"github.com/kestrel-vision/stereolink/pkg/log"
)

// Config describes the simulated device.
type Config struct {
	// StreamAddr is the TCP listen address. Use "127.0.0.1:0" in tests.
	StreamAddr string

	// DiscoveryAddr is the UDP listen address for discovery queries.
	// Empty disables discovery.
	DiscoveryAddr string

	Model    string
	Serial   string
	Firmware string

	// Channels is the number of images per set. Defaults to 2.
	Channels int

	// Width and Height of every generated channel. Default 64x48.
	Width  int
	Height int

	Format imageset.PixelFormat

	// FrameInterval is the pacing between frames. Defaults to 20ms.
	FrameInterval time.Duration

	// FrameCount stops frame generation after this many frames; the
	// connection then stays open but silent. Zero streams forever.
	FrameCount int

	// CorruptEvery makes every Nth frame carry a mismatched channel
	// timestamp. Zero disables corruption.
	CorruptEvery int

	// DropAfter closes the connection after this many frames. Zero
	// disables dropping.
	DropAfter int

	HasDisparity bool
	HasColor     bool

	Logger log.Logger
}

func (c *Config) setDefaults() {
	if c.Model == "" {
		c.Model = "SimCam-S1"
	}
	if c.Serial == "" {
		c.Serial = "SIM0001"
	}
	if c.Firmware == "" {
		c.Firmware = "0.0-sim"
	}
	if c.Channels <= 0 {
		c.Channels = 2
	}
	if c.Width <= 0 {
		c.Width = 64
	}
	if c.Height <= 0 {
		c.Height = 48
	}
	if c.FrameInterval <= 0 {
		c.FrameInterval = 20 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = log.Nop()
	}
}

// Simulator is a running simulated device.
type Simulator struct {
	cfg    Config
	ln     net.Listener
	pc     *net.UDPConn
	cancel context.CancelFunc
	ctx    context.Context
	wg     sync.WaitGroup
	seq    atomic.Uint64
}

// Start binds the listeners and begins serving.
func Start(cfg Config) (*Simulator, error) {
	cfg.setDefaults()
	if cfg.StreamAddr == "" {
		cfg.StreamAddr = fmt.Sprintf("127.0.0.1:%d", wire.DefaultStreamPort)
	}

	ln, err := net.Listen("tcp", cfg.StreamAddr)
	if err != nil {
		return nil, fmt.Errorf("simulator: listen %s: %w", cfg.StreamAddr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Simulator{cfg: cfg, ln: ln, ctx: ctx, cancel: cancel}

	if cfg.DiscoveryAddr != "" {
		addr, err := net.ResolveUDPAddr("udp4", cfg.DiscoveryAddr)
		if err != nil {
			ln.Close()
			cancel()
			return nil, fmt.Errorf("simulator: resolve %s: %w", cfg.DiscoveryAddr, err)
		}
		pc, err := net.ListenUDP("udp4", addr)
		if err != nil {
			ln.Close()
			cancel()
			return nil, fmt.Errorf("simulator: listen %s: %w", cfg.DiscoveryAddr, err)
		}
		s.pc = pc
		s.wg.Add(1)
		go s.serveDiscovery()
	}

	s.wg.Add(1)
	go s.serveStream()

	cfg.Logger.Info("simulator started",
		log.String("serial", cfg.Serial),
		log.String("stream", ln.Addr().String()),
	)
	return s, nil
}

// StreamAddr returns the bound TCP address.
func (s *Simulator) StreamAddr() net.Addr {
	return s.ln.Addr()
}

// StreamPort returns the bound TCP port.
func (s *Simulator) StreamPort() uint16 {
	return uint16(s.ln.Addr().(*net.TCPAddr).Port)
}

// DiscoveryAddr returns the bound UDP address, or nil when discovery is
// disabled.
func (s *Simulator) DiscoveryAddr() net.Addr {
	if s.pc == nil {
		return nil
	}
	return s.pc.LocalAddr()
}

// Close stops all listeners and waits for connection handlers to exit.
func (s *Simulator) Close() {
	s.cancel()
	s.ln.Close()
	if s.pc != nil {
		s.pc.Close()
	}
	s.wg.Wait()
}

func (s *Simulator) capabilities() byte {
	var caps byte
	if s.cfg.HasDisparity {
		caps |= wire.CapDisparity
	}
	if s.cfg.HasColor {
		caps |= wire.CapColor
	}
	return caps
}

func (s *Simulator) serveDiscovery() {
	defer s.wg.Done()

	reply := wire.DiscoveryReply{
		Version:      wire.ProtocolVersion,
		Capabilities: s.capabilities(),
		StreamPort:   s.StreamPort(),
		Model:        s.cfg.Model,
		Serial:       s.cfg.Serial,
		Firmware:     s.cfg.Firmware,
	}.Encode()

	buf := make([]byte, 64)
	for {
		n, from, err := s.pc.ReadFromUDP(buf)
		if err != nil {
			return // listener closed
		}
		if err := wire.DecodeDiscoveryQuery(buf[:n]); err != nil {
			continue
		}
		if _, err := s.pc.WriteToUDP(reply, from); err != nil {
			s.cfg.Logger.Warn("discovery reply failed", log.Err(err))
		}
	}
}

func (s *Simulator) serveStream() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return // listener closed
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer conn.Close()
			if err := s.handleConn(conn); err != nil && s.ctx.Err() == nil {
				s.cfg.Logger.Debug("stream connection ended", log.Err(err))
			}
		}()
	}
}

func (s *Simulator) handleConn(conn net.Conn) error {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := wire.ReadHandshake(conn); err != nil {
		return err
	}
	_ = conn.SetReadDeadline(time.Time{})

	bw := bufio.NewWriter(conn)
	if err := wire.WriteHandshakeAccept(bw, byte(s.cfg.Channels)); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}

	ticker := time.NewTicker(s.cfg.FrameInterval)
	defer ticker.Stop()

	sent := 0
	for {
		select {
		case <-s.ctx.Done():
			return nil
		case <-ticker.C:
		}

		if s.cfg.FrameCount > 0 && sent >= s.cfg.FrameCount {
			// Go silent; the client's liveness timeout takes it
			// from here.
			<-s.ctx.Done()
			return nil
		}

		seq := s.seq.Add(1)
		corrupt := s.cfg.CorruptEvery > 0 && seq%uint64(s.cfg.CorruptEvery) == 0
		if err := s.writeFrame(bw, seq, corrupt); err != nil {
			return err
		}
		if err := bw.Flush(); err != nil {
			return err
		}
		sent++

		if s.cfg.DropAfter > 0 && sent >= s.cfg.DropAfter {
			return errors.New("simulated mid-stream drop")
		}
	}
}

func (s *Simulator) writeFrame(bw *bufio.Writer, seq uint64, corrupt bool) error {
	ts := time.Now().UnixNano()
	header := wire.FrameHeader{
		Seq:       seq,
		Timestamp: ts,
		Channels:  byte(s.cfg.Channels),
	}
	if err := wire.WriteFrameHeader(bw, header); err != nil {
		return err
	}

	stride := uint32(s.cfg.Width * s.cfg.Format.BytesPerPixel())
	for i := 0; i < s.cfg.Channels; i++ {
		chTS := ts
		if corrupt && i == s.cfg.Channels-1 {
			chTS = ts + 1 // desynchronized channel
		}
		ch := wire.ChannelHeader{
			Seq:        seq,
			Timestamp:  chTS,
			Role:       byte(i),
			Format:     byte(s.cfg.Format),
			Width:      uint16(s.cfg.Width),
			Height:     uint16(s.cfg.Height),
			Stride:     stride,
			PayloadLen: stride * uint32(s.cfg.Height),
		}
		if err := wire.WriteChannel(bw, ch, s.payload(seq, i, int(ch.PayloadLen))); err != nil {
			return err
		}
	}
	return nil
}

// payload generates a deterministic ramp so tests can verify bytes
// round-trip unchanged.
func (s *Simulator) payload(seq uint64, channel, size int) []byte {
	b := make([]byte, size)
	base := byte(seq)*7 + byte(channel)*31
	for i := range b {
		b[i] = base + byte(i)
	}
	return b
}
