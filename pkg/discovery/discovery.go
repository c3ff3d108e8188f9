// Package discovery probes the local network for stereolink capture devices.
//
// Discovery is a best-effort UDP broadcast: a query datagram goes out, the
// scan collects replies until the window elapses, and whatever answered is
// returned. An empty result is a normal outcome, not an error.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/kestrel-vision/stereolink/internal/wire"
	"github.com/kestrel-vision/stereolink/pkg/log"
)

// DeviceInfo describes one discovered capture device. It is immutable after
// discovery and safe to copy and share.
type DeviceInfo struct {
	// Address is the device's IP address as observed on the reply.
	Address string

	// StreamPort is the TCP port serving the image stream.
	StreamPort uint16

	Model    string
	Serial   string
	Firmware string

	// HasDisparity reports whether the device streams a disparity channel.
	HasDisparity bool

	// HasColor reports whether the device streams a color channel.
	HasColor bool
}

// StreamAddr returns the host:port to dial for the image stream.
func (d DeviceInfo) StreamAddr() string {
	return net.JoinHostPort(d.Address, strconv.Itoa(int(d.StreamPort)))
}

// String renders the device for human-readable listings.
func (d DeviceInfo) String() string {
	return fmt.Sprintf("%s %s (fw %s) at %s", d.Model, d.Serial, d.Firmware, d.StreamAddr())
}

// ScanConfig controls one discovery scan.
type ScanConfig struct {
	// BroadcastAddr is the UDP address the query is sent to.
	// Defaults to the limited broadcast address on the discovery port.
	BroadcastAddr string

	// Window bounds how long the scan listens for replies. Defaults to
	// 500ms.
	Window time.Duration
}

const defaultWindow = 500 * time.Millisecond

func (c *ScanConfig) setDefaults() {
	if c.BroadcastAddr == "" {
		c.BroadcastAddr = fmt.Sprintf("255.255.255.255:%d", wire.DefaultDiscoveryPort)
	}
	if c.Window <= 0 {
		c.Window = defaultWindow
	}
}

// Option configures optional Enumerator behavior.
type Option func(*Enumerator)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger log.Logger) Option {
	return func(e *Enumerator) {
		e.logger = logger
	}
}

// Enumerator performs discovery scans. Each Discover call is an independent
// scan; the Enumerator holds no network state between calls.
type Enumerator struct {
	logger log.Logger
}

// NewEnumerator creates an Enumerator.
func NewEnumerator(opts ...Option) *Enumerator {
	e := &Enumerator{logger: log.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Discover broadcasts a query and collects device replies until the scan
// window elapses or ctx is canceled. Devices are deduplicated by serial; the
// result order is arrival order. No replies means an empty slice, not an
// error.
func (e *Enumerator) Discover(ctx context.Context, cfg ScanConfig) ([]DeviceInfo, error) {
	cfg.setDefaults()

	dest, err := net.ResolveUDPAddr("udp4", cfg.BroadcastAddr)
	if err != nil {
		return nil, fmt.Errorf("discovery: resolve %s: %w", cfg.BroadcastAddr, err)
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, fmt.Errorf("discovery: open socket: %w", err)
	}
	defer conn.Close()

	if _, err := conn.WriteToUDP(wire.EncodeDiscoveryQuery(), dest); err != nil {
		return nil, fmt.Errorf("discovery: send query: %w", err)
	}

	deadline := time.Now().Add(cfg.Window)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("discovery: set deadline: %w", err)
	}

	// Unblock the read when ctx is canceled mid-scan.
	stop := context.AfterFunc(ctx, func() { conn.SetReadDeadline(time.Now()) })
	defer stop()

	e.logger.Debug("discovery scan started",
		log.String("broadcast", cfg.BroadcastAddr),
		log.Duration("window", cfg.Window),
	)

	var (
		devices []DeviceInfo
		seen    = map[string]bool{}
		buf     = make([]byte, 1024)
	)
	for {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				break // scan window elapsed
			}
			return nil, fmt.Errorf("discovery: read reply: %w", err)
		}

		reply, err := wire.DecodeDiscoveryReply(buf[:n])
		if err != nil {
			e.logger.Debug("ignoring malformed discovery reply",
				log.String("from", from.String()),
				log.Err(err),
			)
			continue
		}
		if seen[reply.Serial] {
			continue
		}
		seen[reply.Serial] = true

		dev := DeviceInfo{
			Address:      from.IP.String(),
			StreamPort:   reply.StreamPort,
			Model:        reply.Model,
			Serial:       reply.Serial,
			Firmware:     reply.Firmware,
			HasDisparity: reply.Capabilities&wire.CapDisparity != 0,
			HasColor:     reply.Capabilities&wire.CapColor != 0,
		}
		devices = append(devices, dev)
		e.logger.Info("device discovered", log.String("device", dev.String()))
	}

	return devices, nil
}
