package transfer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kestrel-vision/stereolink/pkg/discovery"
	"github.com/kestrel-vision/stereolink/pkg/imageset"
	"github.com/kestrel-vision/stereolink/pkg/log"
)

// Stats is a snapshot of an AsyncClient's operational counters.
type Stats struct {
	// FramesReceived counts complete image sets decoded from the wire.
	FramesReceived uint64

	// FramesDropped counts arrivals that were overwritten before any
	// caller claimed them.
	FramesDropped uint64

	// IntegrityFaults counts malformed frames discarded by sessions.
	IntegrityFaults uint64

	// Reconnects counts session attempts after the first.
	Reconnects uint64
}

// AsyncClient receives image sets from one device on a background goroutine
// and hands the most recent complete set to callers. It reconnects
// automatically when a session faults; transport failures are never exposed
// through the poll path.
type AsyncClient struct {
	device discovery.DeviceInfo
	opts   options
	logger log.Logger

	slot *frameSlot

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once

	mu      sync.Mutex
	current *Session

	framesReceived  atomic.Uint64
	integrityFaults atomic.Uint64
	reconnects      atomic.Uint64
}

// NewAsyncClient validates the descriptor and immediately starts the
// background receive loop. Construction is the only point where an error
// surfaces synchronously; everything after is reconnect-and-retry.
func NewAsyncClient(device discovery.DeviceInfo, opts ...Option) (*AsyncClient, error) {
	// Fail construction the same way a session would.
	if _, err := NewSession(device, opts...); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &AsyncClient{
		device: device,
		opts:   o,
		logger: o.logger,
		slot:   newFrameSlot(),
		ctx:    ctx,
		cancel: cancel,
	}

	c.wg.Add(1)
	go c.run(opts)
	return c, nil
}

// run is the background receive/reconnect loop. It is the sole writer of the
// latest-frame slot.
func (c *AsyncClient) run(sessionOpts []Option) {
	defer c.wg.Done()

	bo := newBackoff(c.opts.backoffInitial, c.opts.backoffMax)
	attempt := 0

	for c.ctx.Err() == nil {
		if attempt > 0 {
			c.reconnects.Add(1)
		}
		attempt++

		sess, err := NewSession(c.device, sessionOpts...)
		if err != nil {
			// Descriptor was validated at construction; this cannot
			// happen in steady state.
			c.logger.Error("session construction failed", log.Err(err))
			return
		}

		if err := sess.Connect(c.ctx); err != nil {
			c.logger.Debug("connect attempt failed",
				log.String("device", c.device.Serial),
				log.Err(err),
			)
			if bo.Sleep(c.ctx) != nil {
				return
			}
			continue
		}
		bo.Reset()
		c.setCurrent(sess)

		c.receiveLoop(sess)

		c.setCurrent(nil)
		c.integrityFaults.Add(sess.IntegrityFaults())
		sess.Close()

		if c.ctx.Err() != nil {
			return
		}
		// Brief pause before rebuilding the session, so a dead device
		// does not turn this into a hot loop.
		if bo.Sleep(c.ctx) != nil {
			return
		}
	}
}

// receiveLoop pumps one streaming session into the slot until it faults.
func (c *AsyncClient) receiveLoop(sess *Session) {
	for {
		set, err := sess.ReceiveOne(c.ctx)
		if err != nil {
			return
		}
		c.framesReceived.Add(1)
		c.slot.put(set)
	}
}

func (c *AsyncClient) setCurrent(sess *Session) {
	c.mu.Lock()
	c.current = sess
	c.mu.Unlock()
}

// CollectReceivedImageSet returns the most recent complete image set not yet
// claimed by any caller, waiting up to timeout for one to arrive. A zero
// timeout polls once without waiting. ok is false when no set arrived in
// time or the client is closed; that is a normal outcome, not an error.
//
// Each arrival is delivered at most once: concurrent callers race for the
// slot and exactly one of them claims it.
func (c *AsyncClient) CollectReceivedImageSet(timeout time.Duration) (*imageset.ImageSet, bool) {
	if set := c.slot.take(); set != nil {
		return set, true
	}
	if timeout <= 0 {
		return nil, false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-c.slot.ready:
			// Another claimant may have won the race; keep waiting
			// for the next arrival if so.
			if set := c.slot.take(); set != nil {
				return set, true
			}
		case <-timer.C:
			return nil, false
		case <-c.ctx.Done():
			return nil, false
		}
	}
}

// Stats returns a snapshot of the client's counters.
func (c *AsyncClient) Stats() Stats {
	st := Stats{
		FramesReceived:  c.framesReceived.Load(),
		FramesDropped:   c.slot.dropCount(),
		IntegrityFaults: c.integrityFaults.Load(),
		Reconnects:      c.reconnects.Load(),
	}
	c.mu.Lock()
	if c.current != nil {
		st.IntegrityFaults += c.current.IntegrityFaults()
	}
	c.mu.Unlock()
	return st
}

// Close stops the background loop, aborting any in-flight network read, and
// discards whatever sits unclaimed in the slot. Idempotent.
func (c *AsyncClient) Close() {
	c.once.Do(func() {
		c.cancel()
		c.mu.Lock()
		if c.current != nil {
			c.current.Close()
		}
		c.mu.Unlock()
		c.wg.Wait()
		c.slot.take()
	})
}
