package transfer_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-vision/stereolink/internal/simulator"
	"github.com/kestrel-vision/stereolink/pkg/discovery"
	"github.com/kestrel-vision/stereolink/pkg/transfer"
)

func TestNewAsyncClient_InvalidDescriptor(t *testing.T) {
	_, err := transfer.NewAsyncClient(discovery.DeviceInfo{})
	assert.ErrorIs(t, err, transfer.ErrInvalidDevice)
}

func TestAsyncClient_ThreeFramesThenSilence(t *testing.T) {
	sim := startSim(t, simulator.Config{
		Channels:      2,
		Width:         8,
		Height:        4,
		FrameInterval: 100 * time.Millisecond,
		FrameCount:    3,
	})

	client, err := transfer.NewAsyncClient(simDevice(sim),
		transfer.WithLivenessTimeout(10*time.Second), // keep the session alive during the silent tail
	)
	require.NoError(t, err)
	defer client.Close()

	var lastSeq uint64
	for i := 0; i < 3; i++ {
		set, ok := client.CollectReceivedImageSet(2 * time.Second)
		require.True(t, ok, "poll %d should deliver a set", i)
		assert.Greater(t, set.Seq(), lastSeq, "sequence numbers must be strictly increasing")
		lastSeq = set.Seq()
	}

	// The device has gone silent; a short poll comes back empty and
	// without error.
	_, ok := client.CollectReceivedImageSet(100 * time.Millisecond)
	assert.False(t, ok)
}

func TestAsyncClient_PayloadRoundTrip(t *testing.T) {
	sim := startSim(t, simulator.Config{
		Channels:      1,
		Width:         4,
		Height:        2,
		FrameInterval: 10 * time.Millisecond,
	})

	client, err := transfer.NewAsyncClient(simDevice(sim))
	require.NoError(t, err)
	defer client.Close()

	set, ok := client.CollectReceivedImageSet(2 * time.Second)
	require.True(t, ok)

	// The simulator fills payloads with a deterministic ramp from the
	// sequence number; verify the bytes survive the wire unchanged.
	img := set.Channel(0)
	require.Len(t, img.Data, 8)
	base := byte(set.Seq()) * 7
	for i, b := range img.Data {
		require.Equal(t, base+byte(i), b, "payload byte %d", i)
	}
	assert.False(t, set.Timestamp().IsZero())
}

func TestAsyncClient_ZeroTimeoutNeverBlocks(t *testing.T) {
	// No device at all: the client just keeps retrying in the background.
	client, err := transfer.NewAsyncClient(discovery.DeviceInfo{
		Address:    "127.0.0.1",
		StreamPort: 1,
	},
		transfer.WithDialTimeout(100*time.Millisecond),
	)
	require.NoError(t, err)
	defer client.Close()

	start := time.Now()
	_, ok := client.CollectReceivedImageSet(0)
	elapsed := time.Since(start)

	assert.False(t, ok)
	assert.Less(t, elapsed, 100*time.Millisecond, "zero timeout must poll, not wait")
}

func TestAsyncClient_SingleArrivalSingleClaimant(t *testing.T) {
	sim := startSim(t, simulator.Config{
		FrameInterval: 20 * time.Millisecond,
		FrameCount:    1, // exactly one arrival
	})

	client, err := transfer.NewAsyncClient(simDevice(sim),
		transfer.WithLivenessTimeout(10*time.Second),
	)
	require.NoError(t, err)
	defer client.Close()

	const claimants = 8
	var (
		wg   sync.WaitGroup
		hits int64
		mu   sync.Mutex
	)
	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := client.CollectReceivedImageSet(time.Second); ok {
				mu.Lock()
				hits++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, hits, "exactly one claimant must win a single arrival")
}

func TestAsyncClient_LatestWinsUnderSlowConsumer(t *testing.T) {
	sim := startSim(t, simulator.Config{
		FrameInterval: 5 * time.Millisecond,
	})

	client, err := transfer.NewAsyncClient(simDevice(sim))
	require.NoError(t, err)
	defer client.Close()

	// Let several arrivals overwrite each other before the first poll.
	time.Sleep(150 * time.Millisecond)

	set, ok := client.CollectReceivedImageSet(time.Second)
	require.True(t, ok)
	assert.Greater(t, set.Seq(), uint64(1), "earlier arrivals must have been overwritten")

	client.Close() // freeze the counters
	stats := client.Stats()
	assert.NotZero(t, stats.FramesDropped, "unclaimed arrivals count as drops")
	assert.Greater(t, stats.FramesReceived, stats.FramesDropped)
}

func TestAsyncClient_ReconnectsAfterDrop(t *testing.T) {
	sim := startSim(t, simulator.Config{
		FrameInterval: 10 * time.Millisecond,
		DropAfter:     2, // every connection dies after two frames
	})

	client, err := transfer.NewAsyncClient(simDevice(sim),
		transfer.WithLivenessTimeout(time.Second),
		transfer.WithReconnectBackoff(20*time.Millisecond, 100*time.Millisecond),
	)
	require.NoError(t, err)
	defer client.Close()

	// Collect more frames than a single connection can deliver; that is
	// only possible if the client reconnected on its own.
	var lastSeq uint64
	for i := 0; i < 5; i++ {
		set, ok := client.CollectReceivedImageSet(3 * time.Second)
		require.True(t, ok, "poll %d", i)
		assert.Greater(t, set.Seq(), lastSeq)
		lastSeq = set.Seq()
	}

	assert.NotZero(t, client.Stats().Reconnects)
}

func TestAsyncClient_PollsFailDuringOutage(t *testing.T) {
	sim := startSim(t, simulator.Config{
		FrameInterval: 10 * time.Millisecond,
	})
	dev := simDevice(sim)

	client, err := transfer.NewAsyncClient(dev,
		transfer.WithDialTimeout(100*time.Millisecond),
		transfer.WithLivenessTimeout(200*time.Millisecond),
		transfer.WithReconnectBackoff(20*time.Millisecond, 100*time.Millisecond),
	)
	require.NoError(t, err)
	defer client.Close()

	_, ok := client.CollectReceivedImageSet(2 * time.Second)
	require.True(t, ok, "initial delivery")

	// Outage: polls report absence, never an error.
	sim.Close()
	time.Sleep(400 * time.Millisecond)
	for { // drain the slot's last arrivals
		if _, ok := client.CollectReceivedImageSet(0); !ok {
			break
		}
	}
	_, ok = client.CollectReceivedImageSet(150 * time.Millisecond)
	assert.False(t, ok)
}

func TestAsyncClient_CloseIsIdempotentAndPrompt(t *testing.T) {
	sim := startSim(t, simulator.Config{
		FrameInterval: 10 * time.Millisecond,
	})

	client, err := transfer.NewAsyncClient(simDevice(sim))
	require.NoError(t, err)

	_, ok := client.CollectReceivedImageSet(2 * time.Second)
	require.True(t, ok)

	done := make(chan struct{})
	go func() {
		client.Close()
		client.Close() // second call is a no-op
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Close did not return promptly")
	}

	// After Close, polls report absence immediately even with a timeout.
	start := time.Now()
	_, ok = client.CollectReceivedImageSet(5 * time.Second)
	assert.False(t, ok)
	assert.Less(t, time.Since(start), time.Second)
}
