// Package stereolink is a client for stereo-vision capture devices: UDP
// broadcast discovery, a TCP streaming session per device, and an
// asynchronous transfer client that hands the most recent complete image set
// to callers without blocking them on the network.
//
// Example usage:
//
//	devices, err := stereolink.Discover(ctx, stereolink.ScanConfig{})
//	if err != nil || len(devices) == 0 {
//	    log.Fatal("no devices")
//	}
//	client, err := stereolink.NewAsyncClient(devices[0])
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//	for {
//	    set, ok := client.CollectReceivedImageSet(100 * time.Millisecond)
//	    if !ok {
//	        continue // timeout is a normal outcome
//	    }
//	    process(set)
//	}
package stereolink

import (
	"context"

	"github.com/kestrel-vision/stereolink/pkg/discovery"
	"github.com/kestrel-vision/stereolink/pkg/imageset"
	"github.com/kestrel-vision/stereolink/pkg/transfer"
)

// DeviceInfo describes one discovered capture device.
type DeviceInfo = discovery.DeviceInfo

// ScanConfig controls one discovery scan.
type ScanConfig = discovery.ScanConfig

// ImageSet is one synchronized multi-channel capture event.
type ImageSet = imageset.ImageSet

// Image is one channel of an ImageSet.
type Image = imageset.Image

// AsyncClient receives image sets in the background and exposes
// CollectReceivedImageSet to poll for the latest complete one.
type AsyncClient = transfer.AsyncClient

// Session is one logical connection to a device. Most applications use
// AsyncClient instead of driving a Session directly.
type Session = transfer.Session

// Option configures a Session or AsyncClient.
type Option = transfer.Option

// Discover runs one broadcast scan and returns the devices that answered
// within the scan window. An empty result is not an error.
func Discover(ctx context.Context, cfg ScanConfig) ([]DeviceInfo, error) {
	return discovery.NewEnumerator().Discover(ctx, cfg)
}

// NewAsyncClient starts the background receive loop against the given
// device.
func NewAsyncClient(device DeviceInfo, opts ...Option) (*AsyncClient, error) {
	return transfer.NewAsyncClient(device, opts...)
}
