// Package imageset defines the value type for one synchronized multi-channel
// capture event received from a stereo device.
//
// An ImageSet is immutable once constructed. All channels within a set carry
// the same sequence number and capture timestamp; the transfer session never
// yields a partially assembled set.
package imageset

import (
	"errors"
	"fmt"
	"time"
)

// PixelFormat identifies the pixel encoding of a channel image.
type PixelFormat byte

const (
	// FormatMono8 is 8-bit grayscale, one byte per pixel.
	FormatMono8 PixelFormat = iota

	// FormatMono12 is 12-bit grayscale stored in 16-bit big-endian words.
	FormatMono12

	// FormatRGB8 is 8-bit-per-component interleaved RGB.
	FormatRGB8
)

// BytesPerPixel returns the storage size of one pixel, or 0 for an unknown
// format.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case FormatMono8:
		return 1
	case FormatMono12:
		return 2
	case FormatRGB8:
		return 3
	default:
		return 0
	}
}

// String returns a human-readable format name.
func (f PixelFormat) String() string {
	switch f {
	case FormatMono8:
		return "mono8"
	case FormatMono12:
		return "mono12"
	case FormatRGB8:
		return "rgb8"
	default:
		return fmt.Sprintf("unknown(%d)", byte(f))
	}
}

// ChannelRole identifies what a channel image represents within a set.
type ChannelRole byte

const (
	RoleLeft ChannelRole = iota
	RoleRight
	RoleDisparity
	RoleColor
)

// String returns a human-readable role name.
func (r ChannelRole) String() string {
	switch r {
	case RoleLeft:
		return "left"
	case RoleRight:
		return "right"
	case RoleDisparity:
		return "disparity"
	case RoleColor:
		return "color"
	default:
		return fmt.Sprintf("unknown(%d)", byte(r))
	}
}

// Image is one channel of an ImageSet: raw pixel bytes plus layout metadata.
// Data is shared by reference and must not be modified after construction.
type Image struct {
	Data      []byte
	Width     int
	Height    int
	RowStride int
	Format    PixelFormat
	Role      ChannelRole
}

// ErrNoChannels is returned when constructing an ImageSet without images.
var ErrNoChannels = errors.New("imageset: at least one channel required")

// ImageSet holds one synchronized capture event: N channel images sharing a
// sequence number and a capture timestamp.
type ImageSet struct {
	channels  []Image
	seq       uint64
	timestamp time.Time
}

// New constructs an ImageSet. The channel slice is taken over by the set and
// must not be modified afterwards.
func New(seq uint64, timestamp time.Time, channels []Image) (*ImageSet, error) {
	if len(channels) == 0 {
		return nil, ErrNoChannels
	}
	return &ImageSet{
		channels:  channels,
		seq:       seq,
		timestamp: timestamp,
	}, nil
}

// ChannelCount returns the number of channel images in the set.
func (s *ImageSet) ChannelCount() int {
	return len(s.channels)
}

// Channel returns the i-th channel image. It panics if i is out of range,
// matching slice indexing semantics.
func (s *ImageSet) Channel(i int) Image {
	return s.channels[i]
}

// Seq returns the monotonically increasing frame sequence number.
func (s *ImageSet) Seq() uint64 {
	return s.seq
}

// Timestamp returns the device-side capture time.
func (s *ImageSet) Timestamp() time.Time {
	return s.timestamp
}
