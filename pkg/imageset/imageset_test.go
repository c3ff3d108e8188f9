package imageset

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func TestNew_RequiresChannels(t *testing.T) {
	_, err := New(1, time.Now(), nil)
	if !errors.Is(err, ErrNoChannels) {
		t.Fatalf("New with no channels: err = %v, want ErrNoChannels", err)
	}
}

func TestImageSet_Accessors(t *testing.T) {
	ts := time.Unix(0, 1234567890)
	left := Image{Data: []byte{1, 2, 3, 4}, Width: 2, Height: 2, RowStride: 2, Format: FormatMono8, Role: RoleLeft}
	right := Image{Data: []byte{5, 6, 7, 8}, Width: 2, Height: 2, RowStride: 2, Format: FormatMono8, Role: RoleRight}

	set, err := New(42, ts, []Image{left, right})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if got := set.ChannelCount(); got != 2 {
		t.Errorf("ChannelCount = %d, want 2", got)
	}
	if got := set.Seq(); got != 42 {
		t.Errorf("Seq = %d, want 42", got)
	}
	if !set.Timestamp().Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", set.Timestamp(), ts)
	}
	if !bytes.Equal(set.Channel(0).Data, left.Data) {
		t.Errorf("Channel(0).Data = %v, want %v", set.Channel(0).Data, left.Data)
	}
	if set.Channel(1).Role != RoleRight {
		t.Errorf("Channel(1).Role = %v, want right", set.Channel(1).Role)
	}
}

func TestPixelFormat_BytesPerPixel(t *testing.T) {
	tests := []struct {
		format PixelFormat
		want   int
	}{
		{FormatMono8, 1},
		{FormatMono12, 2},
		{FormatRGB8, 3},
		{PixelFormat(99), 0},
	}
	for _, tt := range tests {
		if got := tt.format.BytesPerPixel(); got != tt.want {
			t.Errorf("%v.BytesPerPixel() = %d, want %d", tt.format, got, tt.want)
		}
	}
}

func TestWritePGM(t *testing.T) {
	// 2x2 mono8 image with one byte of stride padding per row. The
	// padding must not appear in the file.
	img := Image{
		Data:      []byte{10, 20, 0xFF, 30, 40, 0xFF},
		Width:     2,
		Height:    2,
		RowStride: 3,
		Format:    FormatMono8,
		Role:      RoleLeft,
	}
	set, err := New(1, time.Now(), []Image{img})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var buf bytes.Buffer
	if err := set.WritePGM(0, &buf); err != nil {
		t.Fatalf("WritePGM: %v", err)
	}

	want := append([]byte("P5\n2 2\n255\n"), 10, 20, 30, 40)
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("WritePGM output = %q, want %q", buf.Bytes(), want)
	}
}

func TestWritePGM_RejectsRGB(t *testing.T) {
	img := Image{Data: make([]byte, 12), Width: 2, Height: 2, RowStride: 6, Format: FormatRGB8}
	set, err := New(1, time.Now(), []Image{img})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var buf bytes.Buffer
	if err := set.WritePGM(0, &buf); err == nil {
		t.Error("WritePGM on RGB channel: got nil error")
	}
}

func TestWritePGM_ChannelOutOfRange(t *testing.T) {
	img := Image{Data: []byte{1}, Width: 1, Height: 1, RowStride: 1, Format: FormatMono8}
	set, err := New(1, time.Now(), []Image{img})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var buf bytes.Buffer
	if err := set.WritePGM(1, &buf); err == nil {
		t.Error("WritePGM(1) on single-channel set: got nil error")
	}
}
