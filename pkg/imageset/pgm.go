package imageset

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// WritePGM writes channel i as a binary PGM (P5) image. Only the mono
// formats are supported; RGB channels need a real image encoder and are out
// of scope here.
func (s *ImageSet) WritePGM(i int, w io.Writer) error {
	if i < 0 || i >= len(s.channels) {
		return fmt.Errorf("imageset: channel %d out of range [0,%d)", i, len(s.channels))
	}
	img := s.channels[i]

	var maxVal int
	switch img.Format {
	case FormatMono8:
		maxVal = 255
	case FormatMono12:
		maxVal = 4095
	default:
		return fmt.Errorf("imageset: cannot write %s channel as PGM", img.Format)
	}

	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "P5\n%d %d\n%d\n", img.Width, img.Height, maxVal); err != nil {
		return err
	}

	// Write row by row so padded strides do not leak into the file.
	rowBytes := img.Width * img.Format.BytesPerPixel()
	for y := 0; y < img.Height; y++ {
		off := y * img.RowStride
		if off+rowBytes > len(img.Data) {
			return fmt.Errorf("imageset: channel %d truncated at row %d", i, y)
		}
		if _, err := bw.Write(img.Data[off : off+rowBytes]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WritePGMFile writes channel i as a PGM file at path.
func (s *ImageSet) WritePGMFile(i int, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := s.WritePGM(i, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
