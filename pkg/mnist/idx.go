// Package mnist reads the MNIST dataset in its IDX binary format.
package mnist

import (
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	imagesMagic = 2051
	labelsMagic = 2049
	// maxPixels bounds a single image read from an untrusted header.
	maxPixels = 1 << 24
)

// Images holds raw 8-bit pixels, one slice per image.
type Images struct {
	Rows   int
	Cols   int
	Pixels [][]byte
}

// ReadImages decodes an IDX image file: magic, count, rows, cols, then pixel bytes.
func ReadImages(r io.Reader) (*Images, error) {
	var header [4]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, fmt.Errorf("read images header: %w", err)
	}
	if header[0] != imagesMagic {
		return nil, fmt.Errorf("invalid images magic number: got %d, want %d", header[0], imagesMagic)
	}
	count, rows, cols := int64(header[1]), int64(header[2]), int64(header[3])
	if rows > maxPixels || cols > maxPixels || rows*cols > maxPixels {
		return nil, fmt.Errorf("invalid image size %dx%d", rows, cols)
	}
	images := &Images{Rows: int(rows), Cols: int(cols)}
	for i := int64(0); i < count; i++ {
		pixels := make([]byte, rows*cols)
		if _, err := io.ReadFull(r, pixels); err != nil {
			return nil, fmt.Errorf("read image %d: %w", i, err)
		}
		images.Pixels = append(images.Pixels, pixels)
	}
	return images, nil
}

// ReadLabels decodes an IDX label file: magic, count, then label bytes.
func ReadLabels(r io.Reader) ([]byte, error) {
	var header [2]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, fmt.Errorf("read labels header: %w", err)
	}
	if header[0] != labelsMagic {
		return nil, fmt.Errorf("invalid labels magic number: got %d, want %d", header[0], labelsMagic)
	}
	labels, err := io.ReadAll(io.LimitReader(r, int64(header[1])))
	if err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	if len(labels) != int(header[1]) {
		return nil, fmt.Errorf("read labels: got %d of %d: %w", len(labels), header[1], io.ErrUnexpectedEOF)
	}
	return labels, nil
}

// Normalize scales pixels to [0, 1] and flattens each image.
func (im *Images) Normalize() [][]float32 {
	out := make([][]float32, len(im.Pixels))
	for i, px := range im.Pixels {
		out[i] = make([]float32, len(px))
		for j, v := range px {
			out[i][j] = float32(v) / 255
		}
	}
	return out
}

// OpenImages reads an IDX image file, gunzipping it when named *.gz.
func OpenImages(path string) (*Images, error) {
	var images *Images
	err := openIDX(path, func(r io.Reader) (err error) {
		images, err = ReadImages(r)
		return err
	})
	return images, err
}

func OpenLabels(path string) ([]byte, error) {
	var labels []byte
	err := openIDX(path, func(r io.Reader) (err error) {
		labels, err = ReadLabels(r)
		return err
	})
	return labels, err
}

func openIDX(path string, fn func(r io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return err
		}
		defer gz.Close()
		r = gz
	}
	return fn(r)
}
