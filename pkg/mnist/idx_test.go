package mnist

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func idxImages(count, rows, cols int, fill func(i, j int) byte) []byte {
	buf := &bytes.Buffer{}
	binary.Write(buf, binary.BigEndian, [4]uint32{imagesMagic, uint32(count), uint32(rows), uint32(cols)})
	for i := 0; i < count; i++ {
		for j := 0; j < rows*cols; j++ {
			buf.WriteByte(fill(i, j))
		}
	}
	return buf.Bytes()
}

func TestReadImages(t *testing.T) {
	data := idxImages(2, 2, 2, func(i, j int) byte { return byte(i*100 + j) })
	images, err := ReadImages(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadImages() error = %v", err)
	}
	want := &Images{Rows: 2, Cols: 2, Pixels: [][]byte{{0, 1, 2, 3}, {100, 101, 102, 103}}}
	if !reflect.DeepEqual(images, want) {
		t.Errorf("ReadImages() = %v, want %v", images, want)
	}

	if _, err := ReadImages(bytes.NewReader(data[:len(data)-1])); err == nil {
		t.Error("ReadImages() expected error on truncated data")
	}
	bad := append([]byte{}, data...)
	bad[3] = 0x01
	if _, err := ReadImages(bytes.NewReader(bad)); err == nil {
		t.Error("ReadImages() expected error on bad magic")
	}
}

func TestReadImagesCorruptHeader(t *testing.T) {
	tests := []struct {
		name   string
		header [4]uint32
	}{
		{name: "huge count", header: [4]uint32{imagesMagic, 0xffffffff, 28, 28}},
		{name: "huge image", header: [4]uint32{imagesMagic, 1, 0xffffffff, 0xffffffff}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			binary.Write(buf, binary.BigEndian, tt.header)
			buf.Write(make([]byte, 28*28))
			if _, err := ReadImages(buf); err == nil {
				t.Error("ReadImages() expected error")
			}
		})
	}
}

func TestReadLabelsTruncated(t *testing.T) {
	buf := &bytes.Buffer{}
	binary.Write(buf, binary.BigEndian, [2]uint32{labelsMagic, 0xffffffff})
	buf.Write([]byte{7, 2, 1})
	if _, err := ReadLabels(buf); err == nil {
		t.Error("ReadLabels() expected error on truncated data")
	}
}

func TestReadLabels(t *testing.T) {
	buf := &bytes.Buffer{}
	binary.Write(buf, binary.BigEndian, [2]uint32{labelsMagic, 3})
	buf.Write([]byte{7, 2, 1})
	labels, err := ReadLabels(buf)
	if err != nil {
		t.Fatalf("ReadLabels() error = %v", err)
	}
	if !reflect.DeepEqual(labels, []byte{7, 2, 1}) {
		t.Errorf("ReadLabels() = %v", labels)
	}
}

func TestNormalize(t *testing.T) {
	images := &Images{Rows: 1, Cols: 3, Pixels: [][]byte{{0, 51, 255}}}
	got := images.Normalize()
	want := [][]float32{{0, 0.2, 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Normalize() = %v, want %v", got, want)
	}
}

func TestOpenImagesGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t10k-images-idx3-ubyte.gz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	gz := gzip.NewWriter(f)
	gz.Write(idxImages(1, 28, 28, func(i, j int) byte { return byte(j % 256) }))
	gz.Close()
	f.Close()

	images, err := OpenImages(path)
	if err != nil {
		t.Fatalf("OpenImages() error = %v", err)
	}
	if len(images.Pixels) != 1 || len(images.Pixels[0]) != 784 || images.Pixels[0][783] != byte(783%256) {
		t.Errorf("OpenImages() unexpected content")
	}
}
