package training

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sort"
	"strings"
)

// Logs holds the metrics of one epoch, keyed by metric name.
type Logs map[string]float64

// Callback is invoked by the Trainer after every epoch.
type Callback interface {
	OnEpochEnd(ctx context.Context, epoch int, logs Logs) error
}

type CallbackFunc func(ctx context.Context, epoch int, logs Logs) error

func (f CallbackFunc) OnEpochEnd(ctx context.Context, epoch int, logs Logs) error {
	return f(ctx, epoch, logs)
}

type ScalarSink interface {
	ReportScalar(ctx context.Context, id string, title, series string, iteration int, value float64) error
}

type ImageSink interface {
	ReportImage(ctx context.Context, id string, title, series string, iteration int, png []byte) error
}

// ScalarReporter reports every metric as a scalar. Metrics prefixed with
// "val_" go to the validation series of the same title.
type ScalarReporter struct {
	Sink   ScalarSink
	TaskID string
}

func (r ScalarReporter) OnEpochEnd(ctx context.Context, epoch int, logs Logs) error {
	keys := make([]string, 0, len(logs))
	for k := range logs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		title, series := k, "train"
		if strings.HasPrefix(k, "val_") {
			title, series = strings.TrimPrefix(k, "val_"), "validation"
		}
		if err := r.Sink.ReportScalar(ctx, r.TaskID, title, series, epoch, logs[k]); err != nil {
			return err
		}
	}
	return nil
}

const (
	SampleRows = 28
	SampleCols = 28
)

// ImageReporter reports a validation sample as a PNG image after each epoch.
type ImageReporter struct {
	Sink   ImageSink
	TaskID string
	// Sample is a flattened grayscale image with values in [0, 1].
	Sample []float32
	Rows   int
	Cols   int
}

func (r ImageReporter) OnEpochEnd(ctx context.Context, epoch int, logs Logs) error {
	rows, cols := r.Rows, r.Cols
	if rows == 0 || cols == 0 {
		rows, cols = SampleRows, SampleCols
	}
	content, err := EncodeSample(r.Sample, rows, cols)
	if err != nil {
		return err
	}
	return r.Sink.ReportImage(ctx, r.TaskID, "image", "image", epoch, content)
}

// EncodeSample renders a flattened grayscale sample as an RGB PNG with three equal channels.
func EncodeSample(sample []float32, rows, cols int) ([]byte, error) {
	if len(sample) != rows*cols {
		return nil, fmt.Errorf("sample has %d values, expected %dx%d", len(sample), rows, cols)
	}
	img := image.NewRGBA(image.Rect(0, 0, cols, rows))
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			v := toUint8(sample[y*cols+x])
			img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 0xff})
		}
	}
	buf := &bytes.Buffer{}
	if err := png.Encode(buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func toUint8(v float32) uint8 {
	scaled := 255 * v
	switch {
	case scaled <= 0:
		return 0
	case scaled >= 255:
		return 255
	default:
		return uint8(scaled)
	}
}
