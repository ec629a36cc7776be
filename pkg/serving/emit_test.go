package serving

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var mnistSpec = ModelIOSpec{
	Platform:       PlatformTensorflowSavedModel,
	InputName:      "dense_input",
	OutputName:     "activation_2",
	InputDataType:  TypeFP32,
	OutputDataType: TypeFP32,
	InputDims:      Dims{VariableDim, 784},
	OutputDims:     Dims{VariableDim, 10},
}

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		spec ModelIOSpec
		want string
	}{
		{
			name: "mnist",
			spec: mnistSpec,
			want: `platform: "tensorflow_savedmodel"
input [
  { name: "dense_input" data_type: TYPE_FP32 dims: [-1, 784] }
]
output [
  { name: "activation_2" data_type: TYPE_FP32 dims: [-1, 10] }
]
`,
		},
		{
			name: "image model keeps order",
			spec: ModelIOSpec{
				Platform:       PlatformONNXRuntime,
				InputName:      "images",
				OutputName:     "logits",
				InputDataType:  TypeUint8,
				OutputDataType: TypeFP16,
				InputDims:      Dims{-1, 3, 224, 224},
				OutputDims:     Dims{-1, 1000},
			},
			want: `platform: "onnxruntime_onnx"
input [
  { name: "images" data_type: TYPE_UINT8 dims: [-1, 3, 224, 224] }
]
output [
  { name: "logits" data_type: TYPE_FP16 dims: [-1, 1000] }
]
`,
		},
		{
			name: "unvalidated input",
			spec: ModelIOSpec{
				Platform:   "custom",
				InputName:  "x",
				OutputName: "x",
				InputDims:  Dims{},
				OutputDims: Dims{-7},
			},
			want: `platform: "custom"
input [
  { name: "x" data_type:  dims: [] }
]
output [
  { name: "x" data_type:  dims: [-1] }
]
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(Render(tt.spec)); got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderDimsCount(t *testing.T) {
	for n := 0; n < 6; n++ {
		dims := make(Dims, n)
		for i := range dims {
			dims[i] = int64(i + 1)
		}
		spec := ModelIOSpec{InputDims: dims, OutputDims: dims}
		out := string(Render(spec))
		want := "dims: " + formatDims(dims)
		if strings.Count(out, want) != 2 {
			t.Errorf("dims %v: rendered %q", dims, out)
		}
		if n > 0 && strings.Count(formatDims(dims), ",") != n-1 {
			t.Errorf("dims %v: expected %d entries in %s", dims, n, formatDims(dims))
		}
	}
}

func TestEmit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)

	if err := os.WriteFile(path, []byte("stale content that is longer than the descriptor itself ......................................................................................................"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Emit(mnistSpec, path); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, Render(mnistSpec)) {
		t.Errorf("Emit() wrote %q", first)
	}

	if err := Emit(mnistSpec, path); err != nil {
		t.Fatalf("Emit() second call error = %v", err)
	}
	second, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("Emit() not idempotent: %q != %q", first, second)
	}
}

func TestEmitMissingParent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", ConfigFileName)
	err := Emit(mnistSpec, path)
	if err == nil {
		t.Fatal("Emit() expected error for missing parent directory")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Emit() error = %v, want fs.ErrNotExist", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Errorf("file should not exist, stat error = %v", statErr)
	}
}
