package serving

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
)

// Render formats spec as a serving descriptor.
// Names and data types are written as given.
func Render(spec ModelIOSpec) []byte {
	buf := &bytes.Buffer{}
	fmt.Fprintf(buf, "platform: \"%s\"\n", spec.Platform)
	writeTensor(buf, "input", spec.InputName, spec.InputDataType, spec.InputDims)
	writeTensor(buf, "output", spec.OutputName, spec.OutputDataType, spec.OutputDims)
	return buf.Bytes()
}

func writeTensor(buf *bytes.Buffer, section, name string, datatype DataType, dims Dims) {
	fmt.Fprintf(buf, "%s [\n", section)
	fmt.Fprintf(buf, "  { name: \"%s\" data_type: %s dims: %s }\n", name, datatype, formatDims(dims))
	buf.WriteString("]\n")
}

func formatDims(dims Dims) string {
	buf := bytes.NewBufferString("[")
	for i, d := range dims {
		if i > 0 {
			buf.WriteString(", ")
		}
		if d < 0 {
			d = VariableDim
		}
		buf.WriteString(strconv.FormatInt(d, 10))
	}
	buf.WriteString("]")
	return buf.String()
}

// Emit writes the descriptor of spec to path, replacing any existing content.
func Emit(spec ModelIOSpec, path string) error {
	if err := os.WriteFile(path, Render(spec), 0o644); err != nil {
		return fmt.Errorf("write serving config:%s %w", path, err)
	}
	return nil
}
