package serving

import (
	"encoding/json"
)

// ConfigFileName is the descriptor name expected by the serving runtime.
const ConfigFileName = "config.pbtxt"

type Platform string

const (
	PlatformTensorflowSavedModel Platform = "tensorflow_savedmodel"
	PlatformTensorflowGraphDef   Platform = "tensorflow_graphdef"
	PlatformONNXRuntime          Platform = "onnxruntime_onnx"
	PlatformPytorchLibtorch      Platform = "pytorch_libtorch"
)

const DefaultPlatform = PlatformTensorflowSavedModel

type DataType string

const (
	TypeBool   DataType = "TYPE_BOOL"
	TypeUint8  DataType = "TYPE_UINT8"
	TypeUint16 DataType = "TYPE_UINT16"
	TypeUint32 DataType = "TYPE_UINT32"
	TypeUint64 DataType = "TYPE_UINT64"
	TypeInt8   DataType = "TYPE_INT8"
	TypeInt16  DataType = "TYPE_INT16"
	TypeInt32  DataType = "TYPE_INT32"
	TypeInt64  DataType = "TYPE_INT64"
	TypeFP16   DataType = "TYPE_FP16"
	TypeFP32   DataType = "TYPE_FP32"
	TypeFP64   DataType = "TYPE_FP64"
	TypeString DataType = "TYPE_STRING"
)

const DefaultDataType = TypeFP32

// VariableDim marks an axis whose size is unbound at export time, usually the batch axis.
const VariableDim int64 = -1

// Dims is a tensor shape. A null entry in a JSON or YAML document decodes to VariableDim.
type Dims []int64

func (d *Dims) UnmarshalJSON(data []byte) error {
	var raw []*int64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*d = nil
		return nil
	}
	dims := make(Dims, len(raw))
	for i, v := range raw {
		if v == nil {
			dims[i] = VariableDim
		} else {
			dims[i] = *v
		}
	}
	*d = dims
	return nil
}

// ModelIOSpec describes the single input and output tensor of a servable model.
type ModelIOSpec struct {
	Platform       Platform `json:"platform"`
	InputName      string   `json:"inputName"`
	OutputName     string   `json:"outputName"`
	InputDataType  DataType `json:"inputDataType"`
	OutputDataType DataType `json:"outputDataType"`
	InputDims      Dims     `json:"inputDims"`
	OutputDims     Dims     `json:"outputDims"`
}
