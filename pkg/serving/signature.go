package serving

import (
	"errors"
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// Tensor is a named model input or output as reported by the training framework.
type Tensor struct {
	Name     string   `json:"name"`
	DataType DataType `json:"dataType,omitempty"`
	Shape    Dims     `json:"shape"`
}

// Signature is the exported interface of a trained model.
type Signature struct {
	Platform Platform `json:"platform,omitempty"`
	Inputs   []Tensor `json:"inputs"`
	Outputs  []Tensor `json:"outputs"`
}

// NewModelIOSpec takes the first input and first output of sig.
// Further tensors are ignored; unset platform and data types fall back to the defaults.
func NewModelIOSpec(sig Signature) (ModelIOSpec, error) {
	if len(sig.Inputs) == 0 {
		return ModelIOSpec{}, errors.New("signature has no inputs")
	}
	if len(sig.Outputs) == 0 {
		return ModelIOSpec{}, errors.New("signature has no outputs")
	}
	in, out := sig.Inputs[0], sig.Outputs[0]
	spec := ModelIOSpec{
		Platform:       sig.Platform,
		InputName:      in.Name,
		OutputName:     out.Name,
		InputDataType:  in.DataType,
		OutputDataType: out.DataType,
		InputDims:      in.Shape,
		OutputDims:     out.Shape,
	}
	if spec.Platform == "" {
		spec.Platform = DefaultPlatform
	}
	if spec.InputDataType == "" {
		spec.InputDataType = DefaultDataType
	}
	if spec.OutputDataType == "" {
		spec.OutputDataType = DefaultDataType
	}
	return spec, nil
}

// LoadSignature reads a YAML or JSON signature document.
func LoadSignature(path string) (Signature, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Signature{}, fmt.Errorf("read signature:%s %w", path, err)
	}
	sig := Signature{}
	if err := yaml.Unmarshal(content, &sig); err != nil {
		return Signature{}, fmt.Errorf("parse signature:%s %w", path, err)
	}
	return sig, nil
}
