package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

const (
	LabelNormal    = "Normal"
	LabelPneumonia = "Pneumonia"
)

// Tensor layouts understood by the preprocessor.
const (
	LayoutNHWC = "NHWC"
	LayoutNCHW = "NCHW"
)

// Metadata describes the exported model. It is read from a JSON file
// shipped next to the .onnx file.
type Metadata struct {
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"image_size"`
	InputName   string   `json:"input_name"`
	OutputName  string   `json:"output_name"`
	Layout      string   `json:"layout"`
	Accuracy    string   `json:"accuracy"`
}

// DefaultMetadata matches the 150x150 RGB binary CNN the service was trained with.
func DefaultMetadata() Metadata {
	return Metadata{
		InputShape:  []int64{1, 150, 150, 3},
		OutputShape: []int64{1, 1},
		Classes:     []string{LabelNormal, LabelPneumonia},
		ImageSize:   150,
		InputName:   "input",
		OutputName:  "output",
		Layout:      LayoutNHWC,
		Accuracy:    "89.67%",
	}
}

// LoadMetadata reads path and fills unset fields from DefaultMetadata.
// A missing file is not an error.
func LoadMetadata(path string) (Metadata, error) {
	metadata := DefaultMetadata()
	if path == "" {
		return metadata, nil
	}

	metaFile, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return metadata, nil
	}
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to read metadata: %w", err)
	}

	var parsed Metadata
	if err := json.Unmarshal(metaFile, &parsed); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse metadata: %w", err)
	}

	if len(parsed.InputShape) > 0 {
		metadata.InputShape = parsed.InputShape
	}
	if len(parsed.OutputShape) > 0 {
		metadata.OutputShape = parsed.OutputShape
	}
	if len(parsed.Classes) > 0 {
		metadata.Classes = parsed.Classes
	}
	if parsed.ImageSize > 0 {
		metadata.ImageSize = parsed.ImageSize
	}
	if parsed.InputName != "" {
		metadata.InputName = parsed.InputName
	}
	if parsed.OutputName != "" {
		metadata.OutputName = parsed.OutputName
	}
	if parsed.Layout != "" {
		metadata.Layout = parsed.Layout
	}
	if parsed.Accuracy != "" {
		metadata.Accuracy = parsed.Accuracy
	}

	if metadata.Layout != LayoutNHWC && metadata.Layout != LayoutNCHW {
		return Metadata{}, fmt.Errorf("%w: %q", ErrUnsupportedLayout, metadata.Layout)
	}
	return metadata, nil
}

// InputSize is the number of float32 values the model consumes per call.
func (m Metadata) InputSize() int {
	size := 1
	for _, dim := range m.InputShape {
		size *= int(dim)
	}
	return size
}

// Prediction is the labelled classifier output returned to clients.
type Prediction struct {
	Prediction string  `json:"prediction"`
	Confidence float64 `json:"confidence"`
	RawScore   float64 `json:"raw_score"`
}
