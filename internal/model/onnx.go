package model

import (
	"context"
	"fmt"
	"image"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXClassifier runs an exported CNN through ONNX Runtime. Input and output
// tensors are allocated once and shared, so Infer calls are serialised.
type ONNXClassifier struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	Metadata     Metadata
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

// NewONNXClassifier initialises the runtime (loading the shared library from
// libraryPath when set) and opens modelPath.
func NewONNXClassifier(modelPath, libraryPath string, metadata Metadata) (*ONNXClassifier, error) {
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	inputShape := ort.NewShape(metadata.InputShape...)
	outputShape := ort.NewShape(metadata.OutputShape...)

	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{metadata.InputName}, []string{metadata.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXClassifier{
		session:      session,
		Metadata:     metadata,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// Infer returns the positive-class probability: the single output of a
// sigmoid head, or the second output of a two-way softmax head.
func (c *ONNXClassifier) Infer(ctx context.Context, img image.Image) (float32, error) {
	inputData, err := preprocessImage(img, c.Metadata.ImageSize, c.Metadata.Layout)
	if err != nil {
		return 0, fmt.Errorf("failed to preprocess image: %w", err)
	}
	if len(inputData) != c.Metadata.InputSize() {
		return 0, fmt.Errorf("expected %d input values, got %d", c.Metadata.InputSize(), len(inputData))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	copy(c.inputTensor.GetData(), inputData)

	if err := c.session.Run(); err != nil {
		return 0, fmt.Errorf("inference failed: %w", err)
	}

	outputData := c.outputTensor.GetData()
	switch {
	case len(outputData) == 0:
		return 0, fmt.Errorf("inference failed: empty output")
	case len(outputData) == 1:
		return outputData[0], nil
	default:
		return outputData[1], nil
	}
}

func (c *ONNXClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inputTensor != nil {
		c.inputTensor.Destroy()
		c.inputTensor = nil
	}
	if c.outputTensor != nil {
		c.outputTensor.Destroy()
		c.outputTensor = nil
	}
	if c.session != nil {
		c.session.Destroy()
		c.session = nil
	}
	return ort.DestroyEnvironment()
}
