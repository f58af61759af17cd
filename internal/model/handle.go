package model

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Brownie44l1/pneumo-api/internal/lib/logger/sl"
)

// Options locate the model and, when it is missing, where to fetch it from.
type Options struct {
	ModelPath    string
	MetadataPath string
	ModelURL     string
	LibraryPath  string
}

// Handle owns the classifier for the lifetime of the application. It is
// built once at startup and may hold no classifier if loading failed; the
// server still runs and reports the failure through its health endpoint.
type Handle struct {
	classifier Classifier
	loadErr    error

	Metadata  Metadata
	ModelPath string
}

// NewHandle wraps an already constructed classifier.
func NewHandle(c Classifier, metadata Metadata, modelPath string) *Handle {
	return &Handle{classifier: c, Metadata: metadata, ModelPath: modelPath}
}

// FailedHandle records why no classifier is available.
func FailedHandle(err error, metadata Metadata, modelPath string) *Handle {
	return &Handle{loadErr: err, Metadata: metadata, ModelPath: modelPath}
}

// Open downloads the model if needed and loads it into ONNX Runtime.
// Failures are logged and captured in the returned handle.
func Open(ctx context.Context, opts Options, log *slog.Logger) *Handle {
	const op = "model.Open"
	log = log.With(slog.String("op", op))

	metadata, err := LoadMetadata(opts.MetadataPath)
	if err != nil {
		log.Error("failed to load model metadata", sl.Err(err))
		return FailedHandle(err, DefaultMetadata(), opts.ModelPath)
	}

	if err := NewDownloader(log).EnsureModel(ctx, opts.ModelPath, opts.ModelURL); err != nil {
		log.Error("model unavailable", sl.Err(err))
		return FailedHandle(err, metadata, opts.ModelPath)
	}

	log.Info("loading model", slog.String("path", opts.ModelPath))

	c, err := NewONNXClassifier(opts.ModelPath, opts.LibraryPath, metadata)
	if err != nil {
		log.Error("failed to load model", sl.Err(err))
		return FailedHandle(err, metadata, opts.ModelPath)
	}

	log.Info("model loaded", slog.Any("classes", metadata.Classes))
	return NewHandle(c, metadata, opts.ModelPath)
}

// Classifier returns the loaded classifier or an error wrapping ErrModelNotLoaded.
func (h *Handle) Classifier() (Classifier, error) {
	if h == nil || h.classifier == nil {
		if h != nil && h.loadErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrModelNotLoaded, h.loadErr)
		}
		return nil, ErrModelNotLoaded
	}
	return h.classifier, nil
}

func (h *Handle) Loaded() bool {
	return h != nil && h.classifier != nil
}

func (h *Handle) Close() error {
	if !h.Loaded() {
		return nil
	}
	return h.classifier.Close()
}
