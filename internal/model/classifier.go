package model

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
)

var (
	ErrModelNotLoaded    = errors.New("model not loaded")
	ErrUnsupportedLayout = errors.New("unsupported tensor layout")
)

// Classifier scores an image. Higher scores mean pneumonia is more likely.
type Classifier interface {
	Infer(ctx context.Context, img image.Image) (float32, error)
	Close() error
}

// Predict runs c on img and labels the score: Pneumonia when it exceeds
// threshold, Normal otherwise. Confidence is reported for the chosen label,
// so it is never below 0.5 for threshold 0.5.
func Predict(ctx context.Context, c Classifier, img image.Image, threshold float64) (*Prediction, error) {
	score, err := c.Infer(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("prediction failed: %w", err)
	}

	raw := float64(score)
	if math.IsNaN(raw) {
		return nil, errors.New("prediction failed: model returned NaN")
	}

	label := LabelNormal
	display := 1 - raw
	if raw > threshold {
		label = LabelPneumonia
		display = raw
	}

	return &Prediction{
		Prediction: label,
		Confidence: round4(display),
		RawScore:   round4(raw),
	}, nil
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
