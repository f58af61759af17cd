package validator

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
)

// DefaultMaxPixels is the largest image Decode accepts by default, about
// 9459x9459 pixels.
const DefaultMaxPixels = 89_478_485

var ErrImageTooLarge = errors.New("image dimensions exceed pixel limit")

// Decode reads an image from r. The header is inspected before any pixel
// data is decoded so that a small, highly compressed file declaring huge
// dimensions is refused without allocating the full frame.
func (t Thresholds) Decode(r io.Reader) (image.Image, string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("cannot read image: %w", err)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("cannot read image header: %w", err)
	}

	if pixels := int64(cfg.Width) * int64(cfg.Height); t.MaxPixels > 0 && pixels > t.MaxPixels {
		return nil, format, fmt.Errorf("%w: %dx%d is over %d pixels",
			ErrImageTooLarge, cfg.Width, cfg.Height, t.MaxPixels)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, format, fmt.Errorf("cannot decode %s image: %w", format, err)
	}
	return img, format, nil
}
