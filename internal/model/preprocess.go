package model

import (
	"fmt"
	"image"
	"image/color"

	"github.com/nfnt/resize"
)

// preprocessImage scales img to size x size with nearest-neighbour sampling
// and lays out RGB values in [0, 1] as the model expects. Alpha is dropped
// without premultiplying, so translucent pixels keep their colour.
func preprocessImage(img image.Image, size int, layout string) ([]float32, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid target size %d", size)
	}

	resized := resize.Resize(uint(size), uint(size), img, resize.NearestNeighbor)

	bounds := resized.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	plane := width * height

	const channels = 3
	inputData := make([]float32, channels*plane)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.NRGBAModel.Convert(resized.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)

			rNorm := float32(c.R) / 255.0
			gNorm := float32(c.G) / 255.0
			bNorm := float32(c.B) / 255.0

			pixelIndex := y*width + x
			switch layout {
			case LayoutNHWC:
				inputData[pixelIndex*channels] = rNorm
				inputData[pixelIndex*channels+1] = gNorm
				inputData[pixelIndex*channels+2] = bNorm
			case LayoutNCHW:
				inputData[pixelIndex] = rNorm
				inputData[plane+pixelIndex] = gNorm
				inputData[2*plane+pixelIndex] = bNorm
			default:
				return nil, fmt.Errorf("%w: %q", ErrUnsupportedLayout, layout)
			}
		}
	}

	return inputData, nil
}
