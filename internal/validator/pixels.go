package validator

import (
	"errors"
	"image"
	"image/color"
)

// ErrEmptyImage is returned by the individual checks for nil or zero-sized images.
var ErrEmptyImage = errors.New("image has no pixels")

func bounds(img image.Image) (image.Rectangle, error) {
	if img == nil {
		return image.Rectangle{}, ErrEmptyImage
	}
	b := img.Bounds()
	if b.Empty() {
		return b, ErrEmptyImage
	}
	return b, nil
}

// singleChannel reports whether img is stored as one intensity plane.
func singleChannel(img image.Image) bool {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return true
	}
	return false
}

// rgbPlanes flattens img row by row into three 8-bit channel arrays.
// Alpha is dropped, matching an RGB conversion of an RGBA upload.
func rgbPlanes(img image.Image) (r, g, b []uint8, err error) {
	rect, err := bounds(img)
	if err != nil {
		return nil, nil, nil, err
	}

	n := rect.Dx() * rect.Dy()
	r, g, b = make([]uint8, n), make([]uint8, n), make([]uint8, n)

	i := 0
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			r[i], g[i], b[i] = c.R, c.G, c.B
			i++
		}
	}
	return r, g, b, nil
}

// luminance converts img to a row-major 8-bit intensity plane using the
// ITU-R 601 weights (L = 0.299 R + 0.587 G + 0.114 B).
func luminance(img image.Image) (pix []uint8, width, height int, err error) {
	rect, err := bounds(img)
	if err != nil {
		return nil, 0, 0, err
	}
	width, height = rect.Dx(), rect.Dy()

	if gray, ok := img.(*image.Gray); ok {
		pix = make([]uint8, 0, width*height)
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			off := gray.PixOffset(rect.Min.X, y)
			pix = append(pix, gray.Pix[off:off+width]...)
		}
		return pix, width, height, nil
	}

	pix = make([]uint8, width*height)
	i := 0
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			l := (19595*uint32(c.R) + 38470*uint32(c.G) + 7471*uint32(c.B) + 1<<15) >> 16
			pix[i] = uint8(l)
			i++
		}
	}
	return pix, width, height, nil
}
