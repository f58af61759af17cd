package validator

import (
	"image"
	"log/slog"
	"math"
)

// Thresholds holds the tunable limits of the three checks and of the
// aggregate verdict. The zero value is not useful; start from DefaultThresholds.
type Thresholds struct {
	// Grayscale is the minimum mean cross-channel correlation.
	Grayscale float64

	MinSpreadRatio float64
	MinPeak        int // exclusive
	MaxPeak        int // exclusive
	MinStdDev      float64
	MaxStdDev      float64

	// EdgeDelta is the intensity step that counts as an edge.
	EdgeDelta      int
	MaxEdgeDensity float64

	// MinConfidence is the aggregate score at which an image is accepted.
	MinConfidence int

	// MaxPixels caps width*height of images accepted by Decode. Zero or
	// less disables the cap.
	MaxPixels int64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Grayscale:      0.95,
		MinSpreadRatio: 0.3,
		MinPeak:        30,
		MaxPeak:        220,
		MinStdDev:      20,
		MaxStdDev:      100,
		EdgeDelta:      30,
		MaxEdgeDensity: 0.15,
		MinConfidence:  60,
		MaxPixels:      DefaultMaxPixels,
	}
}

// ChannelCorrelation returns the mean pairwise Pearson correlation of the
// R, G and B planes. Two identical planes correlate at exactly 1. A pair in
// which a plane is constant but the planes differ correlates at 0.
func ChannelCorrelation(img image.Image) (float64, error) {
	r, g, b, err := rgbPlanes(img)
	if err != nil {
		return 0, err
	}
	return (pearson(r, g) + pearson(r, b) + pearson(g, b)) / 3, nil
}

func pearson(x, y []uint8) float64 {
	identical := true
	var sx, sy float64
	for i := range x {
		if x[i] != y[i] {
			identical = false
		}
		sx += float64(x[i])
		sy += float64(y[i])
	}
	if identical {
		return 1
	}

	n := float64(len(x))
	mx, my := sx/n, sy/n

	var cov, vx, vy float64
	for i := range x {
		dx := float64(x[i]) - mx
		dy := float64(y[i]) - my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return 0
	}

	c := cov / math.Sqrt(vx*vy)
	return math.Max(-1, math.Min(1, c))
}

// IsGrayscaleLike reports whether the colour channels of img track each other
// closely enough (mean correlation >= threshold) to be a grey image stored as RGB.
// Single-channel images pass without measurement.
func IsGrayscaleLike(img image.Image, threshold float64) (bool, error) {
	if _, err := bounds(img); err != nil {
		return false, err
	}
	if singleChannel(img) {
		return true, nil
	}

	corr, err := ChannelCorrelation(img)
	if err != nil {
		return false, err
	}
	slog.Debug("grayscale correlation", slog.Float64("correlation", corr))

	return corr >= threshold, nil
}

// HistogramStats summarises the 256-bin luminance histogram of an image.
type HistogramStats struct {
	SpreadRatio   float64 // non-empty bins / 256
	PeakIntensity int     // first most populated bin
	StdDev        float64 // population standard deviation of intensities
}

func MeasureHistogram(img image.Image) (HistogramStats, error) {
	pix, _, _, err := luminance(img)
	if err != nil {
		return HistogramStats{}, err
	}

	var hist [256]int
	var sum float64
	for _, p := range pix {
		hist[p]++
		sum += float64(p)
	}

	var stats HistogramStats
	nonZero := 0
	for i, count := range hist {
		if count > 0 {
			nonZero++
		}
		if count > hist[stats.PeakIntensity] {
			stats.PeakIntensity = i
		}
	}
	stats.SpreadRatio = float64(nonZero) / 256

	mean := sum / float64(len(pix))
	var sq float64
	for _, p := range pix {
		d := float64(p) - mean
		sq += d * d
	}
	stats.StdDev = math.Sqrt(sq / float64(len(pix)))

	return stats, nil
}

// Medical reports whether s looks like a radiograph under t: a broad spread,
// a mid-range peak and moderate contrast.
func (t Thresholds) Medical(s HistogramStats) bool {
	return s.SpreadRatio > t.MinSpreadRatio &&
		s.PeakIntensity > t.MinPeak && s.PeakIntensity < t.MaxPeak &&
		s.StdDev > t.MinStdDev && s.StdDev < t.MaxStdDev
}

// HasMedicalHistogram applies the default histogram limits to img.
func HasMedicalHistogram(img image.Image) (bool, error) {
	return DefaultThresholds().hasMedicalHistogram(img)
}

func (t Thresholds) hasMedicalHistogram(img image.Image) (bool, error) {
	stats, err := MeasureHistogram(img)
	if err != nil {
		return false, err
	}
	slog.Debug("histogram",
		slog.Float64("spread", stats.SpreadRatio),
		slog.Int("peak", stats.PeakIntensity),
		slog.Float64("std_dev", stats.StdDev),
	)
	return t.Medical(stats), nil
}

// MeasureEdgeDensity returns the mean, over the vertical and horizontal
// directions, of the fraction of neighbouring pixel pairs whose intensities
// differ by more than delta. A direction with no pairs (a one pixel wide or
// tall image) is left out; an image with no pairs at all has density 0.
func MeasureEdgeDensity(img image.Image, delta int) (float64, error) {
	pix, w, h, err := luminance(img)
	if err != nil {
		return 0, err
	}

	var densities []float64

	if h > 1 {
		edges := 0
		for y := 1; y < h; y++ {
			for x := 0; x < w; x++ {
				if absDiff(pix[y*w+x], pix[(y-1)*w+x]) > delta {
					edges++
				}
			}
		}
		densities = append(densities, float64(edges)/float64((h-1)*w))
	}

	if w > 1 {
		edges := 0
		for y := 0; y < h; y++ {
			row := pix[y*w : (y+1)*w]
			for x := 1; x < w; x++ {
				if absDiff(row[x], row[x-1]) > delta {
					edges++
				}
			}
		}
		densities = append(densities, float64(edges)/float64(h*(w-1)))
	}

	if len(densities) == 0 {
		return 0, nil
	}
	var total float64
	for _, d := range densities {
		total += d
	}
	return total / float64(len(densities)), nil
}

func absDiff(a, b uint8) int {
	d := int(a) - int(b)
	if d < 0 {
		return -d
	}
	return d
}

// HasTextContent reports whether img has the dense sharp edges of printed
// text, using the default limits.
func HasTextContent(img image.Image) (bool, error) {
	return DefaultThresholds().hasTextContent(img)
}

func (t Thresholds) hasTextContent(img image.Image) (bool, error) {
	density, err := MeasureEdgeDensity(img, t.EdgeDelta)
	if err != nil {
		return false, err
	}
	slog.Debug("edge density", slog.Float64("density", density))
	return density > t.MaxEdgeDensity, nil
}
