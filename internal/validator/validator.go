// Package validator screens uploads with cheap image statistics before they
// reach the classifier. It decides whether a picture is plausibly a chest
// X-ray: grey, with a radiograph-like histogram and without the dense edges
// of printed text.
package validator

import (
	"image"
	"io"
	"log/slog"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/Brownie44l1/pneumo-api/internal/lib/logger/sl"
)

// Check names used as keys of Result.Checks.
const (
	CheckGrayscale        = "is_grayscale"
	CheckMedicalHistogram = "has_medical_histogram"
	CheckTextContent      = "has_text_content"
)

// Score contributions. They sum to 100.
const (
	WeightGrayscale = 40
	WeightHistogram = 40
	WeightNoText    = 20
)

const (
	MsgTextContent  = "This image appears to contain text or document content. Please upload a chest X-ray image for analysis."
	MsgNotGrayscale = "This image doesn't appear to be a medical X-ray. X-rays are typically grayscale images. Please upload a chest X-ray image."
	MsgNotXray      = "This image doesn't match the characteristics of a chest X-ray. Please ensure you're uploading a valid chest X-ray image."
	MsgModerate     = "Image validation passed, but confidence is moderate. Please ensure this is a clear chest X-ray image."
	MsgValid        = "Image appears to be a valid chest X-ray."
	MsgFailed       = "Failed to validate image format"
)

// Result is the verdict for one image.
type Result struct {
	IsLikelyXray bool            `json:"is_likely_xray"`
	Confidence   int             `json:"confidence"`
	Checks       map[string]bool `json:"checks"`
	Message      string          `json:"message"`
}

// Failed is the fail-closed verdict for images that could not be analysed.
func Failed() Result {
	return Result{
		IsLikelyXray: false,
		Confidence:   0,
		Checks:       map[string]bool{},
		Message:      MsgFailed,
	}
}

// Validate runs the checks on img with the default thresholds.
func Validate(img image.Image) Result {
	return DefaultThresholds().Validate(img)
}

// ValidateReader decodes an image from r and validates it with the default
// thresholds. Undecodable or oversized input yields Failed().
func ValidateReader(r io.Reader) Result {
	return DefaultThresholds().ValidateReader(r)
}

func (t Thresholds) ValidateReader(r io.Reader) Result {
	img, format, err := t.Decode(r)
	if err != nil {
		slog.Warn("cannot decode image for validation", sl.Err(err))
		return Failed()
	}
	slog.Debug("decoded image for validation", slog.String("format", format))
	return t.Validate(img)
}

// Validate never fails: a check that errors counts as not passed, and an
// image that cannot be analysed at all gets Failed().
func (t Thresholds) Validate(img image.Image) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("image validation panicked", slog.Any("panic", p))
			res = Failed()
		}
	}()

	if _, err := bounds(img); err != nil {
		slog.Warn("cannot validate image", sl.Err(err))
		return Failed()
	}

	isGrayscale := passed(CheckGrayscale)(IsGrayscaleLike(img, t.Grayscale))
	hasMedicalHist := passed(CheckMedicalHistogram)(t.hasMedicalHistogram(img))
	hasText := passed(CheckTextContent)(t.hasTextContent(img))

	confidence := Score(isGrayscale, hasMedicalHist, hasText)
	isLikelyXray := confidence >= t.MinConfidence

	res = Result{
		IsLikelyXray: isLikelyXray,
		Confidence:   confidence,
		Checks: map[string]bool{
			CheckGrayscale:        isGrayscale,
			CheckMedicalHistogram: hasMedicalHist,
			CheckTextContent:      hasText,
		},
		Message: Message(isLikelyXray, confidence, isGrayscale, hasText),
	}

	slog.Info("validation result",
		slog.Bool("is_likely_xray", res.IsLikelyXray),
		slog.Int("confidence", res.Confidence),
		slog.Bool(CheckGrayscale, isGrayscale),
		slog.Bool(CheckMedicalHistogram, hasMedicalHist),
		slog.Bool(CheckTextContent, hasText),
	)
	return res
}

// passed collapses a check outcome to a bool, logging and rejecting on error.
func passed(name string) func(bool, error) bool {
	return func(ok bool, err error) bool {
		if err != nil {
			slog.Error("validation check failed", slog.String("check", name), sl.Err(err))
			return false
		}
		return ok
	}
}

// Score combines the check outcomes into a confidence in {0, 20, ..., 100}.
func Score(isGrayscale, hasMedicalHist, hasText bool) int {
	score := 0
	if isGrayscale {
		score += WeightGrayscale
	}
	if hasMedicalHist {
		score += WeightHistogram
	}
	if !hasText {
		score += WeightNoText
	}
	return score
}

// Message picks the user-facing explanation for a verdict.
func Message(isXray bool, confidence int, isGrayscale, hasText bool) string {
	switch {
	case !isXray && hasText:
		return MsgTextContent
	case !isXray && !isGrayscale:
		return MsgNotGrayscale
	case !isXray:
		return MsgNotXray
	case confidence < 80:
		return MsgModerate
	default:
		return MsgValid
	}
}
