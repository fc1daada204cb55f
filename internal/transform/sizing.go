package transform

import (
	"math"

	"github.com/local/fileconv/internal/apperr"
)

// QualityMode selects the output encoding of a resize.
type QualityMode string

const (
	// Lossless encodes PNG and keeps transparency.
	Lossless QualityMode = "lossless"
	// Lossy encodes JPEG on a white background.
	Lossy QualityMode = "lossy"
)

const (
	MinJPEGQuality = 1
	MaxJPEGQuality = 95
	MaxPercentage  = 1000
)

// ResizeOptions are the caller-supplied resize parameters. Nil pointers mean
// the parameter was not given.
type ResizeOptions struct {
	Width       *int
	Height      *int
	Percentage  *float64
	Mode        QualityMode
	JPEGQuality int
}

// Validate checks the parameters in the order the sizing rules apply. It
// runs before anything is decoded.
func (o ResizeOptions) Validate() error {
	switch {
	case o.Percentage != nil:
		if p := *o.Percentage; !(p > 0 && p <= MaxPercentage) || math.IsNaN(p) {
			return apperr.Parameter("Percentage must be greater than 0 and at most %d", MaxPercentage)
		}
	case o.Width != nil && o.Height != nil:
		if *o.Width <= 0 || *o.Height <= 0 {
			return apperr.Parameter("Width and Height must be positive integers")
		}
	case o.Width != nil:
		if *o.Width <= 0 {
			return apperr.Parameter("Width must be a positive integer")
		}
	case o.Height != nil:
		if *o.Height <= 0 {
			return apperr.Parameter("Height must be a positive integer")
		}
	}
	switch o.Mode {
	case Lossless, Lossy:
	default:
		return apperr.Parameter("quality_mode must be %q or %q", Lossless, Lossy)
	}
	return nil
}

// ClampJPEGQuality bounds q to [MinJPEGQuality, MaxJPEGQuality].
func ClampJPEGQuality(q int) int {
	if q < MinJPEGQuality {
		return MinJPEGQuality
	}
	if q > MaxJPEGQuality {
		return MaxJPEGQuality
	}
	return q
}

// ResolveSize applies the sizing rules to an image of w x h. The first
// matching rule wins: percentage, explicit width and height, width only,
// height only, then the default maximum width (downscale only). With no
// rule matching the size is unchanged. opts must have passed Validate.
func ResolveSize(w, h int, opts ResizeOptions, defaultMaxWidth int) (int, int) {
	switch {
	case opts.Percentage != nil:
		f := *opts.Percentage / 100
		return atLeastOne(float64(w) * f), atLeastOne(float64(h) * f)
	case opts.Width != nil && opts.Height != nil:
		return *opts.Width, *opts.Height
	case opts.Width != nil:
		return *opts.Width, atLeastOne(float64(h) * float64(*opts.Width) / float64(w))
	case opts.Height != nil:
		return atLeastOne(float64(w) * float64(*opts.Height) / float64(h)), *opts.Height
	case defaultMaxWidth > 0 && w > defaultMaxWidth:
		return defaultMaxWidth, atLeastOne(float64(h) * float64(defaultMaxWidth) / float64(w))
	}
	return w, h
}

func atLeastOne(v float64) int {
	n := int(math.Round(v))
	if n < 1 {
		return 1
	}
	return n
}
