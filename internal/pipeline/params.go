package pipeline

import (
	"strconv"
	"strings"

	"github.com/local/fileconv/internal/apperr"
	"github.com/local/fileconv/internal/filetype"
	"github.com/local/fileconv/internal/transform"
)

// Operation names accepted in operation_type.
const (
	OpResizeImage = "resize_image"
	OpPDFToImage  = "pdf_to_image"
	OpImageToPDF  = "image_to_pdf"
)

// CategoryFor returns the upload category an operation accepts.
func CategoryFor(op string) (filetype.Category, bool) {
	switch op {
	case OpResizeImage, OpImageToPDF:
		return filetype.CategoryImage, true
	case OpPDFToImage:
		return filetype.CategoryPDF, true
	}
	return "", false
}

// Params are the raw form values of a resize request. Empty means absent.
type Params struct {
	Width       string
	Height      string
	Percentage  string
	QualityMode string
	JPEGQuality string
}

// ResizeOptions parses p. Values are parsed and range-checked here so a bad
// parameter never reaches the decoder.
func (p Params) ResizeOptions(defaultQuality int) (transform.ResizeOptions, error) {
	var opts transform.ResizeOptions
	var err error
	if opts.Width, err = optionalInt("Width", p.Width); err != nil {
		return opts, err
	}
	if opts.Height, err = optionalInt("Height", p.Height); err != nil {
		return opts, err
	}
	if s := strings.TrimSpace(p.Percentage); s != "" {
		v, perr := strconv.ParseFloat(s, 64)
		if perr != nil {
			return opts, apperr.Parameter("Percentage must be a number")
		}
		opts.Percentage = &v
	}

	opts.Mode = transform.Lossless
	if s := strings.ToLower(strings.TrimSpace(p.QualityMode)); s != "" {
		opts.Mode = transform.QualityMode(s)
	}

	opts.JPEGQuality = defaultQuality
	if s := strings.TrimSpace(p.JPEGQuality); s != "" {
		q, qerr := strconv.Atoi(s)
		if qerr != nil {
			return opts, apperr.Parameter("jpeg_quality must be an integer")
		}
		opts.JPEGQuality = q
	}
	opts.JPEGQuality = transform.ClampJPEGQuality(opts.JPEGQuality)

	return opts, opts.Validate()
}

func optionalInt(name, raw string) (*int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, apperr.Parameter("%s must be an integer", name)
	}
	return &v, nil
}
