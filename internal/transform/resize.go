package transform

import (
	"context"
	"fmt"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"

	"github.com/local/fileconv/internal/apperr"
)

// ResizeResult describes a finished resize.
type ResizeResult struct {
	File
	OriginalWidth  int
	OriginalHeight int
	Mode           QualityMode
	JPEGQuality    int
}

// Resize decodes the image at inPath, resolves the target size and writes
// <id>_resized.png (lossless) or <id>_resized.jpg (lossy).
func (e *Engine) Resize(ctx context.Context, inPath, id string, opts ResizeOptions) (*ResizeResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	img, err := e.decodeImage(inPath)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, apperr.IO(err, "request cancelled")
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	nw, nh := ResolveSize(w, h, opts, e.cfg.DefaultMaxWidth)
	if exceedsPixels(nw, nh, e.cfg.MaxPixels) {
		return nil, apperr.Parameter("Requested size %dx%d exceeds the limit of %d pixels", nw, nh, e.cfg.MaxPixels)
	}
	if nw != w || nh != h {
		img = imaging.Resize(img, nw, nh, imaging.Lanczos)
	}

	res := &ResizeResult{OriginalWidth: w, OriginalHeight: h, Mode: opts.Mode}
	res.Width, res.Height = nw, nh

	switch opts.Mode {
	case Lossy:
		res.JPEGQuality = ClampJPEGQuality(opts.JPEGQuality)
		res.Name = id + "_resized.jpg"
		res.Path = e.outPath(res.Name)
		err = imaging.Save(flattenOnWhite(img), res.Path, imaging.JPEGQuality(res.JPEGQuality))
	default:
		res.Name = id + "_resized.png"
		res.Path = e.outPath(res.Name)
		err = imaging.Save(img, res.Path)
	}
	if err != nil {
		Rollback([]File{res.File})
		return nil, apperr.Codec(err, "failed to encode %s output", res.Mode)
	}

	log.Debug().
		Str("file", res.Name).
		Str("from", fmt.Sprintf("%dx%d", w, h)).
		Str("to", fmt.Sprintf("%dx%d", nw, nh)).
		Str("mode", string(res.Mode)).
		Msg("image resized")
	return res, nil
}
