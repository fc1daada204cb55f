package transform

import (
	"context"
	"errors"
	"os"

	"github.com/disintegration/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/rs/zerolog/log"

	"github.com/local/fileconv/internal/apperr"
)

// ToPDF writes the image at inPath as a single-page <id>_converted.pdf. The
// image is made opaque RGB first; transparent areas become white.
func (e *Engine) ToPDF(ctx context.Context, inPath, id string) (*File, error) {
	img, err := e.decodeImage(inPath)
	if err != nil {
		return nil, err
	}
	rgb := toOpaqueRGB(img)
	if err := ctx.Err(); err != nil {
		return nil, apperr.IO(err, "request cancelled")
	}

	scratch, err := os.CreateTemp(e.scratchDir, id+"_flat_*.png")
	if err != nil {
		return nil, apperr.IO(err, "failed to create intermediate image")
	}
	scratchPath := scratch.Name()
	scratch.Close()
	defer func() {
		if err := os.Remove(scratchPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("file", scratchPath).Msg("failed to remove intermediate image")
		}
	}()
	if err := imaging.Save(rgb, scratchPath); err != nil {
		return nil, apperr.Codec(err, "failed to encode intermediate image")
	}

	out := &File{Name: id + "_converted.pdf", Page: 1}
	out.Path = e.outPath(out.Name)
	out.Width, out.Height = rgb.Bounds().Dx(), rgb.Bounds().Dy()

	imp := pdfcpu.DefaultImportConfig()
	imp.Pos = types.Full
	imp.DPI = e.cfg.PDFDPI
	if err := api.ImportImagesFile([]string{scratchPath}, out.Path, imp, nil); err != nil {
		Rollback([]File{*out})
		return nil, apperr.Codec(err, "failed to write PDF")
	}

	log.Debug().Str("file", out.Name).Int("width", out.Width).Int("height", out.Height).Int("dpi", imp.DPI).Msg("image converted to PDF")
	return out, nil
}
