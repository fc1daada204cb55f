package transform

import (
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	"os"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/local/fileconv/internal/apperr"
)

// decodeImage opens path and applies any EXIF orientation tag so the pixels
// are upright before sizing. The header is checked against MaxPixels first so
// an oversized source is never allocated.
func (e *Engine) decodeImage(path string) (image.Image, error) {
	if err := checkDimensions(path, e.cfg.MaxPixels); err != nil {
		return nil, err
	}
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, apperr.Codec(err, "failed to decode image")
	}
	return img, nil
}

func checkDimensions(path string, maxPixels int64) error {
	f, err := os.Open(path)
	if err != nil {
		return apperr.IO(err, "failed to open image")
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return apperr.Codec(err, "failed to decode image")
	}
	if exceedsPixels(cfg.Width, cfg.Height, maxPixels) {
		return apperr.Codec(nil, "image is %dx%d, over the %d pixel limit", cfg.Width, cfg.Height, maxPixels)
	}
	return nil
}

// exceedsPixels reports whether w x h is over max. Float math keeps huge
// requested sizes from overflowing.
func exceedsPixels(w, h int, max int64) bool {
	return max > 0 && float64(w)*float64(h) > float64(max)
}

// hasTransparency reports whether any pixel of img is not fully opaque.
// Paletted images answer from the palette entries actually used.
func hasTransparency(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0xffff {
				return true
			}
		}
	}
	return false
}

// flattenOnWhite composites img over an opaque white canvas of the same
// bounds. The result has no meaningful alpha.
func flattenOnWhite(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}

// toOpaqueRGB returns img as opaque RGB. Transparent inputs are flattened
// onto white; everything else (gray, CMYK, YCbCr, paletted) is converted.
func toOpaqueRGB(img image.Image) *image.RGBA {
	if hasTransparency(img) {
		return flattenOnWhite(img)
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
