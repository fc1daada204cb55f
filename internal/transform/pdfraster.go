package transform

import (
	"context"
	"fmt"
	"image"
	"math"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"

	"github.com/local/fileconv/internal/apperr"
)

// document is the part of a go-fitz document the renderer uses.
type document interface {
	NumPage() int
	Bound(pageNumber int) (image.Rectangle, error)
	ImageDPI(pageNumber int, dpi float64) (*image.RGBA, error)
	Close() error
}

// openDocument is replaced in tests.
var openDocument = func(path string) (document, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// PageCount returns the number of pages pdfcpu finds in the PDF at path.
// Structural damage surfaces here before any rendering starts.
func PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, apperr.Codec(err, "failed to read PDF")
	}
	if n == 0 {
		return 0, apperr.Codec(nil, "PDF has no pages")
	}
	return n, nil
}

// PageName is the artifact name of page n (1-based) for id.
func PageName(id string, n int) string { return fmt.Sprintf("%s_page_%d.png", id, n) }

// RenderPages writes every page of the PDF at inPath as <id>_page_<n>.png,
// in document order. Either all pages are written or none are: on failure
// anything already written is removed.
//
// The pdfcpu page count is used when pdfcpu can read the file. Documents
// pdfcpu rejects but MuPDF opens are rendered using MuPDF's count.
func (e *Engine) RenderPages(ctx context.Context, inPath, id string) (pages []File, err error) {
	doc, err := openDocument(inPath)
	if err != nil {
		return nil, apperr.Codec(err, "failed to open PDF")
	}
	defer doc.Close()

	total, cerr := PageCount(inPath)
	switch n := doc.NumPage(); {
	case cerr != nil && n <= 0:
		return nil, cerr
	case cerr != nil:
		log.Warn().Err(cerr).Int("pages", n).Msg("pdfcpu could not read document, using renderer page count")
		total = n
	case n < total:
		return nil, apperr.Codec(nil, "PDF renderer sees %d of %d pages", n, total)
	}

	defer func() {
		if err != nil {
			Rollback(pages)
			pages = nil
		}
	}()

	start := time.Now()
	pages = make([]File, 0, total)
	for i := 0; i < total; i++ {
		if cerr := ctx.Err(); cerr != nil {
			return pages, apperr.IO(cerr, "request cancelled")
		}
		if e.pageTooLarge(doc, i) {
			return pages, apperr.Codec(nil, "page %d is too large to render at %d dpi", i+1, e.cfg.RenderDPI)
		}
		// go-fitz uses 0-based indexing
		img, rerr := doc.ImageDPI(i, float64(e.cfg.RenderDPI))
		if rerr != nil {
			return pages, apperr.Codec(rerr, "failed to render page %d", i+1)
		}
		f := File{Name: PageName(id, i+1), Page: i + 1}
		f.Path = e.outPath(f.Name)
		b := img.Bounds()
		f.Width, f.Height = b.Dx(), b.Dy()
		if serr := imaging.Save(img, f.Path); serr != nil {
			pages = append(pages, f)
			return pages, apperr.Codec(serr, "failed to encode page %d", i+1)
		}
		pages = append(pages, f)
		log.Debug().
			Int("page", f.Page).
			Int("width", f.Width).
			Int("height", f.Height).
			Int("dpi", e.cfg.RenderDPI).
			Msg("rendered page to PNG")
	}

	log.Info().Int("pages", total).Dur("duration", time.Since(start)).Msg("pdf rendered")
	return pages, nil
}

// pageTooLarge reports whether page i would render over MaxPixels. Bound is
// in points at 72 dpi.
func (e *Engine) pageTooLarge(doc document, i int) bool {
	r, err := doc.Bound(i)
	if err != nil {
		return false
	}
	scale := float64(e.cfg.RenderDPI) / 72
	return exceedsPixels(int(math.Ceil(float64(r.Dx())*scale)), int(math.Ceil(float64(r.Dy())*scale)), e.cfg.MaxPixels)
}
