package filetype

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// Category is a class of accepted uploads.
type Category string

const (
	CategoryImage Category = "image"
	CategoryPDF   Category = "pdf"
)

var allowedExtensions = map[Category]map[string]struct{}{
	CategoryImage: {"png": {}, "jpg": {}, "jpeg": {}, "gif": {}, "webp": {}},
	CategoryPDF:   {"pdf": {}},
}

var allowedMIME = map[Category]map[string]struct{}{
	CategoryImage: {"image/png": {}, "image/jpeg": {}, "image/gif": {}, "image/webp": {}},
	CategoryPDF:   {"application/pdf": {}},
}

// Extensions lists the accepted extensions of c, for error messages.
func Extensions(c Category) []string {
	switch c {
	case CategoryImage:
		return []string{"png", "jpg", "jpeg", "gif", "webp"}
	case CategoryPDF:
		return []string{"pdf"}
	}
	return nil
}

// Extension returns the lower-cased text after the last '.' of filename and
// whether filename had one at all.
func Extension(filename string) (string, bool) {
	i := strings.LastIndexByte(filename, '.')
	if i < 0 {
		return "", false
	}
	return strings.ToLower(filename[i+1:]), true
}

// IsAllowed reports whether filename's extension belongs to category c.
// Names without an extension separator are rejected.
func IsAllowed(filename string, c Category) bool {
	ext, ok := Extension(filename)
	if !ok {
		return false
	}
	_, allowed := allowedExtensions[c][ext]
	return allowed
}

// Info describes the detected content of an upload.
type Info struct {
	MIMEType  string
	Extension string
	Supported bool
}

// Detector classifies stored uploads by their magic bytes.
type Detector struct{}

// New creates a new file type detector
func New() *Detector {
	return &Detector{}
}

// Sniff detects the content type of the file at path and checks it against
// category c. It reads only the header, never decodes.
func (d *Detector) Sniff(path string, c Category) (*Info, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to detect file type: %w", err)
	}
	info := &Info{MIMEType: mtype.String(), Extension: mtype.Extension()}
	for m := mtype; m != nil; m = m.Parent() {
		if _, ok := allowedMIME[c][m.String()]; ok {
			info.MIMEType = m.String()
			info.Supported = true
			break
		}
	}
	log.Debug().Str("mime", info.MIMEType).Str("ext", info.Extension).Bool("supported", info.Supported).Str("category", string(c)).Msg("detected file type")
	return info, nil
}
