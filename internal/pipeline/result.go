package pipeline

import (
	"net/http"

	"github.com/local/fileconv/internal/apperr"
)

// Artifact describes one file in outgoing storage.
type Artifact struct {
	Filename      string `json:"filename"`
	URL           string `json:"url"`
	FileSize      string `json:"file_size"`
	OriginalSize  string `json:"original_size,omitempty"`
	ProcessedSize string `json:"processed_size,omitempty"`
	QualityMode   string `json:"quality_mode,omitempty"`
	JPEGQuality   int    `json:"jpeg_quality,omitempty"`
	PageNumber    int    `json:"page_number,omitempty"`
	Width         int    `json:"width,omitempty"`
	Height        int    `json:"height,omitempty"`
}

// Result is the response body of one processing request.
type Result struct {
	Success          bool       `json:"success"`
	Operation        string     `json:"operation"`
	OriginalFilename string     `json:"original_filename"`
	ProcessedFiles   []Artifact `json:"processed_files"`
	Archive          *Artifact  `json:"archive,omitempty"`
	Error            string     `json:"error,omitempty"`
	ErrorKind        string     `json:"error_kind,omitempty"`

	kind apperr.Kind
}

// URLFor is the public path of an artifact.
func URLFor(filename string) string { return "/processed/" + filename }

// Success builds a successful result. archive is only set for page
// extraction.
func Success(op, originalName string, files []Artifact, archive *Artifact) *Result {
	if files == nil {
		files = []Artifact{}
	}
	return &Result{
		Success:          true,
		Operation:        op,
		OriginalFilename: originalName,
		ProcessedFiles:   files,
		Archive:          archive,
	}
}

// Failure builds a failed result from err. It never carries artifacts.
func Failure(op, originalName string, err error) *Result {
	kind := apperr.KindOf(err)
	msg := err.Error()
	if kind == apperr.KindUnexpected {
		msg = apperr.Unexpected(nil).Message
	}
	return &Result{
		Operation:        op,
		OriginalFilename: originalName,
		ProcessedFiles:   []Artifact{},
		Error:            msg,
		ErrorKind:        kind.String(),
		kind:             kind,
	}
}

// Status is the HTTP status code for the result.
func (r *Result) Status() int {
	if r.Success {
		return http.StatusOK
	}
	return r.kind.HTTPStatus()
}

// Kind is the failure kind; meaningless on success.
func (r *Result) Kind() apperr.Kind { return r.kind }
