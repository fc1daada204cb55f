package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/fileconv/internal/apperr"
	"github.com/local/fileconv/internal/config"
	"github.com/local/fileconv/internal/filetype"
	"github.com/local/fileconv/internal/metrics"
	"github.com/local/fileconv/internal/retention"
	"github.com/local/fileconv/internal/storage"
	"github.com/local/fileconv/internal/transform"
)

// Request is one upload plus its operation and parameters.
type Request struct {
	Operation string
	Filename  string
	Body      io.Reader
	Params    Params
}

// Gate bounds how many transforms run at once.
type Gate interface {
	Acquire(ctx context.Context) (func(), error)
}

// Service runs the processing pipeline against a storage area.
type Service struct {
	area     *storage.Area
	engine   *transform.Engine
	sweeper  *retention.Sweeper
	detector *filetype.Detector
	gate     Gate
	cfg      config.TransformConfig
}

type Option func(*Service)

// WithGate limits concurrent transforms.
func WithGate(g Gate) Option { return func(s *Service) { s.gate = g } }

// WithSweeper replaces the sweeper run before each request.
func WithSweeper(sw *retention.Sweeper) Option { return func(s *Service) { s.sweeper = sw } }

// NewService wires a pipeline over area.
func NewService(area *storage.Area, cfg config.TransformConfig, opts ...Option) *Service {
	s := &Service{
		area:     area,
		engine:   transform.New(cfg, area.Outgoing, area.Incoming),
		sweeper:  retention.New(area.Dirs(), config.FileLifetime),
		detector: filetype.New(),
		cfg:      cfg,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Sweeper exposes the retention sweeper bound to this area.
func (s *Service) Sweeper() *retention.Sweeper { return s.sweeper }

// Process runs one request end to end. It always returns a result; on
// failure the result carries the error and no artifacts, and nothing this
// request wrote is left behind.
func (s *Service) Process(ctx context.Context, req Request) *Result {
	start := time.Now()
	st := s.sweeper.Sweep(ctx)
	if st.Removed > 0 || st.Failed > 0 {
		log.Debug().Int("removed", st.Removed).Int("failed", st.Failed).Msg("pre-request sweep")
	}

	res, err := s.process(ctx, req)
	if err != nil {
		res = Failure(req.Operation, req.Filename, err)
		ev := log.Warn()
		if !apperr.IsValidation(err) {
			ev = log.Error()
		}
		ev.Err(err).
			Str("operation", req.Operation).
			Str("file", req.Filename).
			Str("kind", res.ErrorKind).
			Dur("duration", time.Since(start)).
			Msg("processing failed")
		metrics.ObserveRequest(req.Operation, res.ErrorKind)
		return res
	}

	log.Info().
		Str("operation", req.Operation).
		Str("file", req.Filename).
		Int("artifacts", len(res.ProcessedFiles)).
		Dur("duration", time.Since(start)).
		Msg("processing complete")
	metrics.ObserveRequest(req.Operation, "success")
	return res
}

func (s *Service) process(ctx context.Context, req Request) (*Result, error) {
	category, ok := CategoryFor(req.Operation)
	if !ok {
		return nil, apperr.Request("Invalid operation type")
	}
	if req.Body == nil || strings.TrimSpace(req.Filename) == "" {
		return nil, apperr.Request("No file selected")
	}
	if !filetype.IsAllowed(req.Filename, category) {
		return nil, apperr.Format("Invalid file type. Allowed types: %s", strings.Join(filetype.Extensions(category), ", "))
	}
	ext, _ := filetype.Extension(req.Filename)

	var resize transform.ResizeOptions
	if req.Operation == OpResizeImage {
		var err error
		if resize, err = req.Params.ResizeOptions(s.cfg.DefaultJPEGQuality); err != nil {
			return nil, err
		}
	}

	up, err := s.area.Acquire(req.Body, req.Filename, ext)
	if err != nil {
		return nil, apperr.IO(err, "failed to store upload")
	}
	defer up.Release()

	info, err := s.detector.Sniff(up.Path, category)
	if err != nil {
		return nil, apperr.IO(err, "failed to inspect upload")
	}
	if !info.Supported {
		return nil, apperr.Format("File content (%s) does not match an allowed %s type", info.MIMEType, category)
	}

	if s.gate != nil {
		release, err := s.gate.Acquire(ctx)
		if err != nil {
			return nil, apperr.IO(err, "request cancelled while waiting to process")
		}
		defer release()
	}

	var res *Result
	began := time.Now()
	err = safely(func() error {
		var terr error
		switch req.Operation {
		case OpResizeImage:
			res, terr = s.resize(ctx, up, resize)
		case OpPDFToImage:
			res, terr = s.pdfToImage(ctx, up)
		case OpImageToPDF:
			res, terr = s.imageToPDF(ctx, up)
		}
		return terr
	})
	metrics.ObserveTransform(req.Operation, time.Since(began))
	if err != nil {
		s.discard(up.ID)
		return nil, err
	}
	n := len(res.ProcessedFiles)
	if res.Archive != nil {
		n++
	}
	metrics.AddArtifacts(req.Operation, n)
	return res, nil
}

func (s *Service) resize(ctx context.Context, up *storage.Upload, opts transform.ResizeOptions) (*Result, error) {
	out, err := s.engine.Resize(ctx, up.Path, up.ID, opts)
	if err != nil {
		return nil, err
	}
	a, err := describe(out.File)
	if err != nil {
		return nil, err
	}
	a.OriginalSize = fmt.Sprintf("%dx%d", out.OriginalWidth, out.OriginalHeight)
	a.ProcessedSize = fmt.Sprintf("%dx%d", out.Width, out.Height)
	a.QualityMode = string(out.Mode)
	if out.Mode == transform.Lossy {
		a.JPEGQuality = out.JPEGQuality
	}
	return Success(OpResizeImage, up.OriginalName, []Artifact{a}, nil), nil
}

func (s *Service) pdfToImage(ctx context.Context, up *storage.Upload) (*Result, error) {
	pages, err := s.engine.RenderPages(ctx, up.Path, up.ID)
	if err != nil {
		return nil, err
	}
	zipName := ArchiveName(up.ID)
	zipPath := s.area.OutgoingPath(zipName)
	if err := writeArchive(zipPath, pages); err != nil {
		transform.Rollback(pages)
		return nil, apperr.IO(err, "failed to create archive")
	}

	artifacts := make([]Artifact, 0, len(pages))
	for _, p := range pages {
		a, err := describe(p)
		if err != nil {
			return nil, err
		}
		a.PageNumber = p.Page
		artifacts = append(artifacts, a)
	}
	archive, err := describe(transform.File{Name: zipName, Path: zipPath})
	if err != nil {
		return nil, err
	}
	return Success(OpPDFToImage, up.OriginalName, artifacts, &archive), nil
}

func (s *Service) imageToPDF(ctx context.Context, up *storage.Upload) (*Result, error) {
	out, err := s.engine.ToPDF(ctx, up.Path, up.ID)
	if err != nil {
		return nil, err
	}
	a, err := describe(*out)
	if err != nil {
		return nil, err
	}
	return Success(OpImageToPDF, up.OriginalName, []Artifact{a}, nil), nil
}

// describe builds the common artifact fields for a written file.
func describe(f transform.File) (Artifact, error) {
	size, err := storage.FileSize(f.Path)
	if err != nil {
		return Artifact{}, apperr.IO(err, "failed to stat %s", f.Name)
	}
	return Artifact{
		Filename: f.Name,
		URL:      URLFor(f.Name),
		FileSize: size,
		Width:    f.Width,
		Height:   f.Height,
	}, nil
}

// discard removes every outgoing file generated for id. Used when a
// transform fails after writing, including by panic.
func (s *Service) discard(id string) {
	matches, err := filepath.Glob(s.area.OutgoingPath(id + "_*"))
	if err != nil {
		log.Warn().Err(err).Str("id", id).Msg("failed to list partial artifacts")
		return
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("file", m).Msg("failed to remove partial artifact")
		}
	}
}

// safely runs fn, turning a panic from a codec library into an unexpected
// error.
func safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("transform panicked")
			err = apperr.Unexpected(fmt.Errorf("panic: %v", r))
		}
	}()
	return fn()
}
