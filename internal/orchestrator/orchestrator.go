package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/local/fileconv/internal/apperr"
	"github.com/local/fileconv/internal/limiter"
	"github.com/local/fileconv/internal/logger"
	"github.com/local/fileconv/internal/metrics"
	"github.com/local/fileconv/internal/pipeline"
	"github.com/local/fileconv/internal/statuscheck"
	"github.com/local/fileconv/internal/storage"
)

// multipart parts beyond this are spooled to temp files by net/http
const maxFormMemory = 32 << 20

type Dependencies struct {
	Service        *pipeline.Service
	Area           *storage.Area
	Limiter        *limiter.Limiter
	Status         *statuscheck.Checker
	MaxUploadBytes int64
	RequestTimeout time.Duration
}

type Orchestrator struct {
	deps Dependencies
}

func New(deps Dependencies) *Orchestrator {
	return &Orchestrator{deps: deps}
}

// Routes builds the HTTP handler.
func (o *Orchestrator) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.Middleware)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK); _, _ = w.Write([]byte("ok")) })
	r.Get("/status", o.handleStatus)
	r.Handle("/metrics", metrics.Handler())
	r.Post("/process", o.handleProcess)
	r.Get("/processed/{filename}", o.handleProcessed)
	return r
}

func (o *Orchestrator) handleProcess(w http.ResponseWriter, r *http.Request) {
	if !o.deps.Limiter.Allow(r.Context(), clientIP(r)) {
		metrics.IncRateLimited()
		writeJSON(w, http.StatusTooManyRequests, pipeline.Failure("", "", apperr.RateLimited("Too many requests, try again in a minute")))
		return
	}

	if o.deps.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, o.deps.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(w, http.StatusBadRequest, pipeline.Failure("", "", apperr.Request("File too large (max %s)", storage.HumanSize(tooBig.Limit))))
			return
		}
		writeJSON(w, http.StatusBadRequest, pipeline.Failure("", "", apperr.Request("Invalid multipart form")))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	req := pipeline.Request{
		Operation: r.FormValue("operation_type"),
		Params: pipeline.Params{
			Width:       r.FormValue("width"),
			Height:      r.FormValue("height"),
			Percentage:  r.FormValue("percentage"),
			QualityMode: r.FormValue("quality_mode"),
			JPEGQuality: r.FormValue("jpeg_quality"),
		},
	}
	file, hdr, err := r.FormFile("file")
	if err == nil {
		defer file.Close()
		req.Body = file
		req.Filename = hdr.Filename
	} else if !errors.Is(err, http.ErrMissingFile) {
		log.Warn().Err(err).Msg("cannot read file part")
	}

	ctx := r.Context()
	if o.deps.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.deps.RequestTimeout)
		defer cancel()
	}
	res := o.deps.Service.Process(ctx, req)
	writeJSON(w, res.Status(), res)
}

func (o *Orchestrator) handleProcessed(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "filename"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	f, fi, err := o.deps.Area.Open(name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		log.Error().Err(err).Str("file", name).Msg("cannot open artifact")
		http.Error(w, "failed to read", http.StatusInternalServerError)
		return
	}
	defer f.Close()
	http.ServeContent(w, r, fi.Name(), fi.ModTime(), f)
}

func (o *Orchestrator) handleStatus(w http.ResponseWriter, r *http.Request) {
	sum := o.deps.Status.Summary(r.Context())
	code := http.StatusOK
	if !sum.Ready() {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, sum)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// clientIP is the rate limit key. RealIP has already rewritten RemoteAddr
// when a proxy header was present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
