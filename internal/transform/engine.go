package transform

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"

	"github.com/local/fileconv/internal/config"
)

func init() {
	// keep pdfcpu from creating a config directory under $HOME
	api.DisableConfigDir()
}

// File is one artifact written by the engine.
type File struct {
	Name   string
	Path   string
	Width  int
	Height int
	Page   int
}

// Engine runs the transforms. Outputs go to outDir; intermediates to
// scratchDir and never outlive the call.
type Engine struct {
	cfg        config.TransformConfig
	outDir     string
	scratchDir string
}

// New creates an engine writing artifacts into outDir.
func New(cfg config.TransformConfig, outDir, scratchDir string) *Engine {
	return &Engine{cfg: cfg, outDir: outDir, scratchDir: scratchDir}
}

func (e *Engine) outPath(name string) string { return filepath.Join(e.outDir, name) }

// Rollback deletes every file in files. Files already gone are not an error.
func Rollback(files []File) {
	for _, f := range files {
		if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("file", f.Path).Msg("rollback: failed to remove partial artifact")
		}
	}
}
