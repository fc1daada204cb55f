package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	units "github.com/docker/go-units"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/fileconv/internal/config"
)

// ErrNotFound is returned when a requested artifact is not (or no longer) in
// outgoing storage.
var ErrNotFound = errors.New("artifact not found")

// Area holds the two flat directories the pipeline works in. Incoming holds
// uploads for the duration of one request; Outgoing holds artifacts until
// the retention sweeper removes them.
type Area struct {
	Incoming string
	Outgoing string
}

// New creates both directories if they don't exist.
func New(cfg config.StorageConfig) (*Area, error) {
	a := &Area{Incoming: cfg.IncomingDir, Outgoing: cfg.OutgoingDir}
	for _, dir := range a.Dirs() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir %s: %w", dir, err)
		}
	}
	return a, nil
}

// Dirs lists every directory subject to retention.
func (a *Area) Dirs() []string { return []string{a.Incoming, a.Outgoing} }

// NewID returns a collision-resistant identifier for generated filenames.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// OutgoingPath returns the absolute location of an artifact name.
func (a *Area) OutgoingPath(name string) string { return filepath.Join(a.Outgoing, name) }

// IncomingPath returns the location of a scratch file in incoming storage.
func (a *Area) IncomingPath(name string) string { return filepath.Join(a.Incoming, name) }

// Upload is an uploaded file held in incoming storage for one request.
type Upload struct {
	ID           string
	OriginalName string
	Ext          string
	Path         string
	Size         int64

	released bool
}

// Acquire copies r into incoming storage as <id>_original.<ext>. The caller
// must defer Release so the file is removed whatever the outcome.
func (a *Area) Acquire(r io.Reader, originalName, ext string) (*Upload, error) {
	id := NewID()
	name := id + "_original"
	if ext != "" {
		name += "." + ext
	}
	p := a.IncomingPath(name)
	f, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(p)
		return nil, fmt.Errorf("write upload file: %w", err)
	}
	log.Debug().Str("file", name).Int64("size", n).Msg("upload stored")
	return &Upload{ID: id, OriginalName: originalName, Ext: ext, Path: p, Size: n}, nil
}

// Release deletes the upload. It is safe to call more than once.
func (u *Upload) Release() {
	if u == nil || u.released {
		return
	}
	u.released = true
	if err := os.Remove(u.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("file", u.Path).Msg("failed to remove upload")
	}
}

// Open resolves an artifact name for serving. Names with path separators or
// dot segments are treated as absent, as are files removed by a sweep.
func (a *Area) Open(name string) (*os.File, os.FileInfo, error) {
	if !validName(name) {
		return nil, nil, ErrNotFound
	}
	f, err := os.Open(a.OutgoingPath(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	if !fi.Mode().IsRegular() {
		f.Close()
		return nil, nil, ErrNotFound
	}
	return f, fi, nil
}

func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && filepath.Base(name) == name
}

// HumanSize formats a byte count for display, e.g. "1.5MB".
func HumanSize(n int64) string {
	return units.HumanSize(float64(n))
}

// FileSize returns the human-readable size of the file at path.
func FileSize(path string) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	return HumanSize(fi.Size()), nil
}
