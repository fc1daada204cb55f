package retention

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/fileconv/internal/metrics"
)

// removeFile is replaced in tests.
var removeFile = os.Remove

// Stats summarises one sweep.
type Stats struct {
	Scanned int
	Removed int
	Failed  int
}

// Sweeper removes files older than MaxAge from a fixed set of flat
// directories. Directory listing plus mtime is the only state it consults.
type Sweeper struct {
	dirs   []string
	maxAge time.Duration
	now    func() time.Time
}

// New creates a sweeper for dirs.
func New(dirs []string, maxAge time.Duration) *Sweeper {
	return &Sweeper{dirs: dirs, maxAge: maxAge, now: time.Now}
}

// WithClock replaces the time source, for tests.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Sweep deletes every regular file whose age exceeds the max age. Per-file
// failures are logged and counted, never returned; a failed delete does not
// stop the pass.
func (s *Sweeper) Sweep(ctx context.Context) Stats {
	var st Stats
	now := s.now()
	for _, dir := range s.dirs {
		if ctx.Err() != nil {
			break
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			log.Warn().Err(err).Str("dir", dir).Msg("retention: cannot list directory")
			st.Failed++
			continue
		}
		for _, e := range entries {
			if !e.Type().IsRegular() {
				continue
			}
			st.Scanned++
			path := filepath.Join(dir, e.Name())
			info, err := e.Info()
			if err != nil {
				if !errors.Is(err, fs.ErrNotExist) {
					log.Warn().Err(err).Str("file", path).Msg("retention: stat failed")
					st.Failed++
				}
				continue
			}
			if now.Sub(info.ModTime()) <= s.maxAge {
				continue
			}
			if err := removeFile(path); err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					// removed concurrently; the goal is met
					continue
				}
				log.Warn().Err(err).Str("file", path).Msg("retention: remove failed")
				st.Failed++
				continue
			}
			st.Removed++
			log.Info().Str("file", path).Dur("age", now.Sub(info.ModTime())).Msg("cleaned up old file")
		}
	}
	metrics.ObserveSweep(st.Removed, st.Failed)
	return st
}

// Run sweeps every interval until ctx is done. A non-positive interval
// disables the loop.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := s.Sweep(ctx)
			log.Debug().Int("scanned", st.Scanned).Int("removed", st.Removed).Int("failed", st.Failed).Msg("periodic sweep")
		}
	}
}
