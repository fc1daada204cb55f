package retention

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	maxAge := 20 * time.Minute

	touch(t, filepath.Join(in, "old_original.png"), now.Add(-21*time.Minute))
	touch(t, filepath.Join(out, "old_resized.png"), now.Add(-time.Hour))
	touch(t, filepath.Join(out, "fresh_resized.png"), now.Add(-19*time.Minute))
	touch(t, filepath.Join(out, "edge_resized.png"), now.Add(-maxAge))
	require.NoError(t, os.Mkdir(filepath.Join(out, "nested"), 0o755))
	touch(t, filepath.Join(out, "nested", "deep.png"), now.Add(-time.Hour))

	st := New([]string{in, out}, maxAge).WithClock(func() time.Time { return now }).Sweep(context.Background())
	assert.Equal(t, Stats{Scanned: 4, Removed: 2, Failed: 0}, st)

	assert.NoFileExists(t, filepath.Join(in, "old_original.png"))
	assert.NoFileExists(t, filepath.Join(out, "old_resized.png"))
	assert.FileExists(t, filepath.Join(out, "fresh_resized.png"))
	assert.FileExists(t, filepath.Join(out, "edge_resized.png"), "age equal to the lifetime survives")
	assert.FileExists(t, filepath.Join(out, "nested", "deep.png"), "no recursion")
}

func TestSweepMissingDirIsCounted(t *testing.T) {
	out := t.TempDir()
	touch(t, filepath.Join(out, "a"), time.Now().Add(-time.Hour))

	st := New([]string{filepath.Join(out, "gone"), out}, time.Minute).Sweep(context.Background())
	assert.Equal(t, 1, st.Failed)
	assert.Equal(t, 1, st.Removed, "a bad directory does not stop the pass")
}

func TestSweepContinuesAfterRemoveFailure(t *testing.T) {
	dir := t.TempDir()
	old := time.Now().Add(-time.Hour)
	for _, name := range []string{"a_resized.png", "b_locked.png", "c_page_1.png"} {
		touch(t, filepath.Join(dir, name), old)
	}

	orig := removeFile
	removeFile = func(path string) error {
		if filepath.Base(path) == "b_locked.png" {
			return &os.PathError{Op: "remove", Path: path, Err: os.ErrPermission}
		}
		return orig(path)
	}
	t.Cleanup(func() { removeFile = orig })

	st := New([]string{dir}, time.Minute).Sweep(context.Background())
	assert.Equal(t, Stats{Scanned: 3, Removed: 2, Failed: 1}, st)
	assert.NoFileExists(t, filepath.Join(dir, "a_resized.png"))
	assert.FileExists(t, filepath.Join(dir, "b_locked.png"))
	assert.NoFileExists(t, filepath.Join(dir, "c_page_1.png"), "files after the failure are still swept")
}

func TestSweepIdempotent(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a"), time.Now().Add(-time.Hour))
	s := New([]string{dir}, time.Minute)
	assert.Equal(t, 1, s.Sweep(context.Background()).Removed)
	assert.Equal(t, Stats{}, s.Sweep(context.Background()))
}

func TestRunStopsWithContext(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a"), time.Now().Add(-time.Hour))
	s := New([]string{dir}, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, "a"))
		return os.IsNotExist(err)
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunDisabled(t *testing.T) {
	done := make(chan struct{})
	go func() {
		New(nil, time.Minute).Run(context.Background(), 0)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run with zero interval should return immediately")
	}
}
