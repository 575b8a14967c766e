package workspace

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() log.Logger {
	return log.NewLogger(log.DiscardHandler())
}

func TestAllocate_CreatesEmptyJobFolder(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "ci"), testLogger())

	job, err := w.Allocate("build_frontend")
	require.NoError(t, err)
	assert.Equal(t, "build_frontend", job.Name)
	assert.DirExists(t, job.Dir)

	entries, err := os.ReadDir(job.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAllocate_ClearsLeftoversFromAbortedRun(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "ci"), testLogger())

	job, err := w.Allocate("package")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(job.Dir, "stale.txt"), []byte("old"), 0o644))

	job, err = w.Allocate("package")
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(job.Dir, "stale.txt"))
}

func TestRecordStats_WritesElapsedTime(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "ci"), testLogger())

	job, err := w.Allocate("test")
	require.NoError(t, err)
	job.Start = time.Now().Add(-2 * time.Second)

	require.NoError(t, w.RecordStats(job))

	stats, err := w.Stats()
	require.NoError(t, err)
	require.Contains(t, stats, "test")
	assert.GreaterOrEqual(t, stats["test"].Elapsed, 2*time.Second)
	assert.WithinDuration(t, job.Start, stats["test"].StartTime, time.Second)
}

func TestJobs_SortedLexicographically(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "ci"), testLogger())

	for _, stage := range []string{"package", "build_frontend", "build_backend"} {
		_, err := w.Allocate(stage)
		require.NoError(t, err)
	}

	jobs, err := w.Jobs()
	require.NoError(t, err)
	assert.Equal(t, []string{"build_backend", "build_frontend", "package"}, jobs)
}

func TestJobs_NoJobsRootYet(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "ci"), testLogger())

	jobs, err := w.Jobs()
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestStats_SkipsJobsWithoutStatsFile(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "ci"), testLogger())

	job, err := w.Allocate("build_frontend")
	require.NoError(t, err)
	require.NoError(t, w.RecordStats(job))

	// A second job that crashed before recording.
	_, err = w.Allocate("build_backend")
	require.NoError(t, err)

	stats, err := w.Stats()
	require.NoError(t, err)
	assert.Len(t, stats, 1)
	assert.Contains(t, stats, "build_frontend")
}

func TestAllocate_UnwritableJobsRootIsFatal(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("running as root, permission bits are not enforced")
	}
	root := filepath.Join(t.TempDir(), "ci")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "jobs"), 0o555))
	w := New(root, testLogger())

	_, err := w.Allocate("build_frontend")
	require.Error(t, err)
}
