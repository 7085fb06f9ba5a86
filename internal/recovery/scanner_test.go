package recovery

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"cadence/internal/job"
)

type recordingInvoker struct {
	mu   sync.Mutex
	runs []uint64
	done chan uint64
}

func newRecordingInvoker() *recordingInvoker {
	return &recordingInvoker{done: make(chan uint64, 16)}
}

func (r *recordingInvoker) Run(_ context.Context, jobID uint64) error {
	r.mu.Lock()
	r.runs = append(r.runs, jobID)
	r.mu.Unlock()
	r.done <- jobID
	return nil
}

func (r *recordingInvoker) wait(t *testing.T) uint64 {
	t.Helper()
	select {
	case id := <-r.done:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline hand-off never happened")
		return 0
	}
}

func scannerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&job.Job{}, &job.Asset{}))
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

func newScanner(gdb *gorm.DB, inv *recordingInvoker) *Scanner {
	return &Scanner{
		DB:      gdb,
		Repo:    &job.Repo{DB: gdb},
		Invoker: inv,
		Log:     zerolog.Nop(),
	}
}

// seedStuck inserts a GENERATING job whose updated_at is already past the
// staleness threshold.
func seedStuck(t *testing.T, gdb *gorm.DB, id uint64, retries int, age time.Duration) {
	t.Helper()

	j := job.Job{
		ID:          id,
		TenantID:    1,
		TemplateID:  1,
		LocationID:  1,
		Content:     "rendered text",
		ScheduledOn: "2026-03-03",
		ScheduledAt: time.Now().UTC(),
		Status:      job.StatusGenerating,
		RetryCount:  retries,
	}
	require.NoError(t, gdb.Create(&j).Error)
	require.NoError(t, gdb.Model(&job.Job{}).Where("id = ?", id).
		UpdateColumn("updated_at", time.Now().UTC().Add(-age)).Error)
}

func TestSweepRetriesStaleJob(t *testing.T) {
	t.Parallel()

	gdb := scannerTestDB(t)
	seedStuck(t, gdb, 1, 2, 3*time.Hour)

	inv := newRecordingInvoker()
	s := newScanner(gdb, inv)

	rep, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, rep.Retried)
	assert.Equal(t, uint64(1), inv.wait(t))

	var j job.Job
	require.NoError(t, gdb.First(&j, 1).Error)
	assert.Equal(t, job.StatusScheduled, j.Status)
	assert.Equal(t, 3, j.RetryCount)
}

func TestSweepFailsExhaustedJob(t *testing.T) {
	t.Parallel()

	gdb := scannerTestDB(t)
	seedStuck(t, gdb, 1, 3, 3*time.Hour)

	inv := newRecordingInvoker()
	s := newScanner(gdb, inv)

	rep, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, rep.Failed)
	assert.Empty(t, rep.Retried)

	var j job.Job
	require.NoError(t, gdb.First(&j, 1).Error)
	assert.Equal(t, job.StatusFailed, j.Status)
	require.NotNil(t, j.LastError)
	assert.Contains(t, *j.LastError, "manual intervention")
}

func TestSweepReviewsJobWithArtifacts(t *testing.T) {
	t.Parallel()

	gdb := scannerTestDB(t)
	seedStuck(t, gdb, 1, 0, 3*time.Hour)
	require.NoError(t, gdb.Create(&job.Asset{ID: 1, JobID: 1, Kind: "image", Status: job.AssetReady}).Error)

	inv := newRecordingInvoker()
	s := newScanner(gdb, inv)

	rep, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, rep.Reviewed)

	var j job.Job
	require.NoError(t, gdb.First(&j, 1).Error)
	assert.Equal(t, job.StatusReview, j.Status)
	// No automatic retry for reviewable jobs.
	assert.Zero(t, j.RetryCount)
}

func TestSweepIgnoresFreshJobs(t *testing.T) {
	t.Parallel()

	gdb := scannerTestDB(t)
	seedStuck(t, gdb, 1, 0, 30*time.Minute)

	inv := newRecordingInvoker()
	s := newScanner(gdb, inv)

	rep, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, rep.Scanned)

	var j job.Job
	require.NoError(t, gdb.First(&j, 1).Error)
	assert.Equal(t, job.StatusGenerating, j.Status)
}

func TestSweepBoundsBatchSize(t *testing.T) {
	t.Parallel()

	gdb := scannerTestDB(t)
	for i := uint64(1); i <= 15; i++ {
		seedStuck(t, gdb, i, 3, 3*time.Hour)
	}

	inv := newRecordingInvoker()
	s := newScanner(gdb, inv)

	rep, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, rep.Scanned)
	assert.Len(t, rep.Failed, 10)
}

func TestSweepFailsStuckAssets(t *testing.T) {
	t.Parallel()

	gdb := scannerTestDB(t)
	require.NoError(t, gdb.Create(&job.Asset{ID: 1, JobID: 1, Kind: "audio", Status: job.AssetProcessing}).Error)
	require.NoError(t, gdb.Model(&job.Asset{}).Where("id = ?", 1).
		UpdateColumn("updated_at", time.Now().UTC().Add(-5*time.Hour)).Error)

	inv := newRecordingInvoker()
	s := newScanner(gdb, inv)

	rep, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, rep.AssetsFailed)

	var a job.Asset
	require.NoError(t, gdb.First(&a, 1).Error)
	assert.Equal(t, job.AssetFailed, a.Status)
}

func TestSweepClearsOrphanedEmbeds(t *testing.T) {
	t.Parallel()

	gdb := scannerTestDB(t)

	url := "https://cdn.example.com/a.mp3"
	jobs := []job.Job{
		{ID: 1, TenantID: 1, TemplateID: 1, LocationID: 1, Content: "x", ScheduledOn: "2026-03-03", ScheduledAt: time.Now(), Status: job.StatusPublished, AudioEmbedded: true},
		{ID: 2, TenantID: 1, TemplateID: 1, LocationID: 1, Content: "x", ScheduledOn: "2026-03-04", ScheduledAt: time.Now(), Status: job.StatusPublished, AudioEmbedded: true},
	}
	require.NoError(t, gdb.Create(&jobs).Error)
	// Job 1's audio never got a public URL; job 2's did.
	require.NoError(t, gdb.Create(&job.Asset{ID: 1, JobID: 1, Kind: "audio", Status: job.AssetFailed}).Error)
	require.NoError(t, gdb.Create(&job.Asset{ID: 2, JobID: 2, Kind: "audio", Status: job.AssetReady, PublicURL: &url}).Error)

	inv := newRecordingInvoker()
	s := newScanner(gdb, inv)

	rep, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, rep.EmbedsCleared)

	var j1, j2 job.Job
	require.NoError(t, gdb.First(&j1, 1).Error)
	require.NoError(t, gdb.First(&j2, 2).Error)
	assert.False(t, j1.AudioEmbedded)
	assert.True(t, j2.AudioEmbedded)
}
