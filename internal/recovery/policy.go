package recovery

import (
	"strings"
	"time"

	"cadence/internal/job"
)

// Action is the scanner's verdict for one stuck job.
type Action int

const (
	// ActionReview parks the job for a human: its artifacts already exist,
	// so an automatic retry would waste a pipeline run.
	ActionReview Action = iota
	// ActionRetry resets the job to SCHEDULED and hands it back to the
	// pipeline.
	ActionRetry
	// ActionFail is terminal; the retry budget is exhausted.
	ActionFail
)

// Config tunes the sweep. Zero values take the defaults below.
type Config struct {
	JobStaleAfter   time.Duration
	AssetStaleAfter time.Duration
	BatchSize       int
	MaxRetries      int
	MinAssets       int
}

const (
	defaultJobStaleAfter   = 2 * time.Hour
	defaultAssetStaleAfter = 4 * time.Hour
	defaultBatchSize       = 10
	defaultMaxRetries      = 3
	defaultMinAssets       = 1
)

func (c Config) withDefaults() Config {
	if c.JobStaleAfter <= 0 {
		c.JobStaleAfter = defaultJobStaleAfter
	}
	if c.AssetStaleAfter <= 0 {
		c.AssetStaleAfter = defaultAssetStaleAfter
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.MinAssets <= 0 {
		c.MinAssets = defaultMinAssets
	}
	return c
}

// Decide applies the recovery policy to one stuck job given how many of its
// assets are ready.
func Decide(j job.Job, readyAssets int, cfg Config) Action {
	cfg = cfg.withDefaults()
	if strings.TrimSpace(j.Content) != "" && readyAssets >= cfg.MinAssets {
		return ActionReview
	}
	if j.RetryCount < cfg.MaxRetries {
		return ActionRetry
	}
	return ActionFail
}
