package recovery

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"cadence/internal/job"
)

func TestDecideRetryBounds(t *testing.T) {
	t.Parallel()

	cfg := Config{}

	stuck := job.Job{Status: job.StatusGenerating, RetryCount: 2}
	assert.Equal(t, ActionRetry, Decide(stuck, 0, cfg))

	exhausted := job.Job{Status: job.StatusGenerating, RetryCount: 3}
	assert.Equal(t, ActionFail, Decide(exhausted, 0, cfg))
}

func TestDecideReviewWhenArtifactsExist(t *testing.T) {
	t.Parallel()

	cfg := Config{}

	withArtifacts := job.Job{Status: job.StatusGenerating, Content: "rendered text", RetryCount: 0}
	assert.Equal(t, ActionReview, Decide(withArtifacts, 1, cfg))

	// Text alone is not enough; the minimum asset count gates review.
	assert.Equal(t, ActionRetry, Decide(withArtifacts, 0, cfg))
}

func TestDecideCustomThresholds(t *testing.T) {
	t.Parallel()

	cfg := Config{MaxRetries: 1, MinAssets: 2}

	j := job.Job{Content: "text", RetryCount: 1}
	assert.Equal(t, ActionFail, Decide(j, 1, cfg))
	assert.Equal(t, ActionReview, Decide(j, 2, cfg))
}
