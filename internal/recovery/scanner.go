// Package recovery finds jobs abandoned mid-flight and either retries them,
// parks them for review, or fails them terminally. It runs on its own
// cadence, decoupled from the trigger path.
package recovery

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"cadence/internal/job"
	"cadence/internal/pipeline"
)

// Report summarizes one sweep.
type Report struct {
	Scanned       int      `json:"scanned"`
	Reviewed      []uint64 `json:"reviewed,omitempty"`
	Retried       []uint64 `json:"retried,omitempty"`
	Failed        []uint64 `json:"failed,omitempty"`
	AssetsFailed  []uint64 `json:"assets_failed,omitempty"`
	EmbedsCleared []uint64 `json:"embeds_cleared,omitempty"`
}

// Scanner sweeps for stale GENERATING jobs and stuck sub-assets in bounded
// batches.
type Scanner struct {
	DB      *gorm.DB
	Repo    *job.Repo
	Invoker pipeline.Invoker
	Cfg     Config
	Log     zerolog.Logger
}

// Sweep processes at most one batch of stuck jobs and one batch of stuck
// assets. Whatever it cannot reach this pass is picked up by the next one.
func (s *Scanner) Sweep(ctx context.Context) (*Report, error) {
	cfg := s.Cfg.withDefaults()
	now := time.Now().UTC()
	rep := &Report{}

	var stuck []job.Job
	err := s.DB.WithContext(ctx).
		Where("status = ? AND updated_at < ?", job.StatusGenerating, now.Add(-cfg.JobStaleAfter)).
		Order("updated_at asc").
		Limit(cfg.BatchSize).
		Find(&stuck).Error
	if err != nil {
		return nil, err
	}
	rep.Scanned = len(stuck)

	for i := range stuck {
		j := stuck[i]

		var ready int64
		err := s.DB.WithContext(ctx).Model(&job.Asset{}).
			Where("job_id = ? AND status = ?", j.ID, job.AssetReady).
			Count(&ready).Error
		if err != nil {
			s.Log.Error().Err(err).Uint64("job", j.ID).Msg("asset count failed")
			continue
		}

		switch Decide(j, int(ready), cfg) {
		case ActionReview:
			err := s.Repo.MarkReview(ctx, j.ID,
				"recovered after stale generation with artifacts present; review before publishing")
			if err != nil {
				s.Log.Error().Err(err).Uint64("job", j.ID).Msg("review transition failed")
				continue
			}
			rep.Reviewed = append(rep.Reviewed, j.ID)

		case ActionRetry:
			err := s.Repo.MarkScheduledForRetry(ctx, j.ID, "generation run abandoned; retrying")
			if err != nil {
				s.Log.Error().Err(err).Uint64("job", j.ID).Msg("retry transition failed")
				continue
			}
			s.handOff(j.ID)
			rep.Retried = append(rep.Retried, j.ID)

		case ActionFail:
			err := s.Repo.MarkFailed(ctx, j.ID, "retry budget exhausted; manual intervention required")
			if err != nil {
				s.Log.Error().Err(err).Uint64("job", j.ID).Msg("fail transition failed")
				continue
			}
			rep.Failed = append(rep.Failed, j.ID)
		}
	}

	if err := s.sweepAssets(ctx, now, cfg, rep); err != nil {
		return rep, err
	}
	if err := s.clearOrphanedEmbeds(ctx, cfg, rep); err != nil {
		return rep, err
	}

	s.Log.Info().
		Int("scanned", rep.Scanned).
		Int("retried", len(rep.Retried)).
		Int("reviewed", len(rep.Reviewed)).
		Int("failed", len(rep.Failed)).
		Int("assets_failed", len(rep.AssetsFailed)).
		Int("embeds_cleared", len(rep.EmbedsCleared)).
		Msg("recovery sweep done")
	return rep, nil
}

// handOff submits the retry without tying the sweep to the pipeline's
// multi-minute run. A failed retry is marked on the job and the next sweep
// sees it again.
func (s *Scanner) handOff(jobID uint64) {
	go func() {
		if err := s.Invoker.Run(context.Background(), jobID); err != nil {
			s.Log.Error().Err(err).Uint64("job", jobID).Msg("retried pipeline run failed")
			_ = s.Repo.MarkFailed(context.Background(), jobID, err.Error())
		}
	}()
}

// sweepAssets fails long-running sub-assets independently of their parent
// job; audio renders get the longer staleness threshold.
func (s *Scanner) sweepAssets(ctx context.Context, now time.Time, cfg Config, rep *Report) error {
	var assets []job.Asset
	err := s.DB.WithContext(ctx).
		Where("status IN ? AND updated_at < ?",
			[]string{job.AssetPending, job.AssetProcessing},
			now.Add(-cfg.AssetStaleAfter)).
		Order("updated_at asc").
		Limit(cfg.BatchSize).
		Find(&assets).Error
	if err != nil {
		return err
	}

	for _, a := range assets {
		err := s.DB.WithContext(ctx).Model(&job.Asset{}).
			Where("id = ?", a.ID).
			Update("status", job.AssetFailed).Error
		if err != nil {
			s.Log.Error().Err(err).Uint64("asset", a.ID).Msg("asset fail transition failed")
			continue
		}
		rep.AssetsFailed = append(rep.AssetsFailed, a.ID)
	}
	return nil
}

// clearOrphanedEmbeds unsets the embedded flag on jobs whose audio asset has
// no public URL, so a later pass can retry the embed once the asset is fixed.
func (s *Scanner) clearOrphanedEmbeds(ctx context.Context, cfg Config, rep *Report) error {
	var orphaned []job.Job
	err := s.DB.WithContext(ctx).
		Where("audio_embedded = ?", true).
		Where(`NOT EXISTS (
			SELECT 1 FROM assets
			WHERE assets.job_id = jobs.id
			  AND assets.kind = 'audio'
			  AND assets.public_url IS NOT NULL
			  AND assets.public_url <> ''
		)`).
		Limit(cfg.BatchSize).
		Find(&orphaned).Error
	if err != nil {
		return err
	}

	for _, j := range orphaned {
		err := s.DB.WithContext(ctx).Model(&job.Job{}).
			Where("id = ?", j.ID).
			Update("audio_embedded", false).Error
		if err != nil {
			s.Log.Error().Err(err).Uint64("job", j.ID).Msg("embed clear failed")
			continue
		}
		rep.EmbedsCleared = append(rep.EmbedsCleared, j.ID)
	}
	return nil
}
