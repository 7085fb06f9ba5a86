// Package cron drives the engine and the recovery scanner on their own
// in-process cadences. Deployments with an external scheduler can disable
// this and call the /cron endpoints instead.
package cron

import (
	"context"
	"time"

	cronv3 "github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"cadence/internal/engine"
	"cadence/internal/recovery"
)

// tickBudget bounds one evaluation batch well under the next hourly tick.
const tickBudget = 50 * time.Minute

type Runner struct {
	c   *cronv3.Cron
	log zerolog.Logger
}

func New(eng *engine.Engine, scanner *recovery.Scanner, tickSpec, recoverySpec string, log zerolog.Logger) (*Runner, error) {
	c := cronv3.New()

	_, err := c.AddFunc(tickSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), tickBudget)
		defer cancel()
		if _, err := eng.RunDue(ctx, time.Now()); err != nil {
			log.Error().Err(err).Msg("scheduled tick failed")
		}
	})
	if err != nil {
		return nil, err
	}

	_, err = c.AddFunc(recoverySpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), tickBudget)
		defer cancel()
		if _, err := scanner.Sweep(ctx); err != nil {
			log.Error().Err(err).Msg("scheduled recovery sweep failed")
		}
	})
	if err != nil {
		return nil, err
	}

	return &Runner{c: c, log: log}, nil
}

func (r *Runner) Start() {
	r.log.Info().Msg("in-process cron started")
	r.c.Start()
}

// Stop waits for in-flight entries before returning.
func (r *Runner) Stop() {
	<-r.c.Stop().Done()
}
