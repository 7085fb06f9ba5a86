package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cadence/internal/audit"
	"cadence/internal/auth"
	"cadence/internal/config"
	"cadence/internal/cron"
	"cadence/internal/db"
	"cadence/internal/engine"
	httpx "cadence/internal/http"
	"cadence/internal/job"
	"cadence/internal/logx"
	"cadence/internal/pipeline"
	"cadence/internal/recovery"
	"cadence/internal/schedule"
)

func main() {
	cfg, _ := config.Load()
	log := logx.New(cfg.LogLevel, cfg.LogPretty)

	gdb, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect failed")
	}
	if err := db.AutoMigrateAndIndexes(gdb); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	fallback, err := time.LoadLocation(cfg.DefaultTimezone)
	if err != nil {
		log.Warn().Str("zone", cfg.DefaultTimezone).Msg("bad default timezone, using UTC")
		fallback = time.UTC
	}
	evaluator := schedule.Evaluator{Fallback: fallback}

	invoker := &pipeline.HTTPInvoker{
		Endpoint: cfg.PipelineURL,
		Secret:   cfg.PipelineSecret,
		Budget:   cfg.PipelineBudget,
	}

	factory := &job.Factory{DB: gdb, Zones: evaluator, Log: log.With().Str("comp", "factory").Logger()}
	repo := &job.Repo{DB: gdb}
	recorder := &audit.Recorder{DB: gdb, Log: log.With().Str("comp", "audit").Logger()}

	eng := engine.New(gdb, evaluator, factory, repo, invoker, recorder,
		cfg.TenantPace, log.With().Str("comp", "engine").Logger())

	scanner := &recovery.Scanner{
		DB:      gdb,
		Repo:    repo,
		Invoker: invoker,
		Log:     log.With().Str("comp", "recovery").Logger(),
	}

	allocator := &schedule.Allocator{
		DB:      gdb,
		Planner: schedule.Planner{DayCapacity: cfg.DayCapacity},
		Log:     log.With().Str("comp", "allocator").Logger(),
	}
	detector := &schedule.Detector{DB: gdb, Allocator: allocator, Log: log.With().Str("comp", "conflicts").Logger()}

	jwtSvc := auth.NewJWT(cfg.JWTSecret)
	r := httpx.NewRouter(cfg, httpx.Deps{
		DB:        gdb,
		JWT:       jwtSvc,
		Engine:    eng,
		Scanner:   scanner,
		Allocator: allocator,
		Detector:  detector,
	})

	var runner *cron.Runner
	if cfg.CronEnabled {
		runner, err = cron.New(eng, scanner, cfg.TickSpec, cfg.RecoverySpec,
			log.With().Str("comp", "cron").Logger())
		if err != nil {
			log.Fatal().Err(err).Msg("cron setup failed")
		}
		runner.Start()
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	if runner != nil {
		runner.Stop()
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}
