package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"

	"cadence/internal/auth"
	"cadence/internal/config"
	"cadence/internal/engine"
	"cadence/internal/http/handler"
	mw "cadence/internal/http/middleware"
	"cadence/internal/recovery"
	"cadence/internal/schedule"
)

type Deps struct {
	DB        *gorm.DB
	JWT       *auth.JWT
	Engine    *engine.Engine
	Scanner   *recovery.Scanner
	Allocator *schedule.Allocator
	Detector  *schedule.Detector
}

func NewRouter(cfg config.Config, d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(mw.CORS(cfg.CORSAllowedOrigins, cfg.CORSAllowCredentials))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	ah := &handler.AuthHandler{DB: d.DB, JWT: d.JWT}
	r.Post("/auth/register", ah.Register)
	r.Post("/auth/login", ah.Login)

	ch := &handler.CronHandler{Engine: d.Engine, Scanner: d.Scanner}
	r.Route("/cron", func(r chi.Router) {
		r.Use(auth.RequireCronSecret(cfg.CronSecret))

		r.Post("/tick", ch.Tick)
		r.Post("/recovery", ch.Recover)
	})

	adm := &handler.AdminHandler{Allocator: d.Allocator, Detector: d.Detector, Engine: d.Engine}
	r.Route("/admin", func(r chi.Router) {
		r.Use(auth.RequireOperator(d.JWT))

		r.Post("/tenants/{id}/slot", adm.AssignSlot)
		r.Post("/tenants/{id}/run", adm.RunTenant)
		r.Get("/conflicts", adm.Conflicts)
		r.Post("/conflicts/resolve", adm.ResolveConflicts)
		r.Post("/run", adm.RunAll)
	})

	return r
}
