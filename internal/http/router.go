package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"

	"pastel/internal/analytics"
	"pastel/internal/auth"
	"pastel/internal/cache"
	"pastel/internal/capsule"
	"pastel/internal/config"
	"pastel/internal/http/handler"
	mw "pastel/internal/http/middleware"
	"pastel/internal/ratelimit"
	"pastel/internal/storage"
)

type Deps struct {
	Limiter     *ratelimit.Limiter
	Engine      handler.DeliveryRunner
	Reflections handler.ReflectionRunner
	Cache       *cache.Cache
	Uploads     *storage.S3Store
}

func NewRouter(cfg config.Config, db *gorm.DB, jwtSvc *auth.JWT, deps Deps) http.Handler {
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

	users := &auth.Users{DB: db}
	capsSvc := &capsule.Service{DB: db}
	analyticsSvc := &analytics.Service{DB: db}

	ah := &handler.AuthHandler{DB: db, JWT: jwtSvc}
	me := &handler.MeHandler{Users: users}
	caps := &handler.CapsuleHandler{Svc: capsSvc, Users: users, Cache: deps.Cache}
	dash := &handler.DashboardHandler{Svc: capsSvc, Users: users, Cache: deps.Cache}
	anl := &handler.AnalyticsHandler{Svc: analyticsSvc, Users: users}
	up := &handler.UploadHandler{Store: deps.Uploads, Users: users}
	admin := &handler.AdminHandler{DB: db, Users: users, Runner: deps.Engine}
	cron := &handler.CronHandler{Secret: cfg.CronSecret, Runner: deps.Engine, Reflections: deps.Reflections}

	limit := func(endpoint string) func(http.Handler) http.Handler {
		return ratelimit.Middleware(deps.Limiter, users, ratelimit.Options{Endpoint: endpoint})
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", ah.Register)
		r.Post("/auth/login", ah.Login)

		// Scheduled triggers authenticate with the shared cron secret,
		// not a user token.
		r.Get("/cron/deliver-capsules", cron.Liveness)
		r.Post("/cron/deliver-capsules", cron.DeliverCapsules)
		r.Post("/cron/ai-reflections", cron.AIReflections)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(jwtSvc))

			r.Get("/me", me.Me)

			r.With(limit("/api/compose")).Post("/compose", caps.Compose)
			r.With(limit("/api/upload")).Post("/upload", up.Upload)

			r.Route("/capsules", func(r chi.Router) {
				r.Use(ratelimit.Middleware(deps.Limiter, users, ratelimit.Options{}))
				r.Get("/upcoming", caps.Upcoming)
				r.Get("/delivered", caps.Delivered)
				r.Get("/{id}", caps.Get)
				r.Delete("/{id}", caps.Delete)
			})

			r.Route("/analytics", func(r chi.Router) {
				r.Use(limit("/api/analytics"))
				r.Get("/stats", anl.Stats)
				r.Get("/heatmap", anl.Heatmap)
			})

			r.Get("/dashboard/stats", dash.Stats)

			r.Post("/admin/trigger-delivery", admin.TriggerDelivery)
			r.Get("/admin/delivery-stats", admin.DeliveryStats)
		})
	})

	return r
}
