package controller

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/unclebandit/bulksms-campaigns/internal/handler"
	"github.com/unclebandit/bulksms-campaigns/internal/logger"
	"github.com/unclebandit/bulksms-campaigns/internal/middleware"
)

// NewRouter wires every HTTP route. Everything under /api requires a bearer token.
func NewRouter(cc *CampaignController, sh *handler.SystemHandler, jwtSecret []byte, l *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(logger.OrNop(l)))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc:  func(*http.Request, string) bool { return true },
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(chimw.Timeout(5 * time.Minute))

	r.Get("/", sh.Health)

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.Auth(jwtSecret))

		api.Route("/campaigns", func(r chi.Router) {
			r.Post("/", cc.CreateCampaign)
			r.Get("/", cc.ListCampaigns)
			r.Get("/analytics", cc.GetAnalytics)
			r.Get("/scheduled", cc.ListScheduledCampaigns)
			r.Get("/{id}", cc.GetCampaign)
			r.Put("/{id}", cc.UpdateCampaign)
			r.Delete("/{id}", cc.DeleteCampaign)
			r.Post("/{id}/send", cc.SendCampaign)
			r.Post("/{id}/cancel", cc.CancelCampaign)
		})

		api.Route("/scheduler", func(r chi.Router) {
			r.Get("/status", sh.SchedulerStatus)
			r.Post("/start", sh.StartScheduler)
			r.Post("/stop", sh.StopScheduler)
		})
	})

	return r
}
