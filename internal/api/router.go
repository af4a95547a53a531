package api

import (
	"net/http"
	"time"

	"reservation_app/internal/api/handler"
	"reservation_app/internal/api/middleware"
	"reservation_app/internal/app/service"
	"reservation_app/internal/common"
	"reservation_app/internal/common/security"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

type Services struct {
	Auth    *service.AuthService
	Users   *service.UserService
	Slots   *service.SlotService
	Doctors *service.DoctorService
}

func NewRouter(svc Services, tokens *security.TokenService, limiter *middleware.RateLimiter) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	authn := middleware.Authenticator(tokens)
	var limit handler.Middleware
	if limiter != nil {
		limit = limiter.Limit
	}

	r.Get("/health", health)

	r.Route("/api/v1", func(v1 chi.Router) {
		v1.Get("/health", health)

		v1.Route("/auth", handler.NewAuthHandler(svc.Auth, authn, limit).RegisterRoutes)
		v1.Route("/users", handler.NewUserHandler(svc.Users, svc.Slots, authn).RegisterRoutes)
		v1.Route("/slots", handler.NewSlotHandler(svc.Slots, authn).RegisterRoutes)
		v1.Route("/doctors", handler.NewDoctorHandler(svc.Doctors).RegisterRoutes)
		v1.Route("/admin", handler.NewAdminHandler(svc.Users, svc.Slots, authn).RegisterRoutes)
	})

	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
