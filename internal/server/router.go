package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type IncomingCallHandler interface {
	HandleIncomingCall(w http.ResponseWriter, r *http.Request)
	// Authenticated reports a webhook carrying a valid provider signature.
	Authenticated(r *http.Request) bool
}

type StreamHandler interface {
	HandleStream(w http.ResponseWriter, r *http.Request)
}

type MenuHandler interface {
	HandleGetMenu(w http.ResponseWriter, r *http.Request)
}

func NewRouter(calls IncomingCallHandler, streams StreamHandler, menus MenuHandler, limiter *RateLimiter, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/voice", func(r chi.Router) {
		// Twilio calls from a small shared address pool; only unsigned
		// webhooks count against the per-IP limit.
		r.With(limiter.MiddlewareExcept(calls.Authenticated)).Post("/incoming", calls.HandleIncomingCall)
		r.Get("/stream", streams.HandleStream)
	})

	r.With(limiter.Middleware).Get("/pizzerias/{pizzeriaId}/menu", menus.HandleGetMenu)

	logger.Debug("routes registered")
	return r
}
