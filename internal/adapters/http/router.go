package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func NewRouter(handler *Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { writeSuccess(w, http.StatusOK, "ok", nil) })
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) { writeSuccess(w, http.StatusOK, "ready", nil) })
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/session", handler.login)
		r.Delete("/session", handler.logout)
		r.Get("/session", handler.getSession)
		r.Get("/media/resolve", handler.resolveMedia)
		r.Post("/media/preload", handler.preloadMedia)
		r.Get("/subscriptions", handler.listSubscriptions)
		r.Get("/subscriptions/{creator_id}/status", handler.subscriptionStatus)
		r.Post("/subscriptions/sweep", handler.sweepSubscriptions)
		r.Post("/payments/tips", handler.createTip)
		r.Post("/payments/unlocks", handler.unlockPost)
		r.Post("/payments/confirm", handler.confirmPayment)
	})
	return r
}
