package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/coreflowhq/wabroker/internal/handler"
)

func setupRouter(h *handler.Handler) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Post("/connect", h.ConnectSession)
			r.Post("/logout", h.LogoutSession)
			r.Get("/status", h.GetSessionStatus)
			r.Get("/qr", h.GetQRCode)
			r.Post("/messages", h.SendMessage)
			r.Post("/polls", h.CreatePoll)
		})

		r.Route("/instances", func(r chi.Router) {
			r.Get("/", h.ListInstances)
			r.Post("/", h.CreateInstance)
			r.Delete("/{instanceID}", h.DeleteInstance)
		})

		r.Route("/poller", func(r chi.Router) {
			r.Post("/start", h.StartPoller)
			r.Post("/stop", h.StopPoller)
		})
	})

	return r
}
