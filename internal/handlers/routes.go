package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes wires the API onto a chi router.
func (h *Handler) Routes(allowedOrigins []string) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(h.log))
	router.Use(middleware.Recoverer)
	router.Use(enableCORS(allowedOrigins))

	router.NotFound(h.NotFound)
	router.MethodNotAllowed(h.MethodNotAllowed)

	router.Get("/", h.Index)
	router.Get("/health", h.Health)

	router.Route("/api", func(r chi.Router) {
		r.Get("/model/info", h.ModelInfo)
		r.Post("/predict", h.Predict)
		r.Post("/validate", h.Validate)
	})

	return router
}
