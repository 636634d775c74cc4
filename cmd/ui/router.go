package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter mounts the API routes. gatherer backs /metrics; nil leaves the
// endpoint out.
func NewRouter(h *APIHandler, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/strategies", h.ListStrategies)
		r.Get("/strategies/{strategyID}/description", h.DescribeStrategy)

		r.Get("/documents", h.Documents)
		r.Delete("/documents/{name}", h.DeleteDocument)

		r.Post("/sessions", h.OpenSession)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Delete("/", h.CloseSession)
			r.Get("/blocks", h.Blocks)
			r.Post("/events", h.PostEvent)
			r.Get("/notice", h.Notice)
			r.Post("/notice/dismiss", h.DismissNotice)
			r.Post("/save", h.SaveSession)
			r.Get("/divergence", h.Divergence)
			r.Post("/strategies/{strategyID}", h.InsertStrategy)
			r.Post("/run", h.StartRun)
		})

		r.Get("/run", h.RunStatus)
		r.Post("/run/stop", h.StopRun)
		r.Post("/run/reset", h.ResetRun)

		r.Post("/account/password", h.ChangePassword)
		r.Post("/account/new", h.CreateAccount)
	})

	return r
}
