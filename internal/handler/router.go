package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Siddarth2230/linklytics/internal/auth"
	"github.com/Siddarth2230/linklytics/internal/middleware"
)

// NewRouter wires every route. Management routes require a bearer token;
// redirects, password validation and the operational endpoints do not.
func NewRouter(h *LinkHandler, idp auth.IdentityProvider) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.MetricsMiddleware)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})

	protect := middleware.Auth(idp)

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.Handle("/api/urls/shorten", protect(http.HandlerFunc(h.Shorten))).Methods(http.MethodPost)
	r.Handle("/api/urls", protect(http.HandlerFunc(h.List))).Methods(http.MethodGet)
	r.Handle("/api/urls/{code}/analytics", protect(http.HandlerFunc(h.Analytics))).Methods(http.MethodGet)
	r.HandleFunc("/api/urls/{code}/validate", h.Validate).Methods(http.MethodGet)
	r.Handle("/api/urls/{code}", protect(http.HandlerFunc(h.Delete))).Methods(http.MethodDelete)

	r.HandleFunc("/{code}", h.Redirect).Methods(http.MethodGet)
	return r
}
