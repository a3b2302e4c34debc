package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Subicson333/verify/internal/metrics"
)

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/cases", func(r chi.Router) {
		r.Post("/", h.CreateCase)
		r.Get("/", h.ListCases)
		r.Get("/stats", h.Stats)
		r.Post("/webhook/vendor", h.VendorWebhook)
		r.Post("/verification-submissions", h.SubmitVerification)
		r.Route("/{caseId}", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				h.GetCase(w, r, chi.URLParam(r, "caseId"))
			})
			r.Patch("/checks/{checkType}", func(w http.ResponseWriter, r *http.Request) {
				h.UpdateCheck(w, r, chi.URLParam(r, "caseId"), chi.URLParam(r, "checkType"))
			})
			r.Post("/admin-decision", func(w http.ResponseWriter, r *http.Request) {
				h.RecordAdminDecision(w, r, chi.URLParam(r, "caseId"))
			})
			r.Get("/checklist-summary", func(w http.ResponseWriter, r *http.Request) {
				h.ChecklistSummary(w, r, chi.URLParam(r, "caseId"))
			})
		})
	})

	r.Route("/exceptions", func(r chi.Router) {
		r.Get("/", h.ListExceptions)
		r.Post("/actions", h.ExceptionAction)
	})

	return r
}

// requestLogger writes one zap entry per request and records its latency by route pattern.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			elapsed := time.Since(start)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			metrics.RequestDuration.WithLabelValues(route, strconv.Itoa(ww.Status())).Observe(elapsed.Seconds())
			log.Info("http request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", elapsed),
			)
		})
	}
}
