package analytics

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/metrik/metrik/internal/platform/httpx"
	"github.com/metrik/metrik/internal/rbac"
	"github.com/metrik/metrik/internal/shared"
)

// Handler serves sales graph endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs the analytics handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers analytics endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(30, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "sales graph rate limit exceeded")
		}),
	)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require("sales", rbac.ActionView))
		r.Get("/analytics/sales-graph", h.handleSalesGraph)
		r.With(limiter).Get("/analytics/sales-graph.svg", h.handleSalesGraphSVG)
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		if user := strings.TrimSpace(sess.UserID); user != "" {
			return "user:" + user, nil
		}
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (SalesGraph, bool) {
	filter := SalesFilter{
		FinancialYear: r.URL.Query().Get("fy"),
		Granularity:   Granularity(r.URL.Query().Get("granularity")),
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		filter.BusinessID = sess.BusinessID
	}
	graph, err := h.service.SalesGraph(r.Context(), filter)
	if err != nil {
		h.logger.Error("sales graph", slog.String("business_id", filter.BusinessID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return SalesGraph{}, false
	}
	return graph, true
}

func (h *Handler) handleSalesGraph(w http.ResponseWriter, r *http.Request) {
	if graph, ok := h.load(w, r); ok {
		httpx.JSON(w, http.StatusOK, graph)
	}
}

func (h *Handler) handleSalesGraphSVG(w http.ResponseWriter, r *http.Request) {
	graph, ok := h.load(w, r)
	if !ok {
		return
	}
	svg, err := RenderSVG(graph)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "private, max-age=60")
	_, _ = w.Write([]byte(svg))
}
