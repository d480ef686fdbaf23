package ledger

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/metrik/metrik/internal/fiscal"
	"github.com/metrik/metrik/internal/platform/httpx"
	"github.com/metrik/metrik/internal/rbac"
	"github.com/metrik/metrik/internal/shared"
)

// Handler wires HTTP endpoints for ledgers.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs the ledger handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/ledgers", func(r chi.Router) {
		r.Get("/periods", h.handlePeriods)
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.Require("inventory", rbac.ActionView))
			r.Get("/items/{itemID}", h.handleItemLedger)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.Require("accounts", rbac.ActionView))
			r.Get("/parties/{accountID}", h.handlePartyLedger)
		})
	})
}

func queryFrom(r *http.Request, subject string) Query {
	q := Query{
		SubjectID:        subject,
		FinancialYear:    r.URL.Query().Get("fy"),
		MaterialCentreID: r.URL.Query().Get("material_centre_id"),
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		q.BusinessID = sess.BusinessID
	}
	return q
}

func (h *Handler) handleItemLedger(w http.ResponseWriter, r *http.Request) {
	q := queryFrom(r, chi.URLParam(r, "itemID"))
	statement, err := h.service.ItemLedger(r.Context(), q)
	if err != nil {
		h.logger.Error("item ledger", slog.String("item_id", q.SubjectID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, statement)
}

func (h *Handler) handlePartyLedger(w http.ResponseWriter, r *http.Request) {
	q := queryFrom(r, chi.URLParam(r, "accountID"))
	q.MaterialCentreID = ""
	statement, err := h.service.PartyLedger(r.Context(), q)
	if err != nil {
		h.logger.Error("party ledger", slog.String("account_id", q.SubjectID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, statement)
}

func (h *Handler) handlePeriods(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	httpx.JSON(w, http.StatusOK, map[string]any{
		"current": fiscal.Resolve(now).Label,
		"options": fiscal.YearOptions(now),
	})
}
