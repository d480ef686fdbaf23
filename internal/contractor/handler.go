package contractor

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/metrik/metrik/internal/platform/httpx"
	"github.com/metrik/metrik/internal/rbac"
	"github.com/metrik/metrik/internal/shared"
)

// Handler wires HTTP endpoints for contractor settings and quotes.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	repo      Repository
	validator *httpx.Validator
	rbac      rbac.Middleware
}

// NewHandler constructs the contractor handler.
func NewHandler(logger *slog.Logger, service *Service, repo Repository, validator *httpx.Validator, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, repo: repo, validator: validator, rbac: rbac}
}

// MountRoutes registers contractor routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/contractors/{partyID}", func(r chi.Router) {
		r.With(h.rbac.Require("production", rbac.ActionView)).Get("/settings", h.handleGetSettings)
		r.With(h.rbac.Require("production", rbac.ActionEdit)).Put("/settings", h.handlePutSettings)
		r.With(h.rbac.Require("production", rbac.ActionCreate)).Post("/quote", h.handleQuote)
	})
}

type rateRequest struct {
	ItemID string  `json:"item_id" validate:"required"`
	Rate   float64 `json:"rate" validate:"gte=0"`
	UOM    RateUOM `json:"rate_uom" validate:"required,oneof=per_unit per_dozen"`
}

type settingsRequest struct {
	Enabled                 bool          `json:"is_enabled"`
	ConsumeMaterialCentreID string        `json:"consume_material_centre_id"`
	OutputMaterialCentreID  string        `json:"output_material_centre_id"`
	LinkedUserID            string        `json:"linked_user_id"`
	ItemRates               []rateRequest `json:"item_rates" validate:"dive"`
}

type quoteRequest struct {
	OutputItemID   string  `json:"output_item_id" validate:"required"`
	OutputQuantity float64 `json:"output_quantity" validate:"gt=0"`
}

type quoteResponse struct {
	Amount float64 `json:"contractor_amount"`
	Notice Notice  `json:"notice,omitempty"`
}

func businessID(r *http.Request) string {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		return sess.BusinessID
	}
	return ""
}

func (h *Handler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.repo.GetSettings(r.Context(), businessID(r), chi.URLParam(r, "partyID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, settings)
}

func (h *Handler) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if fields := h.validator.Struct(req); fields != nil {
		httpx.FieldProblem(w, fields)
		return
	}
	settings := Settings{
		PartyID:                 chi.URLParam(r, "partyID"),
		Enabled:                 req.Enabled,
		ConsumeMaterialCentreID: req.ConsumeMaterialCentreID,
		OutputMaterialCentreID:  req.OutputMaterialCentreID,
		LinkedUserID:            req.LinkedUserID,
	}
	for _, rate := range req.ItemRates {
		settings.ItemRates = append(settings.ItemRates, ItemRate{ItemID: rate.ItemID, Rate: rate.Rate, UOM: rate.UOM})
	}
	if err := h.service.UpdateSettings(r.Context(), businessID(r), settings); err != nil {
		h.logger.Error("update contractor settings", slog.String("party_id", settings.PartyID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, settings)
}

func (h *Handler) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if fields := h.validator.Struct(req); fields != nil {
		httpx.FieldProblem(w, fields)
		return
	}
	res, _, err := h.service.Quote(r.Context(), QuoteInput{
		BusinessID:     businessID(r),
		PartyID:        chi.URLParam(r, "partyID"),
		OutputItemID:   req.OutputItemID,
		OutputQuantity: req.OutputQuantity,
	})
	if err != nil {
		if !errors.Is(err, shared.ErrBadRequest) && !errors.Is(err, shared.ErrNotFound) {
			h.logger.Error("contractor quote", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, quoteResponse{Amount: res.Amount, Notice: res.Notice})
}
