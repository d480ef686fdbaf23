package accounts

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/metrik/metrik/internal/platform/httpx"
	"github.com/metrik/metrik/internal/rbac"
	"github.com/metrik/metrik/internal/shared"
)

const module = "accounts"

// Handler exposes the chart of accounts over HTTP.
type Handler struct {
	service   *Service
	logger    *slog.Logger
	validator *httpx.Validator
	rbac      rbac.Middleware
}

// NewHandler constructs the accounts handler.
func NewHandler(logger *slog.Logger, service *Service, validator *httpx.Validator, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validator: validator, rbac: rbac}
}

// MountRoutes registers account routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/accounts", func(r chi.Router) {
		r.With(h.rbac.Require(module, rbac.ActionView)).Get("/", h.List)
		r.With(h.rbac.Require(module, rbac.ActionCreate)).Post("/", h.Create)
		r.With(h.rbac.Require(module, rbac.ActionView)).Get("/{id}", h.Get)
		r.With(h.rbac.Require(module, rbac.ActionEdit)).Put("/{id}", h.Update)
		r.With(h.rbac.Require(module, rbac.ActionDelete)).Delete("/{id}", h.Delete)
	})
}

type accountRequest struct {
	Name          string      `json:"name" validate:"required"`
	Code          string      `json:"code" validate:"required"`
	Type          AccountType `json:"type" validate:"required,oneof=asset liability equity income expense"`
	Group         string      `json:"group"`
	OpeningDebit  float64     `json:"opening_debit" validate:"gte=0"`
	OpeningCredit float64     `json:"opening_credit" validate:"gte=0"`
}

func (req accountRequest) account(businessID, id string) Account {
	return Account{
		ID:         id,
		BusinessID: businessID,
		Name:       req.Name,
		Code:       req.Code,
		Type:       req.Type,
		Group:      req.Group,
		Opening:    Opening{Debit: req.OpeningDebit, Credit: req.OpeningCredit},
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (accountRequest, bool) {
	var req accountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return req, false
	}
	if fields := h.validator.Struct(req); fields != nil {
		httpx.FieldProblem(w, fields)
		return req, false
	}
	return req, true
}

// List responds with every account of the session's business.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	accounts, err := h.service.List(r.Context(), sess.BusinessID)
	if err != nil {
		h.logger.Error("list accounts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if accounts == nil {
		accounts = []Account{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": accounts})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	a, err := h.service.Get(r.Context(), sess.BusinessID, chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	sess := shared.SessionFromContext(r.Context())
	a, err := h.service.Create(r.Context(), req.account(sess.BusinessID, ""), sess.UserID)
	if err != nil {
		h.logger.Warn("create account", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, a)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	sess := shared.SessionFromContext(r.Context())
	a, err := h.service.Update(r.Context(), req.account(sess.BusinessID, chi.URLParam(r, "id")), sess.UserID)
	if err != nil {
		h.logger.Warn("update account", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if err := h.service.Delete(r.Context(), sess.BusinessID, chi.URLParam(r, "id"), sess.UserID); err != nil {
		h.logger.Warn("delete account", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
