package bom

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/metrik/metrik/internal/platform/httpx"
	"github.com/metrik/metrik/internal/rbac"
	"github.com/metrik/metrik/internal/shared"
)

const module = "production"

// Handler wires HTTP endpoints for BOMs.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *httpx.Validator
	rbac      rbac.Middleware
}

// NewHandler constructs the BOM handler.
func NewHandler(logger *slog.Logger, service *Service, validator *httpx.Validator, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validator: validator, rbac: rbac}
}

// MountRoutes registers BOM routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/boms", func(r chi.Router) {
		r.With(h.rbac.Require(module, rbac.ActionView)).Get("/", h.handleVersions)
		r.With(h.rbac.Require(module, rbac.ActionCreate)).Post("/", h.handleCreate)
		r.With(h.rbac.Require(module, rbac.ActionView)).Get("/expand", h.handleExpand)
		r.With(h.rbac.Require(module, rbac.ActionView)).Get("/{id}", h.handleGet)
		r.With(h.rbac.Require(module, rbac.ActionEdit)).Put("/{id}", h.handleUpdate)
		r.With(h.rbac.Require(module, rbac.ActionCreate)).Post("/{id}/versions", h.handleNewVersion)
		r.With(h.rbac.Require(module, rbac.ActionEdit)).Post("/{id}/activate", h.handleActivate)
		r.With(h.rbac.Require(module, rbac.ActionEdit)).Post("/{id}/archive", h.handleArchive)
	})
}

type inputRequest struct {
	ItemID         string  `json:"item_id" validate:"required"`
	Quantity       float64 `json:"quantity" validate:"gt=0"`
	WastagePercent float64 `json:"wastage_percent" validate:"gte=0,lte=100"`
	Narration      string  `json:"narration"`
}

type createRequest struct {
	Name           string         `json:"name"`
	OutputItemID   string         `json:"output_item_id" validate:"required"`
	OutputQuantity float64        `json:"output_quantity" validate:"gt=0"`
	Inputs         []inputRequest `json:"inputs" validate:"required,min=1,dive"`
}

type updateRequest struct {
	Inputs []inputRequest `json:"inputs" validate:"required,min=1,dive"`
}

func toInputs(reqs []inputRequest) []Input {
	out := make([]Input, 0, len(reqs))
	for _, in := range reqs {
		out = append(out, Input{ItemID: in.ItemID, Quantity: in.Quantity, WastagePercent: in.WastagePercent, Narration: in.Narration})
	}
	return out
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return false
	}
	if fields := h.validator.Struct(target); fields != nil {
		httpx.FieldProblem(w, fields)
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Warn("bom request failed", slog.String("op", op), slog.Any("error", err))
	httpx.RespondError(w, err)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !h.decode(w, r, &req) {
		return
	}
	sess := shared.SessionFromContext(r.Context())
	b, err := h.service.Create(r.Context(), BOM{
		BusinessID:     sess.BusinessID,
		Name:           req.Name,
		OutputItemID:   req.OutputItemID,
		OutputQuantity: req.OutputQuantity,
		Inputs:         toInputs(req.Inputs),
	}, sess.UserID)
	if err != nil {
		h.fail(w, "create", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, b)
}

func (h *Handler) handleVersions(w http.ResponseWriter, r *http.Request) {
	outputItemID := r.URL.Query().Get("output_item_id")
	if outputItemID == "" {
		httpx.FieldProblem(w, map[string]string{"output_item_id": "is required"})
		return
	}
	sess := shared.SessionFromContext(r.Context())
	list, err := h.service.Versions(r.Context(), sess.BusinessID, outputItemID)
	if err != nil {
		h.fail(w, "versions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": list})
}

func (h *Handler) handleExpand(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	qty, err := strconv.ParseFloat(q.Get("quantity"), 64)
	if err != nil {
		httpx.FieldProblem(w, map[string]string{"quantity": "must be a number"})
		return
	}
	sess := shared.SessionFromContext(r.Context())
	exp, err := h.service.ExpandActive(r.Context(), sess.BusinessID, q.Get("output_item_id"), qty)
	if err != nil {
		h.fail(w, "expand", err)
		return
	}
	httpx.JSON(w, http.StatusOK, exp)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	b, err := h.service.Get(r.Context(), sess.BusinessID, chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if !h.decode(w, r, &req) {
		return
	}
	sess := shared.SessionFromContext(r.Context())
	b, err := h.service.UpdateDraft(r.Context(), sess.BusinessID, chi.URLParam(r, "id"), toInputs(req.Inputs), sess.UserID)
	if err != nil {
		h.fail(w, "update", err)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}

func (h *Handler) handleNewVersion(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	b, err := h.service.NewVersionFrom(r.Context(), sess.BusinessID, chi.URLParam(r, "id"), sess.UserID)
	if err != nil {
		h.fail(w, "new_version", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, b)
}

func (h *Handler) handleActivate(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	b, err := h.service.Activate(r.Context(), sess.BusinessID, chi.URLParam(r, "id"), sess.UserID)
	if err != nil {
		h.fail(w, "activate", err)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}

func (h *Handler) handleArchive(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	b, err := h.service.Archive(r.Context(), sess.BusinessID, chi.URLParam(r, "id"), sess.UserID)
	if err != nil {
		h.fail(w, "archive", err)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}
