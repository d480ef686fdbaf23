package voucher

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/metrik/metrik/internal/platform/httpx"
	"github.com/metrik/metrik/internal/rbac"
	"github.com/metrik/metrik/internal/shared"
)

// listModule guards listings that span every voucher type.
const listModule = "vouchers"

// Handler wires HTTP endpoints for vouchers.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *httpx.Validator
}

// NewHandler constructs the voucher handler.
func NewHandler(logger *slog.Logger, service *Service, validator *httpx.Validator) *Handler {
	return &Handler{logger: logger, service: service, validator: validator}
}

// MountRoutes registers voucher routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/vouchers", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handlePost)
		r.Post("/preview", h.handlePreview)
		r.Get("/{id}", h.handleGet)
		r.Post("/{id}/cancel", h.handleCancel)
		r.Delete("/{id}", h.handleDelete)
	})
}

// authorize writes the error response itself when the session is missing or
// lacks the permission.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, module, action string) (*shared.Session, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return nil, false
	}
	if !rbac.SessionAllowed(sess, module, action) {
		h.logger.Warn("voucher access denied",
			slog.String("user_id", sess.UserID),
			slog.String("module", module),
			slog.String("action", action))
		httpx.RespondError(w, shared.ErrForbidden)
		return nil, false
	}
	return sess, true
}

func (h *Handler) decodePost(w http.ResponseWriter, r *http.Request) (postRequest, bool) {
	var req postRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return req, false
	}
	if fields := h.validator.Struct(req); fields != nil {
		httpx.FieldProblem(w, fields)
		return req, false
	}
	if !Type(req.VoucherType).Valid() {
		httpx.FieldProblem(w, map[string]string{"voucher_type": "is not a known voucher type"})
		return req, false
	}
	return req, true
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodePost(w, r)
	if !ok {
		return
	}
	t := Type(req.VoucherType)
	sess, ok := h.authorize(w, r, t.PermissionModule(), rbac.ActionCreate)
	if !ok {
		return
	}
	result, err := h.service.Post(r.Context(), PostInput{
		Voucher:        req.toVoucher(sess.BusinessID),
		ActorID:        sess.UserID,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.logger.Error("post voucher", slog.String("voucher_type", req.VoucherType), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("voucher posted",
		slog.String("business_id", sess.BusinessID),
		slog.String("voucher_number", result.Voucher.Number),
		slog.Int("notices", len(result.Notices)))
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodePost(w, r)
	if !ok {
		return
	}
	sess, ok := h.authorize(w, r, Type(req.VoucherType).PermissionModule(), rbac.ActionCreate)
	if !ok {
		return
	}
	result, err := h.service.Preview(r.Context(), PostInput{Voucher: req.toVoucher(sess.BusinessID), ActorID: sess.UserID})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{Type: Type(q.Get("type")), Status: Status(q.Get("status"))}
	module := listModule
	if filter.Type != "" {
		module = filter.Type.PermissionModule()
	}
	sess, ok := h.authorize(w, r, module, rbac.ActionView)
	if !ok {
		return
	}
	filter.BusinessID = sess.BusinessID

	fields := map[string]string{}
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			fields["from"] = "must be a date formatted " + dateLayout
		}
		filter.From = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			fields["to"] = "must be a date formatted " + dateLayout
		}
		filter.To = t
	}
	if len(fields) > 0 {
		httpx.FieldProblem(w, fields)
		return
	}
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	filter.Page = shared.Pagination{Page: page, PerPage: perPage}

	items, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list vouchers", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if items == nil {
		items = []Voucher{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"data":       items,
		"pagination": shared.NewPagination(filter.Page.Page, filter.Page.PerPage, total),
	})
}

// loadAuthorized fetches the voucher named in the path and checks action
// against its type.
func (h *Handler) loadAuthorized(w http.ResponseWriter, r *http.Request, action string) (*shared.Session, Voucher, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return nil, Voucher{}, false
	}
	v, err := h.service.Get(r.Context(), sess.BusinessID, chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return nil, Voucher{}, false
	}
	if _, ok := h.authorize(w, r, v.Type.PermissionModule(), action); !ok {
		return nil, Voucher{}, false
	}
	return sess, v, true
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	_, v, ok := h.loadAuthorized(w, r, rbac.ActionView)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if fields := h.validator.Struct(req); fields != nil {
		httpx.FieldProblem(w, fields)
		return
	}
	sess, v, ok := h.loadAuthorized(w, r, rbac.ActionCancel)
	if !ok {
		return
	}
	cancelled, err := h.service.Cancel(r.Context(), sess.BusinessID, v.ID, req.Reason, sess.UserID)
	if err != nil {
		h.logger.Error("cancel voucher", slog.String("voucher_id", v.ID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, cancelled)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	sess, v, ok := h.loadAuthorized(w, r, rbac.ActionDelete)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), sess.BusinessID, v.ID, sess.UserID); err != nil {
		h.logger.Error("delete voucher", slog.String("voucher_id", v.ID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
