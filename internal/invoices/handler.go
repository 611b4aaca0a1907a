package invoices

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/invoicer/internal/platform/httpx"
)

// Handler exposes the invoice JSON API.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the invoice handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

type invoiceResponse struct {
	Success bool     `json:"success"`
	Invoice *Invoice `json:"invoice"`
}

type listResponse struct {
	Success  bool      `json:"success"`
	Invoices []Invoice `json:"invoices"`
}

type deleteResponse struct {
	Success bool `json:"success"`
}

// MountRoutes attaches invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var draft Invoice
	if err := httpx.DecodeJSON(w, r, &draft); err != nil {
		h.fail(w, "create invoice", err)
		return
	}
	inv, err := h.service.Create(r.Context(), draft)
	if err != nil {
		h.fail(w, "create invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoiceResponse{Success: true, Invoice: inv})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{Status: Status(r.URL.Query().Get("status"))}
	items, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "list invoices", err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Success: true, Invoices: items})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	inv, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get invoice", err, slog.String("id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, invoiceResponse{Success: true, Invoice: inv})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var patch Patch
	if err := httpx.DecodeJSON(w, r, &patch); err != nil {
		h.fail(w, "update invoice", err, slog.String("id", id))
		return
	}
	inv, err := h.service.Update(r.Context(), id, patch)
	if err != nil {
		h.fail(w, "update invoice", err, slog.String("id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, invoiceResponse{Success: true, Invoice: inv})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, "delete invoice", err, slog.String("id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, deleteResponse{Success: true})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error, attrs ...any) {
	attrs = append(attrs, slog.Any("error", err))
	switch status := httpx.StatusFor(err); {
	case errors.Is(err, ErrNotFound):
		h.logger.Info(op+" not found", attrs...)
		httpx.Fail(w, http.StatusNotFound, notFoundMessage)
		return
	case status < http.StatusInternalServerError:
		h.logger.Warn(op+" rejected", attrs...)
	default:
		h.logger.Error(op+" failed", attrs...)
	}
	httpx.RespondError(w, err)
}
