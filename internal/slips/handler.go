package slips

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/aurora-cpe/aurora-cpe/internal/observability"
	"github.com/aurora-cpe/aurora-cpe/internal/platform/httpx"
)

// Handler manages tax slip endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	metrics   *observability.Metrics
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, service: service, metrics: metrics, validator: validator.New()}
}

// MountRoutes registers slip routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.computeDraft)
	r.Get("/{id}", h.get)
	r.Post("/{id}/generate", h.generate)
	r.Post("/{id}/send", h.send)
	r.Post("/{id}/file", h.file)
	r.Post("/{id}/amend", h.amend)
	r.Post("/{id}/cancel", h.cancel)
}

type computeDraftRequest struct {
	PersonID int64 `json:"person_id" validate:"required,gt=0"`
	TaxYear  int   `json:"tax_year" validate:"required,gte=1990,lte=9999"`
}

func (h *Handler) computeDraft(w http.ResponseWriter, r *http.Request) {
	var req computeDraftRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	slip, err := h.service.ComputeDraft(r.Context(), req.PersonID, req.TaxYear)
	if err != nil {
		h.respondError(w, "compute draft", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, slip)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	slip, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, "get slip", err)
		return
	}
	httpx.JSON(w, http.StatusOK, slip)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		Status:   Status(q.Get("status")),
		SlipType: SlipType(q.Get("type")),
	}
	filter.TaxYear, _ = strconv.Atoi(q.Get("tax_year"))
	filter.PersonID, _ = strconv.ParseInt(q.Get("person_id"), 10, 64)
	filter.FamilyID, _ = strconv.ParseInt(q.Get("family_id"), 10, 64)
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	slips, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, "list slips", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"slips": slips, "count": len(slips)})
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	slip, err := h.service.MarkGenerated(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, "generate slip", err)
		return
	}
	h.metrics.SlipGenerated(string(slip.SlipType))
	httpx.JSON(w, http.StatusOK, slip)
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	if err := h.service.MarkSent(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, "send slip", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": string(StatusSent)})
}

func (h *Handler) file(w http.ResponseWriter, r *http.Request) {
	if err := h.service.MarkFiled(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, "file slip", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": string(StatusFiled)})
}

func (h *Handler) amend(w http.ResponseWriter, r *http.Request) {
	replacement, err := h.service.Amend(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, "amend slip", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, replacement)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Cancel(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, "cancel slip", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"slip_type": string(TypeCancelled)})
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrSlipNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrCannotAmend),
		errors.Is(err, ErrCannotCancel):
		httpx.Problem(w, http.StatusConflict, "Invalid Lifecycle Transition", err.Error())
	case errors.Is(err, ErrDuplicateOriginal):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
