package exportlog

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/aurora-cpe/aurora-cpe/internal/platform/httpx"
)

// Handler manages export log endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers export log routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Post("/{id}/verify", h.verify)
	r.Post("/cleanup", h.cleanup)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		ExportType: q.Get("export_type"),
		Status:     Status(q.Get("status")),
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	logs, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, "list export logs", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"logs": logs, "count": len(logs)})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be an integer")
		return
	}
	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get export log", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

// verify recomputes the artifact checksum against the logged value. A
// mismatch and a missing artifact report differently so operators can tell
// corruption from expiry.
func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be an integer")
		return
	}
	err = h.service.Verify(r.Context(), id)
	switch {
	case err == nil:
		httpx.JSON(w, http.StatusOK, map[string]string{"result": "verified"})
	case errors.Is(err, ErrChecksumMismatch):
		httpx.JSON(w, http.StatusConflict, map[string]string{"result": "checksum_mismatch", "detail": err.Error()})
	case errors.Is(err, ErrArtifactMissing):
		httpx.JSON(w, http.StatusGone, map[string]string{"result": "artifact_missing", "detail": err.Error()})
	default:
		h.respondError(w, "verify export log", err)
	}
}

func (h *Handler) cleanup(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.service.Cleanup(r.Context())
	if err != nil {
		h.respondError(w, "cleanup export logs", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrLogNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidTransition):
		httpx.Problem(w, http.StatusConflict, "Invalid Lifecycle Transition", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
