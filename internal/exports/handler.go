package exports

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/aurora-cpe/aurora-cpe/internal/observability"
	"github.com/aurora-cpe/aurora-cpe/internal/platform/httpx"
)

// Handler manages accounting export endpoints.
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

// MountRoutes registers export routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.generate)
}

type generateRequest struct {
	Format     string `json:"format" validate:"required"`
	ExportType string `json:"export_type" validate:"required"`
	From       string `json:"from" validate:"required"`
	To         string `json:"to" validate:"required"`
	DateLayout string `json:"date_layout"`
	IncludeBOM bool   `json:"include_bom"`
}

// generate runs one export and streams the artifact back as an attachment.
// The export log entry id rides along in a response header so the caller
// can fetch checksum and metadata afterwards.
func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	format, ok := NormaliseFormat(req.Format)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", fmt.Sprintf("unknown export format %q", req.Format))
		return
	}
	exportType, ok := NormaliseType(req.ExportType)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", fmt.Sprintf("unknown export type %q", req.ExportType))
		return
	}
	if format == FormatSage50 && !ValidSage50DateLayout(req.DateLayout) {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", fmt.Sprintf("unsupported date_layout %q", req.DateLayout))
		return
	}
	from, err := time.Parse("2006-01-02", req.From)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from must be YYYY-MM-DD")
		return
	}
	to, err := time.Parse("2006-01-02", req.To)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "to must be YYYY-MM-DD")
		return
	}

	result, entry, err := h.service.Generate(r.Context(), Request{
		Format:     format,
		ExportType: exportType,
		Range:      DateRange{From: from, To: to.Add(24*time.Hour - time.Nanosecond)},
		Sage50:     Sage50Options{DateLayout: req.DateLayout, IncludeBOM: req.IncludeBOM},
	})
	if err != nil {
		h.metrics.ExportFinished(string(format), false)
		h.logger.Error("generate export", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.metrics.ExportFinished(string(format), true)

	contentType := "text/csv; charset=utf-8"
	if format == FormatQuickBooks {
		contentType = "text/plain; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.FileName))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(result.Data)))
	if entry != nil {
		w.Header().Set("X-Export-Log-Id", fmt.Sprintf("%d", entry.ID))
	}
	_, _ = w.Write(result.Data)
}
