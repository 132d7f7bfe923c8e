package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aurora-cpe/aurora-cpe/internal/exportlog"
	"github.com/aurora-cpe/aurora-cpe/internal/platform/cache"
	"github.com/aurora-cpe/aurora-cpe/internal/platform/httpx"
	"github.com/aurora-cpe/aurora-cpe/internal/provider"
	"github.com/aurora-cpe/aurora-cpe/internal/shared"
	"github.com/aurora-cpe/aurora-cpe/internal/slips"
)

// EnqueueFunc hands a batch render request to the background worker.
type EnqueueFunc func(ctx context.Context, logID int64, slipIDs []string, actorID int64) error

// Handler serves slip documents: single PDFs, batch archives and their
// download tickets.
type Handler struct {
	logger   *slog.Logger
	slips    *slips.Service
	renderer *Renderer
	provider provider.Reader
	trail    *exportlog.Service
	tickets  *cache.TicketStore
	enqueue  EnqueueFunc
	maxBatch int
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, slipSvc *slips.Service, renderer *Renderer, prov provider.Reader, trail *exportlog.Service, tickets *cache.TicketStore, enqueue EnqueueFunc, maxBatch int) *Handler {
	if maxBatch <= 0 {
		maxBatch = DefaultBatchConfig().MaxBatchSize
	}
	return &Handler{
		logger:   logger,
		slips:    slipSvc,
		renderer: renderer,
		provider: prov,
		trail:    trail,
		tickets:  tickets,
		enqueue:  enqueue,
		maxBatch: maxBatch,
	}
}

// MountRoutes registers document routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{id}/pdf", h.slipPDF)
	r.Post("/batch", h.enqueueBatch)
}

// MountDownloadRoutes registers the ticket redemption route.
func (h *Handler) MountDownloadRoutes(r chi.Router) {
	r.Get("/{token}", h.download)
}

// slipPDF renders one slip on demand. The disposition query flips between
// print preview and download.
func (h *Handler) slipPDF(w http.ResponseWriter, r *http.Request) {
	slip, err := h.slips.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, "slip pdf", err)
		return
	}
	prof, err := h.provider.ProviderProfile(r.Context())
	if err != nil {
		h.respondError(w, "slip pdf", err)
		return
	}
	if err := prof.Validate(); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Provider Profile Incomplete", err.Error())
		return
	}

	pdf, err := h.renderer.RenderSlip(r.Context(), slip, prof)
	if err != nil {
		h.respondError(w, "slip pdf", err)
		return
	}

	inline := r.URL.Query().Get("disposition") == "inline"
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", dispositionHeader(SlipFileName(slip, true), inline))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(pdf)))
	_, _ = w.Write(pdf)
}

type batchRequest struct {
	SlipIDs []string `json:"slip_ids"`
}

// enqueueBatch validates the request, opens the export log entry and hands
// the work to the background renderer. The response carries the log id the
// caller polls for the download ticket.
func (h *Handler) enqueueBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if len(req.SlipIDs) == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "slip_ids is required")
		return
	}
	if len(req.SlipIDs) > h.maxBatch {
		httpx.Problem(w, http.StatusRequestEntityTooLarge, "Batch Too Large",
			fmt.Sprintf("%d documents requested, ceiling is %d", len(req.SlipIDs), h.maxBatch))
		return
	}
	valid, rejected := shared.FilterValidIDs(req.SlipIDs)
	if len(valid) == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "no well-formed slip ids in request")
		return
	}

	entry, err := h.trail.Create(r.Context(), exportlog.CreateParams{
		ExportType:   "BATCH_RENDER",
		ExportFormat: "PDF_ZIP",
	})
	if err != nil {
		h.respondError(w, "enqueue batch", err)
		return
	}
	actorID := shared.ActorFromContext(r.Context())
	if err := h.enqueue(r.Context(), entry.ID, valid, actorID); err != nil {
		if failErr := h.trail.Fail(r.Context(), entry.ID, "enqueue: "+err.Error()); failErr != nil {
			h.logger.Error("export log fail update lost", slog.Any("error", failErr))
		}
		h.respondError(w, "enqueue batch", err)
		return
	}

	httpx.JSON(w, http.StatusAccepted, map[string]any{
		"export_log_id": entry.ID,
		"accepted":      len(valid),
		"rejected_ids":  rejected,
	})
}

// download redeems a ticket and streams the archive.
func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	path, err := h.tickets.Redeem(r.Context(), token)
	if errors.Is(err, cache.ErrTicketNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "download ticket expired or unknown")
		return
	}
	if err != nil {
		h.respondError(w, "download", err)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			httpx.Problem(w, http.StatusGone, "Gone", "archive no longer available")
			return
		}
		h.respondError(w, "download", err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", dispositionHeader(filepath.Base(path), false))
	http.ServeContent(w, r, filepath.Base(path), fileModTime(f), f)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, slips.ErrSlipNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, provider.ErrNotConfigured):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Provider Profile Incomplete", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func dispositionHeader(name string, inline bool) string {
	if inline {
		return fmt.Sprintf("inline; filename=%q", name)
	}
	return fmt.Sprintf("attachment; filename=%q", name)
}

func fileModTime(f *os.File) (t time.Time) {
	if info, err := f.Stat(); err == nil {
		t = info.ModTime()
	}
	return t
}
