package provider

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aurora-cpe/aurora-cpe/internal/platform/httpx"
	"github.com/aurora-cpe/aurora-cpe/internal/sin"
)

// Writer persists the provider profile.
type Writer interface {
	SaveProfile(ctx context.Context, p Profile) error
}

// Handler manages provider settings endpoints.
type Handler struct {
	logger *slog.Logger
	reader Reader
	writer Writer
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, reader Reader, writer Writer) *Handler {
	return &Handler{logger: logger, reader: reader, writer: writer}
}

// MountRoutes registers provider settings routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.get)
	r.Put("/", h.update)
}

type profileView struct {
	Name       string `json:"name"`
	SIN        string `json:"sin"`
	Address    string `json:"address"`
	City       string `json:"city"`
	Region     string `json:"region"`
	PostalCode string `json:"postal_code"`
	Complete   bool   `json:"complete"`
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	prof, err := h.reader.ProviderProfile(r.Context())
	if errors.Is(err, ErrNotConfigured) {
		httpx.JSON(w, http.StatusOK, profileView{Complete: false})
		return
	}
	if err != nil {
		h.logger.Error("get provider profile", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, profileView{
		Name:       prof.Name,
		SIN:        prof.FormattedSIN(),
		Address:    prof.Address,
		City:       prof.City,
		Region:     prof.Region,
		PostalCode: prof.Postal,
		Complete:   prof.Validate() == nil,
	})
}

type updateRequest struct {
	Name       string `json:"name"`
	SIN        string `json:"sin"`
	Address    string `json:"address"`
	City       string `json:"city"`
	Region     string `json:"region"`
	PostalCode string `json:"postal_code"`
}

// update stores the profile. The SIN is normalised before storage and must
// pass the checksum when present; completeness is only enforced at slip
// generation time.
func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if req.SIN != "" && !sin.Validate(req.SIN) {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "SIN fails checksum validation")
		return
	}

	prof := Profile{
		Name:    req.Name,
		SIN:     sin.Format(req.SIN),
		Address: req.Address,
		City:    req.City,
		Region:  req.Region,
		Postal:  req.PostalCode,
	}
	if err := h.writer.SaveProfile(r.Context(), prof); err != nil {
		h.logger.Error("save provider profile", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"complete": prof.Validate() == nil})
}
