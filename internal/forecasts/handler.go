package forecasts

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/forecast-tournament/forecast/internal/platform/httpx"
	"github.com/forecast-tournament/forecast/internal/shared"
)

// Handler serves the forecast endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers /forecasts routes. GET / lists the caller's own
// forecasts, or the visible forecasts on one prop with ?prop_id=.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Post("/batch", h.createBatch)
	r.Patch("/{forecastID}", h.update)
	r.Delete("/{forecastID}", h.delete)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page := shared.PageFromQuery(r.URL.Query())
	raw := r.URL.Query().Get("prop_id")
	if raw == "" {
		res, err := h.service.ListMine(r.Context(), page)
		httpx.RespondResult(w, h.logger, http.StatusOK, res, err)
		return
	}
	propID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || propID <= 0 {
		httpx.RespondError(w, h.logger, fmt.Errorf("%w: invalid prop_id %q", httpx.ErrBadRequest, raw))
		return
	}
	res, err := h.service.ListForProp(r.Context(), propID, page)
	httpx.RespondResult(w, h.logger, http.StatusOK, res, err)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	res, err := h.service.Create(r.Context(), in)
	httpx.RespondResult(w, h.logger, http.StatusCreated, res, err)
}

type batchRequest struct {
	Forecasts []CreateInput `json:"forecasts"`
}

func (h *Handler) createBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	res, err := h.service.CreateBatch(r.Context(), req.Forecasts)
	httpx.RespondResult(w, h.logger, http.StatusCreated, res, err)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "forecastID")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var in UpdateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	res, err := h.service.Update(r.Context(), id, in)
	httpx.RespondResult(w, h.logger, http.StatusOK, res, err)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "forecastID")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	res, err := h.service.Delete(r.Context(), id)
	httpx.RespondResult(w, h.logger, http.StatusOK, res, err)
}
