package props

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/forecast-tournament/forecast/internal/platform/httpx"
	"github.com/forecast-tournament/forecast/internal/shared"
)

// Handler serves the prop endpoints.
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

// MountRoutes registers /props routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Route("/{propID}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Patch("/", h.update)
		r.Delete("/", h.delete)
		r.Post("/resolution", h.resolve)
		r.Delete("/resolution", h.unresolve)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter, err := FilterFromQuery(r.URL.Query())
	if err != nil {
		httpx.RespondError(w, h.logger, fmt.Errorf("%w: %v", httpx.ErrBadRequest, err))
		return
	}
	res, err := h.service.List(r.Context(), filter, shared.PageFromQuery(r.URL.Query()))
	httpx.RespondResult(w, h.logger, http.StatusOK, res, err)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "propID")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	res, err := h.service.Get(r.Context(), id)
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

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "propID")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var patch Patch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	res, err := h.service.Update(r.Context(), id, patch)
	httpx.RespondResult(w, h.logger, http.StatusOK, res, err)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "propID")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	res, err := h.service.Delete(r.Context(), id)
	httpx.RespondResult(w, h.logger, http.StatusOK, res, err)
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "propID")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var in ResolveInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	res, err := h.service.Resolve(r.Context(), id, in)
	httpx.RespondResult(w, h.logger, http.StatusOK, res, err)
}

func (h *Handler) unresolve(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "propID")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	res, err := h.service.Unresolve(r.Context(), id)
	httpx.RespondResult(w, h.logger, http.StatusOK, res, err)
}
