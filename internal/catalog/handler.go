package catalog

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/forecast-tournament/forecast/internal/platform/httpx"
)

// Handler serves the catalog endpoints.
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

// MountCategories registers /categories routes.
func (h *Handler) MountCategories(r chi.Router) {
	r.Get("/", h.listCategories)
	r.Post("/", h.createCategory)
}

// MountCompetitions registers /competitions routes.
func (h *Handler) MountCompetitions(r chi.Router) {
	r.Get("/", h.listCompetitions)
	r.Post("/", h.createCompetition)
	r.Get("/{competitionID}", h.getCompetition)
	r.Patch("/{competitionID}", h.updateCompetition)
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.ListCategories(r.Context())
	httpx.RespondResult(w, h.logger, http.StatusOK, res, err)
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	var in CategoryInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	res, err := h.service.CreateCategory(r.Context(), in)
	httpx.RespondResult(w, h.logger, http.StatusCreated, res, err)
}

func (h *Handler) listCompetitions(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.ListCompetitions(r.Context())
	httpx.RespondResult(w, h.logger, http.StatusOK, res, err)
}

func (h *Handler) getCompetition(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "competitionID")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	res, err := h.service.GetCompetition(r.Context(), id)
	httpx.RespondResult(w, h.logger, http.StatusOK, res, err)
}

func (h *Handler) createCompetition(w http.ResponseWriter, r *http.Request) {
	var in CompetitionInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	res, err := h.service.CreateCompetition(r.Context(), in)
	httpx.RespondResult(w, h.logger, http.StatusCreated, res, err)
}

func (h *Handler) updateCompetition(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "competitionID")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var patch CompetitionPatch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	res, err := h.service.UpdateCompetition(r.Context(), id, patch)
	httpx.RespondResult(w, h.logger, http.StatusOK, res, err)
}
