package suggestions

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/forecast-tournament/forecast/internal/platform/httpx"
	"github.com/forecast-tournament/forecast/internal/rbac"
	"github.com/forecast-tournament/forecast/internal/shared"
)

// Handler serves the suggestion endpoints.
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

// MountRoutes registers /suggestions routes.
func (h *Handler) MountRoutes(r chi.Router) {
	guard := rbac.Middleware{Logger: h.logger}
	r.Get("/", h.list)
	r.Post("/", h.suggest)
	r.With(guard.RequireAdmin).Post("/{suggestionID}/approve", h.approve)
	r.With(guard.RequireAdmin).Delete("/{suggestionID}", h.reject)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.List(r.Context(), shared.PageFromQuery(r.URL.Query()))
	httpx.RespondResult(w, h.logger, http.StatusOK, res, err)
}

func (h *Handler) suggest(w http.ResponseWriter, r *http.Request) {
	var in SuggestInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	res, err := h.service.Suggest(r.Context(), in)
	httpx.RespondResult(w, h.logger, http.StatusCreated, res, err)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "suggestionID")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var in ApproveInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	res, err := h.service.Approve(r.Context(), id, in)
	httpx.RespondResult(w, h.logger, http.StatusCreated, res, err)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "suggestionID")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	res, err := h.service.Reject(r.Context(), id)
	httpx.RespondResult(w, h.logger, http.StatusOK, res, err)
}
