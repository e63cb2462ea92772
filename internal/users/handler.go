package users

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/forecast-tournament/forecast/internal/platform/httpx"
	"github.com/forecast-tournament/forecast/internal/rbac"
	"github.com/forecast-tournament/forecast/internal/shared"
)

// Handler manages user profile endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	guard := rbac.Middleware{Logger: h.logger}
	r.With(guard.RequireAdmin).Get("/", h.listUsers)
	r.Get("/me", h.getMe)
	r.Patch("/{userID}", h.updateProfile)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.List(r.Context(), shared.PageFromQuery(r.URL.Query()))
	httpx.RespondResult(w, h.logger, http.StatusOK, res, err)
}

func (h *Handler) getMe(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.GetMe(r.Context())
	httpx.RespondResult(w, h.logger, http.StatusOK, res, err)
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "userID")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var changes map[string]json.RawMessage
	if err := httpx.DecodeJSON(r, &changes); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	res, err := h.service.UpdateProfile(r.Context(), id, changes)
	httpx.RespondResult(w, h.logger, http.StatusOK, res, err)
}
