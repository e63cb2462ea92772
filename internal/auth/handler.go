package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/forecast-tournament/forecast/internal/action"
	"github.com/forecast-tournament/forecast/internal/platform/httpx"
	"github.com/forecast-tournament/forecast/internal/rbac"
	"github.com/forecast-tournament/forecast/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger        *slog.Logger
	service       *Service
	resolver      *Resolver
	identities    IdentityStore
	impersonation *Impersonation
	csrf          *shared.CSRFManager
	validator     *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, resolver *Resolver, identities IdentityStore, impersonation *Impersonation, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:        logger,
		service:       service,
		resolver:      resolver,
		identities:    identities,
		impersonation: impersonation,
		csrf:          csrf,
		validator:     action.NewValidator(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	guard := rbac.Middleware{Logger: h.logger}
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/csrf", h.handleCSRF)
	r.With(guard.RequireRealAdmin).Post("/impersonate", h.handleImpersonate)
	r.With(guard.RequireRealAdmin).Delete("/impersonate", h.handleStopImpersonation)
}

type loginRequest struct {
	Username string `json:"username" validate:"required,max=200"`
	Password string `json:"password" validate:"required,min=8,max=200"`
}

// Session describes the signed-in actor.
type Session struct {
	UserID        int64  `json:"user_id"`
	IsAdmin       bool   `json:"is_admin"`
	Impersonating bool   `json:"impersonating,omitempty"`
	CSRFToken     string `json:"csrf_token,omitempty"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if res, ok := action.Validate[Session](h.validator, req); !ok {
		httpx.RespondResult(w, h.logger, http.StatusOK, res, nil)
		return
	}
	actor, credential, err := h.service.Login(r.Context(), w, r, req.Username, req.Password)
	if errors.Is(err, shared.ErrInvalidCredentials) {
		httpx.RespondResult(w, h.logger, http.StatusOK,
			action.Fail[Session](action.CodeUnauthenticated, "invalid username or password"), nil)
		return
	}
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.RespondResult(w, h.logger, http.StatusOK, action.Ok(Session{
		UserID:    actor.ID,
		IsAdmin:   actor.IsAdmin(),
		CSRFToken: h.csrf.TokenFor(credential),
	}), nil)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), w, r, shared.RealActorFromContext(r.Context())); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCSRF(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	credential, ok := h.resolver.Credential(r)
	if actor == nil || !ok {
		httpx.RespondResult(w, h.logger, http.StatusOK, action.Unauthenticated[Session](), nil)
		return
	}
	httpx.RespondResult(w, h.logger, http.StatusOK, action.Ok(Session{
		UserID:        actor.ID,
		IsAdmin:       actor.IsAdmin(),
		Impersonating: shared.Impersonating(r.Context()),
		CSRFToken:     h.csrf.TokenFor(credential),
	}), nil)
}

type impersonateRequest struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
}

func (h *Handler) handleImpersonate(w http.ResponseWriter, r *http.Request) {
	admin := shared.RealActorFromContext(r.Context())
	var req impersonateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if res, ok := action.Validate[Session](h.validator, req); !ok {
		httpx.RespondResult(w, h.logger, http.StatusOK, res, nil)
		return
	}
	target, err := h.identities.ActorForUser(r.Context(), admin.ID, req.UserID)
	if errors.Is(err, ErrUnknownLogin) {
		httpx.RespondResult(w, h.logger, http.StatusOK, action.NotFound[Session]("user"), nil)
		return
	}
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	h.impersonation.SetCookie(w, target.ID, admin.ID)
	h.logger.Info("impersonation started", slog.String("admin", admin.String()), slog.String("target", target.String()))
	httpx.RespondResult(w, h.logger, http.StatusOK, action.Ok(Session{
		UserID:        target.ID,
		IsAdmin:       target.IsAdmin(),
		Impersonating: target.ID != admin.ID,
	}), nil)
}

func (h *Handler) handleStopImpersonation(w http.ResponseWriter, r *http.Request) {
	h.impersonation.ClearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}
