package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/forecast-tournament/forecast/internal/shared"
)

// Service wraps password sign-in and sign-out.
type Service struct {
	repo     Repository
	signer   *TokenSigner
	sessions *SessionStore
	mode     string
	logger   *slog.Logger
}

// NewService constructs a Service. mode selects the credential issued on
// sign-in: ModeToken or ModeSession.
func NewService(repo Repository, signer *TokenSigner, sessions *SessionStore, mode string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if mode != ModeSession {
		mode = ModeToken
	}
	return &Service{repo: repo, signer: signer, sessions: sessions, mode: mode, logger: logger}
}

// NormalizeUsername applies NFKC and case folding so visually equal
// usernames compare equal.
func NormalizeUsername(username string) string {
	return cases.Fold().String(norm.NFKC.String(strings.TrimSpace(username)))
}

// Authenticate validates username/password credentials and resolves the
// user behind the login.
func (s *Service) Authenticate(ctx context.Context, username, password string) (int64, *shared.Actor, error) {
	creds, err := s.repo.Credentials(ctx, NormalizeUsername(username))
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			return 0, nil, shared.ErrInvalidCredentials
		}
		return 0, nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(password)); err != nil {
		return 0, nil, shared.ErrInvalidCredentials
	}
	actor, err := s.repo.ActorForLogin(ctx, creds.LoginID)
	if err != nil {
		if errors.Is(err, ErrUnknownLogin) {
			return 0, nil, shared.ErrInvalidCredentials
		}
		return 0, nil, err
	}
	return creds.LoginID, actor, nil
}

// Login authenticates and writes the credential cookie. It returns the actor
// and the raw credential for CSRF binding.
func (s *Service) Login(ctx context.Context, w http.ResponseWriter, r *http.Request, username, password string) (*shared.Actor, string, error) {
	loginID, actor, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return nil, "", err
	}

	var credential, sessionID string
	expiresAt := s.signer.now().Add(s.signer.ttl)
	switch s.mode {
	case ModeSession:
		id, err := s.sessions.Create(ctx, loginID)
		if err != nil {
			return nil, "", err
		}
		s.sessions.SetCookie(w, id)
		credential, sessionID = id, id
		expiresAt = s.sessions.now().Add(s.sessions.TTL())
	default:
		tok, err := s.signer.Issue(loginID)
		if err != nil {
			return nil, "", err
		}
		s.signer.SetCookie(w, tok)
		credential, sessionID, expiresAt = tok.Value, tok.ID, tok.ExpiresAt
	}

	if err := s.repo.CreateSession(ctx, actor.ID, sessionID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
		s.logger.Warn("register session", slog.Any("error", err))
	}
	return actor, credential, nil
}

// Logout clears every credential cookie and drops the server-side records
// of the presented credential.
func (s *Service) Logout(ctx context.Context, w http.ResponseWriter, r *http.Request, actor *shared.Actor) error {
	var sessionID string
	if id := cookieValue(r, SessionCookie); id != "" {
		sessionID = id
		if err := s.sessions.Destroy(ctx, id); err != nil {
			return fmt.Errorf("auth: destroy session: %w", err)
		}
	} else if raw := cookieValue(r, TokenCookie); raw != "" {
		if claims, err := s.signer.Verify(raw); err == nil {
			sessionID = claims.ID
		}
	}
	if actor != nil && sessionID != "" {
		if err := s.repo.DeleteSession(ctx, actor.ID, sessionID); err != nil {
			s.logger.Warn("remove session", slog.Any("error", err))
		}
	}
	clearCookie(w, TokenCookie, s.signer.secure)
	clearCookie(w, SessionCookie, s.sessions.secure)
	clearCookie(w, ImpersonationCookie, s.signer.secure)
	return nil
}
