package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/flower-app/flower/internal/http/middleware"
	"github.com/flower-app/flower/internal/httputil"
	"github.com/flower-app/flower/pkg/auth"
	"github.com/flower-app/flower/pkg/domain"
)

// UserGetter loads the account behind a session so refreshed access
// tokens carry current claims.
type UserGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// Handler handles session endpoints.
type Handler struct {
	logger         *slog.Logger
	sessionService *auth.SessionService
	users          UserGetter
}

// NewHandler creates a new session handler.
func NewHandler(logger *slog.Logger, sessionService *auth.SessionService, users UserGetter) *Handler {
	return &Handler{logger: logger, sessionService: sessionService, users: users}
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh rotates a refresh token into a new token pair.
// POST /v1/auth/refresh
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		httputil.Error(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	userID, err := h.sessionService.SessionUserID(r.Context(), req.RefreshToken)
	if err != nil {
		h.writeSessionError(w, err)
		return
	}

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		h.logger.Error("refresh: loading user failed", "error", err, "user_id", userID)
		httputil.Error(w, http.StatusInternalServerError, "refresh failed")
		return
	}

	tokens, err := h.sessionService.RefreshSession(r.Context(), req.RefreshToken, user, domain.SessionMetadata{
		IP:        r.RemoteAddr,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.writeSessionError(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, tokens)
}

// Logout revokes the presented refresh token.
// POST /v1/auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		httputil.Error(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	if err := h.sessionService.RevokeSession(r.Context(), req.RefreshToken); err != nil {
		h.logger.Error("logout failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "logout failed")
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// LogoutAll revokes every session of the authenticated user.
// POST /v1/auth/logout/all
func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if err := h.sessionService.RevokeAllSessions(r.Context(), userID); err != nil {
		h.logger.Error("logout all failed", "error", err, "user_id", userID)
		httputil.Error(w, http.StatusInternalServerError, "logout failed")
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]string{"status": "all sessions revoked"})
}

func (h *Handler) writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrSessionExpired),
		errors.Is(err, domain.ErrSessionRevoked):
		httputil.Error(w, http.StatusUnauthorized, "invalid or expired session")
	default:
		h.logger.Error("session operation failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "session operation failed")
	}
}
