package me

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/flower-app/flower/internal/http/middleware"
	"github.com/flower-app/flower/internal/httputil"
	"github.com/flower-app/flower/pkg/directory"
	"github.com/flower-app/flower/pkg/domain"
)

// UserGetter loads the authenticated account.
type UserGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// Handler handles the authenticated profile endpoint.
type Handler struct {
	logger    *slog.Logger
	users     UserGetter
	profiles  directory.ProfileStore
	directory *directory.Service
	names     *directory.NameCache
}

// NewHandler creates a new me handler.
func NewHandler(logger *slog.Logger, users UserGetter, profiles directory.ProfileStore, dir *directory.Service, names *directory.NameCache) *Handler {
	return &Handler{
		logger:    logger,
		users:     users,
		profiles:  profiles,
		directory: dir,
		names:     names,
	}
}

// MeResponse is the authenticated account shape.
type MeResponse struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Username      string `json:"username"`
	EmailVerified bool   `json:"email_verified"`
}

// GetMe returns the authenticated account. It also backfills the
// account's profile and directory entries if an interrupted registration
// left them missing; those writes are best-effort and never fail the
// request.
// GET /v1/me
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			httputil.Error(w, http.StatusNotFound, "user not found")
			return
		}
		h.logger.Error("loading user failed", "error", err, "user_id", userID)
		httputil.Error(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	h.heal(r.Context(), user)
	h.names.Prime(user.ID, user.Username)

	httputil.JSON(w, http.StatusOK, MeResponse{
		ID:            user.ID.String(),
		Email:         user.Email,
		Username:      user.Username,
		EmailVerified: user.EmailVerified,
	})
}

func (h *Handler) heal(ctx context.Context, user *domain.User) {
	if _, err := h.profiles.Get(ctx, user.ID); errors.Is(err, domain.ErrUserNotFound) {
		if err := h.profiles.Upsert(ctx, &domain.Profile{UserID: user.ID, Username: user.Username}); err != nil {
			h.logger.Warn("profile backfill failed", "error", err, "user_id", user.ID)
		}
	} else if err != nil {
		h.logger.Warn("profile check failed", "error", err, "user_id", user.ID)
	}

	if err := h.directory.Heal(ctx, user); err != nil {
		h.logger.Warn("directory backfill failed", "error", err, "user_id", user.ID)
	}
}
