package email

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/flower-app/flower/internal/http/middleware"
	"github.com/flower-app/flower/internal/httputil"
	"github.com/flower-app/flower/pkg/auth"
	"github.com/flower-app/flower/pkg/domain"
)

// UserGetter loads accounts for the resend flow.
type UserGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// Sender sends verification email.
type Sender interface {
	SendVerificationEmail(to, verifyURL string) error
}

// Handler handles email verification endpoints.
type Handler struct {
	logger              *slog.Logger
	verificationService *auth.VerificationService
	emailService        Sender
	users               UserGetter
	appBaseURL          string
}

// NewHandler creates a new email verification handler.
func NewHandler(
	logger *slog.Logger,
	verificationService *auth.VerificationService,
	emailService Sender,
	users UserGetter,
	appBaseURL string,
) *Handler {
	return &Handler{
		logger:              logger,
		verificationService: verificationService,
		emailService:        emailService,
		users:               users,
		appBaseURL:          appBaseURL,
	}
}

type verifyRequest struct {
	Token string `json:"token"`
}

// Verify consumes an emailed verification token and marks the account's
// email verified.
// POST /v1/auth/email/verify
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		httputil.Error(w, http.StatusBadRequest, "token is required")
		return
	}

	userID, err := h.verificationService.VerifyEmailToken(r.Context(), req.Token)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrVerificationTokenInvalid):
			httputil.Error(w, http.StatusBadRequest, "invalid verification token")
		case errors.Is(err, domain.ErrVerificationTokenExpired):
			httputil.Error(w, http.StatusBadRequest, "verification token expired")
		case errors.Is(err, domain.ErrVerificationTokenConsumed):
			httputil.Error(w, http.StatusBadRequest, "verification token already used")
		default:
			h.logger.Error("email verification failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "verification failed")
		}
		return
	}

	h.logger.Info("email verified", "user_id", userID)
	httputil.JSON(w, http.StatusOK, map[string]string{"status": "email verified"})
}

// Resend issues a fresh verification token for the authenticated user and
// emails it. Responds 200 even when the account is already verified.
// POST /v1/auth/email/resend
func (h *Handler) Resend(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		h.logger.Error("resend: loading user failed", "error", err, "user_id", userID)
		httputil.Error(w, http.StatusInternalServerError, "resend failed")
		return
	}
	if user.EmailVerified {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "already verified"})
		return
	}

	token, err := h.verificationService.CreateEmailVerificationToken(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("resend: creating token failed", "error", err, "user_id", userID)
		httputil.Error(w, http.StatusInternalServerError, "resend failed")
		return
	}

	verifyURL := fmt.Sprintf("%s/auth/verify-email?token=%s", h.appBaseURL, token)
	if err := h.emailService.SendVerificationEmail(user.Email, verifyURL); err != nil {
		h.logger.Error("resend: sending email failed", "error", err, "user_id", userID)
		httputil.Error(w, http.StatusInternalServerError, "resend failed")
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"status": "verification email sent"})
}
