package password

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/flower-app/flower/internal/httputil"
	"github.com/flower-app/flower/internal/notification"
	"github.com/flower-app/flower/pkg/auth"
	"github.com/flower-app/flower/pkg/domain"
)

// Handler handles password authentication endpoints.
type Handler struct {
	logger              *slog.Logger
	passwordService     *auth.PasswordService
	sessionService      *auth.SessionService
	verificationService *auth.VerificationService
	emailService        *notification.EmailService
	appBaseURL          string
}

// NewHandler creates a new password handler.
func NewHandler(
	logger *slog.Logger,
	passwordService *auth.PasswordService,
	sessionService *auth.SessionService,
	verificationService *auth.VerificationService,
	emailService *notification.EmailService,
	appBaseURL string,
) *Handler {
	return &Handler{
		logger:              logger,
		passwordService:     passwordService,
		sessionService:      sessionService,
		verificationService: verificationService,
		emailService:        emailService,
		appBaseURL:          appBaseURL,
	}
}

// RegisterRequest represents a registration request.
type RegisterRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// LoginRequest represents a login request. Identifier is a username or an
// email address.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// UserResponse is the account shape returned by auth endpoints.
type UserResponse struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Username      string `json:"username"`
	EmailVerified bool   `json:"email_verified"`
}

// AuthResponse carries the account and its token pair.
type AuthResponse struct {
	User   UserResponse      `json:"user"`
	Tokens *domain.TokenPair `json:"tokens"`
}

func userResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:            user.ID.String(),
		Email:         user.Email,
		Username:      user.Username,
		EmailVerified: user.EmailVerified,
	}
}

// Register handles user registration.
// POST /v1/auth/password/register
//
// Validation and conflict errors carry a "field" and "region"
// discriminator so the client shows exactly one message per form region.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.passwordService.Register(r.Context(), req.Username, req.Email, req.Password, req.ConfirmPassword)
	if err != nil {
		var verr *auth.ValidationError
		switch {
		case errors.As(err, &verr):
			httputil.FieldError(w, http.StatusBadRequest, verr.Field, verr.Region(), verr.Err.Error())
		case errors.Is(err, domain.ErrUsernameTaken):
			httputil.FieldError(w, http.StatusConflict, "username", auth.RegionBasicInfo, "username already taken")
		case errors.Is(err, domain.ErrEmailAlreadyInUse):
			httputil.FieldError(w, http.StatusConflict, "email", auth.RegionBasicInfo, "email already in use")
		case errors.Is(err, domain.ErrInvalidEmail):
			httputil.FieldError(w, http.StatusBadRequest, "email", auth.RegionBasicInfo, "invalid email address")
		default:
			h.logger.Error("registration failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "registration failed")
		}
		return
	}

	tokens, err := h.sessionService.IssueSession(r.Context(), user, domain.SessionMetadata{
		IP:        r.RemoteAddr,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.logger.Error("failed to issue session", "error", err, "user_id", user.ID)
		httputil.Error(w, http.StatusInternalServerError, "failed to issue session")
		return
	}

	// The account is committed; a failed email here is logged and
	// recoverable through the resend endpoint.
	h.sendVerificationEmail(r, user)

	httputil.JSON(w, http.StatusCreated, AuthResponse{User: userResponse(user), Tokens: tokens})
}

// Login handles user login by username or email.
// POST /v1/auth/password/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Identifier == "" || req.Password == "" {
		httputil.Error(w, http.StatusBadRequest, "identifier and password are required")
		return
	}

	user, err := h.passwordService.Authenticate(r.Context(), req.Identifier, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCredentials):
			httputil.Error(w, http.StatusUnauthorized, "invalid username/email or password")
		case errors.Is(err, domain.ErrUserDisabled):
			httputil.Error(w, http.StatusForbidden, "account disabled")
		case errors.Is(err, domain.ErrTooManyAttempts):
			httputil.Error(w, http.StatusForbidden, "too many failed attempts. please try again later")
		default:
			h.logger.Error("login failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "login failed")
		}
		return
	}

	tokens, err := h.sessionService.IssueSession(r.Context(), user, domain.SessionMetadata{
		IP:        r.RemoteAddr,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.logger.Error("failed to issue session", "error", err, "user_id", user.ID)
		httputil.Error(w, http.StatusInternalServerError, "failed to issue session")
		return
	}

	httputil.JSON(w, http.StatusOK, AuthResponse{User: userResponse(user), Tokens: tokens})
}

func (h *Handler) sendVerificationEmail(r *http.Request, user *domain.User) {
	if h.emailService == nil || h.verificationService == nil {
		return
	}
	token, err := h.verificationService.CreateEmailVerificationToken(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed to create verification token", "error", err, "user_id", user.ID)
		return
	}
	verifyURL := fmt.Sprintf("%s/auth/verify-email?token=%s", h.appBaseURL, token)
	if err := h.emailService.SendVerificationEmail(user.Email, verifyURL); err != nil {
		h.logger.Error("failed to send verification email", "error", err, "user_id", user.ID)
		return
	}
	h.logger.Info("verification email sent", "user_id", user.ID)
}
