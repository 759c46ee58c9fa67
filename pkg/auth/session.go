package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/flower-app/flower/pkg/domain"
)

// Token lifetimes.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour

	refreshTokenLen = 32
)

// SessionStore is the session persistence needed by the session service.
type SessionStore interface {
	Create(ctx context.Context, session *domain.Session) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error)
	RevokeByTokenHash(ctx context.Context, tokenHash string) error
	RevokeAllByUserID(ctx context.Context, userID uuid.UUID) error
	UpdateLastSeen(ctx context.Context, id uuid.UUID) error
}

// AccessTokenClaims are the JWT claims carried by access tokens.
type AccessTokenClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Username      string `json:"username"`
}

// SessionService issues and validates token pairs: short-lived JWT access
// tokens plus opaque refresh tokens persisted as sessions.
type SessionService struct {
	sessions   SessionStore
	jwtSecret  []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewSessionService creates a session service. Zero TTLs fall back to the
// defaults.
func NewSessionService(sessions SessionStore, jwtSecret []byte, issuer string, accessTTL, refreshTTL time.Duration) *SessionService {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTokenTTL
	}
	return &SessionService{
		sessions:   sessions,
		jwtSecret:  jwtSecret,
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// IssueSession creates a session for an authenticated user and returns its
// token pair. The refresh token is stored hashed.
func (s *SessionService) IssueSession(ctx context.Context, user *domain.User, meta domain.SessionMetadata) (*domain.TokenPair, error) {
	refreshToken, err := GenerateToken(refreshTokenLen)
	if err != nil {
		return nil, fmt.Errorf("generating refresh token: %w", err)
	}

	metadata, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encoding session metadata: %w", err)
	}

	now := time.Now()
	session := &domain.Session{
		ID:        uuid.New(),
		UserID:    user.ID,
		TokenHash: HashToken(refreshToken),
		CreatedAt: now,
		ExpiresAt: now.Add(s.refreshTTL),
		Metadata:  metadata,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	accessToken, expiresAt, err := s.signAccessToken(user, now)
	if err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.accessTTL.Seconds()),
		ExpiresAt:    expiresAt,
	}, nil
}

// RefreshSession rotates a refresh token: the presented session is revoked
// and a new session is issued. The caller supplies the current user record
// so refreshed access tokens carry up-to-date claims.
func (s *SessionService) RefreshSession(ctx context.Context, refreshToken string, user *domain.User, meta domain.SessionMetadata) (*domain.TokenPair, error) {
	session, err := s.lookupSession(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if session.UserID != user.ID {
		return nil, domain.ErrSessionNotFound
	}

	if err := s.sessions.RevokeByTokenHash(ctx, session.TokenHash); err != nil {
		return nil, fmt.Errorf("revoking session: %w", err)
	}
	return s.IssueSession(ctx, user, meta)
}

// SessionUserID resolves a refresh token to the owning user ID, updating
// the session's last-seen time.
func (s *SessionService) SessionUserID(ctx context.Context, refreshToken string) (uuid.UUID, error) {
	session, err := s.lookupSession(ctx, refreshToken)
	if err != nil {
		return uuid.Nil, err
	}
	if err := s.sessions.UpdateLastSeen(ctx, session.ID); err != nil {
		return uuid.Nil, fmt.Errorf("updating last seen: %w", err)
	}
	return session.UserID, nil
}

// RevokeSession revokes the session behind a refresh token. Revoking an
// unknown token is not an error.
func (s *SessionService) RevokeSession(ctx context.Context, refreshToken string) error {
	return s.sessions.RevokeByTokenHash(ctx, HashToken(refreshToken))
}

// RevokeAllSessions revokes every session of a user.
func (s *SessionService) RevokeAllSessions(ctx context.Context, userID uuid.UUID) error {
	return s.sessions.RevokeAllByUserID(ctx, userID)
}

// ValidateAccessToken parses and verifies an access token, returning its
// claims.
func (s *SessionService) ValidateAccessToken(tokenString string) (*AccessTokenClaims, error) {
	claims := &AccessTokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, domain.ErrInvalidToken
	}
	return claims, nil
}

func (s *SessionService) lookupSession(ctx context.Context, refreshToken string) (*domain.Session, error) {
	session, err := s.sessions.GetByTokenHash(ctx, HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("getting session: %w", err)
	}
	if !session.IsValid() {
		if session.RevokedAt != nil {
			return nil, domain.ErrSessionRevoked
		}
		return nil, domain.ErrSessionExpired
	}
	return session, nil
}

func (s *SessionService) signAccessToken(user *domain.User, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(s.accessTTL)
	claims := &AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email:         user.Email,
		EmailVerified: user.EmailVerified,
		Username:      user.Username,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing access token: %w", err)
	}
	return signed, expiresAt, nil
}
