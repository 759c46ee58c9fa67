package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/flower-app/flower/pkg/domain"
)

const (
	verificationTokenLen = 32
	verificationTokenTTL = 24 * time.Hour
)

// TokenStore is the verification token persistence needed by the
// verification service.
type TokenStore interface {
	Create(ctx context.Context, token *domain.VerificationToken) error
	GetByTokenHash(ctx context.Context, tokenHash string, kind domain.VerificationTokenKind) (*domain.VerificationToken, error)
	Consume(ctx context.Context, id uuid.UUID) error
	RevokeActiveByUser(ctx context.Context, userID uuid.UUID, kind domain.VerificationTokenKind) error
}

// VerifiedUserStore is the user persistence needed to flip the verified flag.
type VerifiedUserStore interface {
	SetEmailVerified(ctx context.Context, userID uuid.UUID) error
}

// VerificationService issues and redeems email verification tokens.
type VerificationService struct {
	tokens TokenStore
	users  VerifiedUserStore
}

// NewVerificationService creates a verification service.
func NewVerificationService(tokens TokenStore, users VerifiedUserStore) *VerificationService {
	return &VerificationService{tokens: tokens, users: users}
}

// CreateEmailVerificationToken issues a fresh verification token for a user
// and returns its raw value for delivery by email. Any older outstanding
// token is invalidated first, so only the latest email works.
func (s *VerificationService) CreateEmailVerificationToken(ctx context.Context, userID uuid.UUID) (string, error) {
	if err := s.tokens.RevokeActiveByUser(ctx, userID, domain.TokenKindEmailVerification); err != nil {
		return "", fmt.Errorf("revoking outstanding tokens: %w", err)
	}

	raw, err := GenerateToken(verificationTokenLen)
	if err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}

	now := time.Now()
	err = s.tokens.Create(ctx, &domain.VerificationToken{
		ID:        uuid.New(),
		UserID:    userID,
		TokenHash: HashToken(raw),
		Kind:      domain.TokenKindEmailVerification,
		CreatedAt: now,
		ExpiresAt: now.Add(verificationTokenTTL),
	})
	if err != nil {
		return "", fmt.Errorf("storing token: %w", err)
	}
	return raw, nil
}

// VerifyEmailToken redeems a raw verification token and marks the owning
// account's email as verified. Each token redeems at most once.
func (s *VerificationService) VerifyEmailToken(ctx context.Context, raw string) (uuid.UUID, error) {
	token, err := s.tokens.GetByTokenHash(ctx, HashToken(raw), domain.TokenKindEmailVerification)
	if err != nil {
		return uuid.Nil, err
	}
	if token.ConsumedAt != nil {
		return uuid.Nil, domain.ErrVerificationTokenConsumed
	}
	if !token.IsValid() {
		return uuid.Nil, domain.ErrVerificationTokenExpired
	}

	if err := s.tokens.Consume(ctx, token.ID); err != nil {
		return uuid.Nil, err
	}
	if err := s.users.SetEmailVerified(ctx, token.UserID); err != nil {
		return uuid.Nil, fmt.Errorf("marking email verified: %w", err)
	}
	return token.UserID, nil
}
