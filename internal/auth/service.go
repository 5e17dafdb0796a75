package auth

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// TokenPair is the credential material handed to a client after login
// or refresh.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Service wraps authentication business rules: credential checks,
// token issuance and refresh rotation.
type Service struct {
	repo     Repository
	issuer   *TokenIssuer
	registry *CredentialRegistry
}

// NewService constructs a new Service.
func NewService(repo Repository, issuer *TokenIssuer, registry *CredentialRegistry) *Service {
	return &Service{repo: repo, issuer: issuer, registry: registry}
}

// Login validates email/password credentials and issues a token pair.
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return TokenPair{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return TokenPair{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return TokenPair{}, ErrInvalidCredentials
	}
	return s.issuePair(ctx, *user)
}

// Refresh rotates the refresh credential and issues a new token pair.
// The access token embeds the user's permissions as they stand now, so
// refresh is also the moment role changes become visible.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	userID, jti, err := s.issuer.ParseRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, ErrInvalidCredentials
	}
	active, err := s.registry.Active(ctx, jti)
	if err != nil {
		return TokenPair{}, fmt.Errorf("auth: registry lookup: %w", err)
	}
	if !active {
		return TokenPair{}, ErrInvalidCredentials
	}
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return TokenPair{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return TokenPair{}, ErrInvalidCredentials
	}
	if err := s.registry.Revoke(ctx, jti); err != nil {
		return TokenPair{}, fmt.Errorf("auth: revoke rotated credential: %w", err)
	}
	return s.issuePair(ctx, *user)
}

// Logout invalidates the refresh credential. Outstanding access
// tokens keep working until they expire.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	_, jti, err := s.issuer.ParseRefreshToken(refreshToken)
	if err != nil {
		return ErrInvalidCredentials
	}
	return s.registry.Revoke(ctx, jti)
}

func (s *Service) issuePair(ctx context.Context, user User) (TokenPair, error) {
	access, _, err := s.issuer.IssueAccessToken(ctx, user)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, jti, err := s.issuer.IssueRefreshToken(user)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.registry.Register(ctx, jti, user.ID); err != nil {
		return TokenPair{}, fmt.Errorf("auth: register credential: %w", err)
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    time.Now().Add(s.issuer.AccessTTL()),
	}, nil
}
