package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arogyahq/arogya/internal/database"
	"github.com/arogyahq/arogya/store"
)

var (
	// ErrEmailTaken reports a registration conflict.
	ErrEmailTaken = errors.New("auth: email already registered")
	// ErrBadCredentials covers unknown email, wrong password, and
	// deactivated accounts without distinguishing them.
	ErrBadCredentials = errors.New("auth: invalid email or password")
)

// TokenPair is the login/refresh result.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// Service implements register, login, refresh and logout over the store.
type Service struct {
	store  *store.Store
	tokens *TokenManager
	config JWTConfig
	logger *zap.Logger
}

// NewService wires the auth service.
func NewService(st *store.Store, tokens *TokenManager, config JWTConfig, logger *zap.Logger) *Service {
	return &Service{
		store:  st,
		tokens: tokens,
		config: config,
		logger: logger.With(zap.String("component", "auth")),
	}
}

// Register creates an account. Email is normalized to lowercase.
func (s *Service) Register(ctx context.Context, email, password string) (*database.Customer, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := CheckPasswordPolicy(password); err != nil {
		return nil, err
	}
	if existing, err := s.store.GetCustomerByEmail(ctx, email); err == nil && existing != nil {
		return nil, ErrEmailTaken
	}
	digest, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	customer := &database.Customer{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: digest,
		Role:         "user",
		IsActive:     true,
	}
	if err := s.store.CreateCustomer(ctx, customer); err != nil {
		return nil, err
	}
	s.logger.Info("customer registered", zap.String("customer_id", customer.ID))
	return customer, nil
}

// Login verifies credentials and issues a token pair.
func (s *Service) Login(ctx context.Context, email, password string) (*TokenPair, *database.Customer, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	customer, err := s.store.GetCustomerByEmail(ctx, email)
	if err != nil || customer == nil || !customer.IsActive {
		return nil, nil, ErrBadCredentials
	}
	if !VerifyPassword(customer.PasswordHash, password) {
		return nil, nil, ErrBadCredentials
	}

	pair, err := s.issuePair(ctx, customer)
	if err != nil {
		return nil, nil, err
	}
	if err := s.store.TouchLastLogin(ctx, customer.ID); err != nil {
		s.logger.Warn("last-login update failed", zap.Error(err))
	}
	return pair, customer, nil
}

// Refresh exchanges a live refresh token for a new pair and rotates the old
// one.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	record, err := s.store.GetRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	customer, err := s.store.GetCustomer(ctx, record.CustomerID)
	if err != nil || !customer.IsActive {
		return nil, ErrInvalidToken
	}
	if err := s.store.RevokeRefreshToken(ctx, refreshToken); err != nil {
		s.logger.Warn("refresh token revocation failed", zap.Error(err))
	}
	return s.issuePair(ctx, customer)
}

// Logout revokes a refresh token. Unknown tokens are a no-op.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	return s.store.RevokeRefreshToken(ctx, refreshToken)
}

// Verify validates an access token.
func (s *Service) Verify(tokenString string) (*Claims, error) {
	return s.tokens.VerifyAccessToken(tokenString)
}

func (s *Service) issuePair(ctx context.Context, customer *database.Customer) (*TokenPair, error) {
	access, err := s.tokens.IssueAccessToken(customer.ID, customer.Role)
	if err != nil {
		return nil, err
	}
	refresh := NewRefreshToken()
	if err := s.store.SaveRefreshToken(ctx, &database.RefreshToken{
		ID:         uuid.NewString(),
		Token:      refresh,
		CustomerID: customer.ID,
		ExpiresAt:  time.Now().Add(s.tokens.RefreshTTL()),
	}); err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int(s.config.AccessTTL.Seconds()),
	}, nil
}
