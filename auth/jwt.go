package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// JWTConfig configures token issuance.
type JWTConfig struct {
	Secret     string        `yaml:"secret" json:"-"`
	Issuer     string        `yaml:"issuer" json:"issuer"`
	AccessTTL  time.Duration `yaml:"access_ttl" json:"access_ttl"`
	RefreshTTL time.Duration `yaml:"refresh_ttl" json:"refresh_ttl"`
}

// DefaultJWTConfig returns the default token configuration.
func DefaultJWTConfig() JWTConfig {
	return JWTConfig{
		Issuer:     "arogya",
		AccessTTL:  30 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}
}

// ErrInvalidToken covers expired, malformed and mis-signed tokens.
var ErrInvalidToken = errors.New("auth: invalid token")

// Claims is the access-token payload.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 access tokens.
type TokenManager struct {
	config JWTConfig
	secret []byte
}

// NewTokenManager builds a token manager. An empty secret is replaced with a
// random one and logged loudly; production must configure JWT_SECRET_KEY.
func NewTokenManager(config JWTConfig, logger *zap.Logger) *TokenManager {
	if config.Secret == "" {
		raw := make([]byte, 32)
		_, _ = rand.Read(raw)
		config.Secret = hex.EncodeToString(raw)
		logger.Warn("JWT_SECRET_KEY not set, generated an ephemeral secret; tokens will not survive restarts")
	}
	if config.AccessTTL <= 0 {
		config.AccessTTL = 30 * time.Minute
	}
	if config.RefreshTTL <= 0 {
		config.RefreshTTL = 7 * 24 * time.Hour
	}
	return &TokenManager{config: config, secret: []byte(config.Secret)}
}

// IssueAccessToken mints an access token for a user.
func (m *TokenManager) IssueAccessToken(userID, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.AccessTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// VerifyAccessToken parses and validates an access token.
func (m *TokenManager) VerifyAccessToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// NewRefreshToken generates an opaque refresh token string.
func NewRefreshToken() string {
	raw := make([]byte, 32)
	_, _ = rand.Read(raw)
	return hex.EncodeToString(raw)
}

// RefreshTTL exposes the configured refresh lifetime.
func (m *TokenManager) RefreshTTL() time.Duration { return m.config.RefreshTTL }
