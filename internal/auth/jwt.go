package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken is returned when the token is invalid
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when the token has expired
	ErrExpiredToken = errors.New("token has expired")
	// ErrInvalidClaims is returned when the token claims are invalid
	ErrInvalidClaims = errors.New("invalid token claims")
)

// Claims represents the JWT claims for user authentication
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// JWTConfig holds configuration for JWT token generation and validation
type JWTConfig struct {
	Secret        string
	Expiry        time.Duration
	Issuer        string
	SigningMethod jwt.SigningMethod
}

// DefaultJWTConfig returns a default JWT configuration
func DefaultJWTConfig(secret string) *JWTConfig {
	return &JWTConfig{
		Secret:        secret,
		Expiry:        24 * time.Hour,
		Issuer:        "memoryd",
		SigningMethod: jwt.SigningMethodHS256,
	}
}

// JWTManager handles JWT token generation and validation
type JWTManager struct {
	config *JWTConfig
}

// NewJWTManager creates a new JWT manager with the given configuration
func NewJWTManager(config *JWTConfig) *JWTManager {
	if config.SigningMethod == nil {
		config.SigningMethod = jwt.SigningMethodHS256
	}
	return &JWTManager{config: config}
}

// GenerateToken generates a JWT token for the given user
func (m *JWTManager) GenerateToken(userID string) (string, error) {
	return m.GenerateTokenWithExpiry(userID, m.config.Expiry)
}

// GenerateTokenWithExpiry generates a JWT token with a custom expiry duration
func (m *JWTManager) GenerateTokenWithExpiry(userID string, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    m.config.Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			NotBefore: jwt.NewNumericDate(now),
		},
		UserID: userID,
	}

	token := jwt.NewWithClaims(m.config.SigningMethod, claims)
	return token.SignedString([]byte(m.config.Secret))
}

// ValidateToken validates a JWT token and returns the claims
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Verify the signing method
		if token.Method.Alg() != m.config.SigningMethod.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.config.Secret), nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	if claims.UserID == "" {
		return nil, ErrInvalidClaims
	}

	return claims, nil
}

// RefreshToken creates a new token based on an existing valid token
func (m *JWTManager) RefreshToken(tokenString string) (string, error) {
	claims, err := m.ValidateToken(tokenString)
	if err != nil {
		// Allow refreshing tokens that are expired but otherwise valid
		if !errors.Is(err, ErrExpiredToken) {
			return "", err
		}
		// Re-parse to get the claims even if expired
		token, _ := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
			return []byte(m.config.Secret), nil
		}, jwt.WithoutClaimsValidation())
		if token == nil {
			return "", ErrInvalidToken
		}
		var ok bool
		claims, ok = token.Claims.(*Claims)
		if !ok {
			return "", ErrInvalidClaims
		}
	}

	if claims.UserID == "" {
		return "", ErrInvalidClaims
	}
	return m.GenerateToken(claims.UserID)
}
