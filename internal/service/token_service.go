package service

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/loandesk/loandesk/internal/config"
	"github.com/sirupsen/logrus"
)

// TokenService mints and verifies signed access tokens and generates
// the opaque refresh tokens exchanged through the session store.
type TokenService struct {
	secretKey         []byte
	accessExpiry      time.Duration
	refreshExpiry     time.Duration
	refreshTokenBytes int
	logger            *logrus.Logger
}

func NewTokenService(jwtCfg *config.JWTConfig, authCfg *config.AuthConfig, logger *logrus.Logger) (*TokenService, error) {
	secretKey := []byte(jwtCfg.SecretKey)
	if len(secretKey) < 32 {
		return nil, fmt.Errorf("secret key must be at least 32 bytes")
	}

	return &TokenService{
		secretKey:         secretKey,
		accessExpiry:      jwtCfg.AccessExpiry,
		refreshExpiry:     authCfg.RefreshExpiry,
		refreshTokenBytes: authCfg.RefreshTokenBytes,
		logger:            logger,
	}, nil
}

type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// GenerateAccessToken signs a short-lived access token for the user.
// The server never persists it; early invalidation goes through the
// blacklist.
func (s *TokenService) GenerateAccessToken(userID, email string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.accessExpiry)

	claims := &Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secretKey)
	if err != nil {
		s.logger.WithError(err).Error("Failed to sign access token")
		return "", time.Time{}, fmt.Errorf("failed to sign access token: %w", err)
	}

	return tokenString, expiresAt, nil
}

func (s *TokenService) VerifyAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}

// NewRefreshToken draws a fresh opaque token from crypto/rand. The
// default 40 bytes give 320 bits of entropy hex-encoded into 80 chars.
func (s *TokenService) NewRefreshToken() (string, time.Time, error) {
	buf := make([]byte, s.refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return hex.EncodeToString(buf), time.Now().Add(s.refreshExpiry), nil
}

func (s *TokenService) AccessExpiry() time.Duration {
	return s.accessExpiry
}

func (s *TokenService) RefreshExpiry() time.Duration {
	return s.refreshExpiry
}

func GenerateSecretKey() (string, error) {
	key := make([]byte, 32) // 256 bits
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(key), nil
}
