package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/inkbook/internal/model"
)

// resetTokenSalt はパスワードリセット用トークンの署名鍵を派生させるためのソルト。
// 認証トークンとは別の鍵空間を使い、トークンの流用を防ぐ。
const resetTokenSalt = "password-reset"

// AuthClaims はログイン時に発行される認証トークンのクレーム。
type AuthClaims struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager はHS256署名のJWTを発行・検証する。
type TokenManager struct {
	authKey  []byte
	resetKey []byte
	authTTL  time.Duration
	resetTTL time.Duration
}

// NewTokenManager はTokenManagerを生成する。
func NewTokenManager(secretKey string, authTTL, resetTTL time.Duration) *TokenManager {
	resetKey := sha256.Sum256([]byte(secretKey + resetTokenSalt))
	return &TokenManager{
		authKey:  []byte(secretKey),
		resetKey: resetKey[:],
		authTTL:  authTTL,
		resetTTL: resetTTL,
	}
}

// IssueAuthToken は身元クレームから認証トークンを発行する。
func (m *TokenManager) IssueAuthToken(claim *model.IdentityClaim) (string, error) {
	now := time.Now()
	claims := AuthClaims{
		Name:    claim.Name,
		Email:   claim.Email,
		Picture: claim.Picture,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claim.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.authTTL)),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.authKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign auth token: %w", err)
	}
	return signed, nil
}

// VerifyAuthToken は認証トークンを検証し、クレームを返す。
func (m *TokenManager) VerifyAuthToken(tokenString string) (*AuthClaims, error) {
	claims := &AuthClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.authKey, nil
	})
	if err != nil {
		return nil, model.NewAuthenticationError("認証トークンが無効です", err)
	}
	return claims, nil
}

// IssueResetToken はパスワードリセット用トークンを発行する。
func (m *TokenManager) IssueResetToken(email string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   email,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.resetTTL)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.resetKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign reset token: %w", err)
	}
	return signed, nil
}

// VerifyResetToken はリセットトークンを検証し、対象ユーザーのメールアドレスを返す。
// 期限切れとその他の不正は区別して返す。
func (m *TokenManager) VerifyResetToken(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.resetKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", model.NewTokenExpiredError()
		}
		return "", model.NewTokenInvalidError()
	}
	if claims.Subject == "" {
		return "", model.NewTokenInvalidError()
	}
	return claims.Subject, nil
}
