// Package auth はGoogle OAuthおよびメールアドレス+パスワードによる認証、
// ログインセッション管理、パスワードリセットを提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/inkbook/internal/model"
	"github.com/hitoshi/inkbook/internal/repository"
)

// minPasswordLength はローカル認証パスワードの最小長。
const minPasswordLength = 8

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、資格情報を返す。
	ExchangeCode(ctx context.Context, code string) (*OAuthCredentials, error)
}

// IDTokenVerifier はIDトークンの署名・audience検証を行うインターフェース。
type IDTokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*model.IdentityClaim, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge time.Duration // ログインセッションの有効期間
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth       OAuthProvider
	verifier    IDTokenVerifier
	tokens      *TokenManager
	userRepo    repository.UserRepository
	sessionRepo repository.LoginSessionRepository
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	oauth OAuthProvider,
	verifier IDTokenVerifier,
	tokens *TokenManager,
	userRepo repository.UserRepository,
	sessionRepo repository.LoginSessionRepository,
	config ServiceConfig,
) *Service {
	return &Service{
		oauth:       oauth,
		verifier:    verifier,
		tokens:      tokens,
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		config:      config,
	}
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// HandleCallback はOAuthコールバックを処理し、ログインセッションを発行する。
// 未登録ユーザーの場合はusersレコードを自動作成する。このときパスワードには
// ランダム値のハッシュを設定し、ローカル認証では使用できない状態にする。
// 登録済みユーザーでIDトークンの表示名が変わっている場合は表示名のみ追従する。
func (s *Service) HandleCallback(ctx context.Context, code string) (*model.LoginSession, error) {
	credentials, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	claim, err := s.verifier.Verify(ctx, credentials.IDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify id token: %w", err)
	}

	user, err := s.userRepo.FindByEmail(ctx, claim.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if user == nil {
		user, err = s.createOAuthUser(ctx, claim)
		if err != nil {
			return nil, err
		}
		slog.Info("new user created via oauth",
			slog.Int("user_id", user.ID),
			slog.String("email", user.Email),
		)
	} else {
		if claim.Name != "" && claim.Name != user.Name {
			if err := s.userRepo.UpdateName(ctx, user.ID, claim.Name); err != nil {
				return nil, fmt.Errorf("failed to update user name: %w", err)
			}
			user.Name = claim.Name
		}
		slog.Info("existing user logged in via oauth", slog.Int("user_id", user.ID))
	}

	return s.createLoginSession(ctx, user, claim.Picture)
}

// LoginLocal はメールアドレスとパスワードで認証し、ログインセッションを発行する。
func (s *Service) LoginLocal(ctx context.Context, email, password string) (*model.LoginSession, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || user.PasswordHash == "" {
		return nil, model.NewAuthenticationError("メールアドレスまたはパスワードが正しくありません", nil)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, model.NewAuthenticationError("メールアドレスまたはパスワードが正しくありません", nil)
	}

	slog.Info("user logged in locally", slog.Int("user_id", user.ID))
	return s.createLoginSession(ctx, user, "")
}

// Register はローカル認証ユーザーを新規登録する。
// 登録済みメールアドレスの場合はバリデーションエラーを返す。
func (s *Service) Register(ctx context.Context, name, email, password string) (*model.User, error) {
	fields := map[string]string{}
	if name == "" {
		fields["name"] = "名前は必須です"
	}
	if email == "" {
		fields["email"] = "メールアドレスは必須です"
	}
	if len(password) < minPasswordLength {
		fields["password"] = fmt.Sprintf("パスワードは%d文字以上で指定してください", minPasswordLength)
	}
	if len(fields) > 0 {
		return nil, model.NewValidationError(fields)
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if existing != nil {
		return nil, model.NewValidationError(map[string]string{
			"email": "このメールアドレスは既に登録されています",
		})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("new user registered", slog.Int("user_id", user.ID), slog.String("email", email))
	return user, nil
}

// IssueResetToken はパスワードリセット用トークンを発行する。
func (s *Service) IssueResetToken(ctx context.Context, email string) (string, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return "", model.NewValidationError(map[string]string{
			"email": "このメールアドレスは登録されていません",
		})
	}

	token, err := s.tokens.IssueResetToken(email)
	if err != nil {
		return "", err
	}

	slog.Info("password reset token issued", slog.Int("user_id", user.ID))
	return token, nil
}

// ResetPassword はリセットトークンを検証し、パスワードを更新する。
// 更新後は対象ユーザーの全ログインセッションを破棄する。
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	email, err := s.tokens.VerifyResetToken(token)
	if err != nil {
		return err
	}

	if len(newPassword) < minPasswordLength {
		return model.NewValidationError(map[string]string{
			"password": fmt.Sprintf("パスワードは%d文字以上で指定してください", minPasswordLength),
		})
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.NewTokenInvalidError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.userRepo.UpdatePasswordHash(ctx, email, string(hash)); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	if err := s.sessionRepo.DeleteByUserID(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to revoke login sessions: %w", err)
	}

	slog.Info("password reset completed", slog.Int("user_id", user.ID))
	return nil
}

// UpdateJotformAPIKey はユーザーのJotForm APIキーを保存する。
func (s *Service) UpdateJotformAPIKey(ctx context.Context, userID int, apiKey string) error {
	if err := s.userRepo.UpdateJotformAPIKey(ctx, userID, apiKey); err != nil {
		return fmt.Errorf("failed to update jotform api key: %w", err)
	}
	return nil
}

// Logout はログインセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete login session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// CurrentUser はログインセッションから現在のユーザーを取得する。
// セッションに紐づく認証トークンが失効している場合はセッションも破棄する。
func (s *Service) CurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, model.NewAuthenticationError("セッションIDが指定されていません", nil)
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find login session: %w", err)
	}
	if session == nil {
		return nil, model.NewAuthenticationError("セッションが存在しないか期限切れです", nil)
	}

	if _, err := s.tokens.VerifyAuthToken(session.Token); err != nil {
		if deleteErr := s.sessionRepo.DeleteByID(ctx, session.ID); deleteErr != nil {
			slog.Warn("failed to delete stale login session", slog.String("session_id", session.ID))
		}
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewAuthenticationError("ユーザーが見つかりません", nil)
	}

	return user, nil
}

// createOAuthUser はIDトークンのクレームからユーザーを新規作成する。
func (s *Service) createOAuthUser(ctx context.Context, claim *model.IdentityClaim) (*model.User, error) {
	name := claim.Name
	if name == "" {
		name = claim.Email
	}

	randomPassword, err := generateRandomPassword()
	if err != nil {
		return nil, fmt.Errorf("failed to generate random password: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(randomPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash random password: %w", err)
	}

	user := &model.User{
		Name:         name,
		Email:        claim.Email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// createLoginSession は認証トークンを発行し、ログインセッションを永続化する。
func (s *Service) createLoginSession(ctx context.Context, user *model.User, picture string) (*model.LoginSession, error) {
	token, err := s.tokens.IssueAuthToken(&model.IdentityClaim{
		Email:   user.Email,
		Name:    user.Name,
		Picture: picture,
	})
	if err != nil {
		return nil, err
	}

	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	session := &model.LoginSession{
		ID:        sessionID,
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: time.Now().Add(s.config.SessionMaxAge),
		CreatedAt: time.Now(),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save login session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// generateRandomPassword はOAuth経由で作成するユーザー用のランダムパスワードを生成する。
func generateRandomPassword() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
