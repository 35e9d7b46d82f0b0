// Package client は顧客台帳の管理とJotFormからの見込み顧客取り込みを提供する。
package client

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/inkbook/internal/model"
	"github.com/hitoshi/inkbook/internal/repository"
)

// LeadImporter はフォームサービスから見込み顧客データを取得するインターフェース。
type LeadImporter interface {
	GetClientsFromFirstForm(ctx context.Context, apiKey string) ([]model.ImportedClient, error)
}

// Sanitizer は自由入力テキストからマークアップを除去するインターフェース。
type Sanitizer interface {
	Sanitize(s string) string
}

// ClientInput は顧客の作成・更新リクエストの入力。
type ClientInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Notes string `json:"notes"`
}

// Service は顧客台帳のビジネスロジックを提供する。
// 全ての操作は所有ユーザーにスコープされる。
type Service struct {
	clientRepo repository.ClientRepository
	userRepo   repository.UserRepository
	importer   LeadImporter
	sanitizer  Sanitizer
}

// NewService はServiceを生成する。
func NewService(
	clientRepo repository.ClientRepository,
	userRepo repository.UserRepository,
	importer LeadImporter,
	sanitizer Sanitizer,
) *Service {
	return &Service{
		clientRepo: clientRepo,
		userRepo:   userRepo,
		importer:   importer,
		sanitizer:  sanitizer,
	}
}

// List はユーザーが所有する顧客の一覧を返す。
func (s *Service) List(ctx context.Context, userID int) ([]*model.Client, error) {
	clients, err := s.clientRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	return clients, nil
}

// Get は指定IDの顧客を取得する。所有者以外からの参照は存在しない扱いとする。
func (s *Service) Get(ctx context.Context, userID, id int) (*model.Client, error) {
	client, err := s.clientRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find client: %w", err)
	}
	if client == nil || client.UserID != userID {
		return nil, model.NewNotFoundError("client", id)
	}
	return client, nil
}

// Create は顧客を新規作成する。
func (s *Service) Create(ctx context.Context, userID int, input ClientInput) (*model.Client, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	client := &model.Client{
		UserID:    userID,
		Name:      strings.TrimSpace(input.Name),
		Email:     strings.TrimSpace(input.Email),
		Phone:     strings.TrimSpace(input.Phone),
		Notes:     s.sanitizer.Sanitize(input.Notes),
		CreatedAt: time.Now(),
	}
	if err := s.clientRepo.Create(ctx, client); err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	slog.Info("client created", slog.Int("client_id", client.ID), slog.Int("user_id", userID))
	return client, nil
}

// Update は顧客情報を更新する。所有者以外からの更新は存在しない扱いとする。
func (s *Service) Update(ctx context.Context, userID, id int, input ClientInput) (*model.Client, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	client, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	client.Name = strings.TrimSpace(input.Name)
	client.Email = strings.TrimSpace(input.Email)
	client.Phone = strings.TrimSpace(input.Phone)
	client.Notes = s.sanitizer.Sanitize(input.Notes)

	updated, err := s.clientRepo.Update(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("failed to update client: %w", err)
	}
	if !updated {
		return nil, model.NewNotFoundError("client", id)
	}

	slog.Info("client updated", slog.Int("client_id", client.ID))
	return client, nil
}

// Delete は顧客を削除する。所有者以外からの削除は存在しない扱いとする。
func (s *Service) Delete(ctx context.Context, userID, id int) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}

	deleted, err := s.clientRepo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}
	if !deleted {
		return model.NewNotFoundError("client", id)
	}

	slog.Info("client deleted", slog.Int("client_id", id))
	return nil
}

// Search はユーザーが所有する顧客を名前またはメールアドレスの部分一致で検索する。
// 検索語が空の場合は全件を返す。
func (s *Service) Search(ctx context.Context, userID int, term string) ([]*model.Client, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return s.List(ctx, userID)
	}

	clients, err := s.clientRepo.Search(ctx, userID, term)
	if err != nil {
		return nil, fmt.Errorf("failed to search clients: %w", err)
	}
	return clients, nil
}

// SyncJotForm はユーザーのJotFormフォーム回答から見込み顧客を取り込む。
// メールアドレスが既存顧客と一致する回答はスキップし、取り込んだ件数を返す。
func (s *Service) SyncJotForm(ctx context.Context, userID int) (int, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return 0, model.NewNotFoundError("user", userID)
	}
	if user.JotformAPIKey == "" {
		return 0, model.NewValidationError(map[string]string{
			"jotform_api_key": "JotForm APIキーが設定されていません",
		})
	}

	imported, err := s.importer.GetClientsFromFirstForm(ctx, user.JotformAPIKey)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch jotform leads: %w", err)
	}

	existing, err := s.clientRepo.ListByUserID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to list clients: %w", err)
	}
	knownEmails := make(map[string]bool, len(existing))
	for _, c := range existing {
		if c.Email != "" {
			knownEmails[strings.ToLower(c.Email)] = true
		}
	}

	created := 0
	for _, lead := range imported {
		// 外部サービス由来の入力はすべてサニタイズしてから保存する
		email := strings.TrimSpace(s.sanitizer.Sanitize(lead.Email))
		if email != "" && knownEmails[strings.ToLower(email)] {
			continue
		}

		name := strings.TrimSpace(s.sanitizer.Sanitize(lead.Name))
		if name == "" {
			name = email
		}

		client := &model.Client{
			UserID:    userID,
			Name:      name,
			Email:     email,
			Phone:     strings.TrimSpace(s.sanitizer.Sanitize(lead.Phone)),
			CreatedAt: time.Now(),
		}
		if err := s.clientRepo.Create(ctx, client); err != nil {
			return created, fmt.Errorf("failed to create imported client: %w", err)
		}
		if email != "" {
			knownEmails[strings.ToLower(email)] = true
		}
		created++
	}

	slog.Info("jotform sync completed",
		slog.Int("user_id", userID),
		slog.Int("fetched", len(imported)),
		slog.Int("created", created),
	)
	return created, nil
}

// validateInput は顧客入力の構造検証を行う。
func validateInput(input ClientInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return model.NewValidationError(map[string]string{
			"name": "名前は必須です",
		})
	}
	return nil
}
