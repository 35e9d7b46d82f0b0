package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/inkbook/internal/model"
)

// PostgresLoginSessionRepo はPostgreSQLを使用したログインセッションリポジトリ。
type PostgresLoginSessionRepo struct {
	db *sql.DB
}

// NewPostgresLoginSessionRepo はPostgresLoginSessionRepoを生成する。
func NewPostgresLoginSessionRepo(db *sql.DB) *PostgresLoginSessionRepo {
	return &PostgresLoginSessionRepo{db: db}
}

// Create はログインセッションを保存する。
func (r *PostgresLoginSessionRepo) Create(ctx context.Context, session *model.LoginSession) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO login_sessions (id, user_id, token, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		session.ID, session.UserID, session.Token, session.ExpiresAt, session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert login session: %w", err)
	}
	return nil
}

// FindByID は有効期限内のログインセッションを取得する。
// 期限切れまたは存在しない場合はnilを返す。
func (r *PostgresLoginSessionRepo) FindByID(ctx context.Context, id string) (*model.LoginSession, error) {
	session := &model.LoginSession{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, token, expires_at, created_at
		 FROM login_sessions WHERE id = $1 AND expires_at > now()`,
		id,
	).Scan(&session.ID, &session.UserID, &session.Token, &session.ExpiresAt, &session.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find login session by ID: %w", err)
	}
	return session, nil
}

// DeleteByID は指定IDのログインセッションを削除する。
func (r *PostgresLoginSessionRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM login_sessions WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete login session: %w", err)
	}
	return nil
}

// DeleteByUserID は指定ユーザーの全ログインセッションを削除する。
func (r *PostgresLoginSessionRepo) DeleteByUserID(ctx context.Context, userID int) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM login_sessions WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete login sessions by user ID: %w", err)
	}
	return nil
}

var _ LoginSessionRepository = (*PostgresLoginSessionRepo)(nil)
