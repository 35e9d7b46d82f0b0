package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/inkbook/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id int) (*model.User, error) {
	user := &model.User{}
	var passwordHash, jotformKey sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, jotform_api_key, created_at
		 FROM users WHERE id = $1`,
		id,
	).Scan(&user.ID, &user.Name, &user.Email, &passwordHash, &jotformKey, &user.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	user.PasswordHash = passwordHash.String
	user.JotformAPIKey = jotformKey.String
	return user, nil
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user := &model.User{}
	var passwordHash, jotformKey sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, jotform_api_key, created_at
		 FROM users WHERE email = $1`,
		email,
	).Scan(&user.ID, &user.Name, &user.Email, &passwordHash, &jotformKey, &user.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	user.PasswordHash = passwordHash.String
	user.JotformAPIKey = jotformKey.String
	return user, nil
}

// Create はユーザーを作成し、採番されたIDをuser.IDに設定する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (name, email, password_hash, jotform_api_key, created_at)
		 VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5)
		 RETURNING id`,
		user.Name, user.Email, user.PasswordHash, user.JotformAPIKey, user.CreatedAt,
	).Scan(&user.ID)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// UpdateName は指定IDのユーザーの表示名を更新する。
func (r *PostgresUserRepo) UpdateName(ctx context.Context, id int, name string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET name = $1 WHERE id = $2`,
		name, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update user name: %w", err)
	}
	return nil
}

// UpdatePasswordHash は指定メールアドレスのユーザーのパスワードハッシュを更新する。
func (r *PostgresUserRepo) UpdatePasswordHash(ctx context.Context, email, passwordHash string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $1 WHERE email = $2`,
		passwordHash, email,
	)
	if err != nil {
		return fmt.Errorf("failed to update password hash: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", email)
	}
	return nil
}

// UpdateJotformAPIKey は指定IDのユーザーのJotForm APIキーを更新する。
func (r *PostgresUserRepo) UpdateJotformAPIKey(ctx context.Context, id int, apiKey string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET jotform_api_key = NULLIF($1, '') WHERE id = $2`,
		apiKey, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update jotform api key: %w", err)
	}
	return nil
}

// ListAll は全ユーザーを名前順で返す。
func (r *PostgresUserRepo) ListAll(ctx context.Context) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, email, password_hash, jotform_api_key, created_at
		 FROM users ORDER BY name, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user := &model.User{}
		var passwordHash, jotformKey sql.NullString
		if err := rows.Scan(&user.ID, &user.Name, &user.Email, &passwordHash, &jotformKey, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		user.PasswordHash = passwordHash.String
		user.JotformAPIKey = jotformKey.String
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
