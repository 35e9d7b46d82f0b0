package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/inkbook/internal/model"
)

// PostgresClientRepo はPostgreSQLを使用した顧客リポジトリ。
type PostgresClientRepo struct {
	db *sql.DB
}

// NewPostgresClientRepo はPostgresClientRepoを生成する。
func NewPostgresClientRepo(db *sql.DB) *PostgresClientRepo {
	return &PostgresClientRepo{db: db}
}

// FindByID は指定IDの顧客を取得する。見つからない場合はnilを返す。
func (r *PostgresClientRepo) FindByID(ctx context.Context, id int) (*model.Client, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, email, phone, notes, created_at
		 FROM clients WHERE id = $1`,
		id,
	)
	client, err := scanClient(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find client by ID: %w", err)
	}
	return client, nil
}

// ListByUserID はユーザーが所有する顧客の一覧を作成日時順で返す。
func (r *PostgresClientRepo) ListByUserID(ctx context.Context, userID int) ([]*model.Client, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, email, phone, notes, created_at
		 FROM clients WHERE user_id = $1 ORDER BY created_at, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	return collectClients(rows)
}

// Create は顧客を作成し、採番されたIDをclient.IDに設定する。
func (r *PostgresClientRepo) Create(ctx context.Context, client *model.Client) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO clients (user_id, name, email, phone, notes, created_at)
		 VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), $6)
		 RETURNING id`,
		client.UserID, client.Name, client.Email, client.Phone, client.Notes, client.CreatedAt,
	).Scan(&client.ID)
	if err != nil {
		return fmt.Errorf("failed to insert client: %w", err)
	}
	return nil
}

// Update は顧客情報を上書き更新する。対象が存在しない場合はfalseを返す。
func (r *PostgresClientRepo) Update(ctx context.Context, client *model.Client) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE clients
		 SET name = $1, email = NULLIF($2, ''), phone = NULLIF($3, ''), notes = NULLIF($4, '')
		 WHERE id = $5 AND user_id = $6`,
		client.Name, client.Email, client.Phone, client.Notes, client.ID, client.UserID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update client: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// Delete は指定IDの顧客を削除する。対象が存在しない場合はfalseを返す。
func (r *PostgresClientRepo) Delete(ctx context.Context, id int) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM clients WHERE id = $1`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete client: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// Search はユーザーが所有する顧客を名前またはメールアドレスの部分一致で検索する。
// 大文字小文字は区別しない。
func (r *PostgresClientRepo) Search(ctx context.Context, userID int, term string) ([]*model.Client, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, email, phone, notes, created_at
		 FROM clients
		 WHERE user_id = $1 AND (name ILIKE '%' || $2 || '%' OR email ILIKE '%' || $2 || '%')
		 ORDER BY name, id`,
		userID, term,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search clients: %w", err)
	}
	defer rows.Close()

	return collectClients(rows)
}

// ListAll は全顧客を名前順で返す。
func (r *PostgresClientRepo) ListAll(ctx context.Context) ([]*model.Client, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, email, phone, notes, created_at
		 FROM clients ORDER BY name, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list all clients: %w", err)
	}
	defer rows.Close()

	return collectClients(rows)
}

// scanner はsql.Rowとsql.Rowsの共通スキャンインターフェース。
type scanner interface {
	Scan(dest ...any) error
}

// scanClient は1行を顧客モデルに変換する。
func scanClient(s scanner) (*model.Client, error) {
	client := &model.Client{}
	var email, phone, notes sql.NullString
	err := s.Scan(&client.ID, &client.UserID, &client.Name, &email, &phone, &notes, &client.CreatedAt)
	if err != nil {
		return nil, err
	}
	client.Email = email.String
	client.Phone = phone.String
	client.Notes = notes.String
	return client, nil
}

// collectClients は結果セット全体を顧客モデルのスライスに変換する。
func collectClients(rows *sql.Rows) ([]*model.Client, error) {
	var clients []*model.Client
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, client)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate clients: %w", err)
	}
	return clients, nil
}

// compile-time interface check
var _ ClientRepository = (*PostgresClientRepo)(nil)
