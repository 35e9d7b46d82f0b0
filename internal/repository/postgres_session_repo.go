package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/inkbook/internal/model"
)

// clockLayout はTIME型カラムの読み書きに使用する時刻フォーマット。
const clockLayout = "15:04:05"

// PostgresSessionRepo はPostgreSQLを使用した予約セッションリポジトリ。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// FindByID は指定IDのセッションを取得する。見つからない場合はnilを返す。
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id int) (*model.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, artist_id, client_id, date, start_time, end_time, notes
		 FROM sessions WHERE id = $1`,
		id,
	)
	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session by ID: %w", err)
	}
	return session, nil
}

// ListAll は全セッションを日付・開始時刻順で返す。
func (r *PostgresSessionRepo) ListAll(ctx context.Context) ([]*model.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, artist_id, client_id, date, start_time, end_time, notes
		 FROM sessions ORDER BY date, start_time, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	return collectSessions(rows)
}

// ListByArtistAndDate は指定アーティスト・指定日付のセッションを返す。
func (r *PostgresSessionRepo) ListByArtistAndDate(ctx context.Context, artistID int, date time.Time) ([]*model.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, artist_id, client_id, date, start_time, end_time, notes
		 FROM sessions WHERE artist_id = $1 AND date = $2 ORDER BY start_time, id`,
		artistID, date.Format("2006-01-02"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions by artist and date: %w", err)
	}
	defer rows.Close()

	return collectSessions(rows)
}

// Create はセッションを作成し、採番されたIDをsession.IDに設定する。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.Session) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO sessions (artist_id, client_id, date, start_time, end_time, notes)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
		 RETURNING id`,
		session.ArtistID, session.ClientID,
		session.Date.Format("2006-01-02"),
		session.StartTime.Format(clockLayout),
		session.EndTime.Format(clockLayout),
		session.Notes,
	).Scan(&session.ID)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// Update はセッションを上書き更新する。対象が存在しない場合はfalseを返す。
func (r *PostgresSessionRepo) Update(ctx context.Context, session *model.Session) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sessions
		 SET artist_id = $1, client_id = $2, date = $3,
		     start_time = $4, end_time = $5, notes = NULLIF($6, '')
		 WHERE id = $7`,
		session.ArtistID, session.ClientID,
		session.Date.Format("2006-01-02"),
		session.StartTime.Format(clockLayout),
		session.EndTime.Format(clockLayout),
		session.Notes, session.ID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update session: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// Delete は指定IDのセッションを削除する。対象が存在しなくてもエラーとしない。
func (r *PostgresSessionRepo) Delete(ctx context.Context, id int) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// ListCalendar は全セッションを顧客表示名と結合して日付・開始時刻順で返す。
func (r *PostgresSessionRepo) ListCalendar(ctx context.Context) ([]model.CalendarEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT s.id, c.name, s.date, s.start_time, s.end_time, s.notes
		 FROM sessions s
		 JOIN clients c ON c.id = s.client_id
		 ORDER BY s.date, s.start_time, s.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list calendar entries: %w", err)
	}
	defer rows.Close()

	var entries []model.CalendarEntry
	for rows.Next() {
		var (
			entry    model.CalendarEntry
			date     time.Time
			startStr string
			endStr   string
			notes    sql.NullString
		)
		if err := rows.Scan(&entry.SessionID, &entry.ClientName, &date, &startStr, &endStr, &notes); err != nil {
			return nil, fmt.Errorf("failed to scan calendar entry: %w", err)
		}
		start, err := time.Parse(clockLayout, startStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse start time: %w", err)
		}
		end, err := time.Parse(clockLayout, endStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse end time: %w", err)
		}
		entry.Start = combineDateTime(date, start)
		entry.End = combineDateTime(date, end)
		entry.Notes = notes.String
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate calendar entries: %w", err)
	}
	return entries, nil
}

// scanSession は1行をセッションモデルに変換する。
func scanSession(s scanner) (*model.Session, error) {
	session := &model.Session{}
	var (
		startStr string
		endStr   string
		notes    sql.NullString
	)
	err := s.Scan(&session.ID, &session.ArtistID, &session.ClientID,
		&session.Date, &startStr, &endStr, &notes)
	if err != nil {
		return nil, err
	}

	session.StartTime, err = time.Parse(clockLayout, startStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse start time: %w", err)
	}
	session.EndTime, err = time.Parse(clockLayout, endStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse end time: %w", err)
	}
	session.Notes = notes.String
	return session, nil
}

// collectSessions は結果セット全体をセッションモデルのスライスに変換する。
func collectSessions(rows *sql.Rows) ([]*model.Session, error) {
	var sessions []*model.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return sessions, nil
}

var _ SessionRepository = (*PostgresSessionRepo)(nil)

// combineDateTime は日付と時刻を1つのtime.Timeに合成する。
func combineDateTime(date, clock time.Time) time.Time {
	return time.Date(
		date.Year(), date.Month(), date.Day(),
		clock.Hour(), clock.Minute(), clock.Second(), 0,
		time.UTC,
	)
}
