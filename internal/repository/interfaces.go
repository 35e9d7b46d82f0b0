// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/inkbook/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	// emailはユーザーテーブルの一意キー。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成し、採番されたIDをuser.IDに設定する。
	Create(ctx context.Context, user *model.User) error

	// UpdateName は指定IDのユーザーの表示名を更新する。
	UpdateName(ctx context.Context, id int, name string) error

	// UpdatePasswordHash は指定メールアドレスのユーザーのパスワードハッシュを更新する。
	UpdatePasswordHash(ctx context.Context, email, passwordHash string) error

	// UpdateJotformAPIKey は指定IDのユーザーのJotForm APIキーを更新する。
	UpdateJotformAPIKey(ctx context.Context, id int, apiKey string) error

	// ListAll は全ユーザーを名前順で返す。ドロップダウン候補の取得に使用する。
	ListAll(ctx context.Context) ([]*model.User, error)
}

// ClientRepository は顧客データの永続化インターフェース。
type ClientRepository interface {
	// FindByID は指定IDの顧客を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int) (*model.Client, error)

	// ListByUserID はユーザーが所有する顧客の一覧を作成日時順で返す。
	ListByUserID(ctx context.Context, userID int) ([]*model.Client, error)

	// Create は顧客を作成し、採番されたIDをclient.IDに設定する。
	Create(ctx context.Context, client *model.Client) error

	// Update は顧客情報を上書き更新する。対象が存在しない場合はfalseを返す。
	Update(ctx context.Context, client *model.Client) (bool, error)

	// Delete は指定IDの顧客を削除する。対象が存在しない場合はfalseを返す。
	Delete(ctx context.Context, id int) (bool, error)

	// Search はユーザーが所有する顧客を名前またはメールアドレスの部分一致で検索する。
	Search(ctx context.Context, userID int, term string) ([]*model.Client, error)

	// ListAll は全顧客を名前順で返す。ドロップダウン候補の取得に使用する。
	ListAll(ctx context.Context) ([]*model.Client, error)
}

// SessionRepository は予約セッションデータの永続化インターフェース。
type SessionRepository interface {
	// FindByID は指定IDのセッションを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int) (*model.Session, error)

	// ListAll は全セッションを日付・開始時刻順で返す。
	ListAll(ctx context.Context) ([]*model.Session, error)

	// ListByArtistAndDate は指定アーティスト・指定日付のセッションを返す。
	// スケジューラの重複検査で使用する。
	ListByArtistAndDate(ctx context.Context, artistID int, date time.Time) ([]*model.Session, error)

	// Create はセッションを作成し、採番されたIDをsession.IDに設定する。
	Create(ctx context.Context, session *model.Session) error

	// Update はセッションを上書き更新する。対象が存在しない場合はfalseを返す。
	Update(ctx context.Context, session *model.Session) (bool, error)

	// Delete は指定IDのセッションを削除する。対象が存在しなくてもエラーとしない。
	Delete(ctx context.Context, id int) error

	// ListCalendar は全セッションを顧客表示名と結合して日付・開始時刻順で返す。
	// カレンダービューの読み取り専用クエリ。
	ListCalendar(ctx context.Context) ([]model.CalendarEntry, error)
}

// LoginSessionRepository はログインセッションの永続化インターフェース。
type LoginSessionRepository interface {
	// Create はログインセッションを作成する。
	Create(ctx context.Context, session *model.LoginSession) error

	// FindByID は指定IDのログインセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.LoginSession, error)

	// DeleteByID は指定IDのログインセッションを削除する。
	DeleteByID(ctx context.Context, id string) error

	// DeleteByUserID は指定ユーザーの全ログインセッションを削除する。
	DeleteByUserID(ctx context.Context, userID int) error
}
