// Package model はドメインモデルを定義する。
package model

import "time"

// User はスタジオ利用ユーザー（アーティスト）を表す。
// Googleログイン専用のアカウントはPasswordHashにランダムな使用不能ハッシュを保持する。
type User struct {
	ID            int
	Name          string
	Email         string
	PasswordHash  string
	JotformAPIKey string
	CreatedAt     time.Time
}

// LoginSession はユーザーのログインセッションを表す。
// Tokenにはログイン時に発行した署名付きJWTを保持する。
type LoginSession struct {
	ID        string
	UserID    int
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IdentityClaim は外部IdPから検証済みで取得したユーザー属性を表す。
// 永続化せず、ユーザーの作成・更新とトークン発行にのみ使用する。
type IdentityClaim struct {
	Email   string
	Name    string
	Picture string
}
