// Package model はドメインモデルを定義する。
package model

import "time"

// Client はユーザーが管理する顧客を表す。
// 1人のユーザーに排他的に所有される。
type Client struct {
	ID        int
	UserID    int
	Name      string
	Email     string
	Phone     string
	Notes     string
	CreatedAt time.Time
}

// ImportedClient はJotFormから取り込んだ顧客リードを表す。
// まだ永続化されていない候補データであり、IDを持たない。
type ImportedClient struct {
	Name  string
	Email string
	Phone string
}
