// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"sort"
	"strings"
)

// エラーカテゴリ。HTTP境界で統一エラーフォーマットのcategoryフィールドに使用する。
const (
	CategoryValidation = "validation"
	CategoryScheduling = "scheduling"
	CategoryAuth       = "auth"
	CategorySystem     = "system"
)

// ValidationError は入力の構造的な不備（必須欠落・パース不能）を表す。
// フィールド名をキーとしたメッセージを保持し、呼び出し元が再送信で回復できる。
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError はValidationErrorを生成する。
func NewValidationError(fields map[string]string) *ValidationError {
	return &ValidationError{Fields: fields}
}

// Error はerrorインターフェースを実装する。フィールド名をソートして列挙する。
func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("入力が不正です: %s", strings.Join(names, ", "))
}

// SchedulingError は意味的なスケジュール規則違反（終了が開始以前など）を表す。
type SchedulingError struct {
	Reason string
}

// NewSchedulingError はSchedulingErrorを生成する。
func NewSchedulingError(reason string) *SchedulingError {
	return &SchedulingError{Reason: reason}
}

// Error はerrorインターフェースを実装する。
func (e *SchedulingError) Error() string {
	return e.Reason
}

// ConflictError は同一アーティスト・同一日付での時間帯重複を表す。
// UIが参照できるよう、衝突した既存セッションのIDを保持する。
type ConflictError struct {
	SessionID int
}

// NewConflictError はConflictErrorを生成する。
func NewConflictError(sessionID int) *ConflictError {
	return &ConflictError{SessionID: sessionID}
}

// Error はerrorインターフェースを実装する。
func (e *ConflictError) Error() string {
	return fmt.Sprintf("既存のセッション（id=%d）と時間帯が重複しています", e.SessionID)
}

// NotFoundError は参照先エンティティの不在を表す。
// どの参照が解決できなかったかをResourceで識別する。
type NotFoundError struct {
	Resource string // "artist", "client", "session", "user" 等
	ID       int
}

// NewNotFoundError はNotFoundErrorを生成する。
func NewNotFoundError(resource string, id int) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// Error はerrorインターフェースを実装する。
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%sが見つかりません: id=%d", e.Resource, e.ID)
}

// AuthenticationError はIdPとの交換失敗・トークン検証失敗・認証情報不一致を表す。
type AuthenticationError struct {
	Reason string
	Err    error // 内部原因。ログにのみ記録し、ユーザーには露出しない。
}

// NewAuthenticationError はAuthenticationErrorを生成する。
func NewAuthenticationError(reason string, err error) *AuthenticationError {
	return &AuthenticationError{Reason: reason, Err: err}
}

// Error はerrorインターフェースを実装する。
func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("認証に失敗しました: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("認証に失敗しました: %s", e.Reason)
}

// Unwrap は内部原因を返す。
func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// TokenError はパスワードリセットトークンの不正を表す。
// 期限切れと改ざんを区別し、それぞれ異なるユーザー向けメッセージを提示する。
type TokenError struct {
	Expired bool
}

// NewTokenExpiredError は期限切れトークンのエラーを生成する。
func NewTokenExpiredError() *TokenError {
	return &TokenError{Expired: true}
}

// NewTokenInvalidError は改ざん・不正署名トークンのエラーを生成する。
func NewTokenInvalidError() *TokenError {
	return &TokenError{Expired: false}
}

// Error はerrorインターフェースを実装する。
func (e *TokenError) Error() string {
	if e.Expired {
		return "リセットトークンの有効期限が切れています"
	}
	return "リセットトークンが無効です"
}
