// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService は顧客メモやセッションメモなどの自由入力テキストを
// サニタイズし、保存データへのマークアップ混入を防ぐ。
// bluemondayライブラリの厳格ポリシーで全てのHTMLタグを除去する。
package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService は自由入力テキストのサニタイズ機能のインターフェースを定義する。
// 顧客メモ・セッションメモの保存前に使用される。
type ContentSanitizerService interface {
	// Sanitize は入力テキストから全てのHTMLタグを除去して返す。
	// メモ欄はプレーンテキストとして扱うため、許可タグは存在しない。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(s string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayの厳格ポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyは全ての要素と属性を除去し、テキストのみを残す。
func NewContentSanitizer() *contentSanitizer {
	return &contentSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力テキストから全てのHTMLタグを除去して返す。
func (s *contentSanitizer) Sanitize(input string) string {
	return s.policy.Sanitize(input)
}
