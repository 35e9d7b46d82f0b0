package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/inkbook/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// すべてのAPIエンドポイントで一貫したエラーレスポンスを提供する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, body *ErrorResponseBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// WriteDomainError はドメインエラーをHTTPステータスと統一フォーマットに変換して書き込む。
// 型付きエラー以外は内部エラーとして扱い、詳細はログのみに記録する。
func WriteDomainError(w http.ResponseWriter, err error) {
	var (
		valErr      *model.ValidationError
		schedErr    *model.SchedulingError
		conflictErr *model.ConflictError
		notFoundErr *model.NotFoundError
		authErr     *model.AuthenticationError
		tokenErr    *model.TokenError
	)

	switch {
	case errors.As(err, &valErr):
		WriteErrorResponse(w, http.StatusBadRequest, &ErrorResponseBody{
			Code:     "VALIDATION_FAILED",
			Message:  valErr.Error(),
			Category: model.CategoryValidation,
			Action:   "入力内容を修正して再度お試しください。",
		})
	case errors.As(err, &schedErr):
		WriteErrorResponse(w, http.StatusBadRequest, &ErrorResponseBody{
			Code:     "SCHEDULING_RULE_VIOLATION",
			Message:  schedErr.Error(),
			Category: model.CategoryScheduling,
			Action:   "時間帯を見直して再度お試しください。",
		})
	case errors.As(err, &conflictErr):
		WriteErrorResponse(w, http.StatusConflict, &ErrorResponseBody{
			Code:     "SESSION_CONFLICT",
			Message:  conflictErr.Error(),
			Category: model.CategoryScheduling,
			Action:   "別の時間帯を指定して再度お試しください。",
		})
	case errors.As(err, &notFoundErr):
		WriteErrorResponse(w, http.StatusNotFound, &ErrorResponseBody{
			Code:     "NOT_FOUND",
			Message:  notFoundErr.Error(),
			Category: model.CategoryValidation,
			Action:   "対象のIDを確認してください。",
		})
	case errors.As(err, &authErr):
		// 内部原因はログのみに記録し、ユーザーには露出しない
		if authErr.Err != nil {
			slog.Warn("authentication failed", slog.String("error", authErr.Err.Error()))
		}
		WriteErrorResponse(w, http.StatusUnauthorized, &ErrorResponseBody{
			Code:     "AUTHENTICATION_FAILED",
			Message:  authErr.Reason,
			Category: model.CategoryAuth,
			Action:   "認証情報を確認して再度お試しください。",
		})
	case errors.As(err, &tokenErr):
		code := "RESET_TOKEN_INVALID"
		action := "パスワードリセットを最初からやり直してください。"
		if tokenErr.Expired {
			code = "RESET_TOKEN_EXPIRED"
			action = "新しいリセットトークンを発行してください。"
		}
		WriteErrorResponse(w, http.StatusBadRequest, &ErrorResponseBody{
			Code:     code,
			Message:  tokenErr.Error(),
			Category: model.CategoryAuth,
			Action:   action,
		})
	default:
		slog.Error("unhandled internal error", slog.String("error", err.Error()))
		WriteInternalServerError(w)
	}
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &ErrorResponseBody{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: model.CategorySystem,
		Action:   "しばらく待ってから再度お試しください。",
	})
}
