package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/inkbook/internal/client"
	"github.com/hitoshi/inkbook/internal/middleware"
	"github.com/hitoshi/inkbook/internal/model"
)

// ClientServiceInterface は顧客ハンドラーが必要とするサービスインターフェース。
type ClientServiceInterface interface {
	List(ctx context.Context, userID int) ([]*model.Client, error)
	Get(ctx context.Context, userID, id int) (*model.Client, error)
	Create(ctx context.Context, userID int, input client.ClientInput) (*model.Client, error)
	Update(ctx context.Context, userID, id int, input client.ClientInput) (*model.Client, error)
	Delete(ctx context.Context, userID, id int) error
	Search(ctx context.Context, userID int, term string) ([]*model.Client, error)
	SyncJotForm(ctx context.Context, userID int) (int, error)
}

// ClientMetricsRecorder は顧客ハンドラーが記録するメトリクスのインターフェース。
type ClientMetricsRecorder interface {
	RecordSyncLatency(duration time.Duration)
	RecordSyncFailure()
	RecordClientsImported(count int)
}

// ClientHandler は顧客管理のHTTPハンドラー。
type ClientHandler struct {
	service ClientServiceInterface
	metrics ClientMetricsRecorder
}

// NewClientHandler はClientHandlerを生成する。
func NewClientHandler(service ClientServiceInterface, metrics ClientMetricsRecorder) *ClientHandler {
	return &ClientHandler{
		service: service,
		metrics: metrics,
	}
}

// clientResponse は顧客情報のAPIレスポンス。
type clientResponse struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Notes string `json:"notes"`
}

// List は顧客一覧を返す。
// GET /clients
func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	clients, err := h.service.List(r.Context(), userID)
	if err != nil {
		middleware.WriteDomainError(w, err)
		return
	}

	writeClientList(w, clients)
}

// Create は顧客を新規登録する。
// POST /clients/new
func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var input client.ClientInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	created, err := h.service.Create(r.Context(), userID, input)
	if err != nil {
		middleware.WriteDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toClientResponse(created))
}

// Get は顧客詳細を返す（編集フォームの初期値）。
// GET /clients/{id}/edit
func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	id, err := parseIDParam(r, "id")
	if err != nil {
		writeInvalidIDParam(w)
		return
	}

	found, err := h.service.Get(r.Context(), userID, id)
	if err != nil {
		middleware.WriteDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toClientResponse(found))
}

// Update は顧客情報を更新する。
// POST /clients/{id}/edit
func (h *ClientHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	id, err := parseIDParam(r, "id")
	if err != nil {
		writeInvalidIDParam(w)
		return
	}

	var input client.ClientInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	updated, err := h.service.Update(r.Context(), userID, id, input)
	if err != nil {
		middleware.WriteDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toClientResponse(updated))
}

// Delete は顧客を削除する。
// POST /clients/{id}/delete
func (h *ClientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	id, err := parseIDParam(r, "id")
	if err != nil {
		writeInvalidIDParam(w)
		return
	}

	if err := h.service.Delete(r.Context(), userID, id); err != nil {
		middleware.WriteDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Search は名前またはメールアドレスの部分一致で顧客を検索する。
// GET /clients/search?q=term
func (h *ClientHandler) Search(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	term := r.URL.Query().Get("q")
	clients, err := h.service.Search(r.Context(), userID, term)
	if err != nil {
		middleware.WriteDomainError(w, err)
		return
	}

	writeClientList(w, clients)
}

// SyncJotForm はJotFormフォームの回答から顧客リードを取り込む。
// GET /clients/sync_jotform
func (h *ClientHandler) SyncJotForm(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	start := time.Now()
	created, err := h.service.SyncJotForm(r.Context(), userID)
	h.metrics.RecordSyncLatency(time.Since(start))
	if err != nil {
		h.metrics.RecordSyncFailure()
		middleware.WriteDomainError(w, err)
		return
	}

	h.metrics.RecordClientsImported(created)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"imported": created})
}

// --- ヘルパー関数 ---

// writeClientList は{"clients": [...]}形式で顧客一覧を書き込む。
func writeClientList(w http.ResponseWriter, clients []*model.Client) {
	responses := make([]clientResponse, 0, len(clients))
	for _, c := range clients {
		responses = append(responses, toClientResponse(c))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]clientResponse{"clients": responses})
}

// toClientResponse はmodel.ClientからAPIレスポンスに変換する。
func toClientResponse(c *model.Client) clientResponse {
	return clientResponse{
		ID:    c.ID,
		Name:  c.Name,
		Email: c.Email,
		Phone: c.Phone,
		Notes: c.Notes,
	}
}

// parseIDParam はURLパラメータを数値IDとして解析する。
func parseIDParam(r *http.Request, name string) (int, error) {
	return strconv.Atoi(chi.URLParam(r, name))
}

// writeUnauthorized は未認証レスポンスを書き込む。
func writeUnauthorized(w http.ResponseWriter) {
	middleware.WriteErrorResponse(w, http.StatusUnauthorized, &middleware.ErrorResponseBody{
		Code:     "UNAUTHORIZED",
		Message:  "認証が必要です。",
		Category: model.CategoryAuth,
		Action:   "ログインしてください。",
	})
}

// writeInvalidIDParam は数値でないIDパラメータのレスポンスを書き込む。
func writeInvalidIDParam(w http.ResponseWriter) {
	middleware.WriteErrorResponse(w, http.StatusBadRequest, &middleware.ErrorResponseBody{
		Code:     "INVALID_ID",
		Message:  "IDは数値で指定してください。",
		Category: model.CategoryValidation,
		Action:   "URLのIDを確認してください。",
	})
}
