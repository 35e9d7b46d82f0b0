package handler

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/inkbook/internal/middleware"
	"github.com/hitoshi/inkbook/internal/model"
	"github.com/hitoshi/inkbook/internal/scheduler"
)

// SchedulerServiceInterface はセッションハンドラーが必要とするサービスインターフェース。
type SchedulerServiceInterface interface {
	Create(ctx context.Context, input scheduler.SessionInput) (*model.Session, error)
	Update(ctx context.Context, id int, patch scheduler.SessionPatch) (*model.Session, error)
	Get(ctx context.Context, id int) (*model.Session, error)
	List(ctx context.Context) ([]*model.Session, error)
	Delete(ctx context.Context, id int) error
	Calendar(ctx context.Context) (iter.Seq[model.CalendarEntry], error)
	Options(ctx context.Context, artistIDs []int) (*scheduler.SessionOptions, error)
}

// SessionMetricsRecorder はセッションハンドラーが記録するメトリクスのインターフェース。
type SessionMetricsRecorder interface {
	RecordSessionCreated()
	RecordSchedulingConflict()
}

// SessionHandler は予約管理のHTTPハンドラー。
type SessionHandler struct {
	service SchedulerServiceInterface
	metrics SessionMetricsRecorder
}

// NewSessionHandler はSessionHandlerを生成する。
func NewSessionHandler(service SchedulerServiceInterface, metrics SessionMetricsRecorder) *SessionHandler {
	return &SessionHandler{
		service: service,
		metrics: metrics,
	}
}

// sessionResponse は予約情報のAPIレスポンス。
type sessionResponse struct {
	ID        int    `json:"id"`
	ArtistID  int    `json:"artist_id"`
	ClientID  int    `json:"client_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Notes     string `json:"notes"`
}

// calendarEntryResponse はカレンダー表示用のAPIレスポンス。
type calendarEntryResponse struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Start string `json:"start"`
	End   string `json:"end"`
	Notes string `json:"notes,omitempty"`
}

// optionResponse はドロップダウン候補のAPIレスポンス。
type optionResponse struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// List は予約一覧を返す。
// GET /sessions
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.service.List(r.Context())
	if err != nil {
		middleware.WriteDomainError(w, err)
		return
	}

	responses := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		responses = append(responses, toSessionResponse(s))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]sessionResponse{"sessions": responses})
}

// Create は予約を新規作成する。
// POST /sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input scheduler.SessionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	created, err := h.service.Create(r.Context(), input)
	if err != nil {
		var conflictErr *model.ConflictError
		if errors.As(err, &conflictErr) {
			h.metrics.RecordSchedulingConflict()
		}
		middleware.WriteDomainError(w, err)
		return
	}

	h.metrics.RecordSessionCreated()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toSessionResponse(created))
}

// Get は予約詳細を返す。
// GET /sessions/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeInvalidIDParam(w)
		return
	}

	session, err := h.service.Get(r.Context(), id)
	if err != nil {
		middleware.WriteDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toSessionResponse(session))
}

// Update は予約を部分更新する。
// PUT /sessions/{id}
func (h *SessionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeInvalidIDParam(w)
		return
	}

	// 不明なフィールドを含むパッチは解析エラーとして扱う
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	var patch scheduler.SessionPatch
	if err := decoder.Decode(&patch); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	updated, err := h.service.Update(r.Context(), id, patch)
	if err != nil {
		middleware.WriteDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toSessionResponse(updated))
}

// Delete は予約を削除する。存在しないIDでも成功として扱う。
// DELETE /sessions/{id}
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeInvalidIDParam(w)
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		middleware.WriteDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Calendar は全予約をカレンダー表示用の形式で返す。
// GET /sessions/calendar
func (h *SessionHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.Calendar(r.Context())
	if err != nil {
		middleware.WriteDomainError(w, err)
		return
	}

	// イテレータを消費しながら整形する
	responses := make([]calendarEntryResponse, 0)
	for entry := range entries {
		responses = append(responses, calendarEntryResponse{
			ID:    entry.SessionID,
			Title: entry.ClientName,
			Start: entry.Start.Format(time.RFC3339),
			End:   entry.End.Format(time.RFC3339),
			Notes: entry.Notes,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(responses)
}

// Options は予約フォームのドロップダウン候補を返す。
// GET /sessions/options?artist_ids=1,2
func (h *SessionHandler) Options(w http.ResponseWriter, r *http.Request) {
	artistIDs, err := parseArtistIDs(r.URL.Query().Get("artist_ids"))
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &middleware.ErrorResponseBody{
			Code:     "INVALID_ARTIST_IDS",
			Message:  "artist_idsはカンマ区切りの数値で指定してください。",
			Category: model.CategoryValidation,
			Action:   "クエリパラメータを確認してください。",
		})
		return
	}

	options, err := h.service.Options(r.Context(), artistIDs)
	if err != nil {
		middleware.WriteDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]optionResponse{
		"artists": toOptionResponses(options.Artists),
		"clients": toOptionResponses(options.Clients),
	})
}

// --- ヘルパー関数 ---

// toSessionResponse はmodel.SessionからAPIレスポンスに変換する。
func toSessionResponse(s *model.Session) sessionResponse {
	return sessionResponse{
		ID:        s.ID,
		ArtistID:  s.ArtistID,
		ClientID:  s.ClientID,
		Date:      s.Date.Format("2006-01-02"),
		StartTime: s.StartTime.Format("15:04"),
		EndTime:   s.EndTime.Format("15:04"),
		Notes:     s.Notes,
	}
}

func toOptionResponses(options []model.SessionOption) []optionResponse {
	responses := make([]optionResponse, 0, len(options))
	for _, o := range options {
		responses = append(responses, optionResponse(o))
	}
	return responses
}

// parseArtistIDs はカンマ区切りのartist_idsクエリパラメータを解析する。
// 空文字列の場合は絞り込みなしとしてnilを返す。
func parseArtistIDs(raw string) ([]int, error) {
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	ids := make([]int, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
