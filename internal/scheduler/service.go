// Package scheduler は予約セッションの作成・更新と時間帯重複検査を提供する。
package scheduler

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/hitoshi/inkbook/internal/model"
	"github.com/hitoshi/inkbook/internal/repository"
)

const (
	dateLayout      = "2006-01-02"
	clockLayout     = "15:04"
	clockLayoutLong = "15:04:05"
)

// Sanitizer は自由入力テキストからマークアップを除去するインターフェース。
type Sanitizer interface {
	Sanitize(s string) string
}

// SessionInput はセッション作成リクエストの入力。
// 日付・時刻は文字列で受け取り、構造検証はサービス側で行う。
type SessionInput struct {
	ArtistID  int     `json:"artist_id"`
	ClientID  int     `json:"client_id"`
	Date      string  `json:"date"`
	StartTime string  `json:"start_time"`
	EndTime   string  `json:"end_time"`
	Notes     *string `json:"notes"`
}

// SessionPatch はセッション部分更新の入力。nilのフィールドは変更しない。
type SessionPatch struct {
	ArtistID  *int    `json:"artist_id"`
	ClientID  *int    `json:"client_id"`
	Date      *string `json:"date"`
	StartTime *string `json:"start_time"`
	EndTime   *string `json:"end_time"`
	Notes     *string `json:"notes"`
}

// SessionOptions はセッション作成フォーム向けのドロップダウン候補。
type SessionOptions struct {
	Artists []model.SessionOption
	Clients []model.SessionOption
}

// Service はスケジューラのビジネスロジックを提供する。
type Service struct {
	sessionRepo repository.SessionRepository
	userRepo    repository.UserRepository
	clientRepo  repository.ClientRepository
	sanitizer   Sanitizer
}

// NewService はServiceを生成する。
func NewService(
	sessionRepo repository.SessionRepository,
	userRepo repository.UserRepository,
	clientRepo repository.ClientRepository,
	sanitizer Sanitizer,
) *Service {
	return &Service{
		sessionRepo: sessionRepo,
		userRepo:    userRepo,
		clientRepo:  clientRepo,
		sanitizer:   sanitizer,
	}
}

// Create はセッションを新規作成する。
// 検証は構造→範囲→参照→重複の順に行い、最初に失敗した段階のエラーを返す。
// 重複判定は同一アーティスト・同一日付のセッションに対する半開区間の交差で、
// 端点が一致するだけの隣接セッションは許容する。
func (s *Service) Create(ctx context.Context, input SessionInput) (*model.Session, error) {
	session, err := s.parseInput(input)
	if err != nil {
		return nil, err
	}

	if !session.EndTime.After(session.StartTime) {
		return nil, model.NewSchedulingError("終了時刻は開始時刻より後である必要があります")
	}

	if err := s.checkReferences(ctx, session.ArtistID, session.ClientID); err != nil {
		return nil, err
	}

	existing, err := s.sessionRepo.ListByArtistAndDate(ctx, session.ArtistID, session.Date)
	if err != nil {
		return nil, fmt.Errorf("failed to load sessions for conflict check: %w", err)
	}
	for _, other := range existing {
		if session.Overlaps(other) {
			return nil, model.NewConflictError(other.ID)
		}
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("session created",
		slog.Int("session_id", session.ID),
		slog.Int("artist_id", session.ArtistID),
		slog.Int("client_id", session.ClientID),
		slog.String("date", session.Date.Format(dateLayout)),
	)
	return session, nil
}

// Update はセッションを部分更新する。nilでないフィールドのみ反映する。
// 重複検査は作成時のみで、更新時には再実行しない。
func (s *Service) Update(ctx context.Context, id int, patch SessionPatch) (*model.Session, error) {
	session, err := s.sessionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, model.NewNotFoundError("session", id)
	}

	if err := s.applyPatch(session, patch); err != nil {
		return nil, err
	}

	if !session.EndTime.After(session.StartTime) {
		return nil, model.NewSchedulingError("終了時刻は開始時刻より後である必要があります")
	}

	if patch.ArtistID != nil || patch.ClientID != nil {
		if err := s.checkReferences(ctx, session.ArtistID, session.ClientID); err != nil {
			return nil, err
		}
	}

	updated, err := s.sessionRepo.Update(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}
	if !updated {
		return nil, model.NewNotFoundError("session", id)
	}

	slog.Info("session updated", slog.Int("session_id", session.ID))
	return session, nil
}

// Get は指定IDのセッションを取得する。
func (s *Service) Get(ctx context.Context, id int) (*model.Session, error) {
	session, err := s.sessionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, model.NewNotFoundError("session", id)
	}
	return session, nil
}

// List は全セッションを日付・開始時刻順で返す。
func (s *Service) List(ctx context.Context) ([]*model.Session, error) {
	sessions, err := s.sessionRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// Delete は指定IDのセッションを削除する。対象が存在しなくても成功として扱う。
func (s *Service) Delete(ctx context.Context, id int) error {
	if err := s.sessionRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	slog.Info("session deleted", slog.Int("session_id", id))
	return nil
}

// Calendar はカレンダー表示用のレコード列を返す。
// 行の取得は即時に行い、整形は列挙時まで遅延する。
func (s *Service) Calendar(ctx context.Context) (iter.Seq[model.CalendarEntry], error) {
	entries, err := s.sessionRepo.ListCalendar(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load calendar entries: %w", err)
	}

	return func(yield func(model.CalendarEntry) bool) {
		for _, entry := range entries {
			if !yield(entry) {
				return
			}
		}
	}, nil
}

// Options はセッション作成フォーム向けのアーティスト・顧客候補を返す。
// artistIDsが空でない場合、アーティスト候補をそのID集合に絞り込む。
func (s *Service) Options(ctx context.Context, artistIDs []int) (*SessionOptions, error) {
	users, err := s.userRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list artists: %w", err)
	}
	clients, err := s.clientRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}

	var wanted map[int]bool
	if len(artistIDs) > 0 {
		wanted = make(map[int]bool, len(artistIDs))
		for _, id := range artistIDs {
			wanted[id] = true
		}
	}

	options := &SessionOptions{
		Artists: make([]model.SessionOption, 0, len(users)),
		Clients: make([]model.SessionOption, 0, len(clients)),
	}
	for _, u := range users {
		if wanted != nil && !wanted[u.ID] {
			continue
		}
		options.Artists = append(options.Artists, model.SessionOption{ID: u.ID, Name: u.Name})
	}
	for _, c := range clients {
		options.Clients = append(options.Clients, model.SessionOption{ID: c.ID, Name: c.Name})
	}
	return options, nil
}

// parseInput は作成入力の構造検証を行い、セッションモデルを組み立てる。
func (s *Service) parseInput(input SessionInput) (*model.Session, error) {
	fields := map[string]string{}

	if input.ArtistID <= 0 {
		fields["artist_id"] = "アーティストIDは必須です"
	}
	if input.ClientID <= 0 {
		fields["client_id"] = "顧客IDは必須です"
	}

	date, err := parseDate(input.Date)
	if err != nil {
		fields["date"] = "日付はYYYY-MM-DD形式で指定してください"
	}
	start, err := parseClock(input.StartTime)
	if err != nil {
		fields["start_time"] = "開始時刻はHH:MM形式で指定してください"
	}
	end, err := parseClock(input.EndTime)
	if err != nil {
		fields["end_time"] = "終了時刻はHH:MM形式で指定してください"
	}

	if len(fields) > 0 {
		return nil, model.NewValidationError(fields)
	}

	session := &model.Session{
		ArtistID:  input.ArtistID,
		ClientID:  input.ClientID,
		Date:      date,
		StartTime: start,
		EndTime:   end,
	}
	if input.Notes != nil {
		session.Notes = s.sanitizer.Sanitize(*input.Notes)
	}
	return session, nil
}

// applyPatch は部分更新をセッションに反映する。構造検証エラーはフィールド単位で集約する。
func (s *Service) applyPatch(session *model.Session, patch SessionPatch) error {
	fields := map[string]string{}

	if patch.ArtistID != nil {
		if *patch.ArtistID <= 0 {
			fields["artist_id"] = "アーティストIDは必須です"
		} else {
			session.ArtistID = *patch.ArtistID
		}
	}
	if patch.ClientID != nil {
		if *patch.ClientID <= 0 {
			fields["client_id"] = "顧客IDは必須です"
		} else {
			session.ClientID = *patch.ClientID
		}
	}
	if patch.Date != nil {
		date, err := parseDate(*patch.Date)
		if err != nil {
			fields["date"] = "日付はYYYY-MM-DD形式で指定してください"
		} else {
			session.Date = date
		}
	}
	if patch.StartTime != nil {
		start, err := parseClock(*patch.StartTime)
		if err != nil {
			fields["start_time"] = "開始時刻はHH:MM形式で指定してください"
		} else {
			session.StartTime = start
		}
	}
	if patch.EndTime != nil {
		end, err := parseClock(*patch.EndTime)
		if err != nil {
			fields["end_time"] = "終了時刻はHH:MM形式で指定してください"
		} else {
			session.EndTime = end
		}
	}
	if patch.Notes != nil {
		session.Notes = s.sanitizer.Sanitize(*patch.Notes)
	}

	if len(fields) > 0 {
		return model.NewValidationError(fields)
	}
	return nil
}

// checkReferences はアーティストと顧客の存在を確認する。
func (s *Service) checkReferences(ctx context.Context, artistID, clientID int) error {
	artist, err := s.userRepo.FindByID(ctx, artistID)
	if err != nil {
		return fmt.Errorf("failed to find artist: %w", err)
	}
	if artist == nil {
		return model.NewNotFoundError("artist", artistID)
	}

	client, err := s.clientRepo.FindByID(ctx, clientID)
	if err != nil {
		return fmt.Errorf("failed to find client: %w", err)
	}
	if client == nil {
		return model.NewNotFoundError("client", clientID)
	}
	return nil
}

// parseDate はYYYY-MM-DD形式の日付文字列をパースする。
func parseDate(value string) (time.Time, error) {
	return time.Parse(dateLayout, value)
}

// parseClock はHH:MMまたはHH:MM:SS形式の時刻文字列をパースする。
func parseClock(value string) (time.Time, error) {
	if t, err := time.Parse(clockLayout, value); err == nil {
		return t, nil
	}
	return time.Parse(clockLayoutLong, value)
}
