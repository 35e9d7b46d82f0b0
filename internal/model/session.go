// Package model はドメインモデルを定義する。
package model

import "time"

// Session はアーティストと顧客の予約（施術セッション）を表す。
// 不変条件: EndTimeはStartTimeより厳密に後であること。
// 不変条件: 同一アーティスト・同一日付のセッション同士は
// 半開区間 [StartTime, EndTime) で重複しないこと。
type Session struct {
	ID        int
	ArtistID  int
	ClientID  int
	Date      time.Time // 日付部分のみ有効
	StartTime time.Time // 時刻部分のみ有効
	EndTime   time.Time // 時刻部分のみ有効
	Notes     string
}

// Overlaps は他セッションと時間帯が重複するかを半開区間で判定する。
// 端点が一致するだけ（EndTime == other.StartTime）の場合は重複とみなさない。
func (s *Session) Overlaps(other *Session) bool {
	return s.StartTime.Before(other.EndTime) && s.EndTime.After(other.StartTime)
}

// CalendarEntry はカレンダー表示用のレコードを表す。
// セッションの時間帯と顧客の表示名を結合し、日付と時刻を合成した
// 開始・終了日時として保持する。
type CalendarEntry struct {
	SessionID  int
	ClientName string
	Start      time.Time
	End        time.Time
	Notes      string
}

// SessionOption はセッション作成フォームのドロップダウン候補を表す。
type SessionOption struct {
	ID   int
	Name string
}
