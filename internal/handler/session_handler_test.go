package handler

import (
	"context"
	"encoding/json"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/inkbook/internal/model"
	"github.com/hitoshi/inkbook/internal/scheduler"
)

// --- モック定義 ---

type mockSchedulerService struct {
	createFn   func(ctx context.Context, input scheduler.SessionInput) (*model.Session, error)
	updateFn   func(ctx context.Context, id int, patch scheduler.SessionPatch) (*model.Session, error)
	getFn      func(ctx context.Context, id int) (*model.Session, error)
	listFn     func(ctx context.Context) ([]*model.Session, error)
	deleteFn   func(ctx context.Context, id int) error
	calendarFn func(ctx context.Context) (iter.Seq[model.CalendarEntry], error)
	optionsFn  func(ctx context.Context, artistIDs []int) (*scheduler.SessionOptions, error)
}

func (m *mockSchedulerService) Create(ctx context.Context, input scheduler.SessionInput) (*model.Session, error) {
	if m.createFn != nil {
		return m.createFn(ctx, input)
	}
	return testSession(), nil
}

func (m *mockSchedulerService) Update(ctx context.Context, id int, patch scheduler.SessionPatch) (*model.Session, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, patch)
	}
	return testSession(), nil
}

func (m *mockSchedulerService) Get(ctx context.Context, id int) (*model.Session, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return testSession(), nil
}

func (m *mockSchedulerService) List(ctx context.Context) ([]*model.Session, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockSchedulerService) Delete(ctx context.Context, id int) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockSchedulerService) Calendar(ctx context.Context) (iter.Seq[model.CalendarEntry], error) {
	if m.calendarFn != nil {
		return m.calendarFn(ctx)
	}
	return func(yield func(model.CalendarEntry) bool) {}, nil
}

func (m *mockSchedulerService) Options(ctx context.Context, artistIDs []int) (*scheduler.SessionOptions, error) {
	if m.optionsFn != nil {
		return m.optionsFn(ctx, artistIDs)
	}
	return &scheduler.SessionOptions{}, nil
}

// testSession は応答整形テスト用のセッションを返す。
func testSession() *model.Session {
	return &model.Session{
		ID:        12,
		ArtistID:  3,
		ClientID:  8,
		Date:      time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC),
		StartTime: time.Date(0, 1, 1, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(0, 1, 1, 11, 30, 0, 0, time.UTC),
		Notes:     "腕のラインの続き",
	}
}

// --- テスト ---

func TestSessionHandler_Create_ReturnsCreatedAndRecordsMetric(t *testing.T) {
	var gotInput scheduler.SessionInput
	svc := &mockSchedulerService{
		createFn: func(ctx context.Context, input scheduler.SessionInput) (*model.Session, error) {
			gotInput = input
			return testSession(), nil
		},
	}
	metrics := newMockMetrics()
	h := NewSessionHandler(svc, metrics)

	body := strings.NewReader(`{"artist_id":3,"client_id":8,"date":"2026-09-02","start_time":"10:00","end_time":"11:30"}`)
	req := httptest.NewRequest(http.MethodPost, "/sessions", body)
	w := httptest.NewRecorder()

	h.Create(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	if gotInput.ArtistID != 3 || gotInput.Date != "2026-09-02" {
		t.Errorf("input = %+v", gotInput)
	}

	var got sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.ID != 12 || got.Date != "2026-09-02" || got.StartTime != "10:00" || got.EndTime != "11:30" {
		t.Errorf("response = %+v", got)
	}

	if metrics.sessionsCreated != 1 {
		t.Errorf("sessions created = %d, want 1", metrics.sessionsCreated)
	}
}

func TestSessionHandler_Create_Conflict_ReturnsConflictAndRecordsMetric(t *testing.T) {
	svc := &mockSchedulerService{
		createFn: func(ctx context.Context, input scheduler.SessionInput) (*model.Session, error) {
			return nil, model.NewConflictError(77)
		},
	}
	metrics := newMockMetrics()
	h := NewSessionHandler(svc, metrics)

	body := strings.NewReader(`{"artist_id":3,"client_id":8,"date":"2026-09-02","start_time":"10:30","end_time":"11:30"}`)
	req := httptest.NewRequest(http.MethodPost, "/sessions", body)
	w := httptest.NewRecorder()

	h.Create(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got["code"] != "SESSION_CONFLICT" {
		t.Errorf("code = %q, want SESSION_CONFLICT", got["code"])
	}

	if metrics.conflicts != 1 {
		t.Errorf("conflicts = %d, want 1", metrics.conflicts)
	}
	if metrics.sessionsCreated != 0 {
		t.Errorf("sessions created = %d, want 0", metrics.sessionsCreated)
	}
}

func TestSessionHandler_Create_InvalidJSON_ReturnsBadRequest(t *testing.T) {
	h := NewSessionHandler(&mockSchedulerService{}, newMockMetrics())

	req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader("{broken"))
	w := httptest.NewRecorder()

	h.Create(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestSessionHandler_List_ReturnsSessionsJSON(t *testing.T) {
	svc := &mockSchedulerService{
		listFn: func(ctx context.Context) ([]*model.Session, error) {
			return []*model.Session{testSession()}, nil
		},
	}
	h := NewSessionHandler(svc, newMockMetrics())

	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	w := httptest.NewRecorder()

	h.List(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var got map[string][]sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	sessions := got["sessions"]
	if len(sessions) != 1 {
		t.Fatalf("len(sessions) = %d, want 1", len(sessions))
	}
	if sessions[0].Notes != "腕のラインの続き" {
		t.Errorf("notes = %q", sessions[0].Notes)
	}
}

func TestSessionHandler_Get_NotFound_ReturnsNotFound(t *testing.T) {
	svc := &mockSchedulerService{
		getFn: func(ctx context.Context, id int) (*model.Session, error) {
			return nil, model.NewNotFoundError("session", id)
		},
	}
	h := NewSessionHandler(svc, newMockMetrics())

	req := httptest.NewRequest(http.MethodGet, "/sessions/999", nil)
	req = withChiParam(req, "id", "999")
	w := httptest.NewRecorder()

	h.Get(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestSessionHandler_Get_InvalidID_ReturnsBadRequest(t *testing.T) {
	h := NewSessionHandler(&mockSchedulerService{}, newMockMetrics())

	req := httptest.NewRequest(http.MethodGet, "/sessions/abc", nil)
	req = withChiParam(req, "id", "abc")
	w := httptest.NewRecorder()

	h.Get(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestSessionHandler_Update_PassesPatch(t *testing.T) {
	var gotID int
	var gotPatch scheduler.SessionPatch
	svc := &mockSchedulerService{
		updateFn: func(ctx context.Context, id int, patch scheduler.SessionPatch) (*model.Session, error) {
			gotID = id
			gotPatch = patch
			return testSession(), nil
		},
	}
	h := NewSessionHandler(svc, newMockMetrics())

	body := strings.NewReader(`{"start_time":"14:00","end_time":"15:00"}`)
	req := httptest.NewRequest(http.MethodPut, "/sessions/12", body)
	req = withChiParam(req, "id", "12")
	w := httptest.NewRecorder()

	h.Update(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if gotID != 12 {
		t.Errorf("id = %d, want 12", gotID)
	}
	if gotPatch.StartTime == nil || *gotPatch.StartTime != "14:00" {
		t.Errorf("patch start_time = %v", gotPatch.StartTime)
	}
	if gotPatch.Date != nil {
		t.Error("date should not be patched")
	}
}

func TestSessionHandler_Update_UnknownField_ReturnsBadRequest(t *testing.T) {
	h := NewSessionHandler(&mockSchedulerService{}, newMockMetrics())

	body := strings.NewReader(`{"start_time":"14:00","unknown_field":true}`)
	req := httptest.NewRequest(http.MethodPut, "/sessions/12", body)
	req = withChiParam(req, "id", "12")
	w := httptest.NewRecorder()

	h.Update(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestSessionHandler_Delete_ReturnsNoContent(t *testing.T) {
	var deletedID int
	svc := &mockSchedulerService{
		deleteFn: func(ctx context.Context, id int) error {
			deletedID = id
			return nil
		},
	}
	h := NewSessionHandler(svc, newMockMetrics())

	req := httptest.NewRequest(http.MethodDelete, "/sessions/12", nil)
	req = withChiParam(req, "id", "12")
	w := httptest.NewRecorder()

	h.Delete(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	if deletedID != 12 {
		t.Errorf("deleted id = %d, want 12", deletedID)
	}
}

func TestSessionHandler_Calendar_FormatsEntries(t *testing.T) {
	svc := &mockSchedulerService{
		calendarFn: func(ctx context.Context) (iter.Seq[model.CalendarEntry], error) {
			entries := []model.CalendarEntry{
				{
					SessionID:  1,
					ClientName: "Aiko",
					Start:      time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC),
					End:        time.Date(2026, 9, 2, 11, 30, 0, 0, time.UTC),
				},
				{
					SessionID:  2,
					ClientName: "Ben",
					Start:      time.Date(2026, 9, 3, 13, 0, 0, 0, time.UTC),
					End:        time.Date(2026, 9, 3, 14, 0, 0, 0, time.UTC),
					Notes:      "初回カウンセリング",
				},
			}
			return func(yield func(model.CalendarEntry) bool) {
				for _, e := range entries {
					if !yield(e) {
						return
					}
				}
			}, nil
		},
	}
	h := NewSessionHandler(svc, newMockMetrics())

	req := httptest.NewRequest(http.MethodGet, "/sessions/calendar", nil)
	w := httptest.NewRecorder()

	h.Calendar(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var got []calendarEntryResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(got))
	}
	if got[0].Title != "Aiko" || got[0].Start != "2026-09-02T10:00:00Z" {
		t.Errorf("entry[0] = %+v", got[0])
	}
	if got[1].Notes != "初回カウンセリング" {
		t.Errorf("entry[1] = %+v", got[1])
	}
}

func TestSessionHandler_Calendar_Empty_ReturnsEmptyArray(t *testing.T) {
	h := NewSessionHandler(&mockSchedulerService{}, newMockMetrics())

	req := httptest.NewRequest(http.MethodGet, "/sessions/calendar", nil)
	w := httptest.NewRecorder()

	h.Calendar(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if body := strings.TrimSpace(w.Body.String()); body != "[]" {
		t.Errorf("body = %q, want empty JSON array", body)
	}
}

func TestSessionHandler_Options_ParsesArtistIDs(t *testing.T) {
	var gotIDs []int
	svc := &mockSchedulerService{
		optionsFn: func(ctx context.Context, artistIDs []int) (*scheduler.SessionOptions, error) {
			gotIDs = artistIDs
			return &scheduler.SessionOptions{
				Artists: []model.SessionOption{{ID: 1, Name: "Hitoshi"}},
				Clients: []model.SessionOption{{ID: 8, Name: "Aiko"}},
			}, nil
		},
	}
	h := NewSessionHandler(svc, newMockMetrics())

	req := httptest.NewRequest(http.MethodGet, "/sessions/options?artist_ids=1,2", nil)
	w := httptest.NewRecorder()

	h.Options(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if len(gotIDs) != 2 || gotIDs[0] != 1 || gotIDs[1] != 2 {
		t.Errorf("artistIDs = %v, want [1 2]", gotIDs)
	}

	var got map[string][]optionResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(got["artists"]) != 1 || got["artists"][0].Name != "Hitoshi" {
		t.Errorf("artists = %+v", got["artists"])
	}
	if len(got["clients"]) != 1 {
		t.Errorf("clients = %+v", got["clients"])
	}
}

func TestSessionHandler_Options_NoFilter_PassesNil(t *testing.T) {
	var called bool
	svc := &mockSchedulerService{
		optionsFn: func(ctx context.Context, artistIDs []int) (*scheduler.SessionOptions, error) {
			called = true
			if artistIDs != nil {
				t.Errorf("artistIDs = %v, want nil", artistIDs)
			}
			return &scheduler.SessionOptions{}, nil
		},
	}
	h := NewSessionHandler(svc, newMockMetrics())

	req := httptest.NewRequest(http.MethodGet, "/sessions/options", nil)
	w := httptest.NewRecorder()

	h.Options(w, req)

	if !called {
		t.Fatal("service should be called")
	}
}

func TestSessionHandler_Options_InvalidArtistIDs_ReturnsBadRequest(t *testing.T) {
	h := NewSessionHandler(&mockSchedulerService{}, newMockMetrics())

	req := httptest.NewRequest(http.MethodGet, "/sessions/options?artist_ids=1,abc", nil)
	w := httptest.NewRecorder()

	h.Options(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}
