package jotform

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestGetForms_ReturnsFormList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user/forms" {
			t.Errorf("path = %q, want %q", r.URL.Path, "/user/forms")
		}
		if got := r.URL.Query().Get("apiKey"); got != "test-key" {
			t.Errorf("apiKey = %q, want %q", got, "test-key")
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{
				{"id": "form-1", "title": "Booking Inquiry"},
				{"id": "form-2", "title": "Aftercare Feedback"},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.Client(), newTestLogger(), server.URL)

	forms, err := client.GetForms(context.Background(), "test-key")
	if err != nil {
		t.Fatalf("GetForms() error = %v", err)
	}

	if len(forms) != 2 {
		t.Fatalf("forms = %d, want 2", len(forms))
	}
	if forms[0].ID != "form-1" || forms[0].Title != "Booking Inquiry" {
		t.Errorf("unexpected first form: %+v", forms[0])
	}
}

func TestGetForms_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.Client(), newTestLogger(), server.URL)

	if _, err := client.GetForms(context.Background(), "bad-key"); err == nil {
		t.Fatal("expected error for unauthorized response")
	}
}

func TestGetClientsFromFirstForm_ParsesSubmissions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/user/forms":
			json.NewEncoder(w).Encode(map[string]any{
				"content": []map[string]any{{"id": "form-1", "title": "Booking Inquiry"}},
			})
		case "/form/form-1/submissions":
			json.NewEncoder(w).Encode(map[string]any{
				"content": []map[string]any{
					{
						"id": "sub-1",
						"answers": map[string]any{
							"3": map[string]any{
								"type":         "control_fullname",
								"answer":       map[string]string{"first": "Aoi", "last": "Tanaka"},
								"prettyFormat": "Aoi Tanaka",
							},
							"4": map[string]any{
								"type":   "control_email",
								"answer": "aoi@example.com",
							},
							"5": map[string]any{
								"type":         "control_phone",
								"answer":       map[string]string{"full": "09012345678"},
								"prettyFormat": "(090) 1234-5678",
							},
						},
					},
					{
						// 名前もメールも無い回答は除外される
						"id": "sub-2",
						"answers": map[string]any{
							"5": map[string]any{
								"type":   "control_phone",
								"answer": "0000",
							},
						},
					},
				},
			})
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(server.Client(), newTestLogger(), server.URL)

	imported, err := client.GetClientsFromFirstForm(context.Background(), "test-key")
	if err != nil {
		t.Fatalf("GetClientsFromFirstForm() error = %v", err)
	}

	if len(imported) != 1 {
		t.Fatalf("imported = %d, want 1", len(imported))
	}
	if imported[0].Name != "Aoi Tanaka" {
		t.Errorf("name = %q, want %q", imported[0].Name, "Aoi Tanaka")
	}
	if imported[0].Email != "aoi@example.com" {
		t.Errorf("email = %q, want %q", imported[0].Email, "aoi@example.com")
	}
	if imported[0].Phone != "(090) 1234-5678" {
		t.Errorf("phone = %q, want %q", imported[0].Phone, "(090) 1234-5678")
	}
}

func TestGetClientsFromFirstForm_NoForms(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"content": []map[string]any{}})
	}))
	defer server.Close()

	client := NewClient(server.Client(), newTestLogger(), server.URL)

	imported, err := client.GetClientsFromFirstForm(context.Background(), "test-key")
	if err != nil {
		t.Fatalf("GetClientsFromFirstForm() error = %v", err)
	}
	if len(imported) != 0 {
		t.Errorf("imported = %d, want 0", len(imported))
	}
}

func TestParseClientData_AnswerFallbacks(t *testing.T) {
	tests := []struct {
		name       string
		submission Submission
		wantName   string
		wantPhone  string
	}{
		{
			name: "prettyFormat優先",
			submission: Submission{Answers: map[string]Answer{
				"1": {Type: "control_fullname", Answer: json.RawMessage(`{"first":"A","last":"B"}`), PrettyFormat: "A B"},
			}},
			wantName: "A B",
		},
		{
			name: "prettyFormat無しは姓名を結合",
			submission: Submission{Answers: map[string]Answer{
				"1": {Type: "control_fullname", Answer: json.RawMessage(`{"first":"Ren","last":"Sato"}`)},
			}},
			wantName: "Ren Sato",
		},
		{
			name: "文字列answerをそのまま使う",
			submission: Submission{Answers: map[string]Answer{
				"1": {Type: "control_phone", Answer: json.RawMessage(`"09011112222"`)},
			}},
			wantPhone: "09011112222",
		},
		{
			name: "full形式の電話番号",
			submission: Submission{Answers: map[string]Answer{
				"1": {Type: "control_phone", Answer: json.RawMessage(`{"full":"09033334444"}`)},
			}},
			wantPhone: "09033334444",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseClientData(tt.submission)
			if got.Name != tt.wantName {
				t.Errorf("name = %q, want %q", got.Name, tt.wantName)
			}
			if got.Phone != tt.wantPhone {
				t.Errorf("phone = %q, want %q", got.Phone, tt.wantPhone)
			}
		})
	}
}
