// Package jotform はJotForm APIとの連携機能を提供する。
// フォーム・回答の取得と、回答からの見込み顧客データの抽出を含む。
package jotform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/inkbook/internal/model"
)

// defaultBaseURL はJotForm APIのベースURL。
const defaultBaseURL = "https://api.jotform.com"

// 回答フィールドの種別。JotFormのフォーム部品に対応する。
const (
	controlFullname = "control_fullname"
	controlEmail    = "control_email"
	controlPhone    = "control_phone"
)

// Form はJotFormのフォームを表す。
type Form struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Submission はフォームへの1件の回答を表す。
type Submission struct {
	ID      string            `json:"id"`
	Answers map[string]Answer `json:"answers"`
}

// Answer は回答内の1フィールドを表す。
// answerの型はフィールド種別により文字列・オブジェクトの両方があり得るため、
// RawMessageで保持しprettyFormatを優先して解釈する。
type Answer struct {
	Type         string          `json:"type"`
	Answer       json.RawMessage `json:"answer"`
	PrettyFormat string          `json:"prettyFormat"`
}

// Client はJotForm APIのクライアント。
// APIキーはユーザーごとに異なるため、各呼び出しで受け取る。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLが空の場合は標準のJotForm APIエンドポイントを使用する
// （Enterprise版は専用ドメインを持つため差し替え可能にしている）。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    baseURL,
	}
}

// GetForms はAPIキーの所有者のフォーム一覧を取得する。
func (c *Client) GetForms(ctx context.Context, apiKey string) ([]Form, error) {
	var payload struct {
		Content []Form `json:"content"`
	}
	if err := c.get(ctx, "/user/forms", apiKey, &payload); err != nil {
		return nil, fmt.Errorf("フォーム一覧の取得に失敗しました: %w", err)
	}
	return payload.Content, nil
}

// GetSubmissions は指定フォームの回答一覧を取得する。
func (c *Client) GetSubmissions(ctx context.Context, apiKey, formID string) ([]Submission, error) {
	var payload struct {
		Content []Submission `json:"content"`
	}
	path := fmt.Sprintf("/form/%s/submissions", url.PathEscape(formID))
	if err := c.get(ctx, path, apiKey, &payload); err != nil {
		return nil, fmt.Errorf("回答一覧の取得に失敗しました: %w", err)
	}
	return payload.Content, nil
}

// GetClientsFromFirstForm は最初のフォームの回答から見込み顧客データを抽出する。
// フォームが存在しない場合は空のリストを返す。
// 名前もメールアドレスも抽出できなかった回答は除外する。
func (c *Client) GetClientsFromFirstForm(ctx context.Context, apiKey string) ([]model.ImportedClient, error) {
	forms, err := c.GetForms(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	if len(forms) == 0 {
		c.logger.Warn("JotFormにフォームが存在しません")
		return []model.ImportedClient{}, nil
	}

	submissions, err := c.GetSubmissions(ctx, apiKey, forms[0].ID)
	if err != nil {
		return nil, err
	}

	imported := make([]model.ImportedClient, 0, len(submissions))
	for _, submission := range submissions {
		client := ParseClientData(submission)
		if client.Name == "" && client.Email == "" {
			continue
		}
		imported = append(imported, client)
	}

	c.logger.Info("JotFormから見込み顧客データを取得しました",
		slog.String("form_id", forms[0].ID),
		slog.Int("submission_count", len(submissions)),
		slog.Int("imported_count", len(imported)),
	)
	return imported, nil
}

// ParseClientData は1件の回答から氏名・メールアドレス・電話番号を抽出する。
func ParseClientData(submission Submission) model.ImportedClient {
	var client model.ImportedClient
	for _, answer := range submission.Answers {
		switch answer.Type {
		case controlFullname:
			if client.Name == "" {
				client.Name = answerText(answer)
			}
		case controlEmail:
			if client.Email == "" {
				client.Email = answerText(answer)
			}
		case controlPhone:
			if client.Phone == "" {
				client.Phone = answerText(answer)
			}
		}
	}
	return client
}

// answerText は回答フィールドの値を文字列として解釈する。
// prettyFormatがあればそれを優先し、無ければanswerを文字列または
// 複合オブジェクト（姓名・電話番号の分割形式）として解釈する。
func answerText(answer Answer) string {
	if answer.PrettyFormat != "" {
		return answer.PrettyFormat
	}
	if len(answer.Answer) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(answer.Answer, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var parts struct {
		First string `json:"first"`
		Last  string `json:"last"`
		Full  string `json:"full"`
	}
	if err := json.Unmarshal(answer.Answer, &parts); err == nil {
		if parts.Full != "" {
			return parts.Full
		}
		return strings.TrimSpace(strings.Join(nonEmpty(parts.First, parts.Last), " "))
	}
	return ""
}

// nonEmpty は空でない文字列のみを集める。
func nonEmpty(values ...string) []string {
	var result []string
	for _, v := range values {
		if v != "" {
			result = append(result, v)
		}
	}
	return result
}

// get はJotForm APIへのGETリクエストを実行し、レスポンスをデコードする。
func (c *Client) get(ctx context.Context, path, apiKey string, out any) error {
	reqURL := c.baseURL + path + "?apiKey=" + url.QueryEscape(apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("JotForm APIの呼び出しに失敗しました",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("JotForm APIがエラーステータスを返しました",
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
		)
		return fmt.Errorf("JotForm APIがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return nil
}
