package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"google.golang.org/api/idtoken"

	"github.com/hitoshi/inkbook/internal/model"
)

const (
	defaultGoogleAuthURL  = "https://accounts.google.com/o/oauth2/auth"
	defaultGoogleTokenURL = "https://oauth2.googleapis.com/token"
)

// GoogleOAuthConfig はGoogle OAuthプロバイダーの設定。
type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// テスト用にオーバーライド可能なURL
	AuthURL  string
	TokenURL string
}

// GoogleOAuthProvider はGoogle OAuth 2.0による認証を提供する。
type GoogleOAuthProvider struct {
	config GoogleOAuthConfig
}

// NewGoogleOAuthProvider はGoogleOAuthProviderを生成する。
func NewGoogleOAuthProvider(config GoogleOAuthConfig) *GoogleOAuthProvider {
	if config.AuthURL == "" {
		config.AuthURL = defaultGoogleAuthURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultGoogleTokenURL
	}
	return &GoogleOAuthProvider{config: config}
}

// GetLoginURL はGoogle OAuthの認証URLを生成する。
// スコープにはopenid, email, profileを含む。
func (p *GoogleOAuthProvider) GetLoginURL(state string) string {
	params := url.Values{
		"client_id":     {p.config.ClientID},
		"redirect_uri":  {p.config.RedirectURL},
		"response_type": {"code"},
		"scope":         {"openid email profile"},
		"state":         {state},
		"access_type":   {"offline"},
	}
	return p.config.AuthURL + "?" + params.Encode()
}

// googleTokenResponse はGoogleのトークンエンドポイントのレスポンス。
type googleTokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
}

// OAuthCredentials はトークンエンドポイントから取得した資格情報。
type OAuthCredentials struct {
	AccessToken string
	IDToken     string
}

// ExchangeCode は認可コードをトークンに交換し、IDトークンを含む資格情報を返す。
// IDトークンの署名検証はIDTokenVerifierが行う。
func (p *GoogleOAuthProvider) ExchangeCode(ctx context.Context, code string) (*OAuthCredentials, error) {
	data := url.Values{
		"code":          {code},
		"client_id":     {p.config.ClientID},
		"client_secret": {p.config.ClientSecret},
		"redirect_uri":  {p.config.RedirectURL},
		"grant_type":    {"authorization_code"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, model.NewAuthenticationError("認証プロバイダーに接続できませんでした", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, model.NewAuthenticationError("認証プロバイダーの応答を読み取れませんでした", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, model.NewAuthenticationError("認可コードの交換に失敗しました",
			fmt.Errorf("token exchange failed with status %d: %s", resp.StatusCode, string(body)))
	}

	var tokenResp googleTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, model.NewAuthenticationError("認証プロバイダーの応答を解釈できませんでした", err)
	}

	if tokenResp.IDToken == "" {
		return nil, model.NewAuthenticationError("IDトークンが応答に含まれていません", nil)
	}

	return &OAuthCredentials{
		AccessToken: tokenResp.AccessToken,
		IDToken:     tokenResp.IDToken,
	}, nil
}

// compile-time interface check
var _ OAuthProvider = (*GoogleOAuthProvider)(nil)

// GoogleIDTokenVerifier はGoogleの公開鍵でIDトークンの署名とaudienceを検証する。
type GoogleIDTokenVerifier struct {
	clientID string
}

// NewGoogleIDTokenVerifier はGoogleIDTokenVerifierを生成する。
func NewGoogleIDTokenVerifier(clientID string) *GoogleIDTokenVerifier {
	return &GoogleIDTokenVerifier{clientID: clientID}
}

// Verify はIDトークンを検証し、含まれる身元クレームを返す。
func (v *GoogleIDTokenVerifier) Verify(ctx context.Context, rawToken string) (*model.IdentityClaim, error) {
	payload, err := idtoken.Validate(ctx, rawToken, v.clientID)
	if err != nil {
		return nil, model.NewAuthenticationError("IDトークンの検証に失敗しました", err)
	}

	claim := &model.IdentityClaim{
		Email:   stringClaim(payload.Claims, "email"),
		Name:    stringClaim(payload.Claims, "name"),
		Picture: stringClaim(payload.Claims, "picture"),
	}
	if claim.Email == "" {
		return nil, model.NewAuthenticationError("IDトークンにemailクレームが含まれていません", nil)
	}
	return claim, nil
}

// stringClaim はクレームマップから文字列値を取り出す。
func stringClaim(claims map[string]any, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

var _ IDTokenVerifier = (*GoogleIDTokenVerifier)(nil)
