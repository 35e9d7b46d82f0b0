package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/inkbook/internal/middleware"
)

// MetricsRecorder は全ハンドラーが記録するメトリクスを束ねたインターフェース。
// metrics.Collectorが実装する。
type MetricsRecorder interface {
	AuthMetricsRecorder
	ClientMetricsRecorder
	SessionMetricsRecorder
	middleware.StatusRecorder
}

// Pinger はヘルスチェックで疎通確認する対象のインターフェース。
// *sql.DBが実装する。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	UserResolver      middleware.UserResolver
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig

	// メトリクス
	Metrics        MetricsRecorder
	MetricsHandler http.Handler

	// サービス
	AuthService      AuthServiceInterface
	AuthConfig       AuthHandlerConfig
	ClientService    ClientServiceInterface
	SchedulerService SchedulerServiceInterface

	// ヘルスチェック
	DB Pinger
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → Metrics
//
// 認証が必要なルートにはさらに Session → RateLimit(General) → CSRF を適用する。
// ブラウザ向けルート（/dashboard、/logout）は未認証時に/loginへリダイレクトし、
// APIルート（/clients、/sessions）はJSONの401を返す。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewMetricsMiddleware(deps.Metrics))

	authHandler := NewAuthHandler(deps.AuthService, deps.Metrics, deps.AuthConfig)
	clientHandler := NewClientHandler(deps.ClientService, deps.Metrics)
	sessionHandler := NewSessionHandler(deps.SchedulerService, deps.Metrics)

	// --- 認証不要のルート ---

	r.Get("/login", authHandler.Login)
	r.Get("/login/google", authHandler.LoginGoogle)
	r.Get("/login/google/callback", authHandler.Callback)
	r.Get("/login/local", authHandler.LoginLocalForm)
	r.Post("/login/local", authHandler.LoginLocal)
	r.Get("/register", authHandler.RegisterForm)
	r.Post("/register", authHandler.Register)
	r.Post("/request_password_reset", authHandler.RequestPasswordReset)
	r.Post("/reset_password/{token}", authHandler.ResetPassword)

	r.Get("/health", NewHealthHandler(deps.DB))
	r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// --- ブラウザ向けの認証必須ルート（未認証はリダイレクト） ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.UserResolver, true))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/dashboard", authHandler.Dashboard)
		r.Get("/logout", authHandler.Logout)
	})

	// --- APIの認証必須ルート（未認証はJSONの401） ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.UserResolver, false))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		// 設定
		r.Post("/settings/jotform", authHandler.UpdateJotformKey)

		// 顧客管理
		r.Route("/clients", func(r chi.Router) {
			r.Get("/", clientHandler.List)
			r.Post("/new", clientHandler.Create)
			r.Get("/search", clientHandler.Search)

			// JotForm同期（同期専用レート制限を追加）
			r.With(deps.RateLimiter.SyncMiddleware()).Get("/sync_jotform", clientHandler.SyncJotForm)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/edit", clientHandler.Get)
				r.Post("/edit", clientHandler.Update)
				r.Post("/delete", clientHandler.Delete)
			})
		})

		// 予約管理
		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", sessionHandler.List)
			r.Post("/", sessionHandler.Create)
			r.Get("/calendar", sessionHandler.Calendar)
			r.Get("/options", sessionHandler.Options)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", sessionHandler.Get)
				r.Put("/", sessionHandler.Update)
				r.Delete("/", sessionHandler.Delete)
			})
		})
	})

	return r
}

// NewHealthHandler はヘルスチェックのハンドラーを返す。
// dbがnilでない場合は疎通確認を行い、失敗時は503を返す。
func NewHealthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy"})
				return
			}
		}

		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
