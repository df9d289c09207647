package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/carefunnel/internal/analytics"
	"github.com/hitoshi/carefunnel/internal/metrics"
	"github.com/hitoshi/carefunnel/internal/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// ストア
	HealthChecker HealthChecker
	Data          DatasetProvider
	Engine        *analytics.Engine

	// メトリクス。Gathererがnilなら/metricsを公開しない
	Metrics  metrics.MetricsCollector
	Gatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → RateLimit(GeneralMiddleware)
//
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	healthHandler := NewHealthHandler(deps.HealthChecker, deps.Logger)
	dashboardHandler := NewDashboardHandler(deps.Data, deps.Engine, deps.Metrics, deps.Logger)

	r.Get("/health", healthHandler.Check)
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api", func(r chi.Router) {
			r.Get("/filters", dashboardHandler.Filters)
			r.Get("/dashboard", dashboardHandler.Dashboard)
			// XLSX生成は重いため専用のレート制限を追加
			r.With(deps.RateLimiter.ExportMiddleware()).Get("/dashboard/export.xlsx", dashboardHandler.ExportXLSX)
			r.Get("/tables/{name}", dashboardHandler.Table)
		})
	})

	return r
}
