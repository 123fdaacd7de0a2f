package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/vosdos-shell/internal/metrics"
	"github.com/hitoshi/vosdos-shell/internal/middleware"
	"github.com/hitoshi/vosdos-shell/internal/security"
	"github.com/hitoshi/vosdos-shell/internal/shell"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Shell     ShellController
	Sanitizer security.DisplaySanitizer
	Logger    *slog.Logger

	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// Gatherer がnilの場合は /metrics を公開しない
	Gatherer prometheus.Gatherer
}

// NewRouter はコントロールAPIのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → RequestID → Logging → CSRF → RateLimit(General)
//
// /api/view と /api/clan は認証済みの画面でのみ受け付ける。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	r.Get("/health", NewHealthHandler(deps.Shell))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	stateHandler := NewStateHandler(deps.Shell, deps.Sanitizer)
	authHandler := NewAuthHandler(deps.Shell, stateHandler)
	viewHandler := NewViewHandler(deps.Shell, stateHandler)
	clanHandler := NewClanHandler(deps.Shell, stateHandler)

	authenticated := middleware.NewAuthenticatedMiddleware(middleware.AuthCheckerFunc(func() bool {
		return deps.Shell.Snapshot().View != shell.ViewUnauthenticated
	}))

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(deps.Logger, deps.CORSAllowedOrigin))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/state", stateHandler.GetState)

		r.Route("/auth", func(r chi.Router) {
			r.With(deps.RateLimiter.AuthMiddleware()).Post("/login", authHandler.Login)
			r.With(deps.RateLimiter.AuthMiddleware()).Post("/signup", authHandler.Signup)
			r.Post("/logout", authHandler.Logout)
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticated)

			r.Route("/view", func(r chi.Router) {
				r.Post("/clan", viewHandler.ManageClan)
				r.Post("/menu", viewHandler.ReturnToMenu)
				r.Post("/spawn", viewHandler.Spawn)
				r.Post("/leave_game", viewHandler.LeaveGame)
			})

			r.Route("/clan", func(r chi.Router) {
				r.Delete("/", clanHandler.DeleteClan)
				r.Post("/create", clanHandler.CreateClan)
				r.Post("/join", clanHandler.JoinClan)
				r.Post("/leave", clanHandler.LeaveClan)
				r.Post("/refresh", clanHandler.Refresh)
			})
		})
	})

	return r
}
