package app

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/vosdos-shell/internal/auth"
	"github.com/hitoshi/vosdos-shell/internal/clan"
	"github.com/hitoshi/vosdos-shell/internal/config"
	"github.com/hitoshi/vosdos-shell/internal/database"
	"github.com/hitoshi/vosdos-shell/internal/gameapi"
	"github.com/hitoshi/vosdos-shell/internal/handler"
	"github.com/hitoshi/vosdos-shell/internal/metrics"
	"github.com/hitoshi/vosdos-shell/internal/middleware"
	"github.com/hitoshi/vosdos-shell/internal/realtime"
	"github.com/hitoshi/vosdos-shell/internal/repository"
	"github.com/hitoshi/vosdos-shell/internal/security"
	"github.com/hitoshi/vosdos-shell/internal/shell"
)

// maxRealtimeMessageBytes は1メッセージあたりの受信上限。
const maxRealtimeMessageBytes = 1 << 20

// Components はserveモードで組み立てた依存関係。
type Components struct {
	Shell       *shell.Shell
	Router      http.Handler
	RateLimiter *middleware.RateLimiter
}

// Close はシェルの所有リソースとレートリミッターを解放する。
func (c *Components) Close() {
	c.Shell.Close()
	c.RateLimiter.Stop()
}

// NewComponents は設定と開いたストアから全依存関係を組み立てる。
func NewComponents(cfg *config.Config, logger *slog.Logger, reg *prometheus.Registry, db *sql.DB, dialect database.Dialect) (*Components, error) {
	if _, err := realtime.BuildURL(cfg.GameWSURL, "probe"); err != nil {
		return nil, fmt.Errorf("invalid GAME_WS_URL: %w", err)
	}

	collector := metrics.NewCollector(reg)

	// 1. 認証情報ストア
	store := repository.NewSQLCredentialRepo(db, dialect)

	// 2. ゲームサーバーAPIクライアント
	api := gameapi.NewClient(
		&http.Client{Timeout: cfg.HTTPTimeout},
		logger,
		cfg.GameServerURL,
		gameapi.WithRateLimiter(rate.NewLimiter(rate.Limit(cfg.APIRateLimit), cfg.APIRateBurst)),
		gameapi.WithMetrics(collector),
		gameapi.WithSessionHeader(cfg.SessionHeader),
	)

	// 3. セッション管理
	authority := auth.NewAuthority(api, store, logger, auth.Config{
		NotifyServerLogout: cfg.NotifyServerLogout,
	})

	// 4. 画面状態機械
	messages := newMessageLogger(logger)
	sh := shell.New(
		authority,
		func(onSessionRejected func()) shell.ClanCoordinator {
			return clan.NewCoordinator(api, authority, logger, onSessionRejected)
		},
		func() shell.Connection {
			return realtime.New(realtime.Config{
				URL:             cfg.GameWSURL,
				DialTimeout:     cfg.WSDialTimeout,
				MaxMessageBytes: maxRealtimeMessageBytes,
			}, messages, logger, collector)
		},
		logger,
		collector,
	)

	// 5. コントロールAPI
	rl := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAuth),
		logger,
	)
	router := handler.NewRouter(&handler.RouterDeps{
		Shell:             sh,
		Sanitizer:         security.NewDisplaySanitizer(),
		Logger:            logger,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rl,
		Gatherer:          reg,
	})

	return &Components{Shell: sh, Router: router, RateLimiter: rl}, nil
}

// newMessageLogger は受信メッセージの種別をデバッグログに出すHandlerを返す。
// メッセージ本体とセッションは描画側の関心事のため記録しない。
func newMessageLogger(logger *slog.Logger) realtime.Handler {
	return realtime.HandlerFunc(func(data []byte) {
		env, err := realtime.DecodeEnvelope(data)
		if err != nil {
			logger.Debug("デコードできないメッセージを受信しました", slog.Int("bytes", len(data)))
			return
		}
		logger.Debug("メッセージを受信しました",
			slog.String("type", env.Type),
			slog.Int("bytes", len(data)),
		)
	})
}
