// Package app はアプリケーションの起動とサブコマンドの実行を提供する。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/vosdos-shell/internal/config"
	"github.com/hitoshi/vosdos-shell/internal/database"
	"github.com/hitoshi/vosdos-shell/internal/logger"
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップしてから環境変数のConfigを読み込み、ログレベルを反映する。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetLevel(cfg.LogLevel)
	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		return runHealthcheck(healthcheckAddr(os.Getenv("CONTROL_BIND"), os.Getenv("CONTROL_PORT")))
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("game_server_url", cfg.GameServerURL),
		slog.String("control_addr", cfg.ControlAddr()),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return Serve(ctx, cfg, slog.Default(), nil)
	}
}

// Serve はシェルを起動してコントロールAPIを提供する。
// ctxがキャンセルされるとグレースフルシャットダウンし、シェルの所有リソースを解放する。
// ready がnilでなければ待ち受け開始後にアドレスを1回送る。
func Serve(ctx context.Context, cfg *config.Config, log *slog.Logger, ready chan<- net.Addr) error {
	// 1. 認証情報ストア
	if err := database.RunMigrations(cfg.CredentialStoreURL); err != nil {
		return fmt.Errorf("failed to migrate credential store: %w", err)
	}

	db, dialect, err := database.Open(cfg.CredentialStoreURL)
	if err != nil {
		return fmt.Errorf("failed to open credential store: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to credential store: %w", err)
	}

	log.Info("credential store connection established", slog.String("dialect", string(dialect)))

	// 2. 依存関係の組み立て
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	components, err := NewComponents(cfg, log, reg, db, dialect)
	if err != nil {
		return err
	}
	defer components.Close()

	// 3. 起動時のセッション検証
	startCtx, cancel := context.WithTimeout(ctx, cfg.HTTPTimeout)
	view := components.Shell.Start(startCtx)
	cancel()
	log.Info("shell started", slog.String("view", string(view)))

	// 4. コントロールAPIの起動
	listener, err := net.Listen("tcp", cfg.ControlAddr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.ControlAddr(), err)
	}

	server := &http.Server{
		Handler:      components.Router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.HTTPTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("control API starting", slog.String("addr", listener.Addr().String()))
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	if ready != nil {
		ready <- listener.Addr()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("control API failed: %w", err)
		}
	}

	log.Info("shutting down control API...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("control API stopped gracefully")
	return nil
}

// runMigrate は認証情報ストアのマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running credential store migrations",
		slog.String("store_url", maskStoreURL(cfg.CredentialStoreURL)),
	)

	if err := database.RunMigrations(cfg.CredentialStoreURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("credential store migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(addr string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get("http://" + addr + "/health")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// healthcheckAddr はヘルスチェック先のアドレスを返す。
// 全インターフェースで待ち受けている場合はループバックに接続する。
func healthcheckAddr(bind, port string) string {
	if bind == "" || bind == "0.0.0.0" || bind == "::" {
		bind = "127.0.0.1"
	}
	if port == "" {
		port = "3001"
	}
	return net.JoinHostPort(bind, port)
}

// maskStoreURL はストアURLのパスワードをマスクする。解析できない場合は全体を伏せる。
func maskStoreURL(storeURL string) string {
	u, err := url.Parse(storeURL)
	if err != nil {
		return "***"
	}
	return u.Redacted()
}
