// Package auth はセッション認証情報の管理を提供する。
// 認証情報の正否を判断する唯一の主体として、検証・ログイン・サインアップ・ログアウトを扱う。
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"

	"github.com/hitoshi/vosdos-shell/internal/model"
	"github.com/hitoshi/vosdos-shell/internal/repository"
)

// SessionAPI はゲームサーバーのセッション関連APIのインターフェース。
type SessionAPI interface {
	VerifySession(ctx context.Context, credential string) error
	Login(ctx context.Context, username, password string) (string, error)
	Signup(ctx context.Context, username, password string) error
	Logout(ctx context.Context, credential string) error
}

// Config はAuthorityの設定。
type Config struct {
	// NotifyServerLogout はログアウト時にサーバーへ通知するかどうか。
	// 通知結果はローカルのログアウトに影響しない。
	NotifyServerLogout bool
}

// Authority は認証情報を所有し、認証状態の唯一の情報源となる。
type Authority struct {
	api    SessionAPI
	store  repository.CredentialRepository
	logger *slog.Logger
	config Config

	mu         sync.RWMutex
	credential string
}

// NewAuthority はAuthorityを生成する。
func NewAuthority(api SessionAPI, store repository.CredentialRepository, logger *slog.Logger, config Config) *Authority {
	return &Authority{
		api:    api,
		store:  store,
		logger: logger,
		config: config,
	}
}

// Stored は永続化された認証情報を読み出す。
// 読み出しに失敗した場合は未保存として扱う。
func (a *Authority) Stored(ctx context.Context) (string, bool) {
	credential, ok, err := a.store.Load(ctx)
	if err != nil {
		a.logger.Error("認証情報の読み出しに失敗しました",
			slog.String("error", err.Error()),
		)
		return "", false
	}
	return credential, ok
}

// Verify は認証情報をサーバーで検証する。
// 2xx以外と通信エラーはすべて無効とする（fail-closed）。
// 有効な場合はその認証情報を現在のセッションとして採用する。
func (a *Authority) Verify(ctx context.Context, credential string) bool {
	if credential == "" {
		return false
	}

	if err := a.api.VerifySession(ctx, credential); err != nil {
		a.logger.Info("セッション検証に失敗しました",
			slog.String("credential", Fingerprint(credential)),
			slog.String("reason", err.Error()),
		)
		return false
	}

	a.mu.Lock()
	a.credential = credential
	a.mu.Unlock()

	a.logger.Info("セッションを検証しました",
		slog.String("credential", Fingerprint(credential)),
	)
	return true
}

// Login はログインし、発行された認証情報を永続化して返す。
// 失敗時は保存済みの認証情報も現在のセッションも変更しない。
func (a *Authority) Login(ctx context.Context, username, password string) (string, error) {
	credential, err := a.api.Login(ctx, username, password)
	if err != nil {
		a.logger.Info("ログインに失敗しました",
			slog.String("username", username),
			slog.String("reason", err.Error()),
		)
		return "", model.NewLoginFailedError()
	}

	if err := a.store.Save(ctx, credential); err != nil {
		// 永続化できなくても現在のプロセスではセッションを使える
		a.logger.Error("認証情報の保存に失敗しました",
			slog.String("credential", Fingerprint(credential)),
			slog.String("error", err.Error()),
		)
	}

	a.mu.Lock()
	a.credential = credential
	a.mu.Unlock()

	a.logger.Info("ログインしました",
		slog.String("username", username),
		slog.String("credential", Fingerprint(credential)),
	)
	return credential, nil
}

// Signup はアカウントを作成する。セッションは確立しないため、続けてLoginが必要。
func (a *Authority) Signup(ctx context.Context, username, password string) error {
	if err := a.api.Signup(ctx, username, password); err != nil {
		a.logger.Info("サインアップに失敗しました",
			slog.String("username", username),
			slog.String("reason", err.Error()),
		)
		return model.NewSignupFailedError()
	}

	a.logger.Info("アカウントを作成しました", slog.String("username", username))
	return nil
}

// Logout は現在の認証情報と永続化された認証情報を無条件に破棄する。
// 何度呼んでもよく、ネットワークなしでローカルに完了する。
// 設定で有効な場合のみ、破棄後にサーバーへベストエフォートで通知する。
func (a *Authority) Logout(ctx context.Context) {
	a.mu.Lock()
	credential := a.credential
	a.credential = ""
	a.mu.Unlock()

	// 呼び出し元の期限切れや切断があってもローカルの破棄は必ず行う
	if err := a.store.Clear(context.WithoutCancel(ctx)); err != nil {
		a.logger.Error("認証情報の削除に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	if credential == "" {
		return
	}

	a.logger.Info("ログアウトしました",
		slog.String("credential", Fingerprint(credential)),
	)

	if !a.config.NotifyServerLogout {
		return
	}
	if err := a.api.Logout(ctx, credential); err != nil {
		a.logger.Debug("サーバーへのログアウト通知に失敗しました",
			slog.String("reason", err.Error()),
		)
	}
}

// Credential は現在のセッションの認証情報を返す。
func (a *Authority) Credential() (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.credential, a.credential != ""
}

// Fingerprint はログ出力用に認証情報の短い指紋を返す。
// 認証情報そのものはログに出力しない。
func Fingerprint(credential string) string {
	if credential == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:4])
}
