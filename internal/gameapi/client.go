// Package gameapi はゲームサーバーのHTTP APIクライアントを提供する。
// エンドポイントごとのステータス解釈はこのパッケージで一度だけ行い、
// 呼び出し側には error と model の値だけを返す。
package gameapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hitoshi/vosdos-shell/internal/metrics"
	"github.com/hitoshi/vosdos-shell/internal/model"
)

const (
	// maxResponseBytes はレスポンスボディの最大読み取りサイズ。
	maxResponseBytes = 1 << 20
	// RequestIDHeader はリクエスト追跡用のヘッダー名。
	RequestIDHeader = "X-Request-Id"
	userAgent       = "vosdos-shell/1.0"
)

// エンドポイントパス
const (
	PathVerifySession = "/api/verify_session"
	PathLogin         = "/api/login"
	PathSignup        = "/api/signup"
	PathLogout        = "/api/logout"
	PathCurrentUser   = "/api/info/current_user"
	PathCurrentClan   = "/api/info/current_clan"
	PathClanCreate    = "/api/clan/create"
	PathClanJoin      = "/api/clan/join"
	PathClanLeave     = "/api/clan/leave"
	PathClanDelete    = "/api/clan/delete"
)

// ErrEmptyCredential はログイン成功レスポンスのボディが空だった場合のエラー。
var ErrEmptyCredential = errors.New("login response did not contain a credential")

// ErrNoCredential は認証が必要な呼び出しに認証情報が渡されなかった場合のエラー。
var ErrNoCredential = errors.New("credential is required")

// Client はゲームサーバーAPIのクライアント。
type Client struct {
	httpClient    *http.Client
	logger        *slog.Logger
	baseURL       string
	sessionHeader string
	limiter       *rate.Limiter
	metrics       metrics.MetricsCollector
}

// Option はClientの任意設定。
type Option func(*Client)

// WithRateLimiter は送信レート制限を設定する。
func WithRateLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithMetrics はメトリクスコレクターを設定する。
func WithMetrics(m metrics.MetricsCollector) Option {
	return func(c *Client) { c.metrics = m }
}

// WithSessionHeader は認証情報を載せるヘッダー名を設定する。
func WithSessionHeader(name string) Option {
	return func(c *Client) {
		if name != "" {
			c.sessionHeader = name
		}
	}
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURL は末尾スラッシュなしの http(s) URL。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient:    httpClient,
		logger:        logger,
		baseURL:       strings.TrimRight(baseURL, "/"),
		sessionHeader: "vosdos-session-token",
		metrics:       metrics.NopCollector{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// credentialsBody はlogin/signupのリクエストボディ。
type credentialsBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// clanBody はclan create/joinのリクエストボディ。
type clanBody struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// VerifySession は認証情報がサーバーで有効かを確認する。
// 2xx以外はすべて無効としてエラーを返す。
func (c *Client) VerifySession(ctx context.Context, credential string) error {
	if credential == "" {
		return ErrNoCredential
	}
	_, err := c.expectOK(ctx, http.MethodGet, PathVerifySession, credential, nil)
	return err
}

// Login はユーザー名とパスワードでログインし、サーバーが発行した認証情報を返す。
// レスポンスボディ（前後の空白を除去）がそのまま認証情報となる。
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	body, err := c.expectOK(ctx, http.MethodPost, PathLogin, "", credentialsBody{Username: username, Password: password})
	if err != nil {
		return "", err
	}
	credential := strings.TrimSpace(string(body))
	if credential == "" {
		return "", ErrEmptyCredential
	}
	return credential, nil
}

// Signup はアカウントを作成する。セッションは確立しない。
func (c *Client) Signup(ctx context.Context, username, password string) error {
	_, err := c.expectOK(ctx, http.MethodPost, PathSignup, "", credentialsBody{Username: username, Password: password})
	return err
}

// Logout はサーバー側セッションの破棄を通知する。
func (c *Client) Logout(ctx context.Context, credential string) error {
	if credential == "" {
		return ErrNoCredential
	}
	_, err := c.expectOK(ctx, http.MethodPost, PathLogout, credential, nil)
	return err
}

// CurrentUser は認証済みユーザーの情報を取得する。
func (c *Client) CurrentUser(ctx context.Context, credential string) (*model.User, error) {
	if credential == "" {
		return nil, ErrNoCredential
	}
	body, err := c.expectOK(ctx, http.MethodGet, PathCurrentUser, credential, nil)
	if err != nil {
		return nil, err
	}

	var user model.User
	if err := json.Unmarshal(body, &user); err != nil {
		c.logger.Error("current_userレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to decode current user: %w", err)
	}
	return &user, nil
}

// CurrentClan は認証済みユーザーの所属クランを三値で取得する。
// 417は「クランなし」（エラーではない）、その他の非2xxと通信エラーは取得失敗となる。
// 401の場合は err にも StatusError を返し、呼び出し側がセッション拒否を判定できるようにする。
func (c *Client) CurrentClan(ctx context.Context, credential string) (model.ClanQueryResult, error) {
	if credential == "" {
		return model.ClanFailed(ErrNoCredential.Error()), ErrNoCredential
	}

	status, body, err := c.do(ctx, http.MethodGet, PathCurrentClan, credential, nil)
	if err != nil {
		return model.ClanFailed(err.Error()), err
	}

	switch ClassifyStatus(status) {
	case StatusClassOK:
		var clan model.Clan
		if err := json.Unmarshal(body, &clan); err != nil {
			c.logger.Error("current_clanレスポンスのパースに失敗しました",
				slog.String("error", err.Error()),
			)
			return model.ClanFailed("invalid clan payload"), fmt.Errorf("failed to decode current clan: %w", err)
		}
		return model.ClanPresent(clan), nil
	case StatusClassNoClan:
		return model.ClanAbsent(), nil
	default:
		se := &StatusError{Endpoint: PathCurrentClan, StatusCode: status}
		return model.ClanFailed(se.Error()), se
	}
}

// CreateClan はクランを作成する。
func (c *Client) CreateClan(ctx context.Context, credential, name, password string) error {
	if credential == "" {
		return ErrNoCredential
	}
	_, err := c.expectOK(ctx, http.MethodPost, PathClanCreate, credential, clanBody{Name: name, Password: password})
	return err
}

// JoinClan は既存のクランに参加する。
func (c *Client) JoinClan(ctx context.Context, credential, name, password string) error {
	if credential == "" {
		return ErrNoCredential
	}
	_, err := c.expectOK(ctx, http.MethodPost, PathClanJoin, credential, clanBody{Name: name, Password: password})
	return err
}

// LeaveClan は所属クランから脱退する。
func (c *Client) LeaveClan(ctx context.Context, credential string) error {
	if credential == "" {
		return ErrNoCredential
	}
	_, err := c.expectOK(ctx, http.MethodPost, PathClanLeave, credential, nil)
	return err
}

// DeleteClan は所有クランを削除する。
func (c *Client) DeleteClan(ctx context.Context, credential string) error {
	if credential == "" {
		return ErrNoCredential
	}
	_, err := c.expectOK(ctx, http.MethodDelete, PathClanDelete, credential, nil)
	return err
}

// expectOK はリクエストを送り、2xx以外を StatusError に変換する。
func (c *Client) expectOK(ctx context.Context, method, path, credential string, payload any) ([]byte, error) {
	status, body, err := c.do(ctx, method, path, credential, payload)
	if err != nil {
		return nil, err
	}
	if ClassifyStatus(status) != StatusClassOK {
		return nil, &StatusError{Endpoint: path, StatusCode: status}
	}
	return body, nil
}

// do はHTTPリクエストを1回実行し、ステータスコードとボディを返す。
// 通信エラー時はステータス0でエラーを返す。
func (c *Client) do(ctx context.Context, method, path, credential string, payload any) (int, []byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(RequestIDHeader, requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if credential != "" {
		req.Header.Set(c.sessionHeader, credential)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.RecordAPILatency(path, time.Since(start))
	if err != nil {
		c.metrics.RecordAPIRequest(path, 0)
		c.logger.Warn("ゲームサーバーAPIの呼び出しに失敗しました",
			slog.String("endpoint", path),
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
		)
		return 0, nil, err
	}
	defer resp.Body.Close()

	c.metrics.RecordAPIRequest(path, resp.StatusCode)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	level := slog.LevelDebug
	if class := ClassifyStatus(resp.StatusCode); class == StatusClassFailure {
		level = slog.LevelWarn
	}
	c.logger.Log(ctx, level, "ゲームサーバーAPI応答",
		slog.String("endpoint", path),
		slog.String("method", method),
		slog.Int("http_status", resp.StatusCode),
		slog.String("request_id", requestID),
	)

	return resp.StatusCode, body, nil
}
