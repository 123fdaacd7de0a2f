package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultSessionHeader はゲームサーバーが認証情報を受け取るヘッダー名。
const DefaultSessionHeader = "vosdos-session-token"

// Config はクライアントシェル全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Game server
	GameServerURL string
	GameWSURL     string
	SessionHeader string

	// Credential store
	CredentialStoreURL string

	// Outbound
	HTTPTimeout        time.Duration
	WSDialTimeout      time.Duration
	APIRateLimit       float64
	APIRateBurst       int
	NotifyServerLogout bool

	// Control API
	ControlBind       string
	ControlPort       string
	CORSAllowedOrigin string

	// Rate Limit (control API, req/min)
	RateLimitGeneral int
	RateLimitAuth    int

	// Logging
	LogLevel string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.GameServerURL = strings.TrimRight(os.Getenv("GAME_SERVER_URL"), "/")
	if cfg.GameServerURL == "" {
		missing = append(missing, "GAME_SERVER_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	base, err := url.Parse(cfg.GameServerURL)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("GAME_SERVER_URL must be an absolute http(s) URL: %q", cfg.GameServerURL)
	}

	// Optional fields with defaults
	cfg.GameWSURL = getEnvString("GAME_WS_URL", deriveWSURL(base))
	cfg.SessionHeader = getEnvString("SESSION_HEADER", DefaultSessionHeader)
	cfg.CredentialStoreURL = getEnvString("CREDENTIAL_STORE_URL", "sqlite://vosdos-shell.db")
	cfg.HTTPTimeout = getEnvDuration("HTTP_TIMEOUT", 10*time.Second)
	cfg.WSDialTimeout = getEnvDuration("WS_DIAL_TIMEOUT", 5*time.Second)
	cfg.APIRateLimit = getEnvFloat("API_RATE_LIMIT", 10)
	cfg.APIRateBurst = getEnvInt("API_RATE_BURST", 20)
	cfg.NotifyServerLogout = getEnvBool("NOTIFY_SERVER_LOGOUT", true)
	cfg.ControlBind = getEnvString("CONTROL_BIND", "127.0.0.1")
	cfg.ControlPort = getEnvString("CONTROL_PORT", "3001")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 600)
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 20)
	cfg.LogLevel = strings.ToLower(getEnvString("LOG_LEVEL", "info"))

	return cfg, nil
}

// ControlAddr はコントロールAPIの待ち受けアドレスを返す。
func (c *Config) ControlAddr() string {
	return c.ControlBind + ":" + c.ControlPort
}

// deriveWSURL はゲームサーバーURLからWebSocketエンドポイントを導出する。
// http -> ws, https -> wss とし、パスは /ws 固定。
func deriveWSURL(base *url.URL) string {
	u := *base
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	u.RawQuery = ""
	return u.String()
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
