// Package realtime はゲームサーバーとのリアルタイム接続（WebSocket）を管理する。
// 1つのConnは1回だけ開くことができ、スポーン画面が所有して破棄する。
package realtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/hitoshi/vosdos-shell/internal/metrics"
)

// SessionQueryParam は接続URIで認証情報を渡すクエリパラメータ名。
const SessionQueryParam = "session"

var (
	// ErrNotIdle は既に開かれたConnを再度開こうとした場合のエラー。
	ErrNotIdle = errors.New("connection has already been opened")
	// ErrNotOpen は開いていない接続への送信エラー。
	ErrNotOpen = errors.New("connection is not open")
	// ErrClosedDuringOpen は接続確立中にCloseされた場合のエラー。
	ErrClosedDuringOpen = errors.New("connection was closed while opening")
)

// Handler は受信メッセージを処理する。ペイロードの中身は解釈しない。
type Handler interface {
	HandleMessage(data []byte)
}

// HandlerFunc は関数をHandlerとして使うためのアダプター。
type HandlerFunc func(data []byte)

// HandleMessage はHandlerインターフェースを実装する。
func (f HandlerFunc) HandleMessage(data []byte) { f(data) }

// Config は接続の設定。
type Config struct {
	// URL はWebSocketエンドポイント（ws:// または wss://）。
	URL string
	// Origin はハンドシェイクで送るOrigin。空の場合はURLから導出する。
	Origin string
	// DialTimeout は接続確立のタイムアウト。0の場合は5秒。
	DialTimeout time.Duration
	// MaxMessageBytes は受信メッセージの最大サイズ。0の場合はライブラリの既定値。
	MaxMessageBytes int
}

// Conn はリアルタイム接続を1つだけ保持する。
type Conn struct {
	id      string
	config  Config
	handler Handler
	logger  *slog.Logger
	metrics metrics.MetricsCollector

	mu             sync.Mutex
	state          State
	ws             *websocket.Conn
	closeRequested bool
	reason         string
	done           chan struct{}
}

// New はIdle状態のConnを生成する。
func New(config Config, handler Handler, logger *slog.Logger, m metrics.MetricsCollector) *Conn {
	if config.DialTimeout <= 0 {
		config.DialTimeout = 5 * time.Second
	}
	if handler == nil {
		handler = HandlerFunc(func([]byte) {})
	}
	if m == nil {
		m = metrics.NopCollector{}
	}
	id := uuid.NewString()
	return &Conn{
		id:      id,
		config:  config,
		handler: handler,
		logger:  logger.With(slog.String("connection_id", id)),
		metrics: m,
		state:   StateIdle,
		done:    make(chan struct{}),
	}
}

// ID は接続の識別子を返す。
func (c *Conn) ID() string { return c.id }

// State は現在の状態を返す。
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Reason は Failed になった理由を返す。
func (c *Conn) Reason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// Done は終端状態に入ったときに閉じられるチャネルを返す。
func (c *Conn) Done() <-chan struct{} { return c.done }

// Open は認証情報をクエリパラメータに載せて接続を確立する。
// ハンドシェイク用のメッセージは送らない。Idle 以外から呼ぶとエラーになる。
func (c *Conn) Open(ctx context.Context, credential string) (State, error) {
	c.mu.Lock()
	if c.state != StateIdle {
		state := c.state
		c.mu.Unlock()
		return state, ErrNotIdle
	}
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	ws, err := c.dial(ctx, credential)

	c.mu.Lock()
	if err != nil {
		if !c.state.Terminal() {
			c.reason = err.Error()
			c.setStateLocked(StateFailed)
		}
		state := c.state
		c.mu.Unlock()

		c.logger.Warn("リアルタイム接続の確立に失敗しました",
			slog.String("error", err.Error()),
		)
		return state, err
	}
	if c.closeRequested || c.state.Terminal() {
		state := c.state
		c.mu.Unlock()
		_ = ws.Close()
		return state, ErrClosedDuringOpen
	}
	c.ws = ws
	c.setStateLocked(StateOpen)
	c.mu.Unlock()

	c.logger.Info("リアルタイム接続を確立しました")

	go c.readLoop(ws)
	return StateOpen, nil
}

// Send はメッセージを送信する。Open の間だけ有効。
func (c *Conn) Send(data []byte) error {
	c.mu.Lock()
	if c.state != StateOpen || c.ws == nil {
		c.mu.Unlock()
		return ErrNotOpen
	}
	ws := c.ws
	c.mu.Unlock()

	if err := websocket.Message.Send(ws, string(data)); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// Close は接続を閉じる。何度呼んでもよく、Failed の場合は状態を変えない。
func (c *Conn) Close() error {
	c.mu.Lock()
	c.closeRequested = true
	if !c.state.Terminal() {
		c.setStateLocked(StateClosed)
	}
	ws := c.ws
	c.ws = nil
	c.mu.Unlock()

	if ws == nil {
		return nil
	}
	c.logger.Info("リアルタイム接続を閉じました")
	return ws.Close()
}

// dial はWebSocket接続を確立する。
func (c *Conn) dial(ctx context.Context, credential string) (*websocket.Conn, error) {
	target, err := BuildURL(c.config.URL, credential)
	if err != nil {
		return nil, err
	}
	origin := c.config.Origin
	if origin == "" {
		origin, err = originFor(c.config.URL)
		if err != nil {
			return nil, err
		}
	}

	wsConfig, err := websocket.NewConfig(target, origin)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket config: %w", err)
	}

	dctx, cancel := context.WithTimeout(ctx, c.config.DialTimeout)
	defer cancel()
	ws, err := wsConfig.DialContext(dctx)
	if err != nil {
		// DialError は認証情報入りのURLを含むため内側のエラーだけを返す
		var de *websocket.DialError
		if errors.As(err, &de) {
			return nil, fmt.Errorf("websocket dial failed: %w", de.Err)
		}
		return nil, err
	}
	if c.config.MaxMessageBytes > 0 {
		ws.MaxPayloadBytes = c.config.MaxMessageBytes
	}
	return ws, nil
}

// readLoop は接続が終わるまでメッセージを受信してHandlerに渡す。
func (c *Conn) readLoop(ws *websocket.Conn) {
	for {
		var data []byte
		if err := websocket.Message.Receive(ws, &data); err != nil {
			c.finish(ws, err)
			return
		}
		c.metrics.RecordRealtimeMessage()
		c.handler.HandleMessage(data)
	}
}

// finish は受信エラーを終端状態に反映する。
// 要求されたクローズとEOFは Closed、それ以外は Failed とする。先に入った終端状態を優先する。
func (c *Conn) finish(ws *websocket.Conn, err error) {
	c.mu.Lock()
	alreadyTerminal := c.state.Terminal()
	if !alreadyTerminal {
		if c.closeRequested || errors.Is(err, io.EOF) {
			c.setStateLocked(StateClosed)
		} else {
			c.reason = err.Error()
			c.setStateLocked(StateFailed)
		}
	}
	state := c.state
	if c.ws == ws {
		c.ws = nil
	}
	c.mu.Unlock()

	// 受信が止まった接続は状態にかかわらず解放する
	_ = ws.Close()

	if alreadyTerminal {
		return
	}
	if state == StateFailed {
		c.logger.Warn("リアルタイム接続でエラーが発生しました",
			slog.String("error", err.Error()),
		)
		return
	}
	c.logger.Info("リアルタイム接続がサーバーから閉じられました")
}

// setStateLocked は状態を遷移させる。c.mu を保持して呼ぶ。
func (c *Conn) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.state = s
	c.metrics.RecordConnectionState(s.String())
	if s.Terminal() {
		close(c.done)
	}
}

// BuildURL は接続先URLに認証情報のクエリパラメータを付与する。
func BuildURL(base, credential string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid websocket url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("websocket url must use ws or wss: %q", base)
	}
	q := u.Query()
	q.Set(SessionQueryParam, credential)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// originFor はWebSocket URLに対応するOriginを返す。
func originFor(wsURL string) (string, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return "", fmt.Errorf("invalid websocket url: %w", err)
	}
	scheme := "http"
	if u.Scheme == "wss" {
		scheme = "https"
	}
	return scheme + "://" + u.Host + "/", nil
}
