// Package shell はクライアント全体の画面状態を管理する状態機械を提供する。
//
// 画面状態は Unauthenticated, Authenticated, ManagingClan, Spawned のいずれか1つで、
// ManagingClan の間はクラン調停器を、Spawned の間はリアルタイム接続を所有する。
// 状態を離れるときは所有しているリソースを必ず解放する。
package shell

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hitoshi/vosdos-shell/internal/clan"
	"github.com/hitoshi/vosdos-shell/internal/metrics"
	"github.com/hitoshi/vosdos-shell/internal/model"
	"github.com/hitoshi/vosdos-shell/internal/realtime"
)

// View はトップレベルの画面状態。
type View string

const (
	ViewUnauthenticated View = "unauthenticated"
	ViewAuthenticated   View = "authenticated"
	ViewManagingClan    View = "managing_clan"
	ViewSpawned         View = "spawned"
)

// SignupSucceededMessage はサインアップ成功時に表示する文言。
const SignupSucceededMessage = "Signup successful! You can now log in."

// Authority はセッション認証情報を管理するインターフェース。
type Authority interface {
	Stored(ctx context.Context) (string, bool)
	Verify(ctx context.Context, credential string) bool
	Login(ctx context.Context, username, password string) (string, error)
	Signup(ctx context.Context, username, password string) error
	Logout(ctx context.Context)
	Credential() (string, bool)
}

// ClanCoordinator はクラン管理画面の調停器のインターフェース。
type ClanCoordinator interface {
	Mount(ctx context.Context)
	Unmount()
	Refresh(ctx context.Context) error
	CreateClan(ctx context.Context, name, password string) error
	JoinClan(ctx context.Context, name, password string) error
	LeaveClan(ctx context.Context) error
	DeleteClan(ctx context.Context) error
	Snapshot() clan.Snapshot
}

// Connection はリアルタイム接続のインターフェース。
type Connection interface {
	ID() string
	Open(ctx context.Context, credential string) (realtime.State, error)
	Close() error
	State() realtime.State
	Reason() string
}

// CoordinatorFactory はクラン調停器を生成する。
// onSessionRejected はサーバーが認証情報を拒否したときに呼ぶ。
type CoordinatorFactory func(onSessionRejected func()) ClanCoordinator

// ConnectionFactory はIdle状態のリアルタイム接続を生成する。
type ConnectionFactory func() Connection

// Shell は画面状態機械。
type Shell struct {
	auth           Authority
	newCoordinator CoordinatorFactory
	newConnection  ConnectionFactory
	logger         *slog.Logger
	metrics        metrics.MetricsCollector

	mu          sync.Mutex
	view        View
	coordinator ClanCoordinator
	conn        Connection
	message     string
	authErr     *model.APIError
	// epoch はログアウトごとに進め、古い調停器からのセッション拒否通知を無視する
	epoch uint64
}

// New はUnauthenticated状態のShellを生成する。
func New(auth Authority, newCoordinator CoordinatorFactory, newConnection ConnectionFactory, logger *slog.Logger, m metrics.MetricsCollector) *Shell {
	if m == nil {
		m = metrics.NopCollector{}
	}
	return &Shell{
		auth:           auth,
		newCoordinator: newCoordinator,
		newConnection:  newConnection,
		logger:         logger,
		metrics:        m,
		view:           ViewUnauthenticated,
	}
}

// View は現在の画面状態を返す。
func (s *Shell) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Start は起動時のセッション検証を行う。
// 保存済みの認証情報が有効ならAuthenticatedに遷移し、無効なら黙ってログアウトする。
func (s *Shell) Start(ctx context.Context) View {
	s.mu.Lock()
	if s.view != ViewUnauthenticated {
		view := s.view
		s.mu.Unlock()
		return view
	}
	epoch := s.epoch
	s.mu.Unlock()

	credential, ok := s.auth.Stored(ctx)
	if !ok {
		s.logger.Info("保存済みのセッションはありません")
		return ViewUnauthenticated
	}

	if !s.auth.Verify(ctx, credential) {
		s.mu.Lock()
		stale := s.epoch != epoch
		s.mu.Unlock()
		if stale {
			// 検証中にログアウトやログインが済んでいれば、その結果を優先する
			return s.View()
		}
		// 期限切れのセッションは想定内のため、エラーとして表示しない
		s.Logout(ctx)
		return ViewUnauthenticated
	}

	s.mu.Lock()
	if s.view == ViewUnauthenticated && s.epoch == epoch {
		s.transitionLocked(ViewAuthenticated)
		s.mu.Unlock()
		return ViewAuthenticated
	}
	view := s.view
	s.mu.Unlock()

	s.discardStale(ctx, credential)
	return view
}

// Login はログインし、成功するとAuthenticatedに遷移する。
func (s *Shell) Login(ctx context.Context, username, password string) error {
	epoch, err := s.require(ViewUnauthenticated, "login")
	if err != nil {
		return err
	}

	credential, err := s.auth.Login(ctx, username, password)

	s.mu.Lock()
	if s.epoch != epoch {
		// ログイン中にログアウトされた場合は結果を捨てる
		s.mu.Unlock()
		if err != nil {
			return asAPIError(err, model.NewLoginFailedError())
		}
		s.discardStale(ctx, credential)
		return model.NewNotAuthenticatedError()
	}
	defer s.mu.Unlock()
	if err != nil {
		s.authErr = asAPIError(err, model.NewLoginFailedError())
		s.message = ""
		return s.authErr
	}
	if s.view == ViewUnauthenticated {
		s.transitionLocked(ViewAuthenticated)
	}
	return nil
}

// Signup はアカウントを作成する。セッションは確立しない。
func (s *Shell) Signup(ctx context.Context, username, password string) error {
	epoch, err := s.require(ViewUnauthenticated, "signup")
	if err != nil {
		return err
	}

	err = s.auth.Signup(ctx, username, password)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch || s.view != ViewUnauthenticated {
		// 画面が変わっていれば表示は更新しない
		return err
	}
	if err != nil {
		s.authErr = asAPIError(err, model.NewSignupFailedError())
		s.message = ""
		return s.authErr
	}
	s.authErr = nil
	s.message = SignupSucceededMessage
	return nil
}

// Logout はどの状態からでもUnauthenticatedに遷移する。
// 所有しているクラン調停器と接続を解放してから認証情報を破棄する。
func (s *Shell) Logout(ctx context.Context) {
	s.mu.Lock()
	s.releaseLocked()
	s.epoch++
	s.authErr = nil
	s.message = ""
	s.transitionLocked(ViewUnauthenticated)
	s.mu.Unlock()

	s.auth.Logout(ctx)
}

// ManageClan はAuthenticatedからManagingClanに遷移し、新しいクラン調停器をマウントする。
func (s *Shell) ManageClan(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.view != ViewAuthenticated {
		return model.NewInvalidTransitionError(string(s.view), "manage clan")
	}

	epoch := s.epoch
	coordinator := s.newCoordinator(func() { s.sessionRejected(epoch) })
	s.coordinator = coordinator
	s.transitionLocked(ViewManagingClan)
	coordinator.Mount(ctx)
	return nil
}

// ReturnToMenu はManagingClanからAuthenticatedに戻り、クラン調停器をアンマウントする。
func (s *Shell) ReturnToMenu() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.view != ViewManagingClan {
		return model.NewInvalidTransitionError(string(s.view), "return to menu")
	}
	s.releaseLocked()
	s.transitionLocked(ViewAuthenticated)
	return nil
}

// Spawn はAuthenticatedからSpawnedに遷移し、Spawnedが所有する接続を開く。
// 接続に失敗してもSpawnedのまま留まり、認証状態は変えない。
func (s *Shell) Spawn(ctx context.Context) error {
	s.mu.Lock()
	if s.view != ViewAuthenticated {
		view := s.view
		s.mu.Unlock()
		return model.NewInvalidTransitionError(string(view), "spawn")
	}
	credential, ok := s.auth.Credential()
	if !ok {
		s.mu.Unlock()
		return model.NewNotAuthenticatedError()
	}
	conn := s.newConnection()
	s.conn = conn
	s.transitionLocked(ViewSpawned)
	s.mu.Unlock()

	// 接続の寿命は要求ではなくSpawned状態に従う
	if _, err := conn.Open(context.WithoutCancel(ctx), credential); err != nil {
		s.logger.Warn("ゲームへの接続に失敗しました",
			slog.String("connection_id", conn.ID()),
			slog.String("error", err.Error()),
		)
		return model.NewConnectionFailedError(conn.State().String())
	}
	return nil
}

// LeaveGame はSpawnedからAuthenticatedに戻り、接続を閉じる。
func (s *Shell) LeaveGame() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.view != ViewSpawned {
		return model.NewInvalidTransitionError(string(s.view), "leave game")
	}
	s.releaseLocked()
	s.transitionLocked(ViewAuthenticated)
	return nil
}

// Close はシェルを終了する。所有しているリソースを解放するが、保存済みの認証情報は残す。
func (s *Shell) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked()
	s.epoch++
	s.transitionLocked(ViewUnauthenticated)
}

// CreateClan はクラン管理画面でクランを作成する。
func (s *Shell) CreateClan(ctx context.Context, name, password string) error {
	c, err := s.managingCoordinator("create clan")
	if err != nil {
		return err
	}
	return c.CreateClan(ctx, name, password)
}

// JoinClan はクラン管理画面でクランに参加する。
func (s *Shell) JoinClan(ctx context.Context, name, password string) error {
	c, err := s.managingCoordinator("join clan")
	if err != nil {
		return err
	}
	return c.JoinClan(ctx, name, password)
}

// LeaveClan はクラン管理画面でクランから脱退する。
func (s *Shell) LeaveClan(ctx context.Context) error {
	c, err := s.managingCoordinator("leave clan")
	if err != nil {
		return err
	}
	return c.LeaveClan(ctx)
}

// DeleteClan はクラン管理画面でクランを削除する。
func (s *Shell) DeleteClan(ctx context.Context) error {
	c, err := s.managingCoordinator("delete clan")
	if err != nil {
		return err
	}
	return c.DeleteClan(ctx)
}

// RefreshClan はクラン管理画面でユーザーとクランを再取得する。
func (s *Shell) RefreshClan(ctx context.Context) error {
	c, err := s.managingCoordinator("refresh clan")
	if err != nil {
		return err
	}
	return c.Refresh(ctx)
}

// managingCoordinator はManagingClanのときに調停器を返す。
// 調停器の呼び出しはShellのロック外で行う。
func (s *Shell) managingCoordinator(action string) (ClanCoordinator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.view != ViewManagingClan || s.coordinator == nil {
		return nil, model.NewInvalidTransitionError(string(s.view), action)
	}
	return s.coordinator, nil
}

// sessionRejected は調停器からのセッション拒否通知を処理する。
func (s *Shell) sessionRejected(epoch uint64) {
	s.mu.Lock()
	stale := s.epoch != epoch
	s.mu.Unlock()
	if stale {
		return
	}

	s.logger.Info("サーバーがセッションを拒否したためログアウトします")
	s.Logout(context.Background())
}

// require は現在の画面状態がwantであることを確認し、その時点の世代を返す。
func (s *Shell) require(want View, action string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.view != want {
		return 0, model.NewInvalidTransitionError(string(s.view), action)
	}
	return s.epoch, nil
}

// discardStale は画面に反映されなかった認証情報を破棄する。
// 後から確立された別のセッションは残す。
func (s *Shell) discardStale(ctx context.Context, credential string) {
	s.mu.Lock()
	authenticated := s.view != ViewUnauthenticated
	s.mu.Unlock()
	if authenticated {
		return
	}
	if current, ok := s.auth.Credential(); ok && current == credential {
		s.logger.Info("画面に反映されなかったセッションを破棄します")
		s.auth.Logout(ctx)
	}
}

// releaseLocked は現在の状態が所有するリソースを解放する。s.mu を保持して呼ぶ。
func (s *Shell) releaseLocked() {
	if s.coordinator != nil {
		s.coordinator.Unmount()
		s.coordinator = nil
	}
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			s.logger.Debug("接続のクローズでエラーが発生しました",
				slog.String("connection_id", s.conn.ID()),
				slog.String("error", err.Error()),
			)
		}
		s.conn = nil
	}
}

// transitionLocked は画面状態を遷移させる。s.mu を保持して呼ぶ。
func (s *Shell) transitionLocked(to View) {
	from := s.view
	if from == to {
		return
	}
	s.view = to
	if to != ViewUnauthenticated {
		s.authErr = nil
		s.message = ""
	}
	s.metrics.RecordViewTransition(string(from), string(to))
	s.logger.Info("画面状態を遷移しました",
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)
}
