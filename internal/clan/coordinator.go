// Package clan は現在ユーザーと所属クランの取得、およびクラン操作を調停する。
//
// ユーザーとクランは独立に取得され、両方の取得が完了するまで所有者判定を行わない。
// クラン操作の後は必ずサーバーから再取得し、ローカルで状態を推測して書き換えることはない。
package clan

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/hitoshi/vosdos-shell/internal/gameapi"
	"github.com/hitoshi/vosdos-shell/internal/model"
)

// API はクラン管理で使用するゲームサーバーAPIのインターフェース。
type API interface {
	CurrentUser(ctx context.Context, credential string) (*model.User, error)
	CurrentClan(ctx context.Context, credential string) (model.ClanQueryResult, error)
	CreateClan(ctx context.Context, credential, name, password string) error
	JoinClan(ctx context.Context, credential, name, password string) error
	LeaveClan(ctx context.Context, credential string) error
	DeleteClan(ctx context.Context, credential string) error
}

// CredentialSource は現在のセッションの認証情報を提供する。
type CredentialSource interface {
	Credential() (string, bool)
}

// Form はクラン作成・参加の入力欄。
type Form struct {
	Name     string
	Password string
}

// mutation はクラン操作ごとの振る舞いを表す。
type mutation struct {
	action      string
	errCode     string
	errMessage  string
	refetchUser bool
	clearForm   bool
}

var (
	mutationCreate = mutation{
		action:     "create",
		errCode:    model.ErrCodeClanCreateFailed,
		errMessage: "Failed to create clan",
		clearForm:  true,
	}
	mutationJoin = mutation{
		action:      "join",
		errCode:     model.ErrCodeClanJoinFailed,
		errMessage:  "Failed to join clan",
		refetchUser: true,
		clearForm:   true,
	}
	mutationLeave = mutation{
		action:      "leave",
		errCode:     model.ErrCodeClanLeaveFailed,
		errMessage:  "Failed to leave clan",
		refetchUser: true,
	}
	mutationDelete = mutation{
		action:      "delete",
		errCode:     model.ErrCodeClanDeleteFailed,
		errMessage:  "Failed to delete clan",
		refetchUser: true,
	}
)

// Coordinator はクラン管理画面の状態を保持する。
// 非同期に完了した取得結果は、画面がマウント中かつ同じ世代の場合にのみ反映する。
type Coordinator struct {
	api               API
	creds             CredentialSource
	logger            *slog.Logger
	onSessionRejected func()

	// opMu はクラン操作を直列化する
	opMu sync.Mutex
	wg   sync.WaitGroup

	mu        sync.Mutex
	mounted   bool
	gen       uint64
	cancel    context.CancelFunc
	rejected  bool
	user      *model.User
	userReady bool
	clan      model.ClanQueryResult
	clanReady bool

	// エラーは発生元ごとに保持し、完了順に依存せず表示を決める
	userErr *model.APIError
	clanErr *model.APIError
	opErr   *model.APIError
	form    Form
}

// NewCoordinator はCoordinatorを生成する。
// onSessionRejected はサーバーが認証情報を拒否したときにロック外で1回だけ呼ばれる。
func NewCoordinator(api API, creds CredentialSource, logger *slog.Logger, onSessionRejected func()) *Coordinator {
	if onSessionRejected == nil {
		onSessionRejected = func() {}
	}
	return &Coordinator{
		api:               api,
		creds:             creds,
		logger:            logger,
		onSessionRejected: onSessionRejected,
	}
}

// Mount は画面をマウントし、ユーザーとクランの取得を並行して開始する。
// 既にマウント済みの場合は何もしない。
func (c *Coordinator) Mount(ctx context.Context) {
	c.mu.Lock()
	if c.mounted {
		c.mu.Unlock()
		return
	}
	c.gen++
	gen := c.gen
	c.mounted = true
	c.rejected = false
	c.user = nil
	c.userReady = false
	c.clan = model.ClanQueryResult{}
	c.clanReady = false
	c.clearErrorsLocked()
	c.form = Form{}
	mctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	c.mu.Unlock()

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		c.fetchUser(mctx, gen)
	}()
	go func() {
		defer c.wg.Done()
		c.fetchClan(mctx, gen)
	}()
}

// Unmount は画面をアンマウントする。実行中の取得はキャンセルされ、結果は破棄される。
func (c *Coordinator) Unmount() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.mounted {
		return
	}
	c.mounted = false
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// Wait はマウント時に開始した取得がすべて終わるまで待つ。
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Refresh はユーザーとクランを再取得する。取得失敗後の再試行に使う。
// 前回のエラー表示は再取得の結果で置き換える。
func (c *Coordinator) Refresh(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		return model.NewClanNotReadyError()
	}
	gen := c.gen
	c.clearErrorsLocked()
	c.mu.Unlock()

	c.refetch(ctx, gen, true)
	return nil
}

// CreateClan はクランを作成する。成功時は入力欄をクリアしてクランを再取得する。
func (c *Coordinator) CreateClan(ctx context.Context, name, password string) error {
	return c.mutate(ctx, mutationCreate, Form{Name: name, Password: password})
}

// JoinClan はクランに参加する。成功時は入力欄をクリアしてユーザーとクランを再取得する。
func (c *Coordinator) JoinClan(ctx context.Context, name, password string) error {
	return c.mutate(ctx, mutationJoin, Form{Name: name, Password: password})
}

// LeaveClan はクランから脱退する。所有者でない場合のみ実行できる。
func (c *Coordinator) LeaveClan(ctx context.Context) error {
	return c.mutate(ctx, mutationLeave, Form{})
}

// DeleteClan はクランを削除する。所有者の場合のみ実行できる。
func (c *Coordinator) DeleteClan(ctx context.Context) error {
	return c.mutate(ctx, mutationDelete, Form{})
}

// Snapshot は現在の状態のコピーを返す。
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Coordinator) snapshotLocked() Snapshot {
	s := Snapshot{
		Mounted:   c.mounted,
		UserReady: c.userReady,
		Clan:      c.clan,
		ClanReady: c.clanReady,
		Error:     c.errorLocked(),
		Form:      c.form,
	}
	if c.user != nil {
		u := *c.user
		s.User = &u
	}
	if c.clan.Clan != nil {
		cl := *c.clan.Clan
		s.Clan.Clan = &cl
	}
	s.Controls = DeriveControls(s)
	return s
}

// mutate はクラン操作を実行し、完了後に再取得する。
// 再取得は操作の完了を待ってから行い、操作と並行させない。
func (c *Coordinator) mutate(ctx context.Context, m mutation, form Form) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		return model.NewClanNotReadyError()
	}
	if err := checkAllowed(m, c.snapshotLocked()); err != nil {
		c.mu.Unlock()
		return err
	}
	gen := c.gen
	if m.clearForm {
		c.form = form
	}
	c.mu.Unlock()

	credential, _ := c.creds.Credential()
	var err error
	switch m {
	case mutationCreate:
		err = c.api.CreateClan(ctx, credential, form.Name, form.Password)
	case mutationJoin:
		err = c.api.JoinClan(ctx, credential, form.Name, form.Password)
	case mutationLeave:
		err = c.api.LeaveClan(ctx, credential)
	case mutationDelete:
		err = c.api.DeleteClan(ctx, credential)
	}

	if err != nil {
		apiErr := model.NewClanMutationError(m.errCode, m.errMessage)
		c.mu.Lock()
		if c.liveLocked(gen) {
			c.opErr = apiErr
		}
		rejected := c.markRejectedLocked(gen, err)
		c.mu.Unlock()

		c.logger.Warn("クラン操作に失敗しました",
			slog.String("action", m.action),
			slog.String("error", err.Error()),
		)
		if rejected {
			c.onSessionRejected()
		}
		return apiErr
	}

	c.mu.Lock()
	if !c.liveLocked(gen) {
		c.mu.Unlock()
		return nil
	}
	if m.clearForm {
		c.form = Form{}
	}
	c.opErr = nil
	c.mu.Unlock()

	c.logger.Info("クラン操作が完了しました", slog.String("action", m.action))

	c.refetch(ctx, gen, m.refetchUser)
	return nil
}

// refetch はクラン（と必要ならユーザー）を再取得し、完了まで待つ。
// 再取得する項目の準備完了フラグは取得前に下ろす。
func (c *Coordinator) refetch(ctx context.Context, gen uint64, withUser bool) {
	c.mu.Lock()
	if !c.liveLocked(gen) {
		c.mu.Unlock()
		return
	}
	if withUser {
		c.userReady = false
	}
	c.clanReady = false
	c.mu.Unlock()

	var wg sync.WaitGroup
	if withUser {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.fetchUser(ctx, gen)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.fetchClan(ctx, gen)
	}()
	wg.Wait()
}

func (c *Coordinator) fetchUser(ctx context.Context, gen uint64) {
	credential, _ := c.creds.Credential()
	user, err := c.api.CurrentUser(ctx, credential)

	c.mu.Lock()
	if !c.liveLocked(gen) {
		c.mu.Unlock()
		return
	}
	c.userReady = true
	if err != nil {
		c.user = nil
		c.userErr = model.NewUserFetchFailedError()
	} else {
		c.user = user
		c.userErr = nil
	}
	rejected := c.markRejectedLocked(gen, err)
	c.mu.Unlock()

	if err != nil {
		c.logger.Error("現在ユーザーの取得に失敗しました",
			slog.String("error", err.Error()),
		)
	}
	if rejected {
		c.onSessionRejected()
	}
}

func (c *Coordinator) fetchClan(ctx context.Context, gen uint64) {
	credential, _ := c.creds.Credential()
	result, err := c.api.CurrentClan(ctx, credential)
	if err != nil && !result.IsError() {
		result = model.ClanFailed(err.Error())
	}

	c.mu.Lock()
	if !c.liveLocked(gen) {
		c.mu.Unlock()
		return
	}
	c.clanReady = true
	c.clan = result
	if result.IsError() {
		c.clanErr = model.NewClanFetchFailedError()
	} else {
		// クランなしで消すのはクラン取得のエラーだけ
		c.clanErr = nil
	}
	rejected := c.markRejectedLocked(gen, err)
	c.mu.Unlock()

	if result.IsError() {
		c.logger.Error("現在クランの取得に失敗しました",
			slog.String("reason", result.Reason),
		)
	}
	if rejected {
		c.onSessionRejected()
	}
}

// errorLocked は表示するエラーを返す。操作、ユーザー取得、クラン取得の順に優先する。
func (c *Coordinator) errorLocked() *model.APIError {
	switch {
	case c.opErr != nil:
		return c.opErr
	case c.userErr != nil:
		return c.userErr
	default:
		return c.clanErr
	}
}

func (c *Coordinator) clearErrorsLocked() {
	c.userErr = nil
	c.clanErr = nil
	c.opErr = nil
}

// liveLocked は世代genの結果を反映してよいかを返す。c.mu を保持して呼ぶ。
func (c *Coordinator) liveLocked(gen uint64) bool {
	return c.mounted && c.gen == gen
}

// markRejectedLocked はエラーがセッション拒否であり、まだ通知していなければtrueを返す。
func (c *Coordinator) markRejectedLocked(gen uint64, err error) bool {
	if err == nil || !c.liveLocked(gen) || c.rejected {
		return false
	}
	if !gameapi.IsUnauthorized(err) && !errors.Is(err, gameapi.ErrNoCredential) {
		return false
	}
	c.rejected = true
	return true
}
